package lua

// Instruction encoding (32-bit words packing an opcode plus register/
// constant operands, generalized to the full Lua 5.2 opcode surface):
//
//	+-------------------------------------------------+
//	|0-5(6bit)|6-13(8bit)|14-22(9bit)|23-31(9bit)      |
//	|=========+==========+===========+================|
//	| opcode  |    A     |     C     |     B           |
//	|---------+----------+-----------+-----------------|
//	| opcode  |    A     |       Bx (unsigned)          |
//	|---------+----------+-----------+-----------------|
//	| opcode  |    A     |       sBx (signed)           |
//	+-------------------------------------------------+
//
// RK operands: the high bit of a B/C operand selects between a register
// index (bit clear) and a constant index (bit set, remaining bits index
// Prototype.Constants).
const (
	sizeOp = 6
	sizeA  = 8
	sizeB  = 9
	sizeC  = 9
	sizeBx = sizeB + sizeC
	posOp  = 0
	posA   = posOp + sizeOp
	posC   = posA + sizeA
	posB   = posC + sizeC
	posBx  = posC

	maxArgA   = (1 << sizeA) - 1
	maxArgB   = (1 << sizeB) - 1
	maxArgC   = (1 << sizeC) - 1
	maxArgBx  = (1 << sizeBx) - 1
	maxArgSBx = maxArgBx >> 1

	bitRK = 1 << (sizeB - 1) // high bit of a B/C operand: set => constant index
)

type opcode int

const (
	// Data movement
	OP_MOVE opcode = iota
	OP_LOADK
	OP_LOADBOOL
	OP_LOADNIL
	OP_GETUPVAL
	OP_SETUPVAL
	OP_GETTABUP
	OP_SETTABUP
	OP_GETTABLE
	OP_SETTABLE
	OP_NEWTABLE
	OP_SELF

	// Arithmetic & logic
	OP_ADD
	OP_SUB
	OP_MUL
	OP_DIV
	OP_MOD
	OP_POW
	OP_UNM
	OP_NOT
	OP_LEN
	OP_CONCAT

	// Control
	OP_JMP
	OP_EQ
	OP_LT
	OP_LE
	OP_TEST
	OP_TESTSET

	// Calls
	OP_CALL
	OP_TAILCALL
	OP_RETURN

	// Loops
	OP_FORPREP
	OP_FORLOOP
	OP_TFORCALL
	OP_TFORLOOP

	// Closures & varargs
	OP_CLOSURE
	OP_VARARG
	OP_SETLIST
	OP_EXTRAARG
)

var opNames = map[opcode]string{
	OP_MOVE: "MOVE", OP_LOADK: "LOADK", OP_LOADBOOL: "LOADBOOL", OP_LOADNIL: "LOADNIL",
	OP_GETUPVAL: "GETUPVAL", OP_SETUPVAL: "SETUPVAL", OP_GETTABUP: "GETTABUP", OP_SETTABUP: "SETTABUP",
	OP_GETTABLE: "GETTABLE", OP_SETTABLE: "SETTABLE", OP_NEWTABLE: "NEWTABLE", OP_SELF: "SELF",
	OP_ADD: "ADD", OP_SUB: "SUB", OP_MUL: "MUL", OP_DIV: "DIV", OP_MOD: "MOD", OP_POW: "POW",
	OP_UNM: "UNM", OP_NOT: "NOT", OP_LEN: "LEN", OP_CONCAT: "CONCAT",
	OP_JMP: "JMP", OP_EQ: "EQ", OP_LT: "LT", OP_LE: "LE", OP_TEST: "TEST", OP_TESTSET: "TESTSET",
	OP_CALL: "CALL", OP_TAILCALL: "TAILCALL", OP_RETURN: "RETURN",
	OP_FORPREP: "FORPREP", OP_FORLOOP: "FORLOOP", OP_TFORCALL: "TFORCALL", OP_TFORLOOP: "TFORLOOP",
	OP_CLOSURE: "CLOSURE", OP_VARARG: "VARARG", OP_SETLIST: "SETLIST", OP_EXTRAARG: "EXTRAARG",
}

func (op opcode) String() string {
	if n, ok := opNames[op]; ok {
		return n
	}
	return "UNKNOWN"
}

func encodeABC(op opcode, a, b, c int) uint32 {
	return uint32(op)<<posOp | uint32(a)<<posA | uint32(c)<<posC | uint32(b)<<posB
}

func encodeABx(op opcode, a, bx int) uint32 {
	return uint32(op)<<posOp | uint32(a)<<posA | uint32(bx)<<posBx
}

func encodeASBx(op opcode, a, sbx int) uint32 {
	return encodeABx(op, a, sbx+maxArgSBx)
}

func decodeOp(inst uint32) opcode { return opcode((inst >> posOp) & ((1 << sizeOp) - 1)) }
func decodeA(inst uint32) int     { return int((inst >> posA) & ((1 << sizeA) - 1)) }
func decodeB(inst uint32) int     { return int((inst >> posB) & ((1 << sizeB) - 1)) }
func decodeC(inst uint32) int     { return int((inst >> posC) & ((1 << sizeC) - 1)) }
func decodeBx(inst uint32) int    { return int((inst >> posBx) & ((1 << sizeBx) - 1)) }
func decodeSBx(inst uint32) int   { return decodeBx(inst) - maxArgSBx }

// isConstRef and constIndex decode an RK operand.
func isConstRef(rk int) bool { return rk&bitRK != 0 }
func constIndex(rk int) int  { return rk &^ bitRK }
func rkConst(idx int) int    { return idx | bitRK }

// Exported wire-format contract for the external compiler (package
// compiler): the instruction encoding is shared between the codegen and
// the VM the same way lopcodes.h is shared between lparser.c and lvm.c in
// real Lua. These wrappers are the only access the compiler package has
// to the bit layout above.
const (
	MaxArgA   = maxArgA
	MaxArgB   = maxArgB
	MaxArgC   = maxArgC
	MaxArgBx  = maxArgBx
	MaxArgSBx = maxArgSBx
	BitRK     = bitRK
)

func EncodeABC(op opcode, a, b, c int) uint32 { return encodeABC(op, a, b, c) }
func EncodeABx(op opcode, a, bx int) uint32   { return encodeABx(op, a, bx) }
func EncodeASBx(op opcode, a, sbx int) uint32 { return encodeASBx(op, a, sbx) }
func RKConst(idx int) int                     { return rkConst(idx) }
func IsConstRef(rk int) bool                  { return isConstRef(rk) }
func DecodeOp(inst uint32) Op                 { return decodeOp(inst) }
func DecodeA(inst uint32) int                 { return decodeA(inst) }
func DecodeB(inst uint32) int                 { return decodeB(inst) }
func DecodeC(inst uint32) int                 { return decodeC(inst) }
func DecodeBx(inst uint32) int                { return decodeBx(inst) }
func DecodeSBx(inst uint32) int               { return decodeSBx(inst) }

// Op is the exported opcode type compiler code can name locally (opcode
// itself stays unexported; callers hold values, not the type name).
type Op = opcode

const (
	OpMove      = OP_MOVE
	OpLoadK     = OP_LOADK
	OpLoadBool  = OP_LOADBOOL
	OpLoadNil   = OP_LOADNIL
	OpGetUpval  = OP_GETUPVAL
	OpSetUpval  = OP_SETUPVAL
	OpGetTabUp  = OP_GETTABUP
	OpSetTabUp  = OP_SETTABUP
	OpGetTable  = OP_GETTABLE
	OpSetTable  = OP_SETTABLE
	OpNewTable  = OP_NEWTABLE
	OpSelf      = OP_SELF
	OpAdd       = OP_ADD
	OpSub       = OP_SUB
	OpMul       = OP_MUL
	OpDiv       = OP_DIV
	OpMod       = OP_MOD
	OpPow       = OP_POW
	OpUnm       = OP_UNM
	OpNot       = OP_NOT
	OpLen       = OP_LEN
	OpConcat    = OP_CONCAT
	OpJmp       = OP_JMP
	OpEq        = OP_EQ
	OpLt        = OP_LT
	OpLe        = OP_LE
	OpTest      = OP_TEST
	OpTestSet   = OP_TESTSET
	OpCall      = OP_CALL
	OpTailCall  = OP_TAILCALL
	OpReturn    = OP_RETURN
	OpForPrep   = OP_FORPREP
	OpForLoop   = OP_FORLOOP
	OpTForCall  = OP_TFORCALL
	OpTForLoop  = OP_TFORLOOP
	OpClosure   = OP_CLOSURE
	OpVararg    = OP_VARARG
	OpSetList   = OP_SETLIST
	OpExtraArg  = OP_EXTRAARG
)
