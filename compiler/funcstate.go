package compiler

import lua "github.com/empirephoenix/hardened-lua"

// funcState is the single-pass codegen context for one function body
// (chunk or literal), mirroring lparser.c's FuncState: a register
// allocator (freereg/nactvar), an active-local list, pending break/goto
// jump lists, and a link to the enclosing function for upvalue capture.
type funcState struct {
	parent *funcState

	source       string
	lineDefined  int
	isVararg     bool
	code         []uint32
	lineAt       []int
	constants    []lua.Value
	constIndex   map[interface{}]int
	protos       []*lua.Prototype
	upvalues     []lua.UpvalueDesc
	upvalIndex   map[string]int
	localsDebug  []lua.LocalVar

	actLocals []localVar // currently visible locals, outer to inner
	freereg   int
	maxStack  int

	breakList  [][]int // one pending-jump list per enclosing loop
	gotoList   []pendingGoto
	labelStack []labelScope
}

type localVar struct {
	name string
	reg  int
}

type pendingGoto struct {
	name string
	pc   int
	line int
}

type labelScope struct {
	name string
	pc   int
}

func newFuncState(parent *funcState, source string, lineDefined int) *funcState {
	return &funcState{
		parent:      parent,
		source:      source,
		lineDefined: lineDefined,
		constIndex:  make(map[interface{}]int),
		upvalIndex:  make(map[string]int),
	}
}

func (fs *funcState) emit(inst uint32, line int) int {
	fs.code = append(fs.code, inst)
	fs.lineAt = append(fs.lineAt, line)
	return len(fs.code) - 1
}

func (fs *funcState) emitABC(op lua.Op, a, b, c, line int) int {
	return fs.emit(lua.EncodeABC(op, a, b, c), line)
}

func (fs *funcState) emitABx(op lua.Op, a, bx, line int) int {
	return fs.emit(lua.EncodeABx(op, a, bx), line)
}

func (fs *funcState) emitASBx(op lua.Op, a, sbx, line int) int {
	return fs.emit(lua.EncodeASBx(op, a, sbx), line)
}

// emitJmp emits a placeholder JMP (patched later via patchJmp/patchToHere).
func (fs *funcState) emitJmp(a, line int) int {
	return fs.emitASBx(lua.OpJmp, a, 0, line)
}

func (fs *funcState) patchJmpTo(pc, target int) {
	inst := fs.code[pc]
	fs.code[pc] = lua.EncodeASBx(lua.DecodeOp(inst), lua.DecodeA(inst), target-pc-1)
}

func (fs *funcState) patchToHere(pc int) { fs.patchJmpTo(pc, len(fs.code)) }

func (fs *funcState) here() int { return len(fs.code) }

// reserveReg allocates n consecutive fresh registers and returns the first.
func (fs *funcState) reserveReg(n int) int {
	r := fs.freereg
	fs.freereg += n
	if fs.freereg > fs.maxStack {
		fs.maxStack = fs.freereg
	}
	return r
}

// freeTo resets freereg to r, provided r lies above the innermost active
// local's register (temporaries only, stack discipline is LIFO as in real
// Lua).
func (fs *funcState) freeTo(r int) {
	if n := len(fs.actLocals); n > 0 && r <= fs.actLocals[n-1].reg {
		return
	}
	if r < fs.freereg {
		fs.freereg = r
	}
}

func (fs *funcState) addConst(v lua.Value) int {
	key := constKey(v)
	if idx, ok := fs.constIndex[key]; ok {
		return idx
	}
	idx := len(fs.constants)
	fs.constants = append(fs.constants, v)
	fs.constIndex[key] = idx
	return idx
}

// constKey derives a map key for constant deduplication; distinguishing
// ints/numbers/strings by (type, value) so 1 (int) and 1.0 (float) don't
// collide.
func constKey(v lua.Value) interface{} {
	switch x := v.(type) {
	case lua.Int:
		return [2]interface{}{"i", int32(x)}
	case lua.Number:
		return [2]interface{}{"n", float64(x)}
	case lua.String:
		return [2]interface{}{"s", string(x)}
	case lua.Bool:
		return [2]interface{}{"b", bool(x)}
	default:
		return [2]interface{}{"o", v}
	}
}

func (fs *funcState) declareLocal(name string) int {
	reg := fs.reserveReg(1)
	fs.actLocals = append(fs.actLocals, localVar{name: name, reg: reg})
	fs.localsDebug = append(fs.localsDebug, lua.LocalVar{Name: name, StartPC: fs.here()})
	return reg
}

// enterBlock/leaveBlock bound local-variable scope; when the block declared
// locals, leaveBlock emits a JMP A>0 (sBx 0) that closes upvalues over them,
// so a loop body closes its captures on every iteration, then truncates
// actLocals and frees their registers.
func (fs *funcState) enterBlock() int { return len(fs.actLocals) }

func (fs *funcState) leaveBlock(mark int) {
	for i := mark; i < len(fs.actLocals); i++ {
		fs.localsDebug[i].EndPC = fs.here()
	}
	if mark < len(fs.actLocals) {
		reg := fs.actLocals[mark].reg
		line := 0
		if n := len(fs.lineAt); n > 0 {
			line = fs.lineAt[n-1]
		}
		fs.emitASBx(lua.OpJmp, reg+1, 0, line)
		fs.actLocals = fs.actLocals[:mark]
		fs.freeTo(reg)
	}
}

func (fs *funcState) resolveLocal(name string) (int, bool) {
	for i := len(fs.actLocals) - 1; i >= 0; i-- {
		if fs.actLocals[i].name == name {
			return fs.actLocals[i].reg, true
		}
	}
	return 0, false
}

// resolveUpval walks enclosing funcStates to find name as a local there
// (captured InStack) or as one of their own upvalues (forwarded), caching
// the result the way lparser.c's singlevaraux does.
func (fs *funcState) resolveUpval(name string) (int, bool) {
	if idx, ok := fs.upvalIndex[name]; ok {
		return idx, true
	}
	if fs.parent == nil {
		return 0, false
	}
	if reg, ok := fs.parent.resolveLocal(name); ok {
		idx := len(fs.upvalues)
		fs.upvalues = append(fs.upvalues, lua.UpvalueDesc{Name: name, InStack: true, Index: reg})
		fs.upvalIndex[name] = idx
		return idx, true
	}
	if pidx, ok := fs.parent.resolveUpval(name); ok {
		idx := len(fs.upvalues)
		fs.upvalues = append(fs.upvalues, lua.UpvalueDesc{Name: name, InStack: false, Index: pidx})
		fs.upvalIndex[name] = idx
		return idx, true
	}
	return 0, false
}

func (fs *funcState) toPrototype(numParams int, isVararg bool, lastLine int) *lua.Prototype {
	return &lua.Prototype{
		Source:          fs.source,
		LineDefined:     fs.lineDefined,
		LastLineDefined: lastLine,
		NumParams:       numParams,
		IsVararg:        isVararg,
		MaxStackSize:    fs.maxStack + 2,
		Code:            fs.code,
		Constants:       fs.constants,
		Protos:          fs.protos,
		Upvalues:        fs.upvalues,
		Locals:          fs.localsDebug,
		LineAt:          fs.lineAt,
	}
}
