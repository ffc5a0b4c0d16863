package compiler

import lua "github.com/empirephoenix/hardened-lua"

// expKind tags the shape of a not-yet-materialized expression result,
// mirroring (in miniature) the expdesc kinds lcode.c discharges from.
type expKind int

const (
	expNil expKind = iota
	expTrue
	expFalse
	expConst   // info = constant index
	expLocal   // info = register
	expUpval   // info = upvalue index
	expGlobal  // str  = name, resolved against _ENV each use
	expIndexed // info = table register, keyReg/keyK = key
	expCall    // info = register of first result; pc = call instruction
	expVararg  // info = register the VARARG was aimed at; pc = instruction
	expReg     // info = register already holding the final value (temp or fixed)
)

type expr struct {
	kind  expKind
	info  int
	str   string
	line  int
	keyK  bool
	keyR  int // register, when !keyK
	keyC  int // RK operand, when keyK
	pc    int // instruction index, for expCall/expVararg patch-to-multret
}

// exprToAnyReg materializes e into some register (reusing e's register if
// it already names one) and returns that register.
func (fs *funcState) exprToAnyReg(e expr) int {
	switch e.kind {
	case expLocal, expReg:
		return e.info
	case expCall:
		// a call compiled with want=1 already left its single result at info.
		return e.info
	case expIndexed:
		// the table/key temporaries die here; the result reuses the lowest.
		if !e.keyK {
			fs.freeTo(e.keyR)
		}
		fs.freeTo(e.info)
	}
	r := fs.reserveReg(1)
	fs.dischargeTo(e, r)
	return r
}

// exprToReg forces e's value into register r exactly.
func (fs *funcState) exprToReg(e expr, r int) {
	fs.dischargeTo(e, r)
}

func (fs *funcState) dischargeTo(e expr, r int) {
	switch e.kind {
	case expNil:
		fs.emitABC(lua.OpLoadNil, r, 0, 0, e.line)
	case expTrue:
		fs.emitABC(lua.OpLoadBool, r, 1, 0, e.line)
	case expFalse:
		fs.emitABC(lua.OpLoadBool, r, 0, 0, e.line)
	case expConst:
		fs.emitABx(lua.OpLoadK, r, e.info, e.line)
	case expLocal:
		if e.info != r {
			fs.emitABC(lua.OpMove, r, e.info, 0, e.line)
		}
	case expReg, expCall, expVararg:
		if e.info != r {
			fs.emitABC(lua.OpMove, r, e.info, 0, e.line)
		}
	case expUpval:
		fs.emitABC(lua.OpGetUpval, r, e.info, 0, e.line)
	case expGlobal:
		fs.emitGetGlobal(r, e.str, e.line)
	case expIndexed:
		key := fs.keyRK(e)
		fs.emitABC(lua.OpGetTable, r, e.info, key, e.line)
	}
}

// keyRK returns an RK operand for an indexed expr's key.
func (fs *funcState) keyRK(e expr) int {
	if e.keyK {
		return e.keyC
	}
	return e.keyR
}

// emitGetGlobal resolves a bare name against the function's _ENV upvalue
// (the root chunk's upvalue 0 is _ENV, matching Load's closed upvalue setup
// in host.go; a nested function gets its own _ENV upvalue, forwarded from
// its parent by envUpvalIndex on first use), matching Lua 5.2's desugaring
// of globals into _ENV field access rather than a dedicated GETGLOBAL
// opcode.
func (fs *funcState) emitGetGlobal(r int, name string, line int) {
	envIdx := fs.envUpvalIndex()
	k := fs.addConst(lua.String(name))
	fs.emitABC(lua.OpGetTabUp, r, envIdx, lua.RKConst(k), line)
}

func (fs *funcState) emitSetGlobal(name string, valReg int, line int) {
	envIdx := fs.envUpvalIndex()
	k := fs.addConst(lua.String(name))
	fs.emitABC(lua.OpSetTabUp, valReg, envIdx, lua.RKConst(k), line)
}

// envUpvalIndex ensures this function has an _ENV upvalue descriptor,
// creating one (forwarding from the parent, or aliasing the root chunk's
// closed _ENV upvalue 0) on first use.
func (fs *funcState) envUpvalIndex() int {
	if idx, ok := fs.upvalIndex["_ENV"]; ok {
		return idx
	}
	if fs.parent == nil {
		idx := len(fs.upvalues)
		fs.upvalues = append(fs.upvalues, lua.UpvalueDesc{Name: "_ENV", InStack: false, Index: 0})
		fs.upvalIndex["_ENV"] = idx
		return idx
	}
	pidx := fs.parent.envUpvalIndex()
	idx := len(fs.upvalues)
	fs.upvalues = append(fs.upvalues, lua.UpvalueDesc{Name: "_ENV", InStack: false, Index: pidx})
	fs.upvalIndex["_ENV"] = idx
	return idx
}

// exprToRK returns an RK operand for e: the constant index (tagged) if e
// is a constant-shaped expression within addressable range, else a
// register holding the discharged value.
func (fs *funcState) exprToRK(e expr) int {
	switch e.kind {
	case expConst:
		if e.info <= lua.MaxArgC>>1 {
			return lua.RKConst(e.info)
		}
	case expNil:
		k := fs.addConst(lua.Nil)
		return lua.RKConst(k)
	case expTrue:
		k := fs.addConst(lua.Bool(true))
		return lua.RKConst(k)
	case expFalse:
		k := fs.addConst(lua.Bool(false))
		return lua.RKConst(k)
	}
	return fs.exprToAnyReg(e)
}

func regExpr(reg int) expr { return expr{kind: expReg, info: reg} }
