package lua

import (
	"fmt"
	"math"
	"strings"
)

// callClosure is the top-level entry point for invoking a Function value —
// used by the host facade's Call and by a worker's entry point in
// coroutine.go (the CALL/TAILCALL opcodes go through LState.call and
// invoke instead). It recovers a *LuaError into a
// normal error return but lets LimitExceeded/StringLimitExceeded/
// OrphanedWorker/InternalError propagate as panics past this frame —
// those failures are not meant to be caught at any intermediate call
// boundary; the host facade's top-level Call is where they finally turn
// back into Go errors.
func callClosure(l *LState, fn *Function, args []Value, nret int) (results []Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			if le, ok := r.(*LuaError); ok {
				err = le
				return
			}
			panic(r)
		}
	}()
	return invoke(l, fn, args, nret)
}

// invoke dispatches to a native GFunction or runs a Lua closure's bytecode.
// Natives see the same "read args off the current call window, Push()
// results" convention a compiled closure's CALL handling provides them
// (host-callable convention); the frame pushed here carries no pc,
// it exists only to anchor Arg/ArgCount/Push to the right base.
func invoke(l *LState, fn *Function, args []Value, nret int) ([]Value, error) {
	if fn.IsG {
		base := l.reg.Top()
		for _, a := range args {
			l.reg.Push(a)
		}
		l.pushFrame(&callFrame{fn: fn, base: base})
		n := fn.GFn(l)
		l.popFrame()
		top := l.reg.Top()
		res := make([]Value, n)
		for i := 0; i < n; i++ {
			res[i] = l.reg.Get(top - n + i)
		}
		l.reg.SetTop(base)
		return res, nil
	}
	return runClosure(l, fn, args, nret)
}

func runClosure(l *LState, fn *Function, args []Value, nret int) ([]Value, error) {
	proto := fn.Proto
	base := l.reg.Top()
	l.reg.SetTop(base + proto.MaxStackSize)
	np := proto.NumParams
	for i := 0; i < np; i++ {
		if i < len(args) {
			l.reg.Set(base+i, args[i])
		} else {
			l.reg.Set(base+i, Nil)
		}
	}
	var varargs []Value
	if proto.IsVararg && len(args) > np {
		varargs = append(varargs, args[np:]...)
	}

	cf := &callFrame{fn: fn, base: base, varargs: varargs, nret: nret}
	l.pushFrame(cf)
	defer func() {
		l.upvals.closeFrom(base)
		l.popFrame()
		l.reg.SetTop(base)
	}()

	return execute(l, cf)
}

// execute runs the bytecode loop for one frame (dispatch-loop
// invariants). It recurses into invoke() for nested calls rather than
// trampolining through a flat callinfo stack; the simplification costs
// proper tail-call stack elision for OP_TAILCALL (documented in
// DESIGN.md) but keeps upvalue-closing and varargs handling direct.
func execute(l *LState, cf *callFrame) ([]Value, error) {
	proto := cf.fn.Proto
	code := proto.Code

	for {
		if err := chargeOne(l); err != nil {
			return nil, err
		}
		if cf.pc >= len(code) {
			return nil, nil
		}
		inst := code[cf.pc]
		cf.pc++
		op := decodeOp(inst)
		a := decodeA(inst)
		line := proto.LineOf(cf.pc - 1)

		switch op {
		case OP_MOVE:
			l.reg.Set(cf.base+a, l.reg.Get(cf.base+decodeB(inst)))

		case OP_LOADK:
			l.reg.Set(cf.base+a, proto.Constants[decodeBx(inst)])

		case OP_LOADBOOL:
			l.reg.Set(cf.base+a, Bool(decodeB(inst) != 0))
			if decodeC(inst) != 0 {
				cf.pc++
			}

		case OP_LOADNIL:
			b := decodeB(inst)
			for i := 0; i <= b; i++ {
				l.reg.Set(cf.base+a+i, Nil)
			}

		case OP_GETUPVAL:
			l.reg.Set(cf.base+a, cf.fn.Upvalues[decodeB(inst)].Get())

		case OP_SETUPVAL:
			cf.fn.Upvalues[decodeB(inst)].Set(l.reg.Get(cf.base + a))

		case OP_GETTABUP:
			uv := cf.fn.Upvalues[decodeB(inst)].Get()
			key := l.rk(cf, decodeC(inst))
			v, err := l.index(uv, key, line)
			if err != nil {
				return nil, err
			}
			l.reg.Set(cf.base+a, v)

		case OP_SETTABUP:
			uv := cf.fn.Upvalues[decodeB(inst)].Get()
			key := l.rk(cf, decodeC(inst))
			val := l.reg.Get(cf.base + a)
			if err := l.newindex(uv, key, val, line); err != nil {
				return nil, err
			}

		case OP_GETTABLE:
			t := l.reg.Get(cf.base + decodeB(inst))
			key := l.rk(cf, decodeC(inst))
			v, err := l.index(t, key, line)
			if err != nil {
				return nil, err
			}
			l.reg.Set(cf.base+a, v)

		case OP_SETTABLE:
			t := l.reg.Get(cf.base + a)
			key := l.rk(cf, decodeB(inst))
			val := l.rk(cf, decodeC(inst))
			if err := l.newindex(t, key, val, line); err != nil {
				return nil, err
			}

		case OP_NEWTABLE:
			l.reg.Set(cf.base+a, NewTable(sizeHint(decodeB(inst)), sizeHint(decodeC(inst))))

		case OP_SELF:
			obj := l.reg.Get(cf.base + decodeB(inst))
			key := l.rk(cf, decodeC(inst))
			v, err := l.index(obj, key, line)
			if err != nil {
				return nil, err
			}
			l.reg.Set(cf.base+a+1, obj)
			l.reg.Set(cf.base+a, v)

		case OP_ADD, OP_SUB, OP_MUL, OP_DIV, OP_MOD, OP_POW:
			bv := l.rk(cf, decodeB(inst))
			cv := l.rk(cf, decodeC(inst))
			v, err := l.arith(op, bv, cv, line)
			if err != nil {
				return nil, err
			}
			l.reg.Set(cf.base+a, v)

		case OP_UNM:
			bv := l.reg.Get(cf.base + decodeB(inst))
			v, err := l.unm(bv, line)
			if err != nil {
				return nil, err
			}
			l.reg.Set(cf.base+a, v)

		case OP_NOT:
			bv := l.reg.Get(cf.base + decodeB(inst))
			l.reg.Set(cf.base+a, Bool(!IsTruthy(bv)))

		case OP_LEN:
			bv := l.reg.Get(cf.base + decodeB(inst))
			v, err := l.length(bv, line)
			if err != nil {
				return nil, err
			}
			l.reg.Set(cf.base+a, v)

		case OP_CONCAT:
			b, c := decodeB(inst), decodeC(inst)
			v, err := l.concatRange(cf, b, c, line)
			if err != nil {
				return nil, err
			}
			l.reg.Set(cf.base+a, v)

		case OP_JMP:
			if a > 0 {
				l.upvals.closeFrom(cf.base + a - 1)
			}
			cf.pc += decodeSBx(inst)

		case OP_EQ, OP_LT, OP_LE:
			bv := l.rk(cf, decodeB(inst))
			cv := l.rk(cf, decodeC(inst))
			res, err := l.compare(op, bv, cv, line)
			if err != nil {
				return nil, err
			}
			if res != (a != 0) {
				cf.pc++
			}

		case OP_TEST:
			if IsTruthy(l.reg.Get(cf.base+a)) != (decodeC(inst) != 0) {
				cf.pc++
			}

		case OP_TESTSET:
			bv := l.reg.Get(cf.base + decodeB(inst))
			if IsTruthy(bv) == (decodeC(inst) != 0) {
				l.reg.Set(cf.base+a, bv)
			} else {
				cf.pc++
			}

		case OP_CALL, OP_TAILCALL:
			b, c := decodeB(inst), decodeC(inst)
			nargs := b - 1
			if b == 0 {
				nargs = l.reg.Top() - (cf.base + a + 1)
			}
			args := make([]Value, nargs)
			for i := 0; i < nargs; i++ {
				args[i] = l.reg.Get(cf.base + a + 1 + i)
			}
			want := c - 1
			fnv := l.reg.Get(cf.base + a)
			results, err := l.call(fnv, args, want, line)
			if err != nil {
				return nil, err
			}
			l.placeResults(cf.base+a, results, want)

		case OP_RETURN:
			l.upvals.closeFrom(cf.base)
			b := decodeB(inst)
			n := b - 1
			if b == 0 {
				n = l.reg.Top() - (cf.base + a)
			}
			out := make([]Value, n)
			for i := 0; i < n; i++ {
				out[i] = l.reg.Get(cf.base + a + i)
			}
			return out, nil

		case OP_FORPREP:
			idx := cf.base + a
			limitV, _ := ToNumber(l.reg.Get(idx + 1))
			l.reg.Set(idx+1, limitV)
			start, err := l.arith(OP_SUB, l.reg.Get(idx), l.reg.Get(idx+2), line)
			if err != nil {
				return nil, err
			}
			l.reg.Set(idx, start)
			cf.pc += decodeSBx(inst)

		case OP_FORLOOP:
			idx := cf.base + a
			next, err := l.arith(OP_ADD, l.reg.Get(idx), l.reg.Get(idx+2), line)
			if err != nil {
				return nil, err
			}
			step, _ := ToNumber(l.reg.Get(idx + 2))
			cur, _ := ToNumber(next)
			limit, _ := ToNumber(l.reg.Get(idx + 1))
			more := (step > 0 && cur <= limit) || (step <= 0 && cur >= limit)
			if more {
				l.reg.Set(idx, next)
				l.reg.Set(idx+3, next)
				cf.pc += decodeSBx(inst)
			}

		case OP_TFORCALL:
			b := decodeC(inst)
			f := l.reg.Get(cf.base + a)
			s1 := l.reg.Get(cf.base + a + 1)
			s2 := l.reg.Get(cf.base + a + 2)
			results, err := l.call(f, []Value{s1, s2}, b, line)
			if err != nil {
				return nil, err
			}
			for i := 0; i < b; i++ {
				if i < len(results) {
					l.reg.Set(cf.base+a+3+i, results[i])
				} else {
					l.reg.Set(cf.base+a+3+i, Nil)
				}
			}

		case OP_TFORLOOP:
			if l.reg.Get(cf.base+a+1).Type() != TypeNil {
				l.reg.Set(cf.base+a, l.reg.Get(cf.base+a+1))
				cf.pc += decodeSBx(inst)
			}

		case OP_CLOSURE:
			child := proto.Protos[decodeBx(inst)]
			l.reg.Set(cf.base+a, l.buildClosure(cf, child))

		case OP_VARARG:
			b := decodeB(inst)
			n := b - 1
			if b == 0 {
				n = len(cf.varargs)
			}
			for i := 0; i < n; i++ {
				if i < len(cf.varargs) {
					l.reg.Set(cf.base+a+i, cf.varargs[i])
				} else {
					l.reg.Set(cf.base+a+i, Nil)
				}
			}
			if b == 0 {
				l.reg.SetTop(cf.base + a + n)
			}

		case OP_SETLIST:
			b := decodeB(inst)
			offset := decodeC(inst)
			t, ok := l.reg.Get(cf.base + a).(*Table)
			if !ok {
				return nil, lineErrf(l, line, "attempt to build a list on a non-table")
			}
			n := b
			if b == 0 {
				n = l.reg.Top() - (cf.base + a + 1)
			}
			for i := 1; i <= n; i++ {
				t.Set(Int(offset+i), l.reg.Get(cf.base+a+i))
			}

		case OP_EXTRAARG:
			// folded into the preceding instruction's own decode; nothing to do.

		default:
			return nil, &InternalError{Message: fmt.Sprintf("unknown opcode %v", op)}
		}
	}
}

// chargeOne is the per-instruction hook: exactly one dispatch equals one
// instruction charged. On overflow it raises for
// the main thread and parks a worker via blockForResume until a fresh
// Resume (after the host calls ResetLimit) lets it retry the very same pc.
func chargeOne(l *LState) error {
	return chargeN(l, 1)
}

// chargeN is chargeOne generalized to an arbitrary fixed cost, used by
// standard-library built-ins whose own internal work (e.g. table.contains'
// linear scan) would otherwise run free of the instruction budget.
func chargeN(l *LState, n int64) error {
	for {
		if l.limiter == nil {
			panic(&InternalError{Message: "no instruction limit installed for worker " + l.ID})
		}
		lim := l.limiter.increase(n)
		if lim == nil {
			return nil
		}
		if l.isMain {
			panic(lim)
		}
		if _, err := l.blockForResume(nil); err != nil {
			panic(err)
		}
	}
}

func (l *LState) rk(cf *callFrame, operand int) Value {
	if isConstRef(operand) {
		return cf.fn.Proto.Constants[constIndex(operand)]
	}
	return l.reg.Get(cf.base + operand)
}

func (l *LState) placeResults(at int, results []Value, want int) {
	if want == MultRet {
		l.reg.SetTop(at)
		for _, r := range results {
			l.reg.Push(r)
		}
		return
	}
	for i := 0; i < want; i++ {
		if i < len(results) {
			l.reg.Set(at+i, results[i])
		} else {
			l.reg.Set(at+i, Nil)
		}
	}
	l.reg.SetTop(at + want)
}

// call dispatches a CALL/TAILCALL/TFORCALL target: a Function value
// directly, or any value with a __call metamethod (Metatables).
func (l *LState) call(fnv Value, args []Value, want int, line int) ([]Value, error) {
	fn, ok := fnv.(*Function)
	if !ok {
		if mt := metatableOf(fnv); mt != nil {
			if h := mt.Get(String("__call")); h.Type() != TypeNil {
				return l.call(h, append([]Value{fnv}, args...), want, line)
			}
		}
		return nil, lineErrf(l, line, "attempt to call a %s value", fnv.Type())
	}
	return invoke(l, fn, args, want)
}

// buildClosure implements OP_CLOSURE: each upvalue descriptor
// either captures an open upvalue aliasing the enclosing frame's stack, or
// forwards one of the enclosing closure's own upvalues.
func (l *LState) buildClosure(cf *callFrame, proto *Prototype) *Function {
	ups := make([]*Upvalue, len(proto.Upvalues))
	for i, desc := range proto.Upvalues {
		if desc.InStack {
			ups[i] = l.upvals.find(l.reg, cf.base+desc.Index)
		} else {
			ups[i] = cf.fn.Upvalues[desc.Index]
		}
	}
	return &Function{Proto: proto, Upvalues: ups, Env: cf.fn.Env}
}

func sizeHint(n int) int {
	if n <= 0 {
		return 0
	}
	return 1 << uint(n)
}

func lineErrf(l *LState, line int, format string, args ...interface{}) error {
	source := "?"
	if cf := l.currentFrame(); cf != nil && cf.fn.Proto != nil {
		source = cf.fn.Proto.Source
	}
	return &LuaError{Value: String(fmt.Sprintf("%s:%d: %s", source, line, fmt.Sprintf(format, args...)))}
}

// metatableOf returns the value's metatable, or nil. Table and UserData
// carry their own; every other type shares a class metatable installed by
// the standard library (e.g. string methods), see classMetatableOf.
func metatableOf(v Value) *Table {
	switch x := v.(type) {
	case *Table:
		return x.Metatable
	case *UserData:
		return x.Metatable
	default:
		return classMetatableOf(v)
	}
}

// index implements GETTABLE/GETTABUP/SELF, including __index dispatch
// (Metatables participate in indexing).
func (l *LState) index(t, key Value, line int) (Value, error) {
	for depth := 0; depth < 100; depth++ {
		if tbl, ok := t.(*Table); ok {
			v := tbl.Get(key)
			if v.Type() != TypeNil {
				return v, nil
			}
			if tbl.Metatable == nil {
				return Nil, nil
			}
			h := tbl.Metatable.Get(String("__index"))
			if h.Type() == TypeNil {
				return Nil, nil
			}
			if hf, ok := h.(*Function); ok {
				res, err := invoke(l, hf, []Value{t, key}, 1)
				if err != nil {
					return nil, err
				}
				if len(res) > 0 {
					return res[0], nil
				}
				return Nil, nil
			}
			t = h
			continue
		}
		mt := metatableOf(t)
		if mt == nil {
			return nil, lineErrf(l, line, "attempt to index a %s value", t.Type())
		}
		h := mt.Get(String("__index"))
		if h.Type() == TypeNil {
			return nil, lineErrf(l, line, "attempt to index a %s value", t.Type())
		}
		if ht, ok := h.(*Table); ok {
			return ht.Get(key), nil
		}
		if hf, ok := h.(*Function); ok {
			res, err := invoke(l, hf, []Value{t, key}, 1)
			if err != nil {
				return nil, err
			}
			if len(res) > 0 {
				return res[0], nil
			}
			return Nil, nil
		}
		t = h
	}
	return nil, lineErrf(l, line, "'__index' chain too long; possible loop")
}

// newindex implements SETTABLE/SETTABUP, including __newindex dispatch.
func (l *LState) newindex(t, key, val Value, line int) error {
	if tbl, ok := t.(*Table); ok {
		if tbl.Get(key).Type() != TypeNil || tbl.Metatable == nil {
			tbl.Set(key, val)
			return nil
		}
		h := tbl.Metatable.Get(String("__newindex"))
		if h.Type() == TypeNil {
			tbl.Set(key, val)
			return nil
		}
		if hf, ok := h.(*Function); ok {
			_, err := invoke(l, hf, []Value{t, key, val}, 0)
			return err
		}
		return l.newindex(h, key, val, line)
	}
	mt := metatableOf(t)
	if mt == nil {
		return lineErrf(l, line, "attempt to index a %s value", t.Type())
	}
	h := mt.Get(String("__newindex"))
	if h.Type() == TypeNil {
		return lineErrf(l, line, "attempt to index a %s value", t.Type())
	}
	if hf, ok := h.(*Function); ok {
		_, err := invoke(l, hf, []Value{t, key, val}, 0)
		return err
	}
	return l.newindex(h, key, val, line)
}

// arith implements ADD/SUB/MUL/DIV/MOD/POW with mixed-type rules:
// integer+integer stays integer (widened to int64 for overflow
// detection then demoted), any Number
// operand promotes, division is always Number, modulo follows floored
// division.
func (l *LState) arith(op opcode, a, b Value, line int) (Value, error) {
	ai, aIsInt := a.(Int)
	bi, bIsInt := b.(Int)
	if aIsInt && bIsInt && op != OP_DIV && op != OP_POW {
		x, y := int64(ai), int64(bi)
		var r int64
		switch op {
		case OP_ADD:
			r = x + y
		case OP_SUB:
			r = x - y
		case OP_MUL:
			r = x * y
		case OP_MOD:
			if y == 0 {
				return nil, lineErrf(l, line, "attempt to perform 'n%%0'")
			}
			r = x - y*int64(math.Floor(float64(x)/float64(y)))
		}
		if r >= math.MinInt32 && r <= math.MaxInt32 {
			return Int(int32(r)), nil
		}
		return Number(float64(r)), nil
	}
	an, aok := ToNumber(a)
	bn, bok := ToNumber(b)
	if !aok {
		return l.arithMeta(op, a, b, line, a)
	}
	if !bok {
		return l.arithMeta(op, a, b, line, b)
	}
	x, y := float64(an), float64(bn)
	switch op {
	case OP_ADD:
		return Number(x + y), nil
	case OP_SUB:
		return Number(x - y), nil
	case OP_MUL:
		return Number(x * y), nil
	case OP_DIV:
		return Number(x / y), nil
	case OP_MOD:
		return Number(x - y*math.Floor(x/y)), nil
	case OP_POW:
		return Number(math.Pow(x, y)), nil
	}
	return nil, &InternalError{Message: "unreachable arith op"}
}

var arithMetaNames = map[opcode]string{
	OP_ADD: "__add", OP_SUB: "__sub", OP_MUL: "__mul", OP_DIV: "__div",
	OP_MOD: "__mod", OP_POW: "__pow",
}

func (l *LState) arithMeta(op opcode, a, b Value, line int, bad Value) (Value, error) {
	for _, operand := range []Value{a, b} {
		mt := metatableOf(operand)
		if mt == nil {
			continue
		}
		h := mt.Get(String(arithMetaNames[op]))
		if h.Type() == TypeNil {
			continue
		}
		if hf, ok := h.(*Function); ok {
			res, err := invoke(l, hf, []Value{a, b}, 1)
			if err != nil {
				return nil, err
			}
			if len(res) > 0 {
				return res[0], nil
			}
			return Nil, nil
		}
	}
	return nil, lineErrf(l, line, "attempt to perform arithmetic on a %s value", bad.Type())
}

func (l *LState) unm(v Value, line int) (Value, error) {
	switch x := v.(type) {
	case Int:
		return Int(-x), nil
	case Number:
		return Number(-x), nil
	}
	if n, ok := ToNumber(v); ok {
		return Number(-n), nil
	}
	if mt := metatableOf(v); mt != nil {
		if h := mt.Get(String("__unm")); h.Type() != TypeNil {
			if hf, ok := h.(*Function); ok {
				res, err := invoke(l, hf, []Value{v, v}, 1)
				if err != nil {
					return nil, err
				}
				if len(res) > 0 {
					return res[0], nil
				}
				return Nil, nil
			}
		}
	}
	return nil, lineErrf(l, line, "attempt to perform arithmetic on a %s value", v.Type())
}

func (l *LState) length(v Value, line int) (Value, error) {
	switch x := v.(type) {
	case String:
		return Int(len(x)), nil
	case *Table:
		if x.Metatable != nil {
			if h := x.Metatable.Get(String("__len")); h.Type() != TypeNil {
				if hf, ok := h.(*Function); ok {
					res, err := invoke(l, hf, []Value{v}, 1)
					if err != nil {
						return nil, err
					}
					if len(res) > 0 {
						return res[0], nil
					}
				}
			}
		}
		return Int(x.Len()), nil
	}
	return nil, lineErrf(l, line, "attempt to get length of a %s value", v.Type())
}

// concatRange implements CONCAT over R(B..C): materializes
// right-to-left, failing with StringLimitExceeded the instant the running
// total would exceed the worker's MaxStringSize.
func (l *LState) concatRange(cf *callFrame, b, c int, line int) (Value, error) {
	limit := l.limiter.MaxStringSize()
	parts := make([]string, 0, c-b+1)
	total := 0
	for i := c; i >= b; i-- {
		v := l.reg.Get(cf.base + i)
		s, ok := concatOperand(v)
		if !ok {
			s2, err := l.concatMeta(v, line)
			if err != nil {
				return nil, err
			}
			s = s2
		}
		total += len(s)
		if limit > 0 && total > limit {
			panic(&StringLimitExceeded{Max: limit})
		}
		parts = append(parts, s)
	}
	var sb strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		sb.WriteString(parts[i])
	}
	return String(sb.String()), nil
}

func (l *LState) concatMeta(v Value, line int) (string, error) {
	if mt := metatableOf(v); mt != nil {
		if h := mt.Get(String("__concat")); h.Type() != TypeNil {
			if hf, ok := h.(*Function); ok {
				res, err := invoke(l, hf, []Value{v, v}, 1)
				if err != nil {
					return "", err
				}
				if len(res) > 0 {
					if s, ok := concatOperand(res[0]); ok {
						return s, nil
					}
				}
			}
		}
	}
	return "", lineErrf(l, line, "attempt to concatenate a %s value", v.Type())
}

func concatOperand(v Value) (string, bool) {
	switch x := v.(type) {
	case String:
		return string(x), true
	case Int:
		return x.String(), true
	case Number:
		return x.String(), true
	}
	return "", false
}

// compare implements EQ/LT/LE including __eq/__lt/__le dispatch.
func (l *LState) compare(op opcode, a, b Value, line int) (bool, error) {
	if op == OP_EQ {
		if rawEqual(a, b) {
			return true, nil
		}
		at, bt := a.Type(), b.Type()
		if at == TypeTable && bt == TypeTable {
			amt, bmt := a.(*Table).Metatable, b.(*Table).Metatable
			for _, mt := range []*Table{amt, bmt} {
				if mt == nil {
					continue
				}
				if h := mt.Get(String("__eq")); h.Type() != TypeNil {
					if hf, ok := h.(*Function); ok {
						res, err := invoke(l, hf, []Value{a, b}, 1)
						if err != nil {
							return false, err
						}
						return len(res) > 0 && IsTruthy(res[0]), nil
					}
				}
			}
		}
		return false, nil
	}

	an, aok := numericOperand(a)
	bn, bok := numericOperand(b)
	if aok && bok {
		if op == OP_LT {
			return an < bn, nil
		}
		return an <= bn, nil
	}
	as, aIsStr := a.(String)
	bs, bIsStr := b.(String)
	if aIsStr && bIsStr {
		if op == OP_LT {
			return as < bs, nil
		}
		return as <= bs, nil
	}
	name := "__lt"
	if op == OP_LE {
		name = "__le"
	}
	for _, v := range []Value{a, b} {
		if mt := metatableOf(v); mt != nil {
			if h := mt.Get(String(name)); h.Type() != TypeNil {
				if hf, ok := h.(*Function); ok {
					res, err := invoke(l, hf, []Value{a, b}, 1)
					if err != nil {
						return false, err
					}
					return len(res) > 0 && IsTruthy(res[0]), nil
				}
			}
		}
	}
	return false, lineErrf(l, line, "attempt to compare %s with %s", a.Type(), b.Type())
}

func numericOperand(v Value) (float64, bool) {
	switch x := v.(type) {
	case Int:
		return float64(x), true
	case Number:
		return float64(x), true
	}
	return 0, false
}
