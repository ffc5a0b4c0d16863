package compiler

import (
	lua "github.com/empirephoenix/hardened-lua"
)

// binPrec gives left-binding-power for each binary operator; right-assoc
// operators (^, ..) consume a power level lower on the right (// "correct precedence and right-associativity for ^ and ..").
var binPrec = map[tokenType]int{
	tokOr: 1, tokAnd: 2,
	tokLt: 3, tokGt: 3, tokLe: 3, tokGe: 3, tokNe: 3, tokEq: 3,
	tokConcat: 4,
	tokPlus:   5, tokMinus: 5,
	tokStar: 6, tokSlash: 6, tokPercent: 6,
	tokCaret: 8,
}

const unaryPrec = 7

func (p *parser) expression() (expr, error) {
	return p.subexpr(0)
}

func (p *parser) subexpr(limit int) (expr, error) {
	var left expr
	var err error
	switch p.tok.typ {
	case tokNot, tokMinus, tokHash:
		op := p.tok.typ
		line := p.tok.line
		if err := p.nextToken(); err != nil {
			return expr{}, err
		}
		operand, err := p.subexpr(unaryPrec)
		if err != nil {
			return expr{}, err
		}
		left, err = p.emitUnary(op, operand, line)
		if err != nil {
			return expr{}, err
		}
	default:
		left, err = p.simpleExpr()
		if err != nil {
			return expr{}, err
		}
	}
	for {
		prec, ok := binPrec[p.tok.typ]
		if !ok || prec <= limit {
			break
		}
		op := p.tok.typ
		line := p.tok.line
		if err := p.nextToken(); err != nil {
			return expr{}, err
		}
		nextLimit := prec
		if op == tokCaret || op == tokConcat {
			nextLimit = prec - 1
		}
		right, err := p.subexpr(nextLimit)
		if err != nil {
			return expr{}, err
		}
		left, err = p.emitBinary(op, left, right, line)
		if err != nil {
			return expr{}, err
		}
	}
	return left, nil
}

func (p *parser) emitUnary(op tokenType, e expr, line int) (expr, error) {
	switch op {
	case tokNot:
		r := p.fs.exprToAnyReg(e)
		p.fs.freeTo(r)
		dst := p.fs.reserveReg(1)
		p.fs.emitABC(lua.OpNot, dst, r, 0, line)
		return regExpr(dst), nil
	case tokMinus:
		r := p.fs.exprToAnyReg(e)
		p.fs.freeTo(r)
		dst := p.fs.reserveReg(1)
		p.fs.emitABC(lua.OpUnm, dst, r, 0, line)
		return regExpr(dst), nil
	case tokHash:
		r := p.fs.exprToAnyReg(e)
		p.fs.freeTo(r)
		dst := p.fs.reserveReg(1)
		p.fs.emitABC(lua.OpLen, dst, r, 0, line)
		return regExpr(dst), nil
	}
	return expr{}, p.errf("unreachable unary op")
}

var arithOp = map[tokenType]lua.Op{
	tokPlus: lua.OpAdd, tokMinus: lua.OpSub, tokStar: lua.OpMul,
	tokSlash: lua.OpDiv, tokPercent: lua.OpMod, tokCaret: lua.OpPow,
}

func (p *parser) emitBinary(op tokenType, left, right expr, line int) (expr, error) {
	switch op {
	case tokAnd:
		return p.shortCircuit(left, right, true, line)
	case tokOr:
		return p.shortCircuit(left, right, false, line)
	case tokConcat:
		return p.emitConcat(left, right, line)
	case tokEq, tokNe, tokLt, tokLe, tokGt, tokGe:
		return p.emitCompare(op, left, right, line)
	}
	if vmOp, ok := arithOp[op]; ok {
		mark := p.rkMark()
		b := p.fs.exprToRK(left)
		c := p.fs.exprToRK(right)
		p.freeRKTo(mark)
		dst := p.fs.reserveReg(1)
		p.fs.emitABC(vmOp, dst, b, c, line)
		return regExpr(dst), nil
	}
	return expr{}, p.errf("unsupported operator '%s'", op)
}

// rkMark/freeRKTo bound the lifetime of any temporary register exprToRK
// had to materialize: snapshot freereg before computing RK operands, free
// back to it once the instruction consuming them has been emitted. This is
// needed because exprToRK may discharge an indexed/global/upvalue operand
// into a fresh register that no longer matches the original expr's kind.
func (p *parser) rkMark() int { return p.fs.freereg }

func (p *parser) freeRKTo(mark int) { p.fs.freeTo(mark) }

// shortCircuit compiles `and`/`or` via TESTSET, matching lcode.c's
// approach: evaluate left, test it, and either keep it (short-circuit) or
// fall through to evaluate+keep right, all materialized into one register.
func (p *parser) shortCircuit(left, right expr, isAnd bool, line int) (expr, error) {
	r := p.fs.exprToAnyReg(left)
	p.fs.freeTo(r)
	dst := p.fs.reserveReg(1)
	p.fs.dischargeTo(regExpr(r), dst)
	want := 0
	if !isAnd {
		want = 1
	}
	p.fs.emitABC(lua.OpTestSet, dst, dst, want, line)
	jmp := p.fs.emitJmp(0, line)
	p.fs.freeTo(dst)
	p.fs.exprToReg(right, dst)
	p.fs.patchToHere(jmp)
	return regExpr(dst), nil
}

func (p *parser) emitConcat(left, right expr, line int) (expr, error) {
	// concatRange reads registers [b,c] inclusive in the current frame, so
	// both operands are copied into two fresh adjacent registers above any
	// temporaries they still occupy.
	dst := p.fs.reserveReg(2)
	lo := dst
	p.fs.exprToReg(left, lo)
	p.fs.exprToReg(right, lo+1)
	p.fs.emitABC(lua.OpConcat, dst, lo, lo+1, line)
	p.fs.freeTo(dst + 1)
	return regExpr(dst), nil
}

func (p *parser) emitCompare(op tokenType, left, right expr, line int) (expr, error) {
	mark := p.rkMark()
	b := p.fs.exprToRK(left)
	c := p.fs.exprToRK(right)
	p.freeRKTo(mark)
	var vmOp lua.Op
	a := 0
	switch op {
	case tokEq:
		vmOp = lua.OpEq
	case tokNe:
		vmOp = lua.OpEq
		a = 1
	case tokLt:
		vmOp = lua.OpLt
	case tokGt:
		vmOp, b, c = lua.OpLt, c, b
	case tokLe:
		vmOp = lua.OpLe
	case tokGe:
		vmOp, b, c = lua.OpLe, c, b
	}
	p.fs.emitABC(vmOp, a, b, c, line)
	jmpFalse := p.fs.emitJmp(0, line)
	dst := p.fs.reserveReg(1)
	p.fs.emitABC(lua.OpLoadBool, dst, 1, 0, line)
	jmpEnd := p.fs.emitJmp(0, line)
	p.fs.patchToHere(jmpFalse)
	p.fs.emitABC(lua.OpLoadBool, dst, 0, 0, line)
	p.fs.patchToHere(jmpEnd)
	return regExpr(dst), nil
}

func (p *parser) simpleExpr() (expr, error) {
	line := p.tok.line
	switch p.tok.typ {
	case tokNumber:
		t := p.tok
		if err := p.nextToken(); err != nil {
			return expr{}, err
		}
		var k int
		if t.isInt {
			k = p.fs.addConst(lua.Int(t.ival))
		} else {
			k = p.fs.addConst(lua.Number(t.num))
		}
		return expr{kind: expConst, info: k, line: line}, nil
	case tokString:
		s := p.tok.literal
		if err := p.nextToken(); err != nil {
			return expr{}, err
		}
		k := p.fs.addConst(lua.String(s))
		return expr{kind: expConst, info: k, line: line}, nil
	case tokNil:
		if err := p.nextToken(); err != nil {
			return expr{}, err
		}
		return expr{kind: expNil, line: line}, nil
	case tokTrue:
		if err := p.nextToken(); err != nil {
			return expr{}, err
		}
		return expr{kind: expTrue, line: line}, nil
	case tokFalse:
		if err := p.nextToken(); err != nil {
			return expr{}, err
		}
		return expr{kind: expFalse, line: line}, nil
	case tokEllipsis:
		if err := p.nextToken(); err != nil {
			return expr{}, err
		}
		if !p.fs.isVararg {
			return expr{}, p.errf("cannot use '...' outside a vararg function")
		}
		dst := p.fs.reserveReg(1)
		pc := p.fs.emitABC(lua.OpVararg, dst, 2, 0, line)
		return expr{kind: expVararg, info: dst, pc: pc, line: line}, nil
	case tokLBrace:
		return p.tableConstructor()
	case tokFunction:
		if err := p.nextToken(); err != nil {
			return expr{}, err
		}
		proto, err := p.functionBody(line, false)
		if err != nil {
			return expr{}, err
		}
		pidx := len(p.fs.protos)
		p.fs.protos = append(p.fs.protos, proto)
		dst := p.fs.reserveReg(1)
		p.fs.emitABx(lua.OpClosure, dst, pidx, line)
		return regExpr(dst), nil
	default:
		return p.suffixedExpr()
	}
}

// primaryExpr resolves a bare name or a parenthesized expression, the
// root of a suffixedExpr chain.
func (p *parser) primaryExpr() (expr, error) {
	line := p.tok.line
	switch p.tok.typ {
	case tokLParen:
		if err := p.nextToken(); err != nil {
			return expr{}, err
		}
		e, err := p.expression()
		if err != nil {
			return expr{}, err
		}
		if err := p.expect(tokRParen); err != nil {
			return expr{}, err
		}
		// parens truncate a call/vararg to exactly one value.
		if e.kind == expCall || e.kind == expVararg {
			r := p.fs.exprToAnyReg(e)
			return regExpr(r), nil
		}
		return e, nil
	case tokName:
		name := p.tok.literal
		if err := p.nextToken(); err != nil {
			return expr{}, err
		}
		return p.resolveName(name, line), nil
	}
	return expr{}, p.errf("unexpected symbol near '%s'", p.tok.typ)
}

func (p *parser) resolveName(name string, line int) expr {
	if reg, ok := p.fs.resolveLocal(name); ok {
		return expr{kind: expLocal, info: reg, line: line}
	}
	if idx, ok := p.fs.resolveUpval(name); ok {
		return expr{kind: expUpval, info: idx, line: line}
	}
	return expr{kind: expGlobal, str: name, line: line}
}

// suffixedExpr parses a primary expression followed by any chain of
// `.name`, `[expr]`, `:name(args)`, and `(args)` suffixes.
func (p *parser) suffixedExpr() (expr, error) {
	e, err := p.primaryExpr()
	if err != nil {
		return expr{}, err
	}
	for {
		line := p.tok.line
		switch p.tok.typ {
		case tokDot:
			if err := p.nextToken(); err != nil {
				return expr{}, err
			}
			name := p.tok.literal
			if err := p.expect(tokName); err != nil {
				return expr{}, err
			}
			e = p.indexed(e, constExpr(p.fs.addConst(lua.String(name)), line), line)
		case tokLBracket:
			if err := p.nextToken(); err != nil {
				return expr{}, err
			}
			key, err := p.expression()
			if err != nil {
				return expr{}, err
			}
			if err := p.expect(tokRBracket); err != nil {
				return expr{}, err
			}
			e = p.indexed(e, key, line)
		case tokColon:
			if err := p.nextToken(); err != nil {
				return expr{}, err
			}
			name := p.tok.literal
			if err := p.expect(tokName); err != nil {
				return expr{}, err
			}
			e, err = p.methodCall(e, name, line)
			if err != nil {
				return expr{}, err
			}
		case tokLParen, tokString, tokLBrace:
			e, err = p.call(e, line)
			if err != nil {
				return expr{}, err
			}
		default:
			return e, nil
		}
	}
}

func constExpr(idx, line int) expr { return expr{kind: expConst, info: idx, line: line} }

func (p *parser) indexed(obj, key expr, line int) expr {
	r := p.fs.exprToAnyReg(obj)
	if key.kind == expConst && key.info <= lua.MaxArgC>>1 {
		return expr{kind: expIndexed, info: r, keyK: true, keyC: lua.RKConst(key.info), line: line}
	}
	kr := p.fs.exprToAnyReg(key)
	return expr{kind: expIndexed, info: r, keyK: false, keyR: kr, line: line}
}

// call parses the argument list following a prefix expression and emits
// the CALL instruction; obj must already be discharged to a register
// adjacent to where args are laid out (function convention: fn at reg,
// args at reg+1..).
func (p *parser) call(fn expr, line int) (expr, error) {
	fnReg := p.fs.exprToAnyReg(fn)
	p.fs.freeTo(fnReg)
	base := p.fs.reserveReg(1)
	if fnReg != base {
		p.fs.emitABC(lua.OpMove, base, fnReg, 0, line)
	}
	args, err := p.argList()
	if err != nil {
		return expr{}, err
	}
	n, multi := p.dischargeList(base+1, args, -1)
	b := n + 1
	if multi {
		b = 0
	}
	p.fs.freeTo(base + 1)
	pc := p.fs.emitABC(lua.OpCall, base, b, 2, line)
	return expr{kind: expCall, info: base, pc: pc, line: line}, nil
}

func (p *parser) methodCall(obj expr, name string, line int) (expr, error) {
	objReg := p.fs.exprToAnyReg(obj)
	p.fs.freeTo(objReg)
	base := p.fs.reserveReg(2)
	if objReg != base+1 {
		p.fs.emitABC(lua.OpMove, base+1, objReg, 0, line)
	}
	k := p.fs.addConst(lua.String(name))
	p.fs.emitABC(lua.OpSelf, base, base+1, lua.RKConst(k), line)
	args, err := p.argList()
	if err != nil {
		return expr{}, err
	}
	n, multi := p.dischargeList(base+2, args, -1)
	b := n + 2
	if multi {
		b = 0
	}
	p.fs.freeTo(base + 2)
	pc := p.fs.emitABC(lua.OpCall, base, b, 2, line)
	return expr{kind: expCall, info: base, pc: pc, line: line}, nil
}

func (p *parser) argList() ([]expr, error) {
	switch p.tok.typ {
	case tokLParen:
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		if p.tok.typ == tokRParen {
			if err := p.nextToken(); err != nil {
				return nil, err
			}
			return nil, nil
		}
		args, err := p.exprList()
		if err != nil {
			return nil, err
		}
		return args, p.expect(tokRParen)
	case tokString:
		s := p.tok.literal
		line := p.tok.line
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		k := p.fs.addConst(lua.String(s))
		return []expr{constExpr(k, line)}, nil
	case tokLBrace:
		e, err := p.tableConstructor()
		if err != nil {
			return nil, err
		}
		return []expr{e}, nil
	}
	return nil, p.errf("function arguments expected")
}

// tableConstructor builds `{ ... }`: positional entries append via
// SETLIST, keyed entries (`[k]=v` or `name=v`) emit SETTABLE directly.
func (p *parser) tableConstructor() (expr, error) {
	line := p.tok.line
	if err := p.expect(tokLBrace); err != nil {
		return expr{}, err
	}
	tReg := p.fs.reserveReg(1)
	newTablePc := p.fs.emitABC(lua.OpNewTable, tReg, 0, 0, line)
	arrayCount := 0
	pending := []expr{}
	flush := func(lastMulti bool) {
		if len(pending) == 0 {
			return
		}
		n, multi := p.dischargeList(tReg+1, pending, boolToWant(lastMulti))
		b := n
		if multi {
			b = 0
		}
		p.fs.emitABC(lua.OpSetList, tReg, b, arrayCount, line)
		if !multi {
			arrayCount += n
		}
		p.fs.freeTo(tReg + 1)
		pending = nil
	}
	for p.tok.typ != tokRBrace {
		switch {
		case p.tok.typ == tokLBracket:
			flush(false)
			if err := p.nextToken(); err != nil {
				return expr{}, err
			}
			key, err := p.expression()
			if err != nil {
				return expr{}, err
			}
			if err := p.expect(tokRBracket); err != nil {
				return expr{}, err
			}
			if err := p.expect(tokAssign); err != nil {
				return expr{}, err
			}
			val, err := p.expression()
			if err != nil {
				return expr{}, err
			}
			mark := p.rkMark()
			kRK := p.fs.exprToRK(key)
			vRK := p.fs.exprToRK(val)
			p.fs.emitABC(lua.OpSetTable, tReg, kRK, vRK, line)
			p.freeRKTo(mark)
		case p.tok.typ == tokName && p.isAssignField():
			flush(false)
			name := p.tok.literal
			if err := p.nextToken(); err != nil {
				return expr{}, err
			}
			if err := p.expect(tokAssign); err != nil {
				return expr{}, err
			}
			val, err := p.expression()
			if err != nil {
				return expr{}, err
			}
			k := p.fs.addConst(lua.String(name))
			mark := p.rkMark()
			vRK := p.fs.exprToRK(val)
			p.fs.emitABC(lua.OpSetTable, tReg, lua.RKConst(k), vRK, line)
			p.freeRKTo(mark)
		default:
			// the previous positional item goes to its SETLIST slot before
			// the next one is parsed, so each lands at tReg+1+index.
			if n := len(pending); n > 0 {
				p.fs.freeTo(tReg + n)
				p.fs.exprToReg(pending[n-1], p.fs.reserveReg(1))
				pending[n-1] = regExpr(tReg + n)
			}
			val, err := p.expression()
			if err != nil {
				return expr{}, err
			}
			pending = append(pending, val)
			if len(pending) >= 50 {
				flush(false)
			}
		}
		if p.tok.typ == tokComma || p.tok.typ == tokSemi {
			if err := p.nextToken(); err != nil {
				return expr{}, err
			}
		} else {
			break
		}
	}
	lastIsMulti := len(pending) > 0 && (pending[len(pending)-1].kind == expCall || pending[len(pending)-1].kind == expVararg)
	flush(lastIsMulti)
	if err := p.expect(tokRBrace); err != nil {
		return expr{}, err
	}
	_ = newTablePc
	return regExpr(tReg), nil
}

func boolToWant(multi bool) int {
	if multi {
		return -1
	}
	return 0
}

func (p *parser) isAssignField() bool {
	t, err := p.peekAhead()
	if err != nil {
		return false
	}
	return t.typ == tokAssign
}
