package compiler

import lua "github.com/empirephoenix/hardened-lua"

// functionStat parses the `function Name.field:method(...) ... end`
// statement sugar: resolves the target as a chain of indexing ops and
// assigns the resulting closure, injecting an implicit `self` parameter
// for colon (method) syntax.
func (p *parser) functionStat() error {
	line := p.tok.line
	if err := p.nextToken(); err != nil {
		return err
	}
	name := p.tok.literal
	if err := p.expect(tokName); err != nil {
		return err
	}
	target := p.resolveName(name, line)
	isMethod := false
	for p.tok.typ == tokDot || p.tok.typ == tokColon {
		isMethod = p.tok.typ == tokColon
		if err := p.nextToken(); err != nil {
			return err
		}
		field := p.tok.literal
		if err := p.expect(tokName); err != nil {
			return err
		}
		k := p.fs.addConst(lua.String(field))
		target = p.indexed(target, constExpr(k, line), line)
		if isMethod {
			break
		}
	}
	proto, err := p.functionBody(line, isMethod)
	if err != nil {
		return err
	}
	pidx := len(p.fs.protos)
	p.fs.protos = append(p.fs.protos, proto)
	dst := p.fs.reserveReg(1)
	p.fs.emitABx(lua.OpClosure, dst, pidx, line)
	p.assignTo(target, dst, line)
	p.fs.freeTo(dst)
	return nil
}

// assignTo stores the value held in valReg into the location named by
// target (a local, upvalue, global, or indexed expr previously produced
// by resolveName/indexed).
func (p *parser) assignTo(target expr, valReg int, line int) {
	switch target.kind {
	case expLocal:
		if target.info != valReg {
			p.fs.emitABC(lua.OpMove, target.info, valReg, 0, line)
		}
	case expUpval:
		p.fs.emitABC(lua.OpSetUpval, valReg, target.info, 0, line)
	case expGlobal:
		p.fs.emitSetGlobal(target.str, valReg, line)
	case expIndexed:
		key := p.fs.keyRK(target)
		p.fs.emitABC(lua.OpSetTable, target.info, key, valReg, line)
	}
}

// functionBody parses `(params, ...) block end` and returns the compiled
// Prototype, pushing/popping a nested funcState for the duration.
func (p *parser) functionBody(line int, isMethod bool) (*lua.Prototype, error) {
	fs := newFuncState(p.fs, p.source, line)
	p.fs = fs
	if isMethod {
		fs.declareLocal("self")
	}
	if err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	isVararg := false
	numParams := 0
	if p.tok.typ != tokRParen {
		for {
			if p.tok.typ == tokEllipsis {
				isVararg = true
				if err := p.nextToken(); err != nil {
					return nil, err
				}
				break
			}
			pname := p.tok.literal
			if err := p.expect(tokName); err != nil {
				return nil, err
			}
			fs.declareLocal(pname)
			numParams++
			if p.tok.typ != tokComma {
				break
			}
			if err := p.nextToken(); err != nil {
				return nil, err
			}
		}
	}
	if err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	fs.isVararg = isVararg
	if err := p.block(); err != nil {
		return nil, err
	}
	endLine := p.tok.line
	if err := p.expect(tokEnd); err != nil {
		return nil, err
	}
	if len(fs.code) == 0 || lua.DecodeOp(fs.code[len(fs.code)-1]) != lua.OpReturn {
		fs.emitABC(lua.OpReturn, 0, 1, 0, endLine)
	}
	if len(fs.gotoList) > 0 {
		g := fs.gotoList[0]
		p.fs = fs.parent
		return nil, &lua.CompileError{Source: p.source, Line: g.line, Message: "no visible label '" + g.name + "' for goto"}
	}
	proto := fs.toPrototype(numParams, isVararg, endLine)
	p.fs = fs.parent
	return proto, nil
}

// exprStat parses either a function-call statement or a (possibly
// multiple) assignment `var {',' var} '=' exprlist`.
func (p *parser) exprStat() error {
	line := p.tok.line
	stmtBase := p.fs.freereg
	first, err := p.suffixedExpr()
	if err != nil {
		return err
	}
	if p.tok.typ != tokAssign && p.tok.typ != tokComma {
		if first.kind != expCall {
			return p.errf("syntax error near '%s'", p.tok.typ)
		}
		// bare call statement: discard all results.
		inst := p.fs.code[first.pc]
		p.fs.code[first.pc] = lua.EncodeABC(lua.DecodeOp(inst), lua.DecodeA(inst), lua.DecodeB(inst), 1)
		return nil
	}
	targets := []expr{first}
	for p.tok.typ == tokComma {
		if err := p.nextToken(); err != nil {
			return err
		}
		t, err := p.suffixedExpr()
		if err != nil {
			return err
		}
		targets = append(targets, t)
	}
	if err := p.expect(tokAssign); err != nil {
		return err
	}
	listBase := p.fs.freereg
	exprs, err := p.exprList()
	if err != nil {
		return err
	}
	for _, t := range targets {
		if t.kind != expLocal && t.kind != expUpval && t.kind != expGlobal && t.kind != expIndexed {
			return &lua.CompileError{Source: p.source, Line: line, Message: "cannot assign to this expression"}
		}
	}
	base := p.adjustAssign(listBase, exprs, len(targets))
	for i, t := range targets {
		p.assignTo(t, base+i, line)
	}
	p.fs.freeTo(stmtBase)
	return nil
}
