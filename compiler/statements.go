package compiler

import lua "github.com/empirephoenix/hardened-lua"

// exprList parses a comma-separated expression list. Every element but the
// last is immediately discharged into the next free register as it is
// parsed (matching lparser.c's explist/luaK_exp2nextreg), so the returned
// slice's non-final elements are already laid out contiguously starting
// wherever freereg stood when exprList was entered; only the final element
// is left undischarged, for the caller to decide single-value vs multret.
func (p *parser) exprList() ([]expr, error) {
	start := p.fs.freereg
	e, err := p.expression()
	if err != nil {
		return nil, err
	}
	list := []expr{e}
	for p.tok.typ == tokComma {
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		p.fs.freeTo(start + len(list) - 1)
		r := p.fs.reserveReg(1)
		p.fs.exprToReg(list[len(list)-1], r)
		list[len(list)-1] = regExpr(r)
		e, err := p.expression()
		if err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, nil
}

// adjustAssign lays out exprs into exactly nvars consecutive registers
// starting at base (the freereg value from before exprs was parsed),
// expanding a trailing call/vararg and padding with nil as needed (Lua's
// assignment-adjustment rule).
func (p *parser) adjustAssign(base int, exprs []expr, nvars int) int {
	if len(exprs) == 0 {
		p.fs.reserveReg(nvars)
		p.fs.emitABC(lua.OpLoadNil, base, nvars-1, 0, p.tok.line)
		return base
	}
	produced := len(exprs)
	last := exprs[produced-1]
	if produced > nvars {
		// surplus expressions (including possibly `last`) already ran for
		// their side effects during parsing; just discard their registers.
		p.fs.freeTo(base + nvars)
		return base
	}
	if last.kind == expCall || last.kind == expVararg {
		p.fs.forceMultretN(last, nvars-produced+1)
		produced = nvars
	} else {
		p.fs.freeTo(base + produced - 1)
		r := p.fs.reserveReg(1)
		p.fs.exprToReg(last, r)
	}
	if produced < nvars {
		fillBase := base + produced
		n := nvars - produced
		p.fs.reserveReg(n)
		p.fs.emitABC(lua.OpLoadNil, fillBase, n-1, 0, p.tok.line)
	}
	return base
}

// forceMultretN rewrites a call/vararg instruction to produce exactly want
// results (want>=1) instead of one, reserving the extra registers.
func (fs *funcState) forceMultretN(e expr, want int) {
	if want <= 1 {
		return
	}
	fs.reserveReg(want - 1)
	inst := fs.code[e.pc]
	a := lua.DecodeA(inst)
	switch e.kind {
	case expCall:
		fs.code[e.pc] = lua.EncodeABC(lua.DecodeOp(inst), a, lua.DecodeB(inst), want+1)
	case expVararg:
		fs.code[e.pc] = lua.EncodeABC(lua.DecodeOp(inst), a, want+1, 0)
	}
}

func (p *parser) ifStat() error {
	var endJumps []int
	line := p.tok.line
	if err := p.nextToken(); err != nil {
		return err
	}
	for {
		cond, err := p.expression()
		if err != nil {
			return err
		}
		falsePc := p.jumpIfFalse(cond)
		if err := p.expect(tokThen); err != nil {
			return err
		}
		mark := p.fs.enterBlock()
		if err := p.block(); err != nil {
			return err
		}
		p.fs.leaveBlock(mark)
		if p.tok.typ == tokElseif || p.tok.typ == tokElse {
			endJumps = append(endJumps, p.fs.emitJmp(0, line))
		}
		p.fs.patchToHere(falsePc)
		if p.tok.typ == tokElseif {
			if err := p.nextToken(); err != nil {
				return err
			}
			continue
		}
		break
	}
	if p.tok.typ == tokElse {
		if err := p.nextToken(); err != nil {
			return err
		}
		mark := p.fs.enterBlock()
		if err := p.block(); err != nil {
			return err
		}
		p.fs.leaveBlock(mark)
	}
	for _, pc := range endJumps {
		p.fs.patchToHere(pc)
	}
	return p.expect(tokEnd)
}

// jumpIfFalse compiles cond and emits a TEST+JMP pair that falls through
// when cond is truthy and jumps (to be patched) when falsy; returns the
// JMP's pc.
func (p *parser) jumpIfFalse(cond expr) int {
	r := p.fs.exprToAnyReg(cond)
	p.fs.freeTo(r)
	p.fs.emitABC(lua.OpTest, r, 0, 0, cond.line)
	return p.fs.emitJmp(0, cond.line)
}

func (p *parser) whileStat() error {
	line := p.tok.line
	if err := p.nextToken(); err != nil {
		return err
	}
	top := p.fs.here()
	cond, err := p.expression()
	if err != nil {
		return err
	}
	exitPc := p.jumpIfFalse(cond)
	if err := p.expect(tokDo); err != nil {
		return err
	}
	p.fs.breakList = append(p.fs.breakList, nil)
	mark := p.fs.enterBlock()
	if err := p.block(); err != nil {
		return err
	}
	p.fs.leaveBlock(mark)
	p.fs.emitASBx(lua.OpJmp, 0, top-p.fs.here()-1, line)
	p.fs.patchToHere(exitPc)
	p.patchBreaks()
	return p.expect(tokEnd)
}

func (p *parser) repeatStat() error {
	line := p.tok.line
	if err := p.nextToken(); err != nil {
		return err
	}
	top := p.fs.here()
	p.fs.breakList = append(p.fs.breakList, nil)
	mark := p.fs.enterBlock()
	if err := p.block(); err != nil {
		return err
	}
	if err := p.expect(tokUntil); err != nil {
		return err
	}
	cond, err := p.expression()
	if err != nil {
		return err
	}
	r := p.fs.exprToAnyReg(cond)
	p.fs.freeTo(r)
	p.fs.emitABC(lua.OpTest, r, 0, 0, line)
	p.fs.emitASBx(lua.OpJmp, 0, top-p.fs.here()-1, line)
	p.fs.leaveBlock(mark)
	p.patchBreaks()
	return nil
}

func (p *parser) forStat() error {
	line := p.tok.line
	if err := p.nextToken(); err != nil {
		return err
	}
	name := p.tok.literal
	if err := p.expect(tokName); err != nil {
		return err
	}
	if p.tok.typ == tokAssign {
		return p.numericFor(name, line)
	}
	return p.genericFor(name, line)
}

func (p *parser) numericFor(name string, line int) error {
	if err := p.nextToken(); err != nil {
		return err
	}
	initE, err := p.expression()
	if err != nil {
		return err
	}
	if err := p.expect(tokComma); err != nil {
		return err
	}
	limitE, err := p.expression()
	if err != nil {
		return err
	}
	hasStep := false
	var stepE expr
	if p.tok.typ == tokComma {
		if err := p.nextToken(); err != nil {
			return err
		}
		stepE, err = p.expression()
		if err != nil {
			return err
		}
		hasStep = true
	}
	base := p.fs.reserveReg(3)
	p.fs.exprToReg(initE, base)
	p.fs.exprToReg(limitE, base+1)
	if hasStep {
		p.fs.exprToReg(stepE, base+2)
	} else {
		one := p.fs.addConst(lua.Int(1))
		p.fs.emitABx(lua.OpLoadK, base+2, one, line)
	}
	if err := p.expect(tokDo); err != nil {
		return err
	}
	prepPc := p.fs.emitASBx(lua.OpForPrep, base, 0, line)
	p.fs.breakList = append(p.fs.breakList, nil)
	mark := p.fs.enterBlock()
	p.fs.declareLocal(name)
	if err := p.block(); err != nil {
		return err
	}
	p.fs.leaveBlock(mark)
	loopPc := p.fs.emitASBx(lua.OpForLoop, base, 0, line)
	p.fs.patchJmpTo(prepPc, loopPc)
	p.fs.patchJmpTo(loopPc, prepPc+1)
	p.patchBreaks()
	return p.expect(tokEnd)
}

func (p *parser) genericFor(first string, line int) error {
	names := []string{first}
	for p.tok.typ == tokComma {
		if err := p.nextToken(); err != nil {
			return err
		}
		names = append(names, p.tok.literal)
		if err := p.expect(tokName); err != nil {
			return err
		}
	}
	if err := p.expect(tokIn); err != nil {
		return err
	}
	listBase := p.fs.freereg
	exprs, err := p.exprList()
	if err != nil {
		return err
	}
	base := p.adjustAssign(listBase, exprs, 3)
	if err := p.expect(tokDo); err != nil {
		return err
	}
	topPc := p.fs.emitJmp(0, line)
	p.fs.breakList = append(p.fs.breakList, nil)
	mark := p.fs.enterBlock()
	resultBase := p.fs.reserveReg(len(names))
	for i, n := range names {
		p.fs.actLocals = append(p.fs.actLocals, localVar{name: n, reg: resultBase + i})
		p.fs.localsDebug = append(p.fs.localsDebug, lua.LocalVar{Name: n, StartPC: p.fs.here()})
	}
	bodyStart := p.fs.here()
	if err := p.block(); err != nil {
		return err
	}
	p.fs.leaveBlock(mark)
	p.fs.patchToHere(topPc)
	p.fs.emitABC(lua.OpTForCall, base, 0, len(names), line)
	p.fs.emitASBx(lua.OpTForLoop, base+2, bodyStart-p.fs.here()-1, line)
	p.patchBreaks()
	return p.expect(tokEnd)
}

func (p *parser) localStat() error {
	line := p.tok.line
	if err := p.nextToken(); err != nil {
		return err
	}
	if p.tok.typ == tokFunction {
		return p.localFunctionStat(line)
	}
	names := []string{p.tok.literal}
	if err := p.expect(tokName); err != nil {
		return err
	}
	for p.tok.typ == tokComma {
		if err := p.nextToken(); err != nil {
			return err
		}
		names = append(names, p.tok.literal)
		if err := p.expect(tokName); err != nil {
			return err
		}
	}
	listBase := p.fs.freereg
	var exprs []expr
	if p.tok.typ == tokAssign {
		if err := p.nextToken(); err != nil {
			return err
		}
		var err error
		exprs, err = p.exprList()
		if err != nil {
			return err
		}
	}
	base := p.adjustAssign(listBase, exprs, len(names))
	for i, n := range names {
		p.fs.actLocals = append(p.fs.actLocals, localVar{name: n, reg: base + i})
		p.fs.localsDebug = append(p.fs.localsDebug, lua.LocalVar{Name: n, StartPC: p.fs.here()})
	}
	return nil
}

func (p *parser) localFunctionStat(line int) error {
	if err := p.nextToken(); err != nil {
		return err
	}
	name := p.tok.literal
	if err := p.expect(tokName); err != nil {
		return err
	}
	reg := p.fs.declareLocal(name)
	fn, err := p.functionBody(line, false)
	if err != nil {
		return err
	}
	pidx := len(p.fs.protos)
	p.fs.protos = append(p.fs.protos, fn)
	p.fs.emitABx(lua.OpClosure, reg, pidx, line)
	return nil
}
