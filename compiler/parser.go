package compiler

import (
	"fmt"

	lua "github.com/empirephoenix/hardened-lua"
)

// parser is a recursive-descent, precedence-climbing parser that emits
// bytecode directly as it recognizes each construct: there is
// no separate AST retained once a statement or expression has been coded,
// mirroring real Lua's single-pass lparser.c/lcode.c split.
type parser struct {
	lx      *lexer
	tok     token
	ahead   *token
	source  string
	fs      *funcState
	loopTag int // not read; break always targets the innermost fs.breakList entry
}

func newParser(src []byte, source string) (*parser, error) {
	p := &parser{lx: newLexer(src), source: source}
	if err := p.nextToken(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *parser) nextToken() error {
	if p.ahead != nil {
		p.tok = *p.ahead
		p.ahead = nil
		return nil
	}
	t, err := p.lx.next()
	if err != nil {
		return p.lexErr(err)
	}
	p.tok = t
	return nil
}

func (p *parser) peekAhead() (token, error) {
	if p.ahead == nil {
		t, err := p.lx.next()
		if err != nil {
			return token{}, p.lexErr(err)
		}
		p.ahead = &t
	}
	return *p.ahead, nil
}

func (p *parser) lexErr(err error) error {
	if le, ok := err.(*lexError); ok {
		return &lua.CompileError{Source: p.source, Line: le.line, Message: le.message}
	}
	return err
}

func (p *parser) errf(format string, args ...interface{}) error {
	return &lua.CompileError{Source: p.source, Line: p.tok.line, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(t tokenType) error {
	if p.tok.typ != t {
		return p.errf("'%s' expected near '%s'", t, p.tok.typ)
	}
	return p.nextToken()
}

func (p *parser) accept(t tokenType) (bool, error) {
	if p.tok.typ == t {
		return true, p.nextToken()
	}
	return false, nil
}

// Compile implements lua.Compiler: parse source as a vararg top-level
// chunk and return its Prototype.
func Compile(source []byte, chunkName string) (*lua.Prototype, error) {
	p, err := newParser(source, chunkName)
	if err != nil {
		return nil, err
	}
	p.fs = newFuncState(nil, chunkName, 0)
	p.fs.isVararg = true
	if err := p.block(); err != nil {
		return nil, err
	}
	if p.tok.typ != tokEOF {
		return nil, p.errf("'<eof>' expected near '%s'", p.tok.typ)
	}
	p.fs.emitABC(lua.OpReturn, 0, 1, 0, p.tok.line)
	if len(p.fs.gotoList) > 0 {
		g := p.fs.gotoList[0]
		return nil, &lua.CompileError{Source: chunkName, Line: g.line, Message: "no visible label '" + g.name + "' for goto"}
	}
	return p.fs.toPrototype(0, true, p.tok.line), nil
}

// GoCompiler adapts Compile to the lua.Compiler interface for
// lua.Globals{Options.Compiler: compiler.GoCompiler{}}.
type GoCompiler struct{}

func (GoCompiler) Compile(source []byte, chunkName string) (*lua.Prototype, error) {
	return Compile(source, chunkName)
}

func blockFollow(t tokenType) bool {
	switch t {
	case tokEOF, tokEnd, tokElse, tokElseif, tokUntil:
		return true
	}
	return false
}

func (p *parser) block() error {
	for !blockFollow(p.tok.typ) {
		if p.tok.typ == tokReturn {
			return p.returnStat()
		}
		if err := p.statement(); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) statement() error {
	line := p.tok.line
	switch p.tok.typ {
	case tokSemi:
		return p.nextToken()
	case tokIf:
		return p.ifStat()
	case tokWhile:
		return p.whileStat()
	case tokDo:
		if err := p.nextToken(); err != nil {
			return err
		}
		mark := p.fs.enterBlock()
		if err := p.block(); err != nil {
			return err
		}
		p.fs.leaveBlock(mark)
		return p.expect(tokEnd)
	case tokFor:
		return p.forStat()
	case tokRepeat:
		return p.repeatStat()
	case tokFunction:
		return p.functionStat()
	case tokLocal:
		return p.localStat()
	case tokDColon:
		return p.labelStat()
	case tokBreak:
		return p.breakStat(line)
	case tokGoto:
		return p.gotoStat(line)
	default:
		return p.exprStat()
	}
}

func (p *parser) labelStat() error {
	if err := p.nextToken(); err != nil {
		return err
	}
	name := p.tok.literal
	if err := p.expect(tokName); err != nil {
		return err
	}
	if err := p.expect(tokDColon); err != nil {
		return err
	}
	here := p.fs.here()
	p.fs.labelStack = append(p.fs.labelStack, labelScope{name: name, pc: here})
	remaining := p.fs.gotoList[:0]
	for _, g := range p.fs.gotoList {
		if g.name == name {
			p.fs.patchJmpTo(g.pc, here)
		} else {
			remaining = append(remaining, g)
		}
	}
	p.fs.gotoList = remaining
	return nil
}

func (p *parser) gotoStat(line int) error {
	if err := p.nextToken(); err != nil {
		return err
	}
	name := p.tok.literal
	if err := p.expect(tokName); err != nil {
		return err
	}
	pc := p.fs.emitJmp(0, line)
	p.fs.gotoList = append(p.fs.gotoList, pendingGoto{name: name, pc: pc, line: line})
	return nil
}

func (p *parser) breakStat(line int) error {
	if err := p.nextToken(); err != nil {
		return err
	}
	if len(p.fs.breakList) == 0 {
		return &lua.CompileError{Source: p.source, Line: line, Message: "break outside a loop"}
	}
	pc := p.fs.emitJmp(0, line)
	top := len(p.fs.breakList) - 1
	p.fs.breakList[top] = append(p.fs.breakList[top], pc)
	return nil
}

func (p *parser) patchBreaks() {
	top := len(p.fs.breakList) - 1
	for _, pc := range p.fs.breakList[top] {
		p.fs.patchToHere(pc)
	}
	p.fs.breakList = p.fs.breakList[:top]
}

func (p *parser) returnStat() error {
	line := p.tok.line
	if err := p.nextToken(); err != nil {
		return err
	}
	if blockFollow(p.tok.typ) || p.tok.typ == tokSemi {
		p.fs.emitABC(lua.OpReturn, 0, 1, 0, line)
		_, _ = p.accept(tokSemi)
		return nil
	}
	base := p.fs.freereg
	exprs, err := p.exprList()
	if err != nil {
		return err
	}
	n, multi := p.dischargeList(base, exprs, -1)
	if multi {
		p.fs.emitABC(lua.OpReturn, base, 0, 0, line)
	} else {
		p.fs.emitABC(lua.OpReturn, base, n+1, 0, line)
	}
	_, _ = p.accept(tokSemi)
	return nil
}

// dischargeList finishes laying out an already-(mostly)discharged exprList
// result: exprList leaves every element but the last sitting contiguously
// from base onward, so dischargeList only needs to decide the last one —
// expand it to multret when it is a bare call/vararg and want<0, otherwise
// force it into the register right after the others.
func (p *parser) dischargeList(base int, exprs []expr, want int) (n int, multi bool) {
	if len(exprs) == 0 {
		return 0, false
	}
	last := exprs[len(exprs)-1]
	if want < 0 && (last.kind == expCall || last.kind == expVararg) {
		p.fs.forceMultret(last)
		return len(exprs) - 1, true
	}
	p.fs.freeTo(base + len(exprs) - 1)
	r := p.fs.reserveReg(1)
	p.fs.exprToReg(last, r)
	return len(exprs), false
}

// forceMultret rewrites the instruction that produced a call or vararg
// expression to request "all results" (C/B = 0) instead of exactly one.
func (fs *funcState) forceMultret(e expr) {
	inst := fs.code[e.pc]
	a := lua.DecodeA(inst)
	switch e.kind {
	case expCall:
		fs.code[e.pc] = lua.EncodeABC(lua.DecodeOp(inst), a, lua.DecodeB(inst), 0)
	case expVararg:
		fs.code[e.pc] = lua.EncodeABC(lua.DecodeOp(inst), a, 0, 0)
	}
}
