// Package pm implements Lua's pattern-matching dialect — the %-class,
// character-set, and capture syntax string.find/match/gmatch/gsub use
// instead of full regular expressions. A pattern is parsed into a small
// tree, compiled to a short bytecode program, and run on a backtracking
// virtual machine, the same structure real Lua's lstrlib.c uses.
package pm

import "fmt"

const eos = -3
const unknownPos = -2

// patternError is raised (via panic) by the parser and VM for malformed
// patterns or out-of-range capture references; Find recovers it and
// returns it as a normal error.
type patternError struct {
	pos     int
	message string
}

func newPatternError(pos int, message string, args ...interface{}) *patternError {
	if len(args) == 0 {
		return &patternError{pos, message}
	}
	return &patternError{pos, fmt.Sprintf(message, args...)}
}

func (e *patternError) Error() string {
	switch e.pos {
	case eos:
		return fmt.Sprintf("%s at EOS", e.message)
	case unknownPos:
		return e.message
	default:
		return fmt.Sprintf("%s at %d", e.message, e.pos)
	}
}

// MatchData holds one successful match's capture boundaries. Captures are
// stored as byte offsets into the source packed two-per-capture
// (start, end); a capture recorded via the position-capture form `()`
// instead stores the same 1-based position twice with its low bit set.
type MatchData struct {
	captures []uint32
}

func newMatchData() *MatchData { return &MatchData{} }

func (md *MatchData) addPosCapture(slot, pos int) {
	for slot+1 >= len(md.captures) {
		md.captures = append(md.captures, 0)
	}
	md.captures[slot] = (uint32(pos) << 1) | 1
	md.captures[slot+1] = (uint32(pos) << 1) | 1
}

func (md *MatchData) setCapture(slot, pos int) uint32 {
	for slot >= len(md.captures) {
		md.captures = append(md.captures, 0)
	}
	prev := md.captures[slot]
	md.captures[slot] = uint32(pos) << 1
	return prev
}

func (md *MatchData) restoreCapture(slot int, saved uint32) { md.captures[slot] = saved }

// CaptureLength returns the number of recorded capture-boundary slots
// (always even: one start, one end per capture).
func (md *MatchData) CaptureLength() int { return len(md.captures) }

// IsPosCapture reports whether slot idx came from a `()` position
// capture rather than a `(...)` substring capture.
func (md *MatchData) IsPosCapture(idx int) bool { return (md.captures[idx] & 1) == 1 }

// Capture returns the byte offset recorded at slot idx.
func (md *MatchData) Capture(idx int) int { return int(md.captures[idx] >> 1) }

// patternScanner is a cursor over the pattern text with one-token
// lookahead (Peek) and a single save/restore slot, enough for the
// parser's lookahead after `%` to tell a class, `%b`, or a numbered
// back-reference apart (`%f` is not a frontier pattern here: like any
// unrecognised class letter, it matches that letter literally).
type patternScanner struct {
	src   []byte
	pos   int
	saved int
}

func newPatternScanner(src []byte) *patternScanner {
	return &patternScanner{src: src, pos: -1, saved: -1}
}

func (sc *patternScanner) Length() int { return len(sc.src) }

func (sc *patternScanner) Next() int {
	if sc.pos == eos || sc.pos >= len(sc.src)-1 {
		sc.pos = eos
		return eos
	}
	sc.pos++
	return int(sc.src[sc.pos])
}

func (sc *patternScanner) CurrentPos() int { return sc.pos }

func (sc *patternScanner) NextPos() int {
	if sc.pos == eos || sc.pos >= len(sc.src)-1 {
		return eos
	}
	return sc.pos + 1
}

func (sc *patternScanner) Peek() int {
	wasEOS := sc.pos == eos
	ch := sc.Next()
	if !wasEOS {
		if sc.pos == eos {
			sc.pos = len(sc.src) - 1
		} else {
			sc.pos--
		}
	}
	return ch
}

func (sc *patternScanner) Save()    { sc.saved = sc.pos }
func (sc *patternScanner) Restore() { sc.pos = sc.saved }

// opCode is one instruction in the compiled pattern bytecode.
type opCode int

const (
	opChar opCode = iota
	opMatch
	opTailMatch
	opJmp
	opSplit
	opSave
	opPosSave
	opBrace
	opBackref
)

type inst struct {
	code     opCode
	cls      charMatcher
	operand1 int
	operand2 int
}

// charMatcher tests a single byte against one parsed pattern class: a
// literal character, `.`, a `%a`/`%d`/... class, a `[...]` set, or a
// `[a-z]` range within a set.
type charMatcher interface {
	Matches(ch int) bool
}

type anyChar struct{}

func (anyChar) Matches(ch int) bool { return true }

type literalChar struct {
	ch int
}

func (lc literalChar) Matches(ch int) bool { return lc.ch == ch }

// classChar implements the `%a`, `%A`, `%d`, ... single-letter classes;
// the uppercase variant is the lowercase class's complement.
type classChar struct {
	letter int
}

func (cc classChar) Matches(ch int) bool {
	matched := false
	switch cc.letter {
	case 'a', 'A':
		matched = 'A' <= ch && ch <= 'Z' || 'a' <= ch && ch <= 'z'
	case 'c', 'C':
		matched = (0x00 <= ch && ch <= 0x1F) || ch == 0x7F
	case 'd', 'D':
		matched = '0' <= ch && ch <= '9'
	case 'l', 'L':
		matched = 'a' <= ch && ch <= 'z'
	case 'p', 'P':
		matched = (0x21 <= ch && ch <= 0x2f) || (0x30 <= ch && ch <= 0x40) || (0x5b <= ch && ch <= 0x60) || (0x7b <= ch && ch <= 0x7e)
	case 's', 'S':
		switch ch {
		case ' ', '\f', '\n', '\r', '\t', '\v':
			matched = true
		}
	case 'u', 'U':
		matched = 'A' <= ch && ch <= 'Z'
	case 'w', 'W':
		matched = '0' <= ch && ch <= '9' || 'A' <= ch && ch <= 'Z' || 'a' <= ch && ch <= 'z'
	case 'x', 'X':
		matched = '0' <= ch && ch <= '9' || 'a' <= ch && ch <= 'f' || 'A' <= ch && ch <= 'F'
	case 'z', 'Z':
		matched = ch == 0
	default:
		return ch == cc.letter
	}
	if 'A' <= cc.letter && cc.letter <= 'Z' {
		return !matched
	}
	return matched
}

// setChar implements a `[...]` set, optionally negated with a leading `^`.
type setChar struct {
	negated  bool
	members  []charMatcher
}

func (sc setChar) Matches(ch int) bool {
	for _, m := range sc.members {
		if m.Matches(ch) {
			return !sc.negated
		}
	}
	return sc.negated
}

// rangeChar implements `a-z` inside a `[...]` set.
type rangeChar struct {
	lo, hi charMatcher
}

func (rc rangeChar) Matches(ch int) bool {
	lo, ok := rc.lo.(literalChar)
	if !ok {
		return false
	}
	hi, ok := rc.hi.(literalChar)
	if !ok {
		return false
	}
	return lo.ch <= ch && ch <= hi.ch
}

// patternNode is one parsed element of a pattern; compilePattern lowers
// a tree of these into the inst slice the VM runs.
type patternNode interface{}

type matchOneNode struct {
	cls charMatcher
}

type sequenceNode struct {
	anchoredStart bool
	anchoredEnd   bool
	items         []patternNode
}

type repeatNode struct {
	op  int // '*', '+', '-', or '?'
	cls charMatcher
}

type posCaptureNode struct{}

type captureNode struct {
	body patternNode
}

type backrefNode struct {
	n int
}

type balancedNode struct {
	open, close int
}

func parseClass(sc *patternScanner, insideSet bool) charMatcher {
	ch := sc.Next()
	switch ch {
	case '%':
		return classChar{sc.Next()}
	case '.':
		if insideSet {
			return anyChar{}
		}
		return literalChar{ch}
	case '[':
		if !insideSet {
			panic(newPatternError(sc.CurrentPos(), "invalid '['"))
		}
		return parseClassSet(sc)
	case eos:
		panic(newPatternError(sc.CurrentPos(), "unexpected EOS"))
	default:
		return literalChar{ch}
	}
}

func parseClassSet(sc *patternScanner) charMatcher {
	set := setChar{}
	if sc.Peek() == '^' {
		set.negated = true
		sc.Next()
	}
	buildingRange := false
	for {
		ch := sc.Peek()
		switch ch {
		case '[':
			panic(newPatternError(sc.CurrentPos(), "'[' can not be nested"))
		case ']':
			sc.Next()
			if buildingRange {
				set.members = append(set.members, literalChar{'-'})
			}
			return set
		case eos:
			panic(newPatternError(sc.CurrentPos(), "unexpected EOS"))
		case '-':
			if len(set.members) > 0 {
				sc.Next()
				buildingRange = true
				continue
			}
			fallthrough
		default:
			set.members = append(set.members, parseClass(sc, false))
		}
		if buildingRange {
			lo := set.members[len(set.members)-2]
			hi := set.members[len(set.members)-1]
			set.members = set.members[:len(set.members)-2]
			set.members = append(set.members, rangeChar{lo, hi})
			buildingRange = false
		}
	}
}

func parsePattern(sc *patternScanner, toplevel bool) *sequenceNode {
	seq := &sequenceNode{}
	if toplevel && sc.Peek() == '^' {
		sc.Next()
		seq.anchoredStart = true
	}
	for {
		ch := sc.Peek()
		switch ch {
		case '%':
			sc.Save()
			sc.Next()
			switch sc.Peek() {
			case '0':
				panic(newPatternError(sc.CurrentPos(), "invalid capture index"))
			case '1', '2', '3', '4', '5', '6', '7', '8', '9':
				seq.items = append(seq.items, &backrefNode{sc.Next() - '0'})
			case 'b':
				sc.Next()
				seq.items = append(seq.items, &balancedNode{sc.Next(), sc.Next()})
			default:
				sc.Restore()
				seq.items = append(seq.items, &matchOneNode{parseClass(sc, true)})
			}
		case '.', '[':
			seq.items = append(seq.items, &matchOneNode{parseClass(sc, true)})
		case ']':
			panic(newPatternError(sc.CurrentPos(), "invalid ']'"))
		case ')':
			if toplevel {
				panic(newPatternError(sc.CurrentPos(), "invalid ')'"))
			}
			return seq
		case '(':
			sc.Next()
			if sc.Peek() == ')' {
				sc.Next()
				seq.items = append(seq.items, &posCaptureNode{})
			} else {
				body := parsePattern(sc, false)
				if sc.Peek() != ')' {
					panic(newPatternError(sc.CurrentPos(), "unfinished capture"))
				}
				sc.Next()
				seq.items = append(seq.items, &captureNode{body})
			}
		case '*', '+', '-', '?':
			sc.Next()
			if len(seq.items) > 0 {
				if prev, ok := seq.items[len(seq.items)-1].(*matchOneNode); ok {
					seq.items = seq.items[:len(seq.items)-1]
					seq.items = append(seq.items, &repeatNode{ch, prev.cls})
					continue
				}
			}
			seq.items = append(seq.items, &matchOneNode{literalChar{ch}})
		case '$':
			if toplevel && (sc.NextPos() == sc.Length()-1 || sc.NextPos() == eos) {
				seq.anchoredEnd = true
			} else {
				seq.items = append(seq.items, &matchOneNode{literalChar{ch}})
			}
			sc.Next()
		case eos:
			sc.Next()
			return seq
		default:
			sc.Next()
			seq.items = append(seq.items, &matchOneNode{literalChar{ch}})
		}
	}
}

// program accumulates compiled instructions and the next free capture
// slot while compilePattern walks a patternNode tree.
type program struct {
	insts       []inst
	nextCapture int
}

func compilePattern(node patternNode, ps ...*program) []inst {
	var p *program
	toplevel := len(ps) == 0
	if toplevel {
		p = &program{insts: []inst{{opSave, nil, 0, -1}}, nextCapture: 2}
	} else {
		p = ps[0]
	}
	switch n := node.(type) {
	case *matchOneNode:
		p.insts = append(p.insts, inst{opChar, n.cls, -1, -1})
	case *sequenceNode:
		for _, item := range n.items {
			compilePattern(item, p)
		}
	case *repeatNode:
		at := len(p.insts)
		switch n.op {
		case '*':
			p.insts = append(p.insts,
				inst{opSplit, nil, at + 1, at + 3},
				inst{opChar, n.cls, -1, -1},
				inst{opJmp, nil, at, -1})
		case '+':
			p.insts = append(p.insts,
				inst{opChar, n.cls, -1, -1},
				inst{opSplit, nil, at, at + 2})
		case '-':
			p.insts = append(p.insts,
				inst{opSplit, nil, at + 3, at + 1},
				inst{opChar, n.cls, -1, -1},
				inst{opJmp, nil, at, -1})
		case '?':
			p.insts = append(p.insts,
				inst{opSplit, nil, at + 1, at + 2},
				inst{opChar, n.cls, -1, -1})
		}
	case *posCaptureNode:
		p.insts = append(p.insts, inst{opPosSave, nil, p.nextCapture, -1})
		p.nextCapture += 2
	case *captureNode:
		start, end := p.nextCapture, p.nextCapture+1
		p.nextCapture += 2
		p.insts = append(p.insts, inst{opSave, nil, start, -1})
		compilePattern(n.body, p)
		p.insts = append(p.insts, inst{opSave, nil, end, -1})
	case *balancedNode:
		p.insts = append(p.insts, inst{opBrace, nil, n.open, n.close})
	case *backrefNode:
		p.insts = append(p.insts, inst{opBackref, nil, n.n, -1})
	}
	if toplevel {
		if node.(*sequenceNode).anchoredEnd {
			p.insts = append(p.insts, inst{opSave, nil, 1, -1}, inst{opTailMatch, nil, -1, -1})
		}
		p.insts = append(p.insts, inst{opSave, nil, 1, -1}, inst{opMatch, nil, -1, -1})
	}
	return p.insts
}

// run is a small backtracking VM over the compiled instructions —
// "Regular Expression Matching: the Virtual Machine Approach"
// (https://swtch.com/~rsc/regexp/regexp2.html) — recursing on opSplit and
// opSave so failed branches restore captures exactly as Lua's own
// backtracking matcher does.
func run(src []byte, insts []inst, pc, sp int, md *MatchData) (bool, int) {
	if md == nil {
		md = newMatchData()
	}
redo:
	in := insts[pc]
	switch in.code {
	case opChar:
		if sp >= len(src) || !in.cls.Matches(int(src[sp])) {
			return false, sp
		}
		pc++
		sp++
		goto redo
	case opMatch:
		return true, sp
	case opTailMatch:
		return sp >= len(src), sp
	case opJmp:
		pc = in.operand1
		goto redo
	case opSplit:
		if ok, nsp := run(src, insts, in.operand1, sp, md); ok {
			return true, nsp
		}
		pc = in.operand2
		goto redo
	case opSave:
		saved := md.setCapture(in.operand1, sp)
		if ok, nsp := run(src, insts, pc+1, sp, md); ok {
			return true, nsp
		}
		md.restoreCapture(in.operand1, saved)
		return false, sp
	case opPosSave:
		md.addPosCapture(in.operand1, sp+1)
		pc++
		goto redo
	case opBrace:
		if sp >= len(src) || int(src[sp]) != in.operand1 {
			return false, sp
		}
		depth := 1
		for sp = sp + 1; sp < len(src); sp++ {
			if int(src[sp]) == in.operand2 {
				depth--
			}
			if depth == 0 {
				pc++
				sp++
				goto redo
			}
			if int(src[sp]) == in.operand1 {
				depth++
			}
		}
		return false, sp
	case opBackref:
		idx := in.operand1 * 2
		if idx >= md.CaptureLength()-1 {
			panic(newPatternError(unknownPos, "invalid capture index"))
		}
		ref := src[md.Capture(idx):md.Capture(idx + 1)]
		for i := 0; i < len(ref); i++ {
			if i+sp >= len(src) || ref[i] != src[i+sp] {
				return false, sp
			}
		}
		pc++
		sp += len(ref)
		goto redo
	}
	panic("pm: unreachable opcode")
}

// Find parses p as a Lua pattern and runs it against src starting at
// byte offset offset, collecting up to limit matches (limit < 0 means
// unlimited) by advancing one byte at a time between attempts. A
// leading `^` anchor stops the search after the first position.
func Find(p string, src []byte, offset, limit int) (matches []*MatchData, err error) {
	defer func() {
		if v := recover(); v != nil {
			if perr, ok := v.(*patternError); ok {
				err = perr
				return
			}
			panic(v)
		}
	}()
	root := parsePattern(newPatternScanner([]byte(p)), true)
	insts := compilePattern(root)
	for sp := offset; sp <= len(src); {
		md := newMatchData()
		ok, nsp := run(src, insts, 0, sp, md)
		sp++
		if ok {
			if sp < nsp {
				sp = nsp
			}
			matches = append(matches, md)
		}
		if len(matches) == limit || root.anchoredStart {
			break
		}
	}
	return matches, nil
}
