package lua

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/empirephoenix/hardened-lua/pm"
)

// OpenString installs the string library table and makes it the class
// metatable's __index for every String value, so `("abc"):upper()` method
// sugar works directly.
func OpenString(g *Globals) {
	mod := NewTable(0, 16)
	for name, fn := range stringFuncs {
		mod.Set(String(name), NewGFunction("string."+name, fn))
	}
	mod.Set(String("gmatch"), NewGFunction("string.gmatch", strGmatch))

	mt := NewTable(0, 2)
	mt.Set(String("__index"), mod)
	SetClassMetatable(TypeString, mt)
	g.Table.Set(String("string"), mod)
}

var stringFuncs = map[string]GFunction{
	"byte":    strByte,
	"char":    strChar,
	"find":    strFind,
	"format":  strFormat,
	"gsub":    strGsub,
	"len":     strLen,
	"lower":   strLower,
	"match":   strMatch,
	"rep":     strRep,
	"reverse": strReverse,
	"sub":     strSub,
	"upper":   strUpper,
}

func strByte(l *LState) int {
	str := l.CheckString(1)
	start := normIndex(str, l.OptInt(2, 1))
	end := normIndex(str, l.OptInt(3, start+1))
	n := len(str)
	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	if start >= n || end <= start {
		return 0
	}
	for i := start; i < end; i++ {
		l.Push(Int(str[i]))
	}
	return end - start
}

func strChar(l *LState) int {
	top := l.ArgCount()
	buf := make([]byte, top)
	for i := 1; i <= top; i++ {
		buf[i-1] = byte(l.CheckInt(i))
	}
	l.Push(String(buf))
	return 1
}

func strLen(l *LState) int {
	l.Push(Int(len(l.CheckString(1))))
	return 1
}

func strLower(l *LState) int {
	l.Push(String(strings.ToLower(l.CheckString(1))))
	return 1
}

func strUpper(l *LState) int {
	l.Push(String(strings.ToUpper(l.CheckString(1))))
	return 1
}

func strReverse(l *LState) int {
	b := []byte(l.CheckString(1))
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	l.Push(String(b))
	return 1
}

func strRep(l *LState) int {
	str := l.CheckString(1)
	n := l.CheckInt(2)
	sep := l.OptString(3, "")
	if n <= 0 {
		l.Push(String(""))
		return 1
	}
	parts := make([]string, n)
	for i := range parts {
		parts[i] = str
	}
	l.Push(String(strings.Join(parts, sep)))
	return 1
}

func strSub(l *LState) int {
	str := l.CheckString(1)
	n := len(str)
	start := subIndex(str, l.CheckInt(2), true)
	end := subIndex(str, l.OptInt(3, -1), false)
	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	if start >= n || end <= start {
		l.Push(String(""))
		return 1
	}
	l.Push(String(str[start:end]))
	return 1
}

// normIndex/subIndex implement Lua's 1-based, negative-from-end string
// indexing ("string indices follow Lua's 1-based, negative
// from-end convention").
func normIndex(str string, i int) int {
	if i < 0 {
		i = len(str) + i + 1
	}
	return i - 1
}

func subIndex(str string, i int, isStart bool) int {
	l := len(str)
	if i < 0 {
		i = l + i + 1
	}
	if isStart {
		if i < 1 {
			i = 1
		}
		return i - 1
	}
	if i > l {
		i = l
	}
	return i
}

func strFormat(l *LState) int {
	f := l.CheckString(1)
	top := l.ArgCount()
	var sb strings.Builder
	argn := 1
	i := 0
	for i < len(f) {
		c := f[i]
		if c != '%' {
			sb.WriteByte(c)
			i++
			continue
		}
		j := i + 1
		for j < len(f) && strings.IndexByte("-+ #0", f[j]) >= 0 {
			j++
		}
		for j < len(f) && f[j] >= '0' && f[j] <= '9' {
			j++
		}
		if j < len(f) && f[j] == '.' {
			j++
			for j < len(f) && f[j] >= '0' && f[j] <= '9' {
				j++
			}
		}
		if j >= len(f) {
			sb.WriteByte('%')
			break
		}
		verb := f[j]
		spec := f[i : j+1]
		if verb == '%' {
			sb.WriteByte('%')
			i = j + 1
			continue
		}
		argn++
		if argn > top+1 {
			l.RaiseError("bad argument #%d to 'format' (no value)", argn-1)
		}
		v := l.Arg(argn)
		switch verb {
		case 'd', 'i', 'o', 'x', 'X', 'c', 'u':
			n, _ := ToInt(v)
			sb.WriteString(fmt.Sprintf(strings.Replace(spec, string(verb), "d", 1), int64(n)))
		case 'f', 'F', 'g', 'G', 'e', 'E':
			n, _ := ToNumber(v)
			sb.WriteString(fmt.Sprintf(spec, float64(n)))
		case 's':
			sb.WriteString(fmt.Sprintf(spec, ToStringMeta(v)))
		case 'q':
			sb.WriteString(strconv.Quote(ToStringMeta(v)))
		default:
			sb.WriteString(spec)
		}
		i = j + 1
	}
	l.Push(String(sb.String()))
	return 1
}

// strFind implements string.find via the pm pattern engine;
// plain=true (arg 4) degrades to a literal substring search.
func strFind(l *LState) int {
	str := l.CheckString(1)
	pattern := l.CheckString(2)
	init := clampInit(str, l.OptInt(3, 1))
	plain := l.ArgCount() >= 4 && IsTruthy(l.Arg(4))

	if plain || !hasSpecials(pattern) {
		idx := strings.Index(str[init:], pattern)
		if idx < 0 {
			l.Push(Nil)
			return 1
		}
		l.Push(Int(init + idx + 1))
		l.Push(Int(init + idx + len(pattern)))
		return 2
	}

	matches, err := pm.Find(pattern, []byte(str), init, 1)
	if err != nil {
		l.RaiseError("%s", err.Error())
	}
	if len(matches) == 0 {
		l.Push(Nil)
		return 1
	}
	md := matches[0]
	l.Push(Int(md.Capture(0) + 1))
	l.Push(Int(md.Capture(1)))
	n := 0
	for i := 2; i+1 < md.CaptureLength(); i += 2 {
		pushCapture(l, str, md, i)
		n++
	}
	return 2 + n
}

func strMatch(l *LState) int {
	str := l.CheckString(1)
	pattern := l.CheckString(2)
	init := clampInit(str, l.OptInt(3, 1))

	matches, err := pm.Find(pattern, []byte(str), init, 1)
	if err != nil {
		l.RaiseError("%s", err.Error())
	}
	if len(matches) == 0 {
		l.Push(Nil)
		return 1
	}
	md := matches[0]
	if md.CaptureLength() <= 2 {
		l.Push(String(str[md.Capture(0):md.Capture(1)]))
		return 1
	}
	n := 0
	for i := 2; i+1 < md.CaptureLength(); i += 2 {
		pushCapture(l, str, md, i)
		n++
	}
	return n
}

// gmatchState is the per-call cursor string.gmatch's returned iterator
// closes over: the match list is computed once up front, then each
// invocation of the iterator advances pos by one (gmatch).
type gmatchState struct {
	str     string
	matches []*pm.MatchData
	pos     int
}

// strGmatch is string.gmatch itself: it builds a fresh iterator closure per
// call so nested or concurrent gmatch loops over different strings never
// share state.
func strGmatch(l *LState) int {
	str := l.CheckString(1)
	pattern := l.CheckString(2)
	matches, err := pm.Find(pattern, []byte(str), 0, -1)
	if err != nil {
		l.RaiseError("%s", err.Error())
	}
	state := &gmatchState{str: str, matches: matches}
	up := &Upvalue{closed: true, value: &UserData{Data: state}}
	l.Push(&Function{IsG: true, GFn: gmatchIter, Upvalues: []*Upvalue{up}, Name: "gmatch.iterator"})
	return 1
}

func gmatchIter(l *LState) int {
	cf := l.currentFrame()
	state := cf.fn.Upvalues[0].Get().(*UserData).Data.(*gmatchState)
	return gmatchNext(l, state)
}

func gmatchNext(l *LState, state *gmatchState) int {
	if state.pos >= len(state.matches) {
		return 0
	}
	md := state.matches[state.pos]
	state.pos++
	if md.CaptureLength() <= 2 {
		l.Push(String(state.str[md.Capture(0):md.Capture(1)]))
		return 1
	}
	n := 0
	for i := 2; i+1 < md.CaptureLength(); i += 2 {
		pushCapture(l, state.str, md, i)
		n++
	}
	return n
}

func strGsub(l *LState) int {
	str := l.CheckString(1)
	pattern := l.CheckString(2)
	repl := l.CheckAny(3)
	limit := l.OptInt(4, -1)

	matches, err := pm.Find(pattern, []byte(str), 0, limit)
	if err != nil {
		l.RaiseError("%s", err.Error())
	}
	if len(matches) == 0 {
		l.Push(String(str))
		l.Push(Int(0))
		return 2
	}

	var sb strings.Builder
	cursor := 0
	for _, md := range matches {
		start, end := md.Capture(0), md.Capture(1)
		sb.WriteString(str[cursor:start])
		whole := str[start:end]
		replacement, keep := gsubReplacement(l, str, md, whole, repl)
		if keep {
			sb.WriteString(replacement)
		} else {
			sb.WriteString(whole)
		}
		cursor = end
		if end == start {
			if cursor < len(str) {
				sb.WriteByte(str[cursor])
			}
			cursor++
		}
	}
	if cursor < len(str) {
		sb.WriteString(str[cursor:])
	}
	l.Push(String(sb.String()))
	l.Push(Int(len(matches)))
	return 2
}

func gsubReplacement(l *LState, str string, md *pm.MatchData, whole string, repl Value) (string, bool) {
	switch r := repl.(type) {
	case String:
		return expandTemplate(string(r), str, md), true
	case Int, Number:
		return expandTemplate(ToStringMeta(r), str, md), true
	case *Table:
		key := captureKeyOrWhole(str, md, whole)
		v := r.Get(key)
		if !IsTruthy(v) {
			return "", false
		}
		return ToStringMeta(v), true
	case *Function:
		var args []Value
		if md.CaptureLength() > 2 {
			for i := 2; i+1 < md.CaptureLength(); i += 2 {
				args = append(args, captureValue(str, md, i))
			}
		} else {
			args = append(args, String(whole))
		}
		res, err := invoke(l, r, args, 1)
		if err != nil {
			panic(err)
		}
		if len(res) == 0 || !IsTruthy(res[0]) {
			return "", false
		}
		return ToStringMeta(res[0]), true
	}
	return "", false
}

func captureKeyOrWhole(str string, md *pm.MatchData, whole string) Value {
	if md.CaptureLength() > 2 {
		return captureValue(str, md, 2)
	}
	return String(whole)
}

// expandTemplate implements the %0/%1.. replacement template syntax gsub's
// string-replacement form uses: %0 is the whole match, %1-%9 are captures.
func expandTemplate(tmpl, str string, md *pm.MatchData) string {
	var sb strings.Builder
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		if c != '%' || i+1 >= len(tmpl) {
			sb.WriteByte(c)
			continue
		}
		i++
		d := tmpl[i]
		if d == '%' {
			sb.WriteByte('%')
			continue
		}
		if d >= '0' && d <= '9' {
			idx := int(d - '0')
			if idx == 0 {
				sb.WriteString(str[md.Capture(0):md.Capture(1)])
				continue
			}
			ci := idx * 2
			if ci+1 < md.CaptureLength() {
				v := captureValue(str, md, ci)
				sb.WriteString(ToStringMeta(v))
			}
			continue
		}
		sb.WriteByte(d)
	}
	return sb.String()
}

func pushCapture(l *LState, str string, md *pm.MatchData, idx int) {
	l.Push(captureValue(str, md, idx))
}

func captureValue(str string, md *pm.MatchData, idx int) Value {
	if md.IsPosCapture(idx) {
		return Int(md.Capture(idx))
	}
	return String(str[md.Capture(idx):md.Capture(idx+1)])
}

func clampInit(str string, i int) int {
	if i < 0 {
		i = len(str) + i + 1
	}
	if i < 1 {
		i = 1
	}
	if i > len(str)+1 {
		i = len(str) + 1
	}
	return i - 1
}

func hasSpecials(pattern string) bool {
	return strings.ContainsAny(pattern, "^$*+?.([%-")
}
