package lua

import "strconv"

// OpenBase installs the unqualified global functions: no
// io/os bridging, print instead enqueues onto the bounded host console
// queue rather than writing to a file descriptor.
func OpenBase(g *Globals) {
	for name, fn := range baseFuncs {
		g.Table.Set(String(name), NewGFunction(name, fn))
	}
	g.Table.Set(String("_G"), g.Table)
	g.Table.Set(String("_VERSION"), String("Lua 5.2"))
}

var baseFuncs = map[string]GFunction{
	"print":        basePrint,
	"pcall":        basePcall,
	"xpcall":       baseXpcall,
	"error":        baseError,
	"assert":       baseAssert,
	"type":         baseType,
	"tostring":     baseToString,
	"tonumber":     baseToNumber,
	"pairs":        basePairs,
	"ipairs":       baseIpairs,
	"next":         baseNext,
	"setmetatable": baseSetMetatable,
	"getmetatable": baseGetMetatable,
	"rawget":       baseRawGet,
	"rawset":       baseRawSet,
	"rawequal":     baseRawEqual,
	"rawlen":       baseRawLen,
	"select":       baseSelect,
	"unpack":       baseUnpack,
}

// basePrint enqueues each argument's tostring representation onto the host
// console channel. The enqueue itself is always non-blocking; a worker
// that finds the queue full yields (as if it had called coroutine.yield)
// and retries the same line on its next resume, so a slow host draining
// the queue with TryDequeueConsole never deadlocks the worker against its
// own resumer. The main call context has no resumer to yield to, so it
// falls back to a blocking send — the host is expected to be draining the
// queue from a separate goroutine while a script runs on the main thread.
func basePrint(l *LState) int {
	n := l.ArgCount()
	parts := make([]string, n)
	for i := 1; i <= n; i++ {
		parts[i-1] = ToStringMeta(l.Arg(i))
	}
	line := String(joinTab(parts))
	for {
		select {
		case l.G.console <- line:
			return 0
		default:
		}
		if l.core == nil {
			l.G.console <- line
			return 0
		}
		if _, err := l.blockForResume([]Value{Nil}); err != nil {
			panic(err)
		}
	}
}

func joinTab(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += "\t" + p
	}
	return out
}

// basePcall and baseXpcall implement protected calls: any
// *LuaError is caught and converted to a (false, value) pair; a
// LimitExceeded/StringLimitExceeded/OrphanedWorker/InternalError is
// re-panicked instead, per isProtectable in errors.go.
func basePcall(l *LState) int {
	fn := l.CheckAny(1)
	args := make([]Value, 0, l.ArgCount()-1)
	for i := 2; i <= l.ArgCount(); i++ {
		args = append(args, l.Arg(i))
	}
	results, caught := protectedCall(l, fn, args)
	if caught != nil {
		l.Push(Bool(false))
		l.Push(caught.Value)
		return 2
	}
	l.Push(Bool(true))
	for _, v := range results {
		l.Push(v)
	}
	return 1 + len(results)
}

func baseXpcall(l *LState) int {
	fn := l.CheckAny(1)
	handler := l.CheckAny(2)
	args := make([]Value, 0, l.ArgCount()-2)
	for i := 3; i <= l.ArgCount(); i++ {
		args = append(args, l.Arg(i))
	}
	results, caught := protectedCall(l, fn, args)
	if caught != nil {
		handled, herr := l.call(handler, []Value{caught.Value}, MultRet, 0)
		if herr != nil {
			panic(herr)
		}
		l.Push(Bool(false))
		for _, v := range handled {
			l.Push(v)
		}
		return 1 + len(handled)
	}
	l.Push(Bool(true))
	for _, v := range results {
		l.Push(v)
	}
	return 1 + len(results)
}

func protectedCall(l *LState, fn Value, args []Value) (results []Value, caught *LuaError) {
	defer func() {
		if r := recover(); r != nil {
			switch x := r.(type) {
			case *LuaError:
				caught = x
			case error:
				if !isProtectable(x) {
					panic(x)
				}
				caught = &LuaError{Value: String(x.Error())}
			default:
				panic(r)
			}
		}
	}()
	var err error
	results, err = l.call(fn, args, MultRet, 0)
	if err != nil {
		if le, ok := err.(*LuaError); ok {
			return nil, le
		}
		if !isProtectable(err) {
			panic(err)
		}
		return nil, &LuaError{Value: String(err.Error())}
	}
	return results, nil
}

func baseError(l *LState) int {
	v := l.Arg(1)
	level := l.OptInt(2, 1)
	if s, ok := v.(String); ok && level > 0 {
		line := 0
		source := "?"
		if cf := l.currentFrame(); cf != nil && cf.fn.Proto != nil {
			line = cf.fn.Proto.LineOf(cf.pc)
			source = cf.fn.Proto.Source
		}
		panic(&LuaError{Value: String(source + ":" + strconv.Itoa(line) + ": " + string(s))})
	}
	panic(&LuaError{Value: v})
}

func baseAssert(l *LState) int {
	if !IsTruthy(l.Arg(1)) {
		if l.ArgCount() >= 2 {
			panic(&LuaError{Value: l.Arg(2)})
		}
		panic(&LuaError{Value: String("assertion failed!")})
	}
	n := l.ArgCount()
	for i := 1; i <= n; i++ {
		l.Push(l.Arg(i))
	}
	return n
}

func baseType(l *LState) int {
	l.Push(String(l.Arg(1).Type().String()))
	return 1
}

func baseToString(l *LState) int {
	v := l.Arg(1)
	if mt := metatableOf(v); mt != nil {
		if h := mt.Get(String("__tostring")); h.Type() != TypeNil {
			res, err := l.call(h, []Value{v}, 1, 0)
			if err != nil {
				panic(err)
			}
			l.Push(res[0])
			return 1
		}
	}
	l.Push(String(ToStringMeta(v)))
	return 1
}

func baseToNumber(l *LState) int {
	if l.ArgCount() >= 2 {
		s, ok := l.Arg(1).(String)
		if !ok {
			l.Push(Nil)
			return 1
		}
		base := l.CheckInt(2)
		n, err := strconv.ParseInt(string(s), base, 64)
		if err != nil {
			l.Push(Nil)
			return 1
		}
		l.Push(Int(int32(n)))
		return 1
	}
	if n, ok := ToNumber(l.Arg(1)); ok {
		l.Push(n)
		return 1
	}
	l.Push(Nil)
	return 1
}

func basePairs(l *LState) int {
	tbl := l.CheckTable(1)
	if mt := tbl.Metatable; mt != nil {
		if h := mt.Get(String("__pairs")); h.Type() != TypeNil {
			results, err := l.call(h, []Value{tbl}, 3, 0)
			if err != nil {
				panic(err)
			}
			for _, v := range results {
				l.Push(v)
			}
			return len(results)
		}
	}
	l.Push(NewGFunction("next", baseNext))
	l.Push(tbl)
	l.Push(Nil)
	return 3
}

func baseIpairs(l *LState) int {
	tbl := l.CheckTable(1)
	l.Push(NewGFunction("inext", ipairsAux))
	l.Push(tbl)
	l.Push(Int(0))
	return 3
}

func ipairsAux(l *LState) int {
	tbl := l.CheckTable(1)
	i := l.CheckInt(2) + 1
	v := tbl.Get(Int(i))
	if v.Type() == TypeNil {
		l.Push(Nil)
		return 1
	}
	l.Push(Int(i))
	l.Push(v)
	return 2
}

func baseNext(l *LState) int {
	tbl := l.CheckTable(1)
	key := l.Arg(1)
	if l.ArgCount() >= 2 {
		key = l.Arg(2)
	} else {
		key = Nil
	}
	k, v, ok := tbl.Next(key)
	if !ok {
		l.Push(Nil)
		return 1
	}
	l.Push(k)
	l.Push(v)
	return 2
}

func baseSetMetatable(l *LState) int {
	tbl := l.CheckTable(1)
	mt, _ := l.Arg(2).(*Table)
	tbl.Metatable = mt
	l.Push(tbl)
	return 1
}

func baseGetMetatable(l *LState) int {
	mt := metatableOf(l.Arg(1))
	if mt == nil {
		l.Push(Nil)
		return 1
	}
	l.Push(mt)
	return 1
}

func baseRawGet(l *LState) int {
	tbl := l.CheckTable(1)
	l.Push(tbl.Get(l.Arg(2)))
	return 1
}

func baseRawSet(l *LState) int {
	tbl := l.CheckTable(1)
	tbl.Set(l.Arg(2), l.Arg(3))
	l.Push(tbl)
	return 1
}

func baseRawEqual(l *LState) int {
	l.Push(Bool(rawEqual(l.Arg(1), l.Arg(2))))
	return 1
}

func baseRawLen(l *LState) int {
	switch v := l.Arg(1).(type) {
	case *Table:
		l.Push(Int(v.Len()))
	case String:
		l.Push(Int(len(v)))
	default:
		l.RaiseError("table or string expected")
	}
	return 1
}

func baseSelect(l *LState) int {
	if s, ok := l.Arg(1).(String); ok && s == "#" {
		l.Push(Int(l.ArgCount() - 1))
		return 1
	}
	n := l.CheckInt(1)
	total := l.ArgCount()
	if n < 0 {
		n = total + n
	}
	if n < 1 {
		l.RaiseError("bad argument #1 to 'select' (index out of range)")
	}
	count := 0
	for i := n + 1; i <= total; i++ {
		l.Push(l.Arg(i))
		count++
	}
	return count
}

func baseUnpack(l *LState) int {
	tbl := l.CheckTable(1)
	i := l.OptInt(2, 1)
	j := l.OptInt(3, tbl.Len())
	count := 0
	for k := i; k <= j; k++ {
		l.Push(tbl.Get(Int(k)))
		count++
	}
	return count
}
