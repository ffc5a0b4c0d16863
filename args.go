package lua

// The Check*/Opt* family gives a native GFunction a concise argument
// validation convenience: fetch argument n (1-based) asserting its type,
// or fall back to a default when
// absent. RaiseError is the uniform way a native reports a script-visible
// failure; it panics a *LuaError so pcall can catch it exactly like a
// bytecode-level runtime error.

func (l *LState) RaiseError(format string, args ...interface{}) {
	panic(NewLuaError(format, args...))
}

func argTypeError(l *LState, n int, want string, got Value) {
	l.RaiseError("bad argument #%d (%s expected, got %s)", n, want, got.Type())
}

func (l *LState) CheckString(n int) string {
	v := l.Arg(n)
	if s, ok := v.(String); ok {
		return string(s)
	}
	if num, ok := v.(Number); ok {
		return num.String()
	}
	if i, ok := v.(Int); ok {
		return i.String()
	}
	argTypeError(l, n, "string", v)
	return ""
}

func (l *LState) OptString(n int, def string) string {
	if n > l.ArgCount() || l.Arg(n).Type() == TypeNil {
		return def
	}
	return l.CheckString(n)
}

func (l *LState) CheckNumber(n int) Number {
	v := l.Arg(n)
	if num, ok := ToNumber(v); ok {
		return num
	}
	argTypeError(l, n, "number", v)
	return 0
}

func (l *LState) OptNumber(n int, def Number) Number {
	if n > l.ArgCount() || l.Arg(n).Type() == TypeNil {
		return def
	}
	return l.CheckNumber(n)
}

func (l *LState) CheckInt(n int) int {
	v := l.Arg(n)
	if i, ok := ToInt(v); ok {
		return int(i)
	}
	argTypeError(l, n, "number", v)
	return 0
}

func (l *LState) OptInt(n int, def int) int {
	if n > l.ArgCount() || l.Arg(n).Type() == TypeNil {
		return def
	}
	return l.CheckInt(n)
}

func (l *LState) CheckTable(n int) *Table {
	v := l.Arg(n)
	if t, ok := v.(*Table); ok {
		return t
	}
	argTypeError(l, n, "table", v)
	return nil
}

func (l *LState) CheckFunction(n int) *Function {
	v := l.Arg(n)
	if f, ok := v.(*Function); ok {
		return f
	}
	argTypeError(l, n, "function", v)
	return nil
}

func (l *LState) CheckThread(n int) *Thread {
	v := l.Arg(n)
	if t, ok := v.(*Thread); ok {
		return t
	}
	argTypeError(l, n, "thread", v)
	return nil
}

func (l *LState) CheckAny(n int) Value {
	if n > l.ArgCount() {
		l.RaiseError("bad argument #%d (value expected)", n)
	}
	return l.Arg(n)
}

func (l *LState) ToStringArg(n int) string {
	return ToStringMeta(l.Arg(n))
}
