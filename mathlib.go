package lua

import "math"

// OpenMath installs the math library. No math.random seeding
// surface beyond the standard pseudo-random generator; nothing here
// touches the filesystem or OS entropy source.
func OpenMath(g *Globals) {
	mod := NewTable(0, 24)
	for name, fn := range mathFuncs {
		mod.Set(String(name), NewGFunction("math."+name, fn))
	}
	mod.Set(String("pi"), Number(math.Pi))
	mod.Set(String("huge"), Number(math.Inf(1)))
	mod.Set(String("maxinteger"), Int(math.MaxInt32))
	mod.Set(String("mininteger"), Int(math.MinInt32))
	g.Table.Set(String("math"), mod)
}

var mathFuncs = map[string]GFunction{
	"abs":        mathAbs,
	"ceil":       mathCeil,
	"floor":      mathFloor,
	"sqrt":       math1(math.Sqrt),
	"sin":        math1(math.Sin),
	"cos":        math1(math.Cos),
	"tan":        math1(math.Tan),
	"asin":       math1(math.Asin),
	"acos":       math1(math.Acos),
	"atan":       math1(math.Atan),
	"exp":        math1(math.Exp),
	"log":        mathLog,
	"pow":        mathPow,
	"max":        mathMax,
	"min":        mathMin,
	"fmod":       mathFmod,
	"modf":       mathModf,
	"random":     mathRandom,
	"randomseed": mathRandomSeed,
	"tointeger":  mathToInteger,
	"type":       mathType,
}

func math1(fn func(float64) float64) GFunction {
	return func(l *LState) int {
		l.Push(Number(fn(float64(l.CheckNumber(1)))))
		return 1
	}
}

func mathAbs(l *LState) int {
	if i, ok := l.Arg(1).(Int); ok {
		if i < 0 {
			i = -i
		}
		l.Push(i)
		return 1
	}
	l.Push(Number(math.Abs(float64(l.CheckNumber(1)))))
	return 1
}

func mathCeil(l *LState) int {
	l.Push(floatToResult(math.Ceil(float64(l.CheckNumber(1)))))
	return 1
}

func mathFloor(l *LState) int {
	l.Push(floatToResult(math.Floor(float64(l.CheckNumber(1)))))
	return 1
}

func floatToResult(f float64) Value {
	if f >= math.MinInt32 && f <= math.MaxInt32 {
		return Int(int32(f))
	}
	return Number(f)
}

func mathLog(l *LState) int {
	x := float64(l.CheckNumber(1))
	if l.ArgCount() >= 2 {
		base := float64(l.CheckNumber(2))
		l.Push(Number(math.Log(x) / math.Log(base)))
		return 1
	}
	l.Push(Number(math.Log(x)))
	return 1
}

func mathPow(l *LState) int {
	l.Push(Number(math.Pow(float64(l.CheckNumber(1)), float64(l.CheckNumber(2)))))
	return 1
}

func mathMax(l *LState) int {
	best := l.CheckNumber(1)
	for i := 2; i <= l.ArgCount(); i++ {
		v := l.CheckNumber(i)
		if v > best {
			best = v
		}
	}
	l.Push(numberOrInt(best))
	return 1
}

func mathMin(l *LState) int {
	best := l.CheckNumber(1)
	for i := 2; i <= l.ArgCount(); i++ {
		v := l.CheckNumber(i)
		if v < best {
			best = v
		}
	}
	l.Push(numberOrInt(best))
	return 1
}

func numberOrInt(n Number) Value {
	if float64(n) == math.Trunc(float64(n)) && n >= math.MinInt32 && n <= math.MaxInt32 {
		return Int(int32(n))
	}
	return n
}

func mathFmod(l *LState) int {
	x := float64(l.CheckNumber(1))
	y := float64(l.CheckNumber(2))
	l.Push(Number(math.Mod(x, y)))
	return 1
}

func mathModf(l *LState) int {
	x := float64(l.CheckNumber(1))
	ip, fp := math.Modf(x)
	l.Push(floatToResult(ip))
	l.Push(Number(fp))
	return 2
}

// mathRandomState is process-global: math.random keeps one shared
// generator rather than isolating state per Globals.
var mathRandomState uint64 = 0x9e3779b97f4a7c15

func xorshift64() uint64 {
	x := mathRandomState
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	mathRandomState = x
	return x
}

func mathRandom(l *LState) int {
	r := xorshift64()
	switch l.ArgCount() {
	case 0:
		l.Push(Number(float64(r>>11) / (1 << 53)))
	case 1:
		m := l.CheckInt(1)
		l.Push(Int(1 + int32(r%uint64(m))))
	default:
		lo := l.CheckInt(1)
		hi := l.CheckInt(2)
		l.Push(Int(int32(lo) + int32(r%uint64(hi-lo+1))))
	}
	return 1
}

func mathRandomSeed(l *LState) int {
	seed := l.OptNumber(1, 0)
	mathRandomState = uint64(seed) | 1
	return 0
}

func mathToInteger(l *LState) int {
	if i, ok := ToInt(l.Arg(1)); ok {
		l.Push(i)
		return 1
	}
	l.Push(Nil)
	return 1
}

func mathType(l *LState) int {
	switch l.Arg(1).(type) {
	case Int:
		l.Push(String("integer"))
	case Number:
		l.Push(String("float"))
	default:
		l.Push(Nil)
	}
	return 1
}
