package lua_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	lua "github.com/empirephoenix/hardened-lua"
)

func TestMathLib_BasicFunctions(t *testing.T) {
	g := newTestGlobals(t, 100_000, 1<<20)
	vals, err := loadAndCall(t, g, `
		return math.floor(3.7), math.max(1,5,3), math.min(1,5,3), math.abs(-4)
	`)
	require.NoError(t, err)
	require.Len(t, vals, 4)
	n, _ := lua.ToNumber(vals[0])
	require.Equal(t, float64(3), float64(n))
	n, _ = lua.ToNumber(vals[1])
	require.Equal(t, float64(5), float64(n))
	n, _ = lua.ToNumber(vals[2])
	require.Equal(t, float64(1), float64(n))
	n, _ = lua.ToNumber(vals[3])
	require.Equal(t, float64(4), float64(n))
}

func TestMathLib_TypeDistinguishesIntFromFloat(t *testing.T) {
	g := newTestGlobals(t, 100_000, 1<<20)
	vals, err := loadAndCall(t, g, `return math.type(1), math.type(1.5), math.type("x")`)
	require.NoError(t, err)
	require.Equal(t, lua.String("integer"), vals[0])
	require.Equal(t, lua.String("float"), vals[1])
	require.Equal(t, lua.Nil, vals[2])
}

// os is a narrow, time-only surface: no execute/remove/rename/getenv.
func TestOsLib_OnlyExposesTimeOperations(t *testing.T) {
	g := newTestGlobals(t, 100_000, 1<<20)
	vals, err := loadAndCall(t, g, `
		return type(os.time), type(os.clock), type(os.difftime), type(os.date),
			os.execute, os.remove, os.getenv
	`)
	require.NoError(t, err)
	require.Equal(t, lua.String("function"), vals[0])
	require.Equal(t, lua.String("function"), vals[1])
	require.Equal(t, lua.String("function"), vals[2])
	require.Equal(t, lua.String("function"), vals[3])
	require.Equal(t, lua.Nil, vals[4])
	require.Equal(t, lua.Nil, vals[5])
	require.Equal(t, lua.Nil, vals[6])
}

func TestStringLib_BasicOperations(t *testing.T) {
	g := newTestGlobals(t, 100_000, 1<<20)
	vals, err := loadAndCall(t, g, `
		return string.upper("abc"), string.sub("hello world", 1, 5),
			string.format("%d-%s", 7, "x"), #("hello")
	`)
	require.NoError(t, err)
	require.Equal(t, lua.String("ABC"), vals[0])
	require.Equal(t, lua.String("hello"), vals[1])
	require.Equal(t, lua.String("7-x"), vals[2])
	n, _ := lua.ToNumber(vals[3])
	require.Equal(t, float64(5), float64(n))
}

func TestStringLib_FindAndGmatch(t *testing.T) {
	g := newTestGlobals(t, 100_000, 1<<20)
	vals, err := loadAndCall(t, g, `
		local count = 0
		for w in string.gmatch("one two three", "%a+") do
			count = count + 1
		end
		local s, e = string.find("hello world", "world")
		return count, s, e
	`)
	require.NoError(t, err)
	n, _ := lua.ToNumber(vals[0])
	require.Equal(t, float64(3), float64(n))
	n, _ = lua.ToNumber(vals[1])
	require.Equal(t, float64(7), float64(n))
	n, _ = lua.ToNumber(vals[2])
	require.Equal(t, float64(11), float64(n))
}

// require has no filesystem searcher: an unregistered module name fails.
func TestPackageLib_RequireWithoutPreloadFails(t *testing.T) {
	g := newTestGlobals(t, 100_000, 1<<20)
	_, err := loadAndCall(t, g, `return require("nonexistent_module")`)
	require.Error(t, err)
}

func TestPackageLib_RequireResolvesRegisteredModuleSource(t *testing.T) {
	g := newTestGlobals(t, 100_000, 1<<20)
	require.NoError(t, g.RegisterModuleSource("greet", []byte(`return "hello from module"`), "=(greet)"))
	vals, err := loadAndCall(t, g, `return require("greet")`)
	require.NoError(t, err)
	require.Equal(t, lua.String("hello from module"), vals[0])
}

func TestPackageLib_RequireCachesAcrossCalls(t *testing.T) {
	g := newTestGlobals(t, 100_000, 1<<20)
	calls := 0
	fn := lua.NewGFunction("loader", func(l *lua.LState) int {
		calls++
		l.Push(lua.Int(int32(calls)))
		return 1
	})
	require.NoError(t, g.RegisterPreload("counted", fn))
	vals, err := loadAndCall(t, g, `
		local a = require("counted")
		local b = require("counted")
		return a, b
	`)
	require.NoError(t, err)
	require.Equal(t, vals[0], vals[1])
	require.Equal(t, 1, calls)
}
