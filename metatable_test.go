package lua_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	lua "github.com/empirephoenix/hardened-lua"
)

func TestMetatable_ArithmeticMetamethods(t *testing.T) {
	g := newTestGlobals(t, 100_000, 1<<20)
	vals, err := loadAndCall(t, g, `
		local Vec = {}
		Vec.__add = function(a, b) return {x = a.x + b.x} end
		local v1 = setmetatable({x=1}, Vec)
		local v2 = setmetatable({x=2}, Vec)
		local v3 = v1 + v2
		return v3.x
	`)
	require.NoError(t, err)
	n, ok := lua.ToNumber(vals[0])
	require.True(t, ok)
	require.Equal(t, float64(3), float64(n))
}

func TestMetatable_EqAndLtMetamethods(t *testing.T) {
	g := newTestGlobals(t, 100_000, 1<<20)
	vals, err := loadAndCall(t, g, `
		local mt = {}
		mt.__eq = function(a, b) return a.v == b.v end
		mt.__lt = function(a, b) return a.v < b.v end
		local a = setmetatable({v=1}, mt)
		local b = setmetatable({v=1}, mt)
		local c = setmetatable({v=2}, mt)
		return a == b, a < c, c < a
	`)
	require.NoError(t, err)
	require.Equal(t, lua.Bool(true), vals[0])
	require.Equal(t, lua.Bool(true), vals[1])
	require.Equal(t, lua.Bool(false), vals[2])
}

func TestMetatable_ToStringMetamethod(t *testing.T) {
	g := newTestGlobals(t, 100_000, 1<<20)
	vals, err := loadAndCall(t, g, `
		local mt = {__tostring = function(self) return "Point(" .. self.x .. ")" end}
		local p = setmetatable({x=5}, mt)
		return tostring(p)
	`)
	require.NoError(t, err)
	require.Equal(t, lua.String("Point(5)"), vals[0])
}

func TestMetatable_CallMetamethod(t *testing.T) {
	g := newTestGlobals(t, 100_000, 1<<20)
	vals, err := loadAndCall(t, g, `
		local callable = setmetatable({}, {__call = function(self, x) return x * 2 end})
		return callable(21)
	`)
	require.NoError(t, err)
	n, ok := lua.ToNumber(vals[0])
	require.True(t, ok)
	require.Equal(t, float64(42), float64(n))
}

// strings dispatch method-call sugar through a shared class metatable.
func TestMetatable_StringMethodSugar(t *testing.T) {
	g := newTestGlobals(t, 100_000, 1<<20)
	vals, err := loadAndCall(t, g, `return ("hello"):upper()`)
	require.NoError(t, err)
	require.Equal(t, lua.String("HELLO"), vals[0])
}
