package lua_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	lua "github.com/empirephoenix/hardened-lua"
)

func TestTableLib_InsertRemoveConcat(t *testing.T) {
	g := newTestGlobals(t, 100_000, 1<<20)
	vals, err := loadAndCall(t, g, `
		local t = {1,2,3}
		table.insert(t, 4)
		table.insert(t, 1, 0)
		local removed = table.remove(t, 2)
		return table.concat(t, ","), removed
	`)
	require.NoError(t, err)
	require.Equal(t, lua.String("0,2,3,4"), vals[0])
	n, ok := lua.ToNumber(vals[1])
	require.True(t, ok)
	require.Equal(t, float64(1), float64(n))
}

func TestTableLib_Sort(t *testing.T) {
	g := newTestGlobals(t, 100_000, 1<<20)
	vals, err := loadAndCall(t, g, `
		local t = {5,3,1,4,2}
		table.sort(t)
		return table.concat(t, ",")
	`)
	require.NoError(t, err)
	require.Equal(t, lua.String("1,2,3,4,5"), vals[0])
}

func TestTableLib_SortWithComparator(t *testing.T) {
	g := newTestGlobals(t, 100_000, 1<<20)
	vals, err := loadAndCall(t, g, `
		local t = {5,3,1,4,2}
		table.sort(t, function(a,b) return a > b end)
		return table.concat(t, ",")
	`)
	require.NoError(t, err)
	require.Equal(t, lua.String("5,4,3,2,1"), vals[0])
}

func TestTableLib_NumericForNegativeStep(t *testing.T) {
	g := newTestGlobals(t, 100_000, 1<<20)
	vals, err := loadAndCall(t, g, `
		local out = {}
		for i=5,1,-1 do
			out[#out+1] = i
		end
		return table.concat(out, ",")
	`)
	require.NoError(t, err)
	require.Equal(t, lua.String("5,4,3,2,1"), vals[0])
}

func TestTableLib_Varargs(t *testing.T) {
	g := newTestGlobals(t, 100_000, 1<<20)
	vals, err := loadAndCall(t, g, `
		local function sum(...)
			local args = {...}
			local total = 0
			for i=1,#args do total = total + args[i] end
			return total, select("#", ...)
		end
		return sum(1,2,3,4)
	`)
	require.NoError(t, err)
	n, ok := lua.ToNumber(vals[0])
	require.True(t, ok)
	require.Equal(t, float64(10), float64(n))
	n, ok = lua.ToNumber(vals[1])
	require.True(t, ok)
	require.Equal(t, float64(4), float64(n))
}
