package lua_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	lua "github.com/empirephoenix/hardened-lua"
)

// invariant: closures created in successive loop iterations close over
// distinct upvalue cells once the iteration's scope unwinds — the classic
// probe for "did upvalues actually close instead of aliasing one slot".
func TestClosure_LoopCapturesDistinctUpvalues(t *testing.T) {
	g := newTestGlobals(t, 1_000_000, 1<<20)
	vals, err := loadAndCall(t, g, `
		local fns = {}
		for i=1,3 do
			local x = i
			fns[i] = function() return x end
		end
		return fns[1](), fns[2](), fns[3]()
	`)
	require.NoError(t, err)
	require.Len(t, vals, 3)
	for i, v := range vals {
		n, ok := lua.ToNumber(v)
		require.True(t, ok)
		require.Equal(t, float64(i+1), float64(n))
	}
}

// a shared upvalue (captured once outside any loop) is genuinely shared:
// mutating it through one closure is visible through another.
func TestClosure_SharedUpvalueIsSharedUntilClosed(t *testing.T) {
	g := newTestGlobals(t, 1_000_000, 1<<20)
	vals, err := loadAndCall(t, g, `
		local function counter()
			local n = 0
			local function inc() n = n + 1 return n end
			local function get() return n end
			return inc, get
		end
		local inc, get = counter()
		inc()
		inc()
		return get()
	`)
	require.NoError(t, err)
	require.Len(t, vals, 1)
	n, ok := lua.ToNumber(vals[0])
	require.True(t, ok)
	require.Equal(t, float64(2), float64(n))
}
