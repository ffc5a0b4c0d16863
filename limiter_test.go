package lua_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	lua "github.com/empirephoenix/hardened-lua"
)

func TestLimiter_InstallResetRoundTrip(t *testing.T) {
	g := lua.NewGlobals(lua.Options{})
	lim := g.InstallLimit("w", 500, 100)
	require.Equal(t, int64(500), lim.Max())
	require.Equal(t, 100, lim.MaxStringSize())
	require.Equal(t, int64(0), lim.Current())

	g.ResetLimit("w")
	require.Equal(t, int64(0), lim.Current())
}

func TestLimiter_ReinstallReconfiguresInPlace(t *testing.T) {
	g := lua.NewGlobals(lua.Options{})
	first := g.InstallLimit("w", 1, 100)
	require.Equal(t, int64(1), first.Max())

	second := g.InstallLimit("w", 500, 200)
	require.Same(t, first, second) // same record, reconfigured, not replaced
	require.Equal(t, int64(500), second.Max())
	require.Equal(t, 200, second.MaxStringSize())
	require.Equal(t, int64(0), second.Current())
}

// monotonicity: in a single uninterrupted run between resets, current is
// non-decreasing, observed across repeated calls on the same main context.
func TestLimiter_MonotonicBetweenResets(t *testing.T) {
	g := newTestGlobals(t, 1_000_000, 1<<20)
	lim := g.LookupLimit(g.MainWorkerID())
	var prev int64
	for i := 0; i < 10; i++ {
		_, err := loadAndCall(t, g, `local x=0 for i=1,5 do x=x+1 end return x`)
		require.NoError(t, err)
		cur := lim.Current()
		require.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
}

// boundary: a chunk's exact opcode count as the budget succeeds; one fewer
// fails with LimitExceeded.
func TestLimiter_BoundaryAtMax(t *testing.T) {
	const src = `return 1+1`

	probe := newTestGlobals(t, 1_000_000, 1<<20)
	_, err := loadAndCall(t, probe, src)
	require.NoError(t, err)
	exact := probe.LookupLimit(probe.MainWorkerID()).Current()
	require.Greater(t, exact, int64(0))

	atExact := newTestGlobals(t, exact, 1<<20)
	_, err = loadAndCall(t, atExact, src)
	require.NoError(t, err)

	oneShort := newTestGlobals(t, exact-1, 1<<20)
	_, err = loadAndCall(t, oneShort, src)
	require.Error(t, err)
	var limErr *lua.LimitExceeded
	require.ErrorAs(t, err, &limErr)
}
