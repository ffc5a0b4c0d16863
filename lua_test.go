package lua_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	lua "github.com/empirephoenix/hardened-lua"
	"github.com/empirephoenix/hardened-lua/compiler"
)

func newTestGlobals(t *testing.T, maxInstr int64, maxStringSize int) *lua.Globals {
	t.Helper()
	g := lua.NewGlobals(lua.Options{
		Compiler:             compiler.GoCompiler{},
		DefaultMaxInstr:      maxInstr,
		DefaultMaxStringSize: maxStringSize,
		MaxSourceLen:         1 << 16,
		MainMaxInstr:         maxInstr,
	})
	lua.OpenLibs(g)
	return g
}

func loadAndCall(t *testing.T, g *lua.Globals, src string) ([]lua.Value, error) {
	t.Helper()
	fn, err := g.Load([]byte(src), "=(test)")
	require.NoError(t, err)
	return g.Call(fn)
}

// A tight infinite loop on the main call context fails with LimitExceeded at
// exactly the installed budget, leaving the counter at that ceiling rather
// than one step past it.
func TestScenario_TightLoopHitsInstructionLimit(t *testing.T) {
	g := newTestGlobals(t, 50, 1<<20)
	_, err := loadAndCall(t, g, `x=0 for i=1,1e9 do x=x+1 end return x`)
	require.Error(t, err)
	var limErr *lua.LimitExceeded
	require.ErrorAs(t, err, &limErr)
	require.Equal(t, int64(50), limErr.Max)

	lim := g.LookupLimit(g.MainWorkerID())
	require.NotNil(t, lim)
	require.Equal(t, int64(50), lim.Current())
}

// A concat loop that grows a string past the installed size cap fails with
// StringLimitExceeded well under the instruction budget.
func TestScenario_ConcatLoopHitsStringSizeLimit(t *testing.T) {
	g := newTestGlobals(t, 10_000, 100)
	_, err := loadAndCall(t, g, `local s="" for i=1,100 do s=s..s.."a" end return #s`)
	require.Error(t, err)
	var strErr *lua.StringLimitExceeded
	require.ErrorAs(t, err, &strErr)
	require.Equal(t, 100, strErr.Max)

	lim := g.LookupLimit(g.MainWorkerID())
	require.Less(t, lim.Current(), int64(10_000))
}

// A worker yield-loop driven by an install/reset/resume cycle returns
// monotonically increasing values, and an initial budget too small to reach
// the first yield auto-suspends with a nil result instead of erroring.
func TestScenario_CoroutineYieldLoopWithReinstall(t *testing.T) {
	g := newTestGlobals(t, 1_000_000, 100)
	fn, err := g.Load([]byte(`local n=0 while true do n=n+1 coroutine.yield(n) end`), "=(worker)")
	require.NoError(t, err)

	th := g.Spawn(fn)
	g.InstallLimit(th.WorkerID(), 1, 100)

	ok, vals, err := th.Resume(nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, vals, 0)

	g.InstallLimit(th.WorkerID(), 500, 100)

	var lastK int64 = -1
	for i := 0; i < 5; i++ {
		g.ResetLimit(th.WorkerID())
		ok, vals, err = th.Resume(nil)
		require.NoError(t, err)
		require.True(t, ok)
		require.Len(t, vals, 1)
		n, isNum := lua.ToNumber(vals[0])
		require.True(t, isNum)
		k := int64(n)
		if lastK >= 0 {
			require.Equal(t, lastK+1, k)
		}
		lastK = k
	}
}

// Deleting a middle array element leaves #t as a valid border that is never
// the deleted index.
func TestScenario_TableLengthAfterMiddleDelete(t *testing.T) {
	g := newTestGlobals(t, 1_000_000, 1<<20)
	vals, err := loadAndCall(t, g, `local t={} t[1]=10 t[2]=20 t[3]=30 t[2]=nil return #t`)
	require.NoError(t, err)
	require.Len(t, vals, 1)
	n, ok := lua.ToNumber(vals[0])
	require.True(t, ok)
	require.NotEqual(t, 2, int(n))
	require.Contains(t, []int{1, 3}, int(n))
}

// table.contains charges its flat 10-instruction cost regardless of table size.
func TestScenario_TableContainsFlatCharge(t *testing.T) {
	g := newTestGlobals(t, 30, 1<<20)
	vals, err := loadAndCall(t, g, `return table.contains({1,2,3,4,5}, 4)`)
	require.NoError(t, err)
	require.Len(t, vals, 1)
	require.Equal(t, lua.Bool(true), vals[0])

	lim := g.LookupLimit(g.MainWorkerID())
	require.Less(t, lim.Current(), int64(30))
	require.GreaterOrEqual(t, lim.Current(), int64(10))
}

// pcall does not shield the call from LimitExceeded; the budget fault
// unwinds past the protected-call boundary instead of being caught.
func TestScenario_PcallDoesNotCatchLimitExceeded(t *testing.T) {
	g := newTestGlobals(t, 100, 1<<20)
	_, err := loadAndCall(t, g, `return pcall(function() while true do end end)`)
	require.Error(t, err)
	var limErr *lua.LimitExceeded
	require.ErrorAs(t, err, &limErr)
}

// boundary: a script exactly at the source-length cap loads; one byte more
// fails ScriptTooLong.
func TestBoundary_ScriptTooLong(t *testing.T) {
	g := lua.NewGlobals(lua.Options{
		Compiler:             compiler.GoCompiler{},
		DefaultMaxInstr:      1000,
		DefaultMaxStringSize: 1 << 20,
		MaxSourceLen:         16,
	})
	lua.OpenLibs(g)

	ok := []byte(`return 1`)
	for len(ok) < 16 {
		ok = append(ok, ' ')
	}
	require.Len(t, ok, 16)
	_, err := g.Load(ok, "=(ok)")
	require.NoError(t, err)

	tooLong := append(append([]byte{}, ok...), ' ')
	_, err = g.Load(tooLong, "=(long)")
	require.Error(t, err)
	var tl *lua.ScriptTooLong
	require.ErrorAs(t, err, &tl)
}

// boundary: resuming a worker already at its limit returns Nil without
// executing a single opcode (counter unchanged).
func TestBoundary_ResumeAtLimitIsNoOp(t *testing.T) {
	g := newTestGlobals(t, 1_000_000, 1<<20)
	fn, err := g.Load([]byte(`local n=0 while true do n=n+1 coroutine.yield(n) end`), "=(worker)")
	require.NoError(t, err)

	th := g.Spawn(fn)
	g.InstallLimit(th.WorkerID(), 3, 1<<20)

	// Too small a budget to reach the first explicit yield: the VM itself
	// auto-suspends mid-script, leaving current already >= max.
	ok, _, err := th.Resume(nil)
	require.NoError(t, err)
	require.True(t, ok)

	lim := g.LookupLimit(th.WorkerID())
	require.GreaterOrEqual(t, lim.Current(), lim.Max())
	stuckAt := lim.Current()

	// A second resume with no intervening reset must not touch the parked
	// goroutine at all: it returns Nil immediately and the counter holds.
	ok, vals, err := th.Resume(nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, vals, 1)
	require.Equal(t, lua.Nil, vals[0])
	require.Equal(t, stuckAt, lim.Current())
}

// invariant: install/reset round-trip leaves current at zero.
func TestInvariant_InstallResetRoundTrip(t *testing.T) {
	g := newTestGlobals(t, 1000, 1<<20)
	g.InstallLimit("w1", 500, 100)
	lim := g.LookupLimit("w1")
	require.NotNil(t, lim)
	lim.MaxStringSize()
	g.ResetLimit("w1")
	require.Equal(t, int64(0), lim.Current())
}

// invariant: a successful call's counter delta equals the opcode count it
// dispatched exactly (a fixed, tiny chunk has a known, stable opcode count).
func TestInvariant_CounterEqualsDispatchedOpcodes(t *testing.T) {
	g := newTestGlobals(t, 1000, 1<<20)
	_, err := loadAndCall(t, g, `return 1+1`)
	require.NoError(t, err)
	lim := g.LookupLimit(g.MainWorkerID())
	require.Greater(t, lim.Current(), int64(0))
	first := lim.Current()

	g.ResetLimit(g.MainWorkerID())
	_, err = loadAndCall(t, g, `return 1+1`)
	require.NoError(t, err)
	require.Equal(t, first, lim.Current())
}
