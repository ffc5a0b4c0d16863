package lua_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	lua "github.com/empirephoenix/hardened-lua"
)

func TestCoroutine_ResumeOnDeadReturnsFalseWithoutBlocking(t *testing.T) {
	g := newTestGlobals(t, 100_000, 1<<20)
	fn, err := g.Load([]byte(`return 1`), "=(w)")
	require.NoError(t, err)
	th := g.Spawn(fn)

	ok, _, err := th.Resume(nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, lua.ThreadDead, th.Status())

	ok, vals, err := th.Resume(nil)
	require.NoError(t, err)
	require.False(t, ok)
	require.Len(t, vals, 1)
	require.Contains(t, vals[0].String(), "cannot resume dead")
}

func TestCoroutine_UncaughtErrorKillsWorkerAndReportsMessage(t *testing.T) {
	g := newTestGlobals(t, 100_000, 1<<20)
	fn, err := g.Load([]byte(`error("worker failed")`), "=(w)")
	require.NoError(t, err)
	th := g.Spawn(fn)

	ok, vals, err := th.Resume(nil)
	require.NoError(t, err)
	require.False(t, ok)
	require.Len(t, vals, 1)
	require.Contains(t, vals[0].String(), "worker failed")
	require.Equal(t, lua.ThreadDead, th.Status())
}

func TestCoroutine_YieldThenResumeDeliversArgs(t *testing.T) {
	g := newTestGlobals(t, 100_000, 1<<20)
	fn, err := g.Load([]byte(`
		local got = coroutine.yield("first")
		return "second:" .. tostring(got)
	`), "=(w)")
	require.NoError(t, err)
	th := g.Spawn(fn)

	ok, vals, err := th.Resume(nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, lua.String("first"), vals[0])
	require.Equal(t, lua.ThreadSuspended, th.Status())

	ok, vals, err = th.Resume([]lua.Value{lua.String("resumed-value")})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, lua.String("second:resumed-value"), vals[0])
	require.Equal(t, lua.ThreadDead, th.Status())
}

func TestCoroutine_WorkerIDIsStableAcrossResumes(t *testing.T) {
	g := newTestGlobals(t, 100_000, 1<<20)
	fn, err := g.Load([]byte(`coroutine.yield() return 1`), "=(w)")
	require.NoError(t, err)
	th := g.Spawn(fn)

	id1 := th.WorkerID()
	require.NotEmpty(t, id1)
	_, _, err = th.Resume(nil)
	require.NoError(t, err)
	require.Equal(t, id1, th.WorkerID())
}

// script-visible coroutine.* surface round-trips through the same state
// machine the Go-level Thread exposes.
func TestCoroutine_ScriptLevelCreateResumeStatus(t *testing.T) {
	g := newTestGlobals(t, 100_000, 1<<20)
	vals, err := loadAndCall(t, g, `
		local co = coroutine.create(function(a)
			local b = coroutine.yield(a + 1)
			return a + b
		end)
		local ok1, y1 = coroutine.resume(co, 10)
		local status1 = coroutine.status(co)
		local ok2, y2 = coroutine.resume(co, 5)
		local status2 = coroutine.status(co)
		return ok1, y1, status1, ok2, y2, status2
	`)
	require.NoError(t, err)
	require.Equal(t, lua.Bool(true), vals[0])
	n, _ := lua.ToNumber(vals[1])
	require.Equal(t, float64(11), float64(n))
	require.Equal(t, lua.String("suspended"), vals[2])
	require.Equal(t, lua.Bool(true), vals[3])
	n, _ = lua.ToNumber(vals[4])
	require.Equal(t, float64(15), float64(n))
	require.Equal(t, lua.String("dead"), vals[5])
}
