package lua_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	lua "github.com/empirephoenix/hardened-lua"
)

func TestBaseLib_PcallCatchesScriptError(t *testing.T) {
	g := newTestGlobals(t, 100_000, 1<<20)
	vals, err := loadAndCall(t, g, `
		local ok, msg = pcall(function() error("boom") end)
		return ok, msg
	`)
	require.NoError(t, err)
	require.Len(t, vals, 2)
	require.Equal(t, lua.Bool(false), vals[0])
	require.Contains(t, vals[1].String(), "boom")
}

func TestBaseLib_AssertRaisesOnFalsy(t *testing.T) {
	g := newTestGlobals(t, 100_000, 1<<20)
	vals, err := loadAndCall(t, g, `
		local ok, msg = pcall(function() assert(false, "nope") end)
		return ok, msg
	`)
	require.NoError(t, err)
	require.Equal(t, lua.Bool(false), vals[0])
	require.Contains(t, vals[1].String(), "nope")
}

func TestBaseLib_TypeReportsEachVariant(t *testing.T) {
	g := newTestGlobals(t, 100_000, 1<<20)
	vals, err := loadAndCall(t, g, `
		return type(nil), type(true), type(1), type("s"), type({}), type(print)
	`)
	require.NoError(t, err)
	want := []string{"nil", "boolean", "number", "string", "table", "function"}
	require.Len(t, vals, len(want))
	for i, w := range want {
		require.Equal(t, w, vals[i].String())
	}
}

func TestBaseLib_PairsVisitsAllEntries(t *testing.T) {
	g := newTestGlobals(t, 100_000, 1<<20)
	vals, err := loadAndCall(t, g, `
		local t = {a=1, b=2, c=3}
		local sum = 0
		for k, v in pairs(t) do
			sum = sum + v
		end
		return sum
	`)
	require.NoError(t, err)
	n, ok := lua.ToNumber(vals[0])
	require.True(t, ok)
	require.Equal(t, float64(6), float64(n))
}

func TestBaseLib_IpairsStopsAtFirstHole(t *testing.T) {
	g := newTestGlobals(t, 100_000, 1<<20)
	vals, err := loadAndCall(t, g, `
		local t = {1,2,3}
		t[2] = nil
		local count = 0
		for i, v in ipairs(t) do
			count = count + 1
		end
		return count
	`)
	require.NoError(t, err)
	n, ok := lua.ToNumber(vals[0])
	require.True(t, ok)
	require.Equal(t, float64(1), float64(n))
}

func TestBaseLib_SetMetatableIndexMetamethod(t *testing.T) {
	g := newTestGlobals(t, 100_000, 1<<20)
	vals, err := loadAndCall(t, g, `
		local base = {greeting = "hi"}
		local derived = setmetatable({}, {__index = base})
		return derived.greeting
	`)
	require.NoError(t, err)
	require.Equal(t, lua.String("hi"), vals[0])
}

// A worker that floods print() past the console queue's capacity yields
// and retries rather than deadlocking against its own resumer: draining
// the queue between resumes lets the worker make forward progress and
// eventually finish.
func TestBaseLib_PrintYieldsOnFullConsoleQueueInsteadOfDeadlocking(t *testing.T) {
	g := newTestGlobals(t, 1_000_000, 1<<20)
	fn, err := g.Load([]byte(`
		for i=1,50 do print(i) end
		return "done"
	`), "=(printer)")
	require.NoError(t, err)

	th := g.Spawn(fn)
	var got []string
	finished := false
	for i := 0; i < 100 && !finished; i++ {
		ok, vals, rerr := th.Resume(nil)
		require.NoError(t, rerr)
		require.True(t, ok)
		for {
			v, has := g.TryDequeueConsole()
			if !has {
				break
			}
			got = append(got, v.String())
		}
		if th.Status() == lua.ThreadDead {
			require.Equal(t, []lua.Value{lua.String("done")}, vals)
			finished = true
		}
	}
	require.True(t, finished, "worker never finished draining the console queue")
	require.Len(t, got, 50)
}

// Runtime error messages are prefixed with the chunk name and source line.
func TestBaseLib_RuntimeErrorMessageHasSourceLinePrefix(t *testing.T) {
	g := newTestGlobals(t, 100_000, 1<<20)
	_, err := loadAndCall(t, g, `
		local t = nil
		return t.field
	`)
	require.Error(t, err)
	var luaErr *lua.LuaError
	require.ErrorAs(t, err, &luaErr)
	require.Contains(t, luaErr.Error(), ":")
}
