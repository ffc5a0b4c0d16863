package lua_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	lua "github.com/empirephoenix/hardened-lua"
)

// invariant: after t[k]=v; t[k]=nil, no subsequent next(t, k') yields k.
func TestTable_DeletionIsObservable(t *testing.T) {
	tbl := lua.NewTable(0, 4)
	tbl.Set(lua.String("a"), lua.Int(1))
	tbl.Set(lua.String("b"), lua.Int(2))
	tbl.Set(lua.String("a"), lua.Nil)

	seen := map[string]bool{}
	k, v, more := tbl.Next(lua.Nil)
	for more && k.Type() != lua.TypeNil {
		seen[k.String()] = true
		k, v, more = tbl.Next(k)
	}
	_ = v
	require.False(t, seen["a"])
	require.True(t, seen["b"])
}

// Deleting a middle array element, exercised at the Table level directly,
// leaves #t at a valid border, never the deleted index.
func TestTable_LengthBorderAfterMiddleDelete(t *testing.T) {
	tbl := lua.NewTable(0, 0)
	tbl.Set(lua.Int(1), lua.Int(10))
	tbl.Set(lua.Int(2), lua.Int(20))
	tbl.Set(lua.Int(3), lua.Int(30))
	tbl.Set(lua.Int(2), lua.Nil)

	n := tbl.Len()
	require.NotEqual(t, 2, n)
	require.Contains(t, []int{1, 3}, n)
}

// round-trip: a walk with no concurrent mutation visits every live pair
// exactly once.
func TestTable_IterationVisitsEachLivePairOnce(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tbl := lua.NewTable(0, 0)
		want := map[string]lua.Value{}
		n := rapid.IntRange(0, 40).Draw(rt, "n")
		for i := 0; i < n; i++ {
			key := rapid.StringMatching(`[a-z]{1,6}`).Draw(rt, "key")
			if rapid.Bool().Draw(rt, "delete") {
				tbl.Set(lua.String(key), lua.Nil)
				delete(want, key)
				continue
			}
			val := lua.Int(rapid.Int32().Draw(rt, "val"))
			tbl.Set(lua.String(key), val)
			want[key] = val
		}

		seenCount := map[string]int{}
		k, v, more := tbl.Next(lua.Nil)
		for more && k.Type() != lua.TypeNil {
			ks := k.String()
			seenCount[ks]++
			expect, ok := want[ks]
			if !ok {
				rt.Fatalf("iteration yielded key %q not in expected live set", ks)
			}
			if expect != v {
				rt.Fatalf("iteration yielded stale value for key %q", ks)
			}
			k, v, more = tbl.Next(k)
		}
		for key, count := range seenCount {
			if count != 1 {
				rt.Fatalf("key %q visited %d times, want exactly once", key, count)
			}
		}
		if len(seenCount) != len(want) {
			rt.Fatalf("iteration visited %d keys, want %d", len(seenCount), len(want))
		}
	})
}

// round-trip: Append/Remove keep the array part's border sane.
func TestTable_AppendRemoveRoundTrip(t *testing.T) {
	tbl := lua.NewTable(0, 0)
	for i := 1; i <= 5; i++ {
		tbl.Append(lua.Int(int32(i)))
	}
	require.Equal(t, 5, tbl.Len())
	removed := tbl.Remove(3)
	require.Equal(t, lua.Int(3), removed)
	require.Equal(t, 4, tbl.Len())
}

func TestTable_Contains(t *testing.T) {
	tbl := lua.NewTable(0, 0)
	for i := 1; i <= 5; i++ {
		tbl.Append(lua.Int(int32(i)))
	}
	require.True(t, tbl.Contains(lua.Int(4)))
	require.False(t, tbl.Contains(lua.Int(99)))
}
