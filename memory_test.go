package lua_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	lua "github.com/empirephoenix/hardened-lua"
)

func TestUsedMemory_ScalarWeights(t *testing.T) {
	require.Equal(t, int64(0), lua.UsedMemory(lua.Nil))
	require.Equal(t, int64(1), lua.UsedMemory(lua.Bool(true)))
	require.Equal(t, int64(4), lua.UsedMemory(lua.Int(7)))
	require.Equal(t, int64(8), lua.UsedMemory(lua.Number(3.5)))
	require.Equal(t, int64(5), lua.UsedMemory(lua.String("hello")))
}

func TestUsedMemory_TableSumsChildren(t *testing.T) {
	tbl := lua.NewTable(0, 0)
	tbl.Set(lua.String("a"), lua.String("xy"))
	tbl.Set(lua.String("b"), lua.Int(1))
	require.Equal(t, int64(2+4), lua.UsedMemory(tbl))
}

// terminates on a self-referential cycle instead of looping forever.
func TestUsedMemory_CyclicTableTerminates(t *testing.T) {
	a := lua.NewTable(0, 0)
	b := lua.NewTable(0, 0)
	a.Set(lua.String("b"), b)
	b.Set(lua.String("a"), a)
	b.Set(lua.String("n"), lua.Int(3))

	done := make(chan int64, 1)
	go func() { done <- lua.UsedMemory(a) }()
	select {
	case got := <-done:
		require.Equal(t, int64(4), got) // only b's Int(3) child, each table visited once
	case <-time.After(2 * time.Second):
		t.Fatal("UsedMemory did not terminate on a cyclic structure")
	}
}
