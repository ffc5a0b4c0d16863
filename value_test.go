package lua_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	lua "github.com/empirephoenix/hardened-lua"
)

// invariant: two constructions from byte-equal inputs are raweq-equal.
// String is a plain Go string under the hood, so this holds independent of
// the interning cache.
func TestValue_StringRawEqualityFromByteEqualInputs(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := rapid.String().Draw(rt, "s")
		a := lua.String(s)
		b := lua.Intern(s)
		require.Equal(t, a, b)
		require.True(t, a == b)
	})
}

func TestValue_IsTruthy(t *testing.T) {
	require.False(t, lua.IsTruthy(lua.Nil))
	require.False(t, lua.IsTruthy(lua.Bool(false)))
	require.True(t, lua.IsTruthy(lua.Bool(true)))
	require.True(t, lua.IsTruthy(lua.Int(0)))
	require.True(t, lua.IsTruthy(lua.String("")))
}

func TestValue_ToNumberCoercion(t *testing.T) {
	n, ok := lua.ToNumber(lua.String("3.5"))
	require.True(t, ok)
	require.Equal(t, lua.Number(3.5), n)

	_, ok = lua.ToNumber(lua.String("not a number"))
	require.False(t, ok)

	n, ok = lua.ToNumber(lua.Int(7))
	require.True(t, ok)
	require.Equal(t, lua.Number(7), n)
}

func TestValue_ToInt(t *testing.T) {
	i, ok := lua.ToInt(lua.Number(4))
	require.True(t, ok)
	require.Equal(t, lua.Int(4), i)

	_, ok = lua.ToInt(lua.Number(4.5))
	require.False(t, ok)
}
