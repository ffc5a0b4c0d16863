package lua_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	lua "github.com/empirephoenix/hardened-lua"
)

// round-trip: concat over s1..sN is byte-equal to sequential two-argument
// concats, as long as no intermediate exceeds max_string_size.
func TestConcat_MultiValueMatchesSequentialPairwise(t *testing.T) {
	g := newTestGlobals(t, 1_000_000, 1<<20)
	vals, err := loadAndCall(t, g, `
		local a,b,c,d = "ab","cd","ef","gh"
		local multi = a..b..c..d
		local pairwise = ((a..b)..c)..d
		return multi == pairwise, multi
	`)
	require.NoError(t, err)
	require.Len(t, vals, 2)
	require.Equal(t, lua.Bool(true), vals[0])
	require.Equal(t, lua.String("abcdefgh"), vals[1])
}

// boundary: a concat producing exactly max_string_size bytes succeeds; one
// byte more fails with StringLimitExceeded.
func TestConcat_ExactlyAtStringSizeLimitSucceeds(t *testing.T) {
	g := newTestGlobals(t, 10_000, 8)
	vals, err := loadAndCall(t, g, `return "aaaa" .. "bbbb"`)
	require.NoError(t, err)
	require.Equal(t, lua.String("aaaabbbb"), vals[0])

	g2 := newTestGlobals(t, 10_000, 8)
	_, err = loadAndCall(t, g2, `return "aaaa" .. "bbbbb"`)
	require.Error(t, err)
	var strErr *lua.StringLimitExceeded
	require.ErrorAs(t, err, &strErr)
}
