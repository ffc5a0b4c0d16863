package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	lua "github.com/empirephoenix/hardened-lua"
	"github.com/empirephoenix/hardened-lua/compiler"
)

func TestCompile_SimpleChunkProducesRunnableBytecode(t *testing.T) {
	proto, err := compiler.Compile([]byte(`local x = 1 return x + 1`), "=(t)")
	require.NoError(t, err)
	require.NotNil(t, proto)
	require.NotEmpty(t, proto.Code)
	require.True(t, proto.IsVararg)
}

func TestCompile_VarargFunctionSetsIsVararg(t *testing.T) {
	proto, err := compiler.Compile([]byte(`local function f(...) return ... end return f`), "=(t)")
	require.NoError(t, err)
	require.NotEmpty(t, proto.Protos)
	require.True(t, proto.Protos[0].IsVararg)
}

func TestCompile_NestedFunctionBecomesChildPrototype(t *testing.T) {
	proto, err := compiler.Compile([]byte(`
		local function outer(a, b)
			return a + b
		end
		return outer
	`), "=(t)")
	require.NoError(t, err)
	require.Len(t, proto.Protos, 1)
	require.Equal(t, 2, proto.Protos[0].NumParams)
}

func TestCompile_SyntaxErrorReportsLine(t *testing.T) {
	_, err := compiler.Compile([]byte("local x =\nlocal y = )"), "=(bad)")
	require.Error(t, err)
	var ce *lua.CompileError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, "=(bad)", ce.Source)
	require.Greater(t, ce.Line, 0)
}

func TestCompile_UnresolvedForwardGotoFails(t *testing.T) {
	_, err := compiler.Compile([]byte(`goto nowhere`), "=(bad-goto)")
	require.Error(t, err)
	var ce *lua.CompileError
	require.ErrorAs(t, err, &ce)
}

func TestGoCompiler_SatisfiesLuaCompilerInterface(t *testing.T) {
	var c lua.Compiler = compiler.GoCompiler{}
	proto, err := c.Compile([]byte(`return 1`), "=(iface)")
	require.NoError(t, err)
	require.NotNil(t, proto)
}
