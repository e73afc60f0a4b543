package jit

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wudi/opcore/ast"
	"github.com/wudi/opcore/engine"
)

func echoAssignBlock() *ast.Block {
	return ast.NewBlock([]ast.Operation{
		{Kind: ast.OpAssignGlobal, Name: "v", Source: ast.ValueSource{Kind: ast.ValueSourcePlain, Plain: ast.String("hi")}},
		{Kind: ast.OpExec, Exec: &ast.ExecInfo{
			Command: []ast.StringSource{ast.PlainString("true")},
			Stdin:   ast.Inherit(),
			Stdout:  ast.Inherit(),
		}},
	})
}

func noopRunner(h *engine.Handle, b *ast.Block) (ast.Signal, error) {
	return ast.OK, nil
}

func TestCompileRefusesTopLevelCall(t *testing.T) {
	b := ast.NewBlock([]ast.Operation{
		{Kind: ast.OpCall, Target: ast.ValueSource{Kind: ast.ValueSourceGlobalVariable, Name: "f"}},
	})
	c := NewCompiler(noopRunner)
	h := engine.Create()
	_, err := c.Compile(h, b)
	require.ErrorIs(t, err, ErrCallNotLowerable)
}

func TestCompiledEntryRunMatchesInterpretedSemantics(t *testing.T) {
	b := echoAssignBlock()
	c := NewCompiler(noopRunner)
	h := engine.Create()

	entry, err := c.Compile(h, b)
	require.NoError(t, err)
	defer entry.Close()

	sig, err := entry.Run()
	require.NoError(t, err)
	require.Equal(t, ast.OK, sig)

	v, ok := h.Engine().LookupGlobal("v")
	require.True(t, ok)
	require.Equal(t, "hi", v.Get().Str)
}

func TestCompiledEntryBreakStopsLowering(t *testing.T) {
	b := ast.NewBlock([]ast.Operation{
		{Kind: ast.OpBreak},
		{Kind: ast.OpAssignGlobal, Name: "unreached", Source: ast.ValueSource{Kind: ast.ValueSourcePlain, Plain: ast.Integer(1)}},
	})
	c := NewCompiler(noopRunner)
	h := engine.Create()

	entry, err := c.Compile(h, b)
	require.NoError(t, err)
	defer entry.Close()

	sig, err := entry.Run()
	require.NoError(t, err)
	require.Equal(t, ast.BREAK, sig)
	_, ok := h.Engine().LookupGlobal("unreached")
	require.False(t, ok)
}

func TestCompiledEntryIfElseDelegatesToRunner(t *testing.T) {
	var sawThen, sawElse bool
	runner := func(h *engine.Handle, b *ast.Block) (ast.Signal, error) {
		if len(b.Ops) > 0 && b.Ops[0].Kind == ast.OpPrint && b.Ops[0].Text.Plain == "then" {
			sawThen = true
		} else {
			sawElse = true
		}
		return ast.OK, nil
	}

	b := ast.NewBlock([]ast.Operation{
		{Kind: ast.OpIfElse,
			Then: ast.NewBlock([]ast.Operation{{Kind: ast.OpPrint, Text: ast.PlainString("then")}}),
			Else: ast.NewBlock([]ast.Operation{{Kind: ast.OpPrint, Text: ast.PlainString("else")}}),
		},
	})
	c := NewCompiler(runner)
	h := engine.Create()
	h.Engine().SetLastExitStatus(1) // truthy: THEN

	entry, err := c.Compile(h, b)
	require.NoError(t, err)
	defer entry.Close()

	sig, err := entry.Run()
	require.NoError(t, err)
	require.Equal(t, ast.OK, sig)
	require.True(t, sawThen)
	require.False(t, sawElse)
}

func TestCompiledEntryStatsReportsPinnedResources(t *testing.T) {
	b := echoAssignBlock()
	c := NewCompiler(noopRunner)
	h := engine.Create()

	entry, err := c.Compile(h, b)
	require.NoError(t, err)
	defer entry.Close()

	require.NotEmpty(t, entry.Stats())
}
