package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wudi/opcore/ast"
)

func TestAssignGlobalAndLookup(t *testing.T) {
	e := newEngine()
	e.AssignGlobal("v", ast.NewVariable(ast.String("hi")))

	v, ok := e.LookupGlobal("v")
	require.True(t, ok)
	require.Equal(t, "hi", v.Get().Str)

	_, ok = e.LookupGlobal("missing")
	require.False(t, ok)
}

func TestAssignLocalRequiresFrame(t *testing.T) {
	e := newEngine()
	err := e.AssignLocal("x", ast.NewVariable(ast.Integer(1)))
	require.Error(t, err)

	e.PushFrame()
	require.NoError(t, e.AssignLocal("x", ast.NewVariable(ast.Integer(1))))
	v, ok := e.LookupLocal("x")
	require.True(t, ok)
	require.Equal(t, int64(1), v.Get().Integer)
	e.PopFrame()

	_, ok = e.LookupLocal("x")
	require.False(t, ok)
}

func TestFrameBalance(t *testing.T) {
	e := newEngine()
	require.Equal(t, 0, e.StackDepth())
	e.PushFrame()
	e.PushFrame()
	require.Equal(t, 2, e.StackDepth())
	e.PopFrame()
	e.PopFrame()
	require.Equal(t, 0, e.StackDepth())
}

func TestLastExitStatus(t *testing.T) {
	e := newEngine()
	require.EqualValues(t, 0, e.LastExitStatus())
	e.SetLastExitStatus(7)
	require.EqualValues(t, 7, e.LastExitStatus())
}

func TestHandleCloneIsIndependent(t *testing.T) {
	h := Create()
	h.Engine().AssignGlobal("v", ast.NewVariable(ast.Integer(1)))
	h.Engine().PushFrame()
	h.Engine().AssignLocal("n", ast.NewVariable(ast.Integer(9)))
	h.Engine().SetLastExitStatus(5)

	clone := h.Clone()

	cv, ok := clone.Engine().LookupGlobal("v")
	require.True(t, ok)
	require.Equal(t, int64(1), cv.Get().Integer)
	require.EqualValues(t, 5, clone.Engine().LastExitStatus())
	require.Equal(t, 1, clone.Engine().StackDepth())

	// Mutating the clone must not affect the source.
	cv.Set(ast.Integer(99))
	ov, _ := h.Engine().LookupGlobal("v")
	require.Equal(t, int64(1), ov.Get().Integer)

	clone.Engine().SetLastExitStatus(123)
	require.EqualValues(t, 5, h.Engine().LastExitStatus())
}

func TestHandleCloneDeepClonesFunctionBlocks(t *testing.T) {
	fnBlock := ast.NewBlock([]ast.Operation{{Kind: ast.OpBreak}})
	fnBlock.RecordCall()
	h := Create()
	h.Engine().AssignGlobal("f", ast.NewVariable(ast.Function(fnBlock)))

	clone := h.Clone()
	cv, _ := clone.Engine().LookupGlobal("f")
	require.NotSame(t, fnBlock, cv.Get().Function)
	require.Equal(t, 0, cv.Get().Function.CallCount())
}
