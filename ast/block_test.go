package ast

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type stubCompiled struct {
	closed bool
}

func (s *stubCompiled) Run() (Signal, error) { return OK, nil }
func (s *stubCompiled) Close()               { s.closed = true }

func TestBlockCloneResetsCounterAndCompiledEntry(t *testing.T) {
	b := NewBlock([]Operation{{Kind: OpBreak}})
	require.False(t, b.RecordCall()) // 1
	require.False(t, b.RecordCall()) // 2
	require.True(t, b.RecordCall())  // 3: crosses TierUpThreshold
	b.SetCompiled(&stubCompiled{})
	require.NotNil(t, b.Compiled())

	clone := b.Clone()
	require.Nil(t, clone.Compiled())
	require.Equal(t, 0, clone.CallCount())
	require.NotNil(t, b.Compiled(), "cloning must not mutate the original")
}

func TestBlockRecordCallCrossesThresholdExactlyOnce(t *testing.T) {
	b := NewBlock(nil)
	require.False(t, b.RecordCall()) // 1
	require.False(t, b.RecordCall()) // 2
	require.True(t, b.RecordCall())  // 3: crosses TierUpThreshold
	require.False(t, b.RecordCall()) // 4: compiled is still nil in this test, but already past the single trigger
}

func TestSetCompiledClosesPrevious(t *testing.T) {
	b := NewBlock(nil)
	first := &stubCompiled{}
	b.SetCompiled(first)
	second := &stubCompiled{}
	b.SetCompiled(second)
	require.True(t, first.closed)
	require.False(t, second.closed)
}

func TestCloneDeepClonesNestedBlocks(t *testing.T) {
	inner := NewBlock([]Operation{{Kind: OpBreak}})
	outer := NewBlock([]Operation{{Kind: OpLoop, Body: inner}})

	clone := outer.Clone()
	require.NotSame(t, inner, clone.Ops[0].Body)
	require.Equal(t, len(inner.Ops), len(clone.Ops[0].Body.Ops))
}
