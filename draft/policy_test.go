package draft

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyContinuousReplaces(t *testing.T) {
	var b Buffer
	b.Replace([]Token{1, 2})
	Apply(&b, UpstreamContinuous, []Token{9}, neverHeader)
	require.Equal(t, []Token{9}, b.Snapshot())
}

func TestApplyChunkAppends(t *testing.T) {
	var b Buffer
	isHeader := alwaysHeaderBelow(50300)
	Apply(&b, UpstreamChunk, []Token{50300, 1}, isHeader)
	Apply(&b, UpstreamChunk, []Token{50300, 2}, isHeader)
	require.Equal(t, []Token{50300, 1, 2}, b.Snapshot())
}

func TestEligibleRejectsLevelOneAndBelow(t *testing.T) {
	b := &Buffer{}
	b.Replace([]Token{1})
	require.False(t, Eligible(0, b))
	require.False(t, Eligible(1, b))
}

func TestEligibleRejectsNilBuffer(t *testing.T) {
	require.False(t, Eligible(2, nil))
}

func TestEligibleRejectsEmptyBuffer(t *testing.T) {
	require.False(t, Eligible(2, &Buffer{}))
}

func TestEligibleTrueForHigherLevelWithTokens(t *testing.T) {
	b := &Buffer{}
	b.Replace([]Token{1, 2})
	require.True(t, Eligible(2, b))
	require.True(t, Eligible(4, b))
}
