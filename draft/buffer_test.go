package draft

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReplaceOverwritesBuffer(t *testing.T) {
	var b Buffer
	b.AppendChunk([]Token{1, 2, 3}, neverHeader)
	b.Replace([]Token{9, 9})
	require.Equal(t, []Token{9, 9}, b.Snapshot())
}

func TestAppendChunkKeepsHeaderOnFirstChunk(t *testing.T) {
	var b Buffer
	b.AppendChunk([]Token{50300, 1, 2}, alwaysHeaderBelow(50300))
	require.Equal(t, []Token{50300, 1, 2}, b.Snapshot())
}

func TestAppendChunkStripsHeaderOnSubsequentChunks(t *testing.T) {
	var b Buffer
	isHeader := alwaysHeaderBelow(50300)
	b.AppendChunk([]Token{50300, 1, 2}, isHeader)
	b.AppendChunk([]Token{50300, 3, 4}, isHeader)
	require.Equal(t, []Token{50300, 1, 2, 3, 4}, b.Snapshot())
}

func TestClearResetsHeaderTracking(t *testing.T) {
	var b Buffer
	isHeader := alwaysHeaderBelow(50300)
	b.AppendChunk([]Token{50300, 1}, isHeader)
	b.Clear()
	require.Equal(t, 0, b.Len())

	b.AppendChunk([]Token{50300, 2}, isHeader)
	require.Equal(t, []Token{50300, 2}, b.Snapshot())
}

func TestLenReflectsContents(t *testing.T) {
	var b Buffer
	require.Equal(t, 0, b.Len())
	b.Replace([]Token{1, 2, 3})
	require.Equal(t, 3, b.Len())
}

func neverHeader(Token) bool { return false }

func alwaysHeaderBelow(threshold Token) func(Token) bool {
	return func(t Token) bool { return t >= threshold }
}
