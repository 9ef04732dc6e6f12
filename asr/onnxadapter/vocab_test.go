package onnxadapter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeVocab(t *testing.T, tokens []string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "vocab.txt")
	data := ""
	for _, tok := range tokens {
		data += tok + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoadVocabRejectsEmpty(t *testing.T) {
	path := writeVocab(t, []string{"<blank>", "<bos>", "<eos>"})
	_, err := loadVocab(path)
	require.Error(t, err)
}

func TestLoadVocabOrdersByLine(t *testing.T) {
	path := writeVocab(t, []string{"<blank>", "<bos>", "<eos>", "a", "b", "c"})
	vocab, err := loadVocab(path)
	require.NoError(t, err)
	require.Equal(t, []string{"<blank>", "<bos>", "<eos>", "a", "b", "c"}, vocab)
}

func TestDecodeTokensSkipsSpecials(t *testing.T) {
	vocab := []string{"<blank>", "<bos>", "<eos>", "hi", "there"}
	got := decodeTokens(vocab, []int32{tokenBOS, 3, 4, tokenEOS}, true)
	require.Equal(t, "hithere", got)
}

func TestDecodeTokensKeepsSpecialsWhenNotSkipping(t *testing.T) {
	vocab := []string{"<blank>", "<bos>", "<eos>", "hi"}
	got := decodeTokens(vocab, []int32{tokenBOS, 3}, false)
	require.Equal(t, "<bos>hi", got)
}

func TestExtractFeaturesShortAudioIsEmpty(t *testing.T) {
	f := extractFeatures(make([]float32, 10))
	require.Equal(t, 0, f.frames)
}

func TestExtractFeaturesShape(t *testing.T) {
	samples := make([]float32, sampleRate) // 1 second
	for i := range samples {
		samples[i] = float32(i%100) / 100
	}
	f := extractFeatures(samples)
	require.Greater(t, f.frames, 0)
	require.Len(t, f.bands, numBands)
	for _, band := range f.bands {
		require.Len(t, band, f.frames)
	}
}
