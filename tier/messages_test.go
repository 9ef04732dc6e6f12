package tier

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenClassification(t *testing.T) {
	ordinary := Token(100)
	require.False(t, ordinary.IsSpecial())
	require.False(t, ordinary.IsTimestamp())
	require.False(t, ordinary.IsHeader())

	header := HeaderTokenThreshold
	require.True(t, header.IsSpecial())
	require.False(t, header.IsTimestamp())
	require.True(t, header.IsHeader())

	timestamp := TimestampTokenThreshold
	require.True(t, timestamp.IsSpecial())
	require.True(t, timestamp.IsTimestamp())
	require.False(t, timestamp.IsHeader())
}
