package verifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func forwardReturning(logits Logits, err error) ForwardFunc {
	return func(context.Context, any, []Token) (Logits, error) {
		return logits, err
	}
}

func TestVerifyEmptyDraftReturnsZero(t *testing.T) {
	res := Verify(context.Background(), forwardReturning(nil, nil), nil, nil)
	require.Equal(t, 0, res.TotalCount)
	require.Equal(t, 0, res.VerifiedCount)
	require.Nil(t, res.ValidPrefix)
}

func TestVerifySingleTokenDraftReturnsZero(t *testing.T) {
	res := Verify(context.Background(), forwardReturning(nil, nil), nil, []Token{5})
	require.Equal(t, 0, res.TotalCount)
	require.Equal(t, 0, res.VerifiedCount)
}

func TestVerifyForwardErrorIsSwallowed(t *testing.T) {
	draft := []Token{1, 2, 3}
	res := Verify(context.Background(), forwardReturning(nil, errors.New("boom")), nil, draft)
	require.Equal(t, 2, res.TotalCount)
	require.Equal(t, 0, res.VerifiedCount)
	require.Nil(t, res.ValidPrefix)
}

func TestVerifyFullHit(t *testing.T) {
	draft := []Token{1, 2, 3}
	logits := Logits{
		{0, 0, 100, 0}, // argmax 2 -> matches draft[1]
		{0, 0, 0, 100}, // argmax 3 -> matches draft[2]
	}
	res := Verify(context.Background(), forwardReturning(logits, nil), nil, draft)
	require.Equal(t, 2, res.TotalCount)
	require.Equal(t, 2, res.VerifiedCount)
	require.Equal(t, []Token{1, 2, 3}, res.ValidPrefix)
	require.InDelta(t, 1.0, res.HitRate, 1e-9)
}

func TestVerifyPartialHitStopsAtFirstMismatch(t *testing.T) {
	draft := []Token{1, 2, 3}
	logits := Logits{
		{0, 0, 100, 0}, // argmax 2 -> matches draft[1]
		{100, 0, 0, 0}, // argmax 0 -> mismatches draft[2]
	}
	res := Verify(context.Background(), forwardReturning(logits, nil), nil, draft)
	require.Equal(t, 2, res.TotalCount)
	require.Equal(t, 1, res.VerifiedCount)
	require.Equal(t, []Token{1, 2}, res.ValidPrefix)
	require.InDelta(t, 0.5, res.HitRate, 1e-9)
}

func TestVerifyZeroHitKeepsFirstTokenInPrefix(t *testing.T) {
	draft := []Token{1, 2, 3}
	logits := Logits{
		{100, 0, 0, 0}, // argmax 0 -> mismatches draft[1]
		{100, 0, 0, 0},
	}
	res := Verify(context.Background(), forwardReturning(logits, nil), nil, draft)
	require.Equal(t, 0, res.VerifiedCount)
	require.Equal(t, []Token{1}, res.ValidPrefix)
}

func TestVerifyShortLogitsAreHandled(t *testing.T) {
	draft := []Token{1, 2, 3}
	logits := Logits{
		{0, 0, 100, 0},
	}
	res := Verify(context.Background(), forwardReturning(logits, nil), nil, draft)
	require.Equal(t, 2, res.TotalCount)
	require.Equal(t, 1, res.VerifiedCount)
	require.Equal(t, []Token{1, 2}, res.ValidPrefix)
}
