// Package verifier implements the speculative-decoding verifier described
// in spec.md §4.3: given a chunk tier's encoder features and an upstream
// draft token sequence, it determines how much of the draft a single
// forward pass of the downstream tier's own model would have produced,
// then hands the caller a verified prefix to seed the final generation
// with.
package verifier

import (
	"context"

	"gonum.org/v1/gonum/floats"
)

// Token mirrors tier.Token/draft.Token; kept local so this package has no
// dependency on tier, matching the rest of the engine's leaf-package
// layout.
type Token = int32

// Logits is one forward pass's output, logically shaped (1, n+1, V): one
// row of vocabulary-sized scores per decoder position. Row i predicts the
// token at position i+1. Declared as an alias (not a defined type) so an
// asr.Model's Forward method -- typed in terms of plain [][]float64 --
// can be passed directly wherever a ForwardFunc is expected.
type Logits = [][]float64

// ForwardFunc is the ASR adapter's low-level forward pass: §4.6 "a
// low-level forward (features, decoder_input_ids) -> logits for the
// Verifier".
type ForwardFunc func(ctx context.Context, features any, decoderInputIDs []Token) (Logits, error)

// Result is the §4.3 step 5 statistics plus the prefix the caller should
// seed final generation with.
type Result struct {
	ValidPrefix   []Token
	VerifiedCount int
	TotalCount    int
	HitRate       float64
}

// Verify runs the §4.3 algorithm. draft is D = [d0 .. dn]; n = len(draft)-1.
//
// Any error from forward is swallowed and reported as zero verified
// tokens (§4.3 Failure: "Any error in the forward pass is swallowed; the
// caller falls back to normal generation"). The returned ValidPrefix is
// either [d0]++verified or nil (when the draft has fewer than two tokens
// or the forward pass fails or returns no logits) -- the final
// generation the caller performs from it can never be corrupted by a
// Verifier error.
func Verify(ctx context.Context, forward ForwardFunc, features any, draftTokens []Token) Result {
	n := len(draftTokens) - 1
	if n < 1 {
		// Nothing to verify: 0 or 1 token carries no "next token" to check.
		return Result{TotalCount: max0(n)}
	}

	logits, err := forward(ctx, features, draftTokens)
	if err != nil || len(logits) == 0 {
		return Result{TotalCount: n}
	}

	verified := make([]Token, 0, n)
	for i := 0; i < n && i < len(logits); i++ {
		idx := floats.MaxIdx(logits[i])
		if Token(idx) != draftTokens[i+1] {
			break
		}
		verified = append(verified, draftTokens[i+1])
	}

	validPrefix := append([]Token{draftTokens[0]}, verified...)

	return Result{
		ValidPrefix:   validPrefix,
		VerifiedCount: len(verified),
		TotalCount:    n,
		HitRate:       float64(len(verified)) / float64(max1(n)),
	}
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
