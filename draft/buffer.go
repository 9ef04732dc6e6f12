// Package draft implements the draft-token propagation protocol between
// tiers: the append/replace policy, header-token stripping, and the
// per-downstream-tier DraftBuffer (§3 DraftBuffer, §4.4).
package draft

import "sync"

// Token mirrors tier.Token without importing the tier package, keeping
// this package a leaf the Orchestrator and the tier worker both depend on
// without a cycle.
type Token = int32

// Buffer is the per-downstream-tier DraftBuffer. Tier d's worker writes
// it when it applies a draft_tokens message and reads it when it fires;
// the Orchestrator clears it on commit. A mutex guards every access.
type Buffer struct {
	mu     sync.Mutex
	tokens []Token
	// sawFirstChunk tracks whether a chunk-mode append has already
	// contributed the opening header token d0 (§4.4: "The first chunk
	// ever appended keeps its header").
	sawFirstChunk bool
}

// Snapshot returns a copy of the current draft tokens.
func (b *Buffer) Snapshot() []Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Token, len(b.tokens))
	copy(out, b.tokens)
	return out
}

// Len reports the number of buffered draft tokens.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.tokens)
}

// Replace overwrites the DraftBuffer with new tokens, the policy used
// when the upstream tier is continuous (§4.4).
func (b *Buffer) Replace(tokens []Token) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = append([]Token(nil), tokens...)
}

// AppendChunk appends tokens from a new upstream chunk, stripping header
// special tokens unless this is the very first chunk ever appended
// (§4.4: "The first chunk ever appended keeps its header ... must remain
// as d0"). isHeader classifies a token using the caller's special-token
// convention (tier.Token.IsHeader).
func (b *Buffer) AppendChunk(tokens []Token, isHeader func(Token) bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.sawFirstChunk {
		b.tokens = append(b.tokens, tokens...)
		b.sawFirstChunk = true
		return
	}

	start := 0
	for start < len(tokens) && isHeader(tokens[start]) {
		start++
	}
	b.tokens = append(b.tokens, tokens[start:]...)
}

// Clear empties the buffer, the effect of commit() on every DraftBuffer
// (§4.4 Commit).
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = nil
	b.sawFirstChunk = false
}
