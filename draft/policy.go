package draft

// UpstreamMode is the minimal fact the propagation policy needs about the
// upstream tier: whether it is continuous or chunked. Kept as its own
// type (rather than importing tier.Mode) so draft stays a leaf package.
type UpstreamMode int

const (
	UpstreamContinuous UpstreamMode = iota
	UpstreamChunk
)

// Apply dispatches a draft-token update from an upstream tier into the
// downstream tier's Buffer, generalizing the hard-coded "level === 2"
// check in the source into "upstream is continuous -> replace; upstream
// is chunk -> append" (§4.4, and the first Open Question of spec.md §9).
//
// isHeader classifies a token as a header special token to strip on
// append (ignored for the replace policy).
func Apply(b *Buffer, upstream UpstreamMode, tokens []Token, isHeader func(Token) bool) {
	switch upstream {
	case UpstreamContinuous:
		b.Replace(tokens)
	case UpstreamChunk:
		b.AppendChunk(tokens, isHeader)
	}
}

// Eligible reports whether a chunk tier at the given level may consult its
// DraftBuffer at all: level > 1 AND the buffer is non-empty (§4.4
// "Eligibility for verification"). L0 and L1 never use draft tokens.
func Eligible(level int, buf *Buffer) bool {
	return level > 1 && buf != nil && buf.Len() > 0
}
