package tier

import "time"

// Token is a vocabulary index. Values >= HeaderTokenThreshold are special
// (header, task, language); values >= TimestampTokenThreshold are
// timestamp tokens and are content, not header (§3 Token, §6 Special-token
// convention).
type Token int32

const (
	// HeaderTokenThreshold is the default first special-token id (50257).
	HeaderTokenThreshold Token = 50257
	// TimestampTokenThreshold is the default first timestamp-token id
	// (50364). Timestamp tokens are special but are preserved as content
	// by the header-stripping logic in §4.4.
	TimestampTokenThreshold Token = 50364
)

// IsSpecial reports whether t is a special token (header, task, or
// language marker, including timestamps).
func (t Token) IsSpecial() bool { return t >= HeaderTokenThreshold }

// IsTimestamp reports whether t is a timestamp token.
func (t Token) IsTimestamp() bool { return t >= TimestampTokenThreshold }

// IsHeader reports whether t is a header token that §4.4 strips from the
// head of a newly-appended chunk: special, but not a timestamp.
func (t Token) IsHeader() bool { return t.IsSpecial() && !t.IsTimestamp() }

// SpecStats carries the Verifier's statistics for one invocation (§4.3
// step 5).
type SpecStats struct {
	VerifiedCount int
	TotalCount    int
	HitRate       float64
}

// OutKind tags a Tier Worker's outbound message, replacing the
// duck-typed "partial | segment | status | reset | error" variants the
// source used (§9 design notes: tagged-variant messages).
type OutKind int

const (
	OutPartial OutKind = iota
	OutSegment
	OutStatus
	OutLoadProgress
	OutReset
)

// Out is the single outbound message type a Tier Worker ever emits; the
// Kind field tags which fields are meaningful, mirroring §6's
// "Outbound: partial{...}, segment{...}, status{...}, load_progress{...},
// reset".
type Out struct {
	Kind  OutKind
	Level int

	// partial / segment
	Text            string
	Tokens          []Token
	InferenceTimeMs float64
	StartS          float64
	EndS            float64
	SpecStats       *SpecStats

	// status / load_progress
	Text2    string // status text, reused so Out has one shape
	Progress float64
	File     string

	At time.Time
}

// InKind tags an inbound message to a Tier Worker: audio, draft_tokens or
// commit (§6). Configuration and the loaded model are handed to
// NewWorker instead of arriving as messages.
type InKind int

const (
	InAudio InKind = iota
	InDraftTokens
	InCommit
)

// In is the single inbound message type the Orchestrator ever sends to a
// Tier Worker's queue.
type In struct {
	Kind    InKind
	Samples []float32

	// draft_tokens
	Tokens             []Token
	UpstreamContinuous bool
}
