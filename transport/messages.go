// Package transport defines the wire contract of spec.md §6: inbound
// START/AUDIO/COMMIT/STOP control messages and outbound
// STATUS/LOAD_PROGRESS/TRANSCRIPT events, shared by the websocket and
// gRPC gateways. It is a tagged variant (one In/Out struct with a Kind
// discriminator) rather than the teacher's single flat Message struct
// with every field for every message type folded in (spec.md §9 design
// notes), but it serializes to the same kind of "one JSON object per
// message" wire shape the teacher's api.Message does.
package transport

import (
	"github.com/mtste/engine/asr"
	"github.com/mtste/engine/merge"
)

// InKind discriminates inbound control messages.
type InKind string

const (
	InStart  InKind = "START"
	InAudio  InKind = "AUDIO"
	InCommit InKind = "COMMIT"
	InStop   InKind = "STOP"
)

// In is the inbound control-plane envelope (§6).
type In struct {
	Kind InKind `json:"kind"`

	// START fields.
	Language     string `json:"language,omitempty"`
	ModelID      string `json:"modelId,omitempty"`
	Backend      string `json:"backend,omitempty"`
	Dtype        string `json:"dtype,omitempty"`
	Quantize     string `json:"quantize,omitempty"`
	EnabledTiers []int  `json:"enabledTiers,omitempty"`

	// AUDIO fields. Samples are float32 PCM at 16kHz mono
	// (asr.SampleRate), carried as a JSON array of numbers.
	Samples  []float32 `json:"samples,omitempty"`
	Metadata string    `json:"metadata,omitempty"`
}

// OutKind discriminates outbound events.
type OutKind string

const (
	OutStatus       OutKind = "STATUS"
	OutLoadProgress OutKind = "LOAD_PROGRESS"
	OutTranscript   OutKind = "TRANSCRIPT"
)

// Out is the outbound event envelope (§6).
type Out struct {
	Kind OutKind `json:"kind"`

	// STATUS fields.
	Text string `json:"text,omitempty"`

	// LOAD_PROGRESS fields.
	Level    int     `json:"level,omitempty"`
	Progress float64 `json:"progress,omitempty"`
	File     string  `json:"file,omitempty"`

	// TRANSCRIPT fields.
	Segments    []merge.Segment  `json:"segments,omitempty"`
	Partials    []asr.Hypothesis `json:"partial,omitempty"`
	TimingStats []asr.TierTiming `json:"timingStats,omitempty"`
}
