package asr

import "github.com/mtste/engine/merge"

// Hypothesis is the "current hypothesis" exported alongside the
// Transcript: the latest partial from each active continuous tier (§4.5
// "Partials ... are exported as a current hypothesis alongside the
// Transcript").
type Hypothesis struct {
	Level int
	Text  string
}

// TierTiming is the per-tier timing-stats shape from §6: "{ count,
// totalTime_ms, averageTime_ms, lastTime_ms, specStats?: { totalHits,
// totalDrafts, hitRate } }".
type TierTiming struct {
	Level         int
	Count         int
	TotalTimeMs   float64
	AverageTimeMs float64
	LastTimeMs    float64
	HasSpecStats  bool
	TotalHits     int
	TotalDrafts   int
	HitRate       float64
}

// TranscriptUpdate is what the Sink receives after each change (§4.6
// Transcript Sink, §6 TRANSCRIPT event): "the full Transcript plus the
// current continuous-tier hypothesis and per-tier timing statistics".
type TranscriptUpdate struct {
	Segments    []merge.Segment
	Hypotheses  []Hypothesis
	TimingStats []TierTiming
}

// Sink is the Transcript Sink adapter (§4.6).
type Sink interface {
	OnTranscript(update TranscriptUpdate)
	OnStatus(text string)
	OnLoadProgress(level int, progress float64, file string)
}
