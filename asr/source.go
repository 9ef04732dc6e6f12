package asr

import "context"

// SampleRate is the fixed rate every asr.Source must deliver and every
// asr.Model must accept (spec.md §4.6). Duplicated from tier.SampleRate
// rather than imported from it, since tier imports asr and a dependency
// the other way would cycle; both packages assume the same wire
// contract constant.
const SampleRate = 16000

// Source is the Audio Source adapter (§4.6): "Delivers Float32 PCM at
// 16 kHz. Must be mono. Engine input contract: one or more samples per
// call; no upper bound."
type Source interface {
	// Run delivers buffers to push until ctx is cancelled or the source
	// is exhausted (file sources) / stopped (live sources). push must not
	// be called concurrently by Run; it is expected to forward directly
	// to Orchestrator.PushAudio.
	Run(ctx context.Context, push func([]float32)) error

	// Close releases any underlying device or file handle.
	Close() error
}
