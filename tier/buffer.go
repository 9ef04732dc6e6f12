package tier

// AudioBuffer accumulates samples for one tier and tracks the
// processed-prefix pointer P for chunk tiers (§3 AudioBuffer).
//
// Invariant: 0 <= P <= len(samples). For continuous tiers P is unused;
// the buffer is truncated in place after each firing instead.
type AudioBuffer struct {
	samples []float32
	p       int // processed-prefix pointer, in samples

	// pendingStep counts samples appended since the last continuous
	// firing consumed a step's worth. len(samples) alone cannot drive
	// ContinuousFiring: when contextWindow == stepSize (the §3 default),
	// TrimToContext leaves len(samples) unchanged across firings, so a
	// length-only check would never go false and the firing loop would
	// spin on the same window forever.
	pendingStep int
}

// Append adds newly arrived PCM to the tail of the buffer.
func (b *AudioBuffer) Append(samples []float32) {
	b.samples = append(b.samples, samples...)
	b.pendingStep += len(samples)
}

// Len returns the number of samples currently buffered.
func (b *AudioBuffer) Len() int { return len(b.samples) }

// ProcessedSamples returns P, the count of samples already emitted as
// segments (chunk tiers only).
func (b *AudioBuffer) ProcessedSamples() int { return b.p }

// ProcessedSeconds returns P / 16000.
func (b *AudioBuffer) ProcessedSeconds() float64 {
	return float64(b.p) / SampleRate
}

// ContinuousWindow selects the trailing window fed to the model on a
// continuous firing: buffer[max(0, len-maxInputWindow):len] (§4.2.2 step 1).
func (b *AudioBuffer) ContinuousWindow(maxInputWindowSamples int) []float32 {
	n := len(b.samples)
	start := n - maxInputWindowSamples
	if start < 0 {
		start = 0
	}
	window := make([]float32, n-start)
	copy(window, b.samples[start:])
	return window
}

// TrimToContext truncates the buffer to its trailing contextWindowSamples
// (§4.2.2 step 4), so the next continuous firing requires genuinely new
// audio.
func (b *AudioBuffer) TrimToContext(contextWindowSamples int) {
	n := len(b.samples)
	if n <= contextWindowSamples {
		return
	}
	start := n - contextWindowSamples
	trimmed := make([]float32, contextWindowSamples)
	copy(trimmed, b.samples[start:])
	b.samples = trimmed
}

// ChunkWindow returns the leading chunkSizeSamples of the buffer, the
// window fed to the model on a chunk firing (§4.2.3 step 1).
func (b *AudioBuffer) ChunkWindow(chunkSizeSamples int) []float32 {
	window := make([]float32, chunkSizeSamples)
	copy(window, b.samples[:chunkSizeSamples])
	return window
}

// ShiftChunk drops the leading chunkSizeSamples and advances P by the same
// amount (§4.2.3 step 6).
func (b *AudioBuffer) ShiftChunk(chunkSizeSamples int) {
	remaining := len(b.samples) - chunkSizeSamples
	shifted := make([]float32, remaining)
	copy(shifted, b.samples[chunkSizeSamples:])
	b.samples = shifted
	b.p += chunkSizeSamples
}

// Reset clears the buffered audio without losing the processed-prefix
// pointer, the effect commit() must have on a tier's buffer (§4.1
// Orchestrator.commit()): "clears its audio buffer ... while preserving
// its processed-prefix counter".
func (b *AudioBuffer) Reset() {
	b.samples = nil
}

// ContinuousFiring reports whether the continuous firing condition holds:
// at least stepSizeSeconds*16000 samples of new audio have arrived since
// the last continuous fire (§4.2.2). Checking pendingStep rather than
// len(samples) guarantees progress even when the retained context window
// is as large as the step itself.
func (b *AudioBuffer) ContinuousFiring(stepSizeSamples int) bool {
	return b.pendingStep >= stepSizeSamples
}

// ConsumeContinuousStep marks one step's worth of pendingStep as consumed
// (§4.2.2 step 4), called after a continuous firing completes so the next
// firing requires genuinely new audio rather than re-firing on the same
// retained context.
func (b *AudioBuffer) ConsumeContinuousStep(stepSizeSamples int) {
	b.pendingStep -= stepSizeSamples
	if b.pendingStep < 0 {
		b.pendingStep = 0
	}
}

// ChunkFiring reports whether the chunk firing condition holds:
// length(buffer) >= chunkSizeSeconds*16000 (§4.2.3).
func (b *AudioBuffer) ChunkFiring(chunkSizeSamples int) bool {
	return len(b.samples) >= chunkSizeSamples
}
