package tier

import (
	"context"
	"fmt"
	"time"

	"github.com/mtste/engine/asr"
	"github.com/mtste/engine/draft"
	"github.com/mtste/engine/verifier"
)

// Worker owns one tier's audio buffer, draft buffer reference, and model,
// and runs its own single-consumer inference loop (§4.2, §5 "isolated
// unit with its own private state and its own serialized inference
// loop"). There is no separate reentrancy guard for commit: the inbox
// channel is the only place messages are dequeued, so commit and audio
// messages are naturally serialized with inference attempts (§9 design
// notes on cyclic control flow).
type Worker struct {
	cfg      Config
	model    asr.Model
	draftBuf *draft.Buffer // may be nil; never consulted by L0/L1

	buf   AudioBuffer
	state stateBox

	inbox  chan In
	outbox chan<- Out
}

// NewWorker constructs a Worker. draftBuf may be nil; it is ignored for
// continuous tiers and for any chunk tier at level <= 1 (§4.4
// Eligibility).
func NewWorker(cfg Config, model asr.Model, draftBuf *draft.Buffer, outbox chan<- Out) *Worker {
	return &Worker{
		cfg:      cfg,
		model:    model,
		draftBuf: draftBuf,
		inbox:    make(chan In, 256),
		outbox:   outbox,
	}
}

// Inbox returns the channel the Orchestrator pushes In messages onto.
func (w *Worker) Inbox() chan<- In { return w.inbox }

// State returns the worker's current state.
func (w *Worker) State() State { return w.state.get() }

// Config returns the worker's tier configuration, retained by the
// Orchestrator across restarts (§4.1 Failure policy).
func (w *Worker) Config() Config { return w.cfg }

// Run is the worker's main loop. The model is loaded by the caller
// before NewWorker; Run marks the worker Ready, then services inbound
// messages until ctx is cancelled. A stop is cooperative: the loop
// observes ctx cancellation between messages and between successive
// firings, never in the middle of one (§5 Cancellation and
// timeouts: "A stop while Busy waits for the current inference to
// finish").
func (w *Worker) Run(ctx context.Context) error {
	w.state.set(StateReady)
	defer w.state.set(StateTerminated)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-w.inbox:
			switch msg.Kind {
			case InAudio:
				w.buf.Append(msg.Samples)
				w.fire(ctx)
			case InDraftTokens:
				w.applyDraft(msg)
			case InCommit:
				w.buf.Reset()
				w.state.set(StateIdle)
				w.send(Out{Kind: OutReset, Level: w.cfg.Level, At: time.Now()})
			}
		}
	}
}

// applyDraft dispatches an inbound draft_tokens message into this
// worker's DraftBuffer, if it has one (§4.4, §6 "draft_tokens(tokens[])").
// A worker constructed with a nil draftBuf ignores the message entirely.
func (w *Worker) applyDraft(msg In) {
	if w.draftBuf == nil {
		return
	}
	mode := draft.UpstreamChunk
	if msg.UpstreamContinuous {
		mode = draft.UpstreamContinuous
	}
	draftTokens := make([]draft.Token, len(msg.Tokens))
	for i, t := range msg.Tokens {
		draftTokens[i] = draft.Token(t)
	}
	draft.Apply(w.draftBuf, mode, draftTokens, func(t draft.Token) bool {
		return Token(t).IsHeader()
	})
}

// fire attempts one inference if the tier's firing condition holds,
// per §4.2.2/§4.2.3. It is only ever called from the loop goroutine, so
// no additional locking is needed to keep inference idle-serialized.
func (w *Worker) fire(ctx context.Context) {
	if !w.state.get().canFire() {
		return
	}

	switch w.cfg.Mode {
	case ModeContinuous:
		for ctx.Err() == nil && w.buf.ContinuousFiring(w.cfg.StepSizeSamples()) {
			w.fireContinuous(ctx)
		}
	case ModeChunk:
		for ctx.Err() == nil && w.buf.ChunkFiring(w.cfg.ChunkSizeSamples()) {
			w.fireChunk(ctx)
		}
	}
}

func (w *Worker) fireContinuous(ctx context.Context) {
	w.state.set(StateBusy)
	defer w.state.set(StateIdle)

	start := time.Now()
	window := w.buf.ContinuousWindow(w.cfg.MaxInputWindowSamples())

	features, err := w.model.ExtractFeatures(ctx, window)
	if err != nil {
		w.emitStatus(fmt.Sprintf("L%d: feature extraction failed: %v", w.cfg.Level, err))
		return
	}

	tokens, err := w.model.Generate(ctx, features, asr.GenerationOptions{
		MaxNewTokens:  defaultInt(w.cfg.Generation.MaxNewTokens, 224),
		Beams:         w.cfg.Generation.Beams,
		DoSample:      w.cfg.Generation.DoSample,
		EarlyStopping: w.cfg.Generation.EarlyStopping,
	})
	if err != nil {
		// §7 taxonomy item 4: inference error in normal generation. The
		// tier remains Idle and retries on the next firing condition.
		w.emitStatus(fmt.Sprintf("L%d: generation failed: %v", w.cfg.Level, err))
		return
	}

	text, err := w.model.Decode(ctx, tokens, true)
	if err != nil {
		w.emitStatus(fmt.Sprintf("L%d: decode failed: %v", w.cfg.Level, err))
		return
	}

	elapsed := time.Since(start)
	w.send(Out{
		Kind:            OutPartial,
		Level:           w.cfg.Level,
		Text:            text,
		Tokens:          toTokens(tokens),
		InferenceTimeMs: float64(elapsed.Microseconds()) / 1000.0,
		At:              start,
	})

	w.buf.TrimToContext(w.cfg.ContextWindowSamples())
	w.buf.ConsumeContinuousStep(w.cfg.StepSizeSamples())
}

func (w *Worker) fireChunk(ctx context.Context) {
	w.state.set(StateBusy)
	defer w.state.set(StateIdle)

	start := time.Now()
	chunkSamples := w.cfg.ChunkSizeSamples()
	window := w.buf.ChunkWindow(chunkSamples)

	features, err := w.model.ExtractFeatures(ctx, window)
	if err != nil {
		w.emitStatus(fmt.Sprintf("L%d: feature extraction failed: %v", w.cfg.Level, err))
		return
	}

	opts := asr.GenerationOptions{
		MaxNewTokens:  defaultInt(w.cfg.Generation.MaxNewTokens, 224),
		Beams:         w.cfg.Generation.Beams,
		DoSample:      w.cfg.Generation.DoSample,
		EarlyStopping: w.cfg.Generation.EarlyStopping,
	}

	var specStats *SpecStats
	if draft.Eligible(w.cfg.Level, w.draftBuf) {
		draftTokens := w.draftBuf.Snapshot()
		result := verifier.Verify(ctx, w.model.Forward, features, draftTokens)
		specStats = &SpecStats{
			VerifiedCount: result.VerifiedCount,
			TotalCount:    result.TotalCount,
			HitRate:       result.HitRate,
		}
		if result.VerifiedCount > 0 {
			opts.DecoderInputIDs = result.ValidPrefix
		}
	}

	tokens, err := w.model.Generate(ctx, features, opts)
	if err != nil {
		w.emitStatus(fmt.Sprintf("L%d: generation failed: %v", w.cfg.Level, err))
		return
	}

	// Empty text is still emitted: it confirms "nothing was said here"
	// and is allowed to dominate weaker prior segments (§4.2.3 step 5,
	// §9 design notes).
	text, err := w.model.Decode(ctx, tokens, true)
	if err != nil {
		w.emitStatus(fmt.Sprintf("L%d: decode failed: %v", w.cfg.Level, err))
		return
	}

	startS := w.buf.ProcessedSeconds()
	endS := float64(w.buf.ProcessedSamples()+chunkSamples) / SampleRate

	elapsed := time.Since(start)
	w.send(Out{
		Kind:            OutSegment,
		Level:           w.cfg.Level,
		Text:            text,
		Tokens:          toTokens(tokens),
		InferenceTimeMs: float64(elapsed.Microseconds()) / 1000.0,
		StartS:          startS,
		EndS:            endS,
		SpecStats:       specStats,
		At:              start,
	})

	w.buf.ShiftChunk(chunkSamples)
}

func (w *Worker) emitStatus(text string) {
	w.send(Out{Kind: OutStatus, Level: w.cfg.Level, Text2: text, At: time.Now()})
}

func (w *Worker) send(out Out) {
	select {
	case w.outbox <- out:
	default:
		// The orchestrator's fan-in must keep up; this only trips under
		// pathological backpressure and we'd rather drop a status/partial
		// than block the only goroutine that can ever drain the inbox.
	}
}

func defaultInt(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func toTokens(tokens []int32) []Token {
	out := make([]Token, len(tokens))
	for i, t := range tokens {
		out[i] = Token(t)
	}
	return out
}
