package tier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mtste/engine/asr"
	"github.com/mtste/engine/draft"
)

type stubModel struct {
	text   string
	tokens []int32
}

func (m *stubModel) ExtractFeatures(context.Context, []float32) (asr.Features, error) {
	return "features", nil
}

func (m *stubModel) Generate(context.Context, asr.Features, asr.GenerationOptions) ([]int32, error) {
	return m.tokens, nil
}

func (m *stubModel) Decode(context.Context, []int32, bool) (string, error) {
	return m.text, nil
}

func (m *stubModel) Forward(context.Context, asr.Features, []int32) ([][]float64, error) {
	return nil, nil
}

func (m *stubModel) Close() error { return nil }

func waitForOut(t *testing.T, outbox <-chan Out, kind OutKind) Out {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case out := <-outbox:
			if out.Kind == kind {
				return out
			}
		case <-deadline:
			t.Fatalf("timed out waiting for Out kind %v", kind)
		}
	}
}

func TestWorkerContinuousFiringEmitsPartial(t *testing.T) {
	model := &stubModel{text: "hello world", tokens: []int32{10, 11, 12}}
	outbox := make(chan Out, 16)
	cfg := DefaultConfigs()[1]
	w := NewWorker(cfg, model, nil, outbox)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	w.Inbox() <- In{Kind: InAudio, Samples: samplesN(cfg.StepSizeSamples())}

	out := waitForOut(t, outbox, OutPartial)
	require.Equal(t, "hello world", out.Text)
	require.Equal(t, 1, out.Level)
}

func TestWorkerChunkFiringEmitsSegmentWithTimestamps(t *testing.T) {
	model := &stubModel{text: "a segment", tokens: []int32{1, 2}}
	outbox := make(chan Out, 16)
	cfg := DefaultConfigs()[2]
	w := NewWorker(cfg, model, &draft.Buffer{}, outbox)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	w.Inbox() <- In{Kind: InAudio, Samples: samplesN(cfg.ChunkSizeSamples())}

	out := waitForOut(t, outbox, OutSegment)
	require.Equal(t, "a segment", out.Text)
	require.Equal(t, 0.0, out.StartS)
	require.InDelta(t, cfg.ChunkSizeSeconds, out.EndS, 1e-9)
}

func TestWorkerCommitResetsBufferAndEmitsReset(t *testing.T) {
	model := &stubModel{text: "partial", tokens: []int32{1}}
	outbox := make(chan Out, 16)
	cfg := DefaultConfigs()[1]
	w := NewWorker(cfg, model, nil, outbox)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	w.Inbox() <- In{Kind: InAudio, Samples: samplesN(10)}
	w.Inbox() <- In{Kind: InCommit}
	waitForOut(t, outbox, OutReset)

	require.Equal(t, StateIdle, w.State())
	require.Equal(t, 0, w.buf.Len())
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.After(timeout)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("condition not met before deadline")
		case <-ticker.C:
		}
	}
}

func TestWorkerAppliesDraftTokensFromInbox(t *testing.T) {
	model := &stubModel{text: "a segment", tokens: []int32{1, 2}}
	outbox := make(chan Out, 16)
	buf := &draft.Buffer{}
	cfg := DefaultConfigs()[2]
	w := NewWorker(cfg, model, buf, outbox)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	w.Inbox() <- In{Kind: InDraftTokens, Tokens: []Token{1, 2, 3}, UpstreamContinuous: true}

	waitUntil(t, 2*time.Second, func() bool { return buf.Len() == 3 })
}

func TestWorkerIgnoresDraftTokensWithoutDraftBuffer(t *testing.T) {
	model := &stubModel{text: "hello", tokens: []int32{1}}
	outbox := make(chan Out, 16)
	cfg := DefaultConfigs()[1]
	w := NewWorker(cfg, model, nil, outbox)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// Must not panic on a nil draftBuf; followed by a normal audio message
	// to confirm the worker is still alive and responsive afterward.
	w.Inbox() <- In{Kind: InDraftTokens, Tokens: []Token{1, 2, 3}}
	w.Inbox() <- In{Kind: InAudio, Samples: samplesN(cfg.StepSizeSamples())}

	waitForOut(t, outbox, OutPartial)
}

func TestDefaultIntFallsBackWhenNonPositive(t *testing.T) {
	require.Equal(t, 224, defaultInt(0, 224))
	require.Equal(t, 224, defaultInt(-1, 224))
	require.Equal(t, 10, defaultInt(10, 224))
}

func TestToTokensConvertsInt32Slice(t *testing.T) {
	require.Equal(t, []Token{1, 2, 3}, toTokens([]int32{1, 2, 3}))
}
