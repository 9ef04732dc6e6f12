package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mtste/engine/asr"
	"github.com/mtste/engine/tier"
)

// stubModel is a minimal asr.Model whose Generate/Decode always return the
// same canned text and tokens, enough to drive a Worker through a firing
// cycle without any real inference.
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

// fakeLoader hands out a fresh stubModel per Load call and counts how many
// times it was asked to load, so restart tests can assert a reload
// happened.
type fakeLoader struct {
	mu    sync.Mutex
	loads int
	fail  bool
}

func (l *fakeLoader) Load(ctx context.Context, opts asr.LoadOptions, onProgress asr.ProgressFunc) (asr.Model, asr.QuantValidation, error) {
	l.mu.Lock()
	l.loads++
	fail := l.fail
	l.mu.Unlock()
	if fail {
		return nil, "", fmt.Errorf("load failed")
	}
	onProgress(1.0, "weights.bin")
	return &stubModel{text: fmt.Sprintf("level text %s", opts.SessionID), tokens: []int32{1, 2}}, asr.QuantOK, nil
}

func (l *fakeLoader) loadCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads
}

// recordingSink captures every callback the Orchestrator makes, guarded by
// a mutex since fanIn delivers from its own goroutine.
type recordingSink struct {
	mu       sync.Mutex
	statuses []string
	updates  []asr.TranscriptUpdate
}

func (s *recordingSink) OnStatus(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, text)
}

func (s *recordingSink) OnLoadProgress(level int, progress float64, file string) {}

func (s *recordingSink) OnTranscript(update asr.TranscriptUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, update)
}

func (s *recordingSink) lastUpdate() (asr.TranscriptUpdate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.updates) == 0 {
		return asr.TranscriptUpdate{}, false
	}
	return s.updates[len(s.updates)-1], true
}

func (s *recordingSink) statusCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.statuses)
}

func singleTierConfig(level int, mode tier.Mode) Config {
	cfg := tier.DefaultConfigs()[level]
	cfg.Mode = mode
	return Config{
		ModelID: "test-model",
		Backend: asr.BackendCPU,
		Tiers:   map[int]tier.Config{level: cfg},
	}
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

func TestStartRejectsInvalidConfig(t *testing.T) {
	o := New(&fakeLoader{}, &recordingSink{}, nil)
	err := o.Start(context.Background(), Config{})
	require.Error(t, err)
}

func TestStartLoadsOneModelPerTier(t *testing.T) {
	loader := &fakeLoader{}
	o := New(loader, &recordingSink{}, nil)
	cfg := Config{
		ModelID: "test-model",
		Backend: asr.BackendCPU,
		Tiers: map[int]tier.Config{
			1: tier.DefaultConfigs()[1],
			2: tier.DefaultConfigs()[2],
		},
	}
	require.NoError(t, o.Start(context.Background(), cfg))
	defer o.Stop()

	require.Equal(t, 2, loader.loadCount())
}

func TestStartPropagatesTierLoadFailure(t *testing.T) {
	loader := &fakeLoader{fail: true}
	o := New(loader, &recordingSink{}, nil)
	err := o.Start(context.Background(), singleTierConfig(1, tier.ModeContinuous))
	require.Error(t, err)
}

func TestPushAudioDrivesContinuousTierToPartial(t *testing.T) {
	loader := &fakeLoader{}
	sink := &recordingSink{}
	o := New(loader, sink, nil)
	cfg := singleTierConfig(1, tier.ModeContinuous)

	require.NoError(t, o.Start(context.Background(), cfg))
	defer o.Stop()

	samples := make([]float32, cfg.Tiers[1].StepSizeSamples())
	o.PushAudio(samples)

	waitUntil(t, 2*time.Second, func() bool {
		update, ok := sink.lastUpdate()
		if !ok {
			return false
		}
		for _, h := range update.Hypotheses {
			if h.Level == 1 {
				return true
			}
		}
		return false
	})
}

func TestCommitAppendsSeparatorAndClearsDraftBuffers(t *testing.T) {
	loader := &fakeLoader{}
	sink := &recordingSink{}
	o := New(loader, sink, nil)
	cfg := singleTierConfig(1, tier.ModeContinuous)

	require.NoError(t, o.Start(context.Background(), cfg))
	defer o.Stop()

	o.mu.Lock()
	rw := o.workers[1]
	o.mu.Unlock()
	rw.draftBuf.Replace([]int32{1, 2, 3})

	o.Commit()
	require.Equal(t, 0, rw.draftBuf.Len())

	waitUntil(t, 2*time.Second, func() bool {
		update, ok := sink.lastUpdate()
		if !ok {
			return false
		}
		for _, seg := range update.Segments {
			if seg.IsSeparator {
				return true
			}
		}
		return false
	})
}

func TestRouteDraftSkipsWhenCascadeDisabled(t *testing.T) {
	loader := &fakeLoader{}
	sink := &recordingSink{}
	o := New(loader, sink, nil)
	cfg := Config{
		ModelID:        "test-model",
		Backend:        asr.BackendCPU,
		Tiers:          map[int]tier.Config{1: tier.DefaultConfigs()[1], 2: tier.DefaultConfigs()[2]},
		CascadeEnabled: map[int]bool{2: false},
	}
	require.NoError(t, o.Start(context.Background(), cfg))
	defer o.Stop()

	o.mu.Lock()
	downstream := o.workers[2]
	o.mu.Unlock()
	require.NotNil(t, downstream)

	o.routeDraft(1, true, []tier.Token{1, 2, 3})

	// Give the (non-existent) downstream delivery a chance to land before
	// asserting it never does; routeDraft returns before the disabled
	// check even reaches the worker inbox, so this is just settling time.
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 0, downstream.draftBuf.Len())
}

func TestRouteDraftForwardsWhenCascadeEnabled(t *testing.T) {
	loader := &fakeLoader{}
	sink := &recordingSink{}
	o := New(loader, sink, nil)
	cfg := Config{
		ModelID: "test-model",
		Backend: asr.BackendCPU,
		Tiers:   map[int]tier.Config{1: tier.DefaultConfigs()[1], 2: tier.DefaultConfigs()[2]},
	}
	require.NoError(t, o.Start(context.Background(), cfg))
	defer o.Stop()

	o.mu.Lock()
	downstream := o.workers[2]
	o.mu.Unlock()
	require.NotNil(t, downstream)

	o.routeDraft(1, true, []tier.Token{1, 2, 3})

	// Tokens are now applied asynchronously by the downstream worker's own
	// goroutine after it dequeues the draft_tokens message.
	waitUntil(t, 2*time.Second, func() bool {
		return downstream.draftBuf.Len() == 3
	})
}

func TestStopTerminatesWorkersAndIsIdempotentToCallTwice(t *testing.T) {
	loader := &fakeLoader{}
	o := New(loader, &recordingSink{}, nil)
	require.NoError(t, o.Start(context.Background(), singleTierConfig(1, tier.ModeContinuous)))

	require.NoError(t, o.Stop())

	o.mu.Lock()
	n := len(o.workers)
	o.mu.Unlock()
	require.Equal(t, 0, n)

	require.NoError(t, o.Stop())
}

func TestTierStatsAverageTimeMs(t *testing.T) {
	s := tierStats{count: 2, totalTimeMs: 100}
	require.Equal(t, 50.0, s.averageTimeMs())

	var zero tierStats
	require.Equal(t, 0.0, zero.averageTimeMs())
}

func TestTokensToInt32(t *testing.T) {
	in := []tier.Token{1, 2, 3}
	out := tokensToInt32(in)
	require.Equal(t, []int32{1, 2, 3}, out)
}
