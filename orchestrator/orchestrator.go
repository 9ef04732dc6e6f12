package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/mtste/engine/asr"
	"github.com/mtste/engine/draft"
	"github.com/mtste/engine/merge"
	"github.com/mtste/engine/tier"
)

// tierStats accumulates the §6 timing-stats shape for one tier.
type tierStats struct {
	count       int
	totalTimeMs float64
	lastTimeMs  float64
	specHits    int
	specDrafts  int
}

func (s tierStats) averageTimeMs() float64 {
	if s.count == 0 {
		return 0
	}
	return s.totalTimeMs / float64(s.count)
}

// runningWorker bundles a live worker with the pieces the restart policy
// needs to recreate it (§4.1 Failure policy: "the Orchestrator must
// retain that configuration for recovery").
type runningWorker struct {
	cfg      tier.Config
	worker   *tier.Worker
	draftBuf *draft.Buffer
	cancel   context.CancelFunc
	attempts int
}

// Orchestrator is the top-level engine coordinator (spec.md §4.1).
type Orchestrator struct {
	cfg     Config
	loader  asr.Loader
	sink    asr.Sink
	runID   string

	mu         sync.Mutex
	workers    map[int]*runningWorker
	transcript *merge.Transcript
	hypotheses map[int]string
	stats      map[int]*tierStats

	outbox chan tier.Out

	eg     *errgroup.Group
	egCtx  context.Context
	cancel context.CancelFunc

	metrics *metrics
}

// New constructs an Orchestrator. reg may be nil to skip Prometheus
// registration (e.g. in tests or when multiple engines would collide on
// the default registry).
func New(loader asr.Loader, sink asr.Sink, reg prometheus.Registerer) *Orchestrator {
	return &Orchestrator{
		loader:     loader,
		sink:       sink,
		workers:    make(map[int]*runningWorker),
		transcript: &merge.Transcript{},
		hypotheses: make(map[int]string),
		stats:      make(map[int]*tierStats),
		metrics:    newMetrics(reg),
	}
}

// Start loads one model per enabled tier, in ascending level order, and
// starts a Tier Worker for each (§4.1 start(config)). It returns once
// every tier's model has loaded; the first load failure aborts Start.
func (o *Orchestrator) Start(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	o.mu.Lock()
	o.cfg = cfg
	o.runID = uuid.New().String()
	o.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	eg, egCtx := errgroup.WithContext(runCtx)
	o.cancel = cancel
	o.eg = eg
	o.egCtx = egCtx
	o.outbox = make(chan tier.Out, 1024)

	eg.Go(func() error {
		o.fanIn(egCtx)
		return nil
	})

	for _, level := range cfg.sortedLevels() {
		if err := o.startTier(egCtx, cfg.Tiers[level]); err != nil {
			cancel()
			return fmt.Errorf("orchestrator: start tier L%d: %w", level, err)
		}
	}

	return nil
}

func (o *Orchestrator) startTier(ctx context.Context, cfg tier.Config) error {
	sessionID := fmt.Sprintf("%s/L%d", o.runID, cfg.Level)
	model, quant, err := o.loader.Load(ctx, asr.LoadOptions{
		ModelID:   o.cfg.ModelID,
		Device:    o.cfg.Backend,
		Dtype:     o.cfg.Dtype,
		Quantize:  o.cfg.Quantize,
		SessionID: sessionID,
	}, func(progress float64, file string) {
		o.sink.OnLoadProgress(cfg.Level, progress, file)
	})
	if err != nil {
		// §7 taxonomy item 2: model-load error. The loader itself is
		// responsible for the CPU fallback retry; a failure here is
		// final for this tier.
		return err
	}
	if quant != asr.QuantOK {
		o.sink.OnStatus(fmt.Sprintf("L%d: quantization validation %s", cfg.Level, quant))
	}

	buf := &draft.Buffer{}
	w := tier.NewWorker(cfg, model, buf, o.outbox)

	tctx, cancel := context.WithCancel(ctx)
	rw := &runningWorker{cfg: cfg, worker: w, draftBuf: buf, cancel: cancel}

	o.mu.Lock()
	o.workers[cfg.Level] = rw
	o.stats[cfg.Level] = &tierStats{}
	o.mu.Unlock()

	o.eg.Go(func() error {
		o.runWithRestart(ctx, cfg.Level, tctx)
		return nil
	})

	return nil
}

// runWithRestart runs a tier worker and, on crash, restarts it once with
// the stored configuration before surfacing a fatal fault for that tier
// only (§4.1 Failure policy, §7 taxonomy item 5).
func (o *Orchestrator) runWithRestart(parentCtx context.Context, level int, tctx context.Context) {
	for {
		o.mu.Lock()
		rw := o.workers[level]
		o.mu.Unlock()
		if rw == nil {
			return
		}

		err := o.runOnce(tctx, rw.worker)
		select {
		case <-parentCtx.Done():
			return
		default:
		}
		if err == nil {
			return
		}

		o.mu.Lock()
		rw.attempts++
		attempts := rw.attempts
		budget := o.cfg.restartBudget()
		o.mu.Unlock()

		o.sink.OnStatus(fmt.Sprintf("L%d: worker crashed: %v", level, err))
		if attempts > budget {
			o.sink.OnStatus(fmt.Sprintf("L%d: restart budget exhausted, tier is down", level))
			return
		}

		model, quant, loadErr := o.loader.Load(tctx, asr.LoadOptions{
			ModelID: o.cfg.ModelID, Device: o.cfg.Backend, Dtype: o.cfg.Dtype, Quantize: o.cfg.Quantize,
			SessionID: fmt.Sprintf("%s/L%d#%d", o.runID, level, attempts),
		}, func(progress float64, file string) { o.sink.OnLoadProgress(level, progress, file) })
		if loadErr != nil {
			o.sink.OnStatus(fmt.Sprintf("L%d: restart failed to reload model: %v", level, loadErr))
			return
		}
		if quant != asr.QuantOK {
			o.sink.OnStatus(fmt.Sprintf("L%d: quantization validation %s", level, quant))
		}

		o.mu.Lock()
		rw.worker = tier.NewWorker(rw.cfg, model, rw.draftBuf, o.outbox)
		o.mu.Unlock()

		o.sink.OnStatus(fmt.Sprintf("L%d: restarted (attempt %d)", level, attempts))
	}
}

// runOnce runs a single worker generation, converting a panic into an
// error so runWithRestart can apply the same restart policy to both
// panics and returned errors (§4.1 "A worker that panics is restarted").
func (o *Orchestrator) runOnce(ctx context.Context, w *tier.Worker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.Run(ctx)
}

// PushAudio broadcasts samples to every active tier (§4.1 push_audio).
// Fan-out waits on a sync.WaitGroup so every tier's inbox has accepted
// this call's samples before PushAudio returns, which is what guarantees
// the §5 ordering property across successive calls.
func (o *Orchestrator) PushAudio(samples []float32) {
	o.mu.Lock()
	targets := make([]chan<- tier.In, 0, len(o.workers))
	for _, rw := range o.workers {
		targets = append(targets, rw.worker.Inbox())
	}
	o.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(len(targets))
	for _, inbox := range targets {
		inbox := inbox
		go func() {
			defer wg.Done()
			inbox <- tier.In{Kind: tier.InAudio, Samples: samples}
		}()
	}
	wg.Wait()
}

// fanIn drains o.outbox, the single point where every tier's output is
// handed to the Merge Engine and the cascade router (§4.1 on_tier_output).
func (o *Orchestrator) fanIn(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case out := <-o.outbox:
			o.onTierOutput(out)
		}
	}
}

func (o *Orchestrator) onTierOutput(msg tier.Out) {
	switch msg.Kind {
	case tier.OutStatus:
		o.sink.OnStatus(msg.Text2)
		return
	case tier.OutLoadProgress:
		o.sink.OnLoadProgress(msg.Level, msg.Progress, msg.File)
		return
	case tier.OutReset:
		// Acknowledgement that a tier finished clearing its buffer on
		// commit; nothing further to do, the separator is already
		// appended by Commit() itself.
		return
	}

	o.recordStats(msg)

	switch msg.Kind {
	case tier.OutSegment:
		o.transcript.Insert(merge.Segment{
			StartS: msg.StartS, EndS: msg.EndS, Text: msg.Text,
			Level: msg.Level, Tokens: tokensToInt32(msg.Tokens),
		})
	case tier.OutPartial:
		o.mu.Lock()
		o.hypotheses[msg.Level] = msg.Text
		o.mu.Unlock()
	}

	if len(msg.Tokens) > 0 {
		// Only continuous tiers emit partials and only chunk tiers emit
		// segments, so the message kind doubles as the upstream mode the
		// propagation policy needs (§4.4).
		o.routeDraft(msg.Level, msg.Kind == tier.OutPartial, msg.Tokens)
	}

	o.publish()
}

func (o *Orchestrator) recordStats(msg tier.Out) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.stats[msg.Level]
	if !ok {
		s = &tierStats{}
		o.stats[msg.Level] = s
	}
	s.count++
	s.totalTimeMs += msg.InferenceTimeMs
	s.lastTimeMs = msg.InferenceTimeMs
	if msg.SpecStats != nil {
		s.specHits += msg.SpecStats.VerifiedCount
		s.specDrafts += msg.SpecStats.TotalCount
	}
	if o.metrics != nil {
		o.metrics.observe(msg.Level, *s)
	}
}

// routeDraft forwards tokens from tier `upstream` to tier `upstream+1`
// using the propagation policy of §4.4, if that hop is enabled and both
// tiers exist (§4.4: "only between adjacent enabled tiers").
func (o *Orchestrator) routeDraft(upstream int, upstreamIsContinuous bool, tokens []tier.Token) {
	downstreamLevel := upstream + 1

	o.mu.Lock()
	downstream, ok := o.workers[downstreamLevel]
	allowed := o.cfg.cascadeAllowed(downstreamLevel)
	o.mu.Unlock()
	if !ok || !allowed {
		return
	}

	downstream.worker.Inbox() <- tier.In{
		Kind:               tier.InDraftTokens,
		Tokens:             tokens,
		UpstreamContinuous: upstreamIsContinuous,
	}
}

// Commit broadcasts a commit to every tier, clears every DraftBuffer, and
// appends a separator segment pinned at the transcript's current tail
// (§4.1 commit(), §4.4 Commit).
func (o *Orchestrator) Commit() {
	o.mu.Lock()
	targets := make([]*runningWorker, 0, len(o.workers))
	for _, rw := range o.workers {
		targets = append(targets, rw)
	}
	o.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(len(targets))
	for _, rw := range targets {
		rw := rw
		go func() {
			defer wg.Done()
			rw.worker.Inbox() <- tier.In{Kind: tier.InCommit}
		}()
	}
	wg.Wait()

	for _, rw := range targets {
		rw.draftBuf.Clear()
	}

	o.transcript.AppendSeparator()
	o.publish()
}

// Stop terminates all tier workers (§4.1 stop()).
func (o *Orchestrator) Stop() error {
	if o.cancel != nil {
		o.cancel()
	}
	var err error
	if o.eg != nil {
		err = o.eg.Wait()
	}

	o.mu.Lock()
	workers := o.workers
	o.workers = make(map[int]*runningWorker)
	o.mu.Unlock()

	for _, rw := range workers {
		rw.cancel()
	}
	return err
}

// publish pushes the current Transcript snapshot, hypotheses, and timing
// stats to the Sink (§4.6 Transcript Sink, §6 TRANSCRIPT event).
func (o *Orchestrator) publish() {
	o.mu.Lock()
	hyps := make([]asr.Hypothesis, 0, len(o.hypotheses))
	for level, text := range o.hypotheses {
		hyps = append(hyps, asr.Hypothesis{Level: level, Text: text})
	}
	timings := make([]asr.TierTiming, 0, len(o.stats))
	for level, s := range o.stats {
		t := asr.TierTiming{
			Level: level, Count: s.count, TotalTimeMs: s.totalTimeMs,
			AverageTimeMs: s.averageTimeMs(), LastTimeMs: s.lastTimeMs,
		}
		if s.specDrafts > 0 {
			t.HasSpecStats = true
			t.TotalHits = s.specHits
			t.TotalDrafts = s.specDrafts
			t.HitRate = float64(s.specHits) / float64(s.specDrafts)
		}
		timings = append(timings, t)
	}
	o.mu.Unlock()

	o.sink.OnTranscript(asr.TranscriptUpdate{
		Segments:    o.transcript.Snapshot(),
		Hypotheses:  hyps,
		TimingStats: timings,
	})
}

func tokensToInt32(tokens []tier.Token) []int32 {
	out := make([]int32, len(tokens))
	for i, t := range tokens {
		out[i] = int32(t)
	}
	return out
}
