package orchestrator

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics exports the §6 per-tier timing-stats shape as Prometheus
// gauges, the same pattern the pack's hubenschmidt-asr-llm-tts gateway
// uses to surface ASR latency. Unlike that gateway, every gauge here is
// also folded back into the TRANSCRIPT event's TimingStats
// (asr.TierTiming, built by Orchestrator.publish), so
// Prometheus is an additional export, not the only one.
type metrics struct {
	inferenceCount  *prometheus.GaugeVec
	totalTimeMs     *prometheus.GaugeVec
	averageTimeMs   *prometheus.GaugeVec
	lastTimeMs      *prometheus.GaugeVec
	specHitRate     *prometheus.GaugeVec
	specTotalDrafts *prometheus.GaugeVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		inferenceCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mtste", Name: "tier_inference_count",
			Help: "Number of inferences executed by a tier so far.",
		}, []string{"level"}),
		totalTimeMs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mtste", Name: "tier_total_time_ms",
			Help: "Cumulative inference time for a tier, in milliseconds.",
		}, []string{"level"}),
		averageTimeMs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mtste", Name: "tier_average_time_ms",
			Help: "Average inference time for a tier, in milliseconds.",
		}, []string{"level"}),
		lastTimeMs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mtste", Name: "tier_last_time_ms",
			Help: "Most recent inference time for a tier, in milliseconds.",
		}, []string{"level"}),
		specHitRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mtste", Name: "tier_spec_hit_rate",
			Help: "Speculative verifier hit rate (verified/total) for a tier.",
		}, []string{"level"}),
		specTotalDrafts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mtste", Name: "tier_spec_total_drafts",
			Help: "Cumulative draft tokens offered to a tier's verifier.",
		}, []string{"level"}),
	}
	if reg != nil {
		reg.MustRegister(m.inferenceCount, m.totalTimeMs, m.averageTimeMs, m.lastTimeMs, m.specHitRate, m.specTotalDrafts)
	}
	return m
}

func (m *metrics) observe(level int, s tierStats) {
	lvl := strconv.Itoa(level)
	m.inferenceCount.WithLabelValues(lvl).Set(float64(s.count))
	m.totalTimeMs.WithLabelValues(lvl).Set(s.totalTimeMs)
	m.averageTimeMs.WithLabelValues(lvl).Set(s.averageTimeMs())
	m.lastTimeMs.WithLabelValues(lvl).Set(s.lastTimeMs)
	if s.specDrafts > 0 {
		m.specTotalDrafts.WithLabelValues(lvl).Set(float64(s.specDrafts))
		m.specHitRate.WithLabelValues(lvl).Set(float64(s.specHits) / float64(s.specDrafts))
	}
}
