package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mtste/engine/asr"
	"github.com/mtste/engine/orchestrator"
	"github.com/mtste/engine/tier"
)

// Client is one connected control-plane peer, implemented by both
// wsgateway's websocket connection and grpcgateway's stream, mirroring
// the teacher's transportClient interface (internal/api/server.go).
type Client interface {
	Send(Out) error
	Close() error
}

// Hub owns one Orchestrator and fans its Sink callbacks out to every
// connected Client, the same broadcast-to-all-clients design the
// teacher's Server uses for its WebSocket and gRPC transports.
type Hub struct {
	orch *orchestrator.Orchestrator

	mu      sync.Mutex
	clients map[Client]bool
}

var _ asr.Sink = (*Hub)(nil)

// NewHub builds a Hub around a fresh Orchestrator using loader and reg
// (reg may be nil to skip Prometheus registration).
func NewHub(loader asr.Loader, reg prometheus.Registerer) *Hub {
	h := &Hub{clients: make(map[Client]bool)}
	h.orch = orchestrator.New(loader, h, reg)
	return h
}

func (h *Hub) AddClient(c Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

func (h *Hub) RemoveClient(c Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		_ = c.Close()
	}
}

func (h *Hub) broadcast(out Out) {
	h.mu.Lock()
	targets := make([]Client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		if err := c.Send(out); err != nil {
			h.RemoveClient(c)
		}
	}
}

func (h *Hub) OnStatus(text string) {
	h.broadcast(Out{Kind: OutStatus, Text: text})
}

func (h *Hub) OnLoadProgress(level int, progress float64, file string) {
	h.broadcast(Out{Kind: OutLoadProgress, Level: level, Progress: progress, File: file})
}

func (h *Hub) OnTranscript(update asr.TranscriptUpdate) {
	h.broadcast(Out{
		Kind:        OutTranscript,
		Segments:    update.Segments,
		Partials:    update.Hypotheses,
		TimingStats: update.TimingStats,
	})
}

// Dispatch applies one inbound control message to the Hub's
// Orchestrator (§6). Configuration errors from START are sent back to
// send directly rather than broadcast, since they are a response to
// this one client's request (§7 taxonomy item 1).
func (h *Hub) Dispatch(ctx context.Context, send func(Out) error, in In) error {
	switch in.Kind {
	case InStart:
		cfg := buildConfig(in)
		if err := h.orch.Start(ctx, cfg); err != nil {
			return send(Out{Kind: OutStatus, Text: fmt.Sprintf("start failed: %v", err)})
		}
		return nil
	case InAudio:
		h.orch.PushAudio(in.Samples)
		return nil
	case InCommit:
		h.orch.Commit()
		return nil
	case InStop:
		return h.orch.Stop()
	default:
		return send(Out{Kind: OutStatus, Text: fmt.Sprintf("unknown message kind %q", in.Kind)})
	}
}

// buildConfig translates the wire START fields into an
// orchestrator.Config, starting from tier.DefaultConfigs() and
// restricting to in.EnabledTiers (§6 START "enabledTiers[]").
func buildConfig(in In) orchestrator.Config {
	defaults := tier.DefaultConfigs()
	tiers := make(map[int]tier.Config)
	if len(in.EnabledTiers) == 0 {
		tiers = defaults
	} else {
		for _, lvl := range in.EnabledTiers {
			if c, ok := defaults[lvl]; ok {
				tiers[lvl] = c
			}
		}
	}

	return orchestrator.Config{
		Language: in.Language,
		ModelID:  in.ModelID,
		Backend:  asr.Backend(in.Backend),
		Dtype:    in.Dtype,
		Quantize: in.Quantize,
		Tiers:    tiers,
	}
}
