// Package config parses process-level flags, grounded on the teacher's
// internal/config (flag-based Config struct, a Load() constructor, a
// platform-aware default gRPC address). Scope is restricted to the
// external-collaborator wiring spec.md §6 actually names -- ports,
// model id/backend/dtype, and enabled tiers -- not capture devices, VAD
// tuning, or UI parameters, since those sit behind the Audio Source /
// external collaborator boundary this engine treats as out of scope
// (spec.md §1 Non-goals).
package config

import (
	"flag"
	"runtime"
	"strconv"
	"strings"
)

// Config is the process-level configuration for cmd/mtste-serve.
type Config struct {
	HTTPAddr string
	GRPCAddr string

	ModelID      string
	Backend      string
	Dtype        string
	Quantize     string
	EnabledTiers []int

	TraceLog string
}

// Load parses os.Args (via the flag package) into a Config. Tier
// enablement and model selection still flow through the wire-level
// START message (spec.md §6); these flags only set the defaults a
// cmd/mtste-serve instance boots with before any client connects.
func Load() *Config {
	httpAddr := flag.String("http-addr", ":8080", "HTTP/WebSocket listen address")
	grpcAddr := flag.String("grpc-addr", defaultGRPCAddress(), "gRPC listen address (unix:/path/to.sock or npipe:////./pipe/mtste-grpc)")
	modelID := flag.String("model-id", "", "Default model identifier/directory for the ASR Model Adapter")
	backend := flag.String("backend", "auto", "Default compute backend (auto, cpu, cuda, coreml)")
	dtype := flag.String("dtype", "", "Default model dtype")
	quantize := flag.String("quantize", "", "Default quantization scheme")
	enabledTiers := flag.String("enabled-tiers", "1,2,3,4", "Comma-separated default enabled tier levels")
	traceLog := flag.String("trace-log", "", "Optional file to additionally mirror log output to")

	flag.Parse()

	return &Config{
		HTTPAddr:     *httpAddr,
		GRPCAddr:     *grpcAddr,
		ModelID:      *modelID,
		Backend:      *backend,
		Dtype:        *dtype,
		Quantize:     *quantize,
		EnabledTiers: parseTiers(*enabledTiers),
		TraceLog:     *traceLog,
	}
}

func parseTiers(raw string) []int {
	var out []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

func defaultGRPCAddress() string {
	if runtime.GOOS == "windows" {
		return `npipe:\\.\pipe\mtste-grpc`
	}
	return "unix:/tmp/mtste-grpc.sock"
}
