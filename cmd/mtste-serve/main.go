// Command mtste-serve runs the engine as a long-lived process exposing
// the §6 control plane over both WebSocket and gRPC, mirroring the
// teacher's main.go: load config, attach optional trace logging, wire
// the collaborator adapters together, then start serving.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mtste/engine/asr/onnxadapter"
	"github.com/mtste/engine/internal/config"
	"github.com/mtste/engine/transport"
	"github.com/mtste/engine/transport/grpcgateway"
	"github.com/mtste/engine/transport/wsgateway"
)

func main() {
	cfg := config.Load()

	logFile := setupLogging(cfg.TraceLog)
	if logFile != nil {
		defer logFile.Close()
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC: %v", r)
			panic(r)
		}
	}()

	reg := prometheus.NewRegistry()
	hub := transport.NewHub(onnxadapter.Loader{}, reg)

	if cfg.ModelID != "" {
		autostart(hub, cfg)
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", wsgateway.New(hub))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	grpcAddr := cfg.GRPCAddr
	go func() {
		if err := grpcgateway.Serve(grpcAddr, hub); err != nil {
			log.Printf("gRPC server stopped: %v", err)
		}
	}()

	log.Printf("mtste-serve listening on HTTP %s and gRPC %s", cfg.HTTPAddr, grpcAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, mux); err != nil {
		log.Fatal("ListenAndServe:", err)
	}
}

// autostart issues a synthetic START using the process's default flags,
// so an operator running mtste-serve with -model-id set gets a running
// engine without needing a control-plane client to send START first.
func autostart(hub *transport.Hub, cfg *config.Config) {
	in := transport.In{
		Kind:         transport.InStart,
		ModelID:      cfg.ModelID,
		Backend:      cfg.Backend,
		Dtype:        cfg.Dtype,
		Quantize:     cfg.Quantize,
		EnabledTiers: cfg.EnabledTiers,
	}
	send := func(out transport.Out) error {
		log.Printf("autostart: %s %s", out.Kind, out.Text)
		return nil
	}
	if err := hub.Dispatch(context.Background(), send, in); err != nil {
		log.Printf("autostart failed: %v", err)
	}
}

func setupLogging(path string) *os.File {
	if path == "" {
		return nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open trace log %s: %v\n", path, err)
		return nil
	}
	log.SetOutput(io.MultiWriter(os.Stdout, file))
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Printf("trace log attached: %s", path)
	return file
}
