// Command mtste-simulate drives the engine directly against a fixture
// (an MP3 file, or a synthetic tone if none is given) and prints the
// final Transcript, serving as a runnable version of the §8 end-to-end
// scenarios, mirroring the teacher's cmd/testfull harness (log-driven
// progress, Ctrl+C-free fixed-duration run, final summary).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mtste/engine/asr"
	"github.com/mtste/engine/asr/fileaudiosource"
	"github.com/mtste/engine/asr/onnxadapter"
	"github.com/mtste/engine/orchestrator"
	"github.com/mtste/engine/tier"
)

func main() {
	modelID := flag.String("model-id", "", "Model identifier/directory for the ASR Model Adapter")
	backend := flag.String("backend", "auto", "Compute backend (auto, cpu, cuda, coreml)")
	dtype := flag.String("dtype", "", "Model dtype")
	quantize := flag.String("quantize", "", "Quantization scheme")
	tiersFlag := flag.String("tiers", "1,2,3,4", "Comma-separated enabled tier levels")
	audioPath := flag.String("audio", "", "Path to a 16-bit MP3 fixture; if empty, a synthetic tone is used")
	toneSeconds := flag.Float64("tone-seconds", 12, "Duration of the synthetic tone, if -audio is not given")
	flag.Parse()

	if *modelID == "" {
		log.Fatal("mtste-simulate: -model-id is required")
	}

	sink := &printingSink{}
	orch := orchestrator.New(onnxadapter.Loader{}, sink, nil)

	defaults := tier.DefaultConfigs()
	tiers := make(map[int]tier.Config)
	for _, lvl := range parseTiers(*tiersFlag) {
		if c, ok := defaults[lvl]; ok {
			tiers[lvl] = c
		}
	}

	cfg := orchestrator.Config{
		ModelID:  *modelID,
		Backend:  asr.Backend(*backend),
		Dtype:    *dtype,
		Quantize: *quantize,
		Tiers:    tiers,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := orch.Start(ctx, cfg); err != nil {
		log.Fatalf("mtste-simulate: start: %v", err)
	}

	var source asr.Source
	if *audioPath != "" {
		source = fileaudiosource.New(*audioPath)
	} else {
		source = newToneSource(*toneSeconds)
	}
	defer source.Close()

	log.Println("mtste-simulate: streaming audio...")
	if err := source.Run(ctx, orch.PushAudio); err != nil {
		log.Printf("mtste-simulate: source error: %v", err)
	}

	orch.Commit()
	if err := orch.Stop(); err != nil {
		log.Printf("mtste-simulate: stop: %v", err)
	}

	fmt.Println()
	fmt.Println("=== Final Transcript ===")
	for _, seg := range sink.last.Segments {
		if seg.IsSeparator {
			fmt.Println("---")
			continue
		}
		fmt.Printf("L%d [%.2fs-%.2fs]: %s\n", seg.Level, seg.StartS, seg.EndS, seg.Text)
	}
}

func parseTiers(raw string) []int {
	var out []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if n, err := strconv.Atoi(part); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// toneSource is a synthetic asr.Source producing a low-frequency sine
// wave, standing in for a microphone when no fixture is given.
type toneSource struct {
	seconds float64
}

func newToneSource(seconds float64) *toneSource {
	return &toneSource{seconds: seconds}
}

func (t *toneSource) Run(ctx context.Context, push func([]float32)) error {
	const chunkSeconds = 0.2
	chunkSamples := int(chunkSeconds * asr.SampleRate)
	total := int(t.seconds * asr.SampleRate)

	ticker := time.NewTicker(time.Duration(chunkSeconds * float64(time.Second)))
	defer ticker.Stop()

	for n := 0; n < total; n += chunkSamples {
		end := n + chunkSamples
		if end > total {
			end = total
		}
		samples := make([]float32, end-n)
		for i := range samples {
			t := float64(n+i) / asr.SampleRate
			samples[i] = float32(0.2 * math.Sin(2*math.Pi*220*t))
		}
		push(samples)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

func (t *toneSource) Close() error { return nil }

// printingSink implements asr.Sink, logging status/progress as they
// happen and retaining the most recent Transcript for the final
// summary.
type printingSink struct {
	last asr.TranscriptUpdate
}

func (s *printingSink) OnStatus(text string) {
	log.Printf("status: %s", text)
}

func (s *printingSink) OnLoadProgress(level int, progress float64, file string) {
	log.Printf("load L%d: %.0f%% %s", level, progress*100, file)
}

func (s *printingSink) OnTranscript(update asr.TranscriptUpdate) {
	s.last = update
}
