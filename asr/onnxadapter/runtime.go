// Package onnxadapter is a reference asr.Model/asr.Loader implementation
// backed by github.com/yalue/onnxruntime_go, grounded on the teacher's
// GigaAM ONNX engine (session construction, CoreML execution provider,
// shared-library discovery). The acoustic model, tokenizer, and feature
// extractor are explicitly out of scope (spec.md §1 Non-goals), so the
// encoder/decoder graphs and the feature framing here are a minimal
// viable stand-in for exercising the asr.Model contract end to end, not
// a production ASR model.
package onnxadapter

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/mtste/engine/asr"
)

var (
	runtimeMu   sync.Mutex
	runtimeInit bool
)

// initRuntime lazily initializes the global ONNX Runtime environment,
// mirroring the teacher's initONNXRuntime: resolve the shared library
// from an env var first, fall back to a short list of conventional
// install locations, then call ort.SetSharedLibraryPath +
// ort.InitializeEnvironment exactly once per process.
func initRuntime() error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if runtimeInit {
		return nil
	}

	libPath := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")
	if libPath == "" {
		for _, candidate := range []string{
			"./libonnxruntime.so",
			"./libonnxruntime.dylib",
			"/usr/local/lib/libonnxruntime.so",
			"/usr/lib/libonnxruntime.so",
		} {
			if _, err := os.Stat(candidate); err == nil {
				libPath = candidate
				break
			}
		}
	}
	if libPath == "" {
		return fmt.Errorf("onnxadapter: ONNX Runtime shared library not found; set ONNXRUNTIME_SHARED_LIBRARY_PATH")
	}

	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("onnxadapter: initialize environment: %w", err)
	}
	runtimeInit = true
	return nil
}

// newSessionOptions builds session options for the requested backend,
// enabling CoreML when asked and silently falling back to plain CPU
// options if the execution provider can't be appended -- the same
// "CoreML unavailable is not fatal" behavior as the teacher's engine.
func newSessionOptions(device asr.Backend) (*ort.SessionOptions, bool, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, false, fmt.Errorf("onnxadapter: new session options: %w", err)
	}

	if device == asr.BackendCoreML || device == asr.BackendAuto {
		if err := options.AppendExecutionProviderCoreML(0); err != nil {
			return options, false, nil
		}
		return options, true, nil
	}
	return options, false, nil
}
