// Package asr defines the External Collaborator Adapters of spec.md §4.6:
// the ASR Model Adapter, the Audio Source, and the Transcript Sink. These
// are interfaces only -- the acoustic model, tokenizer, and feature
// extractor are explicitly out of scope (spec.md §1 Non-goals). Concrete
// adapters live in the onnxadapter/, micaudiosource/, and
// fileaudiosource/ subpackages as reference implementations of the
// contract.
package asr

import "context"

// Features is an opaque handle to whatever the feature extractor
// produces; only the adapter that produced it and the Verifier's forward
// pass need to know its concrete shape. It is an alias of any, so a
// Model's Forward method value can be used directly as a
// verifier.ForwardFunc.
type Features = any

// GenerationOptions mirrors §4.6's generation capability group:
// "(features, options) -> token_sequence with options {max_new_tokens,
// language | none, task, beams, do_sample, early_stopping,
// decoder_input_ids?}".
type GenerationOptions struct {
	MaxNewTokens    int
	Language        string // empty means "none" / auto-detect
	Task            string
	Beams           int
	DoSample        bool
	EarlyStopping   bool
	DecoderInputIDs []int32 // optional speculative-decoding seed
}

// Model is the ASR Model Adapter contract (§4.6). A conforming adapter
// must document its actual special-token thresholds (§6); the defaults in
// tier.Token are what the header-stripping logic in §4.4 assumes unless
// overridden.
type Model interface {
	// ExtractFeatures implements "(samples) -> features".
	ExtractFeatures(ctx context.Context, samples []float32) (Features, error)

	// Generate implements "(features, options) -> token_sequence".
	Generate(ctx context.Context, features Features, opts GenerationOptions) ([]int32, error)

	// Decode implements tokenizer decode "(tokens, skip_special_tokens) ->
	// text".
	Decode(ctx context.Context, tokens []int32, skipSpecialTokens bool) (string, error)

	// Forward implements the low-level "(features, decoder_input_ids) ->
	// logits" call the Verifier needs.
	Forward(ctx context.Context, features Features, decoderInputIDs []int32) ([][]float64, error)

	// Close releases adapter resources. Models are per-tier and never
	// shared (§5 Shared-resource policy).
	Close() error
}

// Backend identifies a compute backend for model load (§4.2.4).
type Backend string

const (
	BackendAuto   Backend = "auto"
	BackendCPU    Backend = "cpu"
	BackendCUDA   Backend = "cuda"
	BackendCoreML Backend = "coreml"
)

// QuantValidation is the outcome of the post-load quantization check
// (§4.2.4): "a validation outcome (ok / uncertain / mismatch) is surfaced
// as a status message but does not block operation."
type QuantValidation string

const (
	QuantOK        QuantValidation = "ok"
	QuantUncertain QuantValidation = "uncertain"
	QuantMismatch  QuantValidation = "mismatch"
)

// LoadOptions parameterizes model load (§4.2.4): "{modelId, device,
// dtype}".
type LoadOptions struct {
	ModelID   string
	Device    Backend
	Dtype     string
	Quantize  string
	SessionID string // §9 "Session isolation": cache namespace per tier
}

// Loader creates a Model, attempting the preferred device first and
// falling back once to the portable CPU backend on failure (§4.2.4).
// ProgressFunc lets the loader report LOAD_PROGRESS events while it
// downloads or mmaps weights.
type ProgressFunc func(progress float64, file string)

type Loader interface {
	Load(ctx context.Context, opts LoadOptions, onProgress ProgressFunc) (Model, QuantValidation, error)
}
