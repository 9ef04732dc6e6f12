package onnxadapter

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/mtste/engine/asr"
)

// Loader constructs onnxadapter.Model instances. It treats
// LoadOptions.ModelID as a directory containing encoder.onnx,
// decoder.onnx, and vocab.txt -- a convention private to this adapter
// (spec.md §6 leaves modelId's resolution up to the adapter).
type Loader struct{}

var _ asr.Loader = Loader{}

func (Loader) Load(ctx context.Context, opts asr.LoadOptions, onProgress asr.ProgressFunc) (asr.Model, asr.QuantValidation, error) {
	if err := initRuntime(); err != nil {
		return nil, "", err
	}

	dir := opts.ModelID
	encoderPath := filepath.Join(dir, "encoder.onnx")
	decoderPath := filepath.Join(dir, "decoder.onnx")
	vocabPath := filepath.Join(dir, "vocab.txt")

	report(onProgress, 0.0, encoderPath)
	vocab, err := loadVocab(vocabPath)
	if err != nil {
		return nil, "", err
	}

	device := opts.Device
	if device == "" {
		device = asr.BackendAuto
	}

	model, computeUnits, err := buildSessions(encoderPath, decoderPath, device)
	if err != nil && device != asr.BackendCPU {
		// §4.2.4: "if the preferred device fails to initialize, retry
		// once on the portable CPU backend".
		model, computeUnits, err = buildSessions(encoderPath, decoderPath, asr.BackendCPU)
	}
	if err != nil {
		return nil, "", fmt.Errorf("onnxadapter: load model %s: %w", dir, err)
	}
	report(onProgress, 1.0, decoderPath)

	model.vocab = vocab
	model.computeUnits = computeUnits

	return model, validateQuantization(dir, opts.Quantize), nil
}

func buildSessions(encoderPath, decoderPath string, device asr.Backend) (*Model, string, error) {
	encInfo, encOutInfo, err := ort.GetInputOutputInfo(encoderPath)
	if err != nil {
		return nil, "", fmt.Errorf("encoder info: %w", err)
	}
	decInfo, decOutInfo, err := ort.GetInputOutputInfo(decoderPath)
	if err != nil {
		return nil, "", fmt.Errorf("decoder info: %w", err)
	}

	encOpts, encCoreML, err := newSessionOptions(device)
	if err != nil {
		return nil, "", err
	}
	defer encOpts.Destroy()

	encoder, err := ort.NewDynamicAdvancedSession(encoderPath, names(encInfo), names(encOutInfo), encOpts)
	if err != nil {
		return nil, "", fmt.Errorf("encoder session: %w", err)
	}

	decOpts, decCoreML, err := newSessionOptions(device)
	if err != nil {
		encoder.Destroy()
		return nil, "", err
	}
	defer decOpts.Destroy()

	decoder, err := ort.NewDynamicAdvancedSession(decoderPath, names(decInfo), names(decOutInfo), decOpts)
	if err != nil {
		encoder.Destroy()
		return nil, "", fmt.Errorf("decoder session: %w", err)
	}

	computeUnits := "cpu"
	if encCoreML && decCoreML {
		computeUnits = "coreml"
	}
	return &Model{encoder: encoder, decoder: decoder}, computeUnits, nil
}

func names(info []ort.InputOutputInfo) []string {
	out := make([]string, len(info))
	for i, v := range info {
		out[i] = v.Name
	}
	return out
}

func report(onProgress asr.ProgressFunc, progress float64, file string) {
	if onProgress != nil {
		onProgress(progress, file)
	}
}

// validateQuantization is the §4.2.4 post-load check: it compares the
// requested quantization against the model directory's naming
// convention (the same heuristic the teacher's engine uses -- "int8" in
// the filename -- generalized to a directory of files). Quantization is
// only validated if requested; an unset Quantize is not a mismatch.
func validateQuantization(dir, requested string) asr.QuantValidation {
	if requested == "" {
		return asr.QuantOK
	}
	lower := strings.ToLower(dir)
	switch {
	case strings.Contains(lower, strings.ToLower(requested)):
		return asr.QuantOK
	case strings.Contains(lower, "int8") || strings.Contains(lower, "fp16") || strings.Contains(lower, "fp32"):
		return asr.QuantMismatch
	default:
		return asr.QuantUncertain
	}
}
