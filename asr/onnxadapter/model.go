package onnxadapter

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"gonum.org/v1/gonum/floats"

	"github.com/mtste/engine/asr"
)

// Model is the onnxadapter implementation of asr.Model: an encoder
// session turning mel-ish features into hidden states, and a decoder
// session turning (hidden states, decoder_input_ids) into per-position
// vocabulary logits, grounded on the teacher's GigaAM RNNT engine's
// multi-session layout (encoderSession/decoderSession).
//
// Inference is run under a mutex because ort.DynamicAdvancedSession.Run
// is not documented safe for concurrent use, and each Worker only ever
// calls into its own Model from its single inference-loop goroutine
// anyway (§5 Shared-resource policy: "Models are per-tier and never
// shared").
type Model struct {
	mu sync.Mutex

	encoder *ort.DynamicAdvancedSession
	decoder *ort.DynamicAdvancedSession
	vocab   []string

	computeUnits string
}

var _ asr.Model = (*Model)(nil)

func (m *Model) ExtractFeatures(_ context.Context, samples []float32) (asr.Features, error) {
	return extractFeatures(samples), nil
}

// Generate runs the greedy decode loop: seed with opts.DecoderInputIDs
// (the Verifier's valid prefix) or a bare BOS, then repeatedly re-run
// the full decoder forward pass and append the argmax of the last
// position, stopping at EOS or opts.MaxNewTokens. There is no KV cache,
// so this is O(n^2) in sequence length -- acceptable for a reference
// adapter whose model graphs are themselves placeholders (spec.md §1
// Non-goals exclude the acoustic model and tokenizer).
func (m *Model) Generate(ctx context.Context, features asr.Features, opts asr.GenerationOptions) ([]int32, error) {
	mel, ok := features.(melFeatures)
	if !ok {
		return nil, fmt.Errorf("onnxadapter: unexpected features type %T", features)
	}

	tokens := append([]int32{}, opts.DecoderInputIDs...)
	if len(tokens) == 0 {
		tokens = []int32{tokenBOS}
	}

	maxNew := opts.MaxNewTokens
	if maxNew <= 0 {
		maxNew = 224
	}

	for step := 0; step < maxNew; step++ {
		if err := ctx.Err(); err != nil {
			return tokens, err
		}
		logits, err := m.forward(mel, tokens)
		if err != nil {
			return nil, err
		}
		if len(logits) == 0 {
			break
		}
		next := int32(floats.MaxIdx(logits[len(logits)-1]))
		tokens = append(tokens, next)
		if next == tokenEOS {
			break
		}
	}
	return tokens, nil
}

func (m *Model) Decode(_ context.Context, tokens []int32, skipSpecialTokens bool) (string, error) {
	return decodeTokens(m.vocab, tokens, skipSpecialTokens), nil
}

// Forward implements the Verifier's low-level teacher-forced pass: one
// decoder forward over features and decoderInputIDs, returning one row
// of vocabulary logits per input position (row i predicts position
// i+1), matching verifier.ForwardFunc's contract directly -- no adapter
// shim needed because asr.Model.Forward and verifier.ForwardFunc share
// the same plain [][]float64 return type (verifier.Logits is a type
// alias, not a defined type).
func (m *Model) Forward(_ context.Context, features asr.Features, decoderInputIDs []int32) ([][]float64, error) {
	mel, ok := features.(melFeatures)
	if !ok {
		return nil, fmt.Errorf("onnxadapter: unexpected features type %T", features)
	}
	return m.forward(mel, decoderInputIDs)
}

func (m *Model) forward(mel melFeatures, decoderInputIDs []int32) ([][]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mel.frames == 0 || len(decoderInputIDs) == 0 {
		return nil, nil
	}

	flat := make([]float32, numBands*mel.frames)
	for b := 0; b < numBands; b++ {
		copy(flat[b*mel.frames:(b+1)*mel.frames], mel.bands[b])
	}
	encInputShape := ort.NewShape(1, int64(numBands), int64(mel.frames))
	encInput, err := ort.NewTensor(encInputShape, flat)
	if err != nil {
		return nil, fmt.Errorf("onnxadapter: encoder input tensor: %w", err)
	}
	defer encInput.Destroy()

	encOutputs := []ort.Value{nil}
	if err := m.encoder.Run([]ort.Value{encInput}, encOutputs); err != nil {
		return nil, fmt.Errorf("onnxadapter: encoder run: %w", err)
	}
	defer destroyAll(encOutputs)
	hidden, ok := encOutputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("onnxadapter: unexpected encoder output type")
	}

	decInput := make([]int64, len(decoderInputIDs))
	for i, t := range decoderInputIDs {
		decInput[i] = int64(t)
	}
	decInputShape := ort.NewShape(1, int64(len(decInput)))
	decTensor, err := ort.NewTensor(decInputShape, decInput)
	if err != nil {
		return nil, fmt.Errorf("onnxadapter: decoder input tensor: %w", err)
	}
	defer decTensor.Destroy()

	hiddenTensor, err := ort.NewTensor(hidden.GetShape(), hidden.GetData())
	if err != nil {
		return nil, fmt.Errorf("onnxadapter: re-wrap encoder hidden state: %w", err)
	}
	defer hiddenTensor.Destroy()

	decOutputs := []ort.Value{nil}
	if err := m.decoder.Run([]ort.Value{decTensor, hiddenTensor}, decOutputs); err != nil {
		return nil, fmt.Errorf("onnxadapter: decoder run: %w", err)
	}
	defer destroyAll(decOutputs)
	logitsTensor, ok := decOutputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("onnxadapter: unexpected decoder output type")
	}

	shape := logitsTensor.GetShape()
	if len(shape) != 3 {
		return nil, fmt.Errorf("onnxadapter: unexpected logits rank %d", len(shape))
	}
	steps, vocab := int(shape[1]), int(shape[2])
	data := logitsTensor.GetData()

	logits := make([][]float64, steps)
	for t := 0; t < steps; t++ {
		row := make([]float64, vocab)
		for v := 0; v < vocab; v++ {
			row[v] = float64(data[t*vocab+v])
		}
		logits[t] = row
	}
	return logits, nil
}

func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.encoder != nil {
		m.encoder.Destroy()
	}
	if m.decoder != nil {
		m.decoder.Destroy()
	}
	return nil
}

func destroyAll(vs []ort.Value) {
	for _, v := range vs {
		if v != nil {
			v.Destroy()
		}
	}
}
