// Package fileaudiosource implements asr.Source over a local MP3 file
// with github.com/hajimehoshi/go-mp3, grounded on the teacher's
// session.MP3Reader (stereo PCM decode, stereo-to-mono averaging,
// linear-interpolation resampling to the engine's fixed 16kHz).
package fileaudiosource

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hajimehoshi/go-mp3"

	"github.com/mtste/engine/asr"
)

const defaultPushInterval = 200 * time.Millisecond

// Source streams a 16-bit stereo MP3 as mono float32 PCM at 16kHz,
// delivering it in fixed-size chunks paced by a ticker rather than all
// at once, so it exercises the engine's streaming contract the same way
// a live microphone would (§4.6: "one or more samples per call").
type Source struct {
	path         string
	pushInterval time.Duration

	file *os.File
}

var _ asr.Source = (*Source)(nil)

// New opens path lazily; the file is actually opened on Run so a Source
// value can be constructed before the file exists (e.g. while wiring up
// the orchestrator).
func New(path string) *Source {
	return &Source{path: path, pushInterval: defaultPushInterval}
}

func (s *Source) Run(ctx context.Context, push func([]float32)) error {
	file, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("fileaudiosource: open %s: %w", s.path, err)
	}
	s.file = file

	decoder, err := mp3.NewDecoder(file)
	if err != nil {
		return fmt.Errorf("fileaudiosource: decode %s: %w", s.path, err)
	}

	mono, err := readAllMono(decoder)
	if err != nil {
		return fmt.Errorf("fileaudiosource: read %s: %w", s.path, err)
	}
	mono = resampleLinear(mono, decoder.SampleRate(), asr.SampleRate)

	chunkSamples := int(float64(asr.SampleRate) * s.pushInterval.Seconds())
	if chunkSamples <= 0 {
		chunkSamples = asr.SampleRate / 5
	}

	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	for offset := 0; offset < len(mono); offset += chunkSamples {
		end := offset + chunkSamples
		if end > len(mono) {
			end = len(mono)
		}
		push(mono[offset:end])

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

func (s *Source) Close() error {
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

// readAllMono decodes the full stereo PCM stream and averages channels,
// the same two-step ReadAllStereo -> ReadAllMono the teacher's reader
// uses.
func readAllMono(decoder *mp3.Decoder) ([]float32, error) {
	pcm, err := io.ReadAll(decoder)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, err
	}

	numSamples := len(pcm) / 4 // 16-bit stereo: 2 bytes * 2 channels
	mono := make([]float32, numSamples)
	for i := 0; i < numSamples; i++ {
		left := int16(binary.LittleEndian.Uint16(pcm[i*4:]))
		right := int16(binary.LittleEndian.Uint16(pcm[i*4+2:]))
		mono[i] = (float32(left)/32768.0 + float32(right)/32768.0) / 2.0
	}
	return mono, nil
}

// resampleLinear is the teacher's linear-interpolation resampler,
// reused verbatim because the algorithm itself is unrelated to the
// spec's rework -- only the caller (streaming chunks instead of whole
// segments) changed.
func resampleLinear(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(srcRate) / float64(dstRate)
	newLen := int(float64(len(samples)) / ratio)
	resampled := make([]float32, newLen)

	for i := 0; i < newLen; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		if srcIdx+1 < len(samples) {
			resampled[i] = samples[srcIdx]*(1-frac) + samples[srcIdx+1]*frac
		} else if srcIdx < len(samples) {
			resampled[i] = samples[srcIdx]
		}
	}
	return resampled
}
