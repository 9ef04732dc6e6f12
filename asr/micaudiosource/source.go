// Package micaudiosource implements asr.Source by capturing from the
// default microphone with github.com/gen2brain/malgo, grounded on the
// teacher's audio.Capture (device config, raw-bytes-to-float32 decode
// callback). The teacher's system-audio loopback, ScreenCaptureKit, and
// Core Audio tap paths are out of scope here -- the Audio Source
// contract (spec.md §4.6) is "one microphone stream", not a mixer.
package micaudiosource

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gen2brain/malgo"

	"github.com/mtste/engine/asr"
)

const nativeSampleRate = 48000

// Source captures mono microphone audio and resamples it to the 16kHz
// asr.Source delivers (spec.md §4.6).
type Source struct {
	deviceName string

	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

var _ asr.Source = (*Source)(nil)

// New allocates the malgo context. deviceName may be empty to use the
// system default input device.
func New(deviceName string) (*Source, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("micaudiosource: init context: %w", err)
	}
	return &Source{deviceName: deviceName, ctx: ctx}, nil
}

// Run starts capture and blocks, resampling and forwarding mono 16kHz
// float32 frames to push, until ctx is cancelled.
func (s *Source) Run(ctx context.Context, push func([]float32)) error {
	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = 1
	cfg.SampleRate = nativeSampleRate

	if s.deviceName != "" {
		id, err := findDeviceByName(s.ctx, s.deviceName)
		if err != nil {
			return fmt.Errorf("micaudiosource: %w", err)
		}
		cfg.Capture.DeviceID = id.Pointer()
	}

	done := ctx.Done()
	onRecv := func(_, in []byte, frameCount uint32) {
		samples := decodeFloat32LE(in, int(frameCount))
		resampled := resampleLinear(samples, nativeSampleRate, asr.SampleRate)
		select {
		case <-done:
		default:
			push(resampled)
		}
	}

	device, err := malgo.InitDevice(s.ctx.Context, cfg, malgo.DeviceCallbacks{Data: onRecv})
	if err != nil {
		return fmt.Errorf("micaudiosource: init device: %w", err)
	}
	s.device = device

	if err := device.Start(); err != nil {
		return fmt.Errorf("micaudiosource: start device: %w", err)
	}
	defer device.Stop()

	<-ctx.Done()
	return nil
}

func (s *Source) Close() error {
	if s.device != nil {
		s.device.Stop()
		s.device.Uninit()
	}
	if s.ctx != nil {
		return s.ctx.Uninit()
	}
	return nil
}

func findDeviceByName(ctx *malgo.AllocatedContext, name string) (*malgo.DeviceID, error) {
	devices, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if d.Name() == name {
			id := d.ID
			return &id, nil
		}
	}
	return nil, fmt.Errorf("device not found: %s", name)
}

func decodeFloat32LE(raw []byte, frameCount int) []float32 {
	samples := make([]float32, frameCount)
	for i := 0; i < frameCount && (i+1)*4 <= len(raw); i++ {
		bits := binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
		samples[i] = math.Float32frombits(bits)
	}
	return samples
}

// resampleLinear is the same linear-interpolation resampler the
// teacher's MP3 reader uses, reused here because the microphone's
// native rate (48kHz) and the engine's required rate (16kHz, spec.md
// §4.6) differ.
func resampleLinear(in []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || len(in) == 0 {
		return in
	}
	ratio := float64(fromRate) / float64(toRate)
	outLen := int(float64(len(in)) / ratio)
	out := make([]float32, outLen)
	for i := range out {
		srcPos := float64(i) * ratio
		idx := int(srcPos)
		frac := srcPos - float64(idx)
		if idx+1 < len(in) {
			out[i] = in[idx]*float32(1-frac) + in[idx+1]*float32(frac)
		} else if idx < len(in) {
			out[i] = in[idx]
		}
	}
	return out
}
