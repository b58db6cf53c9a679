//go:build capture

package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/asticode/go-astiav"
)

// Resampler converts mono f32 PCM between sample rates via libswresample.
// The pipeline runs at 16 kHz internally; capture devices opened at 8/32/48
// kHz pass through one of these at the boundary. Not safe for concurrent
// use; one Resampler belongs to one ResamplingSource goroutine.
type Resampler struct {
	ctx      *astiav.SoftwareResampleContext
	inFrame  *astiav.Frame
	outFrame *astiav.Frame
	inRate   int
	outRate  int
}

func NewResampler(inRate, outRate int) (*Resampler, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, fmt.Errorf("invalid resample rates %d -> %d", inRate, outRate)
	}

	r := &Resampler{inRate: inRate, outRate: outRate}
	r.ctx = astiav.AllocSoftwareResampleContext()
	if r.ctx == nil {
		return nil, fmt.Errorf("failed to allocate resample context")
	}
	r.inFrame = astiav.AllocFrame()
	r.outFrame = astiav.AllocFrame()
	if r.inFrame == nil || r.outFrame == nil {
		r.Free()
		return nil, fmt.Errorf("failed to allocate resample frames")
	}
	return r, nil
}

func (r *Resampler) Free() {
	if r.ctx != nil {
		r.ctx.Free()
		r.ctx = nil
	}
	if r.inFrame != nil {
		r.inFrame.Free()
		r.inFrame = nil
	}
	if r.outFrame != nil {
		r.outFrame.Free()
		r.outFrame = nil
	}
}

// Process resamples one block of mono f32 samples.
func (r *Resampler) Process(samples []float32) ([]float32, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("empty input to resampler")
	}

	const align = 0

	r.inFrame.Unref()
	r.outFrame.Unref()

	r.inFrame.SetChannelLayout(astiav.ChannelLayoutMono)
	r.inFrame.SetSampleFormat(astiav.SampleFormatFlt)
	r.inFrame.SetSampleRate(r.inRate)
	r.inFrame.SetNbSamples(len(samples))

	r.outFrame.SetChannelLayout(astiav.ChannelLayoutMono)
	r.outFrame.SetSampleFormat(astiav.SampleFormatFlt)
	r.outFrame.SetSampleRate(r.outRate)
	outSamples := len(samples) * r.outRate / r.inRate
	if outSamples == 0 {
		outSamples = 1
	}
	r.outFrame.SetNbSamples(outSamples)

	if err := r.inFrame.AllocBuffer(align); err != nil {
		return nil, fmt.Errorf("failed to allocate input buffer: %w", err)
	}
	if err := r.outFrame.AllocBuffer(align); err != nil {
		return nil, fmt.Errorf("failed to allocate output buffer: %w", err)
	}
	if err := r.inFrame.MakeWritable(); err != nil {
		return nil, fmt.Errorf("making frame writable failed: %w", err)
	}

	bufSize, err := r.inFrame.SamplesBufferSize(align)
	if err != nil {
		return nil, fmt.Errorf("failed to get buffer size: %w", err)
	}
	raw := make([]byte, bufSize)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(s))
	}
	if err := r.inFrame.Data().SetBytes(raw, align); err != nil {
		return nil, fmt.Errorf("setting frame data failed: %w", err)
	}

	if err := r.ctx.ConvertFrame(r.inFrame, r.outFrame); err != nil {
		return nil, fmt.Errorf("resample failed: %w", err)
	}

	outRaw, err := r.outFrame.Data().Bytes(align)
	if err != nil {
		return nil, fmt.Errorf("reading resampled data failed: %w", err)
	}
	got := r.outFrame.NbSamples()
	out := make([]float32, got)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(outRaw[i*4:]))
	}
	return out, nil
}

// ResamplingSource wraps a Source captured at a non-internal rate and
// re-emits its frames at outRate, re-chunked to the configured frame
// duration so downstream consumers never see a rate other than the
// internal one.
type ResamplingSource struct {
	inner   Source
	rs      *Resampler
	chunk   int // samples per emitted frame at outRate
	frames  chan Frame
	err     error
}

func NewResamplingSource(inner Source, inRate, outRate, chunkMs, handoffCapacity int) (*ResamplingSource, error) {
	rs, err := NewResampler(inRate, outRate)
	if err != nil {
		return nil, err
	}
	return &ResamplingSource{
		inner:  inner,
		rs:     rs,
		chunk:  outRate * chunkMs / 1000,
		frames: make(chan Frame, handoffCapacity),
	}, nil
}

func (s *ResamplingSource) Frames() <-chan Frame { return s.frames }

func (s *ResamplingSource) Err() error {
	if s.err != nil {
		return s.err
	}
	return s.inner.Err()
}

func (s *ResamplingSource) Start(ctx context.Context) error {
	if err := s.inner.Start(ctx); err != nil {
		return err
	}

	go func() {
		defer close(s.frames)
		defer s.rs.Free()

		var pending []float32
		var index int64
		for frame := range s.inner.Frames() {
			out, err := s.rs.Process(frame.Samples)
			if err != nil {
				s.err = fmt.Errorf("boundary resample: %w", err)
				return
			}
			pending = append(pending, out...)
			for len(pending) >= s.chunk {
				emit := make([]float32, s.chunk)
				copy(emit, pending[:s.chunk])
				pending = pending[s.chunk:]
				select {
				case s.frames <- Frame{Samples: emit, Index: index, Time: frame.Time}:
					index++
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return nil
}

func (s *ResamplingSource) Stop() error { return s.inner.Stop() }

// NormalizeTo16000 wraps src in a boundary resampler when the capture rate
// differs from the internal 16 kHz representation.
func NormalizeTo16000(src Source, cfg CaptureConfig) (Source, error) {
	if cfg.SampleRate == 16000 {
		return src, nil
	}
	return NewResamplingSource(src, cfg.SampleRate, 16000, cfg.ChunkDurationMs, cfg.HandoffCapacity)
}
