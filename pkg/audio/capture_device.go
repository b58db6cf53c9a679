//go:build capture

package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

// DeviceSource pulls PCM frames from a real microphone or system-audio
// device via malgo. The malgo data callback is the one path forbidden from
// blocking: it copies into a bounded handoff channel with a
// non-blocking send and returns immediately, dropping frames only if the
// consumer falls behind rather than stalling the audio thread.
type DeviceSource struct {
	cfg CaptureConfig

	audioCtx *malgo.AllocatedContext
	device   *malgo.Device

	frames chan Frame
	mu     sync.Mutex
	err    error
	index  int64
}

func NewDeviceSource(cfg CaptureConfig) (*DeviceSource, error) {
	if cfg.Source == SourceSystemAudio {
		return nil, &DeviceUnavailableError{
			Source: cfg.Source,
			Device: cfg.DeviceIndex,
			Reason: "system-audio loopback enumeration is not implemented on this backend",
		}
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	return &DeviceSource{
		cfg:      cfg,
		audioCtx: ctx,
		frames:   make(chan Frame, cfg.HandoffCapacity),
	}, nil
}

func (s *DeviceSource) Frames() <-chan Frame { return s.frames }

func (s *DeviceSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *DeviceSource) Start(ctx context.Context) error {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.PeriodSizeInMilliseconds = uint32(s.cfg.ChunkDurationMs)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(s.cfg.Channels)
	deviceConfig.SampleRate = uint32(s.cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(s.audioCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(_, inputSamples []byte, framecount uint32) {
			samples := make([]float32, len(inputSamples)/4)
			for i := range samples {
				bits := binary.LittleEndian.Uint32(inputSamples[i*4:])
				samples[i] = math.Float32frombits(bits)
			}

			s.mu.Lock()
			idx := s.index
			s.index++
			s.mu.Unlock()

			frame := Frame{Samples: samples, Index: idx, Time: time.Now()}
			select {
			case s.frames <- frame:
			default:
				// Handoff queue full: drop rather than block the device
				// callback. The VAD-queue monitor, not this callback, is
				// responsible for surfacing sustained backpressure.
			}
		},
		Stop: func() {
			s.mu.Lock()
			if s.err == nil {
				s.err = fmt.Errorf("capture device stopped unexpectedly")
			}
			s.mu.Unlock()
			close(s.frames)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device %q: %w", s.cfg.DeviceIndex, err)
	}
	s.device = device

	if err := device.Start(); err != nil {
		return fmt.Errorf("failed to start capture device %q: %w", s.cfg.DeviceIndex, err)
	}
	return nil
}

func (s *DeviceSource) Stop() error {
	if s.device != nil {
		if err := s.device.Uninit(); err != nil {
			return fmt.Errorf("failed to uninitialize capture device: %w", err)
		}
	}
	if s.audioCtx != nil {
		_ = s.audioCtx.Uninit()
		s.audioCtx.Free()
	}
	return nil
}

var _ Source = (*DeviceSource)(nil)
