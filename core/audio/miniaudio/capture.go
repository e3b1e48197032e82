package miniaudio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/lingting/rehab-core/core/audio"
)

// ErrCaptureStopped is returned when the backend stops the capture device
// underneath us, e.g. when the microphone is unplugged.
var ErrCaptureStopped = errors.New("capture device stopped unexpectedly")

const capturedFrameBacklog = 16

type captureClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig
	frameSize    int

	partial []byte
	frames  chan []byte
	stopped chan struct{}

	mu sync.Mutex
}

func (c *captureClient) Init(audioContext *malgo.AllocatedContext, frameSize int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sampleRate := uint32(audio.CaptureSampleRate)
	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	c.config = malgo.DefaultDeviceConfig(malgo.Capture)
	c.config.SampleRate = sampleRate
	c.config.Capture.Format = format
	c.config.Capture.Channels = uint32(channels)
	c.config.Alsa.NoMMap = 1
	c.config.PerformanceProfile = malgo.LowLatency
	c.config.PeriodSizeInFrames = 480
	c.config.Periods = 3

	c.audioContext = audioContext
	c.frameSize = frameSize
	c.frames = make(chan []byte, capturedFrameBacklog)
	c.stopped = make(chan struct{}, 1)

	var err error
	c.device, err = malgo.InitDevice(c.audioContext.Context, c.config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if len(pInput) < n || n == 0 {
				return
			}
			c.collect(pInput[:n])
		},
		Stop: func() {
			select {
			case c.stopped <- struct{}{}:
			default:
			}
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	return nil
}

// collect runs on the audio thread and never blocks it: when the consumer
// falls behind the oldest frame is discarded.
func (c *captureClient) collect(samples []byte) {
	c.partial = append(c.partial, samples...)
	for len(c.partial) >= c.frameSize {
		frame := make([]byte, c.frameSize)
		copy(frame, c.partial)
		c.partial = c.partial[c.frameSize:]

		select {
		case c.frames <- frame:
		default:
			select {
			case <-c.frames:
			default:
			}
			c.frames <- frame
		}
	}
}

func (c *captureClient) Stream(ctx context.Context, onAudio func(audio []byte)) error {
	c.mu.Lock()
	if c.device == nil {
		c.mu.Unlock()
		return fmt.Errorf("device not initialized")
	}
	select {
	case <-c.stopped:
	default:
	}
	if err := c.device.Start(); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.device != nil && c.device.IsStarted() {
			_ = c.device.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.stopped:
			if ctx.Err() != nil {
				return nil
			}
			return ErrCaptureStopped
		case frame := <-c.frames:
			onAudio(frame)
		}
	}
}

func (c *captureClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}

	return nil
}
