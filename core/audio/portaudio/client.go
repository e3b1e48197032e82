package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gordonklaus/portaudio"
	"github.com/lingting/rehab-core/core/audio"
)

// Client captures fixed-size linear16 frames from the default input device.
type Client struct {
	frameSize int
	stream    *portaudio.Stream

	in []int16
}

// NewClient opens the default input device. frameSize is in bytes and must be
// a multiple of the sample size.
func NewClient(frameSize int) (*Client, error) {
	if frameSize <= 0 {
		frameSize = audio.DefaultFrameSize
	}
	samples := audio.CaptureEncodingInfo().FrameSamples(frameSize)
	if samples == 0 || samples*2 != frameSize {
		return nil, fmt.Errorf("invalid frame size %d", frameSize)
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	in := make([]int16, samples)
	stream, err := portaudio.OpenDefaultStream(1, 0, audio.CaptureSampleRate, samples, in)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open input stream: %w", err)
	}

	return &Client{
		frameSize: frameSize,
		stream:    stream,
		in:        in,
	}, nil
}

// Stream reads frames until ctx is done or the device fails. Each frame is a
// fresh slice, so the callback may hand it on without copying.
func (c *Client) Stream(ctx context.Context, onAudio func(audio []byte)) error {
	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("failed to start input stream: %w", err)
	}
	defer c.stream.Stop()

	logger.Info("microphone capture started", "frame_size", c.frameSize)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		// Overflow means we were late, the buffer still holds a full frame.
		if err := c.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
			return fmt.Errorf("failed to read from input stream: %w", err)
		}

		frame := bytes.NewBuffer(make([]byte, 0, c.frameSize))
		if err := binary.Write(frame, binary.LittleEndian, c.in); err != nil {
			return fmt.Errorf("failed to encode input frame: %w", err)
		}
		onAudio(frame.Bytes())
	}
}

func (c *Client) Close() {
	if err := c.stream.Close(); err != nil {
		logger.Warn("failed to close input stream", "error", err)
	}
	_ = portaudio.Terminate()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.CaptureEncodingInfo()
}
