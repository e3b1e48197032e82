package portaudio

import (
	"context"
	"fmt"
	"os"

	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"
)

const cueFramesPerBuffer = 1024

// CuePlayer plays short WAV cues (direction tones) through the default output
// device, opening a stream sized to each file's own format.
type CuePlayer struct{}

func NewCuePlayer() (*CuePlayer, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	return &CuePlayer{}, nil
}

func (p *CuePlayer) Close() {
	_ = portaudio.Terminate()
}

// Play blocks until the whole file has been written to the device.
func (p *CuePlayer) Play(ctx context.Context, path string) error {
	samples, channels, sampleRate, err := decodeWAV(path)
	if err != nil {
		return err
	}

	out := make([]int16, cueFramesPerBuffer*channels)
	stream, err := portaudio.OpenDefaultStream(0, channels, float64(sampleRate), cueFramesPerBuffer, out)
	if err != nil {
		return fmt.Errorf("failed to open output stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start output stream: %w", err)
	}
	defer stream.Stop()

	for offset := 0; offset < len(samples); offset += len(out) {
		if err := ctx.Err(); err != nil {
			return err
		}

		n := copy(out, samples[offset:])
		clear(out[n:])
		if err := stream.Write(); err != nil {
			return fmt.Errorf("failed to write cue audio: %w", err)
		}
	}
	return nil
}

func decodeWAV(path string) (samples []int16, channels int, sampleRate int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to open cue: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, 0, 0, fmt.Errorf("%s is not a valid wav file", path)
	}
	if decoder.BitDepth != 16 {
		return nil, 0, 0, fmt.Errorf("unsupported bit depth %d in %s", decoder.BitDepth, path)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	samples = make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}
	return samples, buf.Format.NumChannels, buf.Format.SampleRate, nil
}
