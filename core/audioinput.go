package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/lingting/rehab-core/core/audio"
	"github.com/lingting/rehab-core/core/speechtotext"
)

// ErrDeviceFailure marks errors caused by the microphone. It ends the run and
// should not be retried automatically.
var ErrDeviceFailure = errors.New("audio device failure")

var errCaptureStopped = errors.New("capture stopped unexpectedly")

// AudioInput is a microphone delivering fixed-size frames.
type AudioInput interface {
	Stream(ctx context.Context, onAudio func(audio []byte)) error
	EncodingInfo() audio.EncodingInfo
	Close()
}

type frameSink interface {
	SendFrame(frame []byte) error
}

// captureLoop keeps reading the device for the whole run. Frames read while
// the gate is busy are discarded so the device buffer never overflows.
type captureLoop struct {
	input AudioInput
	gate  *TurnGate
	sink  frameSink

	forwarded atomic.Int64
	discarded atomic.Int64
}

func newCaptureLoop(input AudioInput, gate *TurnGate, sink frameSink) *captureLoop {
	return &captureLoop{input: input, gate: gate, sink: sink}
}

// Run blocks until ctx is done. Any device error, or the device stopping on
// its own, is returned wrapped in ErrDeviceFailure.
func (l *captureLoop) Run(ctx context.Context) error {
	err := l.input.Stream(ctx, l.onAudio)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceFailure, err)
	}
	if ctx.Err() == nil {
		return fmt.Errorf("%w: %w", ErrDeviceFailure, errCaptureStopped)
	}

	logger.Debug("capture loop stopped",
		"forwarded", l.forwarded.Load(),
		"discarded", l.discarded.Load())
	return nil
}

func (l *captureLoop) onAudio(frame []byte) {
	if !l.gate.IsCapturing() {
		l.discarded.Add(1)
		return
	}

	if err := l.sink.SendFrame(frame); err != nil {
		if !errors.Is(err, speechtotext.ErrNotStreaming) {
			logger.Warn("failed to forward audio frame", "error", err)
		}
		return
	}
	l.forwarded.Add(1)
}
