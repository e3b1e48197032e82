package miniaudio

import (
	"context"
	"fmt"

	"github.com/gen2brain/malgo"
	"github.com/lingting/rehab-core/core/audio"
)

func initContext() (*malgo.AllocatedContext, error) {
	audioCtx, err := malgo.InitContext(
		nil,
		malgo.ContextConfig{},
		func(message string) { logger.Debug("malgo", "message", message) },
	)
	if err != nil {
		return nil, fmt.Errorf("malgo context init failed: %w", err)
	}
	return audioCtx, nil
}

func freeContext(audioCtx *malgo.AllocatedContext) {
	_ = audioCtx.Uninit()
	audioCtx.Free()
}

// Player streams synthesized speech to the default output device.
type Player struct {
	audioContext *malgo.AllocatedContext
	playbackClient
}

func NewPlayer() (*Player, error) {
	audioCtx, err := initContext()
	if err != nil {
		return nil, err
	}

	player := Player{audioContext: audioCtx}
	if err := player.playbackClient.Init(audioCtx); err != nil {
		freeContext(audioCtx)
		return nil, fmt.Errorf("failed to initialize playback client: %w", err)
	}

	if err := player.playbackClient.Start(); err != nil {
		player.Close()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}

	return &player, nil
}

func (p *Player) Close() {
	_ = p.playbackClient.Uninit()
	freeContext(p.audioContext)
}

func (p *Player) EncodingInfo() audio.EncodingInfo {
	return audio.PlaybackEncodingInfo()
}

// Capture reads fixed-size frames from the default input device.
type Capture struct {
	audioContext *malgo.AllocatedContext
	captureClient
}

func NewCapture(frameSize int) (*Capture, error) {
	if frameSize <= 0 {
		frameSize = audio.DefaultFrameSize
	}

	audioCtx, err := initContext()
	if err != nil {
		return nil, err
	}

	capture := Capture{audioContext: audioCtx}
	if err := capture.captureClient.Init(audioCtx, frameSize); err != nil {
		freeContext(audioCtx)
		return nil, fmt.Errorf("failed to initialize capture client: %w", err)
	}

	return &capture, nil
}

func (c *Capture) Stream(ctx context.Context, onAudio func(audio []byte)) error {
	return c.captureClient.Stream(ctx, onAudio)
}

func (c *Capture) Close() {
	_ = c.captureClient.Uninit()
	freeContext(c.audioContext)
}

func (c *Capture) EncodingInfo() audio.EncodingInfo {
	return audio.CaptureEncodingInfo()
}
