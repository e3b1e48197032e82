package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	orchestration "github.com/lingting/rehab-core/core"
	"github.com/lingting/rehab-core/core/audio"
	"github.com/lingting/rehab-core/core/audio/miniaudio"
	"github.com/lingting/rehab-core/core/audio/portaudio"
	"github.com/lingting/rehab-core/core/broadcast"
	"github.com/lingting/rehab-core/core/llms/openai"
	"github.com/lingting/rehab-core/core/reports"
	"github.com/lingting/rehab-core/core/speechtotext"
	dashscopestt "github.com/lingting/rehab-core/core/speechtotext/dashscope"
	"github.com/lingting/rehab-core/core/speechtotext/deepgram"
	"github.com/lingting/rehab-core/core/texttospeech"
	dashscopetts "github.com/lingting/rehab-core/core/texttospeech/dashscope"
)

// resources collects everything a command opened so it can be released in
// reverse order.
type resources struct {
	closers []func(context.Context) error
}

func (r *resources) add(closer func(context.Context) error) {
	r.closers = append(r.closers, closer)
}

func (r *resources) close(ctx context.Context) error {
	var errs error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = errors.Join(errs, r.closers[i](ctx))
	}
	return errs
}

func newAudioInput(cfg Config, res *resources) (orchestration.AudioInput, error) {
	switch cfg.AudioBackend {
	case audioBackendMiniaudio:
		capture, err := miniaudio.NewCapture(cfg.FrameSize)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", orchestration.ErrDeviceFailure, err)
		}
		res.add(func(context.Context) error { capture.Close(); return nil })
		return capture, nil
	default:
		client, err := portaudio.NewClient(cfg.FrameSize)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", orchestration.ErrDeviceFailure, err)
		}
		res.add(func(context.Context) error { client.Close(); return nil })
		return client, nil
	}
}

func newRecognizer(cfg Config, encoding audio.EncodingInfo) speechtotext.Recognizer {
	if cfg.Recognizer == recognizerDeepgram {
		return deepgram.NewRecognizer(cfg.DeepgramAPIKey, deepgram.WithEncodingInfo(encoding))
	}
	return dashscopestt.NewRecognizer(cfg.DashScopeAPIKey, dashscopestt.WithSampleRate(encoding.SampleRate))
}

func newGenerator(cfg Config) *openai.Generator {
	return openai.NewGenerator(cfg.DashScopeAPIKey,
		openai.WithModel(cfg.GeneratorModel),
		openai.WithBaseURL(cfg.GeneratorBaseURL),
		openai.WithRequestTimeout(cfg.GenerateTimeout),
	)
}

func newSpeaker(cfg Config, res *resources) (*texttospeech.Speaker, error) {
	if cfg.DashScopeAPIKey == "" {
		return nil, errors.New("DASHSCOPE_API_KEY is required for speech synthesis")
	}

	player, err := miniaudio.NewPlayer()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", orchestration.ErrDeviceFailure, err)
	}
	res.add(func(context.Context) error { player.Close(); return nil })

	sessionConfig := texttospeech.DefaultSessionConfig()
	sessionConfig.Voice = cfg.Voice
	sessionConfig.SampleRate = player.EncodingInfo().SampleRate

	speaker := texttospeech.NewSpeaker(
		func() texttospeech.Synthesizer { return dashscopetts.NewSynthesizer(cfg.DashScopeAPIKey) },
		player,
		texttospeech.WithSessionConfig(sessionConfig),
		texttospeech.WithRequestTimeout(cfg.SynthesisTimeout),
	)
	res.add(speaker.Close)
	return speaker, nil
}

func newHub(cfg Config, res *resources) (*broadcast.Hub, error) {
	hub := broadcast.NewHub()
	if err := hub.Listen(cfg.BroadcastHost, cfg.BroadcastPort); err != nil {
		return nil, err
	}
	slog.Info("broadcast server listening", "addr", hub.Addr().String())
	res.add(func(context.Context) error { return hub.Close() })
	return hub, nil
}

// newTrainingLog allocates a record id and returns a log persisted to the
// reports directory.
func newTrainingLog(cfg Config, recordType reports.Type) (*reports.Log, error) {
	store, err := reports.NewFileStore(cfg.ReportsDir)
	if err != nil {
		return nil, err
	}
	id, err := store.NextID()
	if err != nil {
		return nil, err
	}
	slog.Info("training record allocated", "id", id, "type", recordType.String())
	return reports.NewLog(id, recordType, store), nil
}
