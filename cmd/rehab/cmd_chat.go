package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	orchestration "github.com/lingting/rehab-core/core"
	"github.com/lingting/rehab-core/core/reports"
)

func newChatCmd(a *app) *cobra.Command {
	var systemPrompt string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Free dialogue with the assistant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runChat(cmd.Context(), systemPrompt)
		},
	}
	cmd.Flags().StringVar(&systemPrompt, "system-prompt", orchestration.DefaultSystemPrompt, "System prompt for the assistant")
	return cmd
}

func (a *app) runChat(ctx context.Context, systemPrompt string) (err error) {
	if err := a.cfg.validateCapture(); err != nil {
		return err
	}

	res := &resources{}
	defer func() { err = joinClose(err, res, a.cfg.ShutdownTimeout) }()

	input, err := newAudioInput(a.cfg, res)
	if err != nil {
		return err
	}
	speaker, err := newSpeaker(a.cfg, res)
	if err != nil {
		return err
	}
	hub, err := newHub(a.cfg, res)
	if err != nil {
		return err
	}
	log, err := newTrainingLog(a.cfg, reports.TypeDialogue)
	if err != nil {
		return err
	}

	orchestrator := orchestration.NewOrchestrator(
		orchestration.WithAudioInput(input),
		orchestration.WithRecognizer(newRecognizer(a.cfg, input.EncodingInfo())),
		orchestration.WithStopTimeout(a.cfg.ShutdownTimeout),
		orchestration.WithEventHandler(newEventLogger(slog.Default())),
		orchestration.WithGenerator(newGenerator(a.cfg)),
		orchestration.WithSpeaker(speaker),
		orchestration.WithBroadcaster(hub),
		orchestration.WithSystemPrompt(systemPrompt),
		orchestration.WithTrainingLog(log),
	)
	return supervise(ctx, "chat", a.cfg.RestartBackoff, a.cfg.MaxRestartDelay, orchestrator.Run)
}

// joinClose releases res within timeout and folds any close failure into err.
func joinClose(err error, res *resources, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	closeErr := res.close(ctx)
	if err != nil {
		return err
	}
	return closeErr
}
