package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	orchestration "github.com/lingting/rehab-core/core"
)

const defaultSubtitleWidth = 20

func newSubtitlesCmd(a *app) *cobra.Command {
	var width int

	cmd := &cobra.Command{
		Use:   "subtitles",
		Short: "Broadcast live transcripts without replying",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if width <= 0 {
				return errors.New("--width must be positive")
			}
			return a.runSubtitles(cmd.Context(), width)
		},
	}
	cmd.Flags().IntVar(&width, "width", defaultSubtitleWidth, "Number of trailing characters to display")
	return cmd
}

func (a *app) runSubtitles(ctx context.Context, width int) (err error) {
	if err := a.cfg.validateCapture(); err != nil {
		return err
	}

	res := &resources{}
	defer func() { err = joinClose(err, res, a.cfg.ShutdownTimeout) }()

	input, err := newAudioInput(a.cfg, res)
	if err != nil {
		return err
	}
	hub, err := newHub(a.cfg, res)
	if err != nil {
		return err
	}

	orchestrator := orchestration.NewOrchestrator(
		orchestration.WithAudioInput(input),
		orchestration.WithRecognizer(newRecognizer(a.cfg, input.EncodingInfo())),
		orchestration.WithStopTimeout(a.cfg.ShutdownTimeout),
		orchestration.WithEventHandler(newEventLogger(slog.Default())),
		orchestration.WithBroadcaster(hub),
		orchestration.WithTranscriptFormatter(orchestration.LastRunes(width)),
	)
	return supervise(ctx, "subtitles", a.cfg.RestartBackoff, a.cfg.MaxRestartDelay, orchestrator.Run)
}
