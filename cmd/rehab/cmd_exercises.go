package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	orchestration "github.com/lingting/rehab-core/core"
	"github.com/lingting/rehab-core/core/audio/portaudio"
	"github.com/lingting/rehab-core/core/exercises"
	"github.com/lingting/rehab-core/core/reports"
)

const defaultRounds = 10

// exerciseKit holds what every exercise needs: a listener that pauses capture
// between answers and the outputs a round reports to.
type exerciseKit struct {
	listener *orchestration.Orchestrator
	opts     []exercises.Option
}

// newExerciseKit opens the devices and connections shared by the exercises.
// Transcripts are not broadcast so the question stays on screen.
func (a *app) newExerciseKit(res *resources, recordType reports.Type) (*exerciseKit, error) {
	if err := a.cfg.validateCapture(); err != nil {
		return nil, err
	}

	input, err := newAudioInput(a.cfg, res)
	if err != nil {
		return nil, err
	}
	speaker, err := newSpeaker(a.cfg, res)
	if err != nil {
		return nil, err
	}
	hub, err := newHub(a.cfg, res)
	if err != nil {
		return nil, err
	}
	log, err := newTrainingLog(a.cfg, recordType)
	if err != nil {
		return nil, err
	}

	return &exerciseKit{
		listener: orchestration.NewOrchestrator(
			orchestration.WithAudioInput(input),
			orchestration.WithRecognizer(newRecognizer(a.cfg, input.EncodingInfo())),
			orchestration.WithStopTimeout(a.cfg.ShutdownTimeout),
			orchestration.WithEventHandler(newEventLogger(slog.Default())),
		),
		opts: []exercises.Option{
			exercises.WithSpeaker(speaker),
			exercises.WithBroadcaster(hub),
			exercises.WithLog(log),
		},
	}, nil
}

func newQuizCmd(a *app) *cobra.Command {
	var rounds int

	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "Pick the spoken character out of four similar ones",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runQuiz(cmd.Context(), rounds)
		},
	}
	cmd.Flags().IntVar(&rounds, "rounds", defaultRounds, "Number of questions, 0 to run until interrupted")
	return cmd
}

func (a *app) runQuiz(ctx context.Context, rounds int) (err error) {
	choices, err := exercises.LoadChoices(a.cfg.CharsFile)
	if err != nil {
		return err
	}

	res := &resources{}
	defer func() { err = joinClose(err, res, a.cfg.ShutdownTimeout) }()

	kit, err := a.newExerciseKit(res, reports.TypeChoice)
	if err != nil {
		return err
	}
	quiz, err := exercises.NewQuiz(choices, kit.listener, kit.opts...)
	if err != nil {
		return err
	}

	return supervise(ctx, "quiz", a.cfg.RestartBackoff, a.cfg.MaxRestartDelay, func(ctx context.Context) error {
		return quiz.Run(ctx, rounds)
	})
}

func newDirectionCmd(a *app) *cobra.Command {
	var rounds int

	cmd := &cobra.Command{
		Use:   "direction",
		Short: "Name the direction a sound cue came from",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runDirection(cmd.Context(), rounds)
		},
	}
	cmd.Flags().IntVar(&rounds, "rounds", defaultRounds, "Number of recognized answers, 0 to run until interrupted")
	return cmd
}

func (a *app) runDirection(ctx context.Context, rounds int) (err error) {
	res := &resources{}
	defer func() { err = joinClose(err, res, a.cfg.ShutdownTimeout) }()

	kit, err := a.newExerciseKit(res, reports.TypeDirection)
	if err != nil {
		return err
	}

	player, err := portaudio.NewCuePlayer()
	if err != nil {
		return fmt.Errorf("%w: %w", orchestration.ErrDeviceFailure, err)
	}
	res.add(func(context.Context) error { player.Close(); return nil })

	direction := exercises.NewDirection(a.cfg.CueDir, player, kit.listener, kit.opts...)
	return supervise(ctx, "direction", a.cfg.RestartBackoff, a.cfg.MaxRestartDelay, func(ctx context.Context) error {
		return direction.Run(ctx, rounds)
	})
}
