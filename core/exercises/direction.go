package exercises

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/lingting/rehab-core/core/reports"
)

// DirectionNames are indexed left to right.
var DirectionNames = [5]string{"左", "左前", "前", "右前", "右"}

const MessageUnrecognized = "未能识别您的回答，请重试。"

var ErrCueNotFound = errors.New("direction cue not found")

type directionAlias struct {
	text  string
	index int
}

// Compound directions come before the single characters they contain.
var directionAliases = []directionAlias{
	{"左前", 1}, {"左前方", 1}, {"1", 1}, {"一", 1},
	{"右前", 3}, {"右前方", 3}, {"3", 3}, {"三", 3},
	{"左", 0}, {"左边", 0}, {"0", 0}, {"零", 0},
	{"前", 2}, {"前面", 2}, {"正前", 2}, {"前方", 2}, {"2", 2}, {"二", 2}, {"两", 2},
	{"右", 4}, {"右边", 4}, {"4", 4}, {"四", 4},
}

// DirectionIndex maps a spoken answer to a direction index.
func DirectionIndex(text string) (int, bool) {
	text = strings.ReplaceAll(strings.TrimSpace(text), " ", "")
	if text == "" {
		return 0, false
	}
	for _, alias := range directionAliases {
		if strings.Contains(text, alias.text) {
			return alias.index, true
		}
	}
	return 0, false
}

// Direction plays a sound from one of five directions and asks where it came
// from.
type Direction struct {
	cueDir   string
	player   CuePlayer
	listener Listener
	options  options
}

func NewDirection(cueDir string, player CuePlayer, listener Listener, opts ...Option) *Direction {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Direction{cueDir: cueDir, player: player, listener: listener, options: options}
}

// CuePath returns k<i>.wav, or v<i>.wav when the former is missing.
func (d *Direction) CuePath(index int) (string, error) {
	for _, prefix := range []string{"k", "v"} {
		path := filepath.Join(d.cueDir, fmt.Sprintf("%s%d.wav", prefix, index))
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s/k%d.wav or v%d.wav", ErrCueNotFound, d.cueDir, index, index)
}

func (d *Direction) Next() int {
	return d.options.rand.IntN(len(DirectionNames))
}

// Run plays rounds until ctx is done or a round fails. Rounds with an
// unrecognized answer do not count.
func (d *Direction) Run(ctx context.Context, rounds int) error {
	return runRounds(ctx, rounds, func(ctx context.Context) error {
		for {
			_, recognized, err := d.Round(ctx, d.Next())
			if err != nil || recognized {
				return err
			}
		}
	})
}

// Round plays the cue for correct and grades the answer. recognized is false
// when the answer names no direction; nothing is recorded then.
func (d *Direction) Round(ctx context.Context, correct int) (detail reports.Detail, recognized bool, err error) {
	ctx, span := tracer.Start(ctx, "direction round")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("direction.played", DirectionNames[correct]))

	path, err := d.CuePath(correct)
	if err != nil {
		return reports.Detail{}, false, err
	}
	if err := d.player.Play(ctx, path); err != nil {
		return reports.Detail{}, false, fmt.Errorf("failed to play cue: %w", err)
	}

	userAnswer, err := d.listener.ListenOnce(ctx)
	if err != nil {
		return reports.Detail{}, false, fmt.Errorf("failed to listen for answer: %w", err)
	}

	answered, ok := DirectionIndex(userAnswer)
	if !ok {
		logger.Info("direction answer not recognized", "user_answer", userAnswer)
		d.options.broadcast(MessageUnrecognized)
		return reports.Detail{}, false, nil
	}

	isCorrect := answered == correct
	span.SetAttributes(attribute.Bool("direction.correct", isCorrect))
	logger.Info("direction answered", "played", DirectionNames[correct], "answered", DirectionNames[answered], "correct", isCorrect)

	message := MessageCorrect
	if !isCorrect {
		message = fmt.Sprintf("%s，正确答案是：%s", MessageIncorrect, DirectionNames[correct])
	}
	d.options.broadcast(message)

	detail = reports.Detail{
		UserAnswer:    userAnswer,
		CorrectAnswer: DirectionNames[correct],
		Result:        reports.Grade(isCorrect),
	}
	d.options.record(ctx, detail)

	if err := d.options.speak(ctx, message); err != nil {
		return detail, true, fmt.Errorf("failed to speak result: %w", err)
	}
	return detail, true, nil
}
