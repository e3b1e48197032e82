package exercises

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/lingting/rehab-core/core/reports"
)

const (
	quizPromptPrefix = "请选出以下汉字:"
	MessageCorrect   = "回答正确"
	MessageIncorrect = "回答错误"
)

var choiceLetters = [4]string{"A", "B", "C", "D"}

var ErrNoChoices = errors.New("no character choices loaded")

// Choice is one entry of the character table: four similar sounding
// characters.
type Choice struct {
	Chars [4]string `json:"chars"`
}

// LoadChoices reads a JSON list of choices.
func LoadChoices(path string) ([]Choice, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read character table: %w", err)
	}

	var choices []Choice
	if err := json.Unmarshal(data, &choices); err != nil {
		return nil, fmt.Errorf("failed to decode character table: %w", err)
	}
	if len(choices) == 0 {
		return nil, ErrNoChoices
	}
	return choices, nil
}

type Question struct {
	Choice Choice
	Answer int
}

// Prompt renders the choices as "A.x B.y C.z D.w".
func (q Question) Prompt() string {
	parts := make([]string, len(choiceLetters))
	for i, letter := range choiceLetters {
		parts[i] = letter + "." + q.Choice.Chars[i]
	}
	return strings.Join(parts, " ")
}

func (q Question) AnswerLetter() string { return choiceLetters[q.Answer] }
func (q Question) AnswerChar() string   { return q.Choice.Chars[q.Answer] }

// Grade accepts any answer that mentions the right letter.
func (q Question) Grade(userAnswer string) bool {
	return strings.Contains(strings.ToUpper(userAnswer), q.AnswerLetter())
}

// Quiz speaks one character and asks which of four displayed choices it was.
type Quiz struct {
	choices  []Choice
	listener Listener
	options  options
}

func NewQuiz(choices []Choice, listener Listener, opts ...Option) (*Quiz, error) {
	if len(choices) == 0 {
		return nil, ErrNoChoices
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Quiz{choices: choices, listener: listener, options: options}, nil
}

func (q *Quiz) Next() Question {
	return Question{
		Choice: q.choices[q.options.rand.IntN(len(q.choices))],
		Answer: q.options.rand.IntN(len(choiceLetters)),
	}
}

// Run plays rounds until ctx is done or a round fails.
func (q *Quiz) Run(ctx context.Context, rounds int) error {
	return runRounds(ctx, rounds, func(ctx context.Context) error {
		_, err := q.Round(ctx, q.Next())
		return err
	})
}

func (q *Quiz) Round(ctx context.Context, question Question) (detail reports.Detail, err error) {
	ctx, span := tracer.Start(ctx, "quiz round")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	prompt := question.Prompt()
	q.options.broadcast(prompt)
	if err := q.options.speak(ctx, quizPromptPrefix+question.AnswerChar()); err != nil {
		return reports.Detail{}, fmt.Errorf("failed to speak question: %w", err)
	}

	userAnswer, err := q.listener.ListenOnce(ctx)
	if err != nil {
		return reports.Detail{}, fmt.Errorf("failed to listen for answer: %w", err)
	}

	correct := question.Grade(userAnswer)
	span.SetAttributes(attribute.Bool("quiz.correct", correct))
	logger.Info("quiz answered", "prompt", prompt, "answer", question.AnswerLetter(), "user_answer", userAnswer, "correct", correct)

	message := MessageIncorrect
	if correct {
		message = MessageCorrect
	}
	q.options.broadcast(message)

	detail = reports.Detail{
		Question:      prompt,
		UserAnswer:    userAnswer,
		CorrectAnswer: question.AnswerLetter(),
		Result:        reports.Grade(correct),
	}
	q.options.record(ctx, detail)

	if err := q.options.speak(ctx, message); err != nil {
		return detail, fmt.Errorf("failed to speak result: %w", err)
	}
	return detail, nil
}
