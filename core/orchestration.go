package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/lingting/rehab-core/core/events"
	"github.com/lingting/rehab-core/core/llms"
	"github.com/lingting/rehab-core/core/reports"
	"github.com/lingting/rehab-core/core/speechtotext"
)

// ReplyPrefix tags assistant replies on the broadcast channel.
const ReplyPrefix = "AI:"

const defaultStopTimeout = 5 * time.Second

var (
	ErrAlreadyRunning = errors.New("orchestrator is already running")
	ErrNoAudioInput   = errors.New("no audio input configured")
	ErrNoRecognizer   = errors.New("no recognizer configured")

	errRecognitionClosed = errors.New("recognition closed by remote")
	errEmptyReply        = errors.New("generator returned an empty reply")
)

// SessionError ends a run because recognition stopped. It is recoverable,
// calling Run again starts a new recognition session.
type SessionError struct {
	Err error
}

func (e *SessionError) Error() string { return fmt.Sprintf("recognition session ended: %v", e.Err) }
func (e *SessionError) Unwrap() error { return e.Err }

// Orchestrator runs the half-duplex dialogue: it feeds the microphone to the
// recognizer, turns every finished sentence into one generate, broadcast and
// speak cycle, and keeps capture paused until that cycle is over.
type Orchestrator struct {
	gate         *TurnGate
	conversation *conversation

	audioInput  AudioInput
	recognizer  speechtotext.Recognizer
	generator   llms.Generator
	speaker     Speaker
	broadcaster Broadcaster
	trainingLog TrainingLog

	formatTranscript func(string) string
	eventHandler     EventHandler
	stopTimeout      time.Duration

	running atomic.Bool

	recognitionErrMu sync.Mutex
	recognitionErr   error

	turnCounter  metric.Int64Counter
	turnDuration metric.Float64Histogram
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		gate:             NewTurnGate(),
		conversation:     newConversation(DefaultSystemPrompt),
		formatTranscript: func(text string) string { return text },
		eventHandler:     noopEventHandler,
		stopTimeout:      defaultStopTimeout,
	}

	for _, opt := range opts {
		opt(o)
	}

	var err error
	if o.turnCounter, err = meter.Int64Counter("rehab.turns",
		metric.WithDescription("Completed and failed dialogue turns")); err != nil {
		logger.Warn("failed to create turn counter", "error", err)
	}
	if o.turnDuration, err = meter.Float64Histogram("rehab.turn.duration",
		metric.WithDescription("Time from sentence end to finished playback"),
		metric.WithUnit("s")); err != nil {
		logger.Warn("failed to create turn duration histogram", "error", err)
	}

	return o
}

// Gate exposes the turn gate shared with capture.
func (o *Orchestrator) Gate() *TurnGate { return o.gate }

// History returns a copy of the dialogue so far, system prompt first.
func (o *Orchestrator) History() []llms.Turn { return o.conversation.History() }

// Run captures and processes turns until ctx is done. It returns nil on
// cancellation, an error wrapping ErrDeviceFailure when the microphone fails,
// and a *SessionError when recognition ends; the latter may be retried.
func (o *Orchestrator) Run(ctx context.Context) (err error) {
	if o.audioInput == nil {
		return ErrNoAudioInput
	}
	if o.recognizer == nil {
		return ErrNoRecognizer
	}
	if !o.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer o.running.Store(false)

	ctx, span := tracer.Start(ctx, "run conversation")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	o.setRecognitionErr(nil)
	o.gate.SetCapturing()

	runtime := newConversationRuntime()
	defer runtime.end()

	sessionOpts := []speechtotext.SessionOption{
		speechtotext.WithTranscriptHandler(func(event speechtotext.TranscriptEvent) {
			o.onTranscript(runtime, event)
		}),
		speechtotext.WithErrorHandler(o.onRecognitionError),
	}
	if o.generator != nil {
		sessionOpts = append(sessionOpts, speechtotext.WithGate(o.gate))
	}
	session := speechtotext.NewSession(o.recognizer, sessionOpts...)
	if err := session.Start(ctx); err != nil {
		return &SessionError{Err: err}
	}
	defer o.stopSession(ctx, session)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		process := func(ctx context.Context, sentence queuedSentence) {
			o.processTurn(ctx, runtime, sentence)
		}
		return panicSafeNamedWorker("turn", runtime.run(process))(groupCtx)
	})
	group.Go(func() error {
		loop := newCaptureLoop(o.audioInput, o.gate, session)
		return panicSafeNamedWorker("capture", loop.Run)(groupCtx)
	})
	group.Go(func() error {
		select {
		case <-groupCtx.Done():
			return nil
		case <-session.Done():
			if ctx.Err() != nil {
				return nil
			}
			return &SessionError{Err: o.lastRecognitionErr()}
		}
	})

	return group.Wait()
}

// ListenOnce records until the recognizer reports one finished sentence and
// returns its text. Capture stays paused afterwards until the next call, so
// the caller may speak without being recorded.
func (o *Orchestrator) ListenOnce(ctx context.Context) (text string, err error) {
	if o.audioInput == nil {
		return "", ErrNoAudioInput
	}
	if o.recognizer == nil {
		return "", ErrNoRecognizer
	}
	if !o.running.CompareAndSwap(false, true) {
		return "", ErrAlreadyRunning
	}
	defer o.running.Store(false)

	ctx, span := tracer.Start(ctx, "listen once")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	o.setRecognitionErr(nil)
	o.gate.SetCapturing()

	sentences := make(chan string, 1)
	session := speechtotext.NewSession(o.recognizer,
		speechtotext.WithGate(o.gate),
		speechtotext.WithTranscriptHandler(func(event speechtotext.TranscriptEvent) {
			o.publishTranscript(event)
			if event.IsFinal && strings.TrimSpace(event.Text) != "" {
				select {
				case sentences <- strings.TrimSpace(event.Text):
				default:
				}
			}
		}),
		speechtotext.WithErrorHandler(o.onRecognitionError),
	)
	if err := session.Start(ctx); err != nil {
		return "", &SessionError{Err: err}
	}
	defer o.stopSession(ctx, session)

	captureCtx, cancelCapture := context.WithCancel(ctx)
	captureDone := make(chan struct{})
	var captureErr error
	go func() {
		defer close(captureDone)
		captureErr = panicSafeNamedWorker("capture", newCaptureLoop(o.audioInput, o.gate, session).Run)(captureCtx)
	}()
	defer func() {
		cancelCapture()
		<-captureDone
	}()

	select {
	case text := <-sentences:
		return text, nil
	case <-captureDone:
		if captureErr == nil {
			return "", ctx.Err()
		}
		return "", captureErr
	case <-session.Done():
		select {
		case text := <-sentences:
			return text, nil
		default:
		}
		return "", &SessionError{Err: o.lastRecognitionErr()}
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (o *Orchestrator) onTranscript(runtime *conversationRuntime, event speechtotext.TranscriptEvent) {
	o.publishTranscript(event)
	if !event.IsFinal || o.generator == nil {
		return
	}

	text := strings.TrimSpace(event.Text)
	if text == "" {
		return
	}
	if !runtime.enqueue(queuedSentence{transcript: text, requestID: event.RequestID, queuedAt: time.Now()}) {
		logger.Warn("dropping sentence, conversation ended", "transcript", text)
	}
}

func (o *Orchestrator) publishTranscript(event speechtotext.TranscriptEvent) {
	if event.IsFinal {
		o.emit(events.NewUserSentenceEnded(event.Text, event.RequestID))
	} else {
		o.emit(events.NewUserTranscriptPartial(event.Text))
	}
	o.broadcast(o.formatTranscript(event.Text))
}

// processTurn runs one turn. Failures are recorded and logged but never stop
// the queue, the next sentence gets a fresh turn. The gate is released only
// when no other sentence is waiting.
func (o *Orchestrator) processTurn(ctx context.Context, runtime *conversationRuntime, sentence queuedSentence) {
	ctx, span := tracer.Start(ctx, "process turn", trace.WithAttributes(
		attribute.String("turn.request_id", sentence.requestID),
		attribute.Int("turn.history_length", o.conversation.Len()),
	))
	defer span.End()

	o.gate.SetBusy()
	outcome := "completed"
	defer func() {
		o.recordTurn(ctx, sentence.queuedAt, outcome)
		if runtime.waiting() == 0 {
			o.gate.SetCapturing()
		}
	}()

	o.emit(events.NewTurnStarted(sentence.transcript))

	history, rollback := o.conversation.appendUser(sentence.transcript)
	reply, err := o.generator.Generate(ctx, history)
	if err == nil && strings.TrimSpace(reply.Content) == "" {
		err = errEmptyReply
	}
	if err != nil {
		rollback()
		outcome = "failed"
		err = fmt.Errorf("failed to generate reply: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("turn aborted", "transcript", sentence.transcript, "error", err)
		o.emit(events.NewTurnFailed(sentence.transcript, err))
		return
	}

	replyText := strings.TrimSpace(reply.Content)
	o.conversation.appendAssistant(replyText)
	o.emit(events.NewAssistantReplyGenerated(replyText))
	o.broadcast(ReplyPrefix + replyText)

	var speakErr error
	if o.speaker != nil {
		if err := o.speaker.SendText(ctx, replyText); err != nil {
			outcome = "unspoken"
			speakErr = fmt.Errorf("failed to speak reply: %w", err)
			span.RecordError(speakErr)
			span.SetStatus(codes.Error, speakErr.Error())
			logger.Error("reply was not spoken", "error", speakErr)
		}
	}

	if o.trainingLog != nil {
		if err := o.trainingLog.Append(ctx, reports.Detail{
			UserAnswer:    sentence.transcript,
			CorrectAnswer: replyText,
			Result:        reports.ResultNone,
		}); err != nil {
			logger.Warn("failed to record dialogue turn", "error", err)
		}
	}

	if speakErr != nil {
		o.emit(events.NewTurnFailed(sentence.transcript, speakErr))
		return
	}
	o.emit(events.NewTurnCompleted(sentence.transcript, replyText))
}

func (o *Orchestrator) broadcast(message string) {
	if o.broadcaster == nil || message == "" {
		return
	}
	o.broadcaster.Broadcast(message)
}

func (o *Orchestrator) onRecognitionError(err error) {
	o.setRecognitionErr(err)
	logger.Error("recognition failed", "error", err)
	o.emit(events.NewRecognitionFailed(err))
}

func (o *Orchestrator) setRecognitionErr(err error) {
	o.recognitionErrMu.Lock()
	defer o.recognitionErrMu.Unlock()
	o.recognitionErr = err
}

func (o *Orchestrator) lastRecognitionErr() error {
	o.recognitionErrMu.Lock()
	defer o.recognitionErrMu.Unlock()
	if o.recognitionErr == nil {
		return errRecognitionClosed
	}
	return o.recognitionErr
}

func (o *Orchestrator) stopSession(ctx context.Context, session *speechtotext.Session) {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.stopTimeout)
	defer cancel()
	if err := session.Stop(stopCtx); err != nil {
		logger.Warn("failed to stop recognition", "error", err)
	}
}

func (o *Orchestrator) recordTurn(ctx context.Context, queuedAt time.Time, outcome string) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	if o.turnCounter != nil {
		o.turnCounter.Add(ctx, 1, attrs)
	}
	if o.turnDuration != nil {
		o.turnDuration.Record(ctx, time.Since(queuedAt).Seconds(), attrs)
	}
}
