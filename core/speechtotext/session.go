package speechtotext

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/codes"
)

var (
	ErrNotStreaming   = errors.New("recognition session is not streaming")
	ErrAlreadyStarted = errors.New("recognition session already started")
)

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateStopping
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateStopping:
		return "stopping"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session drives one streaming recognition from start to close. A closed
// session cannot be restarted, create a new one instead.
type Session struct {
	recognizer Recognizer
	options    SessionOptions

	mu    sync.Mutex
	state State

	dropped   atomic.Int64
	done      chan struct{}
	closeOnce sync.Once
}

func NewSession(recognizer Recognizer, opts ...SessionOption) *Session {
	options := SessionOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	return &Session{
		recognizer: recognizer,
		options:    options,
		state:      StateIdle,
		done:       make(chan struct{}),
	}
}

func (s *Session) Start(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "start recognition")
	defer span.End()

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = StateConnecting
	s.mu.Unlock()

	if err := s.recognizer.Start(ctx, Callbacks{
		OnOpen:     s.onOpen,
		OnClose:    s.onClose,
		OnComplete: s.onComplete,
		OnError:    s.onError,
		OnEvent:    s.onEvent,
	}); err != nil {
		s.close()
		err = fmt.Errorf("failed to start recognizer: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

// SendFrame forwards one audio frame. Frames sent while the session is not
// streaming are dropped and ErrNotStreaming is returned.
func (s *Session) SendFrame(frame []byte) error {
	if s.State() != StateStreaming {
		s.dropped.Add(1)
		return ErrNotStreaming
	}

	if err := s.recognizer.SendAudioFrame(frame); err != nil {
		return fmt.Errorf("failed to send audio frame: %w", err)
	}
	return nil
}

// Stop ends the recognition and waits for the recognizer to shut down. It is
// safe to call more than once.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateStopping, StateClosed:
		s.mu.Unlock()
		return nil
	case StateIdle:
		s.mu.Unlock()
		s.close()
		return nil
	}
	s.state = StateStopping
	s.mu.Unlock()

	defer s.close()
	if err := s.recognizer.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop recognizer: %w", err)
	}
	return nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the session reaches StateClosed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Dropped reports how many frames were discarded because the session was not
// streaming yet (or any more).
func (s *Session) Dropped() int64 {
	return s.dropped.Load()
}

func (s *Session) close() {
	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()

	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Session) onOpen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateConnecting {
		s.state = StateStreaming
		logger.Info("recognition stream open")
	}
}

func (s *Session) onClose() {
	logger.Debug("recognition stream closed")
	s.close()
}

func (s *Session) onComplete() {
	logger.Debug("recognition completed")
	s.close()
}

func (s *Session) onError(err error) {
	var recognitionErr *RecognitionError
	if !errors.As(err, &recognitionErr) {
		recognitionErr = &RecognitionError{Err: err}
	}
	logger.Error("recognition failed", "error", recognitionErr)

	// Report before closing so Done observers can read the cause.
	if s.options.ErrorHandler != nil {
		s.options.ErrorHandler(recognitionErr)
	}
	s.close()
}

func (s *Session) onEvent(result Result) {
	if result.Text == "" {
		return
	}

	// One event per result: a sentence end is delivered only as the final.
	if !result.IsSentenceEnd {
		s.emit(TranscriptEvent{Text: result.Text, RequestID: result.RequestID})
		return
	}

	if s.options.Gate != nil {
		s.options.Gate.SetBusy()
	}
	s.emit(TranscriptEvent{Text: result.Text, IsFinal: true, RequestID: result.RequestID})
}

func (s *Session) emit(event TranscriptEvent) {
	if s.options.TranscriptHandler != nil {
		s.options.TranscriptHandler(event)
	}
}
