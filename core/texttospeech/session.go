package texttospeech

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultRequestTimeout = 60 * time.Second

var (
	ErrSynthesisTimeout = errors.New("synthesis request timed out")
	ErrNotConnected     = errors.New("synthesis session not connected")
	ErrSessionClosed    = errors.New("synthesis session closed")
)

type State int

const (
	StateIdle State = iota
	StateConnected
	StateSpeaking
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnected:
		return "connected"
	case StateSpeaking:
		return "speaking"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type SessionOption func(*Session)

func WithSessionConfig(config SessionConfig) SessionOption {
	return func(s *Session) {
		s.config = config
	}
}

// WithRequestTimeout bounds how long SendText waits for the synthesizer to
// finish a request, playback drain included.
func WithRequestTimeout(timeout time.Duration) SessionOption {
	return func(s *Session) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// Session speaks one text request at a time through a Synthesizer and blocks
// until the audio has been played.
type Session struct {
	synthesizer Synthesizer
	player      Player
	config      SessionConfig
	timeout     time.Duration
	signal      *CompletionSignal

	mu        sync.Mutex
	state     State
	requestMu sync.Mutex
	lastErr   error
	finished  chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func NewSession(synthesizer Synthesizer, player Player, opts ...SessionOption) *Session {
	s := &Session{
		synthesizer: synthesizer,
		player:      player,
		config:      DefaultSessionConfig(),
		timeout:     defaultRequestTimeout,
		signal:      NewCompletionSignal(),
		state:       StateIdle,
		finished:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return fmt.Errorf("cannot connect in state %s", s.state)
	}
	s.mu.Unlock()

	if err := s.synthesizer.Connect(ctx, Callbacks{
		OnOpen:  func() { logger.Debug("synthesis connection opened") },
		OnClose: s.onClose,
		OnEvent: s.onEvent,
	}); err != nil {
		return fmt.Errorf("failed to connect synthesizer: %w", err)
	}

	if err := s.synthesizer.UpdateSession(s.config); err != nil {
		_ = s.synthesizer.Close()
		return fmt.Errorf("failed to configure synthesis session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateIdle {
		s.state = StateConnected
	}
	return nil
}

// SendText speaks text and blocks until the synthesizer reports the response
// done and the player has drained. The completion signal is re-armed before
// returning, whatever the outcome. A request that times out or is cancelled
// closes the session.
func (s *Session) SendText(ctx context.Context, text string) (err error) {
	s.requestMu.Lock()
	defer s.requestMu.Unlock()

	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()
	span.SetAttributes(attribute.Int("text.length", len([]rune(text))))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	s.mu.Lock()
	if s.state != StateConnected {
		state := s.state
		s.mu.Unlock()
		if state == StateClosed {
			return ErrSessionClosed
		}
		return ErrNotConnected
	}
	s.state = StateSpeaking
	s.lastErr = nil
	s.mu.Unlock()

	defer func() {
		s.signal.Reset()
		s.mu.Lock()
		if s.state == StateSpeaking {
			s.state = StateConnected
		}
		s.mu.Unlock()
	}()

	if err := s.synthesizer.AppendText(text); err != nil {
		return fmt.Errorf("failed to append text: %w", err)
	}
	if err := s.synthesizer.Commit(); err != nil {
		return fmt.Errorf("failed to commit text: %w", err)
	}

	requestCtx, cancel := context.WithTimeoutCause(ctx, s.timeout, ErrSynthesisTimeout)
	defer cancel()

	if err := s.signal.Wait(requestCtx); err != nil {
		s.abandon()
		return fmt.Errorf("failed waiting for synthesis: %w", context.Cause(requestCtx))
	}

	s.mu.Lock()
	lastErr := s.lastErr
	s.mu.Unlock()
	if lastErr != nil {
		return fmt.Errorf("synthesis failed: %w", lastErr)
	}

	if s.player != nil {
		if err := s.player.AwaitMark(requestCtx); err != nil {
			s.abandon()
			return fmt.Errorf("failed waiting for playback: %w", context.Cause(requestCtx))
		}
	}
	return nil
}

// abandon closes a session whose request was given up on. The remote end may
// still deliver audio and completion for it, which must not be credited to a
// later request.
func (s *Session) abandon() {
	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()

	logger.Warn("abandoning synthesis session after an unfinished request")
	s.markFinished()
	if err := s.Close(context.Background()); err != nil {
		logger.Warn("failed to close abandoned synthesis session", "error", err)
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close finishes the remote session and closes the connection. It is safe to
// call with no request outstanding and more than once.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		wasOpen := s.state == StateConnected || s.state == StateSpeaking
		s.mu.Unlock()

		if wasOpen {
			if err := s.synthesizer.Finish(); err != nil {
				logger.Warn("failed to finish synthesis session", "error", err)
			} else {
				select {
				case <-s.finished:
				case <-ctx.Done():
				}
			}
		}

		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()

		if err := s.synthesizer.Close(); err != nil {
			s.closeErr = fmt.Errorf("failed to close synthesizer: %w", err)
		}
	})
	return s.closeErr
}

func (s *Session) onClose(code int, msg string) {
	logger.Info("synthesis connection closed", "code", code, "message", msg)

	s.mu.Lock()
	speaking := s.state == StateSpeaking
	s.state = StateClosed
	if speaking {
		s.lastErr = ErrSessionClosed
	}
	s.mu.Unlock()

	s.markFinished()
	if speaking {
		s.complete()
	}
}

func (s *Session) onEvent(envelope Envelope) {
	switch envelope.Type {
	case EventSessionCreated:
		if envelope.Session != nil {
			logger.Info("synthesis session started", "session_id", envelope.Session.ID)
		}

	case EventAudioDelta:
		if !s.isSpeaking() || s.player == nil {
			return
		}
		chunk, err := base64.StdEncoding.DecodeString(envelope.Delta)
		if err != nil {
			logger.Warn("malformed audio delta", "event_id", envelope.EventID, "error", err)
			return
		}
		if err := s.player.SendAudio(chunk); err != nil {
			logger.Warn("failed to play audio delta", "error", err)
		}

	case EventResponseDone:
		if s.isSpeaking() {
			s.complete()
		}

	case EventSessionFinished:
		s.markFinished()
		if s.isSpeaking() {
			s.complete()
		}

	case EventError:
		err := error(&EnvelopeError{Message: "unknown synthesis error"})
		if envelope.Error != nil {
			err = envelope.Error
		}
		logger.Error("synthesizer reported an error", "error", err)

		s.mu.Lock()
		speaking := s.state == StateSpeaking
		if speaking {
			s.lastErr = err
		}
		s.mu.Unlock()
		if speaking {
			s.complete()
		}

	default:
		logger.Debug("ignoring synthesis event", "type", envelope.Type)
	}
}

func (s *Session) isSpeaking() bool {
	return s.State() == StateSpeaking
}

func (s *Session) complete() {
	if err := s.signal.Fire(); err != nil {
		logger.Warn("duplicate completion", "error", err)
	}
}

func (s *Session) markFinished() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.finished:
	default:
		close(s.finished)
	}
}
