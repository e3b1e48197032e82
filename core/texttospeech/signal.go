package texttospeech

import (
	"context"
	"errors"
	"sync"
)

var ErrSignalAlreadyFired = errors.New("completion signal already fired")

// CompletionSignal is a one-shot event that must be reset before it can fire
// again.
type CompletionSignal struct {
	mu    sync.Mutex
	fired bool
	ch    chan struct{}
}

func NewCompletionSignal() *CompletionSignal {
	return &CompletionSignal{ch: make(chan struct{})}
}

func (s *CompletionSignal) Fire() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fired {
		return ErrSignalAlreadyFired
	}
	s.fired = true
	close(s.ch)
	return nil
}

func (s *CompletionSignal) Fired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fired
}

// Wait blocks until the signal fires or ctx is done.
func (s *CompletionSignal) Wait(ctx context.Context) error {
	s.mu.Lock()
	ch := s.ch
	s.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset re-arms the signal. Waiters already blocked on the previous round
// stay blocked until their context ends.
func (s *CompletionSignal) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.fired {
		return
	}
	s.fired = false
	s.ch = make(chan struct{})
}
