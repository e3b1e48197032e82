package texttospeech

import (
	"context"
	"sync"
)

// Speaker keeps a Session connected across requests and opens a new one when
// the remote end has closed the previous session.
type Speaker struct {
	newSynthesizer func() Synthesizer
	player         Player
	opts           []SessionOption

	mu      sync.Mutex
	session *Session
}

func NewSpeaker(newSynthesizer func() Synthesizer, player Player, opts ...SessionOption) *Speaker {
	return &Speaker{newSynthesizer: newSynthesizer, player: player, opts: opts}
}

func (s *Speaker) SendText(ctx context.Context, text string) error {
	session, err := s.currentSession(ctx)
	if err != nil {
		return err
	}
	return session.SendText(ctx, text)
}

func (s *Speaker) currentSession(ctx context.Context) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil && s.session.State() != StateClosed {
		return s.session, nil
	}
	if s.session != nil {
		logger.Info("synthesis session closed, reconnecting")
	}

	session := NewSession(s.newSynthesizer(), s.player, s.opts...)
	if err := session.Connect(ctx); err != nil {
		return nil, err
	}
	s.session = session
	return session, nil
}

func (s *Speaker) Close(ctx context.Context) error {
	s.mu.Lock()
	session := s.session
	s.session = nil
	s.mu.Unlock()

	if session == nil {
		return nil
	}
	return session.Close(ctx)
}
