package texttospeech

import (
	"context"
	"encoding/json"
)

const (
	EventSessionCreated  = "session.created"
	EventAudioDelta      = "response.audio.delta"
	EventResponseDone    = "response.done"
	EventSessionFinished = "session.finished"
	EventError           = "error"
)

// Envelope is a single server event. Raw holds the undecoded message for
// event types the session does not interpret.
type Envelope struct {
	Type     string          `json:"type"`
	EventID  string          `json:"event_id,omitempty"`
	Delta    string          `json:"delta,omitempty"`
	Session  *EnvelopeRef    `json:"session,omitempty"`
	Response *EnvelopeRef    `json:"response,omitempty"`
	Error    *EnvelopeError  `json:"error,omitempty"`
	Raw      json.RawMessage `json:"-"`
}

type EnvelopeRef struct {
	ID string `json:"id"`
}

type EnvelopeError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *EnvelopeError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

type SessionConfig struct {
	Voice      string
	Format     string
	SampleRate int
	Mode       string
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Voice:      "Cherry",
		Format:     "pcm",
		SampleRate: 24000,
		Mode:       "commit",
	}
}

// Callbacks are invoked by a Synthesizer from its read goroutine in the
// order events arrive.
type Callbacks struct {
	OnOpen  func()
	OnClose func(code int, msg string)
	OnEvent func(envelope Envelope)
}

// WithDefaults replaces unset callbacks with no-ops.
func (c Callbacks) WithDefaults() Callbacks {
	if c.OnOpen == nil {
		c.OnOpen = func() {}
	}
	if c.OnClose == nil {
		c.OnClose = func(int, string) {}
	}
	if c.OnEvent == nil {
		c.OnEvent = func(Envelope) {}
	}
	return c
}

// Synthesizer is a duplex streaming speech synthesizer.
type Synthesizer interface {
	Connect(ctx context.Context, callbacks Callbacks) error
	UpdateSession(config SessionConfig) error
	AppendText(text string) error
	Commit() error
	Finish() error
	Close() error
}

// Player receives synthesized audio in arrival order.
type Player interface {
	SendAudio(audio []byte) error
	// AwaitMark blocks until everything sent so far has been played.
	AwaitMark(ctx context.Context) error
}
