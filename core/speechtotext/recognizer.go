package speechtotext

import (
	"context"
	"fmt"
)

// Result is a single recognition result delivered by a Recognizer.
type Result struct {
	Text          string
	IsSentenceEnd bool
	RequestID     string
}

// Callbacks are invoked by a Recognizer from a single delivery goroutine, in
// the order the remote service produced them.
type Callbacks struct {
	OnOpen     func()
	OnClose    func()
	OnComplete func()
	OnError    func(err error)
	OnEvent    func(result Result)
}

// WithDefaults replaces unset callbacks with no-ops.
func (c Callbacks) WithDefaults() Callbacks {
	if c.OnOpen == nil {
		c.OnOpen = func() {}
	}
	if c.OnClose == nil {
		c.OnClose = func() {}
	}
	if c.OnComplete == nil {
		c.OnComplete = func() {}
	}
	if c.OnError == nil {
		c.OnError = func(error) {}
	}
	if c.OnEvent == nil {
		c.OnEvent = func(Result) {}
	}
	return c
}

// Recognizer is a duplex streaming speech recognizer.
type Recognizer interface {
	Start(ctx context.Context, callbacks Callbacks) error
	SendAudioFrame(frame []byte) error
	Stop(ctx context.Context) error
}

// TranscriptEvent is emitted by a Session for every recognized text. IsFinal
// marks the end of a sentence.
type TranscriptEvent struct {
	Text      string
	IsFinal   bool
	RequestID string
}

// RecognitionError reports that the remote recognizer failed. The session is
// closed when it is emitted, but the failure is recoverable by starting a new
// session.
type RecognitionError struct {
	RequestID string
	Err       error
}

func (e *RecognitionError) Error() string {
	if e.RequestID == "" {
		return fmt.Sprintf("recognition failed: %v", e.Err)
	}
	return fmt.Sprintf("recognition %s failed: %v", e.RequestID, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }
