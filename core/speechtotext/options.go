package speechtotext

// Gate is set busy right before a sentence end is emitted so that capture
// stops forwarding audio for the rest of the turn.
type Gate interface {
	SetBusy()
}

type SessionOptions struct {
	Gate              Gate
	TranscriptHandler func(event TranscriptEvent)
	ErrorHandler      func(err error)
}

type SessionOption func(*SessionOptions)

func WithGate(gate Gate) SessionOption {
	return func(o *SessionOptions) {
		o.Gate = gate
	}
}

// WithTranscriptHandler sets the handler that receives every transcript
// event. It is called on the recognizer's delivery goroutine.
func WithTranscriptHandler(handler func(event TranscriptEvent)) SessionOption {
	return func(o *SessionOptions) {
		o.TranscriptHandler = handler
	}
}

// WithErrorHandler sets the handler that receives a *RecognitionError when the
// remote recognizer fails.
func WithErrorHandler(handler func(err error)) SessionOption {
	return func(o *SessionOptions) {
		o.ErrorHandler = handler
	}
}
