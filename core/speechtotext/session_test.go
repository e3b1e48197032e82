package speechtotext

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

type recognizerStub struct {
	callbacks   Callbacks
	startErr    error
	openOnStart bool

	frames atomic.Int32
	stops  atomic.Int32
}

func (r *recognizerStub) Start(_ context.Context, callbacks Callbacks) error {
	if r.startErr != nil {
		return r.startErr
	}
	r.callbacks = callbacks
	if r.openOnStart {
		callbacks.OnOpen()
	}
	return nil
}

func (r *recognizerStub) SendAudioFrame([]byte) error {
	r.frames.Add(1)
	return nil
}

func (r *recognizerStub) Stop(context.Context) error {
	r.stops.Add(1)
	r.callbacks.OnComplete()
	r.callbacks.OnClose()
	return nil
}

type gateStub struct {
	busy  atomic.Bool
	calls atomic.Int32
}

func (g *gateStub) SetBusy() {
	g.busy.Store(true)
	g.calls.Add(1)
}

func TestSessionDropsFramesUntilOpen(t *testing.T) {
	recognizer := &recognizerStub{}
	session := NewSession(recognizer)

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}
	if got := session.State(); got != StateConnecting {
		t.Fatalf("expected connecting state, got %s", got)
	}

	if err := session.SendFrame(make([]byte, 3200)); !errors.Is(err, ErrNotStreaming) {
		t.Fatalf("expected ErrNotStreaming before open, got %v", err)
	}
	if got := session.Dropped(); got != 1 {
		t.Fatalf("expected one dropped frame, got %d", got)
	}
	if got := recognizer.frames.Load(); got != 0 {
		t.Fatalf("expected no frames forwarded before open, got %d", got)
	}

	recognizer.callbacks.OnOpen()
	if got := session.State(); got != StateStreaming {
		t.Fatalf("expected streaming state after open, got %s", got)
	}
	if err := session.SendFrame(make([]byte, 3200)); err != nil {
		t.Fatalf("expected frame to be forwarded, got %v", err)
	}
	if got := recognizer.frames.Load(); got != 1 {
		t.Fatalf("expected one forwarded frame, got %d", got)
	}
}

func TestSessionSetsGateBusyBeforeSentenceEnd(t *testing.T) {
	recognizer := &recognizerStub{openOnStart: true}
	gate := &gateStub{}
	events := []TranscriptEvent{}
	busyAtFinal := false

	session := NewSession(recognizer,
		WithGate(gate),
		WithTranscriptHandler(func(event TranscriptEvent) {
			if event.IsFinal {
				busyAtFinal = gate.busy.Load()
			}
			events = append(events, event)
		}),
	)
	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}

	recognizer.callbacks.OnEvent(Result{Text: "今天"})
	recognizer.callbacks.OnEvent(Result{Text: ""})
	recognizer.callbacks.OnEvent(Result{Text: "今天天气怎么样", IsSentenceEnd: true, RequestID: "req"})

	if len(events) != 2 {
		t.Fatalf("expected one event per non-empty result, got %d: %v", len(events), events)
	}
	if events[0].IsFinal {
		t.Fatalf("expected a partial event before the final one, got %v", events)
	}
	if !events[1].IsFinal || events[1].Text != "今天天气怎么样" || events[1].RequestID != "req" {
		t.Fatalf("unexpected final event %+v", events[1])
	}
	if !busyAtFinal {
		t.Fatalf("expected gate to be busy when the final event is emitted")
	}
	if got := gate.calls.Load(); got != 1 {
		t.Fatalf("expected gate set busy once, got %d", got)
	}
}

func TestSessionStopIsIdempotent(t *testing.T) {
	recognizer := &recognizerStub{openOnStart: true}
	session := NewSession(recognizer)
	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}

	for range 3 {
		if err := session.Stop(context.Background()); err != nil {
			t.Fatalf("expected stop to succeed, got %v", err)
		}
	}

	if got := recognizer.stops.Load(); got != 1 {
		t.Fatalf("expected recognizer stopped once, got %d", got)
	}
	if got := session.State(); got != StateClosed {
		t.Fatalf("expected closed state, got %s", got)
	}
	select {
	case <-session.Done():
	default:
		t.Fatalf("expected done channel to be closed")
	}
	if err := session.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected closed session to refuse restart, got %v", err)
	}
}

func TestSessionRemoteErrorClosesAndReports(t *testing.T) {
	recognizer := &recognizerStub{openOnStart: true}
	var reported error
	session := NewSession(recognizer, WithErrorHandler(func(err error) { reported = err }))
	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}

	remoteErr := errors.New("quota exceeded")
	recognizer.callbacks.OnError(remoteErr)

	var recognitionErr *RecognitionError
	if !errors.As(reported, &recognitionErr) {
		t.Fatalf("expected *RecognitionError, got %T", reported)
	}
	if !errors.Is(reported, remoteErr) {
		t.Fatalf("expected reported error to wrap the remote error")
	}
	if got := session.State(); got != StateClosed {
		t.Fatalf("expected closed state after remote error, got %s", got)
	}
	if err := session.SendFrame(make([]byte, 3200)); !errors.Is(err, ErrNotStreaming) {
		t.Fatalf("expected frames to be dropped after close, got %v", err)
	}
	if err := session.Stop(context.Background()); err != nil {
		t.Fatalf("expected stop after close to be a no-op, got %v", err)
	}
	if got := recognizer.stops.Load(); got != 0 {
		t.Fatalf("expected recognizer not stopped after it already failed, got %d", got)
	}
}

func TestSessionStartFailureCloses(t *testing.T) {
	recognizer := &recognizerStub{startErr: errors.New("dial failed")}
	session := NewSession(recognizer)

	if err := session.Start(context.Background()); err == nil {
		t.Fatalf("expected start to fail")
	}
	if got := session.State(); got != StateClosed {
		t.Fatalf("expected closed state, got %s", got)
	}
}
