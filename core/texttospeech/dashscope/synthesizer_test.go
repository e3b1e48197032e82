package dashscope

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lingting/rehab-core/core/texttospeech"
)

type recordingPlayer struct {
	mu    sync.Mutex
	audio []byte
}

func (p *recordingPlayer) SendAudio(audio []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.audio = append(p.audio, audio...)
	return nil
}

func (p *recordingPlayer) AwaitMark(context.Context) error { return nil }

func (p *recordingPlayer) played() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.audio)
}

func TestSynthesizerDrivesSession(t *testing.T) {
	received := make(chan clientEvent, 8)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("model"); got != defaultModel {
			t.Errorf("unexpected model %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("failed to upgrade: %v", err)
			return
		}
		defer conn.Close()

		_ = conn.WriteJSON(map[string]any{"type": "session.created", "session": map[string]any{"id": "sess_1"}})
		for {
			var event clientEvent
			if err := conn.ReadJSON(&event); err != nil {
				return
			}
			received <- event

			switch event.Type {
			case "input_text_buffer.commit":
				for _, chunk := range []string{"he", "llo"} {
					_ = conn.WriteJSON(map[string]any{
						"type":  "response.audio.delta",
						"delta": base64.StdEncoding.EncodeToString([]byte(chunk)),
					})
				}
				_ = conn.WriteJSON(map[string]any{"type": "response.done", "response": map[string]any{"id": "resp_1"}})
			case "session.finish":
				_ = conn.WriteJSON(map[string]any{"type": "session.finished"})
			}
		}
	}))
	defer server.Close()

	player := &recordingPlayer{}
	synthesizer := NewSynthesizer("test-key", WithURL("ws"+strings.TrimPrefix(server.URL, "http")))
	session := texttospeech.NewSession(synthesizer, player, texttospeech.WithRequestTimeout(2*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := session.Connect(ctx); err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}
	if err := session.SendText(ctx, "你好"); err != nil {
		t.Fatalf("expected send text to succeed, got %v", err)
	}
	if got := player.played(); got != "hello" {
		t.Fatalf("expected decoded audio %q, got %q", "hello", got)
	}
	if err := session.Close(ctx); err != nil {
		t.Fatalf("expected close to succeed, got %v", err)
	}

	expected := []string{"session.update", "input_text_buffer.append", "input_text_buffer.commit", "session.finish"}
	for _, eventType := range expected {
		select {
		case event := <-received:
			if event.Type != eventType {
				t.Fatalf("expected %s, got %s", eventType, event.Type)
			}
			if !strings.HasPrefix(event.EventID, "event_") {
				t.Fatalf("expected event id, got %q", event.EventID)
			}
			switch event.Type {
			case "session.update":
				if event.Session == nil || event.Session.Voice != "Cherry" || event.Session.Mode != "commit" {
					t.Fatalf("unexpected session update %+v", event.Session)
				}
			case "input_text_buffer.append":
				if event.Text != "你好" {
					t.Fatalf("unexpected appended text %q", event.Text)
				}
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", eventType)
		}
	}
}

func TestSynthesizerRequiresConnection(t *testing.T) {
	synthesizer := NewSynthesizer("test-key")
	if err := synthesizer.AppendText("hello"); err == nil {
		t.Fatalf("expected append before connect to fail")
	}
	if err := synthesizer.Close(); err != nil {
		t.Fatalf("expected close before connect to be a no-op, got %v", err)
	}
}
