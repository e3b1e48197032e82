package dashscope

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lingting/rehab-core/core/texttospeech"
)

const (
	defaultURL   = "wss://dashscope.aliyuncs.com/api-ws/v1/realtime"
	defaultModel = "qwen3-tts-flash-realtime"
)

var errNotConnected = errors.New("dashscope realtime connection not open")

// Synthesizer talks to the DashScope Qwen realtime speech synthesis endpoint.
type Synthesizer struct {
	apiKey string
	url    string
	model  string

	conn   *websocket.Conn
	connMu sync.Mutex
}

type Option func(*Synthesizer)

func WithURL(url string) Option {
	return func(s *Synthesizer) { s.url = url }
}

func WithModel(model string) Option {
	return func(s *Synthesizer) { s.model = model }
}

func NewSynthesizer(apiKey string, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		apiKey: apiKey,
		url:    defaultURL,
		model:  defaultModel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Synthesizer) Connect(ctx context.Context, callbacks texttospeech.Callbacks) error {
	if s.apiKey == "" {
		return fmt.Errorf("dashscope api key not set")
	}

	realtimeURL, err := url.Parse(s.url)
	if err != nil {
		return fmt.Errorf("invalid dashscope url: %w", err)
	}
	query := realtimeURL.Query()
	query.Set("model", s.model)
	realtimeURL.RawQuery = query.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, realtimeURL.String(),
		http.Header{"Authorization": {"Bearer " + s.apiKey}})
	if err != nil {
		return fmt.Errorf("failed to open socket connection to dashscope: %w", err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	callbacks = callbacks.WithDefaults()
	callbacks.OnOpen()
	go s.readAndProcessMessages(conn, callbacks)
	return nil
}

func (s *Synthesizer) UpdateSession(config texttospeech.SessionConfig) error {
	return s.send(clientEvent{
		Type: "session.update",
		Session: &sessionUpdate{
			Voice:          config.Voice,
			ResponseFormat: config.Format,
			SampleRate:     config.SampleRate,
			Mode:           config.Mode,
		},
	})
}

func (s *Synthesizer) AppendText(text string) error {
	return s.send(clientEvent{Type: "input_text_buffer.append", Text: text})
}

func (s *Synthesizer) Commit() error {
	return s.send(clientEvent{Type: "input_text_buffer.commit"})
}

func (s *Synthesizer) Finish() error {
	return s.send(clientEvent{Type: "session.finish"})
}

func (s *Synthesizer) Close() error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return nil
	}
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		return fmt.Errorf("failed to close dashscope connection: %w", err)
	}
	return nil
}

func (s *Synthesizer) send(event clientEvent) error {
	event.EventID = "event_" + uuid.NewString()

	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return errNotConnected
	}
	if err := s.conn.WriteJSON(event); err != nil {
		return fmt.Errorf("failed to send %s: %w", event.Type, err)
	}
	return nil
}

func (s *Synthesizer) readAndProcessMessages(conn *websocket.Conn, callbacks texttospeech.Callbacks) {
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			code, text := websocket.CloseNoStatusReceived, err.Error()
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				code, text = closeErr.Code, closeErr.Text
			}
			callbacks.OnClose(code, text)
			return
		}
		if msgType == websocket.BinaryMessage {
			continue
		}

		var envelope texttospeech.Envelope
		if err := json.Unmarshal(msg, &envelope); err != nil {
			logger.Warn("failed to unmarshal dashscope realtime event", "error", err)
			continue
		}
		envelope.Raw = msg
		callbacks.OnEvent(envelope)
	}
}

type sessionUpdate struct {
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
	SampleRate     int    `json:"sample_rate"`
	Mode           string `json:"mode"`
}

type clientEvent struct {
	EventID string         `json:"event_id"`
	Type    string         `json:"type"`
	Session *sessionUpdate `json:"session,omitempty"`
	Text    string         `json:"text,omitempty"`
}
