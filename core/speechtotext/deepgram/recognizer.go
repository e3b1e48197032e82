package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/lingting/rehab-core/core/audio"
	"github.com/lingting/rehab-core/core/speechtotext"
)

const defaultURL = "wss://api.deepgram.com/v1/listen"

// Recognizer streams audio to Deepgram's live transcription endpoint. Final
// segments are accumulated and emitted as one sentence when Deepgram reports
// the end of speech.
type Recognizer struct {
	apiKey   string
	url      string
	language string
	encoding audio.EncodingInfo

	conn      *websocket.Conn
	connMu    sync.Mutex
	lastMsgTs time.Time
	stopping  bool
	finished  chan struct{}

	accumulated    []string
	unendedSegment bool
}

type Option func(*Recognizer)

func WithURL(url string) Option {
	return func(r *Recognizer) { r.url = url }
}

func WithLanguage(language string) Option {
	return func(r *Recognizer) { r.language = language }
}

func WithEncodingInfo(encoding audio.EncodingInfo) Option {
	return func(r *Recognizer) { r.encoding = encoding }
}

func NewRecognizer(apiKey string, opts ...Option) *Recognizer {
	r := &Recognizer{
		apiKey:   apiKey,
		url:      defaultURL,
		language: "zh-CN",
		encoding: audio.CaptureEncodingInfo(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recognizer) Start(ctx context.Context, callbacks speechtotext.Callbacks) error {
	if r.apiKey == "" {
		return fmt.Errorf("deepgram api key not set")
	}

	encoding, sampleRate, err := listenEncoding(r.encoding)
	if err != nil {
		return fmt.Errorf("invalid encoding: %w", err)
	}

	listenURL, err := url.Parse(r.url)
	if err != nil {
		return fmt.Errorf("invalid deepgram url: %w", err)
	}
	queryParams := listenURL.Query()
	queryParams.Set("encoding", encoding)
	queryParams.Set("sample_rate", strconv.Itoa(sampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", "nova-2")
	queryParams.Set("language", r.language)
	queryParams.Set("smart_format", "true")
	queryParams.Set("interim_results", "true")
	queryParams.Set("utterance_end_ms", "1000")
	queryParams.Set("vad_events", "true")
	queryParams.Set("endpointing", "300")
	listenURL.RawQuery = queryParams.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, listenURL.String(),
		http.Header{"Authorization": {"Token " + r.apiKey}})
	if err != nil {
		return fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	r.connMu.Lock()
	r.conn = conn
	r.lastMsgTs = time.Now()
	r.stopping = false
	r.finished = make(chan struct{})
	finished := r.finished
	r.connMu.Unlock()

	r.accumulated = nil
	r.unendedSegment = false

	callbacks = callbacks.WithDefaults()
	callbacks.OnOpen()
	go r.readAndProcessMessages(ctx, conn, finished, callbacks)
	return nil
}

func (r *Recognizer) SendAudioFrame(frame []byte) error {
	r.connMu.Lock()
	defer r.connMu.Unlock()

	if r.conn == nil {
		return fmt.Errorf("deepgram connection not open")
	}
	r.lastMsgTs = time.Now()
	if err := r.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("failed to write to deepgram: %w", err)
	}
	return nil
}

func (r *Recognizer) Stop(ctx context.Context) error {
	r.connMu.Lock()
	conn, finished := r.conn, r.finished
	if conn == nil {
		r.connMu.Unlock()
		return nil
	}
	r.stopping = true
	err := conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)})
	r.connMu.Unlock()

	if err == nil {
		select {
		case <-finished:
		case <-ctx.Done():
			err = ctx.Err()
		}
	}

	r.connMu.Lock()
	if r.conn == conn {
		r.conn = nil
	}
	r.connMu.Unlock()
	conn.Close()

	if err != nil {
		return fmt.Errorf("failed to close deepgram stream: %w", err)
	}
	return nil
}

func (r *Recognizer) isStopping() bool {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	return r.stopping
}

func (r *Recognizer) readAndProcessMessages(ctx context.Context, conn *websocket.Conn, finished chan struct{}, callbacks speechtotext.Callbacks) {
	keepAliveCtx, cancelKeepAlive := context.WithCancel(ctx)
	defer cancelKeepAlive()
	go r.keepAlive(keepAliveCtx)

	defer callbacks.OnClose()
	defer close(finished)

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if r.isStopping() || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				r.flush(callbacks)
				callbacks.OnComplete()
				return
			}
			callbacks.OnError(&speechtotext.RecognitionError{Err: err})
			return
		}
		if msgType != websocket.BinaryMessage {
			r.processMessage(msg, callbacks)
		}
	}
}

func (r *Recognizer) processMessage(msg []byte, callbacks speechtotext.Callbacks) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.Warn("failed to unmarshal deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			logger.Warn("failed to unmarshal deepgram message", "error", err)
			return
		}

		transcript := ""
		if len(msgResp.Channel.Alternatives) > 0 {
			transcript = strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
		}

		if !msgResp.IsFinal {
			if transcript != "" {
				callbacks.OnEvent(speechtotext.Result{Text: r.joined(transcript)})
			}
			return
		}

		if transcript != "" {
			r.accumulated = append(r.accumulated, transcript)
			r.unendedSegment = true
		}
		if msgResp.SpeechFinal {
			r.endSentence(callbacks)
		}

	case api.TypeUtteranceEndResponse:
		if r.unendedSegment {
			r.endSentence(callbacks)
		}

	case api.TypeSpeechStartedResponse:
		r.unendedSegment = true
	}
}

func (r *Recognizer) joined(extra ...string) string {
	return strings.Join(append(append([]string{}, r.accumulated...), extra...), "")
}

func (r *Recognizer) endSentence(callbacks speechtotext.Callbacks) {
	text := r.joined()
	r.accumulated = nil
	r.unendedSegment = false
	if text == "" {
		return
	}
	callbacks.OnEvent(speechtotext.Result{Text: text, IsSentenceEnd: true})
}

func (r *Recognizer) flush(callbacks speechtotext.Callbacks) {
	if len(r.accumulated) > 0 {
		r.endSentence(callbacks)
	}
}

// keepAlive sends a KeepAlive message while no audio is flowing, which
// happens for the whole turn while capture is gated.
func (r *Recognizer) keepAlive(ctx context.Context) {
	const keepAliveInterval = 5 * time.Second
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.connMu.Lock()
			if r.conn != nil && time.Since(r.lastMsgTs) >= keepAliveInterval {
				r.lastMsgTs = time.Now()
				if err := r.conn.WriteJSON(struct {
					Type string `json:"type"`
				}{Type: "KeepAlive"}); err != nil {
					logger.Warn("failed to send deepgram keep alive", "error", err)
				}
			}
			r.connMu.Unlock()
		}
	}
}
