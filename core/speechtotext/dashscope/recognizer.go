package dashscope

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lingting/rehab-core/core/audio"
	"github.com/lingting/rehab-core/core/speechtotext"
)

const (
	defaultURL   = "wss://dashscope.aliyuncs.com/api-ws/v1/inference"
	defaultModel = "paraformer-realtime-v2"
)

// TaskError is reported when the service fails the recognition task.
type TaskError struct {
	Code    string
	Message string
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("dashscope task failed: %s: %s", e.Code, e.Message)
}

// Recognizer streams PCM audio to the DashScope realtime recognition service.
type Recognizer struct {
	apiKey     string
	url        string
	model      string
	sampleRate int

	conn   *websocket.Conn
	connMu sync.Mutex
	taskID string

	stopping bool
	finished chan struct{}
}

type Option func(*Recognizer)

func WithURL(url string) Option {
	return func(r *Recognizer) { r.url = url }
}

func WithModel(model string) Option {
	return func(r *Recognizer) { r.model = model }
}

func WithSampleRate(sampleRate int) Option {
	return func(r *Recognizer) { r.sampleRate = sampleRate }
}

func NewRecognizer(apiKey string, opts ...Option) *Recognizer {
	r := &Recognizer{
		apiKey:     apiKey,
		url:        defaultURL,
		model:      defaultModel,
		sampleRate: audio.CaptureSampleRate,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recognizer) Start(ctx context.Context, callbacks speechtotext.Callbacks) error {
	if r.apiKey == "" {
		return fmt.Errorf("dashscope api key not set")
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, r.url,
		http.Header{"Authorization": {"bearer " + r.apiKey}})
	if err != nil {
		return fmt.Errorf("failed to open socket connection to dashscope: %w", err)
	}

	taskID := strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := conn.WriteJSON(newRunTask(taskID, r.model, r.sampleRate)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to send run-task: %w", err)
	}

	r.connMu.Lock()
	r.conn = conn
	r.taskID = taskID
	r.stopping = false
	r.finished = make(chan struct{})
	finished := r.finished
	r.connMu.Unlock()

	go r.readAndProcessMessages(conn, taskID, finished, callbacks.WithDefaults())
	return nil
}

func (r *Recognizer) SendAudioFrame(frame []byte) error {
	r.connMu.Lock()
	defer r.connMu.Unlock()

	if r.conn == nil {
		return fmt.Errorf("dashscope connection not open")
	}
	if err := r.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("failed to write to dashscope: %w", err)
	}
	return nil
}

// Stop asks the service to finish the task and waits until it confirms or ctx
// is done. The connection is closed either way.
func (r *Recognizer) Stop(ctx context.Context) error {
	r.connMu.Lock()
	conn, finished := r.conn, r.finished
	if conn == nil {
		r.connMu.Unlock()
		return nil
	}
	r.stopping = true
	err := conn.WriteJSON(newFinishTask(r.taskID))
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
		return fmt.Errorf("failed to finish dashscope task: %w", err)
	}
	return nil
}

func (r *Recognizer) isStopping() bool {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	return r.stopping
}

func (r *Recognizer) readAndProcessMessages(conn *websocket.Conn, taskID string, finished chan struct{}, callbacks speechtotext.Callbacks) {
	var finishOnce sync.Once
	finish := func() { finishOnce.Do(func() { close(finished) }) }
	defer callbacks.OnClose()
	defer finish()

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if !r.isStopping() && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				callbacks.OnError(&speechtotext.RecognitionError{RequestID: taskID, Err: err})
			}
			return
		}
		if msgType == websocket.BinaryMessage {
			continue
		}

		var event serverEvent
		if err := json.Unmarshal(msg, &event); err != nil {
			logger.Warn("failed to unmarshal dashscope message", "error", err)
			continue
		}

		switch event.Header.Event {
		case eventTaskStarted:
			callbacks.OnOpen()
		case eventResultGenerated:
			sentence := event.Payload.Output.Sentence
			if sentence == nil {
				continue
			}
			callbacks.OnEvent(speechtotext.Result{
				Text:          sentence.Text,
				IsSentenceEnd: sentence.SentenceEnd,
				RequestID:     taskID,
			})
		case eventTaskFinished:
			callbacks.OnComplete()
			finish()
		case eventTaskFailed:
			callbacks.OnError(&speechtotext.RecognitionError{
				RequestID: taskID,
				Err:       &TaskError{Code: event.Header.ErrorCode, Message: event.Header.ErrorMessage},
			})
			return
		default:
			logger.Debug("ignoring dashscope event", "event", event.Header.Event)
		}
	}
}
