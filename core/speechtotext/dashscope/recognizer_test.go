package dashscope

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lingting/rehab-core/core/speechtotext"
)

type serverScript func(t *testing.T, conn *websocket.Conn)

func newDashscopeServer(t *testing.T, script serverScript) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "bearer test-key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("failed to upgrade: %v", err)
			return
		}
		defer conn.Close()
		script(t, conn)
	}))
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func readRunTask(t *testing.T, conn *websocket.Conn) runTask {
	t.Helper()

	var task runTask
	if err := conn.ReadJSON(&task); err != nil {
		t.Errorf("failed to read run-task: %v", err)
	}
	return task
}

func writeEvent(t *testing.T, conn *websocket.Conn, event string, extra map[string]any) {
	t.Helper()

	msg := map[string]any{"header": map[string]any{"event": event, "task_id": "task"}}
	for k, v := range extra {
		msg[k] = v
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Errorf("failed to write %s: %v", event, err)
	}
}

func sentencePayload(text string, end bool) map[string]any {
	return map[string]any{"payload": map[string]any{"output": map[string]any{
		"sentence": map[string]any{"text": text, "sentence_end": end},
	}}}
}

func TestRecognizerStreamsResults(t *testing.T) {
	server := newDashscopeServer(t, func(t *testing.T, conn *websocket.Conn) {
		task := readRunTask(t, conn)
		if task.Header.Action != "run-task" || task.Payload.Model != defaultModel {
			t.Errorf("unexpected run-task %+v", task)
		}
		if len(task.Header.TaskID) != 32 {
			t.Errorf("expected 32 character task id, got %q", task.Header.TaskID)
		}
		if task.Payload.Parameters.SampleRate != 16000 || task.Payload.Parameters.Format != "pcm" {
			t.Errorf("unexpected parameters %+v", task.Payload.Parameters)
		}
		writeEvent(t, conn, eventTaskStarted, nil)

		msgType, frame, err := conn.ReadMessage()
		if err != nil || msgType != websocket.BinaryMessage || len(frame) != 3200 {
			t.Errorf("expected one binary frame, got type %d len %d err %v", msgType, len(frame), err)
		}
		writeEvent(t, conn, eventResultGenerated, sentencePayload("今天", false))
		writeEvent(t, conn, eventResultGenerated, nil)
		writeEvent(t, conn, eventResultGenerated, sentencePayload("今天天气怎么样", true))

		var finish finishTask
		if err := conn.ReadJSON(&finish); err != nil || finish.Header.Action != "finish-task" {
			t.Errorf("expected finish-task, got %+v err %v", finish, err)
		}
		writeEvent(t, conn, eventTaskFinished, nil)
		_, _, _ = conn.ReadMessage()
	})

	opened := make(chan struct{})
	completed := make(chan struct{})
	results := make(chan speechtotext.Result, 4)
	recognizer := NewRecognizer("test-key", WithURL(wsURL(server)))
	if err := recognizer.Start(context.Background(), speechtotext.Callbacks{
		OnOpen:     func() { close(opened) },
		OnComplete: func() { close(completed) },
		OnEvent:    func(result speechtotext.Result) { results <- result },
		OnError:    func(err error) { t.Errorf("unexpected error %v", err) },
	}); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}

	select {
	case <-opened:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for task-started")
	}

	if err := recognizer.SendAudioFrame(make([]byte, 3200)); err != nil {
		t.Fatalf("expected frame to be sent, got %v", err)
	}

	first := <-results
	second := <-results
	if first.Text != "今天" || first.IsSentenceEnd {
		t.Fatalf("unexpected first result %+v", first)
	}
	if second.Text != "今天天气怎么样" || !second.IsSentenceEnd {
		t.Fatalf("unexpected second result %+v", second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := recognizer.Stop(ctx); err != nil {
		t.Fatalf("expected stop to succeed, got %v", err)
	}
	select {
	case <-completed:
	default:
		t.Fatalf("expected completion before stop returned")
	}

	if err := recognizer.SendAudioFrame(make([]byte, 3200)); err == nil {
		t.Fatalf("expected send after stop to fail")
	}
}

func TestRecognizerReportsTaskFailure(t *testing.T) {
	server := newDashscopeServer(t, func(t *testing.T, conn *websocket.Conn) {
		readRunTask(t, conn)
		msg := map[string]any{"header": map[string]any{
			"event":         eventTaskFailed,
			"task_id":       "task",
			"error_code":    "InvalidApiKey",
			"error_message": "bad key",
		}}
		if err := conn.WriteJSON(msg); err != nil {
			t.Errorf("failed to write task-failed: %v", err)
		}
	})

	errs := make(chan error, 1)
	closed := make(chan struct{})
	recognizer := NewRecognizer("test-key", WithURL(wsURL(server)))
	if err := recognizer.Start(context.Background(), speechtotext.Callbacks{
		OnError: func(err error) { errs <- err },
		OnClose: func() { close(closed) },
	}); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}

	var err error
	select {
	case err = <-errs:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for error")
	}

	var taskErr *TaskError
	if !errors.As(err, &taskErr) || taskErr.Code != "InvalidApiKey" {
		t.Fatalf("expected TaskError with code, got %v", err)
	}
	var recognitionErr *speechtotext.RecognitionError
	if !errors.As(err, &recognitionErr) {
		t.Fatalf("expected RecognitionError wrapper, got %T", err)
	}

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for close")
	}
}

func TestRecognizerRequiresAPIKey(t *testing.T) {
	if err := NewRecognizer("").Start(context.Background(), speechtotext.Callbacks{}); err == nil {
		t.Fatalf("expected missing api key to fail")
	}
}
