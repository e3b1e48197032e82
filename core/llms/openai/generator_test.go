package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lingting/rehab-core/core/llms"
)

func TestGenerateSendsHistoryAndReturnsReply(t *testing.T) {
	var received struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 0,
			"model": "qwen-plus",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": " 晴天 "}}]
		}`))
	}))
	defer server.Close()

	generator := NewGenerator("test-key", WithBaseURL(server.URL))
	reply, err := generator.Generate(context.Background(), []llms.Turn{
		llms.SystemTurn("你是一个康复训练助手"),
		llms.UserTurn("今天天气怎么样"),
	})
	if err != nil {
		t.Fatalf("expected generate to succeed, got %v", err)
	}

	if reply.Role != llms.TurnRoleAssistant || reply.Content != "晴天" {
		t.Fatalf("unexpected reply %+v", reply)
	}
	if received.Model != defaultModel {
		t.Fatalf("expected model %s, got %s", defaultModel, received.Model)
	}
	if len(received.Messages) != 2 || received.Messages[0].Role != "system" || received.Messages[1].Content != "今天天气怎么样" {
		t.Fatalf("unexpected messages %+v", received.Messages)
	}
}

func TestGenerateReportsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "quota exceeded", "type": "invalid_request_error", "code": "quota"}}`))
	}))
	defer server.Close()

	generator := NewGenerator("test-key", WithBaseURL(server.URL))
	if _, err := generator.Generate(context.Background(), []llms.Turn{llms.UserTurn("你好")}); err == nil {
		t.Fatalf("expected generate to fail")
	}
}

func TestGenerateRejectsEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "chatcmpl-1", "object": "chat.completion", "created": 0, "model": "qwen-plus", "choices": []}`))
	}))
	defer server.Close()

	generator := NewGenerator("test-key", WithBaseURL(server.URL))
	if _, err := generator.Generate(context.Background(), []llms.Turn{llms.UserTurn("你好")}); err == nil {
		t.Fatalf("expected empty choices to fail")
	}
}
