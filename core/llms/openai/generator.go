package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lingting/rehab-core/core/llms"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// DashScopeBaseURL is DashScope's OpenAI compatible endpoint.
	DashScopeBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"

	defaultModel          = "qwen-plus"
	defaultRequestTimeout = 60 * time.Second
)

// Generator calls an OpenAI compatible chat completions API.
type Generator struct {
	model      string
	baseURL    string
	httpClient *http.Client
	client     *openai.Client
}

type Option func(*Generator)

func WithModel(model string) Option {
	return func(g *Generator) {
		if model != "" {
			g.model = model
		}
	}
}

func WithBaseURL(baseURL string) Option {
	return func(g *Generator) {
		if baseURL != "" {
			g.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithRequestTimeout(timeout time.Duration) Option {
	return func(g *Generator) {
		if timeout > 0 {
			g.httpClient.Timeout = timeout
		}
	}
}

func NewGenerator(apiKey string, opts ...Option) *Generator {
	g := &Generator{
		model:   defaultModel,
		baseURL: DashScopeBaseURL,
		httpClient: &http.Client{
			Timeout:   defaultRequestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(g)
	}

	reqOpts := []option.RequestOption{
		option.WithBaseURL(g.baseURL),
		option.WithHTTPClient(g.httpClient),
		option.WithMaxRetries(1),
	}
	if apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(apiKey))
	}
	client := openai.NewClient(reqOpts...)
	g.client = &client
	return g
}

func (g *Generator) Generate(ctx context.Context, history []llms.Turn) (llms.Turn, error) {
	ctx, span := tracer.Start(ctx, "generate reply")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", g.model),
		attribute.Int("llm.history_length", len(history)),
	)

	reply, err := g.generate(ctx, history)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return llms.Turn{}, err
	}
	return reply, nil
}

func (g *Generator) generate(ctx context.Context, history []llms.Turn) (llms.Turn, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    g.model,
		Messages: toChatMessages(history),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return llms.Turn{}, fmt.Errorf("generation request failed (status=%d): %s: %w",
				apiErr.StatusCode, strings.TrimSpace(apiErr.Message), err)
		}
		return llms.Turn{}, fmt.Errorf("generation request failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return llms.Turn{}, fmt.Errorf("generation returned no choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return llms.Turn{}, fmt.Errorf("generation returned an empty reply")
	}
	logger.Debug("reply generated", "model", g.model, "finish_reason", resp.Choices[0].FinishReason)
	return llms.AssistantTurn(content), nil
}

func toChatMessages(history []llms.Turn) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history))
	for _, turn := range history {
		switch turn.Role {
		case llms.TurnRoleSystem:
			messages = append(messages, openai.SystemMessage(turn.Content))
		case llms.TurnRoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		default:
			messages = append(messages, openai.UserMessage(turn.Content))
		}
	}
	return messages
}
