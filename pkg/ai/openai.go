package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OpenRouterBaseURL is the OpenAI-compatible endpoint of OpenRouter.
const OpenRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenAIConfig defines configuration options for OpenAI-compatible providers.
type OpenAIConfig struct {
	// Provider labels metrics, spans and errors ("openrouter" or "openai").
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
	Logger   zerolog.Logger
}

// OpenAIClient implements Completer against any OpenAI-compatible chat completion API.
type OpenAIClient struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIClient builds a new client using the provided configuration.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s api key is required", cfg.Provider)
	}

	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Timeout > 0 {
		config.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/mock-interview-api/pkg/ai/openai"),
		logger: logger.With().Str("provider", cfg.Provider).Logger(),
	}, nil
}

// Complete sends the conversation to the provider and returns the trimmed reply text.
func (c *OpenAIClient) Complete(parent context.Context, req CompletionRequest) (string, error) {
	ctx, span := c.tracer.Start(parent, "llm.complete", trace.WithAttributes(
		attribute.String("llm.provider", c.cfg.Provider),
		attribute.String("llm.model", c.cfg.Model),
		attribute.Int("llm.messages", len(req.Messages)),
	))
	defer span.End()

	request := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(req.Messages)),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	for _, msg := range req.Messages {
		request.Messages = append(request.Messages, openai.ChatCompletionMessage{
			Role:    chatRole(msg.Role),
			Content: msg.Content,
		})
	}
	if req.JSON {
		request.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, request)
	completionDuration.WithLabelValues(c.cfg.Provider, c.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		err = c.translateError(err)
		c.fail(span, err)
		return "", err
	}

	if len(resp.Choices) == 0 {
		c.fail(span, ErrEmptyResponse)
		return "", ErrEmptyResponse
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		c.fail(span, ErrEmptyResponse)
		return "", ErrEmptyResponse
	}

	span.SetAttributes(attribute.Int("llm.total_tokens", resp.Usage.TotalTokens))
	return content, nil
}

func (c *OpenAIClient) fail(span trace.Span, err error) {
	completionFailures.WithLabelValues(c.cfg.Provider, c.cfg.Model).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	c.logger.Warn().Err(err).Str("model", c.cfg.Model).Msg("llm completion failed")
}

// translateError turns HTTP-level failures into ProviderError so callers can surface
// the upstream status and response body.
func (c *OpenAIClient) translateError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		// The client keeps only the decoded error object, so the body is rebuilt from it.
		body, marshalErr := json.Marshal(openai.ErrorResponse{Error: apiErr})
		if marshalErr != nil {
			body = []byte(apiErr.Message)
		}
		return &ProviderError{Provider: c.cfg.Provider, StatusCode: apiErr.HTTPStatusCode, Body: string(body)}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		body := string(reqErr.Body)
		if body == "" && reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return &ProviderError{Provider: c.cfg.Provider, StatusCode: reqErr.HTTPStatusCode, Body: body}
	}

	return fmt.Errorf("%s completion: %w", c.cfg.Provider, err)
}

func chatRole(role string) string {
	switch role {
	case RoleSystem:
		return openai.ChatMessageRoleSystem
	case RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
