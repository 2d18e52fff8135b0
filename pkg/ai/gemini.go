package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini completer.
type GeminiConfig struct {
	APIKey string
	Model  string
	Logger zerolog.Logger
}

// GeminiClient implements Completer on top of the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewGeminiClient constructs a Gemini-backed completer.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &GeminiClient{
		client: client,
		model:  cfg.Model,
		tracer: otel.Tracer("github.com/noah-isme/mock-interview-api/pkg/ai/gemini"),
		logger: logger.With().Str("provider", "gemini").Logger(),
	}, nil
}

// Complete maps the chat onto Gemini contents. System messages become the system instruction.
func (g *GeminiClient) Complete(parent context.Context, req CompletionRequest) (string, error) {
	ctx, span := g.tracer.Start(parent, "llm.complete", trace.WithAttributes(
		attribute.String("llm.provider", "gemini"),
		attribute.String("llm.model", g.model),
	))
	defer span.End()

	contents, system := geminiContents(req.Messages)
	temperature := req.Temperature
	config := &genai.GenerateContentConfig{Temperature: &temperature}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	completionDuration.WithLabelValues("gemini", g.model).Observe(time.Since(start).Seconds())
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			err = &ProviderError{Provider: "gemini", StatusCode: apiErr.Code, Body: apiErr.Message}
		} else {
			err = fmt.Errorf("gemini completion: %w", err)
		}
		g.fail(span, err)
		return "", err
	}

	if resp == nil {
		g.fail(span, ErrEmptyResponse)
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		g.fail(span, ErrEmptyResponse)
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (g *GeminiClient) fail(span trace.Span, err error) {
	completionFailures.WithLabelValues("gemini", g.model).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	g.logger.Warn().Err(err).Str("model", g.model).Msg("llm completion failed")
}

func geminiContents(messages []Message) ([]*genai.Content, string) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	return contents, strings.Join(system, "\n\n")
}
