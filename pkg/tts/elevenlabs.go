package tts

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	synthDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mockint",
		Subsystem: "tts",
		Name:      "synthesis_duration_seconds",
		Help:      "Duration of text-to-speech requests",
		Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16},
	})

	synthFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mockint",
		Subsystem: "tts",
		Name:      "synthesis_failures_total",
		Help:      "Number of failed text-to-speech requests",
	})
)

// ErrNotConfigured is returned when synthesis is requested without credentials.
var ErrNotConfigured = errors.New("tts provider is not configured")

// VoiceSettings tunes the synthesized voice.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// SpeechRequest is the text to speak and the voice quality to use.
type SpeechRequest struct {
	Text     string
	Settings VoiceSettings
}

// Speech is the synthesized audio.
type Speech struct {
	Audio       []byte
	ContentType string
}

// Synthesizer converts text to audio.
type Synthesizer interface {
	Enabled() bool
	Synthesize(ctx context.Context, req SpeechRequest) (Speech, error)
}

// ProviderError is a non-success response from the TTS provider.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("tts request failed with status %d: %s", e.StatusCode, e.Body)
}

// Config configures the ElevenLabs client.
type Config struct {
	APIKey  string
	VoiceID string
	Model   string
	BaseURL string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// ElevenLabsClient talks to the ElevenLabs text-to-speech API.
type ElevenLabsClient struct {
	cfg    Config
	tracer trace.Tracer
	logger zerolog.Logger
}

type synthesisPayload struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

// NewElevenLabsClient constructs a client. An empty API key yields a disabled client.
func NewElevenLabsClient(cfg Config) *ElevenLabsClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = "eleven_multilingual_v2"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &ElevenLabsClient{
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/mock-interview-api/pkg/tts"),
		logger: logger.With().Str("component", "elevenlabs").Logger(),
	}
}

// Enabled reports whether both a key and a voice are configured.
func (c *ElevenLabsClient) Enabled() bool {
	return c != nil && c.cfg.APIKey != "" && c.cfg.VoiceID != ""
}

// Synthesize requests audio for the given text using the fixed voice.
func (c *ElevenLabsClient) Synthesize(parent context.Context, req SpeechRequest) (Speech, error) {
	if !c.Enabled() {
		return Speech{}, ErrNotConfigured
	}

	_, span := c.tracer.Start(parent, "tts.synthesize", trace.WithAttributes(
		attribute.String("tts.voice_id", c.cfg.VoiceID),
		attribute.Int("tts.characters", len(req.Text)),
	))
	defer span.End()

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s", c.cfg.BaseURL, url.PathEscape(c.cfg.VoiceID))
	agent := fiber.Post(endpoint)
	agent.Set("xi-api-key", c.cfg.APIKey)
	agent.Set(fiber.HeaderAccept, "audio/mpeg")
	agent.JSON(synthesisPayload{
		Text:          req.Text,
		ModelID:       c.cfg.Model,
		VoiceSettings: req.Settings,
	})
	agent.Timeout(c.remaining(parent))

	start := time.Now()
	status, body, errs := agent.Bytes()
	synthDuration.Observe(time.Since(start).Seconds())

	if len(errs) > 0 {
		err := fmt.Errorf("tts request: %w", errors.Join(errs...))
		c.fail(span, err)
		return Speech{}, err
	}

	if status < fiber.StatusOK || status >= fiber.StatusMultipleChoices {
		err := &ProviderError{StatusCode: status, Body: strings.TrimSpace(string(body))}
		c.fail(span, err)
		return Speech{}, err
	}

	return Speech{Audio: body, ContentType: "audio/mpeg"}, nil
}

// remaining caps the request timeout by the caller's deadline.
func (c *ElevenLabsClient) remaining(ctx context.Context) time.Duration {
	timeout := c.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		timeout = time.Millisecond
	}
	return timeout
}

func (c *ElevenLabsClient) fail(span trace.Span, err error) {
	synthFailures.Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	c.logger.Warn().Err(err).Msg("speech synthesis failed")
}
