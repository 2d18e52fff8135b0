package handler

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/mock-interview-api/internal/middleware"
	"github.com/noah-isme/mock-interview-api/internal/service"
	"github.com/noah-isme/mock-interview-api/internal/utils"
)

const invalidJSONMessage = "Invalid JSON body"

var errEmptyBody = errors.New("empty body")

var upstreamLabels = map[string]string{
	"openrouter": "OpenRouter",
	"openai":     "OpenAI",
	"gemini":     "Gemini",
	"tts":        "ElevenLabs TTS",
}

// parseJSONBody decodes the request body regardless of Content-Type. A missing or
// null body counts as malformed.
func parseJSONBody(c *fiber.Ctx, target interface{}) error {
	body := bytes.TrimSpace(c.Body())
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return errEmptyBody
	}
	return c.App().Config().JSONDecoder(body, target)
}

func sendInvalidJSON(c *fiber.Ctx) error {
	return utils.SendError(c, fiber.StatusBadRequest, invalidJSONMessage)
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func upstreamFailureLabel(name string) string {
	if label, ok := upstreamLabels[name]; ok {
		return label
	}
	return name
}

func upstreamFailure(upstream *service.UpstreamError) string {
	return upstreamFailureLabel(upstream.Service) + " request failed"
}

// handleCommonError covers the errors every LLM-backed endpoint can return. ok is false
// when err needs endpoint-specific treatment.
func handleCommonError(c *fiber.Ctx, logger *zerolog.Logger, err error) (bool, error) {
	var validationErr *service.ValidationError
	var configErr *service.ConfigurationError
	var upstream *service.UpstreamError

	switch {
	case errors.As(err, &validationErr):
		return true, utils.SendError(c, fiber.StatusBadRequest, validationErr.Message)
	case errors.As(err, &configErr):
		logger.Error().Str("key", configErr.Key).Msg("missing provider credential")
		return true, utils.SendError(c, fiber.StatusInternalServerError, configErr.Error())
	case errors.As(err, &upstream):
		logger.Error().Str("service", upstream.Service).Int("status", upstream.Status).Msg("upstream request failed")
		body := upstream.Body
		if body == "" {
			body = "(no body)"
		}
		return true, utils.SendErrorWithFields(c, fiber.StatusBadGateway, upstreamFailure(upstream), fiber.Map{
			"status": upstream.Status,
			"body":   body,
		})
	}
	return false, nil
}

// rawField renders model output as JSON when it parses, or as a string otherwise.
func rawField(raw string) interface{} {
	if json.Valid([]byte(raw)) {
		return json.RawMessage(raw)
	}
	return raw
}
