package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/mock-interview-api/internal/dto"
	"github.com/noah-isme/mock-interview-api/internal/service"
	"github.com/noah-isme/mock-interview-api/internal/utils"
)

// VoiceHandler serves the spoken interviewer and spoken feedback endpoints.
type VoiceHandler struct {
	service service.VoiceService
	logger  zerolog.Logger
}

// NewVoiceHandler constructs the handler.
func NewVoiceHandler(service service.VoiceService, logger zerolog.Logger) *VoiceHandler {
	return &VoiceHandler{
		service: service,
		logger:  logger.With().Str("component", "voice_handler").Logger(),
	}
}

// Register wires voice routes.
func (h *VoiceHandler) Register(router fiber.Router) {
	router.Post("/voice-interviewer", h.interview)
	router.Post("/voice-feedback", h.feedback)
}

func (h *VoiceHandler) interview(c *fiber.Ctx) error {
	var payload dto.InterviewerRequest
	if err := parseJSONBody(c, &payload); err != nil {
		return sendInvalidJSON(c)
	}

	response, err := h.service.Interview(c.UserContext(), payload)
	if err != nil {
		logger := requestLogger(h.logger, c)
		if handled, sendErr := handleCommonError(c, logger, err); handled {
			return sendErr
		}
		logger.Error().Err(err).Msg("failed to produce voice interviewer reply")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to produce interviewer reply")
	}

	if response.TTSError != "" {
		return utils.SendJSON(c, fiber.StatusOK, fiber.Map{
			"reply":    response.Reply,
			"audio":    nil,
			"ttsError": response.TTSError,
		})
	}
	return utils.SendJSON(c, fiber.StatusOK, response)
}

func (h *VoiceHandler) feedback(c *fiber.Ctx) error {
	var payload dto.VoiceFeedbackRequest
	if err := parseJSONBody(c, &payload); err != nil {
		return sendInvalidJSON(c)
	}

	result, err := h.service.Feedback(c.UserContext(), payload)
	if err != nil {
		return h.handleFeedbackError(c, err)
	}

	c.Set(fiber.HeaderContentType, result.ContentType)
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Status(fiber.StatusOK).Send(result.Audio)
}

func (h *VoiceHandler) handleFeedbackError(c *fiber.Ctx, err error) error {
	logger := requestLogger(h.logger, c)

	var fallback *service.VoiceFallbackError
	var upstream *service.UpstreamError
	switch {
	case errors.As(err, &fallback):
		return utils.SendErrorWithFields(c, fiber.StatusBadGateway, fallback.Error(), fiber.Map{
			"detail":       fallback.Detail,
			"fallbackText": fallback.FallbackText,
		})
	case errors.As(err, &upstream):
		logger.Error().Int("status", upstream.Status).Msg("voice feedback completion failed")
		return utils.SendErrorWithFields(c, fiber.StatusBadGateway, upstreamFailure(upstream), fiber.Map{
			"detail": upstream.Body,
		})
	}

	if handled, sendErr := handleCommonError(c, logger, err); handled {
		return sendErr
	}

	logger.Error().Err(err).Msg("failed to produce voice feedback")
	return utils.SendError(c, fiber.StatusInternalServerError, "failed to produce voice feedback")
}
