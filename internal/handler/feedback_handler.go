package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/mock-interview-api/internal/dto"
	"github.com/noah-isme/mock-interview-api/internal/service"
	"github.com/noah-isme/mock-interview-api/internal/utils"
)

// FeedbackHandler returns AI feedback on evaluated submissions.
type FeedbackHandler struct {
	service service.FeedbackService
	logger  zerolog.Logger
}

// NewFeedbackHandler constructs the handler.
func NewFeedbackHandler(service service.FeedbackService, logger zerolog.Logger) *FeedbackHandler {
	return &FeedbackHandler{
		service: service,
		logger:  logger.With().Str("component", "feedback_handler").Logger(),
	}
}

// Register wires the feedback route.
func (h *FeedbackHandler) Register(router fiber.Router) {
	router.Post("/feedback", h.feedback)
}

func (h *FeedbackHandler) feedback(c *fiber.Ctx) error {
	var payload dto.FeedbackRequest
	if err := parseJSONBody(c, &payload); err != nil {
		return sendInvalidJSON(c)
	}

	response, err := h.service.Generate(c.UserContext(), payload)
	if err != nil {
		logger := requestLogger(h.logger, c)
		if handled, sendErr := handleCommonError(c, logger, err); handled {
			return sendErr
		}
		if errors.Is(err, service.ErrEmptyUpstreamResponse) {
			return utils.SendError(c, fiber.StatusBadGateway, "No feedback generated")
		}
		logger.Error().Err(err).Msg("failed to generate feedback")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to generate feedback")
	}

	return utils.SendJSON(c, fiber.StatusOK, response)
}
