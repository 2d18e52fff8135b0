package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/mock-interview-api/internal/dto"
	"github.com/noah-isme/mock-interview-api/internal/service"
	"github.com/noah-isme/mock-interview-api/internal/utils"
)

// InterviewerHandler serves the text interviewer.
type InterviewerHandler struct {
	service service.InterviewerService
	logger  zerolog.Logger
}

// NewInterviewerHandler constructs the handler.
func NewInterviewerHandler(service service.InterviewerService, logger zerolog.Logger) *InterviewerHandler {
	return &InterviewerHandler{
		service: service,
		logger:  logger.With().Str("component", "interviewer_handler").Logger(),
	}
}

// Register wires the interviewer route.
func (h *InterviewerHandler) Register(router fiber.Router) {
	router.Post("/interviewer", h.reply)
}

func (h *InterviewerHandler) reply(c *fiber.Ctx) error {
	var payload dto.InterviewerRequest
	if err := parseJSONBody(c, &payload); err != nil {
		return sendInvalidJSON(c)
	}

	reply, err := h.service.Reply(c.UserContext(), payload)
	if err != nil {
		logger := requestLogger(h.logger, c)
		if handled, sendErr := handleCommonError(c, logger, err); handled {
			return sendErr
		}
		logger.Error().Err(err).Msg("failed to produce interviewer reply")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to produce interviewer reply")
	}

	// Action-driven clients expect the role/content shape.
	if strings.TrimSpace(payload.Action) != "" {
		return utils.SendJSON(c, fiber.StatusOK, dto.NewInterviewerActionReply(reply))
	}
	return utils.SendJSON(c, fiber.StatusOK, dto.InterviewerReply{Reply: reply})
}
