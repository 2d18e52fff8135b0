package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/mock-interview-api/internal/dto"
	"github.com/noah-isme/mock-interview-api/internal/service"
	"github.com/noah-isme/mock-interview-api/internal/utils"
)

// EvaluationHandler runs candidate code against problem tests.
type EvaluationHandler struct {
	service service.EvaluationService
	logger  zerolog.Logger
}

// NewEvaluationHandler constructs the handler.
func NewEvaluationHandler(service service.EvaluationService, logger zerolog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		service: service,
		logger:  logger.With().Str("component", "evaluation_handler").Logger(),
	}
}

// Register wires the evaluation route.
func (h *EvaluationHandler) Register(router fiber.Router) {
	router.Post("/evaluate", h.evaluate)
}

func (h *EvaluationHandler) evaluate(c *fiber.Ctx) error {
	var payload dto.EvaluateRequest
	if err := parseJSONBody(c, &payload); err != nil {
		return sendInvalidJSON(c)
	}

	result, err := h.service.Evaluate(c.UserContext(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendJSON(c, fiber.StatusOK, result)
}

func (h *EvaluationHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErr *service.ValidationError
	var compileErr *service.CompilationError
	var unsupported *service.UnsupportedLanguageError

	switch {
	case errors.As(err, &validationErr):
		return utils.SendError(c, fiber.StatusBadRequest, validationErr.Message)
	case errors.As(err, &compileErr):
		return utils.SendErrorWithFields(c, fiber.StatusBadRequest, compileErr.Error(), fiber.Map{
			"message":     compileErr.Message,
			"results":     []dto.TestOutcome{},
			"passedCount": 0,
			"totalTests":  compileErr.TotalTests,
		})
	case errors.As(err, &unsupported):
		return utils.SendErrorWithFields(c, fiber.StatusBadRequest, unsupported.Error(), fiber.Map{
			"results":     []dto.TestOutcome{},
			"passedCount": 0,
			"totalTests":  unsupported.TotalTests,
		})
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to evaluate submission")
		return utils.SendError(c, fiber.StatusInternalServerError, "Code execution failed")
	}
}
