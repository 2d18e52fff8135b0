package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/mock-interview-api/internal/dto"
	"github.com/noah-isme/mock-interview-api/internal/service"
	"github.com/noah-isme/mock-interview-api/internal/utils"
)

// ProblemHandler serves catalog and generated problems.
type ProblemHandler struct {
	service  service.ProblemService
	provider string
	logger   zerolog.Logger
}

// NewProblemHandler constructs the handler. provider names the LLM backend in error bodies.
func NewProblemHandler(service service.ProblemService, provider string, logger zerolog.Logger) *ProblemHandler {
	return &ProblemHandler{
		service:  service,
		provider: provider,
		logger:   logger.With().Str("component", "problem_handler").Logger(),
	}
}

// Register wires problem routes.
func (h *ProblemHandler) Register(router fiber.Router) {
	router.Get("/problem", h.random)
	router.Get("/problems", h.generate)
	router.Get("/problems/:id", h.get)
}

func (h *ProblemHandler) random(c *fiber.Ctx) error {
	var query dto.ProblemQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query")
	}

	problem, err := h.service.Random(c.UserContext(), query)
	if err != nil {
		if errors.Is(err, service.ErrProblemNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "No matching problem")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to pick problem")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load problems")
	}

	return utils.SendJSON(c, fiber.StatusOK, problem)
}

func (h *ProblemHandler) generate(c *fiber.Ctx) error {
	var query dto.ProblemQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query")
	}

	problem, err := h.service.Generate(c.UserContext(), query)
	if err != nil {
		return h.handleGenerateError(c, err)
	}

	return utils.SendJSON(c, fiber.StatusOK, problem)
}

func (h *ProblemHandler) get(c *fiber.Ctx) error {
	problem, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, service.ErrProblemNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "Problem not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load problem")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load problem")
	}

	return utils.SendJSON(c, fiber.StatusOK, problem)
}

func (h *ProblemHandler) handleGenerateError(c *fiber.Ctx, err error) error {
	logger := requestLogger(h.logger, c)

	var upstream *service.UpstreamError
	var format *service.UpstreamFormatError
	switch {
	case errors.As(err, &upstream):
		logger.Error().Int("status", upstream.Status).Msg("problem generation request failed")
		return utils.SendErrorWithFields(c, fiber.StatusBadGateway, upstreamFailure(upstream), fiber.Map{
			"status": upstream.Status,
			"detail": upstream.Body,
		})
	case errors.As(err, &format):
		return utils.SendErrorWithFields(c, fiber.StatusBadGateway, format.Reason, fiber.Map{
			"raw": rawField(format.Raw),
		})
	case errors.Is(err, service.ErrEmptyUpstreamResponse):
		return utils.SendError(c, fiber.StatusBadGateway, "No content from "+upstreamFailureLabel(h.provider))
	}

	if handled, sendErr := handleCommonError(c, logger, err); handled {
		return sendErr
	}

	logger.Error().Err(err).Msg("failed to generate problem")
	return utils.SendError(c, fiber.StatusInternalServerError, "failed to generate problem")
}
