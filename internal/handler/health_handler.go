package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/mock-interview-api/internal/config"
	"github.com/noah-isme/mock-interview-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
	LLMProvider string    `json:"llmProvider"`
	Executor    string    `json:"executor"`
}

// HealthCheck returns a handler that reports application health information.
func HealthCheck(cfg config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
			LLMProvider: cfg.LLMProvider,
			Executor:    cfg.ExecutionBackend,
		}

		return utils.SendJSON(c, fiber.StatusOK, payload)
	}
}
