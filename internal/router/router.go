package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/mock-interview-api/internal/config"
	"github.com/noah-isme/mock-interview-api/internal/handler"
	"github.com/noah-isme/mock-interview-api/internal/middleware"
	"github.com/noah-isme/mock-interview-api/internal/observability"
)

// llmRoutes call the language model or the TTS provider and share one rate limit budget.
var llmRoutes = []string{"/problems", "/feedback", "/interviewer", "/voice-interviewer", "/voice-feedback"}

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ProblemHandler     *handler.ProblemHandler
	EvaluationHandler  *handler.EvaluationHandler
	FeedbackHandler    *handler.FeedbackHandler
	InterviewerHandler *handler.InterviewerHandler
	VoiceHandler       *handler.VoiceHandler

	RateLimitMax    int
	RateLimitWindow time.Duration
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	v1 := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	v1.Get("/health", handler.HealthCheck(cfg))

	api := app.Group("/api")

	limiter := middleware.RateLimit("llm", deps.RateLimitMax, deps.RateLimitWindow)
	for _, path := range llmRoutes {
		api.Use(path, limiter)
	}

	if deps.ProblemHandler != nil {
		deps.ProblemHandler.Register(api)
	}
	if deps.EvaluationHandler != nil {
		deps.EvaluationHandler.Register(api)
	}
	if deps.FeedbackHandler != nil {
		deps.FeedbackHandler.Register(api)
	}
	if deps.InterviewerHandler != nil {
		deps.InterviewerHandler.Register(api)
	}
	if deps.VoiceHandler != nil {
		deps.VoiceHandler.Register(api)
	}
}
