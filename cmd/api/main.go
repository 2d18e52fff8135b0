package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/mock-interview-api/internal/config"
	"github.com/noah-isme/mock-interview-api/internal/database"
	"github.com/noah-isme/mock-interview-api/internal/handler"
	"github.com/noah-isme/mock-interview-api/internal/middleware"
	"github.com/noah-isme/mock-interview-api/internal/repository"
	"github.com/noah-isme/mock-interview-api/internal/router"
	"github.com/noah-isme/mock-interview-api/internal/service"
	"github.com/noah-isme/mock-interview-api/pkg/ai"
	dockerexec "github.com/noah-isme/mock-interview-api/pkg/docker"
	"github.com/noah-isme/mock-interview-api/pkg/sandbox"
	"github.com/noah-isme/mock-interview-api/pkg/tts"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if cfg.AppEnv == "development" {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	ctx := context.Background()

	completer, err := ai.NewCompleter(ctx, ai.ProviderConfig{
		Provider: cfg.LLMProvider,
		APIKey:   cfg.LLMAPIKey,
		KeyName:  cfg.LLMKeyName(),
		Model:    cfg.LLMModel,
		BaseURL:  cfg.LLMBaseURL,
		Timeout:  cfg.LLMTimeout,
		Logger:   logger,
	})
	if err != nil {
		log.Fatalf("failed to create llm client: %v", err)
	}
	if cfg.LLMAPIKey == "" {
		logger.Warn().Str("key", cfg.LLMKeyName()).Msg("llm credential missing, llm routes will fail")
	}

	synthesizer := tts.NewElevenLabsClient(tts.Config{
		APIKey:  cfg.TTSAPIKey,
		VoiceID: cfg.TTSVoiceID,
		Model:   cfg.TTSModel,
		BaseURL: cfg.TTSBaseURL,
		Timeout: cfg.TTSTimeout,
		Logger:  logger,
	})

	runner, cleanup := buildRunner(cfg, logger)
	defer cleanup()

	catalog := buildCatalog(ctx, cfg, logger)

	var store repository.GeneratedProblemStore
	if cfg.RedisURL != "" {
		redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		store = repository.NewRedisProblemStore(redisClient, cfg.GeneratedProblemTTL)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	problemService := service.NewProblemService(catalog, store, completer, logger)
	evaluationService := service.NewEvaluationService(runner, validate, cfg.ExecutionTimeout, logger)
	feedbackService := service.NewFeedbackService(completer, validate, cfg.FeedbackMode, logger)
	interviewerService := service.NewInterviewerService(completer, logger)
	voiceService := service.NewVoiceService(interviewerService, completer, synthesizer, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    1 << 20,
	})

	middleware.Register(app, middleware.Config{
		Logger:    &logger,
		AccessLog: cfg.AppEnv == "development",
	})
	router.Register(app, cfg, router.Dependencies{
		ProblemHandler:     handler.NewProblemHandler(problemService, cfg.LLMProvider, logger),
		EvaluationHandler:  handler.NewEvaluationHandler(evaluationService, logger),
		FeedbackHandler:    handler.NewFeedbackHandler(feedbackService, logger),
		InterviewerHandler: handler.NewInterviewerHandler(interviewerService, logger),
		VoiceHandler:       handler.NewVoiceHandler(voiceService, logger),
		RateLimitMax:       cfg.RateLimitMax,
		RateLimitWindow:    cfg.RateLimitWindow,
	})

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddress()).Str("executor", runner.Name()).Msg("starting server")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, logger)
}

func buildRunner(cfg config.Config, logger zerolog.Logger) (sandbox.Runner, func()) {
	if cfg.ExecutionBackend != config.BackendDocker {
		return sandbox.NewGojaRunner(sandbox.GojaConfig{
			Timeout:       cfg.ExecutionTimeout,
			MaxConcurrent: cfg.ExecutionMaxConcurrent,
			Logger:        logger,
		}), func() {}
	}

	executor, err := dockerexec.NewDockerExecutor(dockerexec.Config{
		Host:          cfg.DockerHost,
		Timeout:       cfg.ExecutionTimeout,
		MemoryLimitMB: int64(cfg.CodeRunMemoryMB),
		CPUShares:     int64(cfg.CodeRunCPUShares),
		Logger:        logger,
	})
	if err != nil {
		log.Fatalf("failed to create docker executor: %v", err)
	}

	runner := sandbox.NewDockerRunner(executor, sandbox.DockerConfig{
		Image:         cfg.NodeImage,
		Timeout:       cfg.ExecutionTimeout,
		MemoryLimitMB: int64(cfg.CodeRunMemoryMB),
		CPUShares:     int64(cfg.CodeRunCPUShares),
		Logger:        logger,
	})
	return runner, func() {
		if err := executor.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close docker client")
		}
	}
}

// buildCatalog prefers the database, then a catalog file, then the embedded problem set.
func buildCatalog(ctx context.Context, cfg config.Config, logger zerolog.Logger) repository.ProblemCatalog {
	problems, err := repository.DefaultProblems()
	if err != nil {
		log.Fatalf("failed to load embedded problems: %v", err)
	}
	if cfg.ProblemCatalogPath != "" {
		problems, err = repository.LoadCatalogFile(cfg.ProblemCatalogPath)
		if err != nil {
			log.Fatalf("failed to load problem catalog: %v", err)
		}
	}

	if cfg.DatabaseURL != "" {
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		if err := database.Migrate(db); err != nil {
			log.Fatalf("%v", err)
		}
		seeded, err := repository.SeedProblems(ctx, db, problems)
		if err != nil {
			log.Fatalf("failed to seed problems: %v", err)
		}
		logger.Info().Int64("seeded", seeded).Msg("problem catalog backed by database")
		return repository.NewDatabaseCatalog(db)
	}

	catalog, err := repository.NewStaticCatalog(problems)
	if err != nil {
		log.Fatalf("invalid problem catalog: %v", err)
	}
	logger.Info().Int("problems", len(problems)).Msg("problem catalog loaded")
	return catalog
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
