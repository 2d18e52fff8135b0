package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported LLM providers.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
)

// Supported feedback modes.
const (
	FeedbackModeSingle    = "single"
	FeedbackModeReference = "reference"
)

// Supported execution backends for candidate code.
const (
	BackendGoja   = "goja"
	BackendDocker = "docker"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName string
	AppEnv  string
	AppPort string

	LLMProvider string
	LLMAPIKey   string
	LLMModel    string
	LLMBaseURL  string
	LLMTimeout  time.Duration

	TTSAPIKey  string
	TTSVoiceID string
	TTSModel   string
	TTSBaseURL string
	TTSTimeout time.Duration

	FeedbackMode string

	ExecutionBackend       string
	ExecutionTimeout       time.Duration
	ExecutionMaxConcurrent int
	CodeRunMemoryMB        int
	CodeRunCPUShares       int
	NodeImage              string
	DockerHost             string

	DatabaseURL         string
	RedisURL            string
	GeneratedProblemTTL time.Duration
	ProblemCatalogPath  string

	RateLimitMax    int
	RateLimitWindow time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// LLMKeyName names the environment variable carrying the active provider credential.
func (c Config) LLMKeyName() string {
	switch c.LLMProvider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	default:
		return "OPENROUTER_API_KEY"
	}
}

// Load reads configuration values from environment variables and optional .env file.
// Provider credentials are optional here; requests that need a missing one fail individually.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("MOCKINT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Unprefixed provider variables are accepted as well.
	_ = v.BindEnv("openrouter.api_key", "MOCKINT_OPENROUTER_API_KEY", "OPENROUTER_API_KEY")
	_ = v.BindEnv("openai.api_key", "MOCKINT_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("gemini.api_key", "MOCKINT_GEMINI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("tts.api_key", "MOCKINT_TTS_API_KEY", "ELEVENLABS_API_KEY")
	_ = v.BindEnv("tts.voice_id", "MOCKINT_TTS_VOICE_ID", "ELEVENLABS_VOICE_ID")

	v.SetDefault("app.name", "Mock Interview API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("llm.provider", ProviderOpenRouter)
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("tts.voice_id", "JBFqnCBsd6RMkjVDRZzb")
	v.SetDefault("tts.model", "eleven_multilingual_v2")
	v.SetDefault("tts.base_url", "https://api.elevenlabs.io")
	v.SetDefault("tts.timeout", "30s")
	v.SetDefault("feedback.mode", FeedbackModeReference)
	v.SetDefault("execution.backend", BackendGoja)
	v.SetDefault("execution_timeout_ms", 2000)
	v.SetDefault("code_run_memory_mb", 128)
	v.SetDefault("code_run_cpu_shares", 512)
	v.SetDefault("execution.node_image", "node:20-alpine")
	v.SetDefault("execution.max_concurrent", 4)
	v.SetDefault("problems.generated_ttl", "24h")
	v.SetDefault("rate_limit.max", 30)
	v.SetDefault("rate_limit.window", "1m")

	llmTimeout, err := parseDuration(v, "llm.timeout")
	if err != nil {
		return Config{}, err
	}
	ttsTimeout, err := parseDuration(v, "tts.timeout")
	if err != nil {
		return Config{}, err
	}
	generatedTTL, err := parseDuration(v, "problems.generated_ttl")
	if err != nil {
		return Config{}, err
	}
	rateWindow, err := parseDuration(v, "rate_limit.window")
	if err != nil {
		return Config{}, err
	}

	timeoutMs := v.GetInt("execution_timeout_ms")
	if timeoutMs <= 0 {
		timeoutMs = 2000
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		LLMProvider:            strings.ToLower(strings.TrimSpace(v.GetString("llm.provider"))),
		LLMModel:               v.GetString("llm.model"),
		LLMBaseURL:             v.GetString("llm.base_url"),
		LLMTimeout:             llmTimeout,
		TTSAPIKey:              v.GetString("tts.api_key"),
		TTSVoiceID:             v.GetString("tts.voice_id"),
		TTSModel:               v.GetString("tts.model"),
		TTSBaseURL:             strings.TrimRight(v.GetString("tts.base_url"), "/"),
		TTSTimeout:             ttsTimeout,
		FeedbackMode:           strings.ToLower(strings.TrimSpace(v.GetString("feedback.mode"))),
		ExecutionBackend:       strings.ToLower(strings.TrimSpace(v.GetString("execution.backend"))),
		ExecutionTimeout:       time.Duration(timeoutMs) * time.Millisecond,
		ExecutionMaxConcurrent: v.GetInt("execution.max_concurrent"),
		CodeRunMemoryMB:        v.GetInt("code_run_memory_mb"),
		CodeRunCPUShares:       v.GetInt("code_run_cpu_shares"),
		NodeImage:              v.GetString("execution.node_image"),
		DockerHost:             v.GetString("docker_host"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		GeneratedProblemTTL:    generatedTTL,
		ProblemCatalogPath:     v.GetString("problems.catalog_path"),
		RateLimitMax:           v.GetInt("rate_limit.max"),
		RateLimitWindow:        rateWindow,
	}

	switch cfg.LLMProvider {
	case ProviderOpenRouter, ProviderOpenAI, ProviderGemini:
		cfg.LLMAPIKey = v.GetString(cfg.LLMProvider + ".api_key")
	default:
		return Config{}, fmt.Errorf("unsupported llm provider %q", cfg.LLMProvider)
	}
	if override := v.GetString("llm.api_key"); override != "" {
		cfg.LLMAPIKey = override
	}

	if cfg.FeedbackMode != FeedbackModeSingle && cfg.FeedbackMode != FeedbackModeReference {
		return Config{}, fmt.Errorf("unsupported feedback mode %q", cfg.FeedbackMode)
	}

	if cfg.ExecutionBackend != BackendGoja && cfg.ExecutionBackend != BackendDocker {
		return Config{}, fmt.Errorf("unsupported execution backend %q", cfg.ExecutionBackend)
	}

	if cfg.ExecutionMaxConcurrent <= 0 {
		cfg.ExecutionMaxConcurrent = 4
	}

	if cfg.CodeRunMemoryMB <= 0 {
		cfg.CodeRunMemoryMB = 128
	}

	if cfg.CodeRunCPUShares <= 0 {
		cfg.CodeRunCPUShares = 512
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
