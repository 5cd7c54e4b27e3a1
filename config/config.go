package config

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/viper"
)

type Config struct {
	Environment       string `mapstructure:"GRS_ENVIRONMENT"`
	ServerName        string `mapstructure:"GRS_SERVER_NAME"`
	ServerAddress     string `mapstructure:"GRS_SERVER_BIND_ADDR"`
	ServerReadTimeout int16  `mapstructure:"GRS_SERVER_READ_TIMEOUT"`
	LogFormat         string `mapstructure:"GRS_LOG_FORMAT"` // text or json
	LogLevel          string `mapstructure:"GRS_LOG_LEVEL"`  // debug, info, warn, error
	RateLimitMax      int    `mapstructure:"GRS_RATE_LIMIT_MAX"`
	RateLimitWindow   int    `mapstructure:"GRS_RATE_LIMIT_WINDOW"`

	OtlpEndpoint   string `mapstructure:"GRS_OTLP_ENDPOINT"`
	JaegerEndpoint string `mapstructure:"GRS_JAEGER_ENDPOINT"`

	// OpenAI Configuration
	OpenAIAPIKey          string  `mapstructure:"GRS_OPENAI_API_KEY"`
	OpenAIModel           string  `mapstructure:"GRS_OPENAI_MODEL"`
	OpenAIBaseURL         string  `mapstructure:"GRS_OPENAI_BASE_URL"`
	OpenAIMaxTokens       int     `mapstructure:"GRS_OPENAI_MAX_TOKENS"`
	OpenAITemperature     float64 `mapstructure:"GRS_OPENAI_TEMPERATURE"`
	OpenAIUseResponsesAPI bool    `mapstructure:"GRS_OPENAI_USE_RESPONSES_API"`
	OpenAIStore           bool    `mapstructure:"GRS_OPENAI_STORE"`
	OpenAIReasoningEffort string  `mapstructure:"GRS_OPENAI_REASONING_EFFORT"`

	// Prompt templates
	PromptsDir string `mapstructure:"GRS_PROMPTS_DIR"`

	// Semantic comparison
	ConfidenceThreshold  float64 `mapstructure:"GRS_CONFIDENCE_THRESHOLD"`
	CacheTimeoutHours    int     `mapstructure:"GRS_CACHE_TIMEOUT_HOURS"`
	SemanticComparison   bool    `mapstructure:"GRS_SEMANTIC_COMPARISON"`
	EvaluationTimeoutSec int     `mapstructure:"GRS_EVALUATION_TIMEOUT_SEC"`
}

// DefaultConfig generates a config with sane defaults.
func DefaultConfig() Config {
	return Config{
		Environment:       "local",
		ServerAddress:     "0.0.0.0:3001",
		ServerReadTimeout: 60,
		LogFormat:         "text",
		LogLevel:          "info",
		RateLimitMax:      100,
		RateLimitWindow:   30,

		OtlpEndpoint:   "localhost:4317",
		JaegerEndpoint: "http://localhost:14268/api/traces",

		// OpenAI defaults
		OpenAIAPIKey:          "",
		OpenAIModel:           "gpt-5-nano",
		OpenAIBaseURL:         "https://api.openai.com/v1",
		OpenAIMaxTokens:       300,
		OpenAITemperature:     0.1,
		OpenAIUseResponsesAPI: true,
		OpenAIStore:           true,
		OpenAIReasoningEffort: "medium",

		PromptsDir: "prompts",

		ConfidenceThreshold:  0.8,
		CacheTimeoutHours:    24,
		SemanticComparison:   true,
		EvaluationTimeoutSec: 30,
	}
}

// LoadConfig will attempt to load a configuration from the default file
// location and fall back to environment variables.
func LoadConfig() (Config, error) {
	envFile := os.Getenv("GRS_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}

	var cfg Config
	var err error

	if _, err = os.Stat(envFile); errors.Is(err, os.ErrNotExist) {
		cfg, err = ConfigFromEnvironment()
	} else {
		cfg, err = ConfigFromFile(envFile)
	}

	return cfg, err
}

// ConfigFromEnvironment will look for the specified configuration from
// environment variables. See package docs for the available variables.
func ConfigFromEnvironment() (config Config, err error) {
	config = DefaultConfig()
	viper.SetDefault("GRS_ENVIRONMENT", config.Environment)
	viper.SetDefault("GRS_SERVER_BIND_ADDR", config.ServerAddress)
	viper.SetDefault("GRS_SERVER_READ_TIMEOUT", config.ServerReadTimeout)
	viper.SetDefault("GRS_LOG_LEVEL", config.LogLevel)
	viper.SetDefault("GRS_LOG_FORMAT", config.LogFormat)
	viper.SetDefault("GRS_RATE_LIMIT_MAX", config.RateLimitMax)
	viper.SetDefault("GRS_RATE_LIMIT_WINDOW", config.RateLimitWindow)
	viper.SetDefault("GRS_OTLP_ENDPOINT", config.OtlpEndpoint)
	viper.SetDefault("GRS_JAEGER_ENDPOINT", config.JaegerEndpoint)
	viper.SetDefault("GRS_OPENAI_API_KEY", config.OpenAIAPIKey)
	viper.SetDefault("GRS_OPENAI_MODEL", config.OpenAIModel)
	viper.SetDefault("GRS_OPENAI_BASE_URL", config.OpenAIBaseURL)
	viper.SetDefault("GRS_OPENAI_MAX_TOKENS", config.OpenAIMaxTokens)
	viper.SetDefault("GRS_OPENAI_TEMPERATURE", config.OpenAITemperature)
	viper.SetDefault("GRS_OPENAI_USE_RESPONSES_API", config.OpenAIUseResponsesAPI)
	viper.SetDefault("GRS_OPENAI_STORE", config.OpenAIStore)
	viper.SetDefault("GRS_OPENAI_REASONING_EFFORT", config.OpenAIReasoningEffort)
	viper.SetDefault("GRS_PROMPTS_DIR", config.PromptsDir)
	viper.SetDefault("GRS_CONFIDENCE_THRESHOLD", config.ConfidenceThreshold)
	viper.SetDefault("GRS_CACHE_TIMEOUT_HOURS", config.CacheTimeoutHours)
	viper.SetDefault("GRS_SEMANTIC_COMPARISON", config.SemanticComparison)
	viper.SetDefault("GRS_EVALUATION_TIMEOUT_SEC", config.EvaluationTimeoutSec)

	viper.AutomaticEnv()
	err = viper.Unmarshal(&config)
	return
}

// ConfigFromFile will look for the specified configuration file in the
// current directory and initialize a Config from it. Environment variables
// override values found in the file.
func ConfigFromFile(f string) (config Config, err error) {
	if config, err = ConfigFromEnvironment(); err != nil {
		return
	}

	viper.AddConfigPath(".")
	viper.SetConfigFile(f)
	viper.SetConfigType("env")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)

	return
}

// Fiber initializes and returns a Fiber config based on server config values.
func (c Config) Fiber() fiber.Config {
	return fiber.Config{
		ReadTimeout: time.Second * time.Duration(c.ServerReadTimeout),
		BodyLimit:   10 * 1024 * 1024, // 10MB
	}
}

// GetSlogLevel converts the string log level to slog.Level.
func (c Config) GetSlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetOpenAIConfig converts config values to OpenAI configuration struct.
func (c Config) GetOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		APIKey:          c.OpenAIAPIKey,
		Model:           c.OpenAIModel,
		BaseURL:         c.OpenAIBaseURL,
		MaxTokens:       c.OpenAIMaxTokens,
		Temperature:     c.OpenAITemperature,
		UseResponsesAPI: c.OpenAIUseResponsesAPI,
		Store:           c.OpenAIStore,
		ReasoningEffort: c.OpenAIReasoningEffort,
	}
}

// OpenAIConfig holds OpenAI client configuration
type OpenAIConfig struct {
	APIKey          string
	Model           string // e.g., "gpt-5", "gpt-5-nano"
	BaseURL         string // for switching to local models later
	MaxTokens       int
	Temperature     float64
	UseResponsesAPI bool   // Use new Responses API instead of Chat Completions
	Store           bool   // Enable stateful context for better reasoning
	ReasoningEffort string // "low", "medium", "high" for GPT-5 reasoning
}

// GetSemanticConfig converts config values to the semantic comparison
// settings consumed by the comparator and evaluator.
func (c Config) GetSemanticConfig() SemanticConfig {
	return SemanticConfig{
		ConfidenceThreshold: c.ConfidenceThreshold,
		CacheTimeout:        time.Duration(c.CacheTimeoutHours) * time.Hour,
		Enabled:             c.SemanticComparison,
		EvaluationTimeout:   time.Duration(c.EvaluationTimeoutSec) * time.Second,
	}
}

// SemanticConfig holds semantic comparison settings.
type SemanticConfig struct {
	ConfidenceThreshold float64
	CacheTimeout        time.Duration
	Enabled             bool
	EvaluationTimeout   time.Duration
}
