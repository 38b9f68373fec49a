// Package config reads arenad's environment-driven configuration. Parsing
// follows internal/logger's env-driven init() pattern (read with a default,
// override when set) and reuses pkg/httputil's constant-default style for
// the provider timeout.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/wbarena/arena/internal/llm"
	"github.com/wbarena/arena/pkg/httputil"
)

// Config is arenad's fully-resolved process configuration.
type Config struct {
	LLM             llm.Config
	ProviderTimeout time.Duration
	DBPath          string
	LogLevel        string
	HTTPAddr        string
	MetricsAddr     string
	RedisAddr       string
}

// Load reads Config from the process environment. LLM_PROVIDER defaults to
// "mock" so the service runs out of the box with no credentials.
func Load() (Config, error) {
	cfg := Config{
		LLM: llm.Config{
			Provider:        getEnv("LLM_PROVIDER", "mock"),
			Model:           getEnv("LLM_MODEL", ""),
			OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
			AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
			GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
			MockFixturePath: os.Getenv("MOCK_FIXTURES_PATH"),
		},
		ProviderTimeout: httputil.DefaultProviderTimeout,
		DBPath:          getEnv("WBA_DB_PATH", "arena.db"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		MetricsAddr:     getEnv("METRICS_ADDR", ":9090"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
	}

	temp, err := getEnvFloat("LLM_TEMPERATURE", 0.9)
	if err != nil {
		return Config{}, err
	}
	cfg.LLM.Temperature = temp

	maxTokens, err := getEnvInt("LLM_MAX_OUTPUT_TOKENS", 2048)
	if err != nil {
		return Config{}, err
	}
	cfg.LLM.MaxOutputTokens = maxTokens

	return cfg, nil
}

// UseRedis reports whether REDIS_ADDR was set, meaning convstate should use
// RedisStore instead of the in-memory fallback.
func (c Config) UseRedis() bool {
	return c.RedisAddr != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s=%q: %w", key, v, err)
	}
	return parsed, nil
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s=%q: %w", key, v, err)
	}
	return parsed, nil
}
