package llm

import "fmt"

// Config selects and configures a provider adapter, sourced from arenad's
// environment configuration.
type Config struct {
	Provider        string // "mock" | "openai" | "anthropic" | "gemini"
	Model           string
	Temperature     float64
	MaxOutputTokens int
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GeminiAPIKey    string
	MockFixturePath string // optional YAML fixture file for the mock provider
}

// NewAdapter constructs the configured Adapter, wrapped with the standard
// retry policy. "mock" requires no credentials and is always available.
func NewAdapter(cfg Config) (Adapter, error) {
	var base Adapter
	switch cfg.Provider {
	case "", "mock":
		if cfg.MockFixturePath != "" {
			repo, err := NewFileFixtureRepository(cfg.MockFixturePath)
			if err != nil {
				return nil, fmt.Errorf("llm: load mock fixtures: %w", err)
			}
			base = NewMockAdapterWithRepository(repo)
			break
		}
		base = NewMockAdapter()
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("llm: OPENAI_API_KEY is required for provider %q", cfg.Provider)
		}
		base = NewOpenAIAdapter(cfg.Model, cfg.Temperature, cfg.MaxOutputTokens, cfg.OpenAIAPIKey)
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("llm: ANTHROPIC_API_KEY is required for provider %q", cfg.Provider)
		}
		base = NewAnthropicAdapter(cfg.Model, cfg.Temperature, cfg.MaxOutputTokens, cfg.AnthropicAPIKey)
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("llm: GEMINI_API_KEY is required for provider %q", cfg.Provider)
		}
		base = NewGeminiAdapter(cfg.Model, cfg.Temperature, cfg.MaxOutputTokens, cfg.GeminiAPIKey)
	default:
		return nil, fmt.Errorf("llm: unsupported provider %q", cfg.Provider)
	}
	return NewRetryingAdapter(base), nil
}
