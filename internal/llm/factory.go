package llm

import (
	"context"
	"fmt"

	"mindloop/internal/config"
	"mindloop/internal/logging"
)

// NewClient builds the Client for the configured provider. The default model
// is the subconscious model; the conscious pass overrides it per call.
func NewClient(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	timeout := cfg.GetTimeout()
	logging.Boot("Reasoning provider: %s", cfg.Provider)

	switch cfg.Provider {
	case config.ProviderOpenAI, "":
		oc := DefaultOpenAIConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
		if cfg.SubconsciousModel != "" {
			oc.Model = cfg.SubconsciousModel
		}
		oc.Timeout = timeout
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai: %w (set OPENAI_API_KEY)", ErrNoAPIKey)
		}
		return NewOpenAIClient(oc), nil

	case config.ProviderOllama:
		baseURL := cfg.BaseURL
		if baseURL == config.DefaultConfig().LLM.BaseURL {
			baseURL = DefaultOllamaURL
		}
		return NewOllamaClient(baseURL, cfg.SubconsciousModel, timeout), nil

	case config.ProviderGemini:
		gc := GeminiConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.SubconsciousModel,
			Timeout: timeout,
		}
		// The OpenAI default base URL is meaningless to the Gemini SDK.
		if cfg.BaseURL != "" && cfg.BaseURL != config.DefaultConfig().LLM.BaseURL {
			gc.BaseURL = cfg.BaseURL
		}
		return NewGeminiClient(ctx, gc)

	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
}
