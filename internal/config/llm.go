package config

import (
	"fmt"
	"time"
)

// Supported reasoning providers.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

// ValidProviders lists all supported LLM providers.
var ValidProviders = []string{ProviderOpenAI, ProviderOllama, ProviderGemini}

// LLMConfig configures the reasoning service behind both passes.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai, ollama, gemini
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`

	// Per-pass model selection. The subconscious runs on a cheaper model.
	SubconsciousModel     string  `yaml:"subconscious_model"`
	ConsciousModel        string  `yaml:"conscious_model"`
	SubconsciousMaxTokens int     `yaml:"subconscious_max_tokens"`
	ConsciousMaxTokens    int     `yaml:"conscious_max_tokens"`
	ConsciousTemperature  float64 `yaml:"conscious_temperature"`
}

// GetTimeout returns the per-call timeout as a duration.
func (l LLMConfig) GetTimeout() time.Duration {
	return parseDuration(l.Timeout, 60*time.Second)
}

func (l LLMConfig) validate() error {
	for _, p := range ValidProviders {
		if l.Provider == p {
			return nil
		}
	}
	return fmt.Errorf("invalid LLM provider: %s (valid: %v)", l.Provider, ValidProviders)
}

// RequiresAPIKey reports whether the provider needs a key to run.
func (l LLMConfig) RequiresAPIKey() bool {
	return l.Provider == ProviderOpenAI || l.Provider == ProviderGemini
}
