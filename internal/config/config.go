package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mindloop/internal/types"

	"gopkg.in/yaml.v3"
)

// WorkspaceDirName is the per-workspace state directory.
const WorkspaceDirName = ".mindloop"

// Config holds all mindloop configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Heartbeat cadence and context windows
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`

	// Subconscious steering bounds
	Guidance GuidanceConfig `yaml:"guidance"`

	// Speech governor posture
	Speech SpeechConfig `yaml:"speech"`

	// Reasoning service
	LLM LLMConfig `yaml:"llm"`

	// Durable state store
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "mindloop",
		Version: "0.3.0",

		Heartbeat: HeartbeatConfig{
			Period:         "1s",
			IdleTimeout:    "30s",
			PerceptWindow:  5,
			GoalWindow:     3,
			MemoryWindow:   10,
			ThoughtWindow:  20,
			UnsolicitedGap: 2,
		},

		Guidance: GuidanceConfig{
			MinTemperature:     0.1,
			MaxTemperature:     1.2,
			DefaultTemperature: types.DefaultTemperature,
			MaxIdeas:           types.DefaultMaxIdeas,
			Style:              types.DefaultStyle,
			SeedWords:          3,
		},

		Speech: SpeechConfig{
			Mode: string(types.ModeCohost),
		},

		LLM: LLMConfig{
			Provider:              "openai",
			BaseURL:               "https://api.openai.com/v1",
			Timeout:               "60s",
			SubconsciousModel:     "gpt-4.1-mini",
			ConsciousModel:        "gpt-4.1",
			SubconsciousMaxTokens: 400,
			ConsciousMaxTokens:    800,
			ConsciousTemperature:  0.2,
		},

		Store: StoreConfig{
			Driver:   DriverSQLite3,
			Path:     filepath.Join(WorkspaceDirName, "mindloop.db"),
			WordFile: filepath.Join(WorkspaceDirName, "random_words.txt"),
		},

		Logging: LoggingConfig{
			Level:      "info",
			DebugMode:  false,
			JSONFormat: false,
		},
	}
}

// DefaultConfigPath returns the config file location inside a workspace.
func DefaultConfigPath(workspace string) string {
	return filepath.Join(workspace, WorkspaceDirName, "config.yaml")
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Missing file means defaults.
		data = nil
	}

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && (c.LLM.Provider == "" || c.LLM.Provider == ProviderOpenAI) {
		c.LLM.APIKey = key
		c.LLM.Provider = ProviderOpenAI
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && c.LLM.Provider == ProviderGemini {
		c.LLM.APIKey = key
	}
	if url := os.Getenv("OLLAMA_URL"); url != "" && c.LLM.Provider == ProviderOllama {
		c.LLM.BaseURL = url
	}

	if path := os.Getenv("MINDLOOP_DB"); path != "" {
		c.Store.Path = path
	}
	if mode := os.Getenv("MINDLOOP_MODE"); mode != "" {
		c.Speech.Mode = mode
	}
}

// ResolvePaths anchors relative store and word-file paths at workspace.
func (c *Config) ResolvePaths(workspace string) {
	if workspace == "" {
		return
	}
	if c.Store.Path != "" && c.Store.Path != MemoryDSN && !filepath.IsAbs(c.Store.Path) {
		c.Store.Path = filepath.Join(workspace, c.Store.Path)
	}
	if c.Store.WordFile != "" && !filepath.IsAbs(c.Store.WordFile) {
		c.Store.WordFile = filepath.Join(workspace, c.Store.WordFile)
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Heartbeat.validate(); err != nil {
		return err
	}
	if err := c.Guidance.validate(); err != nil {
		return err
	}
	if !types.SpeechMode(c.Speech.Mode).Valid() {
		return fmt.Errorf("invalid speech mode: %q (valid: passive, cohost, teacher)", c.Speech.Mode)
	}
	if err := c.LLM.validate(); err != nil {
		return err
	}
	return c.Store.validate()
}

// parseDuration parses s, falling back to def when s is empty or malformed.
func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
