package config

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level" json:"level,omitempty"`                     // debug, info, warn, error
	DebugMode  bool            `yaml:"debug_mode" json:"debug_mode,omitempty"`           // Master toggle - false = no file logs
	JSONFormat bool            `yaml:"json_format" json:"json_format,omitempty"`         // JSON lines instead of console text
	Categories map[string]bool `yaml:"categories,omitempty" json:"categories,omitempty"` // Per-category toggles
}

// IsCategoryEnabled returns whether logging is enabled for a category.
// Returns false if debug_mode is false.
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	if !c.DebugMode {
		return false
	}
	if c.Categories == nil {
		return true
	}
	enabled, exists := c.Categories[category]
	if !exists {
		return true
	}
	return enabled
}
