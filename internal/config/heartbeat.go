package config

import (
	"fmt"
	"time"
)

// HeartbeatConfig controls tick cadence and the bounded context windows.
type HeartbeatConfig struct {
	Period         string `yaml:"period"`          // e.g. "1s"
	IdleTimeout    string `yaml:"idle_timeout"`    // shutdown after this long without user input
	PerceptWindow  int    `yaml:"percept_window"`  // recent percepts per tick
	GoalWindow     int    `yaml:"goal_window"`     // top-K active goals
	MemoryWindow   int    `yaml:"memory_window"`   // top-K recent memory items
	ThoughtWindow  int    `yaml:"thought_window"`  // recent_thoughts cap
	UnsolicitedGap int64  `yaml:"unsolicited_gap"` // speech counts as unsolicited when tick - last_user_tick > gap
}

// GetPeriod returns the tick period as a duration.
func (h HeartbeatConfig) GetPeriod() time.Duration {
	return parseDuration(h.Period, time.Second)
}

// GetIdleTimeout returns the idle shutdown threshold as a duration.
func (h HeartbeatConfig) GetIdleTimeout() time.Duration {
	return parseDuration(h.IdleTimeout, 30*time.Second)
}

func (h HeartbeatConfig) validate() error {
	if d, err := time.ParseDuration(h.Period); err != nil || d <= 0 {
		return fmt.Errorf("heartbeat.period must be a positive duration, got %q", h.Period)
	}
	if d, err := time.ParseDuration(h.IdleTimeout); err != nil || d <= 0 {
		return fmt.Errorf("heartbeat.idle_timeout must be a positive duration, got %q", h.IdleTimeout)
	}
	if h.PerceptWindow < 1 || h.GoalWindow < 1 || h.MemoryWindow < 1 || h.ThoughtWindow < 1 {
		return fmt.Errorf("heartbeat windows must be >= 1")
	}
	if h.UnsolicitedGap < 0 {
		return fmt.Errorf("heartbeat.unsolicited_gap must be >= 0")
	}
	return nil
}

// GuidanceConfig bounds the subconscious steering parameters.
type GuidanceConfig struct {
	MinTemperature     float64 `yaml:"min_temperature"`
	MaxTemperature     float64 `yaml:"max_temperature"`
	DefaultTemperature float64 `yaml:"default_temperature"`
	MaxIdeas           int     `yaml:"max_ideas"`
	Style              string  `yaml:"style"`
	SeedWords          int     `yaml:"seed_words"` // random words sampled per tick
}

func (g GuidanceConfig) validate() error {
	if g.MinTemperature > g.MaxTemperature {
		return fmt.Errorf("guidance temperature bounds inverted: [%v, %v]", g.MinTemperature, g.MaxTemperature)
	}
	if g.MaxIdeas < 1 {
		return fmt.Errorf("guidance.max_ideas must be >= 1")
	}
	return nil
}

// SpeechConfig carries the externally configured speech mode.
type SpeechConfig struct {
	Mode string `yaml:"mode"` // passive, cohost, teacher
}
