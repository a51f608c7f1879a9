// Package mind implements the two reasoning passes of the heartbeat: a
// divergent subconscious pass that produces candidate thoughts and a governing
// conscious pass that decides whether to speak and how to update state.
package mind

import (
	"context"

	"mindloop/internal/config"
	"mindloop/internal/governor"
	"mindloop/internal/types"
)

// =============================================================================
// PORTS
// =============================================================================

// SubconsciousInput is the context for one subconscious call.
type SubconsciousInput struct {
	Tick           int64
	Percepts       []types.Percept
	Goals          []types.Goal
	RecentThoughts []types.Thought
	Guidance       types.Guidance
}

// Metrics summarize a thought batch.
type Metrics struct {
	MeanNovelty    float64 `json:"mean_novelty"`
	MeanConfidence float64 `json:"mean_confidence"`
}

// SubconsciousOutput is a validated thought batch.
type SubconsciousOutput struct {
	Thoughts  []types.Thought `json:"thoughts"`
	RawStream string          `json:"raw_stream"`
	Metrics   Metrics         `json:"metrics"`
}

// ConsciousInput is the context for one conscious call.
type ConsciousInput struct {
	Tick         int64
	Subconscious SubconsciousOutput
	Percepts     []types.Percept
	Goals        []types.Goal
	Memory       []types.MemoryItem
	Speech       types.SpeechState
	Advice       governor.Advice
	Constraints  SystemConstraints
}

// SubconsciousPort generates candidate thoughts. Errors are either transport
// failures or an *articulation.ParseFault.
type SubconsciousPort interface {
	Generate(ctx context.Context, in SubconsciousInput) (SubconsciousOutput, error)
}

// ConsciousPort produces the per-tick Decision.
type ConsciousPort interface {
	Decide(ctx context.Context, in ConsciousInput) (types.Decision, error)
}

// =============================================================================
// CONFIG
// =============================================================================

// Config selects models and limits for both passes.
type Config struct {
	SubconsciousModel     string
	SubconsciousMaxTokens int
	SeedWords             int

	ConsciousModel       string
	ConsciousMaxTokens   int
	ConsciousTemperature float64
}

// ConfigFrom extracts the pass settings from the application config.
func ConfigFrom(c *config.Config) Config {
	return Config{
		SubconsciousModel:     c.LLM.SubconsciousModel,
		SubconsciousMaxTokens: c.LLM.SubconsciousMaxTokens,
		SeedWords:             c.Guidance.SeedWords,
		ConsciousModel:        c.LLM.ConsciousModel,
		ConsciousMaxTokens:    c.LLM.ConsciousMaxTokens,
		ConsciousTemperature:  c.LLM.ConsciousTemperature,
	}
}
