package mind

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"mindloop/internal/articulation"
	"mindloop/internal/llm"
	"mindloop/internal/logging"
	"mindloop/internal/types"
)

// DefaultImportance is assigned to added memories that carry none.
const DefaultImportance = 0.5

// rawPreviewLen bounds the raw text quoted in a fallback decision's notes.
const rawPreviewLen = 200

// Conscious is the ConsciousPort backed by an llm.Client.
type Conscious struct {
	client llm.Client
	cfg    Config
	parser *articulation.ResponseProcessor
}

// NewConscious creates the conscious pass.
func NewConscious(client llm.Client, cfg Config) *Conscious {
	return &Conscious{
		client: client,
		cfg:    cfg,
		parser: articulation.NewResponseProcessor(),
	}
}

// Decide runs one conscious call and validates the Decision.
func (c *Conscious) Decide(ctx context.Context, in ConsciousInput) (types.Decision, error) {
	timer := logging.StartTimer(logging.CategoryConscious, "Decide")
	defer timer.Stop()

	system, user, err := BuildConsciousPrompt(in)
	if err != nil {
		return types.Decision{}, err
	}

	opts := []llm.CallOption{llm.WithTemperature(c.cfg.ConsciousTemperature), llm.WithJSON()}
	if c.cfg.ConsciousModel != "" {
		opts = append(opts, llm.WithModel(c.cfg.ConsciousModel))
	}
	if c.cfg.ConsciousMaxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(c.cfg.ConsciousMaxTokens))
	}

	raw, err := c.client.CompleteWithSystem(ctx, system, user, opts...)
	if err != nil {
		logging.Get(logging.CategoryConscious).Warn("tick %d: reasoning call failed: %v", in.Tick, err)
		return types.Decision{}, fmt.Errorf("conscious call failed: %w", err)
	}

	d, err := ParseDecision(c.parser, raw)
	if err != nil {
		logging.Get(logging.CategoryConscious).Warn("tick %d: %v", in.Tick, err)
		return types.Decision{}, err
	}
	logging.Conscious("tick %d: action=%s message_len=%d", in.Tick, d.Action, len(d.Message))
	return d, nil
}

// =============================================================================
// WIRE FORMAT
// =============================================================================

type consciousWire struct {
	Action      string `json:"action"`
	UserMessage *struct {
		Content *string `json:"content"`
	} `json:"user_message"`
	Internal *internalWire `json:"internal"`
}

type internalWire struct {
	GuidanceDelta *types.GuidanceDelta `json:"guidance_delta"`
	MemoryUpdates json.RawMessage      `json:"memory_updates"`
	GoalUpdates   []goalUpdateWire     `json:"goal_updates"`
	Notes         string               `json:"notes"`
}

type memoryItemWire struct {
	ID         string   `json:"id"`
	Type       string   `json:"type"`
	Content    string   `json:"content"`
	Importance *float64 `json:"importance"`
}

// memoryPatchWire accepts both {"id", "patch": {...}} and a flat patch.
type memoryPatchWire struct {
	types.MemoryPatch
	Patch *types.MemoryPatch `json:"patch"`
}

type memoryUpdatesWire struct {
	Add    []memoryItemWire  `json:"add"`
	Update []memoryPatchWire `json:"update"`
	Delete []string          `json:"delete"`
}

// goalUpdateWire accepts a flat patch keyed by goal_id, or a nested "patch".
type goalUpdateWire struct {
	GoalID string `json:"goal_id"`
	types.GoalPatch
	Patch *types.GoalPatch `json:"patch"`
}

// ParseDecision validates raw model output into a Decision. Absent fields
// take their defaults: action STAY_SILENT, empty updates, zero delta. A nil
// parser uses the shared one.
func ParseDecision(parser *articulation.ResponseProcessor, raw string) (types.Decision, error) {
	var wire consciousWire
	var err error
	if parser != nil {
		_, err = parser.Process(raw, &wire)
	} else {
		err = articulation.Decode(raw, &wire)
	}
	if err != nil {
		return types.Decision{}, err
	}

	d := types.SilentDecision("")
	d.Action = types.ParseAction(strings.ToUpper(strings.TrimSpace(wire.Action)))
	if wire.UserMessage != nil && wire.UserMessage.Content != nil {
		d.Message = strings.TrimSpace(*wire.UserMessage.Content)
	}

	in := wire.Internal
	if in == nil {
		return d, nil
	}
	d.Notes = strings.TrimSpace(in.Notes)
	if in.GuidanceDelta != nil {
		d.GuidanceDelta = *in.GuidanceDelta
	}
	d.GuidanceDelta.FocusTagsAdd = nonNil(d.GuidanceDelta.FocusTagsAdd)
	d.GuidanceDelta.FocusTagsRemove = nonNil(d.GuidanceDelta.FocusTagsRemove)

	mu, err := parseMemoryUpdates(in.MemoryUpdates)
	if err != nil {
		// A malformed memory block does not void the rest of the decision.
		logging.Get(logging.CategoryConscious).Warn("ignoring malformed memory_updates: %v", err)
	} else {
		d.MemoryUpdates = mu
	}

	for _, gw := range in.GoalUpdates {
		id := strings.TrimSpace(gw.GoalID)
		if id == "" {
			continue
		}
		patch := gw.GoalPatch
		if gw.Patch != nil {
			patch = *gw.Patch
		}
		d.GoalUpdates = append(d.GoalUpdates, types.GoalUpdate{GoalID: id, Patch: patch})
	}
	return d, nil
}

// parseMemoryUpdates accepts the {add, update, delete} object, or a bare list
// which is treated as additions.
func parseMemoryUpdates(raw json.RawMessage) (types.MemoryUpdates, error) {
	out := types.MemoryUpdates{Add: []types.MemoryItem{}, Update: []types.MemoryPatch{}, Delete: []string{}}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return out, nil
	}

	var wire memoryUpdatesWire
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &wire.Add); err != nil {
			return out, err
		}
	} else if err := json.Unmarshal(raw, &wire); err != nil {
		return out, err
	}

	for _, w := range wire.Add {
		importance := DefaultImportance
		if w.Importance != nil {
			importance = types.Clamp01(*w.Importance)
		}
		out.Add = append(out.Add, types.MemoryItem{
			ID:         strings.TrimSpace(w.ID),
			Type:       types.MemoryType(strings.ToLower(strings.TrimSpace(w.Type))),
			Content:    w.Content,
			Importance: importance,
		})
	}
	for _, w := range wire.Update {
		p := w.MemoryPatch
		if w.Patch != nil {
			p = *w.Patch
			p.ID = w.ID
		}
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" {
			continue
		}
		out.Update = append(out.Update, p)
	}
	for _, id := range wire.Delete {
		if id = strings.TrimSpace(id); id != "" {
			out.Delete = append(out.Delete, id)
		}
	}
	return out, nil
}

// FallbackDecision is the STAY_SILENT decision substituted for a failed pass.
// The notes quote the start of the raw text when the cause is a ParseFault.
func FallbackDecision(tick int64, cause error) types.Decision {
	if pf, ok := articulation.AsParseFault(cause); ok {
		return types.SilentDecision(fmt.Sprintf("Failed to parse conscious JSON at tick %d. Raw: %s",
			tick, truncateRunes(rawPreviewLen, pf.Raw)))
	}
	return types.SilentDecision(fmt.Sprintf("Conscious pass unavailable at tick %d: %v", tick, cause))
}

var _ ConsciousPort = (*Conscious)(nil)
