package types

// Action is the conscious pass's speak/silence verdict.
type Action string

const (
	ActionSpeak      Action = "SPEAK"
	ActionStaySilent Action = "STAY_SILENT"
)

// ParseAction maps free text to an Action. Anything unrecognized is silence.
func ParseAction(s string) Action {
	if Action(s) == ActionSpeak {
		return ActionSpeak
	}
	return ActionStaySilent
}

// GuidanceDelta is the conscious pass's adjustment to subconscious steering.
type GuidanceDelta struct {
	FocusTagsAdd          []string `json:"focus_tags_add"`
	FocusTagsRemove       []string `json:"focus_tags_remove"`
	TemperatureAdjustment float64  `json:"temperature_adjustment"`
}

// Decision is the conscious pass's per-tick output. It is consumed once and
// never persisted; only its effects are.
type Decision struct {
	Action        Action        `json:"action"`
	Message       string        `json:"message,omitempty"`
	GuidanceDelta GuidanceDelta `json:"guidance_delta"`
	MemoryUpdates MemoryUpdates `json:"memory_updates"`
	GoalUpdates   []GoalUpdate  `json:"goal_updates"`
	Notes         string        `json:"notes,omitempty"`
}

// Speaks reports whether the decision produces an outbound message.
func (d Decision) Speaks() bool {
	return d.Action == ActionSpeak && d.Message != ""
}

// SilentDecision returns a STAY_SILENT decision with empty effects.
func SilentDecision(notes string) Decision {
	return Decision{
		Action: ActionStaySilent,
		MemoryUpdates: MemoryUpdates{
			Add:    []MemoryItem{},
			Update: []MemoryPatch{},
			Delete: []string{},
		},
		GoalUpdates: []GoalUpdate{},
		Notes:       notes,
	}
}
