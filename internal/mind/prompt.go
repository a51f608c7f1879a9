package mind

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"mindloop/internal/governor"
	"mindloop/internal/types"
)

// promptFS holds the prompt templates baked into the binary. Each file defines
// a "system" and a "context" template.
//
//go:embed prompts/*.tmpl
var promptFS embed.FS

var promptFuncs = template.FuncMap{
	"join":  strings.Join,
	"trunc": truncateRunes,
}

var (
	subconsciousTmpl = template.Must(template.New("subconscious.tmpl").Funcs(promptFuncs).ParseFS(promptFS, "prompts/subconscious.tmpl"))
	consciousTmpl    = template.Must(template.New("conscious.tmpl").Funcs(promptFuncs).ParseFS(promptFS, "prompts/conscious.tmpl"))
)

// recentThoughtsInPrompt bounds how much thought history the subconscious sees.
const recentThoughtsInPrompt = 5

// SystemConstraints describe what the conscious pass may do in one tick.
type SystemConstraints struct {
	MaxActionsPerTick  int      `json:"max_actions_per_tick"`
	AllowedActionTypes []string `json:"allowed_action_types"`
	SafetyLevel        string   `json:"safety_level"`
}

// DefaultConstraints returns the constraints sent on every conscious call.
func DefaultConstraints() SystemConstraints {
	return SystemConstraints{
		MaxActionsPerTick:  3,
		AllowedActionTypes: []string{"respond_to_user", "update_memory", "update_goal", "log_internal"},
		SafetyLevel:        "normal",
	}
}

type subconsciousPrompt struct {
	Tick      int64
	FocusTags []string
	Style     string
	MaxIdeas  int
	SeedWords []string
	Goals     []types.Goal
	Percepts  []types.Percept
	Thoughts  []types.Thought
}

type consciousPrompt struct {
	Tick        int64
	Speech      types.SpeechState
	Advice      governor.Advice
	Constraints SystemConstraints
	Goals       []types.Goal
	Percepts    []types.Percept
	Memory      []types.MemoryItem
	Thoughts    []types.Thought
}

// BuildSubconsciousPrompt renders the system and user prompts for a
// subconscious call.
func BuildSubconsciousPrompt(in SubconsciousInput, seedWords []string) (system, user string, err error) {
	thoughts := in.RecentThoughts
	if len(thoughts) > recentThoughtsInPrompt {
		thoughts = thoughts[len(thoughts)-recentThoughtsInPrompt:]
	}
	style := in.Guidance.Style
	if style == "" {
		style = types.DefaultStyle
	}
	maxIdeas := in.Guidance.MaxIdeas
	if maxIdeas <= 0 {
		maxIdeas = types.DefaultMaxIdeas
	}
	data := subconsciousPrompt{
		Tick:      in.Tick,
		FocusTags: in.Guidance.FocusTags,
		Style:     style,
		MaxIdeas:  maxIdeas,
		SeedWords: seedWords,
		Goals:     in.Goals,
		Percepts:  in.Percepts,
		Thoughts:  thoughts,
	}
	return render(subconsciousTmpl, data)
}

// BuildConsciousPrompt renders the system and user prompts for a conscious call.
func BuildConsciousPrompt(in ConsciousInput) (system, user string, err error) {
	data := consciousPrompt{
		Tick:        in.Tick,
		Speech:      in.Speech,
		Advice:      in.Advice,
		Constraints: in.Constraints,
		Goals:       in.Goals,
		Percepts:    in.Percepts,
		Memory:      in.Memory,
		Thoughts:    in.Subconscious.Thoughts,
	}
	if data.Constraints.MaxActionsPerTick == 0 {
		data.Constraints = DefaultConstraints()
	}
	return render(consciousTmpl, data)
}

func render(t *template.Template, data any) (string, string, error) {
	var sys, ctx strings.Builder
	if err := t.ExecuteTemplate(&sys, "system", data); err != nil {
		return "", "", fmt.Errorf("failed to render system prompt: %w", err)
	}
	if err := t.ExecuteTemplate(&ctx, "context", data); err != nil {
		return "", "", fmt.Errorf("failed to render context prompt: %w", err)
	}
	return sys.String(), ctx.String(), nil
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(n int, s string) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
