package types

import "time"

// SpeechMode is the conversational posture, set by external configuration.
type SpeechMode string

const (
	ModePassive SpeechMode = "passive" // answer when addressed
	ModeCohost  SpeechMode = "cohost"  // answer, occasionally volunteer
	ModeTeacher SpeechMode = "teacher" // talkative, explains often
)

// Valid reports whether m is a known mode.
func (m SpeechMode) Valid() bool {
	switch m {
	case ModePassive, ModeCohost, ModeTeacher:
		return true
	}
	return false
}

// SpeechState is the speech governor's persisted bookkeeping.
// Tick fields use 0 to mean "never".
type SpeechState struct {
	Mode                  SpeechMode `json:"mode"`
	LastUserTick          int64      `json:"last_user_tick"`
	LastSpeakTick         int64      `json:"last_speak_tick"`
	UnsolicitedSpeakCount int        `json:"unsolicited_speak_count"`
	SilenceUntilTick      int64      `json:"silence_until_tick"`
	// LastUserWallTime is the clock time of the last tick that saw a user
	// percept in its window; zero means not initialized.
	LastUserWallTime time.Time `json:"last_user_wall_time"`
	// LastUserInputTime is the newest user percept timestamp seen. Idle
	// shutdown measures from it.
	LastUserInputTime time.Time `json:"last_user_input_time"`
}

// Guidance steers the subconscious pass.
type Guidance struct {
	FocusTags   []string `json:"focus_tags"`
	Temperature float64  `json:"temperature"`
	Style       string   `json:"style,omitempty"`
	MaxIdeas    int      `json:"max_ideas,omitempty"`
}

// Clone returns a deep copy.
func (g Guidance) Clone() Guidance {
	out := g
	out.FocusTags = append([]string{}, g.FocusTags...)
	return out
}

// ProcessState is the single mutable root owned by the scheduler between ticks.
type ProcessState struct {
	Tick           int64       `json:"tick"`
	RecentThoughts []Thought   `json:"recent_thoughts"`
	Guidance       Guidance    `json:"subconscious_guidance"`
	Speech         SpeechState `json:"speech_state"`
}

// Defaults used when no persisted state exists.
const (
	DefaultTemperature = 0.9
	DefaultStyle       = "free_association"
	DefaultMaxIdeas    = 5
)

// DefaultSpeechState returns a never-spoken, cohost-mode speech state.
func DefaultSpeechState() SpeechState {
	return SpeechState{Mode: ModeCohost}
}

// DefaultGuidance returns the starting subconscious guidance.
func DefaultGuidance() Guidance {
	return Guidance{
		FocusTags:   []string{},
		Temperature: DefaultTemperature,
		Style:       DefaultStyle,
		MaxIdeas:    DefaultMaxIdeas,
	}
}

// DefaultProcessState returns the state of a mind that has never ticked.
func DefaultProcessState() ProcessState {
	return ProcessState{
		Tick:           0,
		RecentThoughts: []Thought{},
		Guidance:       DefaultGuidance(),
		Speech:         DefaultSpeechState(),
	}
}

// AppendThoughts appends batch and keeps only the most recent limit entries.
func (s *ProcessState) AppendThoughts(batch []Thought, limit int) {
	s.RecentThoughts = append(s.RecentThoughts, batch...)
	if limit > 0 && len(s.RecentThoughts) > limit {
		trimmed := make([]Thought, limit)
		copy(trimmed, s.RecentThoughts[len(s.RecentThoughts)-limit:])
		s.RecentThoughts = trimmed
	}
}
