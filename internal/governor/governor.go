// Package governor tracks conversational cadence for the heartbeat.
//
// The governor only keeps books. It records when the user last spoke and when
// the mind last spoke, counts unsolicited speech, and derives advice for the
// conscious pass. It never overrides a decision.
package governor

import (
	"fmt"
	"time"

	"mindloop/internal/logging"
	"mindloop/internal/types"
)

// Advice thresholds surfaced to the conscious pass.
const (
	PreferSilenceUnsolicited = 3 // unsolicited_speak_count at or above this
	PreferSilenceIdleTicks   = 5 // ticks since user input above this
)

// Governor holds speech-cadence policy. Its state lives in types.SpeechState,
// which the scheduler owns and persists.
type Governor struct {
	gap int64
}

// New returns a Governor that treats speech as unsolicited when more than gap
// ticks have passed since the last user input.
func New(gap int64) *Governor {
	if gap < 0 {
		gap = 0
	}
	return &Governor{gap: gap}
}

// ObservePercepts is the pre-reasoning update. If any percept in the window
// came from the user, last_user_tick becomes tick and last_user_wall_time
// becomes now. The newest user percept timestamp feeds last_user_input_time.
// None of the fields ever moves backward. Reports whether a user percept was
// in the window.
func (g *Governor) ObservePercepts(s *types.SpeechState, tick int64, now time.Time, percepts []types.Percept) bool {
	seen := false
	for _, p := range percepts {
		if !p.FromUser() {
			continue
		}
		seen = true
		if p.Timestamp.After(s.LastUserInputTime) {
			s.LastUserInputTime = p.Timestamp
		}
	}
	if !seen {
		return false
	}

	if tick > s.LastUserTick {
		s.LastUserTick = tick
	}
	if now.After(s.LastUserWallTime) {
		s.LastUserWallTime = now
	}
	logging.GovernorDebug("tick %d: user percept in window, last_user_tick=%d", tick, s.LastUserTick)
	return true
}

// RecordDecision is the post-reasoning update. Silence changes nothing.
// Speech stamps last_speak_tick and, when unsolicited, bumps the counter.
// Reports whether the speech counted as unsolicited.
func (g *Governor) RecordDecision(s *types.SpeechState, tick int64, action types.Action) bool {
	if action != types.ActionSpeak {
		return false
	}
	if tick > s.LastSpeakTick {
		s.LastSpeakTick = tick
	}
	if !g.Unsolicited(*s, tick) {
		return false
	}
	s.UnsolicitedSpeakCount++
	logging.Governor("tick %d: unsolicited speech (count=%d)", tick, s.UnsolicitedSpeakCount)
	return true
}

// Unsolicited reports whether speaking at tick would count as unsolicited.
// A mind the user has never addressed (last_user_tick 0) is always unsolicited.
func (g *Governor) Unsolicited(s types.SpeechState, tick int64) bool {
	return s.LastUserTick == 0 || tick-s.LastUserTick > g.gap
}

// Advice is derived cadence information for the conscious pass.
type Advice struct {
	TicksSinceUser  int64  `json:"ticks_since_user"`
	TicksSinceSpeak int64  `json:"ticks_since_speak"`
	PreferSilence   bool   `json:"prefer_silence"`
	Reason          string `json:"reason,omitempty"`
}

// Advise summarizes s at tick. PreferSilence is a hint only.
func (g *Governor) Advise(s types.SpeechState, tick int64) Advice {
	a := Advice{
		TicksSinceUser:  tick - s.LastUserTick,
		TicksSinceSpeak: tick - s.LastSpeakTick,
	}
	switch {
	case s.SilenceUntilTick >= tick:
		a.PreferSilence = true
		a.Reason = fmt.Sprintf("silence window until tick %d", s.SilenceUntilTick)
	case s.UnsolicitedSpeakCount >= PreferSilenceUnsolicited:
		a.PreferSilence = true
		a.Reason = fmt.Sprintf("spoke unsolicited %d times", s.UnsolicitedSpeakCount)
	case a.TicksSinceUser > PreferSilenceIdleTicks:
		a.PreferSilence = true
		a.Reason = fmt.Sprintf("%d ticks since user input", a.TicksSinceUser)
	}
	return a
}
