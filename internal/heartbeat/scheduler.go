// Package heartbeat drives the tick loop: once per period it gathers context,
// runs the subconscious and conscious passes in order, applies their effects,
// persists process state and enforces idle shutdown.
package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mindloop/internal/articulation"
	"mindloop/internal/config"
	"mindloop/internal/governor"
	"mindloop/internal/guidance"
	"mindloop/internal/logging"
	"mindloop/internal/mind"
	"mindloop/internal/types"
)

// ExitReason reports why Run returned.
type ExitReason string

const (
	ExitIdle      ExitReason = "idle_timeout"
	ExitCancelled ExitReason = "cancelled"
)

// ErrAbandoned is returned by Step when cancellation cut a reasoning call
// short. The tick's work is discarded.
var ErrAbandoned = errors.New("tick abandoned")

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Store is the slice of the durable store the scheduler reads and writes.
type Store interface {
	RecentPercepts(n int) ([]types.Percept, error)
	ActiveGoals(k int) ([]types.Goal, error)
	RecentMemory(k int) ([]types.MemoryItem, error)
	SaveProcessState(st types.ProcessState) error
}

// Reconciler applies a Decision's memory and goal effects.
type Reconciler interface {
	Apply(d types.Decision) error
}

// Deps are the scheduler's collaborators. Store, Subconscious, Conscious and
// Reconciler are required.
type Deps struct {
	Store        Store
	Subconscious mind.SubconsciousPort
	Conscious    mind.ConsciousPort
	Reconciler   Reconciler
	Speaker      articulation.Speaker
	Governor     *governor.Governor
	Feedback     *guidance.Feedback
	Clock        Clock

	// Modes delivers externally configured speech modes. May be nil.
	Modes <-chan types.SpeechMode
}

// Config is the tick cadence and context window sizes.
type Config struct {
	Period        time.Duration
	IdleTimeout   time.Duration
	PerceptWindow int
	GoalWindow    int
	MemoryWindow  int
	ThoughtWindow int
}

// ConfigFrom converts the YAML heartbeat section.
func ConfigFrom(h config.HeartbeatConfig) Config {
	return Config{
		Period:        h.GetPeriod(),
		IdleTimeout:   h.GetIdleTimeout(),
		PerceptWindow: h.PerceptWindow,
		GoalWindow:    h.GoalWindow,
		MemoryWindow:  h.MemoryWindow,
		ThoughtWindow: h.ThoughtWindow,
	}
}

// DefaultConfig mirrors config.DefaultConfig's heartbeat section.
func DefaultConfig() Config {
	return ConfigFrom(config.DefaultConfig().Heartbeat)
}

// =============================================================================
// SCHEDULER
// =============================================================================

// Scheduler owns ProcessState for the duration of Run.
type Scheduler struct {
	deps Deps
	cfg  Config
}

// New validates deps and fills in defaults for the optional ones.
func New(deps Deps, cfg Config) (*Scheduler, error) {
	switch {
	case deps.Store == nil:
		return nil, fmt.Errorf("heartbeat: store is required")
	case deps.Subconscious == nil || deps.Conscious == nil:
		return nil, fmt.Errorf("heartbeat: both reasoning ports are required")
	case deps.Reconciler == nil:
		return nil, fmt.Errorf("heartbeat: reconciler is required")
	}
	if deps.Speaker == nil {
		deps.Speaker = articulation.NewConsoleSpeaker(nil)
	}
	if deps.Governor == nil {
		deps.Governor = governor.New(config.DefaultConfig().Heartbeat.UnsolicitedGap)
	}
	if deps.Feedback == nil {
		g := config.DefaultConfig().Guidance
		deps.Feedback = guidance.NewFeedback(g.MinTemperature, g.MaxTemperature)
	}
	if deps.Clock == nil {
		deps.Clock = RealClock()
	}

	def := DefaultConfig()
	if cfg.Period <= 0 {
		cfg.Period = def.Period
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.PerceptWindow <= 0 {
		cfg.PerceptWindow = def.PerceptWindow
	}
	if cfg.GoalWindow <= 0 {
		cfg.GoalWindow = def.GoalWindow
	}
	if cfg.MemoryWindow <= 0 {
		cfg.MemoryWindow = def.MemoryWindow
	}
	if cfg.ThoughtWindow <= 0 {
		cfg.ThoughtWindow = def.ThoughtWindow
	}
	return &Scheduler{deps: deps, cfg: cfg}, nil
}

// Run ticks until idle shutdown or ctx cancellation. st is owned by the
// scheduler until Run returns; on return it holds the last completed tick and
// has been persisted exactly once more. An unset last_user_wall_time is
// initialized to now. Idle time counts from the later of that and the newest
// user input.
func (s *Scheduler) Run(ctx context.Context, st *types.ProcessState) (ExitReason, error) {
	if st.Speech.LastUserWallTime.IsZero() {
		st.Speech.LastUserWallTime = s.deps.Clock.Now()
	}
	if st.Speech.LastUserInputTime.Before(st.Speech.LastUserWallTime) {
		st.Speech.LastUserInputTime = st.Speech.LastUserWallTime
	}
	logging.Heartbeat("heartbeat starting at tick %d (period=%v idle_timeout=%v mode=%s)",
		st.Tick, s.cfg.Period, s.cfg.IdleTimeout, st.Speech.Mode)

	for {
		if ctx.Err() != nil {
			return s.shutdown(st, ExitCancelled)
		}
		s.drainModes(st)

		start := s.deps.Clock.Now()
		if idle := start.Sub(st.Speech.LastUserInputTime); idle > s.cfg.IdleTimeout {
			logging.Heartbeat("idle for %v (limit %v), shutting down", idle.Round(time.Millisecond), s.cfg.IdleTimeout)
			return s.shutdown(st, ExitIdle)
		}

		if err := s.Step(ctx, st, start); err != nil {
			if errors.Is(err, ErrAbandoned) {
				return s.shutdown(st, ExitCancelled)
			}
			logging.Get(logging.CategoryHeartbeat).Error("tick %d: %v", st.Tick, err)
		}

		// Fixed interval from the cycle start; an overrun starts the next cycle at once.
		wait := s.cfg.Period - s.deps.Clock.Now().Sub(start)
		if wait < 0 {
			logging.HeartbeatDebug("tick %d overran the period by %v", st.Tick, -wait)
			wait = 0
		}
		select {
		case <-ctx.Done():
			return s.shutdown(st, ExitCancelled)
		case <-s.deps.Clock.After(wait):
		}
	}
}

func (s *Scheduler) shutdown(st *types.ProcessState, reason ExitReason) (ExitReason, error) {
	logging.Heartbeat("heartbeat stopping at tick %d: %s", st.Tick, reason)
	if err := s.deps.Store.SaveProcessState(*st); err != nil {
		logging.Get(logging.CategoryHeartbeat).Error("final save failed: %v", err)
		return reason, fmt.Errorf("final save failed: %w", err)
	}
	return reason, nil
}

// drainModes applies any pending speech mode changes.
func (s *Scheduler) drainModes(st *types.ProcessState) {
	for {
		select {
		case m, ok := <-s.deps.Modes:
			if !ok {
				s.deps.Modes = nil
				return
			}
			if m.Valid() && m != st.Speech.Mode {
				logging.Heartbeat("speech mode %s -> %s", st.Speech.Mode, m)
				st.Speech.Mode = m
			}
		default:
			return
		}
	}
}

// Step runs one heartbeat at wall time now. It works on a copy of st and
// commits only if the tick is not abandoned. Port failures are replaced by
// their fallbacks; store read and reconcile failures are logged. The returned
// error is ErrAbandoned or a persistence failure, and in the latter case st
// already holds the new tick.
func (s *Scheduler) Step(ctx context.Context, st *types.ProcessState, now time.Time) error {
	timer := logging.StartTimer(logging.CategoryHeartbeat, "Step")
	defer timer.StopWithThreshold(s.cfg.Period)

	next := *st
	next.RecentThoughts = append([]types.Thought(nil), st.RecentThoughts...)
	next.Guidance = st.Guidance.Clone()
	next.Tick++
	tick := next.Tick

	percepts, goals, memory := s.gather(tick)
	s.deps.Governor.ObservePercepts(&next.Speech, tick, now, percepts)

	// Subconscious must finish before the conscious pass reads its output.
	sub, err := s.deps.Subconscious.Generate(ctx, mind.SubconsciousInput{
		Tick:           tick,
		Percepts:       percepts,
		Goals:          goals,
		RecentThoughts: next.RecentThoughts,
		Guidance:       next.Guidance,
	})
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w during subconscious pass: %v", ErrAbandoned, err)
		}
		sub = mind.FallbackSubconscious(tick, err)
	}
	next.AppendThoughts(sub.Thoughts, s.cfg.ThoughtWindow)
	logging.LogThoughts(tick, sub.Thoughts)

	decision, err := s.deps.Conscious.Decide(ctx, mind.ConsciousInput{
		Tick:         tick,
		Subconscious: sub,
		Percepts:     percepts,
		Goals:        goals,
		Memory:       memory,
		Speech:       next.Speech,
		Advice:       s.deps.Governor.Advise(next.Speech, tick),
		Constraints:  mind.DefaultConstraints(),
	})
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w during conscious pass: %v", ErrAbandoned, err)
		}
		decision = mind.FallbackDecision(tick, err)
	}
	logging.LogDecision(tick, decision)

	if err := s.deps.Reconciler.Apply(decision); err != nil {
		logging.Get(logging.CategoryReconcile).Error("tick %d: partial reconcile failure: %v", tick, err)
	}

	s.deps.Governor.RecordDecision(&next.Speech, tick, decision.Action)

	// At most one outbound message per tick.
	if decision.Speaks() {
		if err := s.deps.Speaker.Speak(decision.Message); err != nil {
			logging.Get(logging.CategoryHeartbeat).Error("tick %d: speak failed: %v", tick, err)
		}
	}

	next.Guidance = s.deps.Feedback.Apply(next.Guidance, decision.GuidanceDelta)

	*st = next
	logging.Heartbeat("tick %d done: thoughts=%d action=%s temp=%.2f", tick, len(sub.Thoughts), decision.Action, next.Guidance.Temperature)

	if err := s.deps.Store.SaveProcessState(next); err != nil {
		return fmt.Errorf("persist tick %d: %w", tick, err)
	}
	return nil
}

// gather reads the bounded context windows. Read failures degrade to empty
// windows so the tick still runs.
func (s *Scheduler) gather(tick int64) ([]types.Percept, []types.Goal, []types.MemoryItem) {
	percepts, err := s.deps.Store.RecentPercepts(s.cfg.PerceptWindow)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("tick %d: failed to read percepts: %v", tick, err)
		percepts = []types.Percept{}
	}
	goals, err := s.deps.Store.ActiveGoals(s.cfg.GoalWindow)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("tick %d: failed to read goals: %v", tick, err)
		goals = []types.Goal{}
	}
	memory, err := s.deps.Store.RecentMemory(s.cfg.MemoryWindow)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("tick %d: failed to read memory: %v", tick, err)
		memory = []types.MemoryItem{}
	}
	return percepts, goals, memory
}
