package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mindloop/internal/articulation"
	"mindloop/internal/config"
	"mindloop/internal/governor"
	"mindloop/internal/guidance"
	"mindloop/internal/mind"
	"mindloop/internal/reconcile"
	"mindloop/internal/store"
	"mindloop/internal/types"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// go.opencensus.io (pulled in by genai) starts a worker in package init.
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// =============================================================================
// FAKES
// =============================================================================

// fakeClock advances only when the scheduler waits (or a port says so).
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	waits []time.Duration
}

func newFakeClock(now time.Time) *fakeClock { return &fakeClock{now: now} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waits = append(c.waits, d)
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.waits...)
}

type subFunc func(ctx context.Context, in mind.SubconsciousInput) (mind.SubconsciousOutput, error)

type fakeSub struct {
	mu    sync.Mutex
	fn    subFunc
	calls []mind.SubconsciousInput
}

func (f *fakeSub) Generate(ctx context.Context, in mind.SubconsciousInput) (mind.SubconsciousOutput, error) {
	f.mu.Lock()
	f.calls = append(f.calls, in)
	fn := f.fn
	f.mu.Unlock()
	if fn == nil {
		return mind.SubconsciousOutput{Thoughts: []types.Thought{{ID: fmt.Sprintf("t%d", in.Tick), Tick: in.Tick, Content: "idea"}}}, nil
	}
	return fn(ctx, in)
}

func (f *fakeSub) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type consFunc func(ctx context.Context, in mind.ConsciousInput) (types.Decision, error)

type fakeCons struct {
	mu    sync.Mutex
	fn    consFunc
	calls []mind.ConsciousInput
}

func (f *fakeCons) Decide(ctx context.Context, in mind.ConsciousInput) (types.Decision, error) {
	f.mu.Lock()
	f.calls = append(f.calls, in)
	fn := f.fn
	f.mu.Unlock()
	if fn == nil {
		return types.SilentDecision("nothing new"), nil
	}
	return fn(ctx, in)
}

func (f *fakeCons) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func speakDecision(msg string) types.Decision {
	d := types.SilentDecision("")
	d.Action = types.ActionSpeak
	d.Message = msg
	return d
}

type recordingSpeaker struct {
	mu       sync.Mutex
	messages []string
}

func (s *recordingSpeaker) Speak(m string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
	return nil
}

// countingStore counts process-state saves on top of a real store.
type countingStore struct {
	*store.Store
	mu      sync.Mutex
	saves   int
	saveErr error
}

func (c *countingStore) SaveProcessState(st types.ProcessState) error {
	c.mu.Lock()
	c.saves++
	err := c.saveErr
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return c.Store.SaveProcessState(st)
}

func (c *countingStore) Saves() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saves
}

type harness struct {
	store   *countingStore
	clock   *fakeClock
	sub     *fakeSub
	cons    *fakeCons
	speaker *recordingSpeaker
	modes   chan types.SpeechMode
	sched   *Scheduler
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	s, err := store.Open(config.StoreConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "mind.db"),
	}, store.WithClock(func() time.Time { return t0 }))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	h := &harness{
		store:   &countingStore{Store: s},
		clock:   newFakeClock(t0),
		sub:     &fakeSub{},
		cons:    &fakeCons{},
		speaker: &recordingSpeaker{},
		modes:   make(chan types.SpeechMode, 4),
	}
	h.sched, err = New(Deps{
		Store:        h.store,
		Subconscious: h.sub,
		Conscious:    h.cons,
		Reconciler:   reconcile.New(s, reconcile.WithClock(h.clock.Now)),
		Speaker:      h.speaker,
		Governor:     governor.New(2),
		Feedback:     guidance.NewFeedback(0.1, 1.2),
		Clock:        h.clock,
		Modes:        h.modes,
	}, cfg)
	require.NoError(t, err)
	return h
}

func (h *harness) step(t *testing.T, st *types.ProcessState) {
	t.Helper()
	require.NoError(t, h.sched.Step(context.Background(), st, h.clock.Now()))
	h.clock.Advance(time.Second)
}

// =============================================================================
// RUN: SHUTDOWN PATHS
// =============================================================================

func TestRun_IdleShutdownBeforeTick(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	st := types.DefaultProcessState()
	st.Speech.LastUserWallTime = t0
	h.clock.Advance(31 * time.Second)

	reason, err := h.sched.Run(context.Background(), &st)
	require.NoError(t, err)
	assert.Equal(t, ExitIdle, reason)
	assert.Equal(t, int64(0), st.Tick)
	assert.Zero(t, h.sub.Calls())
	assert.Zero(t, h.cons.Calls())
	assert.Equal(t, 1, h.store.Saves(), "idle shutdown persists exactly once")
}

func TestRun_IdleThresholdIsExclusive(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	st := types.DefaultProcessState()
	st.Speech.LastUserWallTime = t0
	h.clock.Advance(30 * time.Second)

	reason, err := h.sched.Run(context.Background(), &st)
	require.NoError(t, err)
	assert.Equal(t, ExitIdle, reason)
	assert.Equal(t, int64(1), st.Tick, "exactly at the limit still ticks once")
	assert.Equal(t, 2, h.store.Saves())
}

func TestRun_QuietMindIdlesOut(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	st := types.DefaultProcessState()

	reason, err := h.sched.Run(context.Background(), &st)
	require.NoError(t, err)
	assert.Equal(t, ExitIdle, reason)
	assert.Equal(t, t0, st.Speech.LastUserWallTime, "wall time initialized at startup")
	assert.Equal(t, int64(31), st.Tick)
	assert.Len(t, st.RecentThoughts, 20)
	assert.Equal(t, "t12", st.RecentThoughts[0].ID)
	assert.Equal(t, "t31", st.RecentThoughts[19].ID)
	assert.Equal(t, 32, h.store.Saves())
	for _, w := range h.clock.Waits() {
		assert.Equal(t, time.Second, w)
	}

	loaded, err := h.store.LoadProcessState()
	require.NoError(t, err)
	if diff := cmp.Diff(st, loaded); diff != "" {
		t.Errorf("persisted state mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	st := types.DefaultProcessState()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reason, err := h.sched.Run(ctx, &st)
	require.NoError(t, err)
	assert.Equal(t, ExitCancelled, reason)
	assert.Equal(t, int64(0), st.Tick)
	assert.Equal(t, 1, h.store.Saves())
}

func TestRun_CancelDuringReasoning(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	entered := make(chan struct{})
	h.sub.fn = func(ctx context.Context, in mind.SubconsciousInput) (mind.SubconsciousOutput, error) {
		close(entered)
		<-ctx.Done()
		return mind.SubconsciousOutput{}, fmt.Errorf("request abandoned: %w", ctx.Err())
	}

	st := types.DefaultProcessState()
	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		reason ExitReason
		err    error
	}
	done := make(chan result, 1)
	go func() {
		r, err := h.sched.Run(ctx, &st)
		done <- result{r, err}
	}()

	<-entered
	cancel()

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, ExitCancelled, r.reason)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, int64(0), st.Tick, "abandoned tick is not committed")
	assert.Empty(t, st.RecentThoughts)
	assert.Zero(t, h.cons.Calls())
	assert.Equal(t, 1, h.store.Saves(), "final save happens exactly once")
}

func TestRun_CancelAfterTicks(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.cons.fn = func(_ context.Context, in mind.ConsciousInput) (types.Decision, error) {
		if in.Tick == 3 {
			cancel()
		}
		return types.SilentDecision(""), nil
	}

	st := types.DefaultProcessState()
	reason, err := h.sched.Run(ctx, &st)
	require.NoError(t, err)
	assert.Equal(t, ExitCancelled, reason)
	assert.Equal(t, int64(3), st.Tick, "a decision that completed is committed")
	assert.Equal(t, 4, h.store.Saves())
}

func TestRun_OverrunStartsImmediately(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IdleTimeout = time.Hour
	h := newHarness(t, cfg)
	h.sub.fn = func(_ context.Context, in mind.SubconsciousInput) (mind.SubconsciousOutput, error) {
		h.clock.Advance(2500 * time.Millisecond)
		return mind.SubconsciousOutput{}, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.cons.fn = func(_ context.Context, in mind.ConsciousInput) (types.Decision, error) {
		if in.Tick == 3 {
			cancel()
		}
		return types.SilentDecision(""), nil
	}

	st := types.DefaultProcessState()
	_, err := h.sched.Run(ctx, &st)
	require.NoError(t, err)
	assert.Equal(t, int64(3), st.Tick)

	waits := h.clock.Waits()
	require.GreaterOrEqual(t, len(waits), 2)
	for _, w := range waits {
		assert.Zero(t, w, "no sleep after an overrun")
	}
}

func TestRun_AppliesModeChanges(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	st := types.DefaultProcessState()
	st.Speech.LastUserWallTime = t0.Add(-29 * time.Second)
	h.modes <- types.SpeechMode("loud")
	h.modes <- types.ModeTeacher

	reason, err := h.sched.Run(context.Background(), &st)
	require.NoError(t, err)
	assert.Equal(t, ExitIdle, reason)
	assert.Equal(t, int64(2), st.Tick)
	assert.Equal(t, types.ModeTeacher, st.Speech.Mode)
	require.Equal(t, 2, h.cons.Calls())
	assert.Equal(t, types.ModeTeacher, h.cons.calls[0].Speech.Mode)
}

func TestRun_EndToEndSpeak(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	_, err := h.store.RecordPercept(types.SourceUser, "hi", []string{"cli"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.cons.fn = func(_ context.Context, in mind.ConsciousInput) (types.Decision, error) {
		cancel()
		return speakDecision("hello!"), nil
	}

	st := types.DefaultProcessState()
	reason, err := h.sched.Run(ctx, &st)
	require.NoError(t, err)
	assert.Equal(t, ExitCancelled, reason)
	assert.Equal(t, int64(1), st.Tick)
	assert.Equal(t, int64(1), st.Speech.LastUserTick)
	assert.Equal(t, int64(1), st.Speech.LastSpeakTick)
	assert.Equal(t, 0, st.Speech.UnsolicitedSpeakCount)
	assert.Equal(t, []string{"hello!"}, h.speaker.messages)

	loaded, err := h.store.LoadProcessState()
	require.NoError(t, err)
	if diff := cmp.Diff(st, loaded); diff != "" {
		t.Errorf("persisted state mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_IdlesAfterLastUserInput(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.cons.fn = func(_ context.Context, in mind.ConsciousInput) (types.Decision, error) {
		if in.Tick == 10 {
			require.NoError(t, h.store.Append(store.LogPercepts, types.Percept{
				ID: "percept-late", Source: types.SourceUser, Timestamp: h.clock.Now(), Content: "still here", Tags: []string{},
			}))
		}
		return types.SilentDecision(""), nil
	}

	st := types.DefaultProcessState()
	reason, err := h.sched.Run(context.Background(), &st)
	require.NoError(t, err)
	assert.Equal(t, ExitIdle, reason)
	// Input arrived at t0+9s; the line stays in the window but idle time
	// still runs from it.
	assert.Equal(t, int64(40), st.Tick)
	assert.Equal(t, int64(40), st.Speech.LastUserTick)
	assert.Equal(t, t0.Add(9*time.Second), st.Speech.LastUserInputTime)
	assert.Equal(t, t0.Add(39*time.Second), st.Speech.LastUserWallTime)
}

// =============================================================================
// STEP: PER-TICK SEMANTICS
// =============================================================================

func TestStep_EndToEndSpeak(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	_, err := h.store.RecordPercept(types.SourceUser, "hi", []string{"cli"})
	require.NoError(t, err)
	h.cons.fn = func(_ context.Context, in mind.ConsciousInput) (types.Decision, error) {
		return speakDecision("hello!"), nil
	}

	st := types.DefaultProcessState()
	h.step(t, &st)

	assert.Equal(t, int64(1), st.Tick)
	assert.Equal(t, int64(1), st.Speech.LastUserTick)
	assert.Equal(t, int64(1), st.Speech.LastSpeakTick)
	assert.Equal(t, 0, st.Speech.UnsolicitedSpeakCount)
	assert.Equal(t, []string{"hello!"}, h.speaker.messages)

	require.Equal(t, 1, h.cons.Calls())
	in := h.cons.calls[0]
	require.Len(t, in.Percepts, 1)
	assert.Equal(t, "hi", in.Percepts[0].Content)
	assert.Equal(t, int64(1), in.Speech.LastUserTick, "conscious sees the pre-updated governor state")
	assert.Equal(t, mind.DefaultConstraints(), in.Constraints)
	require.Len(t, in.Subconscious.Thoughts, 1)

	loaded, err := h.store.LoadProcessState()
	require.NoError(t, err)
	if diff := cmp.Diff(st, loaded); diff != "" {
		t.Errorf("persisted state mismatch (-want +got):\n%s", diff)
	}
}

func TestStep_FiveUnsolicitedTicks(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.cons.fn = func(_ context.Context, in mind.ConsciousInput) (types.Decision, error) {
		return speakDecision(fmt.Sprintf("musing %d", in.Tick)), nil
	}

	st := types.DefaultProcessState()
	for i := 0; i < 5; i++ {
		h.step(t, &st)
	}
	assert.Equal(t, int64(5), st.Tick)
	assert.Equal(t, 5, st.Speech.UnsolicitedSpeakCount)
	assert.Equal(t, int64(5), st.Speech.LastSpeakTick)
	assert.Equal(t, int64(0), st.Speech.LastUserTick)
	assert.Len(t, h.speaker.messages, 5)

	last := h.cons.calls[4]
	assert.True(t, last.Advice.PreferSilence, "governor hints silence after repeated unsolicited speech")
}

func TestStep_UnsolicitedAfterGap(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	_, err := h.store.RecordPercept(types.SourceUser, "tell me later", nil)
	require.NoError(t, err)
	h.cons.fn = func(_ context.Context, in mind.ConsciousInput) (types.Decision, error) {
		return speakDecision("update"), nil
	}

	st := types.DefaultProcessState()
	var counts []int
	for i := 0; i < 5; i++ {
		h.step(t, &st)
		counts = append(counts, st.Speech.UnsolicitedSpeakCount)
		if i == 0 {
			// Push the user line out of the percept window.
			for j := 0; j < 5; j++ {
				_, err := h.store.RecordPercept("sensor", fmt.Sprintf("reading %d", j), nil)
				require.NoError(t, err)
			}
		}
	}
	// User was last seen at tick 1; ticks 1-3 are within the gap, 4 and 5 are not.
	assert.Equal(t, []int{0, 0, 0, 1, 2}, counts)
	assert.Equal(t, int64(1), st.Speech.LastUserTick)
}

func TestStep_UserPerceptInWindowKeepsTickCurrent(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	_, err := h.store.RecordPercept(types.SourceUser, "are you there?", nil)
	require.NoError(t, err)
	h.cons.fn = func(_ context.Context, in mind.ConsciousInput) (types.Decision, error) {
		assert.Equal(t, in.Tick, in.Speech.LastUserTick)
		return speakDecision("yes"), nil
	}

	st := types.DefaultProcessState()
	var counts []int
	for i := 0; i < 5; i++ {
		h.step(t, &st)
		counts = append(counts, st.Speech.UnsolicitedSpeakCount)
		assert.Equal(t, st.Tick, st.Speech.LastUserTick)
	}
	assert.Equal(t, []int{0, 0, 0, 0, 0}, counts)
	assert.Equal(t, int64(5), st.Speech.LastUserTick)
	assert.Equal(t, t0.Add(4*time.Second), st.Speech.LastUserWallTime)
	assert.Equal(t, t0, st.Speech.LastUserInputTime)
}

func TestStep_PerceptRecordedDuringTick(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	_, err := h.store.RecordPercept(types.SourceUser, "first", nil)
	require.NoError(t, err)
	h.sub.fn = func(_ context.Context, in mind.SubconsciousInput) (mind.SubconsciousOutput, error) {
		if in.Tick == 1 {
			_, err := h.store.RecordPercept(types.SourceUser, "second", nil)
			require.NoError(t, err)
		}
		return mind.SubconsciousOutput{}, nil
	}

	st := types.DefaultProcessState()
	h.step(t, &st)
	assert.Equal(t, int64(1), st.Speech.LastUserTick)
	require.Len(t, h.cons.calls[0].Percepts, 1, "percepts are gathered once per tick")

	h.step(t, &st)
	assert.Equal(t, int64(2), st.Speech.LastUserTick)
	require.Len(t, h.cons.calls[1].Percepts, 2)
	assert.Equal(t, "second", h.cons.calls[1].Percepts[1].Content)
}

func TestStep_ThoughtWindow(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.sub.fn = func(_ context.Context, in mind.SubconsciousInput) (mind.SubconsciousOutput, error) {
		var out mind.SubconsciousOutput
		for i := 1; i <= 7; i++ {
			out.Thoughts = append(out.Thoughts, types.Thought{ID: fmt.Sprintf("t%d-%d", in.Tick, i), Tick: in.Tick})
		}
		return out, nil
	}

	st := types.DefaultProcessState()
	for i := 0; i < 4; i++ {
		h.step(t, &st)
		assert.LessOrEqual(t, len(st.RecentThoughts), 20)
	}
	require.Len(t, st.RecentThoughts, 20)
	assert.Equal(t, "t2-2", st.RecentThoughts[0].ID)
	assert.Equal(t, "t4-7", st.RecentThoughts[19].ID)
	for i := 1; i < len(st.RecentThoughts); i++ {
		assert.LessOrEqual(t, st.RecentThoughts[i-1].Tick, st.RecentThoughts[i].Tick)
	}
}

func TestStep_FallbacksOnPortFailure(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.sub.fn = func(context.Context, mind.SubconsciousInput) (mind.SubconsciousOutput, error) {
		return mind.SubconsciousOutput{}, &articulation.ParseFault{Raw: "stream of nonsense", Err: errors.New("bad")}
	}
	h.cons.fn = func(context.Context, mind.ConsciousInput) (types.Decision, error) {
		return types.Decision{}, errors.New("503 from upstream")
	}

	st := types.DefaultProcessState()
	h.step(t, &st)

	assert.Equal(t, int64(1), st.Tick)
	require.Len(t, st.RecentThoughts, 1)
	fb := st.RecentThoughts[0]
	assert.Equal(t, "thought-fallback-1", fb.ID)
	assert.Equal(t, []string{types.TagFallback}, fb.Tags)
	assert.Equal(t, "stream of nonsense", fb.Content)

	require.Equal(t, 1, h.cons.Calls())
	assert.Equal(t, "thought-fallback-1", h.cons.calls[0].Subconscious.Thoughts[0].ID)
	assert.Empty(t, h.speaker.messages)
	assert.Equal(t, int64(0), st.Speech.LastSpeakTick)
}

func TestStep_ReconcilesWhileSilent(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	require.NoError(t, h.store.SaveMemory([]types.MemoryItem{
		{ID: "mem-1", Type: types.MemorySemantic, Content: "likes jazz", Importance: 0.2, CreatedAt: t0},
	}))
	goal, err := h.store.AddGoal("learn piano", 0.5)
	require.NoError(t, err)

	importance := 0.9
	paused := types.GoalPaused
	h.cons.fn = func(context.Context, mind.ConsciousInput) (types.Decision, error) {
		d := types.SilentDecision("filing things away")
		d.MemoryUpdates.Update = []types.MemoryPatch{{ID: "mem-1", Importance: &importance}, {ID: "mem-404", Importance: &importance}}
		d.MemoryUpdates.Add = []types.MemoryItem{{Type: types.MemoryEpisodic, Content: "quiet afternoon", Importance: 0.4}}
		d.GoalUpdates = []types.GoalUpdate{{GoalID: goal.ID, Patch: types.GoalPatch{Status: &paused}}}
		return d, nil
	}

	st := types.DefaultProcessState()
	h.step(t, &st)

	mem, err := h.store.LoadMemory()
	require.NoError(t, err)
	require.Len(t, mem, 2)
	assert.Equal(t, 0.9, mem[0].Importance)
	assert.Equal(t, "likes jazz", mem[0].Content)
	assert.Equal(t, "quiet afternoon", mem[1].Content)

	goals, err := h.store.LoadGoals()
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, types.GoalPaused, goals[0].Status)
	assert.Empty(t, h.speaker.messages)
}

func TestStep_GuidanceFeedback(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.cons.fn = func(context.Context, mind.ConsciousInput) (types.Decision, error) {
		d := types.SilentDecision("")
		d.GuidanceDelta = types.GuidanceDelta{
			FocusTagsAdd:          []string{"music", "math", "music"},
			FocusTagsRemove:       []string{"absent"},
			TemperatureAdjustment: 10,
		}
		return d, nil
	}

	st := types.DefaultProcessState()
	st.Guidance.Temperature = 1.0
	h.step(t, &st)

	assert.Equal(t, 1.2, st.Guidance.Temperature)
	assert.Equal(t, []string{"music", "math"}, st.Guidance.FocusTags)

	// The next subconscious call sees the adjusted guidance.
	h.step(t, &st)
	require.Equal(t, 2, h.sub.Calls())
	assert.Equal(t, 1.2, h.sub.calls[1].Guidance.Temperature)
}

func TestStep_SpeakWithoutMessage(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.cons.fn = func(context.Context, mind.ConsciousInput) (types.Decision, error) {
		return speakDecision(""), nil
	}

	st := types.DefaultProcessState()
	h.step(t, &st)
	assert.Empty(t, h.speaker.messages, "nothing to say means nothing is emitted")
	assert.Equal(t, int64(1), st.Speech.LastSpeakTick)
}

func TestStep_PerceptWindow(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	for i := 1; i <= 7; i++ {
		_, err := h.store.RecordPercept(types.SourceUser, fmt.Sprintf("p%d", i), nil)
		require.NoError(t, err)
	}

	st := types.DefaultProcessState()
	h.step(t, &st)

	in := h.sub.calls[0]
	require.Len(t, in.Percepts, 5)
	assert.Equal(t, "p3", in.Percepts[0].Content)
	assert.Equal(t, "p7", in.Percepts[4].Content)
}

func TestStep_PersistFailureKeepsTick(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.store.saveErr = errors.New("disk full")

	st := types.DefaultProcessState()
	err := h.sched.Step(context.Background(), &st, h.clock.Now())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAbandoned)
	assert.Equal(t, int64(1), st.Tick)
}

func TestStep_TickStrictlyIncreases(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	st := types.DefaultProcessState()
	for want := int64(1); want <= 10; want++ {
		h.step(t, &st)
		require.Equal(t, want, st.Tick)
	}
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Deps{}, DefaultConfig())
	assert.Error(t, err)

	_, err = New(Deps{Store: &countingStore{}, Subconscious: &fakeSub{}, Conscious: &fakeCons{}}, DefaultConfig())
	assert.ErrorContains(t, err, "reconciler")
}

func TestConfigFrom(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, Config{
		Period:        time.Second,
		IdleTimeout:   30 * time.Second,
		PerceptWindow: 5,
		GoalWindow:    3,
		MemoryWindow:  10,
		ThoughtWindow: 20,
	}, cfg)
}
