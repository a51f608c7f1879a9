package logging

import (
	"strings"

	"mindloop/internal/types"
)

const thoughtPreviewLen = 200

// LogThoughts writes one line per generated thought to the ticks category.
func LogThoughts(tick int64, thoughts []types.Thought) {
	l := Get(CategoryTicks)
	l.Info("tick %d: %d thought(s)", tick, len(thoughts))
	for _, th := range thoughts {
		l.Info("  [%s] conf=%.2f nov=%.2f tags=%s %s",
			th.ID, th.Confidence, th.Novelty, strings.Join(th.Tags, ","), truncate(th.Content, thoughtPreviewLen))
	}
}

// LogDecision records the governing pass outcome for a tick, including notes.
func LogDecision(tick int64, d types.Decision) {
	l := Get(CategoryTicks)
	l.Info("tick %d: action=%s speaks=%v goal_updates=%d", tick, d.Action, d.Speaks(), len(d.GoalUpdates))
	if gd := d.GuidanceDelta; len(gd.FocusTagsAdd)+len(gd.FocusTagsRemove) > 0 || gd.TemperatureAdjustment != 0 {
		l.Info("  guidance: +%v -%v temp%+.2f", gd.FocusTagsAdd, gd.FocusTagsRemove, gd.TemperatureAdjustment)
	}
	if mu := d.MemoryUpdates; !mu.Empty() {
		l.Info("  memory: add=%d update=%d delete=%d", len(mu.Add), len(mu.Update), len(mu.Delete))
	}
	if d.Notes != "" {
		l.Info("  notes: %s", truncate(d.Notes, 4*thoughtPreviewLen))
	}
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
