// Package reconcile applies a Decision's memory and goal deltas to the
// durable store.
//
// Memory and goal writes are independent: a failure in one never rolls back
// the other. Patches that name an unknown id are dropped without error.
package reconcile

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"mindloop/internal/logging"
	"mindloop/internal/types"
)

// Store is the subset of the durable store reconciliation writes through.
type Store interface {
	AddMemoryItems(items ...types.MemoryItem) ([]types.MemoryItem, error)
	UpdateMemory(fn func([]types.MemoryItem) ([]types.MemoryItem, error)) error
	UpdateGoals(fn func([]types.Goal) ([]types.Goal, error)) error
}

// Reconciler applies memory and goal updates.
type Reconciler struct {
	store Store
	now   func() time.Time
}

// Option customizes a Reconciler.
type Option func(*Reconciler)

// WithClock overrides the clock used for goal updated_at stamps.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// New returns a Reconciler writing through s.
func New(s Store, opts ...Option) *Reconciler {
	r := &Reconciler{store: s, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Apply applies both the memory and goal effects of d. Errors from each side
// are joined; neither side is skipped because the other failed.
func (r *Reconciler) Apply(d types.Decision) error {
	memErr := r.ApplyMemoryUpdates(d.MemoryUpdates)
	goalErr := r.ApplyGoalUpdates(d.GoalUpdates)
	return errors.Join(memErr, goalErr)
}

// ApplyMemoryUpdates performs add, then update, then delete. Each step is its
// own read-modify-write; empty steps touch nothing.
func (r *Reconciler) ApplyMemoryUpdates(u types.MemoryUpdates) error {
	var errs []error

	if adds := wellFormed(u.Add); len(adds) > 0 {
		if _, err := r.store.AddMemoryItems(adds...); err != nil {
			errs = append(errs, fmt.Errorf("memory add: %w", err))
		} else {
			logging.Reconcile("Added %d memory item(s)", len(adds))
		}
	}

	if len(u.Update) > 0 {
		applied := 0
		err := r.store.UpdateMemory(func(items []types.MemoryItem) ([]types.MemoryItem, error) {
			byID := make(map[string]int, len(items))
			for i, it := range items {
				byID[it.ID] = i
			}
			for _, p := range u.Update {
				i, ok := byID[p.ID]
				if !ok {
					logging.ReconcileDebug("Memory patch for unknown id %q dropped", p.ID)
					continue
				}
				p.ApplyTo(&items[i])
				applied++
			}
			return items, nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("memory update: %w", err))
		} else {
			logging.Reconcile("Applied %d/%d memory patch(es)", applied, len(u.Update))
		}
	}

	if len(u.Delete) > 0 {
		doomed := make(map[string]struct{}, len(u.Delete))
		for _, id := range u.Delete {
			doomed[id] = struct{}{}
		}
		removed := 0
		err := r.store.UpdateMemory(func(items []types.MemoryItem) ([]types.MemoryItem, error) {
			kept := items[:0]
			for _, it := range items {
				if _, drop := doomed[it.ID]; drop {
					removed++
					continue
				}
				kept = append(kept, it)
			}
			return kept, nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("memory delete: %w", err))
		} else {
			logging.Reconcile("Deleted %d memory item(s)", removed)
		}
	}

	return errors.Join(errs...)
}

// ApplyGoalUpdates patches goals by id and rewrites the full collection.
// The rewrite happens on every call, even when the list is empty or no patch
// matched.
func (r *Reconciler) ApplyGoalUpdates(updates []types.GoalUpdate) error {
	applied := 0
	err := r.store.UpdateGoals(func(goals []types.Goal) ([]types.Goal, error) {
		byID := make(map[string]int, len(goals))
		for i, g := range goals {
			byID[g.ID] = i
		}
		now := r.now()
		for _, u := range updates {
			i, ok := byID[u.GoalID]
			if !ok {
				logging.ReconcileDebug("Goal patch for unknown id %q dropped", u.GoalID)
				continue
			}
			u.Patch.ApplyTo(&goals[i])
			goals[i].UpdatedAt = now
			applied++
		}
		return goals, nil
	})
	if err != nil {
		return fmt.Errorf("goal update: %w", err)
	}
	if len(updates) > 0 {
		logging.Reconcile("Applied %d/%d goal patch(es)", applied, len(updates))
	}
	return nil
}

// wellFormed keeps items with content, normalizing type and importance.
func wellFormed(items []types.MemoryItem) []types.MemoryItem {
	out := make([]types.MemoryItem, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.Content) == "" {
			logging.ReconcileDebug("Skipping memory add without content")
			continue
		}
		if !it.Type.Valid() {
			it.Type = types.MemorySemantic
		}
		it.Importance = types.Clamp01(it.Importance)
		out = append(out, it)
	}
	return out
}
