package store

import (
	"fmt"
	"sort"

	"mindloop/internal/logging"
	"mindloop/internal/types"

	"github.com/google/uuid"
)

// LoadGoals returns every stored goal in insertion order.
func (s *Store) LoadGoals() ([]types.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadGoals()
}

// SaveGoals replaces the full goal collection.
func (s *Store) SaveGoals(goals []types.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveAll(map[string]any{KeyGoals: nonNilGoals(goals)})
}

// AddGoal creates an active goal with a generated id.
func (s *Store) AddGoal(description string, priority float64) (types.Goal, error) {
	now := s.now()
	g := types.Goal{
		ID:          "goal-" + uuid.NewString(),
		Description: description,
		Status:      types.GoalActive,
		Priority:    types.Clamp01(priority),
		CreatedAt:   now,
		UpdatedAt:   now,
		Subgoals:    []string{},
	}
	err := s.UpdateGoals(func(goals []types.Goal) ([]types.Goal, error) {
		return append(goals, g), nil
	})
	if err != nil {
		return types.Goal{}, err
	}
	logging.Store("Added goal %s (priority=%.2f)", g.ID, g.Priority)
	return g, nil
}

// UpdateGoals runs fn over the full goal collection and writes back its
// result. The load, fn and write happen under the store lock. The result is
// written even when fn changed nothing.
func (s *Store) UpdateGoals(fn func([]types.Goal) ([]types.Goal, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	goals, err := s.loadGoals()
	if err != nil {
		return err
	}
	goals, err = fn(goals)
	if err != nil {
		return err
	}
	return s.saveAll(map[string]any{KeyGoals: nonNilGoals(goals)})
}

// ActiveGoals returns up to k active goals by descending priority. Ties keep
// stored order.
func (s *Store) ActiveGoals(k int) ([]types.Goal, error) {
	goals, err := s.LoadGoals()
	if err != nil {
		return nil, err
	}
	active := make([]types.Goal, 0, len(goals))
	for _, g := range goals {
		if g.Status == types.GoalActive {
			active = append(active, g)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Priority > active[j].Priority
	})
	if k >= 0 && len(active) > k {
		active = active[:k]
	}
	return active, nil
}

func (s *Store) loadGoals() ([]types.Goal, error) {
	goals := []types.Goal{}
	if _, err := s.load(KeyGoals, &goals); err != nil {
		return nil, fmt.Errorf("load goals: %w", err)
	}
	return goals, nil
}

func nonNilGoals(goals []types.Goal) []types.Goal {
	if goals == nil {
		return []types.Goal{}
	}
	return goals
}
