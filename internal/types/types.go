// Package types provides shared record definitions used across mindloop packages.
// This package exists to break import cycles between the store, the reasoning
// ports, and the heartbeat. Types here are plain data with no I/O.
package types

import (
	"time"
)

// =============================================================================
// PERCEPTS
// =============================================================================

// SourceUser marks percepts that came from the external input channel.
const SourceUser = "user"

// Percept is an immutable, timestamped record of external input.
type Percept struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
}

// FromUser reports whether the percept originated from the user.
func (p Percept) FromUser() bool {
	return p.Source == SourceUser
}

// =============================================================================
// GOALS
// =============================================================================

// GoalStatus is the lifecycle state of a goal.
type GoalStatus string

const (
	GoalActive  GoalStatus = "active"
	GoalPaused  GoalStatus = "paused"
	GoalDone    GoalStatus = "done"
	GoalDropped GoalStatus = "dropped"
)

// Valid reports whether s is one of the known statuses.
func (s GoalStatus) Valid() bool {
	switch s {
	case GoalActive, GoalPaused, GoalDone, GoalDropped:
		return true
	}
	return false
}

// Goal is a durable objective the mind keeps steering toward.
type Goal struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Status      GoalStatus `json:"status"`
	Priority    float64    `json:"priority"` // 0..1
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Subgoals    []string   `json:"subgoals"`
}

// GoalPatch is an id-keyed partial update. Nil fields are left untouched.
type GoalPatch struct {
	Description *string     `json:"description,omitempty"`
	Status      *GoalStatus `json:"status,omitempty"`
	Priority    *float64    `json:"priority,omitempty"`
	Subgoals    *[]string   `json:"subgoals,omitempty"`
}

// Empty reports whether the patch carries no field changes.
func (p GoalPatch) Empty() bool {
	return p.Description == nil && p.Status == nil && p.Priority == nil && p.Subgoals == nil
}

// ApplyTo copies the set fields of p onto g. UpdatedAt is the caller's concern.
func (p GoalPatch) ApplyTo(g *Goal) {
	if p.Description != nil {
		g.Description = *p.Description
	}
	if p.Status != nil && p.Status.Valid() {
		g.Status = *p.Status
	}
	if p.Priority != nil {
		g.Priority = Clamp01(*p.Priority)
	}
	if p.Subgoals != nil {
		g.Subgoals = append([]string(nil), (*p.Subgoals)...)
	}
}

// GoalUpdate targets one goal by id.
type GoalUpdate struct {
	GoalID string    `json:"goal_id"`
	Patch  GoalPatch `json:"patch"`
}

// =============================================================================
// MEMORY
// =============================================================================

// MemoryType classifies a memory item.
type MemoryType string

const (
	MemoryEpisodic   MemoryType = "episodic"
	MemorySemantic   MemoryType = "semantic"
	MemoryPreference MemoryType = "preference"
	MemoryMeta       MemoryType = "meta"
)

// Valid reports whether t is one of the known memory types.
func (t MemoryType) Valid() bool {
	switch t {
	case MemoryEpisodic, MemorySemantic, MemoryPreference, MemoryMeta:
		return true
	}
	return false
}

// MemoryItem is a single durable memory.
type MemoryItem struct {
	ID           string     `json:"id"`
	Type         MemoryType `json:"type"`
	Content      string     `json:"content"`
	Importance   float64    `json:"importance"` // 0..1
	CreatedAt    time.Time  `json:"created_at"`
	LastAccessed time.Time  `json:"last_accessed"`
}

// Recency returns the timestamp used to order memory by freshness.
func (m MemoryItem) Recency() time.Time {
	if !m.LastAccessed.IsZero() {
		return m.LastAccessed
	}
	return m.CreatedAt
}

// MemoryPatch is an id-keyed partial update of a memory item.
type MemoryPatch struct {
	ID         string      `json:"id"`
	Type       *MemoryType `json:"type,omitempty"`
	Content    *string     `json:"content,omitempty"`
	Importance *float64    `json:"importance,omitempty"`
}

// ApplyTo copies the set fields of p onto m.
func (p MemoryPatch) ApplyTo(m *MemoryItem) {
	if p.Type != nil && p.Type.Valid() {
		m.Type = *p.Type
	}
	if p.Content != nil {
		m.Content = *p.Content
	}
	if p.Importance != nil {
		m.Importance = Clamp01(*p.Importance)
	}
}

// MemoryUpdates groups the memory mutations requested in one Decision.
type MemoryUpdates struct {
	Add    []MemoryItem  `json:"add"`
	Update []MemoryPatch `json:"update"`
	Delete []string      `json:"delete"`
}

// Empty reports whether there is nothing to apply.
func (u MemoryUpdates) Empty() bool {
	return len(u.Add) == 0 && len(u.Update) == 0 && len(u.Delete) == 0
}

// =============================================================================
// THOUGHTS
// =============================================================================

// TagFallback marks the synthetic thought substituted for a failed subconscious pass.
const TagFallback = "fallback"

// Thought is one candidate idea from the subconscious pass. Never mutated.
type Thought struct {
	ID           string   `json:"id"`
	Tick         int64    `json:"timestamp"`
	Content      string   `json:"content"`
	Tags         []string `json:"tags"`
	Confidence   float64  `json:"confidence"` // 0..1
	Novelty      float64  `json:"novelty"`    // 0..1
	RelatedGoals []string `json:"related_goals"`
}

// Clamp01 saturates v into [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
