package store

import (
	"fmt"
	"sort"

	"mindloop/internal/types"

	"github.com/google/uuid"
)

// LoadMemory returns every stored memory item in insertion order.
func (s *Store) LoadMemory() ([]types.MemoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadMemory()
}

// SaveMemory replaces the full memory collection.
func (s *Store) SaveMemory(items []types.MemoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveAll(map[string]any{KeyMemory: nonNilMemory(items)})
}

// AddMemoryItems appends items, filling in ids and timestamps that are
// absent. It returns the items as stored.
func (s *Store) AddMemoryItems(items ...types.MemoryItem) ([]types.MemoryItem, error) {
	if len(items) == 0 {
		return []types.MemoryItem{}, nil
	}

	now := s.now()
	added := make([]types.MemoryItem, 0, len(items))
	for _, it := range items {
		if it.ID == "" {
			it.ID = "mem-" + uuid.NewString()
		}
		if it.CreatedAt.IsZero() {
			it.CreatedAt = now
		}
		if it.LastAccessed.IsZero() {
			it.LastAccessed = now
		}
		added = append(added, it)
	}

	err := s.UpdateMemory(func(cur []types.MemoryItem) ([]types.MemoryItem, error) {
		return append(cur, added...), nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// UpdateMemory runs fn over the full memory collection and writes back its
// result under the store lock.
func (s *Store) UpdateMemory(fn func([]types.MemoryItem) ([]types.MemoryItem, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.loadMemory()
	if err != nil {
		return err
	}
	items, err = fn(items)
	if err != nil {
		return err
	}
	return s.saveAll(map[string]any{KeyMemory: nonNilMemory(items)})
}

// RecentMemory returns up to k items, most recently accessed (or created) first.
func (s *Store) RecentMemory(k int) ([]types.MemoryItem, error) {
	items, err := s.LoadMemory()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Recency().After(items[j].Recency())
	})
	if k >= 0 && len(items) > k {
		items = items[:k]
	}
	return items, nil
}

func (s *Store) loadMemory() ([]types.MemoryItem, error) {
	items := []types.MemoryItem{}
	if _, err := s.load(KeyMemory, &items); err != nil {
		return nil, fmt.Errorf("load memory: %w", err)
	}
	return items, nil
}

func nonNilMemory(items []types.MemoryItem) []types.MemoryItem {
	if items == nil {
		return []types.MemoryItem{}
	}
	return items
}
