package store

import (
	"encoding/json"
	"fmt"

	"mindloop/internal/types"

	"github.com/google/uuid"
)

// RecordPercept appends a new percept to the percept log and returns it.
func (s *Store) RecordPercept(source, content string, tags []string) (types.Percept, error) {
	if tags == nil {
		tags = []string{}
	}
	p := types.Percept{
		ID:        "percept-" + uuid.NewString(),
		Source:    source,
		Timestamp: s.now(),
		Content:   content,
		Tags:      tags,
	}
	if err := s.Append(LogPercepts, p); err != nil {
		return types.Percept{}, err
	}
	return p, nil
}

// RecentPercepts returns up to n of the newest percepts, oldest first.
func (s *Store) RecentPercepts(n int) ([]types.Percept, error) {
	raws, err := s.Tail(LogPercepts, n)
	if err != nil {
		return nil, err
	}
	out := make([]types.Percept, 0, len(raws))
	for _, raw := range raws {
		var p types.Percept
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode percept: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}
