package store

import (
	"fmt"

	"mindloop/internal/types"
)

// LoadProcessState returns the persisted process state merged over defaults.
// Guidance saved under its own key takes precedence over the copy embedded in
// the state document.
func (s *Store) LoadProcessState() (types.ProcessState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := types.DefaultProcessState()
	if _, err := s.load(KeyState, &st); err != nil {
		return types.ProcessState{}, fmt.Errorf("load process state: %w", err)
	}
	if _, err := s.load(KeyGuidance, &st.Guidance); err != nil {
		return types.ProcessState{}, fmt.Errorf("load guidance: %w", err)
	}

	if st.RecentThoughts == nil {
		st.RecentThoughts = []types.Thought{}
	}
	if st.Guidance.FocusTags == nil {
		st.Guidance.FocusTags = []string{}
	}
	if !st.Speech.Mode.Valid() {
		st.Speech.Mode = types.ModeCohost
	}
	return st, nil
}

// SaveProcessState replaces the persisted state and guidance in one
// transaction.
func (s *Store) SaveProcessState(st types.ProcessState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.saveAll(map[string]any{
		KeyState:    st,
		KeyGuidance: st.Guidance,
	}); err != nil {
		return fmt.Errorf("save process state: %w", err)
	}
	return nil
}
