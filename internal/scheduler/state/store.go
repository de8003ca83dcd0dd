package state

import "sync"

// HourUnset marks a store that has not observed any hour yet.
const HourUnset = -1

// Store keeps the last hour the scheduler observed.
type Store struct {
	mu           sync.RWMutex
	lastSeenHour int
}

// NewStore creates a store in the unset state.
func NewStore() *Store {
	return &Store{lastSeenHour: HourUnset}
}

// LastSeenHour returns the recorded hour, or HourUnset.
func (s *Store) LastSeenHour() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeenHour
}

// Observe records hour and reports whether it differs from the previous
// observation. The first observation always reports a change.
func (s *Store) Observe(hour int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSeenHour != HourUnset && s.lastSeenHour == hour {
		return false
	}
	s.lastSeenHour = hour
	return true
}
