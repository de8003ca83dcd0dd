/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package clock

import (
	"sync"
	"time"
)

// DayStartHour is the hour a simulated day change lands on.
const DayStartHour = 7

// Simulated is a frozen instant that only moves when the operator moves it.
type Simulated struct {
	mu      sync.RWMutex
	current time.Time
}

// NewSimulated creates a simulated source starting at start.
func NewSimulated(start time.Time) *Simulated {
	return &Simulated{current: start}
}

// Now returns the simulated instant.
func (s *Simulated) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// CurrentHour returns the simulated hour.
func (s *Simulated) CurrentHour() int {
	return s.Now().Hour()
}

// Set replaces the simulated instant.
func (s *Simulated) Set(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = t
}

// AdvanceHour moves the instant by delta hours and zeroes minutes and seconds.
// Crossing midnight rolls the date.
func (s *Simulated) AdvanceHour(delta int) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.current
	s.current = time.Date(c.Year(), c.Month(), c.Day(), c.Hour()+delta, 0, 0, 0, c.Location())
	return s.current
}

// AdvanceDay moves the instant by delta days and resets the hour to
// DayStartHour. Minutes and seconds are kept.
func (s *Simulated) AdvanceDay(delta int) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.current
	s.current = time.Date(c.Year(), c.Month(), c.Day()+delta, DayStartHour, c.Minute(), c.Second(), 0, c.Location())
	return s.current
}
