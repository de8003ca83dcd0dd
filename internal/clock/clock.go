/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package clock resolves "now" for the booth client, either from the system
// clock or from an operator-controlled simulated instant.
package clock

import "time"

// TimeSource answers the current instant and hour.
type TimeSource interface {
	// Now returns the current instant.
	Now() time.Time
	// CurrentHour returns the hour of day (0-23) in the source's location.
	CurrentHour() int
}

// Live reads the system clock on every call.
type Live struct {
	loc *time.Location
}

// NewLive creates a live time source reporting hours in loc.
func NewLive(loc *time.Location) *Live {
	if loc == nil {
		loc = time.Local
	}
	return &Live{loc: loc}
}

// Now returns the wall-clock time in the configured location.
func (l *Live) Now() time.Time {
	return time.Now().In(l.loc)
}

// CurrentHour returns the wall-clock hour.
func (l *Live) CurrentHour() int {
	return l.Now().Hour()
}
