/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package clock

import (
	"testing"
	"time"
)

func TestLiveReportsHourInLocation(t *testing.T) {
	loc := time.FixedZone("booth", 3*60*60)
	live := NewLive(loc)

	now := live.Now()
	if now.Location() != loc {
		t.Fatalf("Now() location = %v, want %v", now.Location(), loc)
	}
	hour := live.CurrentHour()
	if hour < 0 || hour > 23 {
		t.Fatalf("CurrentHour() = %d, want 0-23", hour)
	}
}

func TestLiveDefaultsToLocal(t *testing.T) {
	live := NewLive(nil)
	if live.loc != time.Local {
		t.Fatalf("expected time.Local, got %v", live.loc)
	}
}

func TestSimulatedIsFrozenUntilMoved(t *testing.T) {
	start := time.Date(2026, time.March, 2, 9, 15, 30, 0, time.UTC)
	sim := NewSimulated(start)

	if got := sim.Now(); !got.Equal(start) {
		t.Fatalf("Now() = %v, want %v", got, start)
	}

	next := start.Add(42 * time.Minute)
	sim.Set(next)
	if got := sim.Now(); !got.Equal(next) {
		t.Fatalf("after Set, Now() = %v, want %v", got, next)
	}
}

func TestSimulatedAdvanceHour(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		delta int
		want  time.Time
	}{
		{
			name:  "forward zeroes minutes and seconds",
			start: time.Date(2026, time.March, 2, 9, 15, 30, 0, time.UTC),
			delta: 1,
			want:  time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC),
		},
		{
			name:  "backward",
			start: time.Date(2026, time.March, 2, 9, 15, 30, 0, time.UTC),
			delta: -1,
			want:  time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC),
		},
		{
			name:  "forward across midnight",
			start: time.Date(2026, time.March, 2, 23, 5, 0, 0, time.UTC),
			delta: 1,
			want:  time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "backward across midnight",
			start: time.Date(2026, time.March, 2, 0, 59, 59, 0, time.UTC),
			delta: -1,
			want:  time.Date(2026, time.March, 1, 23, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := NewSimulated(tt.start)
			got := sim.AdvanceHour(tt.delta)
			if !got.Equal(tt.want) {
				t.Fatalf("AdvanceHour(%d) = %v, want %v", tt.delta, got, tt.want)
			}
			if sim.CurrentHour() != tt.want.Hour() {
				t.Fatalf("CurrentHour() = %d, want %d", sim.CurrentHour(), tt.want.Hour())
			}
		})
	}
}

func TestSimulatedAdvanceDayResetsHour(t *testing.T) {
	start := time.Date(2026, time.March, 2, 23, 20, 10, 0, time.UTC)
	sim := NewSimulated(start)

	got := sim.AdvanceDay(1)
	want := time.Date(2026, time.March, 3, DayStartHour, 20, 10, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("AdvanceDay(1) = %v, want %v", got, want)
	}

	got = sim.AdvanceDay(-2)
	want = time.Date(2026, time.March, 1, DayStartHour, 20, 10, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("AdvanceDay(-2) = %v, want %v", got, want)
	}
}
