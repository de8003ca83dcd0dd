/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package debugtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/djblaster/internal/clock"
	"github.com/friendsincode/djblaster/internal/events"
	"github.com/friendsincode/djblaster/internal/scheduler"
)

// Monday 2 March 2026.
func monday(hour, minute int) time.Time {
	return time.Date(2026, time.March, 2, hour, minute, 0, 0, time.UTC)
}

type harness struct {
	sim        *clock.Simulated
	sched      *scheduler.Service
	controller *Controller
	signals    int
}

// newHarness builds a controller over a real scheduler that has already
// observed the starting hour, as it would after its first poll.
func newHarness(t *testing.T, start time.Time, bus events.Publisher) *harness {
	t.Helper()
	h := &harness{sim: clock.NewSimulated(start)}
	h.sched = scheduler.New(h.sim, time.Second, zerolog.Nop())
	h.sched.OnRefresh(func(context.Context) { h.signals++ })
	if !h.sched.Check(context.Background()) {
		t.Fatal("first check did not fire")
	}
	h.signals = 0

	c, err := New(h.sim, h.sched, bus, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.controller = c
	return h
}

func TestAdvanceDaySameHourForcesOneRefresh(t *testing.T) {
	h := newHarness(t, monday(7, 0), nil)

	now, err := h.controller.AdvanceDay(context.Background(), 1)
	if err != nil {
		t.Fatalf("AdvanceDay: %v", err)
	}
	if now.Weekday() != time.Tuesday || now.Hour() != 7 {
		t.Fatalf("expected Tuesday 07:00, got %v", now)
	}
	if h.signals != 1 {
		t.Fatalf("expected exactly one refresh, got %d", h.signals)
	}

	// The next poll sees the same hour and stays quiet.
	h.sched.Check(context.Background())
	if h.signals != 1 {
		t.Fatalf("poll after day change refreshed again, got %d", h.signals)
	}
}

func TestAdvanceDayDifferentHourRefreshesThroughHourCheck(t *testing.T) {
	h := newHarness(t, monday(23, 0), nil)

	now, err := h.controller.AdvanceDay(context.Background(), 1)
	if err != nil {
		t.Fatalf("AdvanceDay: %v", err)
	}
	if now.Weekday() != time.Tuesday || now.Hour() != 7 {
		t.Fatalf("expected Tuesday 07:00, got %v", now)
	}
	if h.signals != 1 {
		t.Fatalf("expected exactly one refresh, got %d", h.signals)
	}
	if h.sched.LastSeenHour() != 7 {
		t.Fatalf("scheduler recorded hour %d, want 7", h.sched.LastSeenHour())
	}

	h.sched.Check(context.Background())
	if h.signals != 1 {
		t.Fatalf("expected no second refresh, got %d", h.signals)
	}
}

func TestAdvanceDayKeepsMinutes(t *testing.T) {
	h := newHarness(t, monday(14, 25), nil)

	now, err := h.controller.AdvanceDay(context.Background(), -1)
	if err != nil {
		t.Fatalf("AdvanceDay: %v", err)
	}
	want := time.Date(2026, time.March, 1, 7, 25, 0, 0, time.UTC)
	if !now.Equal(want) {
		t.Fatalf("AdvanceDay(-1) = %v, want %v", now, want)
	}
}

func TestAdvanceHour(t *testing.T) {
	bus := events.NewBus()
	changed := bus.Subscribe(events.EventTimeChanged)
	h := newHarness(t, monday(9, 40), bus)

	now, err := h.controller.AdvanceHour(context.Background(), 1)
	if err != nil {
		t.Fatalf("AdvanceHour: %v", err)
	}
	if !now.Equal(monday(10, 0)) {
		t.Fatalf("AdvanceHour(1) = %v, want 10:00", now)
	}
	if h.signals != 1 {
		t.Fatalf("expected one refresh, got %d", h.signals)
	}

	now, err = h.controller.AdvanceHour(context.Background(), -1)
	if err != nil {
		t.Fatalf("AdvanceHour: %v", err)
	}
	if !now.Equal(monday(9, 0)) {
		t.Fatalf("AdvanceHour(-1) = %v, want 09:00", now)
	}
	if h.signals != 2 {
		t.Fatalf("expected two refreshes, got %d", h.signals)
	}

	select {
	case payload := <-changed:
		if payload["unit"] != "hour" || payload["current_hour"] != 10 {
			t.Fatalf("unexpected payload %v", payload)
		}
	default:
		t.Fatal("expected time.changed event")
	}
}

func TestAdvanceHourAcrossMidnightThenDay(t *testing.T) {
	h := newHarness(t, monday(23, 0), nil)

	if _, err := h.controller.AdvanceHour(context.Background(), 1); err != nil {
		t.Fatalf("AdvanceHour: %v", err)
	}
	if h.signals != 1 {
		t.Fatalf("expected one refresh at midnight, got %d", h.signals)
	}
	for i := 0; i < 7; i++ {
		if _, err := h.controller.AdvanceHour(context.Background(), 1); err != nil {
			t.Fatalf("AdvanceHour: %v", err)
		}
	}
	if h.signals != 8 {
		t.Fatalf("expected 8 refreshes by Tuesday 07:00, got %d", h.signals)
	}

	// Back to Monday 07:00: same hour, different day.
	now, err := h.controller.AdvanceDay(context.Background(), -1)
	if err != nil {
		t.Fatalf("AdvanceDay: %v", err)
	}
	if now.Weekday() != time.Monday {
		t.Fatalf("expected Monday, got %v", now.Weekday())
	}
	if h.signals != 9 {
		t.Fatalf("expected the day change to refresh once, got %d total", h.signals)
	}
}

func TestInvalidDelta(t *testing.T) {
	h := newHarness(t, monday(9, 0), nil)

	for _, delta := range []int{0, 2, -3} {
		if _, err := h.controller.AdvanceHour(context.Background(), delta); !errors.Is(err, ErrInvalidDelta) {
			t.Fatalf("AdvanceHour(%d) = %v, want ErrInvalidDelta", delta, err)
		}
		if _, err := h.controller.AdvanceDay(context.Background(), delta); !errors.Is(err, ErrInvalidDelta) {
			t.Fatalf("AdvanceDay(%d) = %v, want ErrInvalidDelta", delta, err)
		}
	}
	if !h.sim.Now().Equal(monday(9, 0)) {
		t.Fatal("invalid delta moved the clock")
	}
	if h.signals != 0 {
		t.Fatal("invalid delta triggered a refresh")
	}
}
