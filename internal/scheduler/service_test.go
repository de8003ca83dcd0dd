/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/djblaster/internal/clock"
	"github.com/friendsincode/djblaster/internal/scheduler/state"
)

func atHour(hour int) time.Time {
	return time.Date(2026, time.March, 2, hour, 30, 0, 0, time.UTC)
}

func TestNewDefaultsInterval(t *testing.T) {
	logger := zerolog.Nop()

	tests := []struct {
		name     string
		interval time.Duration
		want     time.Duration
	}{
		{name: "zero defaults to one second", interval: 0, want: DefaultPollInterval},
		{name: "negative defaults to one second", interval: -time.Second, want: DefaultPollInterval},
		{name: "positive is preserved", interval: 250 * time.Millisecond, want: 250 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := New(clock.NewSimulated(atHour(7)), tt.interval, logger)
			if svc.interval != tt.want {
				t.Errorf("New() interval = %v, want %v", svc.interval, tt.want)
			}
			if svc.LastSeenHour() != state.HourUnset {
				t.Errorf("New() last seen hour = %d, want unset", svc.LastSeenHour())
			}
		})
	}
}

func TestCheckFiresOnlyWhenHourDiffers(t *testing.T) {
	sim := clock.NewSimulated(atHour(0))
	svc := New(sim, time.Second, zerolog.Nop())

	var fired int
	svc.OnRefresh(func(context.Context) { fired++ })

	hours := []int{5, 5, 6, 6, 6, 7, 5, 5, 23, 0}
	want := []bool{true, false, true, false, false, true, true, false, true, true}

	for i, h := range hours {
		sim.Set(atHour(h))
		before := fired
		got := svc.Check(context.Background())
		if got != want[i] {
			t.Fatalf("poll %d (hour %d): Check() = %v, want %v", i, h, got, want[i])
		}
		delta := fired - before
		if want[i] && delta != 1 {
			t.Fatalf("poll %d: expected exactly one broadcast, got %d", i, delta)
		}
		if !want[i] && delta != 0 {
			t.Fatalf("poll %d: expected no broadcast, got %d", i, delta)
		}
	}
}

func TestFirstCheckAlwaysFires(t *testing.T) {
	for hour := 0; hour < 24; hour++ {
		svc := New(clock.NewSimulated(atHour(hour)), time.Second, zerolog.Nop())
		var fired int
		svc.OnRefresh(func(context.Context) { fired++ })

		if !svc.Check(context.Background()) {
			t.Fatalf("hour %d: first Check() did not fire", hour)
		}
		if svc.Check(context.Background()) {
			t.Fatalf("hour %d: second Check() at same hour fired", hour)
		}
		if fired != 1 {
			t.Fatalf("hour %d: fired %d times, want 1", hour, fired)
		}
	}
}

func TestSkippedHoursFireOnce(t *testing.T) {
	sim := clock.NewSimulated(atHour(8))
	svc := New(sim, time.Second, zerolog.Nop())

	var fired int
	svc.OnRefresh(func(context.Context) { fired++ })
	svc.Check(context.Background())

	// Process suspended from 08:30 to 11:30.
	sim.Set(atHour(11))
	svc.Check(context.Background())

	if fired != 2 {
		t.Fatalf("fired %d times, want 2", fired)
	}
	if svc.LastSeenHour() != 11 {
		t.Fatalf("last seen hour = %d, want 11", svc.LastSeenHour())
	}
}

func TestListenersFireInRegistrationOrder(t *testing.T) {
	svc := New(clock.NewSimulated(atHour(9)), time.Second, zerolog.Nop())

	var order []string
	svc.OnRefresh(func(context.Context) { order = append(order, "show-sponsorship") })
	svc.OnRefresh(func(context.Context) { order = append(order, "event") })
	svc.OnRefresh(func(context.Context) { order = append(order, "psa") })
	svc.OnRefresh(nil)

	svc.Check(context.Background())
	svc.ForceRefresh(context.Background())

	want := []string{"show-sponsorship", "event", "psa", "show-sponsorship", "event", "psa"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestForceRefreshIgnoresHour(t *testing.T) {
	svc := New(clock.NewSimulated(atHour(9)), time.Second, zerolog.Nop())
	var fired int
	svc.OnRefresh(func(context.Context) { fired++ })

	svc.Check(context.Background())
	svc.ForceRefresh(context.Background())
	svc.ForceRefresh(context.Background())

	if fired != 3 {
		t.Fatalf("fired %d times, want 3", fired)
	}
	if svc.LastSeenHour() != 9 {
		t.Fatalf("forced refresh changed last seen hour to %d", svc.LastSeenHour())
	}
}

func TestPanickingListenerDoesNotStopOthers(t *testing.T) {
	sim := clock.NewSimulated(atHour(9))
	svc := New(sim, time.Second, zerolog.Nop())

	var fired int
	svc.OnRefresh(func(context.Context) { panic("render failed") })
	svc.OnRefresh(func(context.Context) { fired++ })

	svc.Check(context.Background())
	sim.Set(atHour(10))
	svc.Check(context.Background())

	if fired != 2 {
		t.Fatalf("second listener fired %d times, want 2", fired)
	}
}

func TestStartStop(t *testing.T) {
	sim := clock.NewSimulated(atHour(9))
	svc := New(sim, 5*time.Millisecond, zerolog.Nop())

	var fired atomic.Int32
	svc.OnRefresh(func(context.Context) { fired.Add(1) })

	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := svc.Start(context.Background()); err != ErrAlreadyRunning {
		t.Fatalf("second Start() error = %v, want ErrAlreadyRunning", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for fired.Load() < 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if fired.Load() != 1 {
		t.Fatalf("expected first tick to fire once, got %d", fired.Load())
	}

	sim.Set(atHour(10))
	deadline = time.Now().Add(2 * time.Second)
	for fired.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if fired.Load() != 2 {
		t.Fatalf("expected hour change to fire, got %d", fired.Load())
	}

	svc.Stop()
	svc.Stop()

	sim.Set(atHour(11))
	time.Sleep(20 * time.Millisecond)
	if fired.Load() != 2 {
		t.Fatalf("scheduler fired after Stop: %d", fired.Load())
	}
}
