/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package debugtime lets an operator move the simulated clock by whole hours
// or days without the feeds refreshing twice for one move.
package debugtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/djblaster/internal/clock"
	"github.com/friendsincode/djblaster/internal/events"
)

// ErrInvalidDelta is returned for a step other than +1 or -1.
var ErrInvalidDelta = errors.New("delta must be +1 or -1")

// Refresher is the part of the hour-change scheduler the controller drives.
type Refresher interface {
	Check(ctx context.Context) bool
	ForceRefresh(ctx context.Context)
}

// Controller moves a simulated clock.
type Controller struct {
	clock     *clock.Simulated
	scheduler Refresher
	bus       events.Publisher
	logger    zerolog.Logger

	mu   sync.Mutex
	date string
	hour int
}

// New creates a controller for sim. The current simulated date and hour are
// recorded as the starting point.
func New(sim *clock.Simulated, scheduler Refresher, bus events.Publisher, logger zerolog.Logger) (*Controller, error) {
	if sim == nil {
		return nil, fmt.Errorf("debug time: simulated clock is required")
	}
	if scheduler == nil {
		return nil, fmt.Errorf("debug time: scheduler is required")
	}
	if bus == nil {
		bus = events.Nop{}
	}

	now := sim.Now()
	return &Controller{
		clock:     sim,
		scheduler: scheduler,
		bus:       bus,
		logger:    logger.With().Str("component", "debugtime").Logger(),
		date:      dateKey(now),
		hour:      now.Hour(),
	}, nil
}

// AdvanceHour moves the clock by delta hours with minutes and seconds zeroed,
// then lets the scheduler notice the new hour.
func (c *Controller) AdvanceHour(ctx context.Context, delta int) (time.Time, error) {
	if err := checkDelta(delta); err != nil {
		return time.Time{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.AdvanceHour(delta)
	// The date is tracked too so a later day step compares against where the hours landed.
	c.date = dateKey(now)
	c.hour = now.Hour()
	fired := c.scheduler.Check(ctx)

	c.publish("hour", delta, now, fired)
	return now, nil
}

// AdvanceDay moves the clock by delta days and onto the start-of-day hour.
// When the day changed but the hour did not, the scheduler would see nothing
// new, so a refresh is forced instead. Otherwise the hour check covers it and
// only one refresh fires.
func (c *Controller) AdvanceDay(ctx context.Context, delta int) (time.Time, error) {
	if err := checkDelta(delta); err != nil {
		return time.Time{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.AdvanceDay(delta)
	date, hour := dateKey(now), now.Hour()

	var fired bool
	if date != c.date && hour == c.hour {
		c.scheduler.ForceRefresh(ctx)
		fired = true
	} else {
		fired = c.scheduler.Check(ctx)
	}
	c.date = date
	c.hour = hour

	c.publish("day", delta, now, fired)
	return now, nil
}

func (c *Controller) publish(unit string, delta int, now time.Time, fired bool) {
	c.logger.Info().
		Str("unit", unit).
		Int("delta", delta).
		Time("simulated_time", now).
		Bool("refreshed", fired).
		Msg("simulated time moved")
	c.bus.Publish(events.EventTimeChanged, events.Payload{
		"unit":         unit,
		"delta":        delta,
		"current_time": now.Unix(),
		"current_hour": now.Hour(),
		"date":         dateKey(now),
		"refreshed":    fired,
	})
}

func checkDelta(delta int) error {
	if delta != 1 && delta != -1 {
		return fmt.Errorf("%w, got %d", ErrInvalidDelta, delta)
	}
	return nil
}

func dateKey(t time.Time) string {
	return t.Format(time.DateOnly)
}
