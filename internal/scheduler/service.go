/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/djblaster/internal/clock"
	"github.com/friendsincode/djblaster/internal/scheduler/state"
	"github.com/friendsincode/djblaster/internal/telemetry"
)

// DefaultPollInterval is how often the hour is polled when no interval is given.
const DefaultPollInterval = time.Second

const (
	reasonHourChange = "hour_change"
	reasonForced     = "forced"
)

// ErrAlreadyRunning is returned by Start when the poll loop is active.
var ErrAlreadyRunning = errors.New("scheduler already running")

// RefreshFunc is invoked once per refresh signal. It must not block and must
// not call back into the scheduler.
type RefreshFunc func(ctx context.Context)

// Service polls the time source and broadcasts a refresh signal whenever the
// hour differs from the last one it saw.
type Service struct {
	clock    clock.TimeSource
	state    *state.Store
	interval time.Duration
	logger   zerolog.Logger

	// mu serializes polls and broadcasts so one signal's listeners finish
	// before the next poll reads the clock.
	mu        sync.Mutex
	listeners []RefreshFunc

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs the hour-change scheduler.
func New(source clock.TimeSource, interval time.Duration, logger zerolog.Logger) *Service {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Service{
		clock:    source,
		state:    state.NewStore(),
		interval: interval,
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}
}

// OnRefresh registers a listener. Listeners fire in registration order.
func (s *Service) OnRefresh(fn RefreshFunc) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// LastSeenHour returns the hour recorded by the last signal, or state.HourUnset.
func (s *Service) LastSeenHour() int {
	return s.state.LastSeenHour()
}

// Start runs the poll loop in the background until Stop or ctx cancellation.
func (s *Service) Start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.done != nil {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error().Err(err).Msg("scheduler loop exited")
		}
	}()
	return nil
}

// Stop ends the poll loop started by Start and waits for it to exit.
func (s *Service) Stop() {
	s.runMu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Run executes the poll loop until the context is cancelled. The first poll
// happens immediately.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("scheduler loop started")
	s.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler loop stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Check(ctx)
		}
	}
}

// Check polls the hour once and broadcasts if it changed. It reports whether
// a signal fired. Hours skipped between polls are not backfilled.
func (s *Service) Check(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	telemetry.SchedulerTicksTotal.Inc()
	hour := s.clock.CurrentHour()
	previous := s.state.LastSeenHour()
	if !s.state.Observe(hour) {
		return false
	}

	s.logger.Info().
		Int("hour", hour).
		Int("previous_hour", previous).
		Msg("hour changed, refreshing ad feeds")
	s.broadcast(ctx, reasonHourChange)
	return true
}

// ForceRefresh broadcasts to every listener without consulting the hour.
func (s *Service) ForceRefresh(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info().Msg("forced refresh of ad feeds")
	s.broadcast(ctx, reasonForced)
}

func (s *Service) broadcast(ctx context.Context, reason string) {
	telemetry.RefreshSignalsTotal.WithLabelValues(reason).Inc()
	for i, fn := range s.listeners {
		s.invoke(ctx, i, fn)
	}
}

func (s *Service) invoke(ctx context.Context, index int, fn RefreshFunc) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.SchedulerListenerPanicsTotal.Inc()
			s.logger.Error().Interface("panic", r).Int("listener", index).Msg("refresh listener panicked")
		}
	}()
	fn(ctx)
}
