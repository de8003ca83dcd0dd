/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package readit tracks the one ad the DJ is about to mark as read and
// submits the read to the ad server.
package readit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/djblaster/internal/ads"
	"github.com/friendsincode/djblaster/internal/clock"
	"github.com/friendsincode/djblaster/internal/events"
	"github.com/friendsincode/djblaster/internal/telemetry"
)

var (
	// ErrNoPendingRead is returned by Confirm when nothing was selected.
	ErrNoPendingRead = errors.New("no pending read")
	// ErrSubmissionInFlight is returned by Confirm while a submission is running.
	ErrSubmissionInFlight = errors.New("read submission already in flight")
)

// Submitter sends a confirmed read to the ad server.
type Submitter interface {
	SubmitRead(ctx context.Context, sub ads.ReadSubmission) error
}

// Feed is the post-read side of an ad feed.
type Feed interface {
	Refresh(ctx context.Context)
	Acknowledge(id ads.Identifier) bool
}

// PendingRead is the ad selected for reading.
type PendingRead struct {
	AdType ads.AdType     `json:"ad_type"`
	AdID   ads.Identifier `json:"ad_id"`
}

// Workflow owns the pending read.
type Workflow struct {
	submitter Submitter
	clock     clock.TimeSource
	feeds     map[ads.AdType]Feed
	bus       events.Publisher
	logger    zerolog.Logger

	mu         sync.Mutex
	pending    *PendingRead
	submitting bool

	wg sync.WaitGroup
}

// New creates the workflow. feeds maps each ad type to the feed its
// post-read action runs against.
func New(submitter Submitter, source clock.TimeSource, feeds map[ads.AdType]Feed, bus events.Publisher, logger zerolog.Logger) (*Workflow, error) {
	if submitter == nil {
		return nil, fmt.Errorf("read workflow: submitter is required")
	}
	if source == nil {
		return nil, fmt.Errorf("read workflow: time source is required")
	}
	for _, adType := range ads.AllTypes {
		if feeds[adType] == nil {
			return nil, fmt.Errorf("read workflow: no feed for %s", adType)
		}
	}
	if bus == nil {
		bus = events.Nop{}
	}

	return &Workflow{
		submitter: submitter,
		clock:     source,
		feeds:     feeds,
		bus:       bus,
		logger:    logger.With().Str("component", "readit").Logger(),
	}, nil
}

// BeginRead selects an ad, replacing any earlier selection.
func (w *Workflow) BeginRead(adType ads.AdType, id ads.Identifier) error {
	adType, err := ads.ParseAdType(string(adType))
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(id)) == "" {
		return &ads.ValidationError{Field: "ad_id", Reason: "must not be empty"}
	}

	w.mu.Lock()
	w.pending = &PendingRead{AdType: adType, AdID: id}
	w.mu.Unlock()

	w.logger.Debug().Str("ad_type", string(adType)).Str("ad_id", string(id)).Msg("read pending")
	return nil
}

// Cancel clears the selection.
func (w *Workflow) Cancel() {
	w.mu.Lock()
	w.pending = nil
	w.mu.Unlock()
}

// Pending returns the selected ad, if any.
func (w *Workflow) Pending() (PendingRead, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == nil {
		return PendingRead{}, false
	}
	return *w.pending, true
}

// Submitting reports whether a submission is in flight.
func (w *Workflow) Submitting() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.submitting
}

// Confirm submits the pending read with the DJ's initials. The submission
// runs in the background; Confirm only reports input errors.
func (w *Workflow) Confirm(ctx context.Context, initials string) error {
	initials = strings.TrimSpace(initials)
	if initials == "" {
		return &ads.ValidationError{Field: "dj_initials", Reason: "must not be empty"}
	}

	w.mu.Lock()
	if w.pending == nil {
		w.mu.Unlock()
		return ErrNoPendingRead
	}
	if w.submitting {
		w.mu.Unlock()
		return ErrSubmissionInFlight
	}
	target := *w.pending
	w.submitting = true
	w.mu.Unlock()

	now := w.clock.Now()
	sub := ads.ReadSubmission{
		AdType:      target.AdType,
		AdID:        target.AdID,
		DJInitials:  initials,
		CurrentTime: now.Unix(),
		CurrentHour: now.Hour(),
	}
	submissionID := uuid.NewString()

	ctx = context.WithoutCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.submit(ctx, submissionID, sub)
	}()
	return nil
}

// Wait blocks until every in-flight submission has completed.
func (w *Workflow) Wait() {
	w.wg.Wait()
}

func (w *Workflow) submit(ctx context.Context, submissionID string, sub ads.ReadSubmission) {
	logger := w.logger.With().
		Str("submission_id", submissionID).
		Str("ad_type", string(sub.AdType)).
		Str("ad_id", string(sub.AdID)).
		Logger()

	err := w.submitter.SubmitRead(ctx, sub)
	if err != nil {
		w.mu.Lock()
		w.submitting = false
		w.mu.Unlock()

		telemetry.ReadSubmissionsTotal.WithLabelValues(string(sub.AdType), "error").Inc()
		logger.Warn().Err(err).Msg("failed to submit read, keeping it pending")
		w.bus.Publish(events.EventReadFailed, events.Payload{
			"submission_id": submissionID,
			"ad_type":       string(sub.AdType),
			"ad_id":         string(sub.AdID),
			"error":         err.Error(),
		})
		return
	}

	telemetry.ReadSubmissionsTotal.WithLabelValues(string(sub.AdType), "success").Inc()
	logger.Info().Str("dj_initials", sub.DJInitials).Msg("read confirmed")

	feed := w.feeds[sub.AdType]
	if sub.AdType.RefetchAfterRead() {
		feed.Refresh(ctx)
	} else {
		feed.Acknowledge(sub.AdID)
	}

	// Whatever was selected meanwhile is dropped along with the submitted read.
	w.mu.Lock()
	w.pending = nil
	w.submitting = false
	w.mu.Unlock()

	w.bus.Publish(events.EventReadConfirmed, events.Payload{
		"submission_id": submissionID,
		"ad_type":       string(sub.AdType),
		"ad_id":         string(sub.AdID),
		"dj_initials":   sub.DJInitials,
	})
}
