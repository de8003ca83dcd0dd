/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the booth display and operator intents over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/djblaster/internal/ads"
	"github.com/friendsincode/djblaster/internal/clock"
	"github.com/friendsincode/djblaster/internal/debugtime"
	"github.com/friendsincode/djblaster/internal/events"
	"github.com/friendsincode/djblaster/internal/readit"
)

// maxBodyBytes bounds operator request bodies.
const maxBodyBytes = 64 << 10

// Feed is the display side of an ad feed.
type Feed interface {
	Type() ads.AdType
	Snapshot() ads.FeedState
	RequestSkip(ctx context.Context, id ads.Identifier) error
}

// Reads is the pending-read workflow.
type Reads interface {
	BeginRead(adType ads.AdType, id ads.Identifier) error
	Cancel()
	Pending() (readit.PendingRead, bool)
	Submitting() bool
	Confirm(ctx context.Context, initials string) error
}

// TimeControl moves the simulated clock.
type TimeControl interface {
	AdvanceHour(ctx context.Context, delta int) (time.Time, error)
	AdvanceDay(ctx context.Context, delta int) (time.Time, error)
}

// API exposes HTTP handlers.
type API struct {
	feeds  []Feed
	byType map[ads.AdType]Feed
	reads  Reads
	clock  clock.TimeSource
	debug  TimeControl
	bus    *events.Bus
	logger zerolog.Logger

	// originPatterns are extra browser origins allowed on the event stream.
	// Same-host origins are always allowed.
	originPatterns []string
}

// Option customizes the API.
type Option func(*API)

// WithOriginPatterns allows event-stream connections from origins whose host
// matches one of patterns (path.Match syntax, e.g. "localhost:8090").
func WithOriginPatterns(patterns ...string) Option {
	return func(a *API) { a.originPatterns = append(a.originPatterns, patterns...) }
}

// New creates the API router wrapper. debug is nil when the clock is live.
func New(feeds []Feed, reads Reads, source clock.TimeSource, debug TimeControl, bus *events.Bus, logger zerolog.Logger, opts ...Option) *API {
	byType := make(map[ads.AdType]Feed, len(feeds))
	for _, feed := range feeds {
		byType[feed.Type()] = feed
	}
	a := &API{
		feeds:  feeds,
		byType: byType,
		reads:  reads,
		clock:  source,
		debug:  debug,
		bus:    bus,
		logger: logger.With().Str("component", "api").Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type beginReadRequest struct {
	AdType string         `json:"ad_type"`
	AdID   ads.Identifier `json:"ad_id"`
}

type confirmReadRequest struct {
	DJInitials string `json:"dj_initials"`
}

type advanceRequest struct {
	Delta int `json:"delta"`
}

// Routes mounts the API under /api/v1.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		r.Get("/feeds", a.handleFeedsList)
		r.Get("/feeds/{adType}", a.handleFeedGet)
		r.Get("/time", a.handleTime)

		r.Route("/reads", func(r chi.Router) {
			r.Post("/", a.handleReadBegin)
			r.Get("/pending", a.handleReadPending)
			r.Delete("/pending", a.handleReadCancel)
			r.Post("/confirm", a.handleReadConfirm)
		})

		r.Post("/psas/{adID}/skip", a.handlePSASkip)

		r.Route("/debug", func(r chi.Router) {
			r.Use(a.requireSimulatedTime)
			r.Post("/hour", a.handleAdvanceHour)
			r.Post("/day", a.handleAdvanceDay)
		})

		r.Get("/events", a.handleEvents)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleFeedsList(w http.ResponseWriter, r *http.Request) {
	feeds := make([]ads.FeedState, 0, len(a.feeds))
	for _, feed := range a.feeds {
		feeds = append(feeds, feed.Snapshot())
	}
	writeJSON(w, http.StatusOK, map[string]any{"feeds": feeds})
}

func (a *API) handleFeedGet(w http.ResponseWriter, r *http.Request) {
	adType, err := ads.ParseAdType(chi.URLParam(r, "adType"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_ad_type")
		return
	}
	feed, ok := a.byType[adType]
	if !ok {
		writeError(w, http.StatusNotFound, "feed_not_found")
		return
	}
	writeJSON(w, http.StatusOK, feed.Snapshot())
}

func (a *API) handleTime(w http.ResponseWriter, r *http.Request) {
	now := a.clock.Now()
	writeJSON(w, http.StatusOK, map[string]any{
		"simulated":    a.debug != nil,
		"current_time": now.Unix(),
		"current_hour": a.clock.CurrentHour(),
		"date":         now.Format(time.DateOnly),
	})
}

func (a *API) handleReadBegin(w http.ResponseWriter, r *http.Request) {
	var req beginReadRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := a.reads.BeginRead(ads.AdType(req.AdType), req.AdID); err != nil {
		a.writeDomainError(w, err)
		return
	}
	a.handleReadPending(w, r)
}

func (a *API) handleReadPending(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"pending":    false,
		"submitting": a.reads.Submitting(),
	}
	if pending, ok := a.reads.Pending(); ok {
		resp["pending"] = true
		resp["ad_type"] = pending.AdType
		resp["ad_id"] = pending.AdID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleReadCancel(w http.ResponseWriter, r *http.Request) {
	a.reads.Cancel()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (a *API) handleReadConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmReadRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := a.reads.Confirm(r.Context(), req.DJInitials); err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "submitted"})
}

func (a *API) handlePSASkip(w http.ResponseWriter, r *http.Request) {
	feed, ok := a.byType[ads.PSA]
	if !ok {
		writeError(w, http.StatusNotFound, "feed_not_found")
		return
	}

	id := ads.Identifier(chi.URLParam(r, "adID"))
	if err := feed.RequestSkip(r.Context(), id); err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "skip_requested"})
}

func (a *API) requireSimulatedTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.debug == nil {
			writeError(w, http.StatusNotFound, "debug_disabled")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) handleAdvanceHour(w http.ResponseWriter, r *http.Request) {
	a.handleAdvance(w, r, a.debug.AdvanceHour)
}

func (a *API) handleAdvanceDay(w http.ResponseWriter, r *http.Request) {
	a.handleAdvance(w, r, a.debug.AdvanceDay)
}

func (a *API) handleAdvance(w http.ResponseWriter, r *http.Request, advance func(context.Context, int) (time.Time, error)) {
	var req advanceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	now, err := advance(r.Context(), req.Delta)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"simulated":    true,
		"current_time": now.Unix(),
		"current_hour": now.Hour(),
		"date":         now.Format(time.DateOnly),
	})
}

func (a *API) writeDomainError(w http.ResponseWriter, err error) {
	var ve *ads.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":  "validation_failed",
			"field":  ve.Field,
			"reason": ve.Reason,
		})
	case errors.Is(err, readit.ErrNoPendingRead):
		writeError(w, http.StatusConflict, "no_pending_read")
	case errors.Is(err, readit.ErrSubmissionInFlight):
		writeError(w, http.StatusConflict, "submission_in_flight")
	case errors.Is(err, ads.ErrSkipUnsupported):
		writeError(w, http.StatusBadRequest, "skip_unsupported")
	case errors.Is(err, debugtime.ErrInvalidDelta):
		writeError(w, http.StatusBadRequest, "invalid_delta")
	default:
		a.logger.Error().Err(err).Msg("operator request failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
