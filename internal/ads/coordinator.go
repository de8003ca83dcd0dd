/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package ads

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/djblaster/internal/clock"
	"github.com/friendsincode/djblaster/internal/events"
	"github.com/friendsincode/djblaster/internal/telemetry"
)

// FeedTransport is the ad-server side of a feed.
type FeedTransport interface {
	FetchAds(ctx context.Context, adType AdType, req FetchRequest) ([]Ad, error)
	SkipPSA(ctx context.Context, id Identifier) error
}

// Options tunes a Coordinator.
type Options struct {
	// Window gates Event fetches. Zero value means DefaultEventWindow.
	Window *Window
	// DiscardStale drops a response when a newer request was issued after it.
	// Off by default: the last response to arrive wins.
	DiscardStale bool
	Bus          events.Publisher
}

// Coordinator owns one ad feed. It decides on each refresh signal whether to
// fetch, and holds the latest result for the display.
type Coordinator struct {
	adType       AdType
	transport    FeedTransport
	clock        clock.TimeSource
	window       Window
	discardStale bool
	bus          events.Publisher
	logger       zerolog.Logger

	mu     sync.Mutex
	loaded bool
	items  []Ad
	issued uint64

	wg sync.WaitGroup
}

// NewCoordinator creates the feed for adType.
func NewCoordinator(adType AdType, transport FeedTransport, source clock.TimeSource, logger zerolog.Logger, opts Options) (*Coordinator, error) {
	if _, err := ParseAdType(string(adType)); err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, fmt.Errorf("%s feed: transport is required", adType)
	}
	if source == nil {
		return nil, fmt.Errorf("%s feed: time source is required", adType)
	}

	window := DefaultEventWindow
	if opts.Window != nil {
		window = *opts.Window
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}

	var bus events.Publisher = events.Nop{}
	if opts.Bus != nil {
		bus = opts.Bus
	}

	return &Coordinator{
		adType:       adType,
		transport:    transport,
		clock:        source,
		window:       window,
		discardStale: opts.DiscardStale,
		bus:          bus,
		logger:       logger.With().Str("component", "feed").Str("ad_type", string(adType)).Logger(),
	}, nil
}

// Type returns the feed's ad type.
func (c *Coordinator) Type() AdType {
	return c.adType
}

// OnRefreshSignal applies the feed's fetch rule. Event feeds outside the
// active window are cleared to loaded-but-empty without a request; every
// other case issues an asynchronous fetch.
func (c *Coordinator) OnRefreshSignal(ctx context.Context) {
	if c.adType.HourGated() {
		hour := c.clock.CurrentHour()
		if !c.window.Contains(hour) {
			c.clearOutsideWindow(hour)
			return
		}
	}
	c.fetch(ctx)
}

// Refresh fetches without consulting the active window.
func (c *Coordinator) Refresh(ctx context.Context) {
	c.fetch(ctx)
}

// RequestSkip asks the ad server to skip a PSA. On success the PSA feed is
// fetched again whatever the hour; on failure nothing changes.
func (c *Coordinator) RequestSkip(ctx context.Context, id Identifier) error {
	if !c.adType.SupportsSkip() {
		return ErrSkipUnsupported
	}
	if strings.TrimSpace(string(id)) == "" {
		return &ValidationError{Field: "ad_id", Reason: "must not be empty"}
	}

	ctx = context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.transport.SkipPSA(ctx, id); err != nil {
			telemetry.PSASkipsTotal.WithLabelValues("error").Inc()
			c.logger.Warn().Err(err).Str("ad_id", string(id)).Msg("failed to skip PSA")
			c.bus.Publish(events.EventPSASkipFailed, events.Payload{
				"ad_type": string(c.adType),
				"ad_id":   string(id),
				"error":   err.Error(),
			})
			return
		}

		telemetry.PSASkipsTotal.WithLabelValues("success").Inc()
		c.logger.Info().Str("ad_id", string(id)).Msg("PSA skipped")
		c.bus.Publish(events.EventPSASkipped, events.Payload{
			"ad_type": string(c.adType),
			"ad_id":   string(id),
		})
		c.Refresh(ctx)
	}()
	return nil
}

// Acknowledge marks the ad with id as read in place. It reports whether the
// ad was found.
func (c *Coordinator) Acknowledge(id Identifier) bool {
	c.mu.Lock()
	found := false
	for i := range c.items {
		if c.items[i].ID == id {
			c.items[i].Acknowledged = true
			found = true
			break
		}
	}
	count := len(c.items)
	c.mu.Unlock()

	if !found {
		c.logger.Debug().Str("ad_id", string(id)).Msg("acknowledged ad is no longer in the feed")
		return false
	}
	c.publishUpdated(count)
	return true
}

// Snapshot returns a copy of the feed state.
func (c *Coordinator) Snapshot() FeedState {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := FeedState{Type: c.adType, Loaded: c.loaded}
	if c.loaded {
		state.Items = make([]Ad, len(c.items))
		copy(state.Items, c.items)
	}
	return state
}

// Wait blocks until every in-flight fetch and skip has completed.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) clearOutsideWindow(hour int) {
	c.mu.Lock()
	c.loaded = true
	c.items = []Ad{}
	// An in-flight fetch from inside the window is now stale.
	c.issued++
	c.mu.Unlock()

	telemetry.FeedFetchesTotal.WithLabelValues(string(c.adType), "outside_window").Inc()
	telemetry.FeedItems.WithLabelValues(string(c.adType)).Set(0)
	c.logger.Debug().
		Int("hour", hour).
		Int("start_hour", c.window.StartHour).
		Int("end_hour", c.window.EndHour).
		Msg("outside active window, feed cleared")
	c.publishUpdated(0)
}

func (c *Coordinator) fetch(ctx context.Context) {
	req := c.fetchRequest()

	c.mu.Lock()
	c.issued++
	generation := c.issued
	c.mu.Unlock()

	// In-flight requests are never cancelled; the transport's timeout bounds them.
	ctx = context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.runFetch(ctx, generation, req)
	}()
}

func (c *Coordinator) runFetch(ctx context.Context, generation uint64, req FetchRequest) {
	start := time.Now()
	items, err := c.transport.FetchAds(ctx, c.adType, req)
	telemetry.FeedFetchDuration.WithLabelValues(string(c.adType)).Observe(time.Since(start).Seconds())

	if err != nil {
		telemetry.FeedFetchesTotal.WithLabelValues(string(c.adType), "error").Inc()
		c.logger.Warn().Err(err).Msg("failed to fetch ads, keeping previous feed")
		c.bus.Publish(events.EventFeedFetchFailed, events.Payload{
			"ad_type": string(c.adType),
			"error":   err.Error(),
		})
		return
	}
	if items == nil {
		items = []Ad{}
	}

	c.mu.Lock()
	if c.discardStale && generation != c.issued {
		c.mu.Unlock()
		telemetry.FeedFetchesTotal.WithLabelValues(string(c.adType), "stale").Inc()
		c.logger.Debug().Uint64("generation", generation).Msg("discarding stale ad response")
		return
	}
	c.loaded = true
	c.items = items
	c.mu.Unlock()

	telemetry.FeedFetchesTotal.WithLabelValues(string(c.adType), "success").Inc()
	telemetry.FeedItems.WithLabelValues(string(c.adType)).Set(float64(len(items)))
	c.logger.Debug().Int("count", len(items)).Msg("ad feed updated")
	c.publishUpdated(len(items))
}

func (c *Coordinator) fetchRequest() FetchRequest {
	now := c.clock.Now()
	req := FetchRequest{CurrentTime: now.Unix()}
	hour := now.Hour()

	switch c.adType {
	case ShowSponsorship:
		req.CurrentHour = &hour
	case Event:
		start, end := c.window.StartHour, c.window.EndHour
		req.CurrentHour = &hour
		req.StartHour = &start
		req.EndHour = &end
	}
	return req
}

func (c *Coordinator) publishUpdated(count int) {
	c.bus.Publish(events.EventFeedUpdated, events.Payload{
		"ad_type": string(c.adType),
		"count":   count,
	})
}
