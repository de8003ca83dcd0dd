/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package adserver talks to the station's ad server over JSON POSTs.
package adserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/friendsincode/djblaster/internal/ads"
	"github.com/friendsincode/djblaster/internal/telemetry"
	"github.com/friendsincode/djblaster/internal/version"
)

const (
	tracerName = "djblaster/adserver"

	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 4 << 20

	// DefaultTimeout bounds a single ad-server call.
	DefaultTimeout = 10 * time.Second
)

var feedPaths = map[ads.AdType]string{
	ads.ShowSponsorship: "/ajax/get-show-sponsorships",
	ads.Event:           "/ajax/get-events",
	ads.PSA:             "/ajax/get-psas",
}

// TransportError is any failed ad-server call. StatusCode is zero when no
// response was received.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ad server %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("ad server %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is, or wraps, a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Client calls the ad server.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its transport is used
// as is.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a client for the ad server at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse ad server url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("ad server url must be an absolute http(s) url, got %q", baseURL)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: telemetry.HTTPTransport(nil),
		},
		logger: logger.With().Str("component", "adserver").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchAds requests the current feed for adType. An empty, null or false
// body yields no ads.
func (c *Client) FetchAds(ctx context.Context, adType ads.AdType, req ads.FetchRequest) ([]ads.Ad, error) {
	path, ok := feedPaths[adType]
	if !ok {
		return nil, &ads.ValidationError{Field: "ad_type", Reason: fmt.Sprintf("no feed for %q", adType)}
	}

	op := "fetch-" + string(adType)
	body, err := c.post(ctx, op, adType, path, req)
	if err != nil {
		return nil, err
	}

	items, err := decodeFeed(body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	return items, nil
}

// SkipPSA asks the ad server to skip the PSA with id.
func (c *Client) SkipPSA(ctx context.Context, id ads.Identifier) error {
	path := "/ajax/skip-psa/" + url.PathEscape(string(id))
	_, err := c.post(ctx, "skip-psa", ads.PSA, path, struct{}{})
	return err
}

// SubmitRead records that a DJ read an ad on air.
func (c *Client) SubmitRead(ctx context.Context, sub ads.ReadSubmission) error {
	path := fmt.Sprintf("/ajax/dj-read/%s/%s", url.PathEscape(string(sub.AdType)), url.PathEscape(string(sub.AdID)))
	_, err := c.post(ctx, "submit-read", sub.AdType, path, sub)
	return err
}

func (c *Client) post(ctx context.Context, op string, adType ads.AdType, path string, payload any) ([]byte, error) {
	requestID := uuid.NewString()

	ctx, span := telemetry.StartSpan(ctx, tracerName, "adserver."+op)
	defer span.End()
	span.SetAttributes(telemetry.AdRequestAttributes(op, string(adType), requestID)...)

	body, err := c.do(ctx, op, path, requestID, payload)
	if err != nil {
		telemetry.RecordError(span, err)
		c.logger.Warn().
			Err(err).
			Str("op", op).
			Str("ad_type", string(adType)).
			Str("request_id", requestID).
			Msg("ad server request failed")
		return nil, err
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, op, path, requestID string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(statusDetail(resp.StatusCode, body))}
	}

	c.logger.Debug().
		Str("op", op).
		Str("request_id", requestID).
		Str("trace_id", trace.SpanContextFromContext(ctx).TraceID().String()).
		Int("status", resp.StatusCode).
		Msg("ad server request complete")
	return body, nil
}

func decodeFeed(body []byte) ([]ads.Ad, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("false")) {
		return []ads.Ad{}, nil
	}

	var items []ads.Ad
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	if items == nil {
		items = []ads.Ad{}
	}
	return items, nil
}

func statusDetail(status int, body []byte) string {
	detail := strings.TrimSpace(string(body))
	if len(detail) > 200 {
		detail = detail[:200]
	}
	if detail == "" {
		return http.StatusText(status)
	}
	return detail
}
