/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package ads holds the three ad feeds shown in the booth and the rules for
// when each one is fetched from the ad server.
package ads

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// AdType identifies one of the booth's ad feeds. Values are the slugs the ad
// server uses in its URLs.
type AdType string

const (
	Event           AdType = "event"
	ShowSponsorship AdType = "show-sponsorship"
	PSA             AdType = "psa"
)

// AllTypes lists the ad types in the order their feeds are refreshed.
var AllTypes = []AdType{ShowSponsorship, Event, PSA}

// ParseAdType validates a wire slug.
func ParseAdType(s string) (AdType, error) {
	switch t := AdType(strings.ToLower(strings.TrimSpace(s))); t {
	case Event, ShowSponsorship, PSA:
		return t, nil
	default:
		return "", &ValidationError{Field: "ad_type", Reason: fmt.Sprintf("unknown ad type %q", s)}
	}
}

func (t AdType) String() string { return string(t) }

// HourGated reports whether fetches depend on the active-hour window.
func (t AdType) HourGated() bool { return t == Event }

// SupportsSkip reports whether the operator may skip an ad of this type.
func (t AdType) SupportsSkip() bool { return t == PSA }

// RefetchAfterRead reports whether a confirmed read re-fetches the feed. The
// alternative is marking the read ad as acknowledged in place.
func (t AdType) RefetchAfterRead() bool { return t != ShowSponsorship }

// Identifier is an ad id as sent by the ad server, which uses both JSON
// numbers and strings.
type Identifier string

// UnmarshalJSON accepts a JSON string or number.
func (id *Identifier) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = Identifier(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("ad id must be a string or number: %w", err)
	}
	*id = Identifier(n.String())
	return nil
}

// Window is an inclusive range of hours.
type Window struct {
	StartHour int `json:"start_hour"`
	EndHour   int `json:"end_hour"`
}

// DefaultEventWindow is the hour range event ads are requested in.
var DefaultEventWindow = Window{StartHour: 7, EndHour: 21}

// Contains reports whether StartHour <= hour <= EndHour.
func (w Window) Contains(hour int) bool {
	return hour >= w.StartHour && hour <= w.EndHour
}

// Validate checks both bounds are hours and ordered.
func (w Window) Validate() error {
	if w.StartHour < 0 || w.StartHour > 23 || w.EndHour < 0 || w.EndHour > 23 {
		return &ValidationError{Field: "event_active_window", Reason: fmt.Sprintf("hours must be 0-23, got %d-%d", w.StartHour, w.EndHour)}
	}
	if w.StartHour > w.EndHour {
		return &ValidationError{Field: "event_active_window", Reason: fmt.Sprintf("start %d is after end %d", w.StartHour, w.EndHour)}
	}
	return nil
}

// Ad is one entry of a feed.
type Ad struct {
	ID           Identifier     `json:"id"`
	Title        string         `json:"title,omitempty"`
	Content      string         `json:"content,omitempty"`
	Acknowledged bool           `json:"acknowledged"`
	Fields       map[string]any `json:"fields,omitempty"`
}

// UnmarshalJSON reads the ad server's object form. Keys other than id, title
// and content are kept in Fields.
func (a *Ad) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode ad: %w", err)
	}

	idRaw, ok := raw["id"]
	if !ok {
		return fmt.Errorf("decode ad: missing id")
	}
	var ad Ad
	if err := ad.ID.UnmarshalJSON(idRaw); err != nil {
		return fmt.Errorf("decode ad: %w", err)
	}
	delete(raw, "id")

	for key, dst := range map[string]*string{"title": &ad.Title, "content": &ad.Content} {
		v, ok := raw[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return fmt.Errorf("decode ad %s: %s: %w", ad.ID, key, err)
		}
		delete(raw, key)
	}

	if len(raw) > 0 {
		ad.Fields = make(map[string]any, len(raw))
		for key, v := range raw {
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return fmt.Errorf("decode ad %s: %s: %w", ad.ID, key, err)
			}
			ad.Fields[key] = val
		}
	}

	*a = ad
	return nil
}

// FeedState is a read-only snapshot of a feed. Loaded is false until the
// first successful fetch; a loaded feed may hold no items.
type FeedState struct {
	Type   AdType `json:"ad_type"`
	Loaded bool   `json:"loaded"`
	Items  []Ad   `json:"items"`
}

// FetchRequest is the body of a feed request. Fields a feed does not send
// are nil.
type FetchRequest struct {
	CurrentTime int64 `json:"current_time"`
	CurrentHour *int  `json:"current_hour,omitempty"`
	StartHour   *int  `json:"start_hour,omitempty"`
	EndHour     *int  `json:"end_hour,omitempty"`
}

// ReadSubmission records a DJ reading an ad on air.
type ReadSubmission struct {
	AdType      AdType     `json:"ad_type"`
	AdID        Identifier `json:"ad_id"`
	DJInitials  string     `json:"dj_initials"`
	CurrentTime int64      `json:"current_time"`
	CurrentHour int        `json:"current_hour"`
}
