/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package ads

import (
	"context"
	"errors"
	"sync"
)

var errTransport = errors.New("ad server unavailable")

type fetchCall struct {
	adType AdType
	req    FetchRequest
}

// fakeTransport records calls and answers from per-type queues. A queued
// response with a non-nil gate blocks until the gate is closed.
type fakeTransport struct {
	mu        sync.Mutex
	fetches   []fetchCall
	skips     []Identifier
	responses map[AdType][]fakeResponse
	skipErr   error
}

type fakeResponse struct {
	items []Ad
	err   error
	gate  chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{responses: make(map[AdType][]fakeResponse)}
}

func (f *fakeTransport) queue(adType AdType, resp fakeResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[adType] = append(f.responses[adType], resp)
}

func (f *fakeTransport) FetchAds(ctx context.Context, adType AdType, req FetchRequest) ([]Ad, error) {
	f.mu.Lock()
	f.fetches = append(f.fetches, fetchCall{adType: adType, req: req})
	var resp fakeResponse
	if q := f.responses[adType]; len(q) > 0 {
		resp = q[0]
		f.responses[adType] = q[1:]
	}
	f.mu.Unlock()

	if resp.gate != nil {
		<-resp.gate
	}
	return resp.items, resp.err
}

func (f *fakeTransport) SkipPSA(ctx context.Context, id Identifier) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.skips = append(f.skips, id)
	return f.skipErr
}

func (f *fakeTransport) fetchCount(adType AdType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, call := range f.fetches {
		if call.adType == adType {
			n++
		}
	}
	return n
}

func (f *fakeTransport) lastFetch() fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[len(f.fetches)-1]
}

func (f *fakeTransport) skipCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.skips)
}

func ads(ids ...string) []Ad {
	out := make([]Ad, 0, len(ids))
	for _, id := range ids {
		out = append(out, Ad{ID: Identifier(id), Title: "ad " + id})
	}
	return out
}
