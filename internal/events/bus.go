/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "sync"

// EventType enumerates diagnostic event categories pushed to the booth display.
type EventType string

const (
	EventFeedUpdated     EventType = "feed.updated"
	EventFeedFetchFailed EventType = "feed.fetch_failed"
	EventReadConfirmed   EventType = "read.confirmed"
	EventReadFailed      EventType = "read.failed"
	EventPSASkipped      EventType = "psa.skipped"
	EventPSASkipFailed   EventType = "psa.skip_failed"
	EventTimeChanged     EventType = "time.changed"
)

// AllEventTypes lists every event type in a stable order.
var AllEventTypes = []EventType{
	EventFeedUpdated,
	EventFeedFetchFailed,
	EventReadConfirmed,
	EventReadFailed,
	EventPSASkipped,
	EventPSASkipFailed,
	EventTimeChanged,
}

// Payload generic event payload.
type Payload map[string]any

// Subscriber receives event payloads.
type Subscriber chan Payload

// Publisher is the write side of the bus.
type Publisher interface {
	Publish(eventType EventType, payload Payload)
}

// Bus implements a simple in-process pubsub.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 8)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers. Slow subscribers miss events rather
// than blocking the publisher.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	// Sends never block, so holding the read lock keeps Unsubscribe from
	// closing a channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs[eventType] {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes the subscriber.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			subs = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	b.subs[eventType] = subs
	close(sub)
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(EventType, Payload) {}
