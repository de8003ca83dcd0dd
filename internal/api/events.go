/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	ws "nhooyr.io/websocket"

	"github.com/friendsincode/djblaster/internal/events"
	"github.com/friendsincode/djblaster/internal/telemetry"
)

const (
	wsPingInterval = 15 * time.Second
	wsWriteTimeout = 5 * time.Second
)

type eventMessage struct {
	eventType events.EventType
	payload   events.Payload
}

// handleEvents streams bus events to the booth display. The optional types
// query parameter narrows the stream to a comma-separated list.
func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	eventTypes := parseEventTypes(r.URL.Query().Get("types"))
	if len(eventTypes) == 0 {
		eventTypes = events.AllEventTypes
	}

	conn, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: a.originPatterns})
	if err != nil {
		a.logger.Warn().Err(err).Str("origin", r.Header.Get("Origin")).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	telemetry.APIWebSocketConnections.Inc()
	defer telemetry.APIWebSocketConnections.Dec()

	// The display never sends; CloseRead handles its close frame.
	ctx := conn.CloseRead(r.Context())

	merged := make(chan eventMessage, 16)
	for _, eventType := range eventTypes {
		sub := a.bus.Subscribe(eventType)
		defer a.bus.Unsubscribe(eventType, sub)
		go forward(ctx, eventType, sub, merged)
	}

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "")
			return
		case <-ticker.C:
			if err := a.writeMessage(ctx, conn, []byte(`{"type":"ping"}`)); err != nil {
				a.logger.Debug().Err(err).Msg("websocket ping failed")
				return
			}
		case msg := <-merged:
			if err := a.writeEvent(ctx, conn, msg.eventType, msg.payload); err != nil {
				a.logger.Debug().Err(err).Msg("websocket write failed")
				return
			}
		}
	}
}

// forward copies one subscription into the merged stream until the
// subscription is closed or the connection ends.
func forward(ctx context.Context, eventType events.EventType, sub events.Subscriber, out chan<- eventMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub:
			if !ok {
				return
			}
			select {
			case out <- eventMessage{eventType: eventType, payload: payload}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (a *API) writeEvent(ctx context.Context, conn *ws.Conn, eventType events.EventType, payload events.Payload) error {
	data := map[string]any{
		"type":    eventType,
		"payload": payload,
	}
	bytes, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return a.writeMessage(ctx, conn, bytes)
}

func (a *API) writeMessage(ctx context.Context, conn *ws.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(ctx, ws.MessageText, data)
}

func parseEventTypes(raw string) []events.EventType {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]events.EventType, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, events.EventType(part))
	}
	return out
}
