// Package sse streams domain events to connected clients over
// Server-Sent Events.
package sse

import (
	"fmt"
	"net/http"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/mnemonic/pkg/models"
)

// eventBuffer is the per-client event queue size. A client that falls this
// far behind starts losing events instead of backpressuring the bus.
const eventBuffer = 64

// client is one connected event-stream consumer.
type client struct {
	id     string
	events chan models.Event
}

// Broadcaster fans domain events out to SSE clients. Broadcast is wired as a
// bus handler and therefore runs on the bus's consumer goroutine: it must
// never block, so each client gets a buffered queue and its own write loop
// in HandleSSE.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[string]*client
}

// NewBroadcaster creates a broadcaster with no clients.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{clients: make(map[string]*client)}
}

// Broadcast queues an event for every connected client. A full client queue
// drops the event for that client only.
func (b *Broadcaster) Broadcast(event models.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, c := range b.clients {
		select {
		case c.events <- event:
		default:
			log.Warn().
				Str("clientId", c.id).
				Str("eventType", event.EventType).
				Str("eventId", event.ID).
				Msg("SSE client too slow, dropping event")
		}
	}
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *Broadcaster) register() *client {
	c := &client{
		id:     uuid.NewString(),
		events: make(chan models.Event, eventBuffer),
	}

	b.mu.Lock()
	b.clients[c.id] = c
	clientCount := len(b.clients)
	b.mu.Unlock()

	log.Debug().
		Str("clientId", c.id).
		Int("totalClients", clientCount).
		Msg("SSE client connected")

	return c
}

func (b *Broadcaster) unregister(c *client) {
	b.mu.Lock()
	delete(b.clients, c.id)
	clientCount := len(b.clients)
	b.mu.Unlock()

	log.Debug().
		Str("clientId", c.id).
		Int("totalClients", clientCount).
		Msg("SSE client disconnected")
}

// HandleSSE serves the live event stream. The stream carries no history:
// events published before the client connected are gone. Each frame uses the
// domain event type as the SSE event name, so browsers can addEventListener
// per type.
func (b *Broadcaster) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	c := b.register()
	defer b.unregister(c)

	fmt.Fprintf(w, "event: connected\ndata: {\"clientId\":%q}\n\n", c.id)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event := <-c.events:
			payload, err := json.Marshal(event)
			if err != nil {
				log.Error().Err(err).Str("eventId", event.ID).Msg("Failed to marshal domain event")
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.EventType, payload); err != nil {
				log.Debug().
					Str("clientId", c.id).
					Err(err).
					Msg("SSE write failed, closing stream")
				return
			}
			flusher.Flush()
		}
	}
}
