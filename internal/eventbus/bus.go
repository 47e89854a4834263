// Package eventbus provides a typed publish/subscribe bus with a single
// background consumer goroutine.
package eventbus

import (
	"sync"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/mnemonic/pkg/models"
)

// Handler consumes a domain event. Handlers run on the bus's consumer
// goroutine; a failing handler never stops the bus.
type Handler func(event models.Event)

// Bus dispatches domain events to subscribed handlers in FIFO order.
// Publishing never blocks on handler execution; the publisher only holds the
// lock for the enqueue itself.
type Bus struct {
	mu       sync.Mutex
	cond     *sync.Cond
	handlers map[string][]Handler
	queue    []models.Event
	running  bool
	done     chan struct{}
}

// New creates a stopped bus. Call Start before publishing.
func New() *Bus {
	b := &Bus{handlers: make(map[string][]Handler)}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Subscribe registers a handler for an event type. Subscriptions last for the
// bus's lifetime; there is no unsubscribe.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish enqueues an event and wakes the consumer. Events from one
// publisher reach any given handler in publish order.
func (b *Bus) Publish(event models.Event) {
	b.mu.Lock()
	b.queue = append(b.queue, event)
	b.mu.Unlock()
	b.cond.Signal()
}

// Start spawns the consumer goroutine. Idempotent.
func (b *Bus) Start() {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.done = make(chan struct{})
	b.mu.Unlock()

	go b.consume()
}

// Stop signals shutdown, wakes the consumer and waits for it to exit.
// Idempotent. Events already queued are drained before the consumer exits;
// an in-flight handler runs to completion.
func (b *Bus) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	done := b.done
	b.mu.Unlock()

	b.cond.Broadcast()
	<-done
}

// consume is the single consumer loop: wait for work or shutdown, drain the
// queue FIFO, invoke handlers in subscription order.
func (b *Bus) consume() {
	b.mu.Lock()
	defer func() {
		done := b.done
		b.mu.Unlock()
		close(done)
	}()

	for {
		for b.running && len(b.queue) == 0 {
			b.cond.Wait()
		}
		if !b.running && len(b.queue) == 0 {
			return
		}

		event := b.queue[0]
		b.queue = b.queue[1:]
		handlers := b.handlers[event.EventType]
		b.mu.Unlock()

		for _, handler := range handlers {
			b.dispatch(handler, event)
		}

		b.mu.Lock()
	}
}

// dispatch invokes one handler, swallowing panics so the bus stays alive.
func (b *Bus) dispatch(handler Handler, event models.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("eventId", event.ID).
				Str("eventType", event.EventType).
				Interface("panic", r).
				Msg("Event handler failed")
		}
	}()
	handler(event)
}

type statistics struct {
	TotalHandlers int  `json:"total_handlers"`
	QueueSize     int  `json:"queue_size"`
	IsRunning     bool `json:"is_running"`
}

// Statistics returns bus counters as a JSON string. total_handlers counts
// distinct subscribed event types, not individual subscriptions; the original
// engine reported it that way and consumers depend on it.
func (b *Bus) Statistics() string {
	b.mu.Lock()
	stats := statistics{
		TotalHandlers: len(b.handlers),
		QueueSize:     len(b.queue),
		IsRunning:     b.running,
	}
	b.mu.Unlock()

	data, err := json.Marshal(stats)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal bus statistics")
		return "{}"
	}
	return string(data)
}
