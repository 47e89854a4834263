// Package domain implements the event-sourced aggregate layer: memory
// entries, search sessions, and the engine that commits their events to the
// bus.
package domain

import (
	"strconv"
	"sync"
	"time"

	"github.com/thebtf/mnemonic/pkg/models"
)

// Aggregate is the capability set shared by event-sourced entities. Each
// aggregate is its own concrete type; the commit helper in the engine
// consumes anything satisfying this interface.
type Aggregate interface {
	// ID returns the aggregate id.
	ID() string
	// Version returns the current version (one per raised event).
	Version() int
	// UncommittedEvents drains the pending events; subsequent calls return
	// nothing until more events are raised.
	UncommittedEvents() []models.Event
	// Apply re-derives state from an event, both on fresh raises and during
	// replay.
	Apply(event models.Event)
}

// aggregateBase carries the shared event-sourcing state. Aggregates embed it
// and pass their Apply method to raise.
type aggregateBase struct {
	id          string
	version     int
	uncommitted []models.Event
}

// ID returns the aggregate id.
func (b *aggregateBase) ID() string { return b.id }

// Version returns the aggregate version.
func (b *aggregateBase) Version() int { return b.version }

// UncommittedEvents drains the pending event list.
func (b *aggregateBase) UncommittedEvents() []models.Event {
	events := b.uncommitted
	b.uncommitted = nil
	return events
}

// raise increments the version, builds the event, records it as uncommitted
// and applies it so live state and replayed state stay consistent.
func (b *aggregateBase) raise(eventType, eventData string, apply func(models.Event)) {
	b.version++
	event := models.NewEvent(b.id, eventType, eventData)
	event.Version = b.version
	b.uncommitted = append(b.uncommitted, event)
	apply(event)
}

// Aggregate ids keep the <prefix>_<ms-epoch> shape of the wire format, but
// the generator bumps the millisecond value when two creations land on the
// same tick so ids are strictly increasing and never collide.
var (
	idMu     sync.Mutex
	idLastMS int64
)

func newAggregateID(prefix string) string {
	idMu.Lock()
	defer idMu.Unlock()

	ms := time.Now().UnixMilli()
	if ms <= idLastMS {
		ms = idLastMS + 1
	}
	idLastMS = ms
	return prefix + "_" + strconv.FormatInt(ms, 10)
}
