package domain

import (
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/mnemonic/internal/engine"
	"github.com/thebtf/mnemonic/internal/eventbus"
	"github.com/thebtf/mnemonic/pkg/models"
)

// Engine is the domain-driven memory engine: the enhanced lookup engine plus
// the event bus and the id-keyed aggregate stores. Every aggregate mutation
// commits its events to the bus before the domain lock is released, so a
// handler sees one aggregate's events in raise order.
type Engine struct {
	*engine.Enhanced

	bus *eventbus.Bus

	mu       sync.RWMutex
	entries  map[string]*MemoryEntry
	sessions map[string]*SearchSession
}

// NewEngine creates a domain engine with a stopped bus. Call
// InitializeDomain before use.
func NewEngine() *Engine {
	return &Engine{
		Enhanced: engine.NewEnhanced(),
		bus:      eventbus.New(),
		entries:  make(map[string]*MemoryEntry),
		sessions: make(map[string]*SearchSession),
	}
}

// InitializeDomain loads the error categories, registers the default event
// handlers and starts the bus.
func (e *Engine) InitializeDomain(categories map[string][]string) bool {
	if !e.Initialize(categories) {
		return false
	}

	for _, eventType := range []string{
		models.EventMemoryEntryCreated,
		models.EventMemoryEntryUpdated,
		models.EventSearchSessionStarted,
		models.EventSearchSessionCompleted,
	} {
		e.bus.Subscribe(eventType, logEvent)
	}

	e.bus.Start()
	return true
}

// logEvent is the default handler for the primary event types.
func logEvent(event models.Event) {
	log.Debug().
		Str("eventId", event.ID).
		Str("eventType", event.EventType).
		Str("aggregateId", event.AggregateID).
		Int("version", event.Version).
		Msg("Domain event")
}

// Shutdown stops the event bus. Pending events are drained first.
func (e *Engine) Shutdown() {
	e.bus.Stop()
}

// CreateMemoryEntry builds a memory entry aggregate, commits its creation
// event and mirrors the pair into the lookup cache under the project scope.
// There is no atomicity between the cache write and the event publish;
// consumers that need both must subscribe.
func (e *Engine) CreateMemoryEntry(problem, solution, category string) string {
	entry := NewMemoryEntry(problem, solution, category)

	e.mu.Lock()
	e.commit(entry)
	e.entries[entry.ID()] = entry
	e.mu.Unlock()

	e.StoreSolution(problem, category, solution, false)

	return entry.ID()
}

// UpdateMemoryEntry replaces an entry's solution through the aggregate.
// Returns false when the id is unknown.
func (e *Engine) UpdateMemoryEntry(entryID, newSolution, reason string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.entries[entryID]
	if !ok {
		return false
	}

	entry.UpdateSolution(newSolution, reason)
	e.commit(entry)
	return true
}

// StartSearchSession creates a search session aggregate and commits its
// start event.
func (e *Engine) StartSearchSession(query string) string {
	session := NewSearchSession(query)

	e.mu.Lock()
	e.commit(session)
	e.sessions[session.ID()] = session
	e.mu.Unlock()

	return session.ID()
}

// AddSearchLayer records a layer on a session. Returns false when the id is
// unknown or the session is terminal.
func (e *Engine) AddSearchLayer(sessionID, layerType string) bool {
	return e.mutateSession(sessionID, func(s *SearchSession) error {
		return s.AddLayer(layerType)
	})
}

// AddSearchResult records a result on a session. Returns false when the id
// is unknown or the session is terminal.
func (e *Engine) AddSearchResult(sessionID, resultID string, confidence float64) bool {
	return e.mutateSession(sessionID, func(s *SearchSession) error {
		return s.AddResult(resultID, confidence)
	})
}

// CompleteSearchSession moves a session to its completed state. Returns
// false when the id is unknown or the session is already terminal.
func (e *Engine) CompleteSearchSession(sessionID string, confidence float64) bool {
	return e.mutateSession(sessionID, func(s *SearchSession) error {
		return s.Complete(confidence)
	})
}

// FailSearchSession moves a session to its failed state. Returns false when
// the id is unknown or the session is already terminal.
func (e *Engine) FailSearchSession(sessionID, reason string) bool {
	return e.mutateSession(sessionID, func(s *SearchSession) error {
		return s.Fail(reason)
	})
}

func (e *Engine) mutateSession(sessionID string, mutate func(*SearchSession) error) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	session, ok := e.sessions[sessionID]
	if !ok {
		return false
	}
	if err := mutate(session); err != nil {
		log.Debug().Str("sessionId", sessionID).Err(err).Msg("Session mutation rejected")
		return false
	}

	e.commit(session)
	return true
}

// GetMemoryEntry returns a snapshot of a memory entry.
func (e *Engine) GetMemoryEntry(entryID string) (MemoryEntryView, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	entry, ok := e.entries[entryID]
	if !ok {
		return MemoryEntryView{}, false
	}
	return entry.View(), true
}

// GetSearchSession returns a snapshot of a search session.
func (e *Engine) GetSearchSession(sessionID string) (SearchSessionView, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	session, ok := e.sessions[sessionID]
	if !ok {
		return SearchSessionView{}, false
	}
	return session.View(), true
}

// FindEntriesByCategory returns snapshots of every entry in a category.
func (e *Engine) FindEntriesByCategory(category string) []MemoryEntryView {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var views []MemoryEntryView
	for _, entry := range e.entries {
		if entry.Category() == category {
			views = append(views, entry.View())
		}
	}
	return views
}

// SearchEntriesByProblem returns snapshots of entries whose problem text
// contains the query (case-insensitive).
func (e *Engine) SearchEntriesByProblem(query string) []MemoryEntryView {
	lowered := strings.ToLower(query)

	e.mu.RLock()
	defer e.mu.RUnlock()

	var views []MemoryEntryView
	for _, entry := range e.entries {
		if strings.Contains(strings.ToLower(entry.Problem()), lowered) {
			views = append(views, entry.View())
		}
	}
	return views
}

// SearchWithContext runs the enhanced suggestions path for a problem.
func (e *Engine) SearchWithContext(problem, context string, _ int) string {
	return e.Suggestions(problem, context)
}

// SubscribeToEvents registers an external handler for a domain event type.
func (e *Engine) SubscribeToEvents(eventType string, handler eventbus.Handler) {
	e.bus.Subscribe(eventType, handler)
}

// DomainStatistics returns aggregate counts plus the inner engine's and the
// bus's statistics as one JSON string.
func (e *Engine) DomainStatistics() string {
	e.mu.RLock()
	memoryEntries := len(e.entries)
	searchSessions := len(e.sessions)
	e.mu.RUnlock()

	stats := map[string]any{
		"memory_entries":  memoryEntries,
		"search_sessions": searchSessions,
		"engine_stats":    json.RawMessage(e.Statistics()),
		"event_stats":     json.RawMessage(e.bus.Statistics()),
	}

	data, err := json.Marshal(stats)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal domain statistics")
		return "{}"
	}
	return string(data)
}

// commit drains an aggregate's uncommitted events onto the bus. Callers hold
// the domain lock, so one aggregate's events are enqueued contiguously.
func (e *Engine) commit(aggregate Aggregate) {
	for _, event := range aggregate.UncommittedEvents() {
		e.bus.Publish(event)
	}
}
