package domain

import (
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/mnemonic/internal/eventbus"
)

// Service is the application-facing surface over the domain engine. String
// results are JSON so host runtimes can pass them through unparsed.
type Service struct {
	engine *Engine
}

// NewService creates a service around a fresh domain engine.
func NewService() *Service {
	return &Service{engine: NewEngine()}
}

// Engine exposes the underlying domain engine.
func (s *Service) Engine() *Engine {
	return s.engine
}

// Initialize loads categories and starts the event machinery.
func (s *Service) Initialize(categories map[string][]string) bool {
	return s.engine.InitializeDomain(categories)
}

// Shutdown stops the domain engine's event bus.
func (s *Service) Shutdown() {
	s.engine.Shutdown()
}

// CreateMemoryEntry creates an entry and returns its id.
func (s *Service) CreateMemoryEntry(problem, solution, category string) string {
	return s.engine.CreateMemoryEntry(problem, solution, category)
}

// UpdateMemoryEntry updates an entry's solution.
func (s *Service) UpdateMemoryEntry(entryID, newSolution, reason string) bool {
	return s.engine.UpdateMemoryEntry(entryID, newSolution, reason)
}

// SearchMemories returns ranked suggestions for a query as a JSON string.
func (s *Service) SearchMemories(query, category string, maxResults int) string {
	return s.engine.SearchWithContext(query, category, maxResults)
}

// GetMemoryEntry returns an entry snapshot as JSON, or "{}" when the id is
// unknown.
func (s *Service) GetMemoryEntry(entryID string) string {
	view, ok := s.engine.GetMemoryEntry(entryID)
	if !ok {
		return "{}"
	}

	data, err := json.Marshal(view)
	if err != nil {
		log.Error().Err(err).Str("entryId", entryID).Msg("Failed to marshal memory entry")
		return "{}"
	}
	return string(data)
}

// Statistics returns the combined domain statistics JSON.
func (s *Service) Statistics() string {
	return s.engine.DomainStatistics()
}

// SubscribeToEvents registers an external handler for a domain event type.
func (s *Service) SubscribeToEvents(eventType string, handler eventbus.Handler) {
	s.engine.SubscribeToEvents(eventType, handler)
}
