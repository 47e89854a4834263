// Package worker provides the HTTP surface over the memory engine.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/mnemonic/internal/domain"
	"github.com/thebtf/mnemonic/internal/worker/sse"
	"github.com/thebtf/mnemonic/pkg/models"
)

// Server wires the domain service to HTTP routes and streams domain events
// to SSE clients.
type Server struct {
	service     *domain.Service
	broadcaster *sse.Broadcaster
	httpServer  *http.Server
}

// NewServer creates a server around the given service and bridges every
// domain event type onto the SSE broadcaster.
func NewServer(service *domain.Service, port int) *Server {
	s := &Server{
		service:     service,
		broadcaster: sse.NewBroadcaster(),
	}

	for _, eventType := range []string{
		models.EventMemoryEntryCreated,
		models.EventMemoryEntryUpdated,
		models.EventConflictDetected,
		models.EventConfidenceUpdated,
		models.EventSearchSessionStarted,
		models.EventLayerAdded,
		models.EventResultAdded,
		models.EventSearchSessionCompleted,
		models.EventSearchSessionFailed,
	} {
		service.SubscribeToEvents(eventType, s.broadcaster.Broadcast)
	}

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("127.0.0.1:%d", port),
		Handler:     s.Routes(),
		ReadTimeout: 30 * time.Second,
	}
	return s
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/solutions", s.handleStoreSolution)
		r.Get("/solutions", s.handleFindSolution)
		r.Get("/solutions/ranked", s.handleRankedSolutions)
		r.Post("/solutions/bulk", s.handleLoadSolutions)
		r.Get("/suggestions", s.handleSuggestions)
		r.Post("/categorize", s.handleCategorize)
		r.Get("/categories", s.handleCategories)
		r.Get("/stats", s.handleStats)
		r.Post("/clear", s.handleClear)

		r.Post("/entries", s.handleCreateEntry)
		r.Put("/entries/{id}", s.handleUpdateEntry)
		r.Get("/entries/{id}", s.handleGetEntry)
		r.Get("/entries", s.handleQueryEntries)

		r.Post("/sessions", s.handleStartSession)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Post("/sessions/{id}/layers", s.handleAddLayer)
		r.Post("/sessions/{id}/results", s.handleAddResult)
		r.Post("/sessions/{id}/complete", s.handleCompleteSession)
		r.Post("/sessions/{id}/fail", s.handleFailSession)

		r.Get("/events/stream", s.broadcaster.HandleSSE)
	})

	return r
}

// ListenAndServe runs the HTTP server until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.httpServer.Addr).Msg("Worker listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
