package worker

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/mnemonic/pkg/models"
)

// writeJSON marshals v as the response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeRawJSON writes an already-serialized JSON string.
func writeRawJSON(w http.ResponseWriter, status int, raw string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(raw)); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"sse_clients": s.broadcaster.ClientCount(),
	})
}

type storeSolutionRequest struct {
	Problem  string `json:"problem"`
	Category string `json:"category"`
	Content  string `json:"content"`
	IsGlobal bool   `json:"is_global"`
}

func (s *Server) handleStoreSolution(w http.ResponseWriter, r *http.Request) {
	var req storeSolutionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Problem == "" || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "problem and content are required"})
		return
	}

	ok := s.service.Engine().StoreSolution(req.Problem, req.Category, req.Content, req.IsGlobal)
	writeJSON(w, http.StatusOK, map[string]bool{"stored": ok})
}

func (s *Server) handleFindSolution(w http.ResponseWriter, r *http.Request) {
	problem := r.URL.Query().Get("problem")
	if problem == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "problem is required"})
		return
	}

	result := s.service.Engine().FindSolution(problem, r.URL.Query().Get("category"))
	if result == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"found": false})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRankedSolutions(w http.ResponseWriter, r *http.Request) {
	problem := r.URL.Query().Get("problem")
	if problem == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "problem is required"})
		return
	}

	maxResults := 5
	if raw := r.URL.Query().Get("max"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			maxResults = parsed
		}
	}

	ranked := s.service.Engine().FindRankedSolutions(problem, r.URL.Query().Get("category"), maxResults)
	if ranked == nil {
		ranked = []models.RankedResult{}
	}
	writeJSON(w, http.StatusOK, ranked)
}

type loadSolutionsRequest struct {
	Category  string            `json:"category"`
	Solutions map[string]string `json:"solutions"` // problem -> content
	IsGlobal  bool              `json:"is_global"`
}

func (s *Server) handleLoadSolutions(w http.ResponseWriter, r *http.Request) {
	var req loadSolutionsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Category == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "category is required"})
		return
	}

	scope := models.ScopeProject
	if req.IsGlobal {
		scope = models.ScopeGlobal
	}
	solutions := make(map[string]models.Solution, len(req.Solutions))
	for problem, content := range req.Solutions {
		solutions[problem] = models.NewSolution(content, scope)
	}

	s.service.Engine().LoadSolutions(req.Category, solutions, req.IsGlobal)
	writeJSON(w, http.StatusOK, map[string]int{"loaded": len(solutions)})
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	problem := r.URL.Query().Get("problem")
	if problem == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "problem is required"})
		return
	}

	writeRawJSON(w, http.StatusOK, s.service.Engine().Suggestions(problem, r.URL.Query().Get("context")))
}

type categorizeRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleCategorize(w http.ResponseWriter, r *http.Request) {
	var req categorizeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"category": s.service.Engine().CategorizeError(req.Message),
	})
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": s.service.Engine().Categories(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeRawJSON(w, http.StatusOK, s.service.Statistics())
}

func (s *Server) handleClear(w http.ResponseWriter, _ *http.Request) {
	s.service.Engine().Clear()
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

type createEntryRequest struct {
	Problem  string `json:"problem"`
	Solution string `json:"solution"`
	Category string `json:"category"`
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Problem == "" || req.Solution == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "problem and solution are required"})
		return
	}

	id := s.service.CreateMemoryEntry(req.Problem, req.Solution, req.Category)
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

type updateEntryRequest struct {
	Solution string `json:"solution"`
	Reason   string `json:"reason"`
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	var req updateEntryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if !s.service.UpdateMemoryEntry(chi.URLParam(r, "id"), req.Solution, req.Reason) {
		writeJSON(w, http.StatusNotFound, map[string]bool{"updated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	raw := s.service.GetMemoryEntry(chi.URLParam(r, "id"))
	status := http.StatusOK
	if raw == "{}" {
		status = http.StatusNotFound
	}
	writeRawJSON(w, status, raw)
}

func (s *Server) handleQueryEntries(w http.ResponseWriter, r *http.Request) {
	engine := s.service.Engine()

	if category := r.URL.Query().Get("category"); category != "" {
		views := engine.FindEntriesByCategory(category)
		writeJSON(w, http.StatusOK, map[string]any{"entries": views, "total": len(views)})
		return
	}
	if problem := r.URL.Query().Get("problem"); problem != "" {
		views := engine.SearchEntriesByProblem(problem)
		writeJSON(w, http.StatusOK, map[string]any{"entries": views, "total": len(views)})
		return
	}
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "category or problem is required"})
}

type startSessionRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	id := s.service.Engine().StartSearchSession(req.Query)
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	view, ok := s.service.Engine().GetSearchSession(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]bool{"found": false})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type addLayerRequest struct {
	LayerType string `json:"layer_type"`
}

func (s *Server) handleAddLayer(w http.ResponseWriter, r *http.Request) {
	var req addLayerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ok := s.service.Engine().AddSearchLayer(chi.URLParam(r, "id"), req.LayerType)
	s.writeSessionMutation(w, ok)
}

type addResultRequest struct {
	ResultID   string  `json:"result_id"`
	Confidence float64 `json:"confidence"`
}

func (s *Server) handleAddResult(w http.ResponseWriter, r *http.Request) {
	var req addResultRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ok := s.service.Engine().AddSearchResult(chi.URLParam(r, "id"), req.ResultID, req.Confidence)
	s.writeSessionMutation(w, ok)
}

type completeSessionRequest struct {
	Confidence float64 `json:"confidence"`
}

func (s *Server) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	var req completeSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ok := s.service.Engine().CompleteSearchSession(chi.URLParam(r, "id"), req.Confidence)
	s.writeSessionMutation(w, ok)
}

type failSessionRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleFailSession(w http.ResponseWriter, r *http.Request) {
	var req failSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ok := s.service.Engine().FailSearchSession(chi.URLParam(r, "id"), req.Reason)
	s.writeSessionMutation(w, ok)
}

// writeSessionMutation maps the engine's boolean to 200/409: an unknown id
// and a terminal session both surface as a failed mutation.
func (s *Server) writeSessionMutation(w http.ResponseWriter, ok bool) {
	if !ok {
		writeJSON(w, http.StatusConflict, map[string]bool{"ok": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
