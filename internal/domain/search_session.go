package domain

import (
	"errors"
	"time"

	json "github.com/goccy/go-json"

	"github.com/thebtf/mnemonic/pkg/models"
)

// SessionStatus is the lifecycle state of a search session.
type SessionStatus string

const (
	// SessionActive accepts layer and result mutations.
	SessionActive SessionStatus = "active"
	// SessionCompleted is terminal.
	SessionCompleted SessionStatus = "completed"
	// SessionFailed is terminal.
	SessionFailed SessionStatus = "failed"
)

// ErrSessionTerminal is returned by mutators called after a session reached
// a terminal state. A session accepts exactly one terminal event.
var ErrSessionTerminal = errors.New("search session already in terminal state")

// SearchSession is the aggregate root tracking one retrieval attempt.
type SearchSession struct {
	aggregateBase
	query           string
	layersUsed      []string
	resultIDs       []string
	startedAt       time.Time
	completedAt     time.Time
	finalConfidence float64
	status          SessionStatus
}

// SearchSessionView is a read-only snapshot of a search session.
type SearchSessionView struct {
	ID              string        `json:"id"`
	Query           string        `json:"query"`
	LayersUsed      []string      `json:"layers_used"`
	ResultIDs       []string      `json:"result_ids"`
	Status          SessionStatus `json:"status"`
	FinalConfidence float64       `json:"final_confidence"`
	Version         int           `json:"version"`
	StartedAt       time.Time     `json:"started_at"`
	CompletedAt     time.Time     `json:"completed_at"`
}

type sessionStartedData struct {
	Query     string `json:"query"`
	StartedAt int64  `json:"started_at"`
}

type layerAddedData struct {
	LayerType  string `json:"layer_type"`
	LayerOrder int    `json:"layer_order"`
}

type resultAddedData struct {
	ResultID     string  `json:"result_id"`
	Confidence   float64 `json:"confidence"`
	TotalResults int     `json:"total_results"`
}

type sessionCompletedData struct {
	FinalConfidence float64 `json:"final_confidence"`
	DurationMS      int64   `json:"duration_ms"`
	LayersUsed      int     `json:"layers_used"`
	ResultsFound    int     `json:"results_found"`
}

type sessionFailedData struct {
	Reason     string `json:"reason"`
	DurationMS int64  `json:"duration_ms"`
}

// NewSearchSession constructs the aggregate and raises SearchSessionStarted.
func NewSearchSession(query string) *SearchSession {
	s := &SearchSession{
		aggregateBase: aggregateBase{id: newAggregateID("search")},
		query:         query,
		startedAt:     time.Now(),
		status:        SessionActive,
	}
	s.raise(models.EventSearchSessionStarted, marshalEventData(sessionStartedData{
		Query:     query,
		StartedAt: s.startedAt.Unix(),
	}), s.Apply)
	return s
}

// newBlankSearchSession creates an empty aggregate for event replay.
func newBlankSearchSession(id string) *SearchSession {
	return &SearchSession{aggregateBase: aggregateBase{id: id}}
}

// AddLayer records a search layer. Fails once the session is terminal.
func (s *SearchSession) AddLayer(layerType string) error {
	if s.terminal() {
		return ErrSessionTerminal
	}
	s.layersUsed = appendUnique(s.layersUsed, layerType)

	s.raise(models.EventLayerAdded, marshalEventData(layerAddedData{
		LayerType:  layerType,
		LayerOrder: len(s.layersUsed),
	}), s.Apply)
	return nil
}

// AddResult records a retrieved result id. Fails once the session is terminal.
func (s *SearchSession) AddResult(resultID string, confidence float64) error {
	if s.terminal() {
		return ErrSessionTerminal
	}
	s.resultIDs = appendUnique(s.resultIDs, resultID)

	s.raise(models.EventResultAdded, marshalEventData(resultAddedData{
		ResultID:     resultID,
		Confidence:   confidence,
		TotalResults: len(s.resultIDs),
	}), s.Apply)
	return nil
}

// Complete moves the session to its completed terminal state.
func (s *SearchSession) Complete(finalConfidence float64) error {
	if s.terminal() {
		return ErrSessionTerminal
	}
	s.status = SessionCompleted
	s.finalConfidence = finalConfidence
	s.completedAt = time.Now()

	s.raise(models.EventSearchSessionCompleted, marshalEventData(sessionCompletedData{
		FinalConfidence: finalConfidence,
		DurationMS:      s.completedAt.Sub(s.startedAt).Milliseconds(),
		LayersUsed:      len(s.layersUsed),
		ResultsFound:    len(s.resultIDs),
	}), s.Apply)
	return nil
}

// Fail moves the session to its failed terminal state.
func (s *SearchSession) Fail(reason string) error {
	if s.terminal() {
		return ErrSessionTerminal
	}
	s.status = SessionFailed
	s.completedAt = time.Now()

	s.raise(models.EventSearchSessionFailed, marshalEventData(sessionFailedData{
		Reason:     reason,
		DurationMS: s.completedAt.Sub(s.startedAt).Milliseconds(),
	}), s.Apply)
	return nil
}

func (s *SearchSession) terminal() bool {
	return s.status == SessionCompleted || s.status == SessionFailed
}

// Apply re-derives state from an event payload. Duplicate LayerAdded and
// ResultAdded replays are deduplicated.
func (s *SearchSession) Apply(event models.Event) {
	switch event.EventType {
	case models.EventSearchSessionStarted:
		var data sessionStartedData
		if err := json.Unmarshal([]byte(event.EventData), &data); err != nil {
			return
		}
		s.query = data.Query
		s.status = SessionActive
		if s.startedAt.IsZero() {
			s.startedAt = time.Unix(data.StartedAt, 0)
		}
	case models.EventLayerAdded:
		var data layerAddedData
		if err := json.Unmarshal([]byte(event.EventData), &data); err != nil {
			return
		}
		s.layersUsed = appendUnique(s.layersUsed, data.LayerType)
	case models.EventResultAdded:
		var data resultAddedData
		if err := json.Unmarshal([]byte(event.EventData), &data); err != nil {
			return
		}
		s.resultIDs = appendUnique(s.resultIDs, data.ResultID)
	case models.EventSearchSessionCompleted:
		var data sessionCompletedData
		if err := json.Unmarshal([]byte(event.EventData), &data); err != nil {
			return
		}
		s.status = SessionCompleted
		s.finalConfidence = data.FinalConfidence
		s.completedAt = event.Timestamp
	case models.EventSearchSessionFailed:
		s.status = SessionFailed
		s.completedAt = event.Timestamp
	}
}

// Query returns the session's search query.
func (s *SearchSession) Query() string { return s.query }

// Status returns the session's lifecycle state.
func (s *SearchSession) Status() SessionStatus { return s.status }

// FinalConfidence returns the confidence recorded at completion.
func (s *SearchSession) FinalConfidence() float64 { return s.finalConfidence }

// LayersUsed returns the recorded search layers in order.
func (s *SearchSession) LayersUsed() []string {
	layers := make([]string, len(s.layersUsed))
	copy(layers, s.layersUsed)
	return layers
}

// View returns a read-only snapshot.
func (s *SearchSession) View() SearchSessionView {
	return SearchSessionView{
		ID:              s.id,
		Query:           s.query,
		LayersUsed:      append([]string(nil), s.layersUsed...),
		ResultIDs:       append([]string(nil), s.resultIDs...),
		Status:          s.status,
		FinalConfidence: s.finalConfidence,
		Version:         s.version,
		StartedAt:       s.startedAt,
		CompletedAt:     s.completedAt,
	}
}
