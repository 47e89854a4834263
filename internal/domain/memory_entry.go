package domain

import (
	"time"

	json "github.com/goccy/go-json"

	"github.com/thebtf/mnemonic/pkg/models"
)

// MemoryEntry is the aggregate root for a remembered problem/solution pair.
type MemoryEntry struct {
	aggregateBase
	problem     string
	solution    string
	category    string
	createdAt   time.Time
	updatedAt   time.Time
	confidence  float64
	conflictIDs []string
}

// MemoryEntryView is a read-only snapshot of a memory entry.
type MemoryEntryView struct {
	ID           string    `json:"id"`
	Problem      string    `json:"problem"`
	Solution     string    `json:"solution"`
	Category     string    `json:"category"`
	Confidence   float64   `json:"confidence"`
	HasConflicts bool      `json:"has_conflicts"`
	Version      int       `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type memoryEntryCreatedData struct {
	Problem  string `json:"problem"`
	Solution string `json:"solution"`
	Category string `json:"category"`
}

type memoryEntryUpdatedData struct {
	OldSolution string `json:"old_solution"`
	NewSolution string `json:"new_solution"`
	Reason      string `json:"reason"`
}

type conflictDetectedData struct {
	ConflictID     string `json:"conflict_id"`
	Strategy       string `json:"strategy"`
	TotalConflicts int    `json:"total_conflicts"`
}

type confidenceUpdatedData struct {
	OldConfidence float64 `json:"old_confidence"`
	NewConfidence float64 `json:"new_confidence"`
}

// NewMemoryEntry constructs the aggregate and raises MemoryEntryCreated.
func NewMemoryEntry(problem, solution, category string) *MemoryEntry {
	now := time.Now()
	e := &MemoryEntry{
		aggregateBase: aggregateBase{id: newAggregateID("mem")},
		problem:       problem,
		solution:      solution,
		category:      category,
		createdAt:     now,
		updatedAt:     now,
	}
	e.raise(models.EventMemoryEntryCreated, marshalEventData(memoryEntryCreatedData{
		Problem:  problem,
		Solution: solution,
		Category: category,
	}), e.Apply)
	return e
}

// newBlankMemoryEntry creates an empty aggregate for event replay.
func newBlankMemoryEntry(id string) *MemoryEntry {
	return &MemoryEntry{aggregateBase: aggregateBase{id: id}}
}

// UpdateSolution replaces the solution and raises MemoryEntryUpdated.
func (e *MemoryEntry) UpdateSolution(newSolution, reason string) {
	old := e.solution
	e.solution = newSolution
	e.updatedAt = time.Now()

	e.raise(models.EventMemoryEntryUpdated, marshalEventData(memoryEntryUpdatedData{
		OldSolution: old,
		NewSolution: newSolution,
		Reason:      reason,
	}), e.Apply)
}

// AddConflict records a conflict resolution against another entry.
func (e *MemoryEntry) AddConflict(conflictID, strategy string) {
	e.conflictIDs = appendUnique(e.conflictIDs, conflictID)

	e.raise(models.EventConflictDetected, marshalEventData(conflictDetectedData{
		ConflictID:     conflictID,
		Strategy:       strategy,
		TotalConflicts: len(e.conflictIDs),
	}), e.Apply)
}

// SetConfidence updates the confidence score and raises ConfidenceUpdated.
func (e *MemoryEntry) SetConfidence(score float64) {
	old := e.confidence
	e.confidence = score

	e.raise(models.EventConfidenceUpdated, marshalEventData(confidenceUpdatedData{
		OldConfidence: old,
		NewConfidence: score,
	}), e.Apply)
}

// Apply re-derives state from an event payload. Replaying a duplicate
// ConflictDetected must not double-append; conflict ids are deduplicated.
func (e *MemoryEntry) Apply(event models.Event) {
	switch event.EventType {
	case models.EventMemoryEntryCreated:
		var data memoryEntryCreatedData
		if err := json.Unmarshal([]byte(event.EventData), &data); err != nil {
			return
		}
		e.problem = data.Problem
		e.solution = data.Solution
		e.category = data.Category
		if e.createdAt.IsZero() {
			e.createdAt = event.Timestamp
			e.updatedAt = event.Timestamp
		}
	case models.EventMemoryEntryUpdated:
		var data memoryEntryUpdatedData
		if err := json.Unmarshal([]byte(event.EventData), &data); err != nil {
			return
		}
		e.solution = data.NewSolution
		e.updatedAt = event.Timestamp
	case models.EventConflictDetected:
		var data conflictDetectedData
		if err := json.Unmarshal([]byte(event.EventData), &data); err != nil {
			return
		}
		e.conflictIDs = appendUnique(e.conflictIDs, data.ConflictID)
	case models.EventConfidenceUpdated:
		var data confidenceUpdatedData
		if err := json.Unmarshal([]byte(event.EventData), &data); err != nil {
			return
		}
		e.confidence = data.NewConfidence
	}
}

// Problem returns the problem text.
func (e *MemoryEntry) Problem() string { return e.problem }

// Solution returns the current solution text.
func (e *MemoryEntry) Solution() string { return e.solution }

// Category returns the entry's category.
func (e *MemoryEntry) Category() string { return e.category }

// Confidence returns the current confidence score.
func (e *MemoryEntry) Confidence() float64 { return e.confidence }

// HasConflicts reports whether any conflicts were recorded.
func (e *MemoryEntry) HasConflicts() bool { return len(e.conflictIDs) > 0 }

// View returns a read-only snapshot.
func (e *MemoryEntry) View() MemoryEntryView {
	return MemoryEntryView{
		ID:           e.id,
		Problem:      e.problem,
		Solution:     e.solution,
		Category:     e.category,
		Confidence:   e.confidence,
		HasConflicts: len(e.conflictIDs) > 0,
		Version:      e.version,
		CreatedAt:    e.createdAt,
		UpdatedAt:    e.updatedAt,
	}
}

func appendUnique(list []string, item string) []string {
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	return append(list, item)
}

// marshalEventData encodes an event payload. Payload structs contain only
// marshalable fields, so failure is not a reachable path; an empty object
// keeps the event well-formed regardless.
func marshalEventData(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
