// Package models contains domain models for mnemonic.
package models

import (
	"strconv"
	"time"
)

// SolutionScope identifies which scope a solution belongs to.
type SolutionScope string

const (
	// ScopeProject marks solutions local to the current project.
	ScopeProject SolutionScope = "project"
	// ScopeGlobal marks solutions shared across projects.
	ScopeGlobal SolutionScope = "global"
)

// Uncategorised is the category returned when no pattern matches a message.
const Uncategorised = "errors_uncategorised"

// Solution is a remembered remediation for a problem. Immutable once created;
// the cache layer treats stored solutions as append-only.
type Solution struct {
	Content     string        `json:"content"`
	CreatedDate string        `json:"created_date"` // seconds since epoch, decimal string
	UseCount    int           `json:"use_count"`
	Source      SolutionScope `json:"source"`
}

// NewSolution creates a solution stamped with the current time.
func NewSolution(content string, scope SolutionScope) Solution {
	return Solution{
		Content:     content,
		CreatedDate: strconv.FormatInt(time.Now().Unix(), 10),
		UseCount:    1,
		Source:      scope,
	}
}

// CreatedTime parses the solution's created date. An unparseable date
// yields the zero epoch, which downstream age checks treat as very old.
func (s Solution) CreatedTime() time.Time {
	secs, err := strconv.ParseInt(s.CreatedDate, 10, 64)
	if err != nil {
		return time.Unix(0, 0)
	}
	return time.Unix(secs, 0)
}
