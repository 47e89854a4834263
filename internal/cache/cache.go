// Package cache implements the two-scope solution store with conflict resolution.
package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/thebtf/mnemonic/pkg/models"
)

const (
	// maxSolutionsPerProblem caps each problem key's history per scope.
	// The oldest entry is evicted from the head once the cap is exceeded.
	maxSolutionsPerProblem = 5

	recentProjectWindow = 30 * 24 * time.Hour
	recentGlobalWindow  = 180 * 24 * time.Hour
	newerSolutionDays   = 90
	popularityRatio     = 3.0
)

// SolutionCache stores solutions for one category under two scopes and
// resolves conflicts between them deterministically.
type SolutionCache struct {
	mu               sync.RWMutex
	projectSolutions map[string][]models.Solution
	globalSolutions  map[string][]models.Solution
}

// New creates an empty solution cache.
func New() *SolutionCache {
	return &SolutionCache{
		projectSolutions: make(map[string][]models.Solution),
		globalSolutions:  make(map[string][]models.Solution),
	}
}

// Add appends a solution to the chosen scope's sequence for the problem.
// The most recent solution is always the last element.
func (c *SolutionCache) Add(problem string, solution models.Solution, global bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	target := c.projectSolutions
	if global {
		target = c.globalSolutions
	}

	seq := append(target[problem], solution)
	if len(seq) > maxSolutionsPerProblem {
		seq = seq[1:]
	}
	target[problem] = seq
}

// Find resolves the best solution for a problem across both scopes.
// Returns nil when neither scope has a usable candidate.
//
// Resolution order: recent project priority (30 days), newer solution
// (age difference over 90 days), popularity (use-count ratio over 3x),
// default local preference.
func (c *SolutionCache) Find(problem string) *models.ConflictResult {
	c.mu.RLock()
	defer c.mu.RUnlock()

	projectSeq := c.projectSolutions[problem]
	globalSeq := c.globalSolutions[problem]

	hasProject := len(projectSeq) > 0
	hasGlobal := len(globalSeq) > 0

	if !hasProject && !hasGlobal {
		return nil
	}

	now := time.Now()

	if hasProject && !hasGlobal {
		return &models.ConflictResult{
			Solution: projectSeq[len(projectSeq)-1],
			Strategy: models.StrategyDefaultLocalPreference,
			Reason:   "Only project solution available",
		}
	}

	if hasGlobal && !hasProject {
		latest := globalSeq[len(globalSeq)-1]
		if latest.CreatedTime().After(now.Add(-recentGlobalWindow)) {
			return &models.ConflictResult{
				Solution: latest,
				Strategy: models.StrategyDefaultLocalPreference,
				Reason:   "Only recent global solution available",
			}
		}
		return nil
	}

	project := projectSeq[len(projectSeq)-1]
	global := globalSeq[len(globalSeq)-1]
	projectTime := project.CreatedTime()
	globalTime := global.CreatedTime()

	if projectTime.After(now.Add(-recentProjectWindow)) {
		return &models.ConflictResult{
			Solution: project,
			Strategy: models.StrategyRecentProjectPriority,
			Reason:   "Recent project solution takes priority",
		}
	}

	ageDiffDays := int64(projectTime.Sub(globalTime).Abs().Hours()) / 24
	if ageDiffDays > newerSolutionDays {
		newer := global
		if projectTime.After(globalTime) {
			newer = project
		}
		return &models.ConflictResult{
			Solution: newer,
			Strategy: models.StrategyNewerSolution,
			Reason:   fmt.Sprintf("Newer solution chosen (age difference: %d days)", ageDiffDays),
		}
	}

	maxUse, minUse := project.UseCount, global.UseCount
	if minUse > maxUse {
		maxUse, minUse = minUse, maxUse
	}
	if float64(maxUse)/float64(minUse) > popularityRatio {
		popular := global
		if project.UseCount > global.UseCount {
			popular = project
		}
		return &models.ConflictResult{
			Solution: popular,
			Strategy: models.StrategyPopularityBased,
			Reason: fmt.Sprintf("Popular solution chosen (use counts: project=%d, global=%d)",
				project.UseCount, global.UseCount),
		}
	}

	return &models.ConflictResult{
		Solution: project,
		Strategy: models.StrategyDefaultLocalPreference,
		Reason:   "Default local preference",
	}
}

// All returns every solution for a problem: project scope first, then
// global, each ordered oldest to newest.
func (c *SolutionCache) All(problem string) []models.Solution {
	c.mu.RLock()
	defer c.mu.RUnlock()

	projectSeq := c.projectSolutions[problem]
	globalSeq := c.globalSolutions[problem]

	all := make([]models.Solution, 0, len(projectSeq)+len(globalSeq))
	all = append(all, projectSeq...)
	all = append(all, globalSeq...)
	return all
}

// Clear drops both scope maps.
func (c *SolutionCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.projectSolutions = make(map[string][]models.Solution)
	c.globalSolutions = make(map[string][]models.Solution)
}

// Stats returns the number of problem keys under each scope.
func (c *SolutionCache) Stats() (projectKeys, globalKeys int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.projectSolutions), len(c.globalSolutions)
}
