// Package engine provides the category-indexed memory engine facade.
package engine

import (
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/mnemonic/internal/cache"
	"github.com/thebtf/mnemonic/internal/categorize"
	"github.com/thebtf/mnemonic/pkg/models"
)

// Engine indexes solution caches by category and routes lookups through the
// error categorizer. Caches are created lazily on first write and are stable
// for the engine's lifetime; Clear replaces the whole index under the
// exclusive lock.
type Engine struct {
	mu          sync.RWMutex
	categories  map[string]*cache.SolutionCache
	categorizer *categorize.Categorizer

	totalLookups atomic.Int64
	cacheHits    atomic.Int64
	lookupTimeUS atomic.Int64
}

// New creates an engine with an empty category index.
func New() *Engine {
	return &Engine{
		categories:  make(map[string]*cache.SolutionCache),
		categorizer: categorize.New(),
	}
}

// Initialize loads the error categories. Always succeeds; invalid patterns
// are dropped by the categorizer.
func (e *Engine) Initialize(categories map[string][]string) bool {
	e.categorizer.Load(categories)
	log.Debug().Int("categories", len(categories)).Msg("Engine initialized")
	return true
}

// StoreSolution stores a solution under the given category, deriving the
// category from the problem text when none is supplied.
func (e *Engine) StoreSolution(problem, category, content string, global bool) bool {
	start := time.Now()

	if category == "" {
		category = e.CategorizeError(problem)
	}

	scope := models.ScopeProject
	if global {
		scope = models.ScopeGlobal
	}
	solution := models.NewSolution(content, scope)

	e.categoryCache(category).Add(problem, solution, global)

	e.lookupTimeUS.Add(time.Since(start).Microseconds())
	return true
}

// FindSolution resolves the best solution for a problem, deriving the
// category when none is supplied. Returns nil when nothing usable is stored.
func (e *Engine) FindSolution(problem, category string) *models.ConflictResult {
	start := time.Now()
	e.totalLookups.Add(1)

	if category == "" {
		category = e.CategorizeError(problem)
	}

	var result *models.ConflictResult

	e.mu.RLock()
	if c, ok := e.categories[category]; ok {
		result = c.Find(problem)
	}
	e.mu.RUnlock()

	if result != nil {
		e.cacheHits.Add(1)
	}

	e.lookupTimeUS.Add(time.Since(start).Microseconds())
	return result
}

// CategorizeError classifies an error message.
func (e *Engine) CategorizeError(message string) string {
	return e.categorizer.Categorize(message)
}

// Categories returns the loaded category names, sorted.
func (e *Engine) Categories() []string {
	return e.categorizer.Categories()
}

// LoadSolutions bulk-inserts solutions for a category under one scope.
func (e *Engine) LoadSolutions(category string, solutions map[string]models.Solution, global bool) {
	c := e.categoryCache(category)
	for problem, solution := range solutions {
		c.Add(problem, solution, global)
	}
}

// Clear drops every category cache and resets the counters.
func (e *Engine) Clear() {
	e.mu.Lock()
	e.categories = make(map[string]*cache.SolutionCache)
	e.mu.Unlock()

	e.totalLookups.Store(0)
	e.cacheHits.Store(0)
	e.lookupTimeUS.Store(0)
}

type categoryStats struct {
	Project int `json:"project"`
	Global  int `json:"global"`
}

type statistics struct {
	TotalLookups      int64                    `json:"total_lookups"`
	CacheHits         int64                    `json:"cache_hits"`
	HitRate           float64                  `json:"hit_rate"`
	AvgLookupTimeUS   int64                    `json:"avg_lookup_time_us"`
	Categories        int                      `json:"categories"`
	CategoryBreakdown map[string]categoryStats `json:"category_breakdown"`
}

// Statistics returns the engine's performance counters and per-category key
// counts as a JSON string. The counters are read without the engine lock and
// may be mildly inconsistent with each other.
func (e *Engine) Statistics() string {
	lookups := e.totalLookups.Load()
	hits := e.cacheHits.Load()

	stats := statistics{
		TotalLookups:      lookups,
		CacheHits:         hits,
		CategoryBreakdown: make(map[string]categoryStats),
	}
	if lookups > 0 {
		stats.HitRate = float64(hits) / float64(lookups)
		stats.AvgLookupTimeUS = e.lookupTimeUS.Load() / lookups
	}

	e.mu.RLock()
	stats.Categories = len(e.categories)
	for name, c := range e.categories {
		project, global := c.Stats()
		stats.CategoryBreakdown[name] = categoryStats{Project: project, Global: global}
	}
	e.mu.RUnlock()

	data, err := json.Marshal(stats)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal engine statistics")
		return "{}"
	}
	return string(data)
}

// categoryCache returns the cache for a category, creating it on demand.
func (e *Engine) categoryCache(category string) *cache.SolutionCache {
	e.mu.RLock()
	c, ok := e.categories[category]
	e.mu.RUnlock()
	if ok {
		return c
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.categories[category]; ok {
		return c
	}
	c = cache.New()
	e.categories[category] = c
	return c
}

// lookupCache returns the cache for a category if it exists.
func (e *Engine) lookupCache(category string) *cache.SolutionCache {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.categories[category]
}
