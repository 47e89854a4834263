// Package cache implements the two-scope solution store with conflict resolution.
package cache

import (
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/thebtf/mnemonic/pkg/models"
)

// CacheSuite is a test suite for SolutionCache operations.
type CacheSuite struct {
	suite.Suite
	cache *SolutionCache
}

func (s *CacheSuite) SetupTest() {
	s.cache = New()
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheSuite))
}

// testBase anchors aged solutions to one instant so age differences between
// them are exact whole days.
var testBase = time.Now()

// solutionAgedDays builds a solution created the given number of days ago.
func solutionAgedDays(content string, days int, useCount int, scope models.SolutionScope) models.Solution {
	created := testBase.Add(-time.Duration(days) * 24 * time.Hour)
	return models.Solution{
		Content:     content,
		CreatedDate: strconv.FormatInt(created.Unix(), 10),
		UseCount:    useCount,
		Source:      scope,
	}
}

// TestAddCapsAtFive tests that per-problem sequences never exceed five entries
// and that the newest insert is always the last element.
func (s *CacheSuite) TestAddCapsAtFive() {
	for i := 0; i < 8; i++ {
		sol := models.NewSolution(fmt.Sprintf("fix %d", i), models.ScopeProject)
		s.cache.Add("build fails", sol, false)

		all := s.cache.All("build fails")
		s.LessOrEqual(len(all), 5)
		s.GreaterOrEqual(len(all), 1)
		s.Equal(fmt.Sprintf("fix %d", i), all[len(all)-1].Content)
	}

	// Oldest three evicted from the head.
	all := s.cache.All("build fails")
	s.Len(all, 5)
	s.Equal("fix 3", all[0].Content)
	s.Equal("fix 7", all[4].Content)
}

// TestFindMissing tests that unknown problems resolve to nil.
func (s *CacheSuite) TestFindMissing() {
	s.Nil(s.cache.Find("never seen"))
}

// TestFindOnlyProject tests resolution when only the project scope has a solution.
func (s *CacheSuite) TestFindOnlyProject() {
	s.cache.Add("p", solutionAgedDays("project fix", 400, 1, models.ScopeProject), false)

	result := s.cache.Find("p")
	s.Require().NotNil(result)
	s.Equal(models.StrategyDefaultLocalPreference, result.Strategy)
	s.Equal("Only project solution available", result.Reason)
	s.Equal("project fix", result.Solution.Content)
}

// TestFindOnlyGlobal_TableDriven tests the 180-day freshness gate on
// global-only solutions.
func (s *CacheSuite) TestFindOnlyGlobal_TableDriven() {
	tests := []struct {
		name     string
		ageDays  int
		expected bool
	}{
		{name: "recent global is returned", ageDays: 10, expected: true},
		{name: "just inside the window", ageDays: 179, expected: true},
		{name: "stale global is suppressed", ageDays: 181, expected: false},
		{name: "ancient global is suppressed", ageDays: 500, expected: false},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			cache := New()
			cache.Add("g", solutionAgedDays("global fix", tt.ageDays, 1, models.ScopeGlobal), true)

			result := cache.Find("g")
			if !tt.expected {
				s.Nil(result)
				return
			}
			s.Require().NotNil(result)
			s.Equal(models.StrategyDefaultLocalPreference, result.Strategy)
			s.Equal("Only recent global solution available", result.Reason)
		})
	}
}

// TestRecentProjectWins tests that a project solution under 30 days old
// takes priority over any global candidate.
func (s *CacheSuite) TestRecentProjectWins() {
	s.cache.Add("auth fail: token expired", models.NewSolution("Run npm install", models.ScopeProject), false)
	s.cache.Add("auth fail: token expired", models.NewSolution("Update config", models.ScopeGlobal), true)

	result := s.cache.Find("auth fail: token expired")
	s.Require().NotNil(result)
	s.Equal(models.StrategyRecentProjectPriority, result.Strategy)
	s.Equal("Recent project solution takes priority", result.Reason)
	s.Equal("Run npm install", result.Solution.Content)
}

// TestNewerGlobalWins tests the 90-day age-difference rule with an exact
// integer day count in the reason.
func (s *CacheSuite) TestNewerGlobalWins() {
	s.cache.Add("p", solutionAgedDays("old project fix", 200, 1, models.ScopeProject), false)
	s.cache.Add("p", solutionAgedDays("newer global fix", 30, 1, models.ScopeGlobal), true)

	result := s.cache.Find("p")
	s.Require().NotNil(result)
	s.Equal(models.StrategyNewerSolution, result.Strategy)
	s.Equal("newer global fix", result.Solution.Content)
	s.Contains(result.Reason, "age difference: 170 days")
}

// TestNewerProjectWins tests the same rule with the project side newer.
func (s *CacheSuite) TestNewerProjectWins() {
	s.cache.Add("p", solutionAgedDays("newer project fix", 40, 1, models.ScopeProject), false)
	s.cache.Add("p", solutionAgedDays("old global fix", 300, 1, models.ScopeGlobal), true)

	result := s.cache.Find("p")
	s.Require().NotNil(result)
	s.Equal(models.StrategyNewerSolution, result.Strategy)
	s.Equal("newer project fix", result.Solution.Content)
	s.Contains(result.Reason, "age difference: 260 days")
}

// TestPopularityWins tests the 3x use-count ratio rule.
func (s *CacheSuite) TestPopularityWins() {
	s.cache.Add("p", solutionAgedDays("project fix", 120, 1, models.ScopeProject), false)
	s.cache.Add("p", solutionAgedDays("popular global fix", 120, 4, models.ScopeGlobal), true)

	result := s.cache.Find("p")
	s.Require().NotNil(result)
	s.Equal(models.StrategyPopularityBased, result.Strategy)
	s.Equal("popular global fix", result.Solution.Content)
	s.Equal("Popular solution chosen (use counts: project=1, global=4)", result.Reason)
}

// TestPopularityRatioBoundary tests that a ratio of exactly 3.0 does not fire.
func (s *CacheSuite) TestPopularityRatioBoundary() {
	s.cache.Add("p", solutionAgedDays("project fix", 120, 1, models.ScopeProject), false)
	s.cache.Add("p", solutionAgedDays("global fix", 120, 3, models.ScopeGlobal), true)

	result := s.cache.Find("p")
	s.Require().NotNil(result)
	s.Equal(models.StrategyDefaultLocalPreference, result.Strategy)
}

// TestDefaultLocalPreference tests the fallback when no tiebreak fires.
func (s *CacheSuite) TestDefaultLocalPreference() {
	s.cache.Add("p", solutionAgedDays("project fix", 120, 2, models.ScopeProject), false)
	s.cache.Add("p", solutionAgedDays("global fix", 140, 2, models.ScopeGlobal), true)

	result := s.cache.Find("p")
	s.Require().NotNil(result)
	s.Equal(models.StrategyDefaultLocalPreference, result.Strategy)
	s.Equal("Default local preference", result.Reason)
	s.Equal("project fix", result.Solution.Content)
}

// TestFindDeterministic tests that repeated resolution of a fixed pair
// yields the same strategy every time.
func (s *CacheSuite) TestFindDeterministic() {
	s.cache.Add("p", solutionAgedDays("project fix", 120, 1, models.ScopeProject), false)
	s.cache.Add("p", solutionAgedDays("global fix", 120, 5, models.ScopeGlobal), true)

	first := s.cache.Find("p")
	s.Require().NotNil(first)
	for i := 0; i < 10; i++ {
		again := s.cache.Find("p")
		s.Require().NotNil(again)
		s.Equal(first.Strategy, again.Strategy)
		s.Equal(first.Solution.Content, again.Solution.Content)
	}
}

// TestAllOrdering tests project-then-global, oldest-first concatenation.
func (s *CacheSuite) TestAllOrdering() {
	s.cache.Add("p", solutionAgedDays("p1", 10, 1, models.ScopeProject), false)
	s.cache.Add("p", solutionAgedDays("p2", 5, 1, models.ScopeProject), false)
	s.cache.Add("p", solutionAgedDays("g1", 8, 1, models.ScopeGlobal), true)

	all := s.cache.All("p")
	s.Require().Len(all, 3)
	s.Equal("p1", all[0].Content)
	s.Equal("p2", all[1].Content)
	s.Equal("g1", all[2].Content)
}

// TestClearAndStats tests clear and key counting.
func (s *CacheSuite) TestClearAndStats() {
	s.cache.Add("a", models.NewSolution("x", models.ScopeProject), false)
	s.cache.Add("b", models.NewSolution("y", models.ScopeProject), false)
	s.cache.Add("c", models.NewSolution("z", models.ScopeGlobal), true)

	projectKeys, globalKeys := s.cache.Stats()
	s.Equal(2, projectKeys)
	s.Equal(1, globalKeys)

	s.cache.Clear()
	projectKeys, globalKeys = s.cache.Stats()
	s.Equal(0, projectKeys)
	s.Equal(0, globalKeys)
	s.Nil(s.cache.Find("a"))
}

// TestConcurrentAccess exercises parallel writers and readers under race.
func (s *CacheSuite) TestConcurrentAccess() {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.cache.Add("hot", models.NewSolution(fmt.Sprintf("fix %d/%d", n, j), models.ScopeProject), n%2 == 0)
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.cache.Find("hot")
				s.cache.All("hot")
			}
		}()
	}
	wg.Wait()

	all := s.cache.All("hot")
	s.NotEmpty(all)
	s.LessOrEqual(len(all), 10) // five per scope
}
