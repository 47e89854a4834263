package domain

import (
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/suite"

	"github.com/thebtf/mnemonic/pkg/models"
)

// DomainEngineSuite is a test suite for the domain engine and service.
type DomainEngineSuite struct {
	suite.Suite
	service *Service
}

func (s *DomainEngineSuite) SetupTest() {
	s.service = NewService()
	s.Require().True(s.service.Initialize(map[string][]string{
		"auth":  {"auth", "token"},
		"build": {"npm ERR", "compile"},
	}))
}

func (s *DomainEngineSuite) TearDownTest() {
	s.service.Shutdown()
}

func TestDomainEngineSuite(t *testing.T) {
	suite.Run(t, new(DomainEngineSuite))
}

func (s *DomainEngineSuite) waitFor(cond func() bool) {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	s.FailNow("condition not met before deadline")
}

// TestCreateMemoryEntry tests creation, dual-write and the id format.
func (s *DomainEngineSuite) TestCreateMemoryEntry() {
	id := s.service.CreateMemoryEntry("token expired", "refresh the token", "auth")
	s.Regexp(`^mem_\d+$`, id)

	// The aggregate is queryable.
	view, ok := s.service.Engine().GetMemoryEntry(id)
	s.Require().True(ok)
	s.Equal("token expired", view.Problem)
	s.Equal("refresh the token", view.Solution)
	s.Equal("auth", view.Category)

	// The pair was mirrored into the lookup cache under the project scope.
	result := s.service.Engine().FindSolution("token expired", "auth")
	s.Require().NotNil(result)
	s.Equal("refresh the token", result.Solution.Content)
	s.Equal(models.ScopeProject, result.Solution.Source)
}

// TestCreatePublishesEvent tests that creation events reach subscribers.
func (s *DomainEngineSuite) TestCreatePublishesEvent() {
	var mu sync.Mutex
	var received []models.Event
	s.service.SubscribeToEvents(models.EventMemoryEntryCreated, func(event models.Event) {
		mu.Lock()
		received = append(received, event)
		mu.Unlock()
	})

	id := s.service.CreateMemoryEntry("p", "s", "auth")

	s.waitFor(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	})

	mu.Lock()
	s.Equal(id, received[0].AggregateID)
	s.Equal(1, received[0].Version)
	mu.Unlock()
}

// TestUpdateMemoryEntry tests updates and the missing-id false return.
func (s *DomainEngineSuite) TestUpdateMemoryEntry() {
	id := s.service.CreateMemoryEntry("p", "old solution", "auth")

	s.True(s.service.UpdateMemoryEntry(id, "new solution", "found a better fix"))

	view, ok := s.service.Engine().GetMemoryEntry(id)
	s.Require().True(ok)
	s.Equal("new solution", view.Solution)
	s.Equal(2, view.Version)

	s.False(s.service.UpdateMemoryEntry("mem_0", "x", "y"))
}

// TestEventOrderPerAggregate tests that one aggregate's events reach a
// handler in raise order.
func (s *DomainEngineSuite) TestEventOrderPerAggregate() {
	var mu sync.Mutex
	var versions []int
	record := func(event models.Event) {
		mu.Lock()
		versions = append(versions, event.Version)
		mu.Unlock()
	}
	s.service.SubscribeToEvents(models.EventMemoryEntryCreated, record)
	s.service.SubscribeToEvents(models.EventMemoryEntryUpdated, record)

	id := s.service.CreateMemoryEntry("p", "v1", "auth")
	for i := 0; i < 5; i++ {
		s.Require().True(s.service.UpdateMemoryEntry(id, "v2", "r"))
	}

	s.waitFor(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(versions) == 6
	})

	mu.Lock()
	s.Equal([]int{1, 2, 3, 4, 5, 6}, versions)
	mu.Unlock()
}

// TestSearchSessionFlow tests the session operations end to end.
func (s *DomainEngineSuite) TestSearchSessionFlow() {
	engine := s.service.Engine()

	id := engine.StartSearchSession("how to fix token refresh")
	s.Regexp(`^search_\d+$`, id)

	s.True(engine.AddSearchLayer(id, "cache"))
	s.True(engine.AddSearchResult(id, "mem_1", 0.6))
	s.True(engine.CompleteSearchSession(id, 0.9))

	view, ok := engine.GetSearchSession(id)
	s.Require().True(ok)
	s.Equal(SessionCompleted, view.Status)
	s.InDelta(0.9, view.FinalConfidence, 1e-9)
	s.Equal([]string{"cache"}, view.LayersUsed)
	s.Equal([]string{"mem_1"}, view.ResultIDs)

	// Terminal guard surfaces as false through the engine.
	s.False(engine.AddSearchLayer(id, "late"))
	s.False(engine.CompleteSearchSession(id, 1.0))
	s.False(engine.FailSearchSession(id, "too late"))

	// Unknown ids are false, not errors.
	s.False(engine.AddSearchLayer("search_0", "x"))
	s.False(engine.CompleteSearchSession("search_0", 0.1))
}

// TestFailSearchSession tests the failed terminal path.
func (s *DomainEngineSuite) TestFailSearchSession() {
	engine := s.service.Engine()
	id := engine.StartSearchSession("q")

	s.True(engine.FailSearchSession(id, "no candidates"))

	view, ok := engine.GetSearchSession(id)
	s.Require().True(ok)
	s.Equal(SessionFailed, view.Status)

	s.False(engine.AddSearchResult(id, "mem_1", 0.5))
}

// TestGetMemoryEntryJSON tests the service's JSON view and the empty-object
// miss behavior.
func (s *DomainEngineSuite) TestGetMemoryEntryJSON() {
	s.Equal("{}", s.service.GetMemoryEntry("mem_missing"))

	id := s.service.CreateMemoryEntry("p", "sol", "auth")
	raw := s.service.GetMemoryEntry(id)

	var view struct {
		ID           string  `json:"id"`
		Problem      string  `json:"problem"`
		Solution     string  `json:"solution"`
		Category     string  `json:"category"`
		Confidence   float64 `json:"confidence"`
		HasConflicts bool    `json:"has_conflicts"`
	}
	s.Require().NoError(json.Unmarshal([]byte(raw), &view))
	s.Equal(id, view.ID)
	s.Equal("p", view.Problem)
	s.Equal("sol", view.Solution)
	s.Equal("auth", view.Category)
	s.False(view.HasConflicts)
}

// TestSearchMemories tests the suggestions pass-through.
func (s *DomainEngineSuite) TestSearchMemories() {
	s.service.CreateMemoryEntry("token expired", "refresh it promptly", "auth")

	raw := s.service.SearchMemories("token expired", "auth", 5)

	var payload struct {
		Suggestions []struct {
			Solution string `json:"solution"`
		} `json:"suggestions"`
		TotalFound int `json:"total_found"`
	}
	s.Require().NoError(json.Unmarshal([]byte(raw), &payload))
	s.Equal(1, payload.TotalFound)
	s.Equal("refresh it promptly", payload.Suggestions[0].Solution)
}

// TestDomainStatistics tests the combined statistics JSON.
func (s *DomainEngineSuite) TestDomainStatistics() {
	s.service.CreateMemoryEntry("p1", "s1", "auth")
	s.service.CreateMemoryEntry("p2", "s2", "build")
	s.service.Engine().StartSearchSession("q")

	var stats struct {
		MemoryEntries  int `json:"memory_entries"`
		SearchSessions int `json:"search_sessions"`
		EngineStats    struct {
			Categories int `json:"categories"`
		} `json:"engine_stats"`
		EventStats struct {
			TotalHandlers int  `json:"total_handlers"`
			IsRunning     bool `json:"is_running"`
		} `json:"event_stats"`
	}
	s.Require().NoError(json.Unmarshal([]byte(s.service.Statistics()), &stats))

	s.Equal(2, stats.MemoryEntries)
	s.Equal(1, stats.SearchSessions)
	s.Equal(2, stats.EngineStats.Categories)
	s.Equal(4, stats.EventStats.TotalHandlers)
	s.True(stats.EventStats.IsRunning)
}

// TestEntryQueries tests category and problem-text queries over the store.
func (s *DomainEngineSuite) TestEntryQueries() {
	s.service.CreateMemoryEntry("npm ERR missing module", "npm install", "build")
	s.service.CreateMemoryEntry("compile error in parser", "fix syntax", "build")
	s.service.CreateMemoryEntry("token expired", "refresh", "auth")

	engine := s.service.Engine()

	byCategory := engine.FindEntriesByCategory("build")
	s.Len(byCategory, 2)

	byProblem := engine.SearchEntriesByProblem("COMPILE")
	s.Require().Len(byProblem, 1)
	s.Equal("fix syntax", byProblem[0].Solution)

	s.Empty(engine.FindEntriesByCategory("nope"))
	s.Empty(engine.SearchEntriesByProblem("nothing like this"))
}

// TestSearchMemoriesAutoCategory tests suggestion lookup with derived category.
func (s *DomainEngineSuite) TestSearchMemoriesAutoCategory() {
	// Derived category on create and on search must agree.
	s.service.CreateMemoryEntry("auth timeout on login", "", "")
	raw := s.service.SearchMemories("auth timeout on login", "", 5)

	var payload struct {
		TotalFound int `json:"total_found"`
	}
	s.Require().NoError(json.Unmarshal([]byte(raw), &payload))
	s.Equal(1, payload.TotalFound)
}
