package engine

import (
	"sort"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/mnemonic/internal/scoring"
	"github.com/thebtf/mnemonic/pkg/models"
)

// DefaultMaxSuggestions bounds the suggestions surface.
const DefaultMaxSuggestions = 5

// Enhanced extends the engine with score-ranked retrieval.
type Enhanced struct {
	*Engine
	scorer *scoring.Scorer
}

// NewEnhanced creates an enhanced engine.
func NewEnhanced() *Enhanced {
	return &Enhanced{
		Engine: New(),
		scorer: scoring.New(),
	}
}

// FindRankedSolutions reads every candidate for the problem from the resolved
// category and re-orders them by quality score, descending. The sort is
// stable: ties keep the cache order (project then global, oldest first).
// Every result carries the default strategy and the "AI-ranked result"
// reason; provenance is in the solution's source field.
func (e *Enhanced) FindRankedSolutions(problem, category string, maxSuggestions int) []models.RankedResult {
	if category == "" {
		category = e.CategorizeError(problem)
	}

	c := e.lookupCache(category)
	if c == nil {
		return nil
	}

	candidates := c.All(problem)
	ranked := make([]models.RankedResult, 0, len(candidates))
	for _, solution := range candidates {
		ranked = append(ranked, models.RankedResult{
			Result: models.ConflictResult{
				Solution: solution,
				Strategy: models.StrategyDefaultLocalPreference,
				Reason:   "AI-ranked result",
			},
			Score: e.scorer.Score(solution, problem),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if maxSuggestions > 0 && len(ranked) > maxSuggestions {
		ranked = ranked[:maxSuggestions]
	}
	return ranked
}

// suggestionScore marshals with exactly three decimal places.
type suggestionScore float64

func (s suggestionScore) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(s), 'f', 3, 64)), nil
}

type suggestion struct {
	Solution    string          `json:"solution"`
	Score       suggestionScore `json:"score"`
	Source      string          `json:"source"`
	UseCount    int             `json:"use_count"`
	CreatedDate string          `json:"created_date"`
}

type suggestionsPayload struct {
	Suggestions []suggestion `json:"suggestions"`
	TotalFound  int          `json:"total_found"`
	Context     string       `json:"context"`
}

// Suggestions returns the top five ranked solutions for the problem as a
// compact JSON string. Solution content and context pass through a real JSON
// encoder, so quotes, backslashes and control characters survive intact.
func (e *Enhanced) Suggestions(problem, context string) string {
	ranked := e.FindRankedSolutions(problem, "", DefaultMaxSuggestions)

	payload := suggestionsPayload{
		Suggestions: make([]suggestion, 0, len(ranked)),
		TotalFound:  len(ranked),
		Context:     context,
	}
	for _, r := range ranked {
		payload.Suggestions = append(payload.Suggestions, suggestion{
			Solution:    r.Result.Solution.Content,
			Score:       suggestionScore(r.Score),
			Source:      string(r.Result.Solution.Source),
			UseCount:    r.Result.Solution.UseCount,
			CreatedDate: r.Result.Solution.CreatedDate,
		})
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal suggestions")
		return `{"suggestions":[],"total_found":0,"context":""}`
	}
	return string(data)
}
