// Package scoring implements the heuristic solution quality scorer.
package scoring

import (
	"strings"
	"time"

	"github.com/thebtf/mnemonic/pkg/models"
)

// QualityMetrics holds the five sub-scores of a solution, each in [0,1].
type QualityMetrics struct {
	Completeness     float64 `json:"completeness"`
	Clarity          float64 `json:"clarity"`
	Specificity      float64 `json:"specificity"`
	Reliability      float64 `json:"reliability"`
	ContextRelevance float64 `json:"context_relevance"`
}

// Combined returns the weighted combination of the sub-scores.
func (m QualityMetrics) Combined() float64 {
	return m.Completeness*0.25 + m.Clarity*0.20 + m.Specificity*0.25 +
		m.Reliability*0.15 + m.ContextRelevance*0.15
}

// Scorer scores solution quality against a problem context. All methods are
// pure aside from reading the clock for age-based reliability.
type Scorer struct{}

// New creates a scorer.
func New() *Scorer {
	return &Scorer{}
}

// Score computes the combined quality score for a solution in [0,1].
func (sc *Scorer) Score(solution models.Solution, problemContext string) float64 {
	return sc.Metrics(solution, problemContext).Combined()
}

// Metrics computes the detailed sub-scores for a solution.
func (sc *Scorer) Metrics(solution models.Solution, problemContext string) QualityMetrics {
	return QualityMetrics{
		Completeness:     scoreCompleteness(solution.Content),
		Clarity:          scoreClarity(solution.Content),
		Specificity:      scoreSpecificity(solution.Content, problemContext),
		Reliability:      scoreReliability(solution),
		ContextRelevance: scoreContextRelevance(solution.Content, problemContext),
	}
}

func scoreCompleteness(content string) float64 {
	score := 0.0

	if len(content) > 20 {
		score += 0.3
	}
	if len(content) > 100 {
		score += 0.2
	}
	if strings.Contains(content, "```") {
		score += 0.2
	}
	if strings.Contains(content, "npm") || strings.Contains(content, "yarn") {
		score += 0.1
	}
	if strings.Contains(content, "1.") || strings.Contains(content, "2.") {
		score += 0.2
	}

	return min(1.0, score)
}

func scoreClarity(content string) float64 {
	score := 0.5

	if len(content) < 10 {
		score -= 0.3
	}
	if strings.Contains(content, "\n") {
		score += 0.1
	}
	if strings.Contains(content, "- ") {
		score += 0.1
	}
	if strings.Contains(content, "need to") || strings.Contains(content, "should") ||
		strings.Contains(content, "try") {
		score += 0.2
	}
	if strings.Contains(content, "maybe") || strings.Contains(content, "not sure") {
		score -= 0.2
	}

	return clamp(score)
}

func scoreSpecificity(content, problemContext string) float64 {
	score := 0.2

	lowerContent := strings.ToLower(content)
	lowerProblem := strings.ToLower(problemContext)

	matched, total := 0, 0
	for _, word := range strings.Fields(lowerProblem) {
		if len(word) <= 3 {
			continue
		}
		total++
		if strings.Contains(lowerContent, word) {
			matched++
		}
	}
	if total > 0 {
		score += float64(matched) / float64(total) * 0.6
	}

	if strings.Contains(content, "config") || strings.Contains(content, ".json") ||
		strings.Contains(content, "package.json") {
		score += 0.2
	}

	return min(1.0, score)
}

func scoreReliability(solution models.Solution) float64 {
	score := 0.5

	ageDays := int64(time.Since(solution.CreatedTime()).Hours()) / 24
	switch {
	case ageDays < 30:
		score += 0.3
	case ageDays < 90:
		score += 0.2
	case ageDays < 180:
		score += 0.1
	case ageDays > 365:
		score -= 0.2
	}

	if solution.UseCount > 1 {
		score += 0.1
	}
	if solution.UseCount > 3 {
		score += 0.1
	}
	if solution.UseCount > 5 {
		score += 0.1
	}

	return clamp(score)
}

func scoreContextRelevance(content, problemContext string) float64 {
	score := 0.3

	both := func(needle string) bool {
		return strings.Contains(problemContext, needle) && strings.Contains(content, needle)
	}

	if both("npm") || both("node") {
		score += 0.3
	}
	if both("auth") || both("OAuth") {
		score += 0.4
	}

	return min(1.0, score)
}

func clamp(v float64) float64 {
	return max(0.0, min(1.0, v))
}
