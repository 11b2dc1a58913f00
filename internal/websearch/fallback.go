package websearch

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/solvernet/mathrouter/internal/routing"
)

// fallbackResults serves a small offline corpus when the live search is
// unreachable. Queries outside the covered topics get an empty slice.
func fallbackResults(query string) []routing.WebResult {
	log.Warnf("Using fallback search results")
	queryLower := strings.ToLower(query)

	switch {
	case strings.Contains(queryLower, "quadratic"):
		return []routing.WebResult{{
			Title:          "Quadratic Formula",
			Snippet:        "The quadratic formula is x = (-b ± √(b²-4ac)) / (2a) for equations ax² + bx + c = 0",
			URL:            "fallback://quadratic",
			Source:         "fallback",
			RelevanceScore: 0.8,
			HasContent:     true,
			Content:        "Use the quadratic formula when factoring is difficult or impossible.",
		}}
	case strings.Contains(queryLower, "derivative"):
		return []routing.WebResult{{
			Title:          "Basic Derivative Rules",
			Snippet:        "Power rule: d/dx(x^n) = nx^(n-1), Product rule, Chain rule are fundamental",
			URL:            "fallback://derivatives",
			Source:         "fallback",
			RelevanceScore: 0.8,
			HasContent:     true,
			Content:        "Derivatives measure the rate of change of functions.",
		}}
	case strings.Contains(queryLower, "solve") || strings.Contains(queryLower, "equation"):
		return []routing.WebResult{{
			Title:          "Solving Equations",
			Snippet:        "Mathematical equations can be solved using various algebraic techniques",
			URL:            "fallback://solving",
			Source:         "fallback",
			RelevanceScore: 0.6,
			HasContent:     true,
			Content:        "Isolate the variable by performing the same operations on both sides.",
		}}
	}
	return nil
}
