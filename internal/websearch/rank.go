package websearch

import (
	"strings"

	"github.com/solvernet/mathrouter/internal/routing"
)

// minRelevance is the score a result must exceed to be kept.
const minRelevance = 0.5

// mathDomains are trusted mathematical sources; a result hosted on one
// earns a flat reputation bonus.
var mathDomains = []string{
	"mathworld.wolfram.com",
	"en.wikipedia.org",
	"khanacademy.org",
	"math.stackexchange.com",
	"brilliant.org",
	"mit.edu",
	"stanford.edu",
}

var (
	titleKeywords   = []string{"math", "formula", "equation", "theorem", "proof"}
	snippetKeywords = []string{"solve", "formula", "equation", "calculate"}
	commerceTerms   = []string{"shopping", "buy", "price", "sale"}
)

// rankResults scores each result for mathematical relevance and returns
// the survivors in descending score order. Per result: +2.0 for a trusted
// domain, +1.0 once for a mathematical title, +0.5 once for a solving
// snippet, +1.5 scaled by query-term overlap, -1.0 once for commercial
// content. Results must exceed 0.5 to survive.
func rankResults(results []routing.WebResult, query string) []routing.WebResult {
	queryLower := strings.ToLower(query)
	queryWords := strings.Fields(queryLower)

	var ranked []routing.WebResult
	for _, r := range results {
		score := 0.0

		urlLower := strings.ToLower(r.URL)
		for _, domain := range mathDomains {
			if strings.Contains(urlLower, domain) {
				score += 2.0
				break
			}
		}

		titleLower := strings.ToLower(r.Title)
		for _, word := range titleKeywords {
			if strings.Contains(titleLower, word) {
				score += 1.0
				break
			}
		}

		snippetLower := strings.ToLower(r.Snippet)
		for _, word := range snippetKeywords {
			if strings.Contains(snippetLower, word) {
				score += 0.5
				break
			}
		}

		content := titleLower + " " + snippetLower
		if len(queryWords) > 0 {
			matching := 0
			for _, word := range queryWords {
				if strings.Contains(content, word) {
					matching++
				}
			}
			score += float64(matching) / float64(len(queryWords)) * 1.5
		}

		for _, term := range commerceTerms {
			if strings.Contains(content, term) {
				score -= 1.0
				break
			}
		}

		if score > minRelevance {
			r.RelevanceScore = score
			ranked = append(ranked, r)
		}
	}

	sortByRelevance(ranked)
	return ranked
}
