package websearch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solvernet/mathrouter/internal/routing"
)

func TestRankResultsScoring(t *testing.T) {
	results := []routing.WebResult{
		{
			Title:   "Quadratic equation",
			Snippet: "In algebra, a quadratic equation can be solved with the formula",
			URL:     "https://en.wikipedia.org/wiki/Quadratic_equation",
		},
		{
			Title:   "Great shopping deals",
			Snippet: "Best price on textbooks, huge sale",
			URL:     "https://shop.example.com/deals",
		},
	}

	ranked := rankResults(results, "quadratic equation")
	require.Len(t, ranked, 1, "commercial result must be filtered out")

	// +2.0 trusted domain, +1.0 title keyword, +0.5 snippet keyword,
	// +1.5 full query overlap.
	assert.Equal(t, "Quadratic equation", ranked[0].Title)
	assert.InDelta(t, 5.0, ranked[0].RelevanceScore, 1e-9)
}

func TestRankResultsOverlapRatio(t *testing.T) {
	results := []routing.WebResult{{
		Title:   "alpha beta notes",
		Snippet: "some writing here",
		URL:     "https://notes.example.com",
	}}

	// Two of four query words appear in the content and nothing else
	// scores: 2/4 * 1.5 = 0.75.
	ranked := rankResults(results, "alpha beta gamma delta")
	require.Len(t, ranked, 1)
	assert.InDelta(t, 0.75, ranked[0].RelevanceScore, 1e-9)
}

func TestRankResultsThresholdIsStrict(t *testing.T) {
	results := []routing.WebResult{{
		Title:   "Untitled page",
		Snippet: "how to solve stuff",
		URL:     "https://plain.example.com",
	}}

	// Snippet keyword alone scores exactly 0.5, which does not exceed the
	// floor.
	ranked := rankResults(results, "riemann")
	assert.Empty(t, ranked)
}

func TestRankResultsOrdering(t *testing.T) {
	results := []routing.WebResult{
		{Title: "weak match on alpha", Snippet: "", URL: "https://a.example.com"},
		{Title: "Pythagorean theorem", Snippet: "solve right triangles", URL: "https://mathworld.wolfram.com/PythagoreanTheorem.html"},
	}

	ranked := rankResults(results, "alpha")
	require.Len(t, ranked, 2)
	assert.Equal(t, "Pythagorean theorem", ranked[0].Title)
	assert.Greater(t, ranked[0].RelevanceScore, ranked[1].RelevanceScore)
}

func TestRankResultsEmptyQuery(t *testing.T) {
	results := []routing.WebResult{{
		Title: "Integral table",
		URL:   "https://mathworld.wolfram.com/IntegralTable.html",
	}}

	// No query words means no overlap component and no division by the
	// word count; the domain bonus still applies.
	ranked := rankResults(results, "")
	require.Len(t, ranked, 1)
	assert.InDelta(t, 2.0, ranked[0].RelevanceScore, 1e-9)
}
