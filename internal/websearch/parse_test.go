package websearch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultsPage = `<!DOCTYPE html>
<html><body>
<div class="results">
  <div class="result results_links results_links_deep web-result">
    <h2 class="result__title">
      <a class="result__a" href="https://example.com/quadratic">Quadratic formula explained</a>
    </h2>
    <a class="result__snippet">How to <b>solve</b> a quadratic equation step by step</a>
  </div>
  <div class="result">
    <a class="result__a" href="https://example.com/derivative">Derivative rules</a>
    <div class="result__snippet">Power rule, product rule and chain rule</div>
  </div>
  <div class="result">
    <span>no anchor here, skipped</span>
  </div>
</div>
</body></html>`

func TestParseSearchResults(t *testing.T) {
	results := parseSearchResults(strings.NewReader(resultsPage))
	require.Len(t, results, 2)

	assert.Equal(t, "Quadratic formula explained", results[0].Title)
	assert.Equal(t, "https://example.com/quadratic", results[0].URL)
	assert.Equal(t, "How to solve a quadratic equation step by step", results[0].Snippet)
	assert.Equal(t, "duckduckgo", results[0].Source)

	// The snippet element has appeared as both <a> and <div>; both forms
	// must parse.
	assert.Equal(t, "Derivative rules", results[1].Title)
	assert.Equal(t, "Power rule, product rule and chain rule", results[1].Snippet)
}

func TestParseSearchResultsEmptyPage(t *testing.T) {
	results := parseSearchResults(strings.NewReader("<html><body><p>no results</p></body></html>"))
	assert.Empty(t, results)
}

func TestParseInstantAnswer(t *testing.T) {
	body := []byte(`{
		"AbstractText": "A quadratic equation is a polynomial equation of degree two.",
		"Heading": "Quadratic equation",
		"AbstractURL": "https://en.wikipedia.org/wiki/Quadratic_equation",
		"RelatedTopics": [
			{"Text": "Discriminant - A quantity that determines the nature of the roots.", "FirstURL": "https://duckduckgo.com/Discriminant"},
			{"Text": "no url, skipped"},
			{"Text": "Completing the square - A technique for solving quadratics.", "FirstURL": "https://duckduckgo.com/c/Completing_the_square"}
		]
	}`)

	results := parseInstantAnswer(body)
	require.Len(t, results, 3)

	assert.Equal(t, "Quadratic equation", results[0].Title)
	assert.Equal(t, "A quadratic equation is a polynomial equation of degree two.", results[0].Snippet)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Quadratic_equation", results[0].URL)
	assert.Equal(t, "duckduckgo_instant", results[0].Source)

	// Related topic titles are the text before the first " - ".
	assert.Equal(t, "Discriminant", results[1].Title)
	assert.Equal(t, "Completing the square", results[2].Title)
}

func TestParseInstantAnswerEmpty(t *testing.T) {
	assert.Empty(t, parseInstantAnswer([]byte(`{}`)))
	assert.Empty(t, parseInstantAnswer([]byte(`{"AbstractText": "", "RelatedTopics": []}`)))
}
