package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCombinePrefersKnowledgeBaseLead(t *testing.T) {
	kb := &Result{
		Solution:   "Answer: x = 2 or x = 3",
		Steps:      []string{"Factor", "Solve each factor"},
		Sources:    []Source{{Type: SourceKnowledgeBase}},
		Confidence: 0.9,
	}
	web := &Result{
		Solution:   "Use the quadratic formula.",
		Steps:      []string{"Identify a, b, c"},
		Sources:    []Source{{Type: SourceWebSearch}},
		Confidence: 0.5,
	}

	combined := Combine(kb, web)

	assert.Equal(t,
		"Based on my knowledge base: Answer: x = 2 or x = 3\n\n"+
			"Additional information from web search: Use the quadratic formula.",
		combined.Solution)
	assert.Equal(t, []string{"Factor", "Solve each factor", "Identify a, b, c"}, combined.Steps)
	assert.Equal(t, []Source{{Type: SourceKnowledgeBase}, {Type: SourceWebSearch}}, combined.Sources)
	assert.InDelta(t, 0.7, combined.Confidence, 1e-9)
}

func TestCombineSkipsDuplicateWebSolution(t *testing.T) {
	kb := &Result{Solution: "same text", Confidence: 0.8}
	web := &Result{Solution: "same text", Confidence: 0.4}

	combined := Combine(kb, web)

	assert.Equal(t, "Based on my knowledge base: same text\n\n", combined.Solution)
	assert.InDelta(t, 0.6, combined.Confidence, 1e-9)
}

func TestCombineSkipsEmptyWebSolution(t *testing.T) {
	kb := &Result{Solution: "kb answer", Confidence: 1.0}
	web := &Result{Solution: "", Confidence: 0.0}

	combined := Combine(kb, web)

	assert.Equal(t, "Based on my knowledge base: kb answer\n\n", combined.Solution)
	assert.InDelta(t, 0.5, combined.Confidence, 1e-9)
}

func TestCombineDoesNotShareStepSlices(t *testing.T) {
	kb := &Result{Solution: "a", Steps: []string{"s1"}, Confidence: 0.6}
	web := &Result{Solution: "b", Steps: []string{"s2"}, Confidence: 0.6}

	combined := Combine(kb, web)
	combined.Steps[0] = "mutated"

	assert.Equal(t, []string{"s1"}, kb.Steps)
}
