package routing

// Combine merges a knowledge-base result with a web-search result for the
// hybrid route. The knowledge-base answer leads under a fixed preamble; the
// web answer is appended only when it is non-empty and differs from the
// knowledge-base answer by exact string comparison. Steps and sources are
// concatenated knowledge-base first with both orders preserved, and the
// combined confidence is the plain arithmetic mean of the two inputs. The
// mean deliberately ignores source reliability; it is a simplification, not
// a claim of optimality.
func Combine(kb, web *Result) *Result {
	solution := "Based on my knowledge base: " + kb.Solution + "\n\n"
	if web.Solution != "" && web.Solution != kb.Solution {
		solution += "Additional information from web search: " + web.Solution
	}

	steps := make([]string, 0, len(kb.Steps)+len(web.Steps))
	steps = append(steps, kb.Steps...)
	steps = append(steps, web.Steps...)

	sources := make([]Source, 0, len(kb.Sources)+len(web.Sources))
	sources = append(sources, kb.Sources...)
	sources = append(sources, web.Sources...)

	return &Result{
		Solution:   solution,
		Steps:      steps,
		Sources:    sources,
		Confidence: (kb.Confidence + web.Confidence) / 2,
	}
}
