package routing

import (
	"context"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property-based tests for the routing decision core.

// genQuery builds queries by joining words drawn from a vocabulary that
// mixes scoring keywords with noise, so generated queries land on both
// sides of every threshold.
func genQuery() gopter.Gen {
	word := gen.OneConstOf(
		"solve", "calculate", "find", "explain", "what", "is", "the",
		"derivative", "integral", "quadratic", "linear", "equation", "formula",
		"riemann", "fermat", "euler", "newton", "hypothesis", "conjecture",
		"latest", "research", "theorem", "banana", "x^2", "7", "why",
	)
	return gen.SliceOf(word).Map(func(words []string) string {
		return strings.Join(words, " ")
	})
}

func TestProperty_ScoreClamping(t *testing.T) {
	properties := gopter.NewProperties(nil)
	policy := DefaultPolicy()

	properties.Property("knowledge-base confidence stays in the unit interval", prop.ForAll(
		func(scores []float64, query string) bool {
			candidates := make([]Candidate, len(scores))
			for i, s := range scores {
				candidates[i] = Candidate{RelevanceScore: s}
			}
			got := policy.ScoreKnowledgeBase(query, candidates)
			return got >= 0.0 && got <= 1.0
		},
		gen.SliceOf(gen.Float64Range(0.0, 2.0)), // raw retrieval scores may exceed 1
		genQuery(),
	))

	properties.Property("web-search need stays in the unit interval", prop.ForAll(
		func(query string) bool {
			got := policy.ScoreWebSearchNeed(query)
			return got >= 0.0 && got <= 1.0
		},
		genQuery(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_RouteThresholdOrdering(t *testing.T) {
	properties := gopter.NewProperties(nil)
	policy := DefaultPolicy()

	properties.Property("decisions respect the threshold ordering", prop.ForAll(
		func(relevance float64, query string) bool {
			source := &stubSource{candidates: []Candidate{{RelevanceScore: relevance}}}
			sel := newTestSelector(source, nil)

			route, meta, _ := sel.Decide(context.Background(), query, nil)

			kbConf := policy.ScoreKnowledgeBase(query, source.candidates)
			webNeed := policy.ScoreWebSearchNeed(query)

			switch {
			case kbConf >= 0.7:
				return route == RouteKnowledgeBase && !meta.FallbackUsed
			case webNeed >= 0.5 && kbConf > 0.3:
				return route == RouteHybrid && !meta.FallbackUsed
			case webNeed >= 0.5:
				return route == RouteWebSearch && !meta.FallbackUsed
			default:
				return route == RouteFallback && meta.FallbackUsed
			}
		},
		gen.Float64Range(0.0, 1.0),
		genQuery(),
	))

	properties.Property("recorded decisions are one of the four routes", prop.ForAll(
		func(relevance float64, query string) bool {
			recorder := &captureRecorder{}
			source := &stubSource{candidates: []Candidate{{RelevanceScore: relevance}}}
			sel := newTestSelector(source, recorder)

			sel.Decide(context.Background(), query, nil)

			if len(recorder.routes) != 1 {
				return false
			}
			return recorder.routes[0].Valid()
		},
		gen.Float64Range(0.0, 1.0),
		genQuery(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_CombineConfidenceMean(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("combined confidence is the arithmetic mean", prop.ForAll(
		func(a, b float64) bool {
			combined := Combine(
				&Result{Solution: "kb", Confidence: a},
				&Result{Solution: "web", Confidence: b},
			)
			return combined.Confidence == (a+b)/2
		},
		gen.Float64Range(0.0, 1.0),
		gen.Float64Range(0.0, 1.0),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
