package feedback

import (
	"testing"

	"github.com/solvernet/mathrouter/internal/config"
	"github.com/solvernet/mathrouter/internal/routing"
)

func TestNewRuleSetCompilesBuiltins(t *testing.T) {
	rs, err := NewRuleSet(nil)
	if err != nil {
		t.Fatalf("NewRuleSet() failed: %v", err)
	}
	if len(rs.rules) != 5 {
		t.Errorf("built-in rule count = %d, want 5", len(rs.rules))
	}
}

func TestNewRuleSetRejectsInvalidExpression(t *testing.T) {
	_, err := NewRuleSet([]config.ImprovementRuleConfig{
		{When: "Rating <<< 2", Type: "broken", Priority: PriorityLow},
	})
	if err == nil {
		t.Fatal("NewRuleSet() should reject an invalid expression")
	}
}

func TestEvaluateRulesAreIndependent(t *testing.T) {
	rs, err := NewRuleSet(nil)
	if err != nil {
		t.Fatalf("NewRuleSet() failed: %v", err)
	}

	e := &Entry{
		Ratings: Ratings{
			Rating:              1,
			Correct:             false,
			Clear:               false,
			Complete:            false,
			AlternativeSolution: "x = 4",
		},
		Response: Response{RouteUsed: routing.RouteFallback, Confidence: 0.2},
	}

	improvements := rs.Evaluate(e)
	if len(improvements) != 5 {
		t.Fatalf("got %d improvements, want all 5 rules to fire", len(improvements))
	}

	types := make(map[string]bool)
	for _, imp := range improvements {
		types[imp.Type] = true
		if imp.Route != routing.RouteFallback {
			t.Errorf("improvement %s carries route %q, want fallback", imp.Type, imp.Route)
		}
	}
	for _, want := range []string{
		TypeLowSatisfaction, TypeCorrectness, TypeClarity, TypeCompleteness, TypeConfidenceAccuracy,
	} {
		if !types[want] {
			t.Errorf("missing improvement type %q", want)
		}
	}
}

func TestEvaluateLowRatingIncorrectAnswer(t *testing.T) {
	rs, err := NewRuleSet(nil)
	if err != nil {
		t.Fatalf("NewRuleSet() failed: %v", err)
	}

	// Unhappy and wrong, but clear, complete, and confidently answered:
	// only the satisfaction and correctness rules apply.
	e := &Entry{
		Ratings:  Ratings{Rating: 1, Correct: false, Clear: true, Complete: true},
		Response: Response{RouteUsed: routing.RouteKnowledgeBase, Confidence: 0.9},
	}

	improvements := rs.Evaluate(e)
	if len(improvements) != 2 {
		t.Fatalf("got %d improvements, want exactly 2", len(improvements))
	}

	priorities := make(map[string]string)
	for _, imp := range improvements {
		priorities[imp.Type] = imp.Priority
	}
	if priorities[TypeLowSatisfaction] != PriorityHigh {
		t.Errorf("low satisfaction priority = %q, want %q", priorities[TypeLowSatisfaction], PriorityHigh)
	}
	if priorities[TypeCorrectness] != PriorityCritical {
		t.Errorf("correctness priority = %q, want %q", priorities[TypeCorrectness], PriorityCritical)
	}
}

func TestEvaluateCleanEntryFiresNothing(t *testing.T) {
	rs, err := NewRuleSet(nil)
	if err != nil {
		t.Fatalf("NewRuleSet() failed: %v", err)
	}

	r := DefaultRatings()
	r.Rating = 5
	r.Helpful = true
	e := &Entry{
		Ratings:  r,
		Response: Response{RouteUsed: routing.RouteKnowledgeBase, Confidence: 0.95},
	}

	if improvements := rs.Evaluate(e); len(improvements) != 0 {
		t.Errorf("got %d improvements for a clean entry, want 0", len(improvements))
	}
}

func TestEvaluateCustomRule(t *testing.T) {
	rs, err := NewRuleSet([]config.ImprovementRuleConfig{
		{
			When:       `Route == "web_search" && !Helpful`,
			Type:       "web_quality",
			Issue:      "Web-sourced answer was not helpful",
			Priority:   PriorityLow,
			Suggestion: "Review search result ranking",
		},
	})
	if err != nil {
		t.Fatalf("NewRuleSet() failed: %v", err)
	}

	r := DefaultRatings()
	r.Rating = 4
	e := &Entry{
		Ratings:  r,
		Response: Response{RouteUsed: routing.RouteWebSearch, Confidence: 0.8},
	}

	improvements := rs.Evaluate(e)
	if len(improvements) != 1 {
		t.Fatalf("got %d improvements, want only the custom rule", len(improvements))
	}
	if improvements[0].Type != "web_quality" {
		t.Errorf("Type = %q, want web_quality", improvements[0].Type)
	}
	if improvements[0].Priority != PriorityLow {
		t.Errorf("Priority = %q, want %q", improvements[0].Priority, PriorityLow)
	}

	// Same rule must not fire for a knowledge-base answer.
	e.Response.RouteUsed = routing.RouteKnowledgeBase
	if improvements := rs.Evaluate(e); len(improvements) != 0 {
		t.Errorf("custom rule fired for the wrong route: %+v", improvements)
	}
}
