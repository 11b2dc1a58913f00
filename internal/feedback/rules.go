// Copyright 2026 The mathrouter Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package feedback

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	log "github.com/sirupsen/logrus"

	"github.com/solvernet/mathrouter/internal/config"
)

// RuleEnv is the expression environment a feedback entry exposes to
// improvement rules.
type RuleEnv struct {
	Rating     int
	Helpful    bool
	Correct    bool
	Clear      bool
	Complete   bool
	Confidence float64
	Route      string
}

// rule is one compiled improvement rule.
type rule struct {
	config.ImprovementRuleConfig
	program *vm.Program
}

// RuleSet evaluates feedback entries against a table of improvement rules.
// Every rule is checked independently; one entry can fire several.
type RuleSet struct {
	rules []rule
}

// defaultRules returns the built-in improvement rules.
func defaultRules() []config.ImprovementRuleConfig {
	return []config.ImprovementRuleConfig{
		{
			When:       "Rating <= 2",
			Type:       TypeLowSatisfaction,
			Issue:      "User gave low rating",
			Priority:   PriorityHigh,
			Suggestion: "Review solution quality and approach",
		},
		{
			When:            "!Correct",
			Type:            TypeCorrectness,
			Issue:           "Solution marked as incorrect",
			Priority:        PriorityCritical,
			Suggestion:      "Verify computational accuracy and logic",
			CarryCorrection: true,
		},
		{
			When:       "!Clear",
			Type:       TypeClarity,
			Issue:      "Solution not clear to user",
			Priority:   PriorityMedium,
			Suggestion: "Improve explanation and step-by-step breakdown",
		},
		{
			When:       "!Complete",
			Type:       TypeCompleteness,
			Issue:      "Solution incomplete",
			Priority:   PriorityMedium,
			Suggestion: "Provide more comprehensive solution steps",
		},
		{
			When:       "Confidence < 0.5 && Rating <= 3",
			Type:       TypeConfidenceAccuracy,
			Issue:      "Low confidence correlated with poor user experience",
			Priority:   PriorityHigh,
			Suggestion: "Improve routing decision accuracy",
		},
	}
}

// NewRuleSet compiles the built-in rules plus any extra rules from
// configuration. Extra rules run after the built-ins in declaration order.
func NewRuleSet(extra []config.ImprovementRuleConfig) (*RuleSet, error) {
	configs := append(defaultRules(), extra...)
	rs := &RuleSet{rules: make([]rule, 0, len(configs))}
	for _, rc := range configs {
		program, err := expr.Compile(rc.When, expr.Env(RuleEnv{}))
		if err != nil {
			return nil, fmt.Errorf("failed to compile improvement rule '%s': %w", rc.When, err)
		}
		rs.rules = append(rs.rules, rule{ImprovementRuleConfig: rc, program: program})
	}
	return rs, nil
}

// Evaluate runs every rule against the entry and returns the improvements
// that fired. A rule that fails to run is logged and skipped so one bad
// expression cannot block feedback collection.
func (rs *RuleSet) Evaluate(e *Entry) []Improvement {
	env := RuleEnv{
		Rating:     e.Ratings.Rating,
		Helpful:    e.Ratings.Helpful,
		Correct:    e.Ratings.Correct,
		Clear:      e.Ratings.Clear,
		Complete:   e.Ratings.Complete,
		Confidence: e.Response.Confidence,
		Route:      string(e.Response.RouteUsed),
	}

	var improvements []Improvement
	for _, r := range rs.rules {
		output, err := expr.Run(r.program, env)
		if err != nil {
			log.Warnf("Failed to run improvement rule '%s': %v", r.When, err)
			continue
		}
		fired, ok := output.(bool)
		if !ok {
			log.Warnf("Improvement rule '%s' did not return a boolean", r.When)
			continue
		}
		if !fired {
			continue
		}
		improvement := Improvement{
			Type:       r.Type,
			Route:      e.Response.RouteUsed,
			Issue:      r.Issue,
			Suggestion: r.Suggestion,
			Priority:   r.Priority,
		}
		if r.CarryCorrection {
			improvement.UserCorrection = e.Ratings.AlternativeSolution
		}
		improvements = append(improvements, improvement)
	}
	return improvements
}
