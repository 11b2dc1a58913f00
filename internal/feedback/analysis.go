// Copyright 2026 The mathrouter Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package feedback

import (
	"fmt"
	"sort"

	"github.com/solvernet/mathrouter/internal/routing"
)

// recentWindow is how many of the newest entries the trend comparison
// looks at.
const recentWindow = 20

// Overview summarizes the aggregate satisfaction counters.
type Overview struct {
	TotalFeedbackEntries int     `json:"total_feedback_entries"`
	AverageRating        float64 `json:"average_rating"`
	HighSatisfactionRate float64 `json:"high_satisfaction_rate"`
	LowSatisfactionRate  float64 `json:"low_satisfaction_rate"`
}

// RoutePerformance reports user-perceived quality for one route.
type RoutePerformance struct {
	TotalUsage         int     `json:"total_usage"`
	HelpfulRate        float64 `json:"helpful_rate"`
	CorrectRate        float64 `json:"correct_rate"`
	EffectivenessScore float64 `json:"effectiveness_score"`
}

// CommonIssues reports how often users flagged quality problems.
type CommonIssues struct {
	ClarityRate      float64 `json:"clarity_rate"`
	CompletenessRate float64 `json:"completeness_rate"`
}

// PriorityItem is one row of the prioritized improvement list.
type PriorityItem struct {
	Type              string `json:"type"`
	Priority          string `json:"priority"`
	Frequency         int    `json:"frequency"`
	RecommendedAction string `json:"recommended_action"`
}

// Trends compares the recent rating mean against the all-time mean.
type Trends struct {
	Message              string  `json:"message,omitempty"`
	RecentAverageRating  float64 `json:"recent_average_rating,omitempty"`
	OverallAverageRating float64 `json:"overall_average_rating,omitempty"`
	Trend                string  `json:"trend,omitempty"`
	RecentFeedbackCount  int     `json:"recent_feedback_count,omitempty"`
}

// Analysis is the comprehensive feedback report. On an empty store only
// Message is set.
type Analysis struct {
	Message               string                                     `json:"message,omitempty"`
	Overview              *Overview                                  `json:"overview,omitempty"`
	RoutePerformance      map[routing.RouteDecision]RoutePerformance `json:"route_performance,omitempty"`
	CommonIssues          *CommonIssues                              `json:"common_issues,omitempty"`
	ImprovementPriorities []PriorityItem                             `json:"improvement_priorities,omitempty"`
	RecentTrends          *Trends                                    `json:"recent_trends,omitempty"`
}

// RatingShare is one bucket of the rating distribution.
type RatingShare struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// QualityMetrics reports the fraction of retained entries carrying each
// positive quality flag.
type QualityMetrics struct {
	Helpfulness  float64 `json:"helpfulness"`
	Correctness  float64 `json:"correctness"`
	Clarity      float64 `json:"clarity"`
	Completeness float64 `json:"completeness"`
}

// SatisfactionMetrics is the detailed user-satisfaction report. On an
// empty store only Message is set.
type SatisfactionMetrics struct {
	Message            string                 `json:"message,omitempty"`
	AverageRating      float64                `json:"average_rating,omitempty"`
	RatingDistribution map[string]RatingShare `json:"rating_distribution,omitempty"`
	QualityMetrics     *QualityMetrics        `json:"quality_metrics,omitempty"`
	SatisfactionTrend  *Trends                `json:"satisfaction_trend,omitempty"`
}

// AppliedImprovement is one concrete adjustment derived from the
// prioritized improvement list.
type AppliedImprovement struct {
	Type           string `json:"type"`
	Action         string `json:"action"`
	Recommendation string `json:"recommendation"`
}

// ApplyResult reports the adjustments identified by ApplyImprovements.
type ApplyResult struct {
	Status       string               `json:"status"`
	AppliedCount int                  `json:"applied_count"`
	Improvements []AppliedImprovement `json:"improvements"`
}

// KnowledgeUpdate is one candidate knowledge-base change extracted from
// feedback: a correction when the user supplied a better solution, or an
// improvement note otherwise.
type KnowledgeUpdate struct {
	Type                 string `json:"type"`
	OriginalQuery        string `json:"original_query,omitempty"`
	IncorrectSolution    string `json:"incorrect_solution,omitempty"`
	CorrectedSolution    string `json:"corrected_solution,omitempty"`
	UserComments         string `json:"user_comments,omitempty"`
	Query                string `json:"query,omitempty"`
	CurrentSolution      string `json:"current_solution,omitempty"`
	SuggestedImprovement string `json:"suggested_improvement,omitempty"`
}

// KnowledgeUpdates lists the candidate knowledge-base changes. Updates
// carries at most the first ten; PotentialUpdates is the full count.
type KnowledgeUpdates struct {
	PotentialUpdates int               `json:"potential_updates"`
	Updates          []KnowledgeUpdate `json:"updates"`
	Status           string            `json:"status"`
}

// reportedRoutes fixes the iteration order for per-route reports.
var reportedRoutes = []routing.RouteDecision{
	routing.RouteKnowledgeBase,
	routing.RouteWebSearch,
	routing.RouteHybrid,
	routing.RouteFallback,
}

// recommendedActions maps improvement types to their remediation advice.
var recommendedActions = map[string]string{
	TypeCorrectness:        "Review mathematical computation logic and verify solutions against known answers",
	TypeClarity:            "Improve step-by-step explanations and use simpler language",
	TypeCompleteness:       "Ensure all solution steps are included and properly explained",
	TypeLowSatisfaction:    "Conduct detailed review of user experience and solution quality",
	TypeConfidenceAccuracy: "Calibrate routing confidence scores and improve decision thresholds",
}

func recommendedAction(improvementType string) string {
	if action, ok := recommendedActions[improvementType]; ok {
		return action
	}
	return "Investigate specific issues and implement targeted improvements"
}

// Analysis builds the comprehensive feedback report: overall satisfaction,
// per-route performance, common issues, prioritized improvements, and the
// recent trend.
func (a *Aggregator) Analysis() Analysis {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.stats.total == 0 {
		return Analysis{Message: "No feedback data available yet"}
	}

	total := float64(a.stats.total)
	return Analysis{
		Overview: &Overview{
			TotalFeedbackEntries: a.stats.total,
			AverageRating:        a.stats.averageRating(),
			HighSatisfactionRate: float64(a.stats.highSatisfaction) / total,
			LowSatisfactionRate:  float64(a.stats.lowSatisfaction) / total,
		},
		RoutePerformance: a.routePerformanceLocked(),
		CommonIssues: &CommonIssues{
			ClarityRate:      float64(a.stats.clarityIssues) / total,
			CompletenessRate: float64(a.stats.completenessIssues) / total,
		},
		ImprovementPriorities: a.prioritizeLocked(),
		RecentTrends:          a.trendsLocked(),
	}
}

func (a *Aggregator) routePerformanceLocked() map[routing.RouteDecision]RoutePerformance {
	performance := make(map[routing.RouteDecision]RoutePerformance)
	for _, route := range reportedRoutes {
		total := a.stats.routeTotal[route]
		if total == 0 {
			continue
		}
		helpful := a.stats.routeHelpful[route]
		correct := a.stats.routeCorrect[route]
		performance[route] = RoutePerformance{
			TotalUsage:         total,
			HelpfulRate:        float64(helpful) / float64(total),
			CorrectRate:        float64(correct) / float64(total),
			EffectivenessScore: float64(helpful+correct) / float64(2*total),
		}
	}
	return performance
}

// prioritizeLocked ranks the suggestion backlog: priority tier first in
// fixed order, then type frequency within the tier, capped at the top 10.
// A single critical item always outranks any number of low-tier ones.
func (a *Aggregator) prioritizeLocked() []PriorityItem {
	type tierGroup struct {
		order  []string
		counts map[string]int
	}
	tiers := make(map[string]*tierGroup)
	for _, s := range a.suggestions {
		group := tiers[s.Priority]
		if group == nil {
			group = &tierGroup{counts: make(map[string]int)}
			tiers[s.Priority] = group
		}
		if _, seen := group.counts[s.Type]; !seen {
			group.order = append(group.order, s.Type)
		}
		group.counts[s.Type]++
	}

	var items []PriorityItem
	for _, tier := range []string{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow} {
		group := tiers[tier]
		if group == nil {
			continue
		}
		sort.SliceStable(group.order, func(i, j int) bool {
			return group.counts[group.order[i]] > group.counts[group.order[j]]
		})
		for _, improvementType := range group.order {
			items = append(items, PriorityItem{
				Type:              improvementType,
				Priority:          tier,
				Frequency:         group.counts[improvementType],
				RecommendedAction: recommendedAction(improvementType),
			})
		}
	}
	if len(items) > 10 {
		items = items[:10]
	}
	return items
}

func (a *Aggregator) trendsLocked() *Trends {
	if len(a.entries) == 0 {
		return &Trends{Message: "No recent feedback available"}
	}

	start := len(a.entries) - recentWindow
	if start < 0 {
		start = 0
	}
	recent := a.entries[start:]
	sum := 0
	for _, e := range recent {
		sum += e.Ratings.Rating
	}
	recentAvg := float64(sum) / float64(len(recent))
	overallAvg := a.stats.averageRating()

	trend := "stable"
	switch {
	case recentAvg > overallAvg:
		trend = "improving"
	case recentAvg < overallAvg:
		trend = "declining"
	}

	return &Trends{
		RecentAverageRating:  recentAvg,
		OverallAverageRating: overallAvg,
		Trend:                trend,
		RecentFeedbackCount:  len(recent),
	}
}

// SatisfactionMetrics builds the detailed satisfaction report: the rating
// distribution, per-flag quality rates over the retained entries, and the
// recent trend.
func (a *Aggregator) SatisfactionMetrics() SatisfactionMetrics {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.stats.total == 0 {
		return SatisfactionMetrics{Message: "No feedback data available"}
	}

	distribution := make(map[string]RatingShare, 5)
	total := float64(a.stats.total)
	for r := 1; r <= 5; r++ {
		count := a.stats.ratings[r]
		distribution[fmt.Sprintf("rating_%d", r)] = RatingShare{
			Count:      count,
			Percentage: float64(count) / total * 100,
		}
	}

	var flags struct{ helpful, correct, clear, complete int }
	for _, e := range a.entries {
		if e.Ratings.Helpful {
			flags.helpful++
		}
		if e.Ratings.Correct {
			flags.correct++
		}
		if e.Ratings.Clear {
			flags.clear++
		}
		if e.Ratings.Complete {
			flags.complete++
		}
	}
	retained := float64(len(a.entries))
	quality := &QualityMetrics{
		Helpfulness:  float64(flags.helpful) / retained,
		Correctness:  float64(flags.correct) / retained,
		Clarity:      float64(flags.clear) / retained,
		Completeness: float64(flags.complete) / retained,
	}

	return SatisfactionMetrics{
		AverageRating:      a.stats.averageRating(),
		RatingDistribution: distribution,
		QualityMetrics:     quality,
		SatisfactionTrend:  a.trendsLocked(),
	}
}

// ApplyImprovements turns the top five prioritized items into concrete
// adjustment recommendations. Only types with a known adjustment produce
// one; the report does not mutate the backlog.
func (a *Aggregator) ApplyImprovements() ApplyResult {
	a.mu.RLock()
	priorities := a.prioritizeLocked()
	a.mu.RUnlock()

	if len(priorities) > 5 {
		priorities = priorities[:5]
	}

	var applied []AppliedImprovement
	for _, item := range priorities {
		switch item.Type {
		case TypeConfidenceAccuracy:
			applied = append(applied, AppliedImprovement{
				Type:           "confidence_threshold",
				Action:         "Adjust routing confidence thresholds",
				Recommendation: "Lower threshold for knowledge base routing to 0.6",
			})
		case TypeClarity:
			applied = append(applied, AppliedImprovement{
				Type:           "explanation_enhancement",
				Action:         "Enhance step-by-step explanations",
				Recommendation: "Add more detailed intermediate steps",
			})
		case TypeCompleteness:
			applied = append(applied, AppliedImprovement{
				Type:           "solution_completeness",
				Action:         "Ensure complete solutions",
				Recommendation: "Add verification steps to all solutions",
			})
		}
	}

	return ApplyResult{
		Status:       StatusImprovementsIdentified,
		AppliedCount: len(applied),
		Improvements: applied,
	}
}

// KnowledgeUpdates extracts candidate knowledge-base changes from the
// retained entries. An entry with an alternative solution and a
// correctness complaint yields a correction; otherwise a suggested
// improvement yields an improvement note.
func (a *Aggregator) KnowledgeUpdates() KnowledgeUpdates {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var updates []KnowledgeUpdate
	for _, e := range a.entries {
		r := e.Ratings
		switch {
		case r.AlternativeSolution != "" && !r.Correct:
			updates = append(updates, KnowledgeUpdate{
				Type:              "correction",
				OriginalQuery:     e.Query,
				IncorrectSolution: e.Response.Solution,
				CorrectedSolution: r.AlternativeSolution,
				UserComments:      r.Comments,
			})
		case r.SuggestedImprovement != "":
			updates = append(updates, KnowledgeUpdate{
				Type:                 "improvement",
				Query:                e.Query,
				CurrentSolution:      e.Response.Solution,
				SuggestedImprovement: r.SuggestedImprovement,
			})
		}
	}

	capped := updates
	if len(capped) > 10 {
		capped = capped[:10]
	}
	return KnowledgeUpdates{
		PotentialUpdates: len(updates),
		Updates:          capped,
		Status:           StatusUpdatesIdentified,
	}
}
