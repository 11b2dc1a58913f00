package feedback

import (
	"context"
	"math"
	"testing"

	"github.com/solvernet/mathrouter/internal/routing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAnalysisEmptyStore(t *testing.T) {
	a := newTestAggregator(t)

	analysis := a.Analysis()
	if analysis.Message != "No feedback data available yet" {
		t.Errorf("Message = %q, want the empty-store sentinel", analysis.Message)
	}
	if analysis.Overview != nil {
		t.Error("Overview should be nil on an empty store")
	}
	if analysis.RoutePerformance != nil {
		t.Error("RoutePerformance should be nil on an empty store")
	}
}

func TestSatisfactionMetricsEmptyStore(t *testing.T) {
	a := newTestAggregator(t)

	metrics := a.SatisfactionMetrics()
	if metrics.Message != "No feedback data available" {
		t.Errorf("Message = %q, want the empty-store sentinel", metrics.Message)
	}
	if metrics.QualityMetrics != nil {
		t.Error("QualityMetrics should be nil on an empty store")
	}
}

func TestAnalysisOverviewAndRoutePerformance(t *testing.T) {
	a := newTestAggregator(t)
	ctx := context.Background()

	// kb: rating 5 helpful, rating 1 unhelpful; web: rating 4 with a
	// clarity complaint; fallback: rating 3 with a completeness complaint.
	a.Collect(ctx, "q1", testEnvelope(routing.RouteKnowledgeBase, 0.9), ratedAt(5))
	a.Collect(ctx, "q2", testEnvelope(routing.RouteKnowledgeBase, 0.9), ratedAt(1))

	clarity := ratedAt(4)
	clarity.Clear = false
	a.Collect(ctx, "q3", testEnvelope(routing.RouteWebSearch, 0.9), clarity)

	completeness := ratedAt(3)
	completeness.Complete = false
	a.Collect(ctx, "q4", testEnvelope(routing.RouteFallback, 0.9), completeness)

	analysis := a.Analysis()
	if analysis.Message != "" {
		t.Fatalf("unexpected sentinel message %q", analysis.Message)
	}

	overview := analysis.Overview
	if overview.TotalFeedbackEntries != 4 {
		t.Errorf("TotalFeedbackEntries = %d, want 4", overview.TotalFeedbackEntries)
	}
	if !almostEqual(overview.AverageRating, 3.25) {
		t.Errorf("AverageRating = %v, want 3.25", overview.AverageRating)
	}
	if !almostEqual(overview.HighSatisfactionRate, 0.5) {
		t.Errorf("HighSatisfactionRate = %v, want 0.5", overview.HighSatisfactionRate)
	}
	if !almostEqual(overview.LowSatisfactionRate, 0.25) {
		t.Errorf("LowSatisfactionRate = %v, want 0.25", overview.LowSatisfactionRate)
	}

	kb, ok := analysis.RoutePerformance[routing.RouteKnowledgeBase]
	if !ok {
		t.Fatal("missing knowledge_base route performance")
	}
	if kb.TotalUsage != 2 {
		t.Errorf("kb TotalUsage = %d, want 2", kb.TotalUsage)
	}
	if !almostEqual(kb.HelpfulRate, 0.5) {
		t.Errorf("kb HelpfulRate = %v, want 0.5", kb.HelpfulRate)
	}
	if !almostEqual(kb.CorrectRate, 1.0) {
		t.Errorf("kb CorrectRate = %v, want 1.0", kb.CorrectRate)
	}
	if !almostEqual(kb.EffectivenessScore, 0.75) {
		t.Errorf("kb EffectivenessScore = %v, want 0.75", kb.EffectivenessScore)
	}
	if _, ok := analysis.RoutePerformance[routing.RouteHybrid]; ok {
		t.Error("hybrid route has no feedback and should not be reported")
	}

	if !almostEqual(analysis.CommonIssues.ClarityRate, 0.25) {
		t.Errorf("ClarityRate = %v, want 0.25", analysis.CommonIssues.ClarityRate)
	}
	if !almostEqual(analysis.CommonIssues.CompletenessRate, 0.25) {
		t.Errorf("CompletenessRate = %v, want 0.25", analysis.CommonIssues.CompletenessRate)
	}

	trends := analysis.RecentTrends
	if trends.Trend != "stable" {
		t.Errorf("Trend = %q, want stable when recent equals overall", trends.Trend)
	}
	if trends.RecentFeedbackCount != 4 {
		t.Errorf("RecentFeedbackCount = %d, want 4", trends.RecentFeedbackCount)
	}
}

func TestPrioritizeOrdersTiersThenFrequency(t *testing.T) {
	a := newTestAggregator(t)
	ctx := context.Background()
	resp := testEnvelope(routing.RouteKnowledgeBase, 0.9)

	incorrect := ratedAt(5)
	incorrect.Correct = false
	a.Collect(ctx, "q1", resp, incorrect)

	for i := 0; i < 2; i++ {
		a.Collect(ctx, "q2", resp, ratedAt(1))
	}

	unclear := ratedAt(5)
	unclear.Clear = false
	for i := 0; i < 3; i++ {
		a.Collect(ctx, "q3", resp, unclear)
	}

	priorities := a.Analysis().ImprovementPriorities
	if len(priorities) != 3 {
		t.Fatalf("got %d priority rows, want 3", len(priorities))
	}

	if priorities[0].Type != TypeCorrectness || priorities[0].Frequency != 1 {
		t.Errorf("priorities[0] = %+v, want correctness with frequency 1", priorities[0])
	}
	if priorities[1].Type != TypeLowSatisfaction || priorities[1].Frequency != 2 {
		t.Errorf("priorities[1] = %+v, want low_satisfaction with frequency 2", priorities[1])
	}
	if priorities[2].Type != TypeClarity || priorities[2].Frequency != 3 {
		t.Errorf("priorities[2] = %+v, want clarity with frequency 3", priorities[2])
	}

	if priorities[0].RecommendedAction != "Review mathematical computation logic and verify solutions against known answers" {
		t.Errorf("correctness action = %q", priorities[0].RecommendedAction)
	}
	if priorities[2].RecommendedAction != "Improve step-by-step explanations and use simpler language" {
		t.Errorf("clarity action = %q", priorities[2].RecommendedAction)
	}
}

func TestRecommendedActionFallback(t *testing.T) {
	got := recommendedAction("telemetry")
	want := "Investigate specific issues and implement targeted improvements"
	if got != want {
		t.Errorf("recommendedAction(telemetry) = %q, want %q", got, want)
	}
}

func TestTrendsImproving(t *testing.T) {
	a := newTestAggregator(t)
	ctx := context.Background()
	resp := testEnvelope(routing.RouteKnowledgeBase, 0.9)

	for i := 0; i < 5; i++ {
		a.Collect(ctx, "old", resp, ratedAt(1))
	}
	for i := 0; i < 20; i++ {
		a.Collect(ctx, "new", resp, ratedAt(5))
	}

	trends := a.Analysis().RecentTrends
	if !almostEqual(trends.RecentAverageRating, 5.0) {
		t.Errorf("RecentAverageRating = %v, want 5.0", trends.RecentAverageRating)
	}
	if !almostEqual(trends.OverallAverageRating, 4.2) {
		t.Errorf("OverallAverageRating = %v, want 4.2", trends.OverallAverageRating)
	}
	if trends.Trend != "improving" {
		t.Errorf("Trend = %q, want improving", trends.Trend)
	}
	if trends.RecentFeedbackCount != 20 {
		t.Errorf("RecentFeedbackCount = %d, want 20", trends.RecentFeedbackCount)
	}
}

func TestSatisfactionMetricsDistribution(t *testing.T) {
	a := newTestAggregator(t)
	ctx := context.Background()
	resp := testEnvelope(routing.RouteKnowledgeBase, 0.9)

	a.Collect(ctx, "q1", resp, ratedAt(5))
	a.Collect(ctx, "q2", resp, ratedAt(5))
	a.Collect(ctx, "q3", resp, ratedAt(2))

	unhelpful := ratedAt(4)
	unhelpful.Helpful = false
	unhelpful.Complete = false
	a.Collect(ctx, "q4", resp, unhelpful)

	metrics := a.SatisfactionMetrics()
	if metrics.Message != "" {
		t.Fatalf("unexpected sentinel message %q", metrics.Message)
	}
	if !almostEqual(metrics.AverageRating, 4.0) {
		t.Errorf("AverageRating = %v, want 4.0", metrics.AverageRating)
	}

	five := metrics.RatingDistribution["rating_5"]
	if five.Count != 2 || !almostEqual(five.Percentage, 50.0) {
		t.Errorf("rating_5 = %+v, want count 2 at 50%%", five)
	}
	two := metrics.RatingDistribution["rating_2"]
	if two.Count != 1 || !almostEqual(two.Percentage, 25.0) {
		t.Errorf("rating_2 = %+v, want count 1 at 25%%", two)
	}
	if three := metrics.RatingDistribution["rating_3"]; three.Count != 0 {
		t.Errorf("rating_3 count = %d, want 0", three.Count)
	}

	quality := metrics.QualityMetrics
	if !almostEqual(quality.Helpfulness, 0.5) {
		t.Errorf("Helpfulness = %v, want 0.5", quality.Helpfulness)
	}
	if !almostEqual(quality.Correctness, 1.0) {
		t.Errorf("Correctness = %v, want 1.0", quality.Correctness)
	}
	if !almostEqual(quality.Completeness, 0.75) {
		t.Errorf("Completeness = %v, want 0.75", quality.Completeness)
	}
	if metrics.SatisfactionTrend == nil {
		t.Error("SatisfactionTrend should be present")
	}
}

func TestApplyImprovements(t *testing.T) {
	a := newTestAggregator(t)
	ctx := context.Background()

	lowConfidence := ratedAt(3)
	a.Collect(ctx, "q1", testEnvelope(routing.RouteFallback, 0.3), lowConfidence)

	unclear := ratedAt(5)
	unclear.Clear = false
	a.Collect(ctx, "q2", testEnvelope(routing.RouteKnowledgeBase, 0.9), unclear)
	a.Collect(ctx, "q3", testEnvelope(routing.RouteKnowledgeBase, 0.9), unclear)

	incomplete := ratedAt(5)
	incomplete.Complete = false
	a.Collect(ctx, "q4", testEnvelope(routing.RouteWebSearch, 0.9), incomplete)

	result := a.ApplyImprovements()
	if result.Status != StatusImprovementsIdentified {
		t.Errorf("Status = %q, want %q", result.Status, StatusImprovementsIdentified)
	}
	if result.AppliedCount != 3 {
		t.Fatalf("AppliedCount = %d, want 3", result.AppliedCount)
	}

	if result.Improvements[0].Type != "confidence_threshold" {
		t.Errorf("Improvements[0].Type = %q, want confidence_threshold", result.Improvements[0].Type)
	}
	if result.Improvements[0].Recommendation != "Lower threshold for knowledge base routing to 0.6" {
		t.Errorf("unexpected recommendation %q", result.Improvements[0].Recommendation)
	}
	if result.Improvements[1].Type != "explanation_enhancement" {
		t.Errorf("Improvements[1].Type = %q, want explanation_enhancement", result.Improvements[1].Type)
	}
	if result.Improvements[2].Type != "solution_completeness" {
		t.Errorf("Improvements[2].Type = %q, want solution_completeness", result.Improvements[2].Type)
	}
}

func TestApplyImprovementsUnmappedTypes(t *testing.T) {
	a := newTestAggregator(t)
	ctx := context.Background()
	resp := testEnvelope(routing.RouteKnowledgeBase, 0.9)

	// Low ratings alone yield only low_satisfaction items, which have no
	// concrete adjustment.
	a.Collect(ctx, "q1", resp, ratedAt(1))
	a.Collect(ctx, "q2", resp, ratedAt(2))

	result := a.ApplyImprovements()
	if result.AppliedCount != 0 {
		t.Errorf("AppliedCount = %d, want 0", result.AppliedCount)
	}
	if result.Status != StatusImprovementsIdentified {
		t.Errorf("Status = %q, want %q", result.Status, StatusImprovementsIdentified)
	}
}

func TestKnowledgeUpdates(t *testing.T) {
	a := newTestAggregator(t)
	ctx := context.Background()
	resp := testEnvelope(routing.RouteKnowledgeBase, 0.9)

	correction := DefaultRatings()
	correction.Rating = 2
	correction.Correct = false
	correction.AlternativeSolution = "x = 7"
	correction.Comments = "sign error in step 2"
	a.Collect(ctx, "solve 2x = 14", resp, correction)

	improvement := ratedAt(4)
	improvement.SuggestedImprovement = "Show the factoring step explicitly"
	a.Collect(ctx, "factor x^2 - 9", resp, improvement)

	a.Collect(ctx, "plain entry", resp, ratedAt(5))

	// When both are present the correction wins.
	both := DefaultRatings()
	both.Rating = 1
	both.Correct = false
	both.AlternativeSolution = "x = -1"
	both.SuggestedImprovement = "also mention the discriminant"
	a.Collect(ctx, "solve x^2 + 2x + 1 = 0", resp, both)

	updates := a.KnowledgeUpdates()
	if updates.Status != StatusUpdatesIdentified {
		t.Errorf("Status = %q, want %q", updates.Status, StatusUpdatesIdentified)
	}
	if updates.PotentialUpdates != 3 {
		t.Fatalf("PotentialUpdates = %d, want 3", updates.PotentialUpdates)
	}

	first := updates.Updates[0]
	if first.Type != "correction" {
		t.Errorf("Updates[0].Type = %q, want correction", first.Type)
	}
	if first.OriginalQuery != "solve 2x = 14" {
		t.Errorf("OriginalQuery = %q", first.OriginalQuery)
	}
	if first.IncorrectSolution != resp.Solution {
		t.Errorf("IncorrectSolution = %q, want the rated solution", first.IncorrectSolution)
	}
	if first.CorrectedSolution != "x = 7" {
		t.Errorf("CorrectedSolution = %q, want x = 7", first.CorrectedSolution)
	}
	if first.UserComments != "sign error in step 2" {
		t.Errorf("UserComments = %q", first.UserComments)
	}

	second := updates.Updates[1]
	if second.Type != "improvement" {
		t.Errorf("Updates[1].Type = %q, want improvement", second.Type)
	}
	if second.Query != "factor x^2 - 9" {
		t.Errorf("Query = %q", second.Query)
	}
	if second.SuggestedImprovement != "Show the factoring step explicitly" {
		t.Errorf("SuggestedImprovement = %q", second.SuggestedImprovement)
	}

	if updates.Updates[2].Type != "correction" {
		t.Errorf("Updates[2].Type = %q, want correction to win over improvement", updates.Updates[2].Type)
	}
}
