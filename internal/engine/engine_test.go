package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solvernet/mathrouter/internal/buildinfo"
	"github.com/solvernet/mathrouter/internal/feedback"
	"github.com/solvernet/mathrouter/internal/hooks"
	"github.com/solvernet/mathrouter/internal/knowledge"
	"github.com/solvernet/mathrouter/internal/routing"
)

func TestNew_DefaultCollaborators(t *testing.T) {
	cfg := testConfig(t)

	e, err := New(context.Background(), cfg)
	require.NoError(t, err)

	info := e.SystemInfo()
	assert.True(t, info.Features.KnowledgeBase)
	assert.True(t, info.Features.WebSearch)
	assert.True(t, info.Features.HumanFeedback)
	assert.True(t, info.Features.Routing)
	assert.False(t, info.Features.Hooks, "hooks are opt-in")
	assert.Positive(t, info.Statistics.KnowledgeBase.TotalDocuments,
		"a missing corpus file must seed the built-in corpus")

	require.NoError(t, e.Close())
}

func TestNew_HooksEnabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Hooks.Enabled = true

	e, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	assert.True(t, e.SystemInfo().Features.Hooks)
}

func TestSystemInfo(t *testing.T) {
	kb := &stubKnowledge{results: []knowledge.SearchResult{
		kbDoc("kb_001", "How to solve quadratic equations?", "Use the quadratic formula.", 0.9),
	}}
	e := newTestEngine(t, kb, &stubWeb{})

	info := e.SystemInfo()
	assert.Equal(t, "Math Routing Agent", info.AppName)
	assert.Equal(t, buildinfo.Version, info.Version)

	assert.InDelta(t, 0.7, info.Configuration.KBConfidenceThreshold, 1e-9)
	assert.InDelta(t, 0.5, info.Configuration.WebSearchGate, 1e-9)
	assert.InDelta(t, 0.3, info.Configuration.HybridKBFloor, 1e-9)
	assert.Equal(t, 3, info.Configuration.TopK)
	assert.Equal(t, 5, info.Configuration.SearchResultsLimit)

	assert.Equal(t, 1, info.Statistics.KnowledgeBase.TotalDocuments)
	assert.Zero(t, info.Statistics.Routing.TotalQueries)
	assert.Equal(t, "No feedback data available yet", info.Statistics.Feedback.Message)

	e.ProcessQuery(context.Background(), "solve this equation", nil)
	assert.Equal(t, 1, e.SystemInfo().Statistics.Routing.TotalQueries)
}

func TestSampleQueries(t *testing.T) {
	samples := SampleQueries()

	assert.Len(t, samples.KnowledgeBase, 5)
	assert.Len(t, samples.WebSearch, 5)
	assert.Len(t, samples.Computational, 5)
	assert.Equal(t, "What is the quadratic formula?", samples.KnowledgeBase[0])
	assert.Equal(t, "What is the Basel problem in mathematics?", samples.WebSearch[0])
	assert.Equal(t, "Solve 2x + 5 = 13", samples.Computational[0])
}

func TestSubmitFeedback(t *testing.T) {
	bus := hooks.NewEventBus()
	t.Cleanup(bus.Shutdown)
	received := collectEvents(bus, hooks.EventFeedbackReceived)

	kb := &stubKnowledge{results: []knowledge.SearchResult{
		kbDoc("kb_001", "How to solve quadratic equations?", "Use the quadratic formula.", 0.9),
	}}
	e := newTestEngine(t, kb, &stubWeb{}, WithEventBus(bus))

	query := "solve this equation"
	resp := e.ProcessQuery(context.Background(), query, nil)

	ratings := feedback.DefaultRatings()
	ratings.Rating = 2
	ratings.SuggestedImprovement = "Please show the intermediate steps"

	result := e.SubmitFeedback(context.Background(), query, resp, ratings)
	assert.Equal(t, feedback.StatusCollected, result.Status)
	assert.NotEmpty(t, result.FeedbackID)
	assert.GreaterOrEqual(t, result.ImprovementsIdentified, 1,
		"a rating of 2 must trip the low-satisfaction rule")

	evt := waitEvent(t, received)
	assert.Equal(t, query, evt.Query)
	assert.Equal(t, string(routing.RouteKnowledgeBase), evt.Route)
	assert.Equal(t, 2, evt.Data["rating"])
	assert.Equal(t, result.FeedbackID, evt.Data["feedback_id"])
	assert.Equal(t, result.ImprovementsIdentified, evt.Data["improvements"])

	analysis := e.FeedbackAnalysis()
	require.NotNil(t, analysis.Overview)
	assert.Equal(t, 1, analysis.Overview.TotalFeedbackEntries)
}

func TestSatisfactionMetricsPassthrough(t *testing.T) {
	e := newTestEngine(t, &stubKnowledge{}, &stubWeb{})

	metrics := e.SatisfactionMetrics()
	assert.Equal(t, "No feedback data available", metrics.Message)
}
