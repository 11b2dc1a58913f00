package engine

import (
	"github.com/solvernet/mathrouter/internal/buildinfo"
	"github.com/solvernet/mathrouter/internal/feedback"
	"github.com/solvernet/mathrouter/internal/knowledge"
	"github.com/solvernet/mathrouter/internal/ledger"
)

const appName = "Math Routing Agent"

// Info is the system self-description: identity, which capabilities are
// live, the effective routing thresholds, and current statistics.
type Info struct {
	AppName       string            `json:"app_name"`
	Version       string            `json:"version"`
	Features      InfoFeatures      `json:"features"`
	Configuration InfoConfiguration `json:"configuration"`
	Statistics    InfoStatistics    `json:"statistics"`
}

// InfoFeatures flags which collaborators are wired in this process.
type InfoFeatures struct {
	KnowledgeBase bool `json:"knowledge_base"`
	WebSearch     bool `json:"web_search"`
	HumanFeedback bool `json:"human_feedback"`
	Routing       bool `json:"routing"`
	Hooks         bool `json:"hooks"`
}

// InfoConfiguration echoes the routing thresholds in effect.
type InfoConfiguration struct {
	KBConfidenceThreshold float64 `json:"kb_confidence_threshold"`
	WebSearchGate         float64 `json:"web_search_gate"`
	HybridKBFloor         float64 `json:"hybrid_kb_floor"`
	TopK                  int     `json:"top_k"`
	SearchResultsLimit    int     `json:"search_results_limit"`
}

// InfoStatistics bundles the live per-subsystem reports.
type InfoStatistics struct {
	KnowledgeBase knowledge.StoreStats `json:"knowledge_base"`
	Routing       *ledger.Stats        `json:"routing"`
	Feedback      feedback.Analysis    `json:"feedback"`
}

// SystemInfo reports the engine's identity, features, configuration, and
// statistics in one snapshot.
func (e *Engine) SystemInfo() Info {
	var kbStats knowledge.StoreStats
	if e.kb != nil {
		kbStats = e.kb.Stats()
	}

	return Info{
		AppName: appName,
		Version: buildinfo.Version,
		Features: InfoFeatures{
			KnowledgeBase: e.kb != nil,
			WebSearch:     e.web != nil,
			HumanFeedback: true,
			Routing:       true,
			Hooks:         e.hooksMgr != nil,
		},
		Configuration: InfoConfiguration{
			KBConfidenceThreshold: e.cfg.Routing.KBConfidenceThreshold,
			WebSearchGate:         e.cfg.Routing.WebSearchGate,
			HybridKBFloor:         e.cfg.Routing.HybridKBFloor,
			TopK:                  e.cfg.Routing.TopK,
			SearchResultsLimit:    e.cfg.WebSearch.MaxResults,
		},
		Statistics: InfoStatistics{
			KnowledgeBase: kbStats,
			Routing:       e.RoutingStats(),
			Feedback:      e.FeedbackAnalysis(),
		},
	}
}

// Samples groups example questions by the route expected to win them.
type Samples struct {
	KnowledgeBase []string `json:"knowledge_base_queries"`
	WebSearch     []string `json:"web_search_queries"`
	Computational []string `json:"computational_queries"`
}

// SampleQueries returns curated example questions for trying out each
// route.
func SampleQueries() Samples {
	return Samples{
		KnowledgeBase: []string{
			"What is the quadratic formula?",
			"Solve x^2 - 5x + 6 = 0",
			"Find the derivative of x^3 + 2x^2 - 5x + 1",
			"What is the Pythagorean theorem?",
			"How to solve linear equations?",
		},
		WebSearch: []string{
			"What is the Basel problem in mathematics?",
			"Explain the Riemann hypothesis in simple terms",
			"How to solve differential equations using Laplace transforms?",
			"What are the latest developments in number theory?",
			"Explain Fermat's Last Theorem proof",
		},
		Computational: []string{
			"Solve 2x + 5 = 13",
			"Find the derivative of sin(x) * cos(x)",
			"Calculate the integral of x^2 + 3x + 2",
			"Factor x^2 - 9",
			"Simplify (x^2 - 4) / (x - 2)",
		},
	}
}
