package feedback

import (
	"time"

	"github.com/solvernet/mathrouter/internal/routing"
)

// Improvement priorities, ordered from most to least urgent.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"
)

// Improvement types produced by the built-in rules.
const (
	TypeLowSatisfaction    = "low_satisfaction"
	TypeCorrectness        = "correctness"
	TypeClarity            = "clarity"
	TypeCompleteness       = "completeness"
	TypeConfidenceAccuracy = "confidence_accuracy"
)

// Statuses reported by the aggregator's result objects.
const (
	StatusCollected              = "collected"
	StatusImprovementsIdentified = "improvements_identified"
	StatusUpdatesIdentified      = "updates_identified"
)

// Ratings is a user's structured assessment of one answer. The quality
// flags Correct, Clear, and Complete mean "no complaint" when true, so a
// zero value reads as a maximally negative review; intake paths should
// start from DefaultRatings and apply only what the user actually said.
type Ratings struct {
	Rating               int    `json:"rating"`
	Helpful              bool   `json:"helpful"`
	Correct              bool   `json:"correct"`
	Clear                bool   `json:"clear"`
	Complete             bool   `json:"complete"`
	Comments             string `json:"comments,omitempty"`
	SuggestedImprovement string `json:"suggested_improvement,omitempty"`
	AlternativeSolution  string `json:"alternative_solution,omitempty"`
}

// DefaultRatings returns the intake defaults: unrated, not marked helpful,
// and no quality complaints.
func DefaultRatings() Ratings {
	return Ratings{Correct: true, Clear: true, Complete: true}
}

// Response is the snapshot of the answer the user rated. It is captured at
// submission time so later analysis does not depend on the response still
// being reproducible.
type Response struct {
	Solution   string                `json:"solution"`
	Steps      []string              `json:"steps,omitempty"`
	RouteUsed  routing.RouteDecision `json:"route_used"`
	Confidence float64               `json:"confidence"`
}

// Entry is one immutable feedback record.
type Entry struct {
	ID        string             `json:"id"`
	Timestamp time.Time          `json:"timestamp"`
	Query     string             `json:"query"`
	QueryHash string             `json:"query_hash"`
	Response  Response           `json:"response"`
	Ratings   Ratings            `json:"feedback"`
	Scores    map[string]float64 `json:"route_confidence,omitempty"`
}

// Improvement is one identified improvement opportunity. A single feedback
// entry can yield several; the rules are independent, not exclusive.
type Improvement struct {
	Type           string                `json:"type"`
	Route          routing.RouteDecision `json:"route"`
	Issue          string                `json:"issue"`
	Suggestion     string                `json:"suggestion"`
	Priority       string                `json:"priority"`
	UserCorrection string                `json:"user_correction,omitempty"`
}

// CollectResult acknowledges one feedback submission.
type CollectResult struct {
	FeedbackID             string        `json:"feedback_id"`
	Status                 string        `json:"status"`
	ImprovementsIdentified int           `json:"improvements_identified"`
	Suggestions            []Improvement `json:"suggestions"`
}
