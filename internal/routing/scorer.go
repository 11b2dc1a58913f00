// Copyright 2026 The mathrouter Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package routing

import (
	"math"
	"strings"
)

// ScoreKnowledgeBase estimates how well the knowledge base can answer the
// query given the retrieval candidates. With no candidates the score is 0:
// keyword boosts never route a query toward an empty result set. Otherwise
// the best raw relevance score is boosted by topic-keyword hits and a single
// computational-intent hit, clamped to 1.0.
func (p *Policy) ScoreKnowledgeBase(query string, candidates []Candidate) float64 {
	if len(candidates) == 0 {
		return 0.0
	}

	best := candidates[0].RelevanceScore
	for _, c := range candidates[1:] {
		if c.RelevanceScore > best {
			best = c.RelevanceScore
		}
	}

	q := strings.ToLower(query)
	boost := 0.0
	for _, kw := range p.TopicKeywords {
		if strings.Contains(q, kw.Keyword) {
			boost += kw.Weight
		}
	}
	for _, w := range p.ComputeKeywords {
		if strings.Contains(q, w) {
			boost += p.ComputeBoost
			break
		}
	}

	return math.Min(best+boost, 1.0)
}

// ScoreWebSearchNeed estimates how much the query would benefit from a live
// web search. It is a deterministic lexical classifier: freshness and
// explanation keywords, advanced-topic names, query length, and an
// explanation-vs-computation baseline each contribute independently, and the
// sum is clamped to 1.0.
func (p *Policy) ScoreWebSearchNeed(query string) float64 {
	q := strings.ToLower(query)
	score := 0.0

	for _, kw := range p.WebIndicators {
		if strings.Contains(q, kw.Keyword) {
			score += kw.Weight
		}
	}
	for _, kw := range p.AdvancedTopics {
		if strings.Contains(q, kw.Keyword) {
			score += kw.Weight
		}
	}

	if len(strings.Fields(query)) > p.LongQueryTokens {
		score += p.LongQueryBoost
	}

	explain := false
	for _, phrase := range p.ExplainPhrases {
		if strings.Contains(q, phrase) {
			explain = true
			break
		}
	}
	if explain {
		score += p.ExplainBoost
	} else {
		score += p.ComputeBaseline
	}

	return math.Min(score, 1.0)
}

// Scorer evaluates confidence scores against the active policy. It is safe
// for concurrent use; each call reads the policy current at that moment.
type Scorer struct {
	policies *PolicyStore
}

// NewScorer returns a scorer bound to the given policy store.
func NewScorer(policies *PolicyStore) *Scorer {
	return &Scorer{policies: policies}
}

// KnowledgeBase scores the knowledge-base route for the query.
func (s *Scorer) KnowledgeBase(query string, candidates []Candidate) float64 {
	return s.policies.Current().ScoreKnowledgeBase(query, candidates)
}

// WebSearchNeed scores the web-search route for the query.
func (s *Scorer) WebSearchNeed(query string) float64 {
	return s.policies.Current().ScoreWebSearchNeed(query)
}
