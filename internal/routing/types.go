// Copyright 2026 The mathrouter Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package routing implements the decision core of the engine: scoring how
// well the knowledge base and the open web can answer a query, picking one
// of four strategies, and merging answers when both sources are consulted.
// The scoring tables live in a Policy that can be tuned from a YAML file
// and hot-reloaded without touching the control flow.
package routing

// RouteDecision identifies the information-source strategy chosen for a
// query. A decision is immutable once made.
type RouteDecision string

const (
	// RouteKnowledgeBase answers from the curated document store alone.
	RouteKnowledgeBase RouteDecision = "knowledge_base"
	// RouteWebSearch answers from live web results alone.
	RouteWebSearch RouteDecision = "web_search"
	// RouteHybrid consults both sources and merges their answers.
	RouteHybrid RouteDecision = "hybrid"
	// RouteFallback answers via direct computation when neither source is
	// confidently applicable.
	RouteFallback RouteDecision = "fallback"
)

// RouteError is not a routing decision. It marks response envelopes whose
// dispatch failed entirely and is never recorded in the decision ledger.
const RouteError RouteDecision = "error"

// Valid reports whether d is one of the four real routing decisions.
func (d RouteDecision) Valid() bool {
	switch d {
	case RouteKnowledgeBase, RouteWebSearch, RouteHybrid, RouteFallback:
		return true
	}
	return false
}

// Metadata captures how a routing decision was reached. The confidence map
// always carries a "knowledge_base" entry; "web_search" is present only when
// the knowledge-base threshold was not met and the web-need score had to be
// computed.
type Metadata struct {
	Query            string             `json:"query"`
	ConfidenceScores map[string]float64 `json:"confidence_scores"`
	Reasoning        string             `json:"reasoning"`
	FallbackUsed     bool               `json:"fallback_used"`
	RouteUsed        RouteDecision      `json:"route_used"`
}

// Candidate is one knowledge-base lookup hit as seen by the scorer. The
// relevance score is the retrieval layer's raw score and is not required to
// stay within the unit interval.
type Candidate struct {
	ID             string            `json:"id,omitempty"`
	Content        string            `json:"content"`
	RelevanceScore float64           `json:"relevance_score"`
	Topic          string            `json:"topic,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// WebResult is one web-search lookup hit.
type WebResult struct {
	Title          string  `json:"title"`
	Snippet        string  `json:"snippet"`
	URL            string  `json:"url"`
	Source         string  `json:"source,omitempty"`
	RelevanceScore float64 `json:"relevance_score"`
	Content        string  `json:"content,omitempty"`
	HasContent     bool    `json:"has_content"`
}

// Source records the provenance of one part of an answer. Exactly one of
// Content, Results, or Method is populated depending on Type.
type Source struct {
	Type    string      `json:"type"`
	Content *Candidate  `json:"content,omitempty"`
	Results []WebResult `json:"results,omitempty"`
	Method  string      `json:"method,omitempty"`
}

// Provenance types carried in Source.Type.
const (
	SourceKnowledgeBase = "knowledge_base"
	SourceWebSearch     = "web_search"
	SourceDirectSolver  = "direct_solver"
)

// Result is one collaborator's answer to a query: the solution text, its
// ordered working steps, and the collaborator's own confidence in it.
type Result struct {
	Solution   string   `json:"solution"`
	Steps      []string `json:"steps"`
	Sources    []Source `json:"sources"`
	Confidence float64  `json:"confidence"`
	Err        string   `json:"error,omitempty"`
}

// Envelope is the complete response to one query. It is always well-formed:
// collaborator failures surface as a zero-confidence solution string and an
// Error value, never as a missing or partial envelope.
type Envelope struct {
	Query      string        `json:"query"`
	RouteUsed  RouteDecision `json:"route_used"`
	Metadata   *Metadata     `json:"routing_metadata"`
	Solution   string        `json:"solution"`
	Steps      []string      `json:"steps"`
	Sources    []Source      `json:"sources"`
	Confidence float64       `json:"confidence"`
	Error      string        `json:"error,omitempty"`
}
