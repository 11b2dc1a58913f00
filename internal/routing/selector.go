// Copyright 2026 The mathrouter Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package routing

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/solvernet/mathrouter/internal/config"
)

// CandidateSource retrieves knowledge-base candidates for scoring. An empty
// result is not an error; implementations return an error only for true
// infrastructure failure.
type CandidateSource interface {
	Search(ctx context.Context, query string, topK int) ([]Candidate, error)
}

// Recorder receives one history entry per completed routing decision.
// Implementations must snapshot the metadata they keep; the selector may
// not be the last writer of the map it passes.
type Recorder interface {
	Record(query string, route RouteDecision, meta *Metadata)
}

// Selector turns confidence scores into a routing decision. It holds no
// state between calls other than its thresholds; the only side effect of a
// decision is one Recorder append.
type Selector struct {
	scorer   *Scorer
	source   CandidateSource
	recorder Recorder

	kbThreshold float64
	webGate     float64
	hybridFloor float64
	topK        int
}

// NewSelector builds a selector. source may be nil, in which case every
// query scores zero knowledge-base confidence. recorder may be nil to
// disable history recording.
func NewSelector(cfg *config.RoutingConfig, scorer *Scorer, source CandidateSource, recorder Recorder) *Selector {
	return &Selector{
		scorer:      scorer,
		source:      source,
		recorder:    recorder,
		kbThreshold: cfg.KBConfidenceThreshold,
		webGate:     cfg.WebSearchGate,
		hybridFloor: cfg.HybridKBFloor,
		topK:        cfg.TopK,
	}
}

// Decide picks the route for a query. The returned candidates are the
// knowledge-base hits the decision was scored against, so callers answering
// from the knowledge base do not have to search twice.
//
// Decide never fails: retrieval errors and scoring panics degrade to the
// fallback route with the cause recorded in the reasoning field. callerMeta
// is accepted for forward compatibility and does not influence scoring.
func (s *Selector) Decide(ctx context.Context, query string, callerMeta map[string]string) (route RouteDecision, meta *Metadata, candidates []Candidate) {
	_ = callerMeta

	meta = &Metadata{
		Query:            query,
		ConfidenceScores: make(map[string]float64),
	}

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Error in routing decision: %v", r)
			route, candidates = s.failDecision(meta, fmt.Sprintf("%v", r)), nil
		}
	}()

	var err error
	if s.source != nil {
		candidates, err = s.source.Search(ctx, query, s.topK)
		if err != nil {
			log.Errorf("Error in routing decision: %v", err)
			return s.failDecision(meta, err.Error()), meta, nil
		}
	}

	kbConf := s.scorer.KnowledgeBase(query, candidates)
	meta.ConfidenceScores["knowledge_base"] = kbConf

	if kbConf >= s.kbThreshold {
		meta.Reasoning = fmt.Sprintf("High confidence match in knowledge base (score: %.3f)", kbConf)
		route = RouteKnowledgeBase
	} else {
		webNeed := s.scorer.WebSearchNeed(query)
		meta.ConfidenceScores["web_search"] = webNeed

		switch {
		case webNeed >= s.webGate && kbConf > s.hybridFloor:
			meta.Reasoning = "Using hybrid approach - combining KB and web search"
			route = RouteHybrid
		case webNeed >= s.webGate:
			meta.Reasoning = fmt.Sprintf("Using web search due to low KB confidence (%.3f)", kbConf)
			route = RouteWebSearch
		default:
			meta.Reasoning = "Using fallback to math solver"
			meta.FallbackUsed = true
			route = RouteFallback
		}
	}

	meta.RouteUsed = route
	log.Debugf("Routing decision: %s (%s)", route, meta.Reasoning)

	if s.recorder != nil {
		s.recorder.Record(query, route, meta)
	}
	return route, meta, candidates
}

// failDecision rewrites meta for the error-fallback outcome. The decision is
// deliberately not recorded: a failed scoring pass says nothing useful about
// route quality.
func (s *Selector) failDecision(meta *Metadata, cause string) RouteDecision {
	meta.Reasoning = "Error occurred, using fallback: " + cause
	meta.FallbackUsed = true
	meta.RouteUsed = RouteFallback
	return RouteFallback
}
