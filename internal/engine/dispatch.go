// Copyright 2026 The mathrouter Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/solvernet/mathrouter/internal/hooks"
	"github.com/solvernet/mathrouter/internal/routing"
	"github.com/solvernet/mathrouter/internal/solver"
)

// lowConfidenceAlertThreshold triggers the low_confidence hook event.
const lowConfidenceAlertThreshold = 0.4

// webSourcesCited caps how many web results a response cites.
const webSourcesCited = 3

// ProcessQuery routes one question to the best collaborator and returns
// its answer. callerMeta is optional caller context forwarded to the
// selector. The envelope is always well formed: dispatch failures come
// back as an error-route envelope, never as a Go error or a panic.
func (e *Engine) ProcessQuery(ctx context.Context, query string, callerMeta map[string]string) (resp *routing.Envelope) {
	reqLog := log.WithField("request_id", requestID(ctx))
	defer func() {
		if r := recover(); r != nil {
			reqLog.Errorf("Error processing query: %v", r)
			resp = errorEnvelope(query, r)
			e.publishEvents(resp, nil)
		}
	}()

	route, meta, candidates := e.selector.Decide(ctx, query, callerMeta)
	reqLog.Infof("Query routed to: %s", route)

	var result *routing.Result
	switch route {
	case routing.RouteKnowledgeBase:
		result = e.answerFromKnowledge(query, candidates)
	case routing.RouteWebSearch:
		result = e.answerFromWeb(ctx, query)
	case routing.RouteHybrid:
		result = e.answerHybrid(ctx, query, candidates)
	default:
		result = e.answerFallback(query)
	}

	resp = &routing.Envelope{
		Query:      query,
		RouteUsed:  route,
		Metadata:   meta,
		Solution:   result.Solution,
		Steps:      result.Steps,
		Sources:    result.Sources,
		Confidence: result.Confidence,
		Error:      result.Err,
	}
	e.publishEvents(resp, meta)
	return resp
}

// answerFromKnowledge builds a solution from the selector's lookup hits.
// The hits are reused as-is; the corpus is not searched a second time.
func (e *Engine) answerFromKnowledge(query string, candidates []routing.Candidate) (res *routing.Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Knowledge base handler failed: %v", r)
			res = &routing.Result{
				Solution: fmt.Sprintf("Error accessing knowledge base: %v", r),
				Steps:    []string{},
				Sources:  []routing.Source{},
				Err:      fmt.Sprintf("%v", r),
			}
		}
	}()

	if len(candidates) == 0 {
		return &routing.Result{
			Solution: "No relevant information found in knowledge base.",
			Steps:    []string{},
			Sources:  []routing.Source{},
		}
	}

	best := candidates[0]
	sol := solver.FromKnowledge(&best, query)
	return &routing.Result{
		Solution: sol.Text,
		Steps:    sol.Steps,
		Sources: []routing.Source{
			{Type: routing.SourceKnowledgeBase, Content: &best},
		},
		// The lookup relevance, not the solver's own estimate, is what the
		// routing decision was based on.
		Confidence: best.RelevanceScore,
	}
}

// answerFromWeb searches the live web and synthesizes a solution from the
// results.
func (e *Engine) answerFromWeb(ctx context.Context, query string) *routing.Result {
	results, err := e.searchWeb(ctx, query)
	if err != nil {
		log.Errorf("Web search failed: %v", err)
		return &routing.Result{
			Solution: "Error during web search: " + err.Error(),
			Steps:    []string{},
			Sources:  []routing.Source{},
			Err:      err.Error(),
		}
	}
	if len(results) == 0 {
		return &routing.Result{
			Solution: "No relevant information found through web search.",
			Steps:    []string{},
			Sources:  []routing.Source{},
		}
	}

	sol := solver.FromWebResults(results, query)
	cited := results
	if len(cited) > webSourcesCited {
		cited = cited[:webSourcesCited]
	}
	return &routing.Result{
		Solution: sol.Text,
		Steps:    sol.Steps,
		Sources: []routing.Source{
			{Type: routing.SourceWebSearch, Results: cited},
		},
		Confidence: sol.Confidence,
	}
}

func (e *Engine) searchWeb(ctx context.Context, query string) ([]routing.WebResult, error) {
	if e.web == nil {
		return nil, nil
	}
	return e.web.Search(ctx, query, e.cfg.WebSearch.MaxResults)
}

// answerHybrid consults the knowledge base and the web and merges both
// answers into one response.
func (e *Engine) answerHybrid(ctx context.Context, query string, candidates []routing.Candidate) *routing.Result {
	kb := e.answerFromKnowledge(query, candidates)
	web := e.answerFromWeb(ctx, query)
	return routing.Combine(kb, web)
}

// answerFallback asks the direct solver for methodological guidance when
// neither lookup route applies.
func (e *Engine) answerFallback(query string) (res *routing.Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Fallback solver failed: %v", r)
			res = &routing.Result{
				Solution: "I'm having trouble solving this problem. Could you please rephrase your question or provide more context?",
				Steps:    []string{"Unable to process the query with available methods"},
				Sources:  []routing.Source{},
			}
		}
	}()

	sol := solver.Direct(query)
	return &routing.Result{
		Solution: sol.Text,
		Steps:    sol.Steps,
		Sources: []routing.Source{
			{Type: routing.SourceDirectSolver, Method: "mathematical_analysis"},
		},
		Confidence: sol.Confidence,
	}
}

// requestID extracts the caller's request id from ctx, minting one when
// the caller did not supply any.
func requestID(ctx context.Context) string {
	if id, ok := ctx.Value("request_id").(string); ok && id != "" {
		return id
	}
	return uuid.New().String()
}

// errorEnvelope is the catastrophic-failure response. The error route is
// never recorded in the decision ledger.
func errorEnvelope(query string, cause any) *routing.Envelope {
	return &routing.Envelope{
		Query:     query,
		RouteUsed: routing.RouteError,
		Metadata: &routing.Metadata{
			Query:            query,
			ConfidenceScores: map[string]float64{},
			RouteUsed:        routing.RouteError,
		},
		Solution: "An error occurred while processing your query.",
		Steps:    []string{},
		Sources:  []routing.Source{},
		Error:    fmt.Sprintf("%v", cause),
	}
}

// publishEvents raises the hook events a finished envelope warrants. Each
// event carries its own data map so hook actions can never share state.
func (e *Engine) publishEvents(resp *routing.Envelope, meta *routing.Metadata) {
	if e.bus == nil {
		return
	}

	if resp.RouteUsed != routing.RouteError {
		e.bus.PublishAsync(&hooks.EventContext{
			Event:      hooks.EventDecisionMade,
			Query:      resp.Query,
			Route:      string(resp.RouteUsed),
			Confidence: resp.Confidence,
			Data:       decisionData(meta),
		})
	}

	if resp.RouteUsed == routing.RouteFallback || (meta != nil && meta.FallbackUsed) {
		e.bus.PublishAsync(&hooks.EventContext{
			Event:      hooks.EventFallbackUsed,
			Query:      resp.Query,
			Route:      string(resp.RouteUsed),
			Confidence: resp.Confidence,
			Data:       decisionData(meta),
		})
	}

	if resp.Confidence < lowConfidenceAlertThreshold {
		e.bus.PublishAsync(&hooks.EventContext{
			Event:        hooks.EventLowConfidence,
			Query:        resp.Query,
			Route:        string(resp.RouteUsed),
			Confidence:   resp.Confidence,
			ErrorMessage: resp.Error,
			Data:         decisionData(meta),
		})
	}
}

func decisionData(meta *routing.Metadata) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	scores := make(map[string]float64, len(meta.ConfidenceScores))
	for route, score := range meta.ConfidenceScores {
		scores[route] = score
	}
	return map[string]any{
		"reasoning":     meta.Reasoning,
		"fallback_used": meta.FallbackUsed,
		"scores":        scores,
	}
}
