// Copyright 2026 The mathrouter Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package engine assembles the routing pipeline behind one facade: scoring,
// route selection, the per-route collaborators, history, feedback, and the
// event hooks. Every public operation returns a well-formed result; no
// collaborator failure escapes as an error to the caller.
package engine

import (
	"context"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/solvernet/mathrouter/internal/config"
	"github.com/solvernet/mathrouter/internal/embedding"
	"github.com/solvernet/mathrouter/internal/feedback"
	"github.com/solvernet/mathrouter/internal/hooks"
	"github.com/solvernet/mathrouter/internal/knowledge"
	"github.com/solvernet/mathrouter/internal/ledger"
	"github.com/solvernet/mathrouter/internal/routing"
	"github.com/solvernet/mathrouter/internal/websearch"
)

// KnowledgeSource is the engine's view of the curated corpus.
type KnowledgeSource interface {
	Search(query string, topK int) []knowledge.SearchResult
	Len() int
	Stats() knowledge.StoreStats
}

// WebSource is the engine's view of live web search.
type WebSource interface {
	Search(ctx context.Context, query string, maxResults int) ([]routing.WebResult, error)
	Close()
}

// Engine routes math questions to the collaborator most likely to answer
// them well and owns the lifecycle of everything it wires together.
type Engine struct {
	cfg *config.Config

	policies *routing.PolicyStore
	selector *routing.Selector

	kb       KnowledgeSource
	web      WebSource
	ledger   *ledger.Ledger
	feedback *feedback.Aggregator

	bus      *hooks.EventBus
	hooksMgr *hooks.Manager

	closers []io.Closer
}

// Option overrides one collaborator during construction.
type Option func(*Engine)

// WithKnowledge sets a custom knowledge source.
func WithKnowledge(kb KnowledgeSource) Option {
	return func(e *Engine) {
		e.kb = kb
	}
}

// WithWebSearch sets a custom web-search source.
func WithWebSearch(ws WebSource) Option {
	return func(e *Engine) {
		e.web = ws
	}
}

// WithLedger sets a custom routing ledger.
func WithLedger(l *ledger.Ledger) Option {
	return func(e *Engine) {
		e.ledger = l
	}
}

// WithFeedback sets a custom feedback aggregator.
func WithFeedback(f *feedback.Aggregator) Option {
	return func(e *Engine) {
		e.feedback = f
	}
}

// WithEventBus sets a custom hook event bus.
func WithEventBus(bus *hooks.EventBus) Option {
	return func(e *Engine) {
		e.bus = bus
	}
}

// WithHookManager sets a custom hook manager.
func WithHookManager(m *hooks.Manager) Option {
	return func(e *Engine) {
		e.hooksMgr = m
	}
}

// New creates an engine from the configuration. Components not provided via
// options are built from their config sections; optional infrastructure
// (vector search, durable trail, feedback archive, hooks) degrades with a
// warning instead of failing construction. The engine owns every component
// it builds and releases them in Close.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	e := &Engine{cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}

	policies, err := routing.NewPolicyStore(cfg.Routing.PolicyFile, cfg.Routing.PolicyFile != "")
	if err != nil {
		return nil, fmt.Errorf("failed to load routing policy: %w", err)
	}
	e.policies = policies

	if e.kb == nil {
		store, err := e.buildKnowledge(ctx)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.kb = store
	}

	if e.web == nil {
		e.web = websearch.New(&cfg.WebSearch)
	}

	if e.ledger == nil {
		e.ledger = ledger.New(cfg.Ledger.MaxEntries, e.buildTrail())
	}

	if e.feedback == nil {
		agg, err := e.buildFeedback(ctx)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.feedback = agg
	}

	if e.bus == nil && cfg.Hooks.Enabled {
		e.buildHooks()
	}

	var source routing.CandidateSource
	if e.kb != nil {
		source = candidateSource{e.kb}
	}
	e.selector = routing.NewSelector(&cfg.Routing, routing.NewScorer(policies), source, e.ledger)

	return e, nil
}

// buildKnowledge opens the corpus store, optionally synced from git and
// backed by a vector index when an embedding model is available.
func (e *Engine) buildKnowledge(ctx context.Context) (*knowledge.Store, error) {
	corpusPath := e.cfg.KnowledgePath()
	if e.cfg.Knowledge.Git.Enabled {
		path, err := knowledge.SyncFromGit(ctx, &e.cfg.Knowledge.Git)
		if err != nil {
			return nil, fmt.Errorf("failed to sync knowledge corpus: %w", err)
		}
		corpusPath = path
	}

	var embedder knowledge.Embedder
	if e.cfg.Knowledge.Embedding.Enabled {
		emb := embedding.NewEngine(&e.cfg.Knowledge.Embedding)
		if err := emb.Initialize(); err != nil {
			log.Warnf("Embedding engine unavailable, using keyword search only: %v", err)
		} else {
			embedder = emb
			e.closers = append(e.closers, emb)
		}
	}

	return knowledge.Open(corpusPath, e.cfg.Knowledge.ReadOnly, embedder)
}

// buildTrail sets up the durable decision trail. Trail problems never block
// startup; history degrades to memory-only.
func (e *Engine) buildTrail() *ledger.Trail {
	if !e.cfg.Ledger.TrailEnabled {
		return nil
	}

	var archiver *ledger.Archiver
	if e.cfg.Ledger.Archive.Enabled {
		a, err := ledger.NewArchiver(&e.cfg.Ledger.Archive)
		if err != nil {
			log.Warnf("Trail archiver unavailable: %v", err)
		} else {
			archiver = a
		}
	}

	trail, err := ledger.NewTrail(e.cfg.TrailPath(), e.cfg.Ledger.SegmentMaxSizeMB, archiver)
	if err != nil {
		log.Warnf("Routing trail unavailable, history is memory-only: %v", err)
		return nil
	}
	return trail
}

// buildFeedback constructs the aggregator with a best-effort archive: an
// unreachable database downgrades feedback to memory-only.
func (e *Engine) buildFeedback(ctx context.Context) (*feedback.Aggregator, error) {
	var archive *feedback.Archive
	if driver := e.cfg.Feedback.Driver; driver != "" && driver != "none" {
		a, err := feedback.OpenArchive(ctx, driver, e.cfg.FeedbackDSN())
		if err != nil {
			log.Warnf("Feedback archive unavailable, keeping feedback in memory: %v", err)
		} else {
			archive = a
		}
	}
	return feedback.New(ctx, e.cfg, archive)
}

// buildHooks wires the event bus and hook manager, including the definition
// directory watcher. Hook problems never block startup.
func (e *Engine) buildHooks() {
	bus := hooks.NewEventBus()
	mgr, err := hooks.NewManager(e.cfg.HooksDir(), bus)
	if err != nil {
		log.Warnf("Hooks unavailable: %v", err)
		bus.Shutdown()
		return
	}
	if err := mgr.LoadHooks(); err != nil {
		log.Warnf("Failed to load hooks: %v", err)
	}
	mgr.SubscribeToAllEvents()
	if err := mgr.StartWatcher(); err != nil {
		log.Warnf("Hook hot reload unavailable: %v", err)
	}
	e.bus = bus
	e.hooksMgr = mgr
}

// candidateSource adapts the knowledge store to the selector's retrieval
// contract.
type candidateSource struct {
	kb KnowledgeSource
}

func (s candidateSource) Search(ctx context.Context, query string, topK int) ([]routing.Candidate, error) {
	results := s.kb.Search(query, topK)
	candidates := make([]routing.Candidate, 0, len(results))
	for _, r := range results {
		candidates = append(candidates, r.Candidate())
	}
	return candidates, nil
}

// SubmitFeedback records a user assessment of a previous response and
// reports the improvement suggestions it produced.
func (e *Engine) SubmitFeedback(ctx context.Context, query string, resp *routing.Envelope, r feedback.Ratings) feedback.CollectResult {
	result := e.feedback.Collect(ctx, query, resp, r)

	if e.bus != nil {
		route := ""
		if resp != nil {
			route = string(resp.RouteUsed)
		}
		e.bus.PublishAsync(&hooks.EventContext{
			Event: hooks.EventFeedbackReceived,
			Query: query,
			Route: route,
			Data: map[string]any{
				"feedback_id":  result.FeedbackID,
				"rating":       r.Rating,
				"helpful":      r.Helpful,
				"improvements": result.ImprovementsIdentified,
			},
		})
	}
	return result
}

// FeedbackAnalysis reports the aggregate feedback picture.
func (e *Engine) FeedbackAnalysis() feedback.Analysis {
	return e.feedback.Analysis()
}

// SatisfactionMetrics reports rating distribution and quality rates.
func (e *Engine) SatisfactionMetrics() feedback.SatisfactionMetrics {
	return e.feedback.SatisfactionMetrics()
}

// ApplyImprovements reports the top prioritized improvements.
func (e *Engine) ApplyImprovements() feedback.ApplyResult {
	return e.feedback.ApplyImprovements()
}

// KnowledgeUpdates extracts candidate corpus updates from feedback.
func (e *Engine) KnowledgeUpdates() feedback.KnowledgeUpdates {
	return e.feedback.KnowledgeUpdates()
}

// RoutingStats reports the retained decision history aggregates.
func (e *Engine) RoutingStats() *ledger.Stats {
	if e.ledger == nil {
		return &ledger.Stats{}
	}
	return e.ledger.Stats()
}

// Close releases every component the engine owns. Safe on a partially
// constructed engine.
func (e *Engine) Close() error {
	var firstErr error

	if e.hooksMgr != nil {
		e.hooksMgr.StopWatcher()
	}
	if e.bus != nil {
		e.bus.Shutdown()
	}
	if e.web != nil {
		e.web.Close()
	}
	if e.feedback != nil {
		if err := e.feedback.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.ledger != nil {
		if err := e.ledger.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.policies != nil {
		if err := e.policies.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, c := range e.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
