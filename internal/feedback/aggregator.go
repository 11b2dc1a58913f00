// Copyright 2026 The mathrouter Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package feedback ingests user assessments of answers, maintains
// satisfaction statistics, and derives prioritized improvement suggestions
// from a rule table. The in-memory store is authoritative; the SQL archive
// adds best-effort durability across restarts, and an archive failure
// never fails the request that triggered it.
package feedback

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/solvernet/mathrouter/internal/config"
	"github.com/solvernet/mathrouter/internal/routing"
	"github.com/solvernet/mathrouter/internal/util"
)

// maxRetainedEntries bounds the in-memory entry window. Older entries stay
// reachable through the archive only.
const maxRetainedEntries = 10000

// Aggregator is the feedback store and analysis engine. It is safe for
// concurrent use; a single lock serializes every mutation so two
// simultaneous submissions can never mint the same id or drop a counter
// update.
type Aggregator struct {
	mu          sync.RWMutex
	entries     []*Entry
	byID        map[string]*Entry
	suggestions []Improvement
	stats       *stats
	seq         int

	maxSuggestions int
	retentionDays  int
	rules          *RuleSet
	archive        *Archive
}

// New creates an aggregator from configuration. If archive is non-nil, it
// is pruned per the retention policy and its most recent entries are
// replayed into the in-memory store; the aggregator then owns the archive
// and closes it on Close.
func New(ctx context.Context, cfg *config.Config, archive *Archive) (*Aggregator, error) {
	rules, err := NewRuleSet(cfg.Feedback.Rules)
	if err != nil {
		return nil, err
	}

	a := &Aggregator{
		byID:           make(map[string]*Entry),
		stats:          newStats(),
		maxSuggestions: cfg.Feedback.MaxSuggestions,
		retentionDays:  cfg.Feedback.RetentionDays,
		rules:          rules,
		archive:        archive,
	}
	if archive != nil {
		a.pruneArchive(ctx)
		a.loadArchive(ctx)
	}
	return a, nil
}

// Collect records one feedback submission: snapshot the rated response,
// update the counters, and evaluate the improvement rules. It always
// returns a well-formed result; archive trouble is logged, not surfaced.
func (a *Aggregator) Collect(ctx context.Context, query string, resp *routing.Envelope, r Ratings) CollectResult {
	e := &Entry{
		Timestamp: time.Now(),
		Query:     query,
		QueryHash: util.Fingerprint(query),
		Ratings:   r,
	}
	if resp != nil {
		e.Response = Response{
			Solution:   resp.Solution,
			Steps:      resp.Steps,
			RouteUsed:  resp.RouteUsed,
			Confidence: resp.Confidence,
		}
		if resp.Metadata != nil && len(resp.Metadata.ConfidenceScores) > 0 {
			e.Scores = make(map[string]float64, len(resp.Metadata.ConfidenceScores))
			for k, v := range resp.Metadata.ConfidenceScores {
				e.Scores[k] = v
			}
		}
	}

	a.mu.Lock()
	a.seq++
	e.ID = fmt.Sprintf("feedback_%s_%04d", e.Timestamp.Format("20060102_150405"), a.seq)

	a.entries = append(a.entries, e)
	a.byID[e.ID] = e
	if len(a.entries) > maxRetainedEntries {
		delete(a.byID, a.entries[0].ID)
		copy(a.entries, a.entries[1:])
		a.entries = a.entries[:len(a.entries)-1]
	}

	a.stats.record(e)
	improvements := a.rules.Evaluate(e)
	a.suggestions = append(a.suggestions, improvements...)
	a.trimSuggestionsLocked()
	a.mu.Unlock()

	if a.archive != nil {
		if err := a.archive.Insert(ctx, e); err != nil {
			log.Warnf("Failed to archive feedback %s: %v", e.ID, err)
		}
	}

	return CollectResult{
		FeedbackID:             e.ID,
		Status:                 StatusCollected,
		ImprovementsIdentified: len(improvements),
		Suggestions:            improvements,
	}
}

// trimSuggestionsLocked drops the oldest suggestions once the configured
// bound is exceeded.
func (a *Aggregator) trimSuggestionsLocked() {
	if a.maxSuggestions <= 0 || len(a.suggestions) <= a.maxSuggestions {
		return
	}
	drop := len(a.suggestions) - a.maxSuggestions
	copy(a.suggestions, a.suggestions[drop:])
	a.suggestions = a.suggestions[:a.maxSuggestions]
}

// loadArchive replays archived entries into the in-memory store. Counters
// and suggestions are rebuilt from the entries themselves, and the id
// sequence resumes past the loaded set.
func (a *Aggregator) loadArchive(ctx context.Context) {
	entries, err := a.archive.LoadRecent(ctx, maxRetainedEntries)
	if err != nil {
		log.Warnf("Failed to load feedback archive: %v", err)
		return
	}
	for _, e := range entries {
		a.entries = append(a.entries, e)
		a.byID[e.ID] = e
		a.stats.record(e)
		a.suggestions = append(a.suggestions, a.rules.Evaluate(e)...)
	}
	a.seq = len(a.entries)
	a.trimSuggestionsLocked()
	if len(entries) > 0 {
		log.Infof("Loaded %d feedback entries from archive", len(entries))
	}
}

// pruneArchive enforces the retention policy before replay so expired
// entries never re-enter the in-memory store.
func (a *Aggregator) pruneArchive(ctx context.Context) {
	if a.retentionDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -a.retentionDays)
	pruned, err := a.archive.Prune(ctx, cutoff)
	if err != nil {
		log.Warnf("Failed to prune feedback archive: %v", err)
		return
	}
	if pruned > 0 {
		log.Infof("Pruned %d feedback entries older than %d days", pruned, a.retentionDays)
	}
}

// Close releases the archive, running a final retention pass first.
func (a *Aggregator) Close() error {
	if a.archive == nil {
		return nil
	}
	a.pruneArchive(context.Background())
	return a.archive.Close()
}
