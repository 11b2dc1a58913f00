// Copyright 2026 The mathrouter Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ledger records routing decisions and answers aggregate questions
// about them. The in-memory view is a bounded ring so a long-lived process
// cannot grow without limit; durability is delegated to an optional JSONL
// trail that is replayed into the ring on startup.
package ledger

import (
	"sync"
	"time"

	"github.com/solvernet/mathrouter/internal/routing"
	"github.com/solvernet/mathrouter/internal/util"
)

// queryExcerptLen bounds the query text kept per entry. The full query is
// still correlatable through the fingerprint.
const queryExcerptLen = 100

// DefaultMaxEntries is the ring capacity used when the configuration does
// not specify one.
const DefaultMaxEntries = 10000

// Entry is one recorded routing decision.
type Entry struct {
	Timestamp  time.Time          `json:"timestamp"`
	Query      string             `json:"query"`
	QueryHash  string             `json:"query_hash"`
	Route      string             `json:"route"`
	Confidence map[string]float64 `json:"confidence"`
	Reasoning  string             `json:"reasoning"`
}

// Stats aggregates the retained history. A store with no entries reports
// only the zero total, matching the empty-state sentinel callers test for.
type Stats struct {
	TotalQueries             int                `json:"total_queries"`
	RouteDistribution        map[string]int     `json:"route_distribution,omitempty"`
	AverageConfidenceByRoute map[string]float64 `json:"average_confidence_by_route,omitempty"`
	RecentQueries            []Entry            `json:"recent_queries,omitempty"`
}

// Ledger is a fixed-capacity ring of routing decisions, safe for concurrent
// use. It implements routing.Recorder.
type Ledger struct {
	mu      sync.RWMutex
	entries []Entry
	head    int
	full    bool

	trail *Trail
}

// New creates a ledger with the given ring capacity (0 means
// DefaultMaxEntries). If trail is non-nil, every recorded entry is also
// appended to it and the most recent trail entries are replayed into the
// ring so history survives process restarts.
func New(maxEntries int, trail *Trail) *Ledger {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	l := &Ledger{
		entries: make([]Entry, maxEntries),
		trail:   trail,
	}
	if trail != nil {
		for _, e := range trail.ReadRecent(maxEntries) {
			l.append(e)
		}
	}
	return l
}

// Record implements routing.Recorder. The stored entry carries a bounded
// query excerpt and its own copy of the confidence map, so later metadata
// mutations cannot alter history.
func (l *Ledger) Record(query string, route routing.RouteDecision, meta *routing.Metadata) {
	scores := make(map[string]float64, len(meta.ConfidenceScores))
	for k, v := range meta.ConfidenceScores {
		scores[k] = v
	}

	e := Entry{
		Timestamp:  time.Now().UTC(),
		Query:      excerpt(query, queryExcerptLen),
		QueryHash:  util.Fingerprint(query),
		Route:      string(route),
		Confidence: scores,
		Reasoning:  meta.Reasoning,
	}

	l.mu.Lock()
	l.append(e)
	l.mu.Unlock()

	if l.trail != nil {
		l.trail.Append(e)
	}
}

// append assumes l.mu is held (or the ledger is not yet shared).
func (l *Ledger) append(e Entry) {
	l.entries[l.head] = e
	l.head++
	if l.head == len(l.entries) {
		l.head = 0
		l.full = true
	}
}

// Len returns the number of retained entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size()
}

func (l *Ledger) size() int {
	if l.full {
		return len(l.entries)
	}
	return l.head
}

// at returns the i-th retained entry in chronological order. Assumes l.mu
// is held and 0 <= i < size().
func (l *Ledger) at(i int) Entry {
	if l.full {
		return l.entries[(l.head+i)%len(l.entries)]
	}
	return l.entries[i]
}

// Recent returns up to n retained entries, oldest first.
func (l *Ledger) Recent(n int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	size := l.size()
	if n > size {
		n = size
	}
	out := make([]Entry, 0, n)
	for i := size - n; i < size; i++ {
		out = append(out, l.at(i))
	}
	return out
}

// Stats computes the aggregate view over the retained entries: total count,
// per-route distribution, average primary confidence per route, and the
// five most recent entries. The primary confidence of an entry is its
// knowledge-base score, which every decision carries.
func (l *Ledger) Stats() *Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	size := l.size()
	if size == 0 {
		return &Stats{}
	}

	dist := make(map[string]int)
	sums := make(map[string]float64)
	counts := make(map[string]int)

	for i := 0; i < size; i++ {
		e := l.at(i)
		dist[e.Route]++
		if primary, ok := e.Confidence["knowledge_base"]; ok {
			sums[e.Route] += primary
			counts[e.Route]++
		}
	}

	avg := make(map[string]float64, len(dist))
	for route := range dist {
		if counts[route] > 0 {
			avg[route] = sums[route] / float64(counts[route])
		} else {
			avg[route] = 0.0
		}
	}

	recent := 5
	if recent > size {
		recent = size
	}
	recentEntries := make([]Entry, 0, recent)
	for i := size - recent; i < size; i++ {
		recentEntries = append(recentEntries, l.at(i))
	}

	return &Stats{
		TotalQueries:             size,
		RouteDistribution:        dist,
		AverageConfidenceByRoute: avg,
		RecentQueries:            recentEntries,
	}
}

// Close flushes and closes the backing trail, if any.
func (l *Ledger) Close() error {
	if l.trail != nil {
		return l.trail.Close()
	}
	return nil
}

func excerpt(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
