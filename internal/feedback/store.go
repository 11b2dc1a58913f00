package feedback

import (
	"sort"
	"strings"

	"github.com/solvernet/mathrouter/internal/routing"
)

// stats holds the monotonic counters the analysis reports are computed
// from. All access goes through the aggregator's lock.
type stats struct {
	total              int
	ratings            [6]int
	routeTotal         map[routing.RouteDecision]int
	routeHelpful       map[routing.RouteDecision]int
	routeCorrect       map[routing.RouteDecision]int
	highSatisfaction   int
	lowSatisfaction    int
	clarityIssues      int
	completenessIssues int
}

func newStats() *stats {
	return &stats{
		routeTotal:   make(map[routing.RouteDecision]int),
		routeHelpful: make(map[routing.RouteDecision]int),
		routeCorrect: make(map[routing.RouteDecision]int),
	}
}

// record folds one entry into the counters. A rating of 3 counts as
// neither high nor low satisfaction.
func (s *stats) record(e *Entry) {
	s.total++
	if e.Ratings.Rating >= 1 && e.Ratings.Rating <= 5 {
		s.ratings[e.Ratings.Rating]++
	}

	route := e.Response.RouteUsed
	s.routeTotal[route]++
	if e.Ratings.Helpful {
		s.routeHelpful[route]++
	}
	if e.Ratings.Correct {
		s.routeCorrect[route]++
	}

	switch {
	case e.Ratings.Rating >= 4:
		s.highSatisfaction++
	case e.Ratings.Rating <= 2:
		s.lowSatisfaction++
	}

	if !e.Ratings.Clear {
		s.clarityIssues++
	}
	if !e.Ratings.Complete {
		s.completenessIssues++
	}
}

// averageRating computes the mean over the five rating buckets. Ratings
// outside 1..5 are not bucketed and do not contribute.
func (s *stats) averageRating() float64 {
	sum, count := 0, 0
	for r := 1; r <= 5; r++ {
		sum += r * s.ratings[r]
		count += s.ratings[r]
	}
	if count == 0 {
		return 0.0
	}
	return float64(sum) / float64(count)
}

// Total reports how many feedback submissions have been recorded,
// including entries that have since aged out of the in-memory window.
func (a *Aggregator) Total() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stats.total
}

// GetByID returns the feedback entry with the given id.
func (a *Aggregator) GetByID(id string) (Entry, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	e, ok := a.byID[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// GetByQuery returns entries whose query contains the given text,
// compared case-insensitively, most recent first. A limit of 0 or less
// means 10.
func (a *Aggregator) GetByQuery(query string, limit int) []Entry {
	if limit <= 0 {
		limit = 10
	}
	needle := strings.ToLower(query)

	a.mu.RLock()
	var matches []Entry
	for _, e := range a.entries {
		if strings.Contains(strings.ToLower(e.Query), needle) {
			matches = append(matches, *e)
		}
	}
	a.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Timestamp.After(matches[j].Timestamp)
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
