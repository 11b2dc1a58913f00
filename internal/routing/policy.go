// Copyright 2026 The mathrouter Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package routing

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/goccy/go-yaml"
	log "github.com/sirupsen/logrus"
)

// WeightedKeyword pairs a lowercase keyword with the score contribution it
// adds when found in a query.
type WeightedKeyword struct {
	Keyword string
	Weight  float64
}

// Policy holds the keyword tables and weights that drive confidence scoring.
// It is an explicit, inspectable data table rather than logic baked into
// control flow, so individual weights can be tuned from a YAML file without
// code changes. Keyword matching is case-insensitive substring containment.
type Policy struct {
	// TopicKeywords each add their weight to the knowledge-base confidence
	// when present in the query.
	TopicKeywords []WeightedKeyword
	// ComputeKeywords add ComputeBoost once if any of them is present.
	ComputeKeywords []string
	ComputeBoost    float64

	// WebIndicators each add their weight to the web-search need score.
	// These mark freshness or explanation-seeking language.
	WebIndicators []WeightedKeyword
	// AdvancedTopics each add their weight to the web-search need score.
	// These name mathematicians and famous problems unlikely to be covered
	// by the curated knowledge base.
	AdvancedTopics []WeightedKeyword

	// LongQueryTokens is the whitespace-token count above which
	// LongQueryBoost is added.
	LongQueryTokens int
	LongQueryBoost  float64

	// ExplainPhrases mark explanation-seeking queries; any hit adds
	// ExplainBoost, otherwise ComputeBaseline is added so computational
	// queries keep a small residual web-search need.
	ExplainPhrases  []string
	ExplainBoost    float64
	ComputeBaseline float64
}

// DefaultPolicy returns the built-in scoring tables.
func DefaultPolicy() *Policy {
	return &Policy{
		TopicKeywords: []WeightedKeyword{
			{"derivative", 0.1},
			{"integral", 0.1},
			{"quadratic", 0.1},
			{"linear", 0.1},
			{"equation", 0.1},
			{"formula", 0.1},
		},
		ComputeKeywords: []string{"solve", "calculate", "find", "compute"},
		ComputeBoost:    0.1,
		WebIndicators: []WeightedKeyword{
			{"latest", 0.2},
			{"recent", 0.2},
			{"new", 0.2},
			{"current", 0.2},
			{"today", 0.2},
			{"2024", 0.2},
			{"2025", 0.2},
			{"research", 0.2},
			{"paper", 0.2},
			{"study", 0.2},
			{"theorem", 0.2},
			{"conjecture", 0.2},
			{"explain", 0.2},
			{"what is", 0.2},
			{"definition", 0.2},
			{"concept", 0.2},
		},
		AdvancedTopics: []WeightedKeyword{
			{"riemann", 0.3},
			{"fermat", 0.3},
			{"basel", 0.3},
			{"euler", 0.3},
			{"gauss", 0.3},
			{"newton", 0.3},
			{"hypothesis", 0.3},
			{"conjecture", 0.3},
			{"problem", 0.3},
			{"paradox", 0.3},
		},
		LongQueryTokens: 10,
		LongQueryBoost:  0.2,
		ExplainPhrases:  []string{"explain", "what is", "how does", "why"},
		ExplainBoost:    0.3,
		ComputeBaseline: 0.1,
	}
}

// policyFile is the on-disk YAML shape. Tables are maps so single weights
// can be overridden; a table present in the file replaces the corresponding
// default table wholesale.
type policyFile struct {
	Knowledge struct {
		TopicKeywords   map[string]float64 `yaml:"topic-keywords"`
		ComputeKeywords []string           `yaml:"compute-keywords"`
		ComputeBoost    *float64           `yaml:"compute-boost"`
	} `yaml:"knowledge"`
	WebSearch struct {
		Indicators      map[string]float64 `yaml:"indicators"`
		AdvancedTopics  map[string]float64 `yaml:"advanced-topics"`
		LongQueryTokens *int               `yaml:"long-query-tokens"`
		LongQueryBoost  *float64           `yaml:"long-query-boost"`
		ExplainPhrases  []string           `yaml:"explain-phrases"`
		ExplainBoost    *float64           `yaml:"explain-boost"`
		ComputeBaseline *float64           `yaml:"compute-baseline"`
	} `yaml:"web-search"`
}

// LoadPolicyFile reads a scoring policy from a YAML file and merges it over
// the defaults. Map-backed tables are normalized to sorted slices so score
// accumulation is deterministic across runs.
func LoadPolicyFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var pf policyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse policy file %s: %w", path, err)
	}

	p := DefaultPolicy()
	if pf.Knowledge.TopicKeywords != nil {
		p.TopicKeywords = sortedKeywords(pf.Knowledge.TopicKeywords)
	}
	if pf.Knowledge.ComputeKeywords != nil {
		p.ComputeKeywords = lowered(pf.Knowledge.ComputeKeywords)
	}
	if pf.Knowledge.ComputeBoost != nil {
		p.ComputeBoost = *pf.Knowledge.ComputeBoost
	}
	if pf.WebSearch.Indicators != nil {
		p.WebIndicators = sortedKeywords(pf.WebSearch.Indicators)
	}
	if pf.WebSearch.AdvancedTopics != nil {
		p.AdvancedTopics = sortedKeywords(pf.WebSearch.AdvancedTopics)
	}
	if pf.WebSearch.LongQueryTokens != nil {
		p.LongQueryTokens = *pf.WebSearch.LongQueryTokens
	}
	if pf.WebSearch.LongQueryBoost != nil {
		p.LongQueryBoost = *pf.WebSearch.LongQueryBoost
	}
	if pf.WebSearch.ExplainPhrases != nil {
		p.ExplainPhrases = lowered(pf.WebSearch.ExplainPhrases)
	}
	if pf.WebSearch.ExplainBoost != nil {
		p.ExplainBoost = *pf.WebSearch.ExplainBoost
	}
	if pf.WebSearch.ComputeBaseline != nil {
		p.ComputeBaseline = *pf.WebSearch.ComputeBaseline
	}
	return p, nil
}

func sortedKeywords(table map[string]float64) []WeightedKeyword {
	out := make([]WeightedKeyword, 0, len(table))
	for kw, w := range table {
		out = append(out, WeightedKeyword{Keyword: strings.ToLower(kw), Weight: w})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Keyword < out[j].Keyword })
	return out
}

func lowered(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = strings.ToLower(w)
	}
	return out
}

// PolicyStore owns the active scoring policy and optionally hot-reloads it
// when the backing YAML file changes. Readers always see a complete policy:
// a reload that fails to parse keeps the previous one.
type PolicyStore struct {
	path string

	mu      sync.RWMutex
	current *Policy

	watcher   *fsnotify.Watcher
	stopWatch chan struct{}
	closeOnce sync.Once
}

// NewPolicyStore builds a store from the given policy file. An empty path
// means the built-in defaults with no file backing. A configured path that
// does not exist yet also starts on defaults; with hotReload set, the file
// is picked up as soon as it appears.
func NewPolicyStore(path string, hotReload bool) (*PolicyStore, error) {
	ps := &PolicyStore{
		path:      path,
		current:   DefaultPolicy(),
		stopWatch: make(chan struct{}),
	}
	if path == "" {
		return ps, nil
	}

	if _, err := os.Stat(path); err == nil {
		p, err := LoadPolicyFile(path)
		if err != nil {
			return nil, err
		}
		ps.current = p
		log.Infof("Loaded routing policy from %s", path)
	} else {
		log.Warnf("Routing policy file %s not found, using built-in defaults", path)
	}

	if hotReload {
		if err := ps.watch(); err != nil {
			return nil, fmt.Errorf("failed to watch policy file: %w", err)
		}
	}
	return ps, nil
}

// Current returns the active policy. The returned value must be treated as
// read-only; a reload swaps the pointer rather than mutating in place.
func (ps *PolicyStore) Current() *Policy {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return ps.current
}

func (ps *PolicyStore) reload() {
	p, err := LoadPolicyFile(ps.path)
	if err != nil {
		log.Errorf("Failed to reload routing policy: %v", err)
		return
	}
	ps.mu.Lock()
	ps.current = p
	ps.mu.Unlock()
	log.Infof("Reloaded routing policy from %s", ps.path)
}

// watch monitors the parent directory of the policy file. Watching the
// directory instead of the file itself survives editors that rename on save.
func (ps *PolicyStore) watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(ps.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}
	ps.watcher = watcher

	target := filepath.Clean(ps.path)
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					log.Infof("Routing policy changed (%s), reloading...", event.Name)
					time.Sleep(100 * time.Millisecond)
					ps.reload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Errorf("Policy watcher error: %v", err)
			case <-ps.stopWatch:
				return
			}
		}
	}()
	return nil
}

// Close stops the file watcher if one is running.
func (ps *PolicyStore) Close() error {
	var err error
	ps.closeOnce.Do(func() {
		close(ps.stopWatch)
		if ps.watcher != nil {
			err = ps.watcher.Close()
		}
	})
	return err
}
