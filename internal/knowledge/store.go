// Copyright 2026 The mathrouter Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package knowledge stores the curated mathematical corpus and retrieves
// candidate answers for a query. Retrieval prefers the vector index when an
// embedding model is loaded and falls back to weighted keyword matching
// otherwise, so the store keeps answering with or without a model on disk.
package knowledge

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/solvernet/mathrouter/internal/util"
)

var (
	ErrReadOnly        = errors.New("knowledge store is read-only")
	ErrInvalidDocument = errors.New("invalid document")
	ErrDuplicateID     = errors.New("duplicate document id")
	ErrNotFound        = errors.New("document not found")
)

// Keyword-search weights. A matched document keyword counts more than an
// incidental word overlap with the question/answer text.
const (
	keywordMatchWeight = 0.5
	textMatchWeight    = 0.2
)

// Store holds the corpus in memory and mirrors every mutation to the corpus
// file on disk. All methods are safe for concurrent use.
type Store struct {
	path     string
	readOnly bool

	mu     sync.RWMutex
	docs   []Document
	byID   map[string]int
	vector *vectorIndex
}

// Open loads the corpus at path, seeding the built-in corpus when the file
// does not exist yet. An empty path keeps the store purely in memory. The
// embedder may be nil; the store then serves keyword search only.
func Open(path string, readOnly bool, embedder Embedder) (*Store, error) {
	s := &Store{
		path:     path,
		readOnly: readOnly,
		byID:     make(map[string]int),
		vector:   newVectorIndex(embedder),
	}

	if path == "" {
		s.seed()
		s.rebuildVectorLocked()
		return s, nil
	}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Infof("Knowledge corpus %s not found, seeding built-in corpus", path)
		s.seed()
		if err := s.persistLocked(nil); err != nil {
			return nil, fmt.Errorf("failed to seed knowledge corpus: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read knowledge corpus: %w", err)
	default:
		var docs []Document
		if err := json.Unmarshal(raw, &docs); err != nil {
			// Keep the damaged file as .bak and start over with the seed
			// corpus rather than refusing to serve queries.
			log.Errorf("Knowledge corpus %s is corrupt, reseeding: %v", path, err)
			s.seed()
			if err := s.persistLocked(&util.SecureWriteOptions{CreateBackup: true}); err != nil {
				return nil, fmt.Errorf("failed to reseed knowledge corpus: %w", err)
			}
		} else {
			s.docs = docs
			for i, d := range docs {
				s.byID[d.ID] = i
			}
			log.Infof("Loaded %d knowledge documents from %s", len(docs), path)
		}
	}

	s.rebuildVectorLocked()
	return s, nil
}

func (s *Store) seed() {
	s.docs = SeedCorpus()
	s.byID = make(map[string]int, len(s.docs))
	for i, d := range s.docs {
		s.byID[d.ID] = i
	}
	log.Infof("Created knowledge corpus with %d documents", len(s.docs))
}

// persistLocked writes the full corpus snapshot. Callers hold s.mu.
func (s *Store) persistLocked(opts *util.SecureWriteOptions) error {
	if s.path == "" || s.readOnly {
		return nil
	}
	return util.SecureWriteJSON(s.path, s.docs, opts)
}

func (s *Store) rebuildVectorLocked() {
	if err := s.vector.rebuild(s.docs); err != nil {
		log.Warnf("Vector index unavailable, keyword search only: %v", err)
	}
}

// Search returns the best-matching documents for the query in descending
// score order. Vector search is used when the index is ready and silently
// falls back to keyword search on any embedding failure. topK <= 0 returns
// every match.
func (s *Store) Search(query string, topK int) []SearchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if results, ok := s.vector.search(query, s.docs, topK); ok {
		log.Debugf("Vector search found %d documents for query: %s", len(results), excerpt(query, 50))
		return results
	}
	results := keywordSearch(s.docs, query, topK)
	log.Debugf("Keyword search found %d documents for query: %s", len(results), excerpt(query, 50))
	return results
}

// keywordSearch scores each document by keyword and text overlap with the
// query. Scores are open-ended sums, not probabilities; the routing layer
// clamps its confidence separately.
func keywordSearch(docs []Document, query string, topK int) []SearchResult {
	queryLower := strings.ToLower(query)
	queryWords := dedupeWords(strings.Fields(queryLower))

	var results []SearchResult
	for _, doc := range docs {
		score := 0.0
		for _, kw := range doc.Keywords {
			if strings.Contains(queryLower, strings.ToLower(kw)) {
				score += keywordMatchWeight
			}
		}
		docText := strings.ToLower(doc.Question + " " + doc.Answer)
		for _, w := range queryWords {
			if strings.Contains(docText, w) {
				score += textMatchWeight
			}
		}
		if score > 0 {
			results = append(results, SearchResult{Document: doc, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}

// dedupeWords removes repeated words while keeping first-occurrence order,
// so repeating a word in the query never multiplies its score.
func dedupeWords(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// AddDocument appends a validated document and persists the corpus. The
// in-memory state is rolled back if the snapshot cannot be written, so
// memory and disk never diverge.
func (s *Store) AddDocument(doc Document) error {
	if s.readOnly {
		return ErrReadOnly
	}
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[doc.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, doc.ID)
	}

	s.docs = append(s.docs, doc)
	s.byID[doc.ID] = len(s.docs) - 1
	if err := s.persistLocked(nil); err != nil {
		s.docs = s.docs[:len(s.docs)-1]
		delete(s.byID, doc.ID)
		return fmt.Errorf("failed to persist knowledge corpus: %w", err)
	}

	s.rebuildVectorLocked()
	log.Infof("Added knowledge document: %s", doc.ID)
	return nil
}

// UpdateFromFeedback applies a curated correction to a stored document: an
// improved answer replaces the old one and additional keywords are merged
// without duplicates. The corpus file is patched in place so fields this
// package does not model survive the update.
func (s *Store) UpdateFromFeedback(docID, improvedAnswer string, additionalKeywords []string) error {
	if s.readOnly {
		return ErrReadOnly
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byID[docID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, docID)
	}

	prev := s.docs[idx]
	updated := prev
	if improvedAnswer != "" {
		updated.Answer = improvedAnswer
	}
	updated.Keywords = mergeKeywords(prev.Keywords, additionalKeywords)

	s.docs[idx] = updated
	if err := s.patchDocumentLocked(updated); err != nil {
		s.docs[idx] = prev
		return fmt.Errorf("failed to persist document update: %w", err)
	}

	s.rebuildVectorLocked()
	log.Infof("Updated knowledge document from feedback: %s", docID)
	return nil
}

// patchDocumentLocked rewrites only the answer and keywords of one document
// inside the raw corpus file. Falls back to a full snapshot when the file is
// missing or the document cannot be located in it.
func (s *Store) patchDocumentLocked(doc Document) error {
	if s.path == "" {
		return nil
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return s.persistLocked(nil)
	}

	pos := -1
	for i, id := range gjson.GetBytes(raw, "#.id").Array() {
		if id.String() == doc.ID {
			pos = i
			break
		}
	}
	if pos < 0 {
		return s.persistLocked(nil)
	}

	out, err := sjson.SetBytes(raw, fmt.Sprintf("%d.answer", pos), doc.Answer)
	if err != nil {
		return s.persistLocked(nil)
	}
	out, err = sjson.SetBytes(out, fmt.Sprintf("%d.keywords", pos), doc.Keywords)
	if err != nil {
		return s.persistLocked(nil)
	}
	return util.SecureWrite(s.path, out, nil)
}

// mergeKeywords returns a fresh slice with extras appended after the
// existing keywords, skipping duplicates. Order is deterministic.
func mergeKeywords(existing, extras []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(extras))
	out := make([]string, 0, len(existing)+len(extras))
	for _, kw := range existing {
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	for _, kw := range extras {
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}

// GetByID returns the document with the given id.
func (s *Store) GetByID(id string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[id]
	if !ok {
		return Document{}, false
	}
	return s.docs[idx], true
}

// GetByTopic returns every document whose topic matches, ignoring case.
func (s *Store) GetByTopic(topic string) []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Document
	for _, d := range s.docs {
		if strings.EqualFold(d.Topic, topic) {
			out = append(out, d)
		}
	}
	return out
}

// Documents returns a copy of the full corpus.
func (s *Store) Documents() []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Document, len(s.docs))
	copy(out, s.docs)
	return out
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// StoreStats summarizes the corpus for diagnostics.
type StoreStats struct {
	TotalDocuments     int            `json:"total_documents"`
	Topics             map[string]int `json:"topics"`
	Difficulties       map[string]int `json:"difficulties"`
	HasVectorIndex     bool           `json:"has_vector_index"`
	EmbeddingDimension int            `json:"embedding_dimension,omitempty"`
}

// Stats reports document counts by topic and difficulty plus the state of
// the vector index.
func (s *Store) Stats() StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := StoreStats{
		TotalDocuments: len(s.docs),
		Topics:         make(map[string]int),
		Difficulties:   make(map[string]int),
	}
	for _, d := range s.docs {
		topic := d.Topic
		if topic == "" {
			topic = "unknown"
		}
		difficulty := d.Difficulty
		if difficulty == "" {
			difficulty = "unknown"
		}
		stats.Topics[topic]++
		stats.Difficulties[difficulty]++
	}
	stats.HasVectorIndex = s.vector.ready()
	stats.EmbeddingDimension = s.vector.dimension()
	return stats
}

func excerpt(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
