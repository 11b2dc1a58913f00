package knowledge

import (
	"fmt"
	"math"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

// minVectorScore filters out weak semantic matches so near-noise neighbors
// never outrank a solid keyword hit.
const minVectorScore = 0.3

// Embedder turns texts into dense vectors. Implementations report Enabled
// so the store can skip the vector path entirely when no model is loaded.
type Embedder interface {
	Enabled() bool
	Embed(texts []string) ([][]float32, error)
}

// vectorIndex holds one embedding per document, parallel to the store's
// document slice. It carries no lock of its own; the owning Store serializes
// access through its mutex.
type vectorIndex struct {
	embedder Embedder
	vectors  [][]float32
	dim      int
}

func newVectorIndex(embedder Embedder) *vectorIndex {
	return &vectorIndex{embedder: embedder}
}

func (v *vectorIndex) ready() bool {
	return v.embedder != nil && v.embedder.Enabled() && len(v.vectors) > 0
}

func (v *vectorIndex) dimension() int {
	if !v.ready() {
		return 0
	}
	return v.dim
}

// rebuild re-embeds the whole corpus. With ten-odd curated documents a full
// rebuild is cheaper than tracking incremental updates.
func (v *vectorIndex) rebuild(docs []Document) error {
	v.vectors = nil
	v.dim = 0

	if v.embedder == nil || !v.embedder.Enabled() {
		return nil
	}
	if len(docs) == 0 {
		log.Warnf("No documents to index")
		return nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Question + " " + d.Answer + " " + strings.Join(d.Keywords, " ")
	}

	vectors, err := v.embedder.Embed(texts)
	if err != nil {
		return fmt.Errorf("failed to embed corpus: %w", err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	v.vectors = vectors
	if len(vectors) > 0 {
		v.dim = len(vectors[0])
	}
	log.Infof("Built vector index over %d documents (dimension %d)", len(docs), v.dim)
	return nil
}

// search ranks documents by cosine similarity to the query. The second
// return value is false when the vector path cannot serve the query and the
// caller should fall back to keyword search.
func (v *vectorIndex) search(query string, docs []Document, topK int) ([]SearchResult, bool) {
	if !v.ready() || len(v.vectors) != len(docs) {
		return nil, false
	}

	embedded, err := v.embedder.Embed([]string{query})
	if err != nil || len(embedded) != 1 {
		log.Errorf("Error embedding query, falling back to keyword search: %v", err)
		return nil, false
	}
	queryVec := embedded[0]

	order := make([]int, len(docs))
	scores := make([]float64, len(docs))
	for i := range docs {
		order[i] = i
		scores[i] = cosineSimilarity(queryVec, v.vectors[i])
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	limit := len(order)
	if topK > 0 && topK < limit {
		limit = topK
	}

	var results []SearchResult
	for rank, idx := range order[:limit] {
		if scores[idx] <= minVectorScore {
			continue
		}
		results = append(results, SearchResult{
			Document: docs[idx],
			Score:    scores[idx],
			Rank:     rank + 1,
		})
	}
	return results, true
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
