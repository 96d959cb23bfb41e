// Package knowledge implements the tenant-scoped knowledge base: namespaces,
// the file ingestion pipeline, and similarity search.
package knowledge

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/orbitdesk-ai/support-platform/internal/model"
)

// Chunk is one embeddable slice of an entry's text.
type Chunk struct {
	ID        string
	EntryID   string
	Namespace string
	Text      string
	Index     int
	Embedding []float32
}

// Hit is one search result with provenance back to its entry.
type Hit struct {
	EntryID string
	Title   string
	Text    string
	Score   float64
}

// Index stores knowledge entries and their chunks, partitioned by namespace.
// A namespace that has never been written to is a valid empty state for
// reads; writes create it lazily.
type Index interface {
	// Add inserts the entry and its chunks.
	Add(ctx context.Context, entry *model.KnowledgeEntry, chunks []Chunk) error

	// GetEntry returns one entry within the namespace.
	GetEntry(ctx context.Context, namespace, id string) (*model.KnowledgeEntry, error)

	// FindByHash returns the entry with the given content hash, or nil.
	FindByHash(ctx context.Context, namespace, contentHash string) (*model.KnowledgeEntry, error)

	// Search returns the namespace's best-matching chunks. vector may be nil,
	// in which case ranking is lexical.
	Search(ctx context.Context, namespace, query string, vector []float32, limit int) ([]Hit, error)

	// List returns entries newest first using an exclusive keyset position.
	// An empty category matches all entries.
	List(ctx context.Context, namespace, category string, afterCreatedMs int64, afterID string, limit int) ([]model.KnowledgeEntry, bool, error)

	// SetStatus updates an entry's indexing status.
	SetStatus(ctx context.Context, namespace, id string, status model.EntryStatus) error

	// Delete removes the entry and its chunks.
	Delete(ctx context.Context, namespace, id string) error
}

func sortHitsByScore(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
}

// keywordOverlap returns the fraction of query terms found in the text.
func keywordOverlap(queryTerms map[string]struct{}, text string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	found := 0
	for term := range queryTerms {
		if strings.Contains(lower, term) {
			found++
		}
	}
	return float64(found) / float64(len(queryTerms))
}

func uniqueLowerTerms(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	terms := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:\"'()")
		if len(w) >= 3 {
			terms[w] = struct{}{}
		}
	}
	return terms
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
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
