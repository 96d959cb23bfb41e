package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/orbitdesk-ai/support-platform/internal/llm"
	"github.com/orbitdesk-ai/support-platform/internal/model"
	"github.com/orbitdesk-ai/support-platform/pkg/logger"
	"github.com/orbitdesk-ai/support-platform/pkg/metrics"
)

const defaultSearchLimit = 5

// Searcher answers grounding queries against a namespace. When an embedder
// is configured the query is embedded and ranking is semantic; otherwise
// ranking falls back to keyword overlap.
type Searcher struct {
	index    Index
	embedder llm.EmbeddingClient
	log      *logger.Logger
}

// NewSearcher wires a search service over the index.
func NewSearcher(index Index, embedder llm.EmbeddingClient, log *logger.Logger) *Searcher {
	return &Searcher{index: index, embedder: embedder, log: log}
}

// Search returns the best-matching chunks formatted as a single grounding
// text plus per-source attribution. An empty or unknown namespace yields an
// empty result, not an error.
func (s *Searcher) Search(ctx context.Context, namespace, query string, limit int) (*model.SearchResult, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	start := time.Now()
	var vector []float32
	if s.embedder != nil && strings.TrimSpace(query) != "" {
		vectors, err := s.embedder.Embed(ctx, []string{query})
		if err != nil {
			s.log.Warn("query embedding failed, falling back to lexical search",
				zap.String("namespace", namespace), zap.Error(err))
		} else if len(vectors) > 0 {
			vector = vectors[0]
		}
	}

	hits, err := s.index.Search(ctx, namespace, query, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("search namespace %s: %w", namespace, err)
	}
	metrics.RecordKnowledgeSearch(time.Since(start).Seconds(), len(hits))

	result := &model.SearchResult{Entries: make([]model.SearchSource, 0, len(hits))}
	var b strings.Builder
	for i, hit := range hits {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s]\n%s", hit.Title, hit.Text)
		result.Entries = append(result.Entries, model.SearchSource{
			Title: hit.Title,
			Score: hit.Score,
		})
	}
	result.Text = b.String()
	return result, nil
}
