package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitdesk-ai/support-platform/internal/model"
	"github.com/orbitdesk-ai/support-platform/pkg/logger"
)

type stubEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (s *stubEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(inputs))
	for i, input := range inputs {
		if v, ok := s.vectors[input]; ok {
			out[i] = v
		} else {
			out[i] = []float32{0, 0}
		}
	}
	return out, nil
}

func seedIndex(t *testing.T, index *MemoryIndex) {
	t.Helper()
	entry := &model.KnowledgeEntry{ID: "e1", Namespace: "ns", Title: "Billing FAQ", ContentHash: "h1", Status: model.EntryStatusReady}
	require.NoError(t, index.Add(context.Background(), entry, []Chunk{
		{ID: "c1", EntryID: "e1", Namespace: "ns", Text: "Invoices are sent monthly.", Embedding: []float32{1, 0}},
		{ID: "c2", EntryID: "e1", Namespace: "ns", Text: "Streams use RTMP ingest.", Embedding: []float32{0, 1}},
	}))
}

func TestSearcherSemanticRanking(t *testing.T) {
	index := NewMemoryIndex()
	seedIndex(t, index)

	embedder := &stubEmbedder{vectors: map[string][]float32{"billing": {1, 0}}}
	searcher := NewSearcher(index, embedder, logger.NewNop())

	result, err := searcher.Search(context.Background(), "ns", "billing", 1)
	require.NoError(t, err)
	assert.Contains(t, result.Text, "Invoices are sent monthly.")
	assert.Contains(t, result.Text, "[Billing FAQ]")
	require.Len(t, result.Entries, 1)
	assert.Equal(t, "Billing FAQ", result.Entries[0].Title)
}

func TestSearcherEmbedFailureFallsBackToLexical(t *testing.T) {
	index := NewMemoryIndex()
	seedIndex(t, index)

	embedder := &stubEmbedder{err: errors.New("quota exceeded")}
	searcher := NewSearcher(index, embedder, logger.NewNop())

	result, err := searcher.Search(context.Background(), "ns", "invoices monthly", 5)
	require.NoError(t, err)
	assert.Contains(t, result.Text, "Invoices are sent monthly.")
}

func TestSearcherEmptyNamespaceYieldsEmptyResult(t *testing.T) {
	searcher := NewSearcher(NewMemoryIndex(), nil, logger.NewNop())
	result, err := searcher.Search(context.Background(), "ns-empty", "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, result.Text)
	assert.Empty(t, result.Entries)
}
