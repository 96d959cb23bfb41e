package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitdesk-ai/support-platform/internal/model"
)

func TestKeywordOverlap(t *testing.T) {
	terms := uniqueLowerTerms("refund policy days")
	assert.Equal(t, 1.0, keywordOverlap(terms, "Our refund policy allows 14 days."))
	assert.Equal(t, 0.0, keywordOverlap(terms, "shipping rates"))
	assert.Equal(t, 0.0, keywordOverlap(nil, "anything"))
}

func TestUniqueLowerTermsDropsShortWords(t *testing.T) {
	terms := uniqueLowerTerms("How do I fix my stream?")
	_, hasStream := terms["stream"]
	_, hasDo := terms["do"]
	assert.True(t, hasStream)
	assert.False(t, hasDo)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, cosineSimilarity(nil, nil))
}

func TestMemoryIndexVectorSearchRanks(t *testing.T) {
	ctx := context.Background()
	index := NewMemoryIndex()

	entry := &model.KnowledgeEntry{ID: "e1", Namespace: "ns", Title: "Doc", ContentHash: "h1", Status: model.EntryStatusReady}
	require.NoError(t, index.Add(ctx, entry, []Chunk{
		{ID: "c1", EntryID: "e1", Namespace: "ns", Text: "close match", Embedding: []float32{1, 0}},
		{ID: "c2", EntryID: "e1", Namespace: "ns", Text: "far match", Embedding: []float32{0, 1}},
	}))

	hits, err := index.Search(ctx, "ns", "", []float32{1, 0.1}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "close match", hits[0].Text)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestMemoryIndexLexicalFallback(t *testing.T) {
	ctx := context.Background()
	index := NewMemoryIndex()

	entry := &model.KnowledgeEntry{ID: "e1", Namespace: "ns", Title: "Doc", ContentHash: "h1", Status: model.EntryStatusReady}
	require.NoError(t, index.Add(ctx, entry, []Chunk{
		{ID: "c1", EntryID: "e1", Namespace: "ns", Text: "billing and invoices"},
		{ID: "c2", EntryID: "e1", Namespace: "ns", Text: "streaming setup"},
	}))

	hits, err := index.Search(ctx, "ns", "invoices", nil, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "billing and invoices", hits[0].Text)
}

func TestMemoryIndexUnknownNamespaceIsEmpty(t *testing.T) {
	index := NewMemoryIndex()
	hits, err := index.Search(context.Background(), "never-written", "query", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemoryIndexNamespacesIsolate(t *testing.T) {
	ctx := context.Background()
	index := NewMemoryIndex()

	a := &model.KnowledgeEntry{ID: "e1", Namespace: "ns-a", Title: "A", ContentHash: "h1", Status: model.EntryStatusReady}
	require.NoError(t, index.Add(ctx, a, []Chunk{{ID: "c1", EntryID: "e1", Namespace: "ns-a", Text: "secret pricing sheet"}}))

	hits, err := index.Search(ctx, "ns-b", "pricing", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	found, err := index.FindByHash(ctx, "ns-b", "h1")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestMemoryIndexExcludesNotReadyEntries(t *testing.T) {
	ctx := context.Background()
	index := NewMemoryIndex()

	entry := &model.KnowledgeEntry{ID: "e1", Namespace: "ns", Title: "Doc", ContentHash: "h1", Status: model.EntryStatusReady}
	require.NoError(t, index.Add(ctx, entry, []Chunk{{ID: "c1", EntryID: "e1", Namespace: "ns", Text: "relevant content"}}))
	require.NoError(t, index.SetStatus(ctx, "ns", "e1", model.EntryStatusError))

	hits, err := index.Search(ctx, "ns", "relevant content", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSplitChunksOverlap(t *testing.T) {
	words := make([]byte, 0)
	for i := 0; i < chunkWordLimit+50; i++ {
		words = append(words, []byte("word ")...)
	}
	chunks := splitChunks(string(words))
	require.Len(t, chunks, 2)

	short := splitChunks("just a few words")
	require.Len(t, short, 1)
	assert.Equal(t, "just a few words", short[0])

	assert.Nil(t, splitChunks("   "))
}

func TestExtractTextPlain(t *testing.T) {
	text, clean := ExtractText([]byte("  hello world  "), "text/plain; charset=utf-8")
	assert.True(t, clean)
	assert.Equal(t, "hello world", text)
}

func TestExtractTextBinaryExcerpt(t *testing.T) {
	data := append([]byte{0x00, 0x01}, []byte("readable fragment inside")...)
	data = append(data, 0xff, 0xfe)
	text, clean := ExtractText(data, "application/pdf")
	assert.False(t, clean)
	assert.Contains(t, text, "readable fragment inside")
}

func TestNamespaceForOrg(t *testing.T) {
	assert.Equal(t, "kb.org-a", NamespaceForOrg("org-a"))
	assert.NotEqual(t, NamespaceForOrg("org-a"), NamespaceForOrg("org-b"))
}
