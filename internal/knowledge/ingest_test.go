package knowledge

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitdesk-ai/support-platform/internal/model"
	"github.com/orbitdesk-ai/support-platform/internal/store/memory"
	"github.com/orbitdesk-ai/support-platform/pkg/errcode"
	"github.com/orbitdesk-ai/support-platform/pkg/logger"
)

func newTestPipeline() (*Pipeline, *MemoryIndex, *memory.ObjectStore) {
	index := NewMemoryIndex()
	objects := memory.NewObjectStore()
	return NewPipeline(index, objects, nil, logger.NewNop()), index, objects
}

func textUpload(ns, name, content string) IngestRequest {
	return IngestRequest{
		Namespace: ns,
		Title:     name,
		FileName:  name,
		MimeType:  "text/plain",
		Data:      []byte(content),
	}
}

func TestIngestCreatesReadyEntry(t *testing.T) {
	ctx := context.Background()
	pipeline, index, objects := newTestPipeline()

	resp, err := pipeline.Ingest(ctx, textUpload("kb.org-a", "hours.txt", "We are open 9 to 5 on weekdays."))
	require.NoError(t, err)
	assert.False(t, resp.Reused)
	assert.NotEmpty(t, resp.URL)
	assert.Equal(t, 1, objects.Len())

	entry, err := index.GetEntry(ctx, "kb.org-a", resp.EntryID)
	require.NoError(t, err)
	assert.Equal(t, model.EntryStatusReady, entry.Status)
	assert.Equal(t, "hours.txt", entry.FileName)
	assert.NotEmpty(t, entry.ContentHash)
}

func TestIngestDuplicateLeavesSingleArtifact(t *testing.T) {
	ctx := context.Background()
	pipeline, _, objects := newTestPipeline()

	first, err := pipeline.Ingest(ctx, textUpload("kb.org-a", "policy.txt", "Refunds within 14 days."))
	require.NoError(t, err)

	second, err := pipeline.Ingest(ctx, textUpload("kb.org-a", "policy-copy.txt", "Refunds within 14 days."))
	require.NoError(t, err)

	assert.True(t, second.Reused)
	assert.Equal(t, first.EntryID, second.EntryID)
	assert.Equal(t, 1, objects.Len())
}

func TestIngestSameContentDifferentNamespaces(t *testing.T) {
	ctx := context.Background()
	pipeline, _, objects := newTestPipeline()

	first, err := pipeline.Ingest(ctx, textUpload("kb.org-a", "doc.txt", "Shared content."))
	require.NoError(t, err)
	second, err := pipeline.Ingest(ctx, textUpload("kb.org-b", "doc.txt", "Shared content."))
	require.NoError(t, err)

	assert.NotEqual(t, first.EntryID, second.EntryID)
	assert.False(t, second.Reused)
	assert.Equal(t, 2, objects.Len())
}

func TestIngestBinaryDegradesToExcerpt(t *testing.T) {
	ctx := context.Background()
	pipeline, index, _ := newTestPipeline()

	// A fake binary with an embedded readable run.
	data := append([]byte{0x00, 0x01, 0xff, 0xfe}, []byte("warranty terms apply here")...)
	data = append(data, 0x00, 0x02)

	resp, err := pipeline.Ingest(ctx, IngestRequest{
		Namespace: "kb.org-a",
		Title:     "warranty.bin",
		FileName:  "warranty.bin",
		MimeType:  "application/octet-stream",
		Data:      data,
	})
	require.NoError(t, err)

	entry, err := index.GetEntry(ctx, "kb.org-a", resp.EntryID)
	require.NoError(t, err)
	assert.Equal(t, model.EntryStatusReady, entry.Status)

	hits, err := index.Search(ctx, "kb.org-a", "warranty terms", nil, 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Contains(t, hits[0].Text, "warranty terms")
}

func TestIngestRejectsEmptyFile(t *testing.T) {
	pipeline, _, _ := newTestPipeline()
	_, err := pipeline.Ingest(context.Background(), textUpload("kb.org-a", "empty.txt", ""))
	assert.True(t, errcode.Is(err, errcode.CodeInvalidArgument))
}

func TestIngestRejectsOversizedFile(t *testing.T) {
	pipeline, _, _ := newTestPipeline()
	_, err := pipeline.Ingest(context.Background(), IngestRequest{
		Namespace: "kb.org-a",
		Title:     "big.txt",
		MimeType:  "text/plain",
		Data:      bytes.Repeat([]byte("a"), maxUploadBytes+1),
	})
	assert.True(t, errcode.Is(err, errcode.CodeInvalidArgument))
}

func TestDeleteRemovesEntryAndArtifact(t *testing.T) {
	ctx := context.Background()
	pipeline, index, objects := newTestPipeline()

	resp, err := pipeline.Ingest(ctx, textUpload("kb.org-a", "doc.txt", "Some indexed content."))
	require.NoError(t, err)

	require.NoError(t, pipeline.Delete(ctx, "kb.org-a", resp.EntryID))
	assert.Equal(t, 0, objects.Len())
	_, err = index.GetEntry(ctx, "kb.org-a", resp.EntryID)
	assert.True(t, errcode.Is(err, errcode.CodeNotFound))

	hits, err := index.Search(ctx, "kb.org-a", "indexed content", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestDeleteWrongNamespaceReadsAsNotFound(t *testing.T) {
	ctx := context.Background()
	pipeline, _, _ := newTestPipeline()

	resp, err := pipeline.Ingest(ctx, textUpload("kb.org-a", "doc.txt", "Tenant content."))
	require.NoError(t, err)

	err = pipeline.Delete(ctx, "kb.org-b", resp.EntryID)
	assert.True(t, errcode.Is(err, errcode.CodeNotFound))
}

func TestListFilesPaginates(t *testing.T) {
	ctx := context.Background()
	pipeline, _, _ := newTestPipeline()

	for _, content := range []string{"doc one", "doc two", "doc three"} {
		_, err := pipeline.Ingest(ctx, textUpload("kb.org-a", content+".txt", content))
		require.NoError(t, err)
	}

	page1, hasMore, err := pipeline.ListFiles(ctx, "kb.org-a", "", 0, "", 2)
	require.NoError(t, err)
	assert.Len(t, page1, 2)
	assert.True(t, hasMore)

	last := page1[len(page1)-1]
	page2, hasMore, err := pipeline.ListFiles(ctx, "kb.org-a", "", last.CreatedAt.UnixMilli(), last.ID, 2)
	require.NoError(t, err)
	assert.Len(t, page2, 1)
	assert.False(t, hasMore)
}

func TestListFilesFiltersByCategory(t *testing.T) {
	ctx := context.Background()
	pipeline, _, _ := newTestPipeline()

	for name, category := range map[string]string{
		"refunds.txt":  "billing",
		"invoices.txt": "billing",
		"setup.txt":    "onboarding",
	} {
		req := textUpload("kb.org-a", name, "content of "+name)
		req.Category = category
		_, err := pipeline.Ingest(ctx, req)
		require.NoError(t, err)
	}

	billing, hasMore, err := pipeline.ListFiles(ctx, "kb.org-a", "billing", 0, "", 10)
	require.NoError(t, err)
	assert.False(t, hasMore)
	require.Len(t, billing, 2)
	for _, file := range billing {
		assert.Equal(t, "billing", file.Category)
	}

	none, _, err := pipeline.ListFiles(ctx, "kb.org-a", "legal", 0, "", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestIngestFallsBackToExcerptSummary(t *testing.T) {
	ctx := context.Background()
	pipeline, index, _ := newTestPipeline()

	resp, err := pipeline.Ingest(ctx, textUpload("kb.org-a", "faq.txt",
		"Our support desk answers within one business day. Escalations go to the on-call engineer."))
	require.NoError(t, err)

	entry, err := index.GetEntry(ctx, "kb.org-a", resp.EntryID)
	require.NoError(t, err)
	assert.Contains(t, entry.Summary, "support desk")
	assert.LessOrEqual(t, len(entry.Summary), summaryExcerptLen)
}
