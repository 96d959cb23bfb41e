package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orbitdesk-ai/support-platform/internal/llm"
	"github.com/orbitdesk-ai/support-platform/internal/model"
	"github.com/orbitdesk-ai/support-platform/internal/store"
	"github.com/orbitdesk-ai/support-platform/pkg/errcode"
	"github.com/orbitdesk-ai/support-platform/pkg/logger"
	"github.com/orbitdesk-ai/support-platform/pkg/metrics"
)

const (
	maxUploadBytes     = 10 << 20
	summaryExcerptLen  = 280
	summaryMaxTokens   = 150
	summarySystemRole  = "You write one-paragraph summaries of support documents. Reply with the summary only."
	summaryPromptLimit = 6000
)

// Pipeline ingests uploaded files into a namespace: it stores the raw
// artifact, deduplicates by content hash, extracts and chunks the text,
// embeds the chunks when an embedder is configured, and indexes the result.
type Pipeline struct {
	index     Index
	objects   store.ObjectStore
	embedder  llm.EmbeddingClient
	generator llm.Client
	genModel  string
	log       *logger.Logger
}

// IngestRequest describes one file upload.
type IngestRequest struct {
	Namespace  string
	Title      string
	FileName   string
	MimeType   string
	Category   string
	UploadedBy string
	Data       []byte
}

// NewPipeline wires the ingestion pipeline. embedder may be nil, in which
// case search over the ingested content is lexical.
func NewPipeline(index Index, objects store.ObjectStore, embedder llm.EmbeddingClient, log *logger.Logger) *Pipeline {
	return &Pipeline{index: index, objects: objects, embedder: embedder, log: log}
}

// WithSummarizer enables LLM summaries for ingested documents. Without one
// (or when generation fails) the summary falls back to a bounded excerpt.
func (p *Pipeline) WithSummarizer(client llm.Client, model string) *Pipeline {
	p.generator = client
	p.genModel = model
	return p
}

// Ingest processes one upload. Re-uploading identical content into the same
// namespace returns the existing entry and leaves a single stored artifact.
func (p *Pipeline) Ingest(ctx context.Context, req IngestRequest) (*model.IngestResponse, error) {
	if req.Namespace == "" {
		return nil, errcode.New(errcode.CodeInvalidArgument, "namespace is required")
	}
	if len(req.Data) == 0 {
		return nil, errcode.New(errcode.CodeInvalidArgument, "file is empty")
	}
	if len(req.Data) > maxUploadBytes {
		return nil, errcode.Newf(errcode.CodeInvalidArgument, "file exceeds %d bytes", maxUploadBytes)
	}
	if req.Title == "" {
		req.Title = req.FileName
	}
	if req.Title == "" {
		return nil, errcode.New(errcode.CodeInvalidArgument, "title is required")
	}

	// The artifact is stored before the dedup check so a crash between the
	// two steps never leaves an indexed entry without its file. On a
	// duplicate the fresh artifact is removed again.
	ref, err := p.objects.Put(ctx, req.Data, req.MimeType)
	if err != nil {
		metrics.KnowledgeIngestsTotal.WithLabelValues("error").Inc()
		return nil, errcode.Wrap(errcode.CodeUnavailable, "store artifact", err)
	}

	sum := sha256.Sum256(req.Data)
	contentHash := hex.EncodeToString(sum[:])

	existing, err := p.index.FindByHash(ctx, req.Namespace, contentHash)
	if err != nil {
		metrics.KnowledgeIngestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if existing != nil {
		if delErr := p.objects.Delete(ctx, ref); delErr != nil {
			p.log.Warn("failed to remove duplicate artifact",
				zap.String("ref", ref), zap.Error(delErr))
		}
		url, _ := p.objects.URL(ctx, existing.StorageRef)
		metrics.KnowledgeIngestsTotal.WithLabelValues("duplicate").Inc()
		return &model.IngestResponse{EntryID: existing.ID, URL: url, Reused: true}, nil
	}

	text, clean := ExtractText(req.Data, req.MimeType)
	if !clean {
		p.log.Info("text extraction degraded to raw excerpt",
			zap.String("namespace", req.Namespace),
			zap.String("file_name", req.FileName),
			zap.String("mime_type", req.MimeType))
	}
	if text == "" {
		text = req.Title
	}

	entry := &model.KnowledgeEntry{
		ID:          uuid.Must(uuid.NewV7()).String(),
		Namespace:   req.Namespace,
		Title:       req.Title,
		Summary:     p.summarize(ctx, req.Title, text),
		Text:        text,
		ContentHash: contentHash,
		Status:      model.EntryStatusReady,
		StorageRef:  ref,
		UploadedBy:  req.UploadedBy,
		FileName:    req.FileName,
		MimeType:    req.MimeType,
		Category:    req.Category,
		SizeBytes:   int64(len(req.Data)),
		CreatedAt:   time.Now().UTC(),
	}

	chunks, err := p.buildChunks(ctx, entry, text)
	if err != nil {
		metrics.KnowledgeIngestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if err := p.index.Add(ctx, entry, chunks); err != nil {
		metrics.KnowledgeIngestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("index entry: %w", err)
	}

	url, _ := p.objects.URL(ctx, ref)
	metrics.KnowledgeIngestsTotal.WithLabelValues("success").Inc()
	p.log.Info("knowledge entry ingested",
		zap.String("namespace", req.Namespace),
		zap.String("entry_id", entry.ID),
		zap.Int("chunks", len(chunks)),
		zap.Int64("size_bytes", entry.SizeBytes))
	return &model.IngestResponse{EntryID: entry.ID, URL: url}, nil
}

// buildChunks splits the text and embeds each piece. An embedding failure
// degrades to unembedded chunks so the entry still serves lexical search.
func (p *Pipeline) buildChunks(ctx context.Context, entry *model.KnowledgeEntry, text string) ([]Chunk, error) {
	pieces := splitChunks(text)
	chunks := make([]Chunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, Chunk{
			ID:        uuid.Must(uuid.NewV7()).String(),
			EntryID:   entry.ID,
			Namespace: entry.Namespace,
			Text:      piece,
			Index:     i,
		})
	}

	if p.embedder == nil || len(pieces) == 0 {
		return chunks, nil
	}

	vectors, err := p.embedder.Embed(ctx, pieces)
	if err != nil {
		p.log.Warn("embedding failed, entry will use lexical search",
			zap.String("entry_id", entry.ID), zap.Error(err))
		return chunks, nil
	}
	if len(vectors) != len(chunks) {
		p.log.Warn("embedding count mismatch, entry will use lexical search",
			zap.String("entry_id", entry.ID),
			zap.Int("expected", len(chunks)), zap.Int("got", len(vectors)))
		return chunks, nil
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}
	return chunks, nil
}

// summarize produces a short description of the document for dashboard
// listings. The excerpt fallback keeps ingestion working without a
// generation client.
func (p *Pipeline) summarize(ctx context.Context, title, text string) string {
	if p.generator != nil {
		prompt := text
		if len(prompt) > summaryPromptLimit {
			prompt = excerpt(prompt, summaryPromptLimit)
		}
		resp, err := p.generator.Generate(ctx, &llm.GenerationRequest{
			Model:  p.genModel,
			System: summarySystemRole,
			Messages: []llm.ChatMessage{{
				Role:    "user",
				Content: fmt.Sprintf("Document title: %s\n\n%s", title, prompt),
			}},
			MaxTokens: summaryMaxTokens,
		})
		if err != nil {
			p.log.Warn("summary generation failed, using excerpt", zap.Error(err))
		} else if s := strings.TrimSpace(resp.Content); s != "" {
			return s
		}
	}
	return excerpt(text, summaryExcerptLen)
}

// excerpt returns up to max bytes of text cut at a word boundary.
func excerpt(text string, max int) string {
	text = strings.TrimSpace(text)
	if len(text) <= max {
		return text
	}
	cut := text[:max]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut
}

// Delete removes an entry and its stored artifact.
func (p *Pipeline) Delete(ctx context.Context, namespace, id string) error {
	entry, err := p.index.GetEntry(ctx, namespace, id)
	if err != nil {
		return err
	}
	if err := p.index.Delete(ctx, namespace, id); err != nil {
		return err
	}
	if entry.StorageRef != "" {
		if err := p.objects.Delete(ctx, entry.StorageRef); err != nil && errcode.CodeOf(err) != errcode.CodeNotFound {
			p.log.Warn("failed to remove artifact for deleted entry",
				zap.String("entry_id", id), zap.Error(err))
		}
	}
	return nil
}

// ListFiles returns the namespace's entries as dashboard file rows.
func (p *Pipeline) ListFiles(ctx context.Context, namespace, category string, afterCreatedMs int64, afterID string, limit int) ([]model.KnowledgeFile, bool, error) {
	entries, hasMore, err := p.index.List(ctx, namespace, category, afterCreatedMs, afterID, limit)
	if err != nil {
		return nil, false, err
	}
	files := make([]model.KnowledgeFile, 0, len(entries))
	for _, entry := range entries {
		url, _ := p.objects.URL(ctx, entry.StorageRef)
		files = append(files, model.KnowledgeFile{
			ID:        entry.ID,
			Name:      entry.FileName,
			Type:      entry.MimeType,
			Size:      entry.SizeBytes,
			Status:    entry.Status,
			URL:       url,
			Category:  entry.Category,
			Summary:   entry.Summary,
			CreatedAt: entry.CreatedAt,
		})
	}
	return files, hasMore, nil
}
