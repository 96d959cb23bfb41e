package knowledge

import (
	"context"
	"sort"
	"sync"

	"github.com/orbitdesk-ai/support-platform/internal/model"
	"github.com/orbitdesk-ai/support-platform/pkg/errcode"
)

// MemoryIndex is the in-process Index implementation. It ranks by cosine
// similarity when chunk and query vectors are present and falls back to
// keyword overlap otherwise.
type MemoryIndex struct {
	mu         sync.RWMutex
	namespaces map[string]*memNamespace
}

type memNamespace struct {
	entries map[string]*model.KnowledgeEntry
	byHash  map[string]string
	chunks  []Chunk
}

// NewMemoryIndex creates an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{namespaces: make(map[string]*memNamespace)}
}

func (x *MemoryIndex) namespace(ns string, create bool) *memNamespace {
	n, exists := x.namespaces[ns]
	if !exists && create {
		n = &memNamespace{
			entries: make(map[string]*model.KnowledgeEntry),
			byHash:  make(map[string]string),
		}
		x.namespaces[ns] = n
	}
	return n
}

// Add inserts the entry and its chunks, creating the namespace lazily.
func (x *MemoryIndex) Add(ctx context.Context, entry *model.KnowledgeEntry, chunks []Chunk) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	n := x.namespace(entry.Namespace, true)
	cp := *entry
	n.entries[entry.ID] = &cp
	n.byHash[entry.ContentHash] = entry.ID
	n.chunks = append(n.chunks, chunks...)
	return nil
}

// GetEntry returns one entry within the namespace.
func (x *MemoryIndex) GetEntry(ctx context.Context, namespace, id string) (*model.KnowledgeEntry, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	n := x.namespace(namespace, false)
	if n == nil {
		return nil, errcode.New(errcode.CodeNotFound, "entry not found")
	}
	entry, exists := n.entries[id]
	if !exists {
		return nil, errcode.New(errcode.CodeNotFound, "entry not found")
	}
	cp := *entry
	return &cp, nil
}

// FindByHash returns the entry with the given content hash, or nil.
func (x *MemoryIndex) FindByHash(ctx context.Context, namespace, contentHash string) (*model.KnowledgeEntry, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	n := x.namespace(namespace, false)
	if n == nil {
		return nil, nil
	}
	id, exists := n.byHash[contentHash]
	if !exists {
		return nil, nil
	}
	cp := *n.entries[id]
	return &cp, nil
}

// Search returns the namespace's best-matching chunks.
func (x *MemoryIndex) Search(ctx context.Context, namespace, query string, vector []float32, limit int) ([]Hit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	n := x.namespace(namespace, false)
	if n == nil {
		return nil, nil
	}

	terms := uniqueLowerTerms(query)
	var hits []Hit
	for _, chunk := range n.chunks {
		entry := n.entries[chunk.EntryID]
		if entry == nil || entry.Status != model.EntryStatusReady {
			continue
		}

		var score float64
		if len(vector) > 0 && len(chunk.Embedding) > 0 {
			score = cosineSimilarity(vector, chunk.Embedding)
		} else {
			score = keywordOverlap(terms, chunk.Text)
		}
		if score <= 0 {
			continue
		}
		hits = append(hits, Hit{
			EntryID: chunk.EntryID,
			Title:   entry.Title,
			Text:    chunk.Text,
			Score:   score,
		})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// List returns entries newest first.
func (x *MemoryIndex) List(ctx context.Context, namespace, category string, afterCreatedMs int64, afterID string, limit int) ([]model.KnowledgeEntry, bool, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	n := x.namespace(namespace, false)
	if n == nil {
		return nil, false, nil
	}

	var entries []model.KnowledgeEntry
	for _, entry := range n.entries {
		if category != "" && entry.Category != category {
			continue
		}
		entries = append(entries, *entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].ID > entries[j].ID
	})

	start := 0
	if afterID != "" {
		for i, entry := range entries {
			if entry.CreatedAt.UnixMilli() == afterCreatedMs && entry.ID == afterID {
				start = i + 1
				break
			}
			if entry.CreatedAt.UnixMilli() < afterCreatedMs {
				start = i
				break
			}
		}
	}

	end := start + limit
	hasMore := end < len(entries)
	if end > len(entries) {
		end = len(entries)
	}
	if start > len(entries) {
		start = len(entries)
	}
	return entries[start:end], hasMore, nil
}

// SetStatus updates an entry's indexing status.
func (x *MemoryIndex) SetStatus(ctx context.Context, namespace, id string, status model.EntryStatus) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	n := x.namespace(namespace, false)
	if n == nil {
		return errcode.New(errcode.CodeNotFound, "entry not found")
	}
	entry, exists := n.entries[id]
	if !exists {
		return errcode.New(errcode.CodeNotFound, "entry not found")
	}
	entry.Status = status
	return nil
}

// Delete removes the entry and its chunks.
func (x *MemoryIndex) Delete(ctx context.Context, namespace, id string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	n := x.namespace(namespace, false)
	if n == nil {
		return errcode.New(errcode.CodeNotFound, "entry not found")
	}
	entry, exists := n.entries[id]
	if !exists {
		return errcode.New(errcode.CodeNotFound, "entry not found")
	}

	delete(n.entries, id)
	delete(n.byHash, entry.ContentHash)
	kept := n.chunks[:0]
	for _, chunk := range n.chunks {
		if chunk.EntryID != id {
			kept = append(kept, chunk)
		}
	}
	n.chunks = kept
	return nil
}
