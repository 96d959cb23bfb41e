package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/orbitdesk-ai/support-platform/internal/model"
	"github.com/orbitdesk-ai/support-platform/pkg/errcode"
)

// PostgresIndex persists entries and chunk embeddings in Postgres with
// pgvector. Lexical fallback queries rank by term overlap in SQL so the
// index works without an embedding provider.
type PostgresIndex struct {
	db *sql.DB
}

// NewPostgresIndex wraps an open database handle.
func NewPostgresIndex(db *sql.DB) *PostgresIndex {
	return &PostgresIndex{db: db}
}

// EnsureSchema creates the knowledge tables and vector index if missing.
func EnsureSchema(ctx context.Context, db *sql.DB, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("invalid embedding dimensions: %d", dimensions)
	}

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS knowledge_entries (
			id TEXT PRIMARY KEY,
			namespace TEXT NOT NULL,
			title TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			content_hash TEXT NOT NULL,
			status TEXT NOT NULL,
			storage_ref TEXT NOT NULL DEFAULT '',
			uploaded_by TEXT NOT NULL DEFAULT '',
			file_name TEXT NOT NULL DEFAULT '',
			mime_type TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			size_bytes BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS knowledge_entries_hash_idx
			ON knowledge_entries (namespace, content_hash)`,
		`CREATE INDEX IF NOT EXISTS knowledge_entries_list_idx
			ON knowledge_entries (namespace, created_at DESC, id DESC)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS knowledge_chunks (
			id TEXT PRIMARY KEY,
			entry_id TEXT NOT NULL REFERENCES knowledge_entries(id) ON DELETE CASCADE,
			namespace TEXT NOT NULL,
			chunk_text TEXT NOT NULL,
			chunk_index INT NOT NULL,
			embedding vector(%d)
		)`, dimensions),
		`CREATE INDEX IF NOT EXISTS knowledge_chunks_embedding_idx
			ON knowledge_chunks USING hnsw (embedding vector_cosine_ops) WITH (m = 24, ef_construction = 256)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure knowledge schema: %w", err)
		}
	}
	return nil
}

// Add inserts the entry and its chunks in one transaction.
func (x *PostgresIndex) Add(ctx context.Context, entry *model.KnowledgeEntry, chunks []Chunk) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO knowledge_entries (
			id, namespace, title, summary, content_hash, status, storage_ref,
			uploaded_by, file_name, mime_type, category, size_bytes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, entry.ID, entry.Namespace, entry.Title, entry.Summary, entry.ContentHash,
		string(entry.Status), entry.StorageRef, entry.UploadedBy, entry.FileName,
		entry.MimeType, entry.Category, entry.SizeBytes, entry.CreatedAt); err != nil {
		return fmt.Errorf("insert knowledge entry: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO knowledge_chunks (id, entry_id, namespace, chunk_text, chunk_index, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		var embedding any
		if len(chunk.Embedding) > 0 {
			embedding = pgvector.NewVector(chunk.Embedding)
		}
		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.EntryID, chunk.Namespace,
			chunk.Text, chunk.Index, embedding); err != nil {
			return fmt.Errorf("insert knowledge chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit knowledge insert: %w", err)
	}
	return nil
}

// GetEntry returns one entry within the namespace.
func (x *PostgresIndex) GetEntry(ctx context.Context, namespace, id string) (*model.KnowledgeEntry, error) {
	entry, err := x.scanEntry(x.db.QueryRowContext(ctx, entrySelect+`
		WHERE namespace = $1 AND id = $2
	`, namespace, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errcode.New(errcode.CodeNotFound, "entry not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get knowledge entry: %w", err)
	}
	return entry, nil
}

// FindByHash returns the entry with the given content hash, or nil.
func (x *PostgresIndex) FindByHash(ctx context.Context, namespace, contentHash string) (*model.KnowledgeEntry, error) {
	entry, err := x.scanEntry(x.db.QueryRowContext(ctx, entrySelect+`
		WHERE namespace = $1 AND content_hash = $2
	`, namespace, contentHash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find knowledge entry by hash: %w", err)
	}
	return entry, nil
}

const entrySelect = `
	SELECT id, namespace, title, summary, content_hash, status, storage_ref,
		uploaded_by, file_name, mime_type, category, size_bytes, created_at
	FROM knowledge_entries
`

type rowScanner interface {
	Scan(dest ...any) error
}

func (x *PostgresIndex) scanEntry(row rowScanner) (*model.KnowledgeEntry, error) {
	var entry model.KnowledgeEntry
	var status string
	if err := row.Scan(&entry.ID, &entry.Namespace, &entry.Title, &entry.Summary,
		&entry.ContentHash, &status, &entry.StorageRef, &entry.UploadedBy,
		&entry.FileName, &entry.MimeType, &entry.Category, &entry.SizeBytes,
		&entry.CreatedAt); err != nil {
		return nil, err
	}
	entry.Status = model.EntryStatus(status)
	return &entry, nil
}

// Search ranks ready chunks by cosine distance when a query vector is
// present, otherwise by keyword overlap computed client-side.
func (x *PostgresIndex) Search(ctx context.Context, namespace, query string, vector []float32, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 5
	}

	if len(vector) > 0 {
		return x.searchVector(ctx, namespace, vector, limit)
	}
	return x.searchLexical(ctx, namespace, query, limit)
}

func (x *PostgresIndex) searchVector(ctx context.Context, namespace string, vector []float32, limit int) ([]Hit, error) {
	rows, err := x.db.QueryContext(ctx, `
		SELECT c.entry_id, e.title, c.chunk_text, 1 - (c.embedding <=> $2) AS similarity
		FROM knowledge_chunks c
		JOIN knowledge_entries e ON e.id = c.entry_id
		WHERE c.namespace = $1 AND e.status = 'ready' AND c.embedding IS NOT NULL
		ORDER BY c.embedding <=> $2
		LIMIT $3
	`, namespace, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("search knowledge: %w", err)
	}
	defer rows.Close()
	return scanHits(rows)
}

func (x *PostgresIndex) searchLexical(ctx context.Context, namespace, query string, limit int) ([]Hit, error) {
	rows, err := x.db.QueryContext(ctx, `
		SELECT c.entry_id, e.title, c.chunk_text, 0.0
		FROM knowledge_chunks c
		JOIN knowledge_entries e ON e.id = c.entry_id
		WHERE c.namespace = $1 AND e.status = 'ready'
	`, namespace)
	if err != nil {
		return nil, fmt.Errorf("search knowledge: %w", err)
	}
	defer rows.Close()

	hits, err := scanHits(rows)
	if err != nil {
		return nil, err
	}

	terms := uniqueLowerTerms(query)
	ranked := hits[:0]
	for _, hit := range hits {
		hit.Score = keywordOverlap(terms, hit.Text)
		if hit.Score > 0 {
			ranked = append(ranked, hit)
		}
	}
	sortHitsByScore(ranked)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

func scanHits(rows *sql.Rows) ([]Hit, error) {
	var hits []Hit
	for rows.Next() {
		var hit Hit
		if err := rows.Scan(&hit.EntryID, &hit.Title, &hit.Text, &hit.Score); err != nil {
			return nil, fmt.Errorf("scan knowledge hit: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate knowledge hits: %w", err)
	}
	return hits, nil
}

// List returns entries newest first with keyset pagination.
func (x *PostgresIndex) List(ctx context.Context, namespace, category string, afterCreatedMs int64, afterID string, limit int) ([]model.KnowledgeEntry, bool, error) {
	args := []any{namespace}
	q := entrySelect + ` WHERE namespace = $1`
	if category != "" {
		args = append(args, category)
		q += fmt.Sprintf(` AND category = $%d`, len(args))
	}
	if afterID != "" {
		args = append(args, time.UnixMilli(afterCreatedMs), afterID)
		q += fmt.Sprintf(` AND (created_at, id) < ($%d, $%d)`, len(args)-1, len(args))
	}
	q += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT %d`, limit+1)

	rows, err := x.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list knowledge entries: %w", err)
	}
	defer rows.Close()

	var entries []model.KnowledgeEntry
	for rows.Next() {
		entry, err := x.scanEntry(rows)
		if err != nil {
			return nil, false, fmt.Errorf("scan knowledge entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate knowledge entries: %w", err)
	}

	hasMore := len(entries) > limit
	if hasMore {
		entries = entries[:limit]
	}
	return entries, hasMore, nil
}

// SetStatus updates an entry's indexing status.
func (x *PostgresIndex) SetStatus(ctx context.Context, namespace, id string, status model.EntryStatus) error {
	res, err := x.db.ExecContext(ctx, `
		UPDATE knowledge_entries SET status = $3
		WHERE namespace = $1 AND id = $2
	`, namespace, id, string(status))
	if err != nil {
		return fmt.Errorf("update entry status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errcode.New(errcode.CodeNotFound, "entry not found")
	}
	return nil
}

// Delete removes the entry; chunks cascade.
func (x *PostgresIndex) Delete(ctx context.Context, namespace, id string) error {
	res, err := x.db.ExecContext(ctx, `
		DELETE FROM knowledge_entries WHERE namespace = $1 AND id = $2
	`, namespace, id)
	if err != nil {
		return fmt.Errorf("delete knowledge entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errcode.New(errcode.CodeNotFound, "entry not found")
	}
	return nil
}
