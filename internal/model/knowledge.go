package model

import (
	"time"
)

// EntryStatus is the indexing state of a knowledge entry.
type EntryStatus string

const (
	EntryStatusPending EntryStatus = "pending"
	EntryStatusReady   EntryStatus = "ready"
	EntryStatusError   EntryStatus = "error"
)

// KnowledgeEntry is one indexed document in a tenant's namespace.
type KnowledgeEntry struct {
	ID          string      `json:"id"`
	Namespace   string      `json:"namespace"`
	Title       string      `json:"title"`
	Summary     string      `json:"summary,omitempty"`
	Text        string      `json:"text,omitempty"`
	ContentHash string      `json:"content_hash"`
	Status      EntryStatus `json:"status"`

	// Metadata ties the index entry back to its artifact and uploader.
	StorageRef string `json:"storage_ref"`
	UploadedBy string `json:"uploaded_by"`
	FileName   string `json:"file_name"`
	MimeType   string `json:"mime_type"`
	Category   string `json:"category,omitempty"`
	SizeBytes  int64  `json:"size_bytes"`

	CreatedAt time.Time `json:"created_at"`
}

// KnowledgeFile is the dashboard listing view of an entry.
type KnowledgeFile struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Type      string      `json:"type"`
	Size      int64       `json:"size"`
	Status    EntryStatus `json:"status"`
	URL       string      `json:"url,omitempty"`
	Category  string      `json:"category,omitempty"`
	Summary   string      `json:"summary,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// ListKnowledgeFilesResponse is the response for listing knowledge files.
type ListKnowledgeFilesResponse struct {
	Files      []KnowledgeFile `json:"files"`
	NextCursor string          `json:"next_cursor,omitempty"`
	HasMore    bool            `json:"has_more"`
}

// IngestResponse returns the entry created (or reused) by an upload.
type IngestResponse struct {
	EntryID string `json:"entry_id"`
	URL     string `json:"url,omitempty"`
	Reused  bool   `json:"reused"`
}

// SearchResult is the grounding context returned by knowledge search.
type SearchResult struct {
	Text    string         `json:"text"`
	Entries []SearchSource `json:"entries"`
}

// SearchSource attributes one search hit to its source document.
type SearchSource struct {
	Title string  `json:"title"`
	Score float64 `json:"score,omitempty"`
}
