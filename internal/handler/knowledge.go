package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/orbitdesk-ai/support-platform/internal/auth"
	"github.com/orbitdesk-ai/support-platform/internal/knowledge"
	"github.com/orbitdesk-ai/support-platform/internal/middleware"
	"github.com/orbitdesk-ai/support-platform/internal/model"
	"github.com/orbitdesk-ai/support-platform/pkg/errcode"
	"github.com/orbitdesk-ai/support-platform/pkg/logger"
	"github.com/orbitdesk-ai/support-platform/pkg/pagination"
)

const maxMultipartMemory = 32 << 20

// KnowledgeHandler serves the dashboard knowledge base endpoints.
type KnowledgeHandler struct {
	pipeline *knowledge.Pipeline
	searcher *knowledge.Searcher
	logger   *logger.Logger
}

// NewKnowledgeHandler creates a new knowledge handler.
func NewKnowledgeHandler(pipeline *knowledge.Pipeline, searcher *knowledge.Searcher, log *logger.Logger) *KnowledgeHandler {
	return &KnowledgeHandler{
		pipeline: pipeline,
		searcher: searcher,
		logger:   log,
	}
}

// Upload handles POST /api/v1/knowledge/files (multipart).
func (h *KnowledgeHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := auth.FromContext(ctx)
	if !ok {
		writeError(w, errcode.New(errcode.CodeUnauthenticated, "authentication required"))
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeBadRequest(w, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeBadRequest(w, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeBadRequest(w, "failed to read file")
		return
	}

	resp, err := h.pipeline.Ingest(ctx, knowledge.IngestRequest{
		Namespace:  knowledge.NamespaceForOrg(caller.OrgID),
		Title:      r.FormValue("title"),
		FileName:   header.Filename,
		MimeType:   header.Header.Get("Content-Type"),
		Category:   r.FormValue("category"),
		UploadedBy: caller.UserID,
		Data:       data,
	})
	if err != nil {
		h.logger.Warn("knowledge upload failed",
			zap.String("org_id", caller.OrgID),
			zap.String("file_name", header.Filename),
			zap.Error(err))
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if resp.Reused {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

// List handles GET /api/v1/knowledge/files
func (h *KnowledgeHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := auth.FromContext(ctx)
	if !ok {
		writeError(w, errcode.New(errcode.CodeUnauthenticated, "authentication required"))
		return
	}

	limit := pagination.ClampLimit(queryInt(r, "limit"))
	var afterCreatedMs int64
	var afterID string
	if cursor := r.URL.Query().Get("cursor"); cursor != "" {
		pos, err := pagination.Decode(cursor)
		if err != nil {
			writeBadRequest(w, "invalid cursor")
			return
		}
		afterCreatedMs = int64(pos.Sequence)
		afterID = pos.ID
	}

	files, hasMore, err := h.pipeline.ListFiles(ctx, knowledge.NamespaceForOrg(caller.OrgID),
		r.URL.Query().Get("category"), afterCreatedMs, afterID, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := model.ListKnowledgeFilesResponse{Files: files, HasMore: hasMore}
	if hasMore && len(files) > 0 {
		last := files[len(files)-1]
		resp.NextCursor = pagination.Cursor{
			Sequence: uint64(last.CreatedAt.UnixMilli()),
			ID:       last.ID,
		}.Encode()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Delete handles DELETE /api/v1/knowledge/files/{id}
func (h *KnowledgeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := auth.FromContext(ctx)
	if !ok {
		writeError(w, errcode.New(errcode.CodeUnauthenticated, "authentication required"))
		return
	}

	entryID := chi.URLParam(r, "id")
	if err := middleware.ValidateID(entryID); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := h.pipeline.Delete(ctx, knowledge.NamespaceForOrg(caller.OrgID), entryID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/v1/knowledge/search?q=...
func (h *KnowledgeHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := auth.FromContext(ctx)
	if !ok {
		writeError(w, errcode.New(errcode.CodeUnauthenticated, "authentication required"))
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		writeBadRequest(w, "q parameter is required")
		return
	}

	result, err := h.searcher.Search(ctx, knowledge.NamespaceForOrg(caller.OrgID), query, queryInt(r, "limit"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
