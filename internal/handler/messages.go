package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/orbitdesk-ai/support-platform/internal/auth"
	"github.com/orbitdesk-ai/support-platform/internal/middleware"
	"github.com/orbitdesk-ai/support-platform/internal/model"
	"github.com/orbitdesk-ai/support-platform/internal/service"
	"github.com/orbitdesk-ai/support-platform/pkg/errcode"
	"github.com/orbitdesk-ai/support-platform/pkg/logger"
)

// MessageHandler serves message listing and posting for both surfaces.
type MessageHandler struct {
	service *service.MessageService
	logger  *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(svc *service.MessageService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		service: svc,
		logger:  log,
	}
}

// List handles GET .../conversations/{id}/messages
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := auth.FromContext(ctx)
	if !ok {
		writeError(w, errcode.New(errcode.CodeUnauthenticated, "authentication required"))
		return
	}

	conversationID := chi.URLParam(r, "id")
	if err := middleware.ValidateID(conversationID); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	resp, err := h.service.List(ctx, caller, conversationID, r.URL.Query().Get("cursor"), queryInt(r, "limit"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Post handles POST .../conversations/{id}/messages
func (h *MessageHandler) Post(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := auth.FromContext(ctx)
	if !ok {
		writeError(w, errcode.New(errcode.CodeUnauthenticated, "authentication required"))
		return
	}

	conversationID := chi.URLParam(r, "id")
	if err := middleware.ValidateID(conversationID); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	var req model.PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	resp, err := h.service.Post(ctx, caller, conversationID, req.Content)
	if err != nil {
		h.logger.Warn("failed to post message",
			zap.String("conversation_id", conversationID), zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}
