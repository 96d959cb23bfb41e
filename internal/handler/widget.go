package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/orbitdesk-ai/support-platform/internal/agent"
	"github.com/orbitdesk-ai/support-platform/internal/auth"
	"github.com/orbitdesk-ai/support-platform/internal/middleware"
	"github.com/orbitdesk-ai/support-platform/internal/model"
	"github.com/orbitdesk-ai/support-platform/internal/service"
	"github.com/orbitdesk-ai/support-platform/pkg/errcode"
	"github.com/orbitdesk-ai/support-platform/pkg/logger"
)

// WidgetHandler serves the embeddable widget surface: contact sessions and
// session-scoped conversations.
type WidgetHandler struct {
	sessions      *service.SessionService
	conversations *service.ConversationService
	logger        *logger.Logger
}

// NewWidgetHandler creates a new widget handler.
func NewWidgetHandler(sessions *service.SessionService, conversations *service.ConversationService, log *logger.Logger) *WidgetHandler {
	return &WidgetHandler{
		sessions:      sessions,
		conversations: conversations,
		logger:        log,
	}
}

// CreateSession handles POST /widget/v1/sessions
func (h *WidgetHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req model.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if err := middleware.ValidateOrgID(req.OrgID); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if ua := r.UserAgent(); ua != "" {
		if req.Metadata == nil {
			req.Metadata = make(map[string]string)
		}
		req.Metadata["user_agent"] = ua
	}

	resp, err := h.sessions.Create(r.Context(), req)
	if err != nil {
		h.logger.Warn("failed to create contact session",
			zap.String("org_id", req.OrgID), zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// CreateConversation handles POST /widget/v1/conversations
func (h *WidgetHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := auth.FromContext(ctx)
	if !ok {
		writeError(w, errcode.New(errcode.CodeUnauthenticated, "session required"))
		return
	}

	conv, err := h.conversations.Create(ctx, caller, agent.GreetingMessage)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

// ListConversations handles GET /widget/v1/conversations
func (h *WidgetHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := auth.FromContext(ctx)
	if !ok {
		writeError(w, errcode.New(errcode.CodeUnauthenticated, "session required"))
		return
	}

	conversations, err := h.conversations.ListForSession(ctx, caller, queryInt(r, "limit"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": conversations})
}
