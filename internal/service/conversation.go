// Package service implements the core operations behind the HTTP surface:
// conversation lifecycle, message posting, contact sessions, and plugin
// configuration.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orbitdesk-ai/support-platform/internal/auth"
	"github.com/orbitdesk-ai/support-platform/internal/model"
	"github.com/orbitdesk-ai/support-platform/internal/store"
	"github.com/orbitdesk-ai/support-platform/pkg/errcode"
	"github.com/orbitdesk-ai/support-platform/pkg/logger"
	"github.com/orbitdesk-ai/support-platform/pkg/metrics"
	"github.com/orbitdesk-ai/support-platform/pkg/pagination"
)

// transitionRetries bounds the CAS retry loop on concurrent status writes.
const transitionRetries = 3

// ConversationService owns conversation lifecycle: creation, lookup with
// tenant scoping, and guarded status transitions.
type ConversationService struct {
	conversations store.ConversationStore
	threads       store.ThreadStore
	log           *logger.Logger
}

// NewConversationService wires the conversation service.
func NewConversationService(conversations store.ConversationStore, threads store.ThreadStore, log *logger.Logger) *ConversationService {
	return &ConversationService{conversations: conversations, threads: threads, log: log}
}

// Create starts a new conversation for a widget session and seeds the thread
// with the assistant greeting.
func (s *ConversationService) Create(ctx context.Context, caller auth.Caller, greeting string) (*model.Conversation, error) {
	if caller.Kind != auth.KindWidget {
		return nil, errcode.New(errcode.CodePermissionDenied, "only widget sessions start conversations")
	}

	now := time.Now().UTC()
	conv := &model.Conversation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		OrgID:     caller.OrgID,
		SessionID: caller.SessionID,
		ThreadID:  uuid.Must(uuid.NewV7()).String(),
		Status:    model.StatusUnresolved,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.conversations.Create(ctx, conv); err != nil {
		return nil, err
	}

	if greeting != "" {
		seed := &model.Message{
			ID:        uuid.Must(uuid.NewV7()).String(),
			ThreadID:  conv.ThreadID,
			OrgID:     conv.OrgID,
			Role:      model.RoleAssistant,
			Content:   greeting,
			Status:    model.MessageStatusSuccess,
			CreatedAt: now,
		}
		if seq, err := s.threads.Append(ctx, seed); err != nil {
			s.log.Warn("failed to seed greeting",
				zap.String("conversation_id", conv.ID), zap.Error(err))
		} else {
			seed.Sequence = seq
			conv.LastMessage = seed
		}
	}

	metrics.ConversationsTotal.WithLabelValues(conv.OrgID).Inc()
	s.log.Info("conversation created",
		zap.String("conversation_id", conv.ID),
		zap.String("org_id", conv.OrgID),
		zap.String("session_id", conv.SessionID))
	return conv, nil
}

// Get returns one conversation the caller may see. Cross-tenant and
// cross-session lookups report NotFound rather than PermissionDenied so ids
// leak no existence information.
func (s *ConversationService) Get(ctx context.Context, caller auth.Caller, id string) (*model.Conversation, error) {
	conv, _, err := s.conversations.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !callerOwns(caller, conv) {
		return nil, errcode.New(errcode.CodeNotFound, "conversation not found")
	}
	s.attachLastMessage(ctx, conv)
	return conv, nil
}

// GetByThread resolves the conversation behind a thread, caller-scoped.
func (s *ConversationService) GetByThread(ctx context.Context, caller auth.Caller, threadID string) (*model.Conversation, error) {
	conv, _, err := s.conversations.GetByThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if !callerOwns(caller, conv) {
		return nil, errcode.New(errcode.CodeNotFound, "conversation not found")
	}
	return conv, nil
}

// List returns the tenant's conversations newest first with an opaque cursor.
func (s *ConversationService) List(ctx context.Context, caller auth.Caller, status *model.ConversationStatus, cursor string, limit int) (*model.ListConversationsResponse, error) {
	if caller.Kind != auth.KindDashboard {
		return nil, errcode.New(errcode.CodePermissionDenied, "dashboard access required")
	}
	if status != nil && !status.Valid() {
		return nil, errcode.Newf(errcode.CodeInvalidArgument, "invalid status %q", *status)
	}

	limit = pagination.ClampLimit(limit)
	var afterCreatedMs int64
	var afterID string
	if cursor != "" {
		pos, err := pagination.Decode(cursor)
		if err != nil {
			return nil, errcode.Wrap(errcode.CodeInvalidArgument, "invalid cursor", err)
		}
		afterCreatedMs = int64(pos.Sequence)
		afterID = pos.ID
	}

	conversations, hasMore, err := s.conversations.List(ctx, caller.OrgID, status, afterCreatedMs, afterID, limit)
	if err != nil {
		return nil, err
	}
	for i := range conversations {
		s.attachLastMessage(ctx, &conversations[i])
	}

	resp := &model.ListConversationsResponse{
		Conversations: conversations,
		HasMore:       hasMore,
	}
	if hasMore && len(conversations) > 0 {
		last := conversations[len(conversations)-1]
		resp.NextCursor = pagination.Cursor{
			Sequence: uint64(last.CreatedAt.UnixMilli()),
			ID:       last.ID,
		}.Encode()
	}
	return resp, nil
}

// ListForSession returns the widget session's own conversations.
func (s *ConversationService) ListForSession(ctx context.Context, caller auth.Caller, limit int) ([]model.Conversation, error) {
	if caller.Kind != auth.KindWidget {
		return nil, errcode.New(errcode.CodePermissionDenied, "widget session required")
	}
	limit = pagination.ClampLimit(limit)
	conversations, err := s.conversations.ListBySession(ctx, caller.OrgID, caller.SessionID, limit)
	if err != nil {
		return nil, err
	}
	for i := range conversations {
		s.attachLastMessage(ctx, &conversations[i])
	}
	return conversations, nil
}

// Escalate moves the conversation to escalated. Escalating an already
// escalated conversation is a no-op.
func (s *ConversationService) Escalate(ctx context.Context, orgID, id string) (*model.Conversation, error) {
	return s.transition(ctx, orgID, id, model.StatusEscalated)
}

// Resolve moves the conversation to resolved. Resolving an already resolved
// conversation is a no-op.
func (s *ConversationService) Resolve(ctx context.Context, orgID, id string) (*model.Conversation, error) {
	return s.transition(ctx, orgID, id, model.StatusResolved)
}

// transition applies a status change under the store's revision guard,
// retrying when a concurrent writer moved the conversation first. The
// re-read on retry re-checks transition validity against the new state, so
// exactly one of two racing conflicting transitions wins.
func (s *ConversationService) transition(ctx context.Context, orgID, id string, target model.ConversationStatus) (*model.Conversation, error) {
	var lastErr error
	for attempt := 0; attempt < transitionRetries; attempt++ {
		conv, revision, err := s.conversations.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if conv.OrgID != orgID {
			return nil, errcode.New(errcode.CodeNotFound, "conversation not found")
		}
		if conv.Status == target {
			return conv, nil
		}
		if !transitionAllowed(conv.Status, target) {
			metrics.ConversationTransitions.WithLabelValues(string(target), "rejected").Inc()
			return nil, errcode.Newf(errcode.CodeFailedPrecondition,
				"cannot move %s conversation to %s", conv.Status, target)
		}

		from := conv.Status
		conv.Status = target
		conv.UpdatedAt = time.Now().UTC()
		if err := s.conversations.Update(ctx, conv, revision); err != nil {
			if errcode.Is(err, errcode.CodeConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}

		metrics.ConversationTransitions.WithLabelValues(string(target), "applied").Inc()
		s.log.Info("conversation transitioned",
			zap.String("conversation_id", id),
			zap.String("org_id", orgID),
			zap.String("from", string(from)),
			zap.String("to", string(target)))
		return conv, nil
	}
	return nil, errcode.Wrap(errcode.CodeConflict, "conversation is being modified concurrently", lastErr)
}

// transitionAllowed encodes the status machine: resolved conversations may
// be reopened only by escalation, and resolution is reachable from any
// active state.
func transitionAllowed(from, to model.ConversationStatus) bool {
	switch to {
	case model.StatusEscalated:
		return from == model.StatusUnresolved || from == model.StatusResolved
	case model.StatusResolved:
		return from == model.StatusUnresolved || from == model.StatusEscalated
	default:
		return false
	}
}

func callerOwns(caller auth.Caller, conv *model.Conversation) bool {
	if conv.OrgID != caller.OrgID {
		return false
	}
	if caller.Kind == auth.KindWidget {
		return conv.SessionID == caller.SessionID
	}
	return true
}

func (s *ConversationService) attachLastMessage(ctx context.Context, conv *model.Conversation) {
	last, err := s.threads.Last(ctx, conv.OrgID, conv.ThreadID)
	if err != nil {
		s.log.Debug("failed to load last message",
			zap.String("conversation_id", conv.ID), zap.Error(err))
		return
	}
	conv.LastMessage = last
}
