package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orbitdesk-ai/support-platform/internal/agent"
	"github.com/orbitdesk-ai/support-platform/internal/auth"
	"github.com/orbitdesk-ai/support-platform/internal/model"
	"github.com/orbitdesk-ai/support-platform/internal/store"
	"github.com/orbitdesk-ai/support-platform/pkg/errcode"
	"github.com/orbitdesk-ai/support-platform/pkg/logger"
	"github.com/orbitdesk-ai/support-platform/pkg/metrics"
	"github.com/orbitdesk-ai/support-platform/pkg/pagination"
)

const maxMessageBytes = 8192

// MessageService posts user messages and reads thread history. Posting a
// message triggers one agent turn; the user message is durable even when the
// agent turn fails.
type MessageService struct {
	conversations *ConversationService
	threads       store.ThreadStore
	agent         *agent.Runtime
	agentTimeout  time.Duration
	log           *logger.Logger
}

// NewMessageService wires the message service. agentTimeout bounds each
// agent turn independently of the request context.
func NewMessageService(conversations *ConversationService, threads store.ThreadStore, runtime *agent.Runtime, agentTimeout time.Duration, log *logger.Logger) *MessageService {
	if agentTimeout <= 0 {
		agentTimeout = 90 * time.Second
	}
	return &MessageService{
		conversations: conversations,
		threads:       threads,
		agent:         runtime,
		agentTimeout:  agentTimeout,
		log:           log,
	}
}

// Post appends the caller's message to the conversation and runs one agent
// turn. The response carries the persisted user message and, when the agent
// turn succeeded, the assistant reply.
func (s *MessageService) Post(ctx context.Context, caller auth.Caller, conversationID, content string) (*model.PostMessageResponse, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errcode.New(errcode.CodeInvalidArgument, "message content is required")
	}
	if len(content) > maxMessageBytes {
		return nil, errcode.Newf(errcode.CodeInvalidArgument, "message exceeds %d bytes", maxMessageBytes)
	}

	conv, err := s.conversations.Get(ctx, caller, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.Status == model.StatusResolved {
		return nil, errcode.New(errcode.CodeFailedPrecondition, "conversation is resolved")
	}

	userMsg := &model.Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		ThreadID:  conv.ThreadID,
		OrgID:     conv.OrgID,
		Role:      model.RoleUser,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	seq, err := s.threads.Append(ctx, userMsg)
	if err != nil {
		return nil, err
	}
	userMsg.Sequence = seq
	metrics.MessagesTotal.WithLabelValues(conv.OrgID, string(model.RoleUser)).Inc()

	resp := &model.PostMessageResponse{UserMessage: userMsg}
	if s.agent == nil {
		return resp, nil
	}

	agentCtx, cancel := context.WithTimeout(ctx, s.agentTimeout)
	defer cancel()
	assistant, err := s.agent.Run(agentCtx, conv)
	if err != nil {
		// The user message is already durable; surface the agent failure.
		s.log.Warn("agent turn failed",
			zap.String("conversation_id", conv.ID),
			zap.String("org_id", conv.OrgID),
			zap.Error(err))
		return nil, err
	}
	metrics.MessagesTotal.WithLabelValues(conv.OrgID, string(model.RoleAssistant)).Inc()
	resp.AssistantMessage = assistant
	return resp, nil
}

// ListAfter returns thread messages with sequence greater than afterSeq.
// The SSE feed uses this raw-sequence form for resumable replay.
func (s *MessageService) ListAfter(ctx context.Context, caller auth.Caller, conversationID string, afterSeq uint64, limit int) (*model.ListMessagesResponse, error) {
	conv, err := s.conversations.Get(ctx, caller, conversationID)
	if err != nil {
		return nil, err
	}
	messages, hasMore, err := s.threads.List(ctx, conv.OrgID, conv.ThreadID, afterSeq, pagination.ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	return &model.ListMessagesResponse{Messages: messages, HasMore: hasMore}, nil
}

// List returns thread messages in storage order with an opaque cursor.
func (s *MessageService) List(ctx context.Context, caller auth.Caller, conversationID, cursor string, limit int) (*model.ListMessagesResponse, error) {
	conv, err := s.conversations.Get(ctx, caller, conversationID)
	if err != nil {
		return nil, err
	}

	limit = pagination.ClampLimit(limit)
	var afterSeq uint64
	if cursor != "" {
		pos, err := pagination.Decode(cursor)
		if err != nil {
			return nil, errcode.Wrap(errcode.CodeInvalidArgument, "invalid cursor", err)
		}
		afterSeq = pos.Sequence
	}

	messages, hasMore, err := s.threads.List(ctx, conv.OrgID, conv.ThreadID, afterSeq, limit)
	if err != nil {
		return nil, err
	}

	resp := &model.ListMessagesResponse{
		Messages: messages,
		HasMore:  hasMore,
	}
	if hasMore && len(messages) > 0 {
		last := messages[len(messages)-1]
		resp.NextCursor = pagination.Cursor{Sequence: last.Sequence, ID: last.ID}.Encode()
	}
	return resp, nil
}
