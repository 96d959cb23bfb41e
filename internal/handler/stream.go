package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/orbitdesk-ai/support-platform/internal/auth"
	"github.com/orbitdesk-ai/support-platform/internal/middleware"
	"github.com/orbitdesk-ai/support-platform/internal/service"
	"github.com/orbitdesk-ai/support-platform/pkg/errcode"
	"github.com/orbitdesk-ai/support-platform/pkg/logger"
	"github.com/orbitdesk-ai/support-platform/pkg/metrics"
)

const (
	streamPollInterval = 2 * time.Second
	streamReplayBatch  = 50
	heartbeatInterval  = 30 * time.Second
)

// StreamHandler serves the widget's live message feed over SSE: a replay of
// the thread from a resumable sequence position, then new messages as they
// are appended.
type StreamHandler struct {
	messages      *service.MessageService
	conversations *service.ConversationService
	logger        *logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(messages *service.MessageService, conversations *service.ConversationService, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		messages:      messages,
		conversations: conversations,
		logger:        log,
	}
}

// ReplayCompleteEvent marks the end of the replay phase.
type ReplayCompleteEvent struct {
	LastSequence uint64 `json:"last_sequence"`
	MessageCount int    `json:"message_count"`
}

// HeartbeatEvent keeps idle connections alive.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// Stream handles GET /widget/v1/conversations/{id}/stream
// Supports ?after_sequence=N for resuming from a specific point.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := auth.FromContext(ctx)
	if !ok {
		writeError(w, errcode.New(errcode.CodeUnauthenticated, "session required"))
		return
	}

	conversationID := chi.URLParam(r, "id")
	if err := middleware.ValidateID(conversationID); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if _, err := h.conversations.Get(ctx, caller, conversationID); err != nil {
		writeError(w, err)
		return
	}

	var afterSequence uint64
	if seqStr := r.URL.Query().Get("after_sequence"); seqStr != "" {
		if seq, err := strconv.ParseUint(seqStr, 10, 64); err == nil {
			afterSequence = seq
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, errcode.New(errcode.CodeInternal, "streaming not supported"))
		return
	}

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	done := ctx.Done()
	sendSSEEvent(w, flusher, "connected", map[string]string{
		"conversation_id": conversationID,
	})

	lastSequence, replayed, err := h.replay(w, flusher, r, caller, conversationID, afterSequence)
	if err != nil {
		h.logger.Error("failed to replay messages",
			zap.String("conversation_id", conversationID), zap.Error(err))
		sendSSEEvent(w, flusher, "error", map[string]string{
			"code":    "replay_error",
			"message": "Failed to replay messages",
		})
		return
	}
	sendSSEEvent(w, flusher, "replay_complete", &ReplayCompleteEvent{
		LastSequence: lastSequence,
		MessageCount: replayed,
	})

	poll := time.NewTicker(streamPollInterval)
	defer poll.Stop()
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-done:
			h.logger.Info("SSE client disconnected",
				zap.String("conversation_id", conversationID))
			return

		case <-poll.C:
			seq, _, err := h.replay(w, flusher, r, caller, conversationID, lastSequence)
			if err != nil {
				h.logger.Warn("failed to poll for new messages",
					zap.String("conversation_id", conversationID), zap.Error(err))
				continue
			}
			if seq > lastSequence {
				lastSequence = seq
			}

		case <-heartbeat.C:
			sendSSEEvent(w, flusher, "heartbeat", &HeartbeatEvent{Timestamp: time.Now()})
		}
	}
}

// replay streams thread messages after the given sequence and returns the
// last sequence sent.
func (h *StreamHandler) replay(w http.ResponseWriter, flusher http.Flusher, r *http.Request, caller auth.Caller, conversationID string, afterSequence uint64) (uint64, int, error) {
	lastSequence := afterSequence
	total := 0
	for {
		resp, err := h.messages.ListAfter(r.Context(), caller, conversationID, lastSequence, streamReplayBatch)
		if err != nil {
			return lastSequence, total, err
		}
		for _, msg := range resp.Messages {
			select {
			case <-r.Context().Done():
				return lastSequence, total, nil
			default:
			}
			sendSSEEvent(w, flusher, "message", msg)
			lastSequence = msg.Sequence
			total++
		}
		if !resp.HasMore {
			return lastSequence, total, nil
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	flusher.Flush()
}
