package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orbitdesk-ai/support-platform/internal/knowledge"
	"github.com/orbitdesk-ai/support-platform/internal/llm"
	"github.com/orbitdesk-ai/support-platform/internal/model"
	"github.com/orbitdesk-ai/support-platform/internal/store"
	"github.com/orbitdesk-ai/support-platform/pkg/errcode"
	"github.com/orbitdesk-ai/support-platform/pkg/logger"
	"github.com/orbitdesk-ai/support-platform/pkg/metrics"
)

const (
	defaultMaxRounds      = 6
	historyLimit          = 50
	searchLimitCap        = 10
	defaultSearchArgLimit = 5
)

// KnowledgeSearcher grounds agent answers in the tenant's knowledge base.
type KnowledgeSearcher interface {
	Search(ctx context.Context, namespace, query string, limit int) (*model.SearchResult, error)
}

// ConversationControl lets agent tools change conversation status through
// the same guarded transitions the dashboard uses.
type ConversationControl interface {
	Escalate(ctx context.Context, orgID, conversationID string) (*model.Conversation, error)
	Resolve(ctx context.Context, orgID, conversationID string) (*model.Conversation, error)
}

// Config wires a Runtime.
type Config struct {
	LLM       llm.Client
	Threads   store.ThreadStore
	Knowledge KnowledgeSearcher
	Control   ConversationControl
	Model     string
	AgentName string
	MaxRounds int
	Logger    *logger.Logger
}

// Runtime drives one agent turn: it replays the thread, calls the model in a
// bounded tool loop, executes tool calls, and persists the final assistant
// message.
type Runtime struct {
	llm       llm.Client
	threads   store.ThreadStore
	knowledge KnowledgeSearcher
	control   ConversationControl
	model     string
	agentName string
	maxRounds int
	log       *logger.Logger
}

// NewRuntime validates and wires the agent runtime.
func NewRuntime(cfg Config) (*Runtime, error) {
	if cfg.LLM == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if cfg.Threads == nil {
		return nil, fmt.Errorf("thread store is required")
	}
	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxRounds
	}
	agentName := cfg.AgentName
	if agentName == "" {
		agentName = "Orbit"
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Runtime{
		llm:       cfg.LLM,
		threads:   cfg.Threads,
		knowledge: cfg.Knowledge,
		control:   cfg.Control,
		model:     cfg.Model,
		agentName: agentName,
		maxRounds: maxRounds,
		log:       log,
	}, nil
}

// Run produces the assistant reply to the latest user message, which the
// caller has already appended to the thread. The returned message is
// persisted before Run returns. A resolved conversation rejects the turn
// with FailedPrecondition.
func (r *Runtime) Run(ctx context.Context, conv *model.Conversation) (*model.Message, error) {
	if conv.Status == model.StatusResolved {
		return nil, errcode.New(errcode.CodeFailedPrecondition, "conversation is resolved")
	}

	history, _, err := r.threads.List(ctx, conv.OrgID, conv.ThreadID, 0, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("load thread history: %w", err)
	}

	messages := make([]llm.ChatMessage, 0, len(history))
	for _, msg := range history {
		if msg.Role != model.RoleUser && msg.Role != model.RoleAssistant {
			continue
		}
		if msg.Status == model.MessageStatusFailed {
			continue
		}
		messages = append(messages, llm.ChatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	start := time.Now()
	reply, rounds, usage, runErr := r.loop(ctx, conv, messages)
	if runErr != nil {
		metrics.RecordAgentRun("error", time.Since(start).Seconds(), rounds)
		r.persistFailure(ctx, conv, runErr)
		return nil, runErr
	}
	metrics.RecordAgentRun("success", time.Since(start).Seconds(), rounds)
	metrics.RecordLLMUsage(r.model, usage.TokensIn, usage.TokensOut)

	assistant := &model.Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		ThreadID:  conv.ThreadID,
		OrgID:     conv.OrgID,
		Role:      model.RoleAssistant,
		Content:   reply,
		AgentName: r.agentName,
		Model:     r.model,
		Usage:     &usage,
		Status:    model.MessageStatusSuccess,
		CreatedAt: time.Now().UTC(),
	}
	seq, err := r.threads.Append(ctx, assistant)
	if err != nil {
		return nil, fmt.Errorf("persist assistant message: %w", err)
	}
	assistant.Sequence = seq

	r.log.Info("agent turn completed",
		zap.String("conversation_id", conv.ID),
		zap.String("org_id", conv.OrgID),
		zap.Int("rounds", rounds),
		zap.Int("tokens_in", usage.TokensIn),
		zap.Int("tokens_out", usage.TokensOut))
	return assistant, nil
}

// loop runs the bounded generate/dispatch cycle and returns the final text.
func (r *Runtime) loop(ctx context.Context, conv *model.Conversation, messages []llm.ChatMessage) (string, int, model.Usage, error) {
	var usage model.Usage
	system := systemPrompt(r.agentName)

	for round := 0; round < r.maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return "", round, usage, errcode.Wrap(errcode.CodeUnavailable, "agent turn cancelled", err)
		}

		resp, err := r.llm.Generate(ctx, &llm.GenerationRequest{
			Model:    r.model,
			System:   system,
			Messages: messages,
			Tools:    ToolDefinitions,
		})
		if err != nil {
			return "", round, usage, errcode.Wrap(errcode.CodeUnavailable, "model generation failed", err)
		}
		usage.TokensIn += resp.TokensIn
		usage.TokensOut += resp.TokensOut

		if len(resp.ToolCalls) == 0 {
			content := strings.TrimSpace(resp.Content)
			if content == "" {
				return "", round + 1, usage, errcode.New(errcode.CodeUnavailable, "model returned an empty reply")
			}
			return content, round + 1, usage, nil
		}

		// The assistant message with its tool_use blocks must precede the
		// tool results for the next round's pairing.
		messages = append(messages, llm.ChatMessage{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			content := r.executeTool(ctx, conv, call)
			messages = append(messages, llm.ChatMessage{
				Role:       "tool",
				Content:    content,
				ToolCallID: call.ID,
				Name:       call.Name,
			})
		}
	}

	return "", r.maxRounds, usage, errcode.New(errcode.CodeUnavailable, "agent exceeded tool round limit")
}

// executeTool dispatches one tool call. Failures come back as result text so
// the model can explain the problem to the customer instead of the turn
// aborting.
func (r *Runtime) executeTool(ctx context.Context, conv *model.Conversation, call llm.ToolCall) string {
	content, err := r.dispatch(ctx, conv, call)
	if err != nil {
		metrics.RecordToolCall(call.Name, "error")
		r.log.Warn("tool execution failed",
			zap.String("tool", call.Name),
			zap.String("conversation_id", conv.ID),
			zap.Error(err))
		return fmt.Sprintf("Tool %s failed: %v", call.Name, err)
	}
	metrics.RecordToolCall(call.Name, "success")
	return content
}

func (r *Runtime) dispatch(ctx context.Context, conv *model.Conversation, call llm.ToolCall) (string, error) {
	switch ToolKind(call.Name) {
	case ToolSearchKnowledge:
		var args searchKnowledgeArgs
		if err := decodeArgs(call, &args); err != nil {
			return "", err
		}
		return r.searchKnowledge(ctx, conv.OrgID, args)

	case ToolEscalate:
		var args escalateArgs
		if err := decodeArgs(call, &args); err != nil {
			return "", err
		}
		if r.control == nil {
			return "", errcode.New(errcode.CodeUnavailable, "escalation is not configured")
		}
		if _, err := r.control.Escalate(ctx, conv.OrgID, conv.ID); err != nil {
			return "", err
		}
		conv.Status = model.StatusEscalated
		return "The conversation has been escalated to a human agent.", nil

	case ToolResolve:
		var args resolveArgs
		if err := decodeArgs(call, &args); err != nil {
			return "", err
		}
		if r.control == nil {
			return "", errcode.New(errcode.CodeUnavailable, "resolution is not configured")
		}
		if _, err := r.control.Resolve(ctx, conv.OrgID, conv.ID); err != nil {
			return "", err
		}
		conv.Status = model.StatusResolved
		return "The conversation has been marked resolved.", nil

	default:
		return "", errcode.Newf(errcode.CodeInvalidArgument, "unknown tool %q", call.Name)
	}
}

func (r *Runtime) searchKnowledge(ctx context.Context, orgID string, args searchKnowledgeArgs) (string, error) {
	if r.knowledge == nil {
		return "", errcode.New(errcode.CodeUnavailable, "knowledge base is not configured")
	}
	if strings.TrimSpace(args.Query) == "" {
		return "", errcode.New(errcode.CodeInvalidArgument, "query is required")
	}
	limit := args.Limit
	if limit <= 0 || limit > searchLimitCap {
		limit = defaultSearchArgLimit
	}
	result, err := r.knowledge.Search(ctx, knowledge.NamespaceForOrg(orgID), args.Query, limit)
	if err != nil {
		return "", err
	}
	if result.Text == "" {
		return "No relevant knowledge base entries were found.", nil
	}
	return result.Text, nil
}

// persistFailure records a failed assistant message so the thread shows the
// customer something went wrong instead of silently dropping the turn.
func (r *Runtime) persistFailure(ctx context.Context, conv *model.Conversation, cause error) {
	failed := &model.Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		ThreadID:  conv.ThreadID,
		OrgID:     conv.OrgID,
		Role:      model.RoleAssistant,
		Content:   "Sorry, something went wrong while answering. Please try again.",
		AgentName: r.agentName,
		Model:     r.model,
		Status:    model.MessageStatusFailed,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := r.threads.Append(ctx, failed); err != nil {
		r.log.Error("failed to persist failure message",
			zap.String("conversation_id", conv.ID),
			zap.NamedError("cause", cause),
			zap.Error(err))
	}
}
