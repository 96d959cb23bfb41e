package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitdesk-ai/support-platform/internal/agent"
	"github.com/orbitdesk-ai/support-platform/internal/auth"
	"github.com/orbitdesk-ai/support-platform/internal/llm"
	"github.com/orbitdesk-ai/support-platform/internal/model"
	"github.com/orbitdesk-ai/support-platform/internal/store/memory"
	"github.com/orbitdesk-ai/support-platform/pkg/errcode"
	"github.com/orbitdesk-ai/support-platform/pkg/logger"
	"github.com/orbitdesk-ai/support-platform/pkg/metrics"
)

type cannedLLM struct {
	reply string
	err   error
}

func (c *cannedLLM) Generate(ctx context.Context, req *llm.GenerationRequest) (*llm.GenerationResponse, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &llm.GenerationResponse{Content: c.reply, TokensIn: 5, TokensOut: 5}, nil
}

func (c *cannedLLM) Name() string     { return "canned" }
func (c *cannedLLM) Models() []string { return nil }

// sequenceLLM returns its responses in order, one per Generate call.
type sequenceLLM struct {
	responses []*llm.GenerationResponse
	calls     int
}

func (s *sequenceLLM) Generate(ctx context.Context, req *llm.GenerationRequest) (*llm.GenerationResponse, error) {
	if s.calls >= len(s.responses) {
		return nil, errors.New("no scripted response left")
	}
	resp := s.responses[s.calls]
	s.calls++
	return resp, nil
}

func (s *sequenceLLM) Name() string     { return "sequence" }
func (s *sequenceLLM) Models() []string { return nil }

func widgetCallerWithSession(sessionID string) auth.Caller {
	return auth.Widget(sessionID, "org-a")
}

func newMessageFixture(t *testing.T, client llm.Client) (*MessageService, *ConversationService, *memory.ThreadStore) {
	t.Helper()
	threads := memory.NewThreadStore()
	conversations := NewConversationService(memory.NewConversationStore(), threads, logger.NewNop())

	var runtime *agent.Runtime
	if client != nil {
		var err error
		runtime, err = agent.NewRuntime(agent.Config{
			LLM:     client,
			Threads: threads,
			Control: conversations,
			Model:   "test-model",
			Logger:  logger.NewNop(),
		})
		require.NoError(t, err)
	}
	return NewMessageService(conversations, threads, runtime, time.Minute, logger.NewNop()), conversations, threads
}

func TestPostMessageRunsAgentTurn(t *testing.T) {
	ctx := context.Background()
	messages, conversations, _ := newMessageFixture(t, &cannedLLM{reply: "Happy to help!"})

	conv, err := conversations.Create(ctx, widgetCaller(), "")
	require.NoError(t, err)

	resp, err := messages.Post(ctx, widgetCaller(), conv.ID, "hello there")
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.UserMessage.Content)
	require.NotNil(t, resp.AssistantMessage)
	assert.Equal(t, "Happy to help!", resp.AssistantMessage.Content)
	assert.Greater(t, resp.AssistantMessage.Sequence, resp.UserMessage.Sequence)
}

func TestPostMessageRejectsEmptyContent(t *testing.T) {
	ctx := context.Background()
	messages, conversations, _ := newMessageFixture(t, nil)

	conv, err := conversations.Create(ctx, widgetCaller(), "")
	require.NoError(t, err)

	_, err = messages.Post(ctx, widgetCaller(), conv.ID, "   ")
	assert.True(t, errcode.Is(err, errcode.CodeInvalidArgument))
}

func TestPostMessageRejectsResolvedConversation(t *testing.T) {
	ctx := context.Background()
	messages, conversations, _ := newMessageFixture(t, nil)

	conv, err := conversations.Create(ctx, widgetCaller(), "")
	require.NoError(t, err)
	_, err = conversations.Resolve(ctx, "org-a", conv.ID)
	require.NoError(t, err)

	_, err = messages.Post(ctx, widgetCaller(), conv.ID, "are you still there?")
	assert.True(t, errcode.Is(err, errcode.CodeFailedPrecondition))
}

func TestPostMessageResolveToolClosesConversation(t *testing.T) {
	ctx := context.Background()
	client := &sequenceLLM{responses: []*llm.GenerationResponse{
		{ToolCalls: []llm.ToolCall{{
			ID:        "call-1",
			Name:      string(agent.ToolResolve),
			Arguments: json.RawMessage(`{"summary":"customer cancelled their order"}`),
		}}},
		{Content: "Your order is cancelled. Take care!"},
	}}
	messages, conversations, _ := newMessageFixture(t, client)

	conv, err := conversations.Create(ctx, widgetCaller(), "")
	require.NoError(t, err)

	resp, err := messages.Post(ctx, widgetCaller(), conv.ID, "I want to cancel my order and I'm done, thanks")
	require.NoError(t, err)
	require.NotNil(t, resp.AssistantMessage)
	assert.Equal(t, "Your order is cancelled. Take care!", resp.AssistantMessage.Content)

	updated, err := conversations.Get(ctx, widgetCaller(), conv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusResolved, updated.Status)

	_, err = messages.Post(ctx, widgetCaller(), conv.ID, "actually wait")
	assert.True(t, errcode.Is(err, errcode.CodeFailedPrecondition))
}

func TestPostMessageUserDurableWhenAgentFails(t *testing.T) {
	ctx := context.Background()
	messages, conversations, threads := newMessageFixture(t, &cannedLLM{err: errors.New("provider down")})

	conv, err := conversations.Create(ctx, widgetCaller(), "")
	require.NoError(t, err)

	_, err = messages.Post(ctx, widgetCaller(), conv.ID, "is anyone there?")
	require.Error(t, err)
	assert.True(t, errcode.Is(err, errcode.CodeUnavailable))

	// The user message survives the failed turn, plus the failure marker.
	persisted, _, err := threads.List(ctx, "org-a", conv.ThreadID, 0, 0)
	require.NoError(t, err)
	require.NotEmpty(t, persisted)
	assert.Equal(t, "is anyone there?", persisted[0].Content)
	last := persisted[len(persisted)-1]
	assert.Equal(t, model.MessageStatusFailed, last.Status)
}

func TestPostMessageCrossSessionReadsAsNotFound(t *testing.T) {
	ctx := context.Background()
	messages, conversations, _ := newMessageFixture(t, nil)

	conv, err := conversations.Create(ctx, widgetCaller(), "")
	require.NoError(t, err)

	_, err = messages.Post(ctx, widgetCallerWithSession("sess-other"), conv.ID, "hi")
	assert.True(t, errcode.Is(err, errcode.CodeNotFound))
}

// Runs a create and a full agent turn through the real collectors so a
// label-set change in pkg/metrics fails here instead of panicking in
// production.
func TestPostMessageRecordsTenantMetrics(t *testing.T) {
	ctx := context.Background()
	messages, conversations, _ := newMessageFixture(t, &cannedLLM{reply: "On it."})
	caller := auth.Widget("sess-metrics", "org-metrics")

	conv, err := conversations.Create(ctx, caller, "welcome")
	require.NoError(t, err)
	assert.Equal(t, 1.0,
		testutil.ToFloat64(metrics.ConversationsTotal.WithLabelValues("org-metrics")))

	_, err = messages.Post(ctx, caller, conv.ID, "hello")
	require.NoError(t, err)
	assert.Equal(t, 1.0,
		testutil.ToFloat64(metrics.MessagesTotal.WithLabelValues("org-metrics", "user")))
	assert.Equal(t, 1.0,
		testutil.ToFloat64(metrics.MessagesTotal.WithLabelValues("org-metrics", "assistant")))
}

func TestListMessagesPaginatesBySequence(t *testing.T) {
	ctx := context.Background()
	messages, conversations, threads := newMessageFixture(t, nil)

	conv, err := conversations.Create(ctx, widgetCaller(), "")
	require.NoError(t, err)
	for _, content := range []string{"one", "two", "three"} {
		_, err := threads.Append(ctx, &model.Message{
			OrgID: "org-a", ThreadID: conv.ThreadID,
			Role: model.RoleUser, Content: content,
		})
		require.NoError(t, err)
	}

	page1, err := messages.List(ctx, widgetCaller(), conv.ID, "", 2)
	require.NoError(t, err)
	require.Len(t, page1.Messages, 2)
	assert.True(t, page1.HasMore)
	assert.Equal(t, "one", page1.Messages[0].Content)

	page2, err := messages.List(ctx, widgetCaller(), conv.ID, page1.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, page2.Messages, 1)
	assert.Equal(t, "three", page2.Messages[0].Content)
	assert.False(t, page2.HasMore)
}
