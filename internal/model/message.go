package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// MessageStatus marks whether an assistant message completed normally.
type MessageStatus string

const (
	MessageStatusSuccess MessageStatus = "success"
	MessageStatusFailed  MessageStatus = "failed"
	MessageStatusPending MessageStatus = "pending"
)

// Usage captures token accounting for one generation.
type Usage struct {
	TokensIn  int `json:"tokens_in"`
	TokensOut int `json:"tokens_out"`
}

// Message is one entry in a conversation thread. Persisted messages are
// immutable and carry non-empty content; ordering within a thread follows the
// storage sequence, which is creation-time monotonic.
type Message struct {
	// Identity
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`
	OrgID    string `json:"org_id"`

	// Content
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// Generation metadata (assistant messages only)
	AgentName string        `json:"agent_name,omitempty"`
	Model     string        `json:"model,omitempty"`
	Usage     *Usage        `json:"usage,omitempty"`
	Status    MessageStatus `json:"status,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	// Sequence is the thread-log position, populated by the store.
	Sequence uint64 `json:"sequence,omitempty"`
}

// PostMessageRequest is the request to post a new user message.
type PostMessageRequest struct {
	Content string `json:"content"`
}

// PostMessageResponse returns the persisted user message and, when the agent
// ran, the final assistant message.
type PostMessageResponse struct {
	UserMessage      *Message `json:"user_message"`
	AssistantMessage *Message `json:"assistant_message,omitempty"`
}

// ListMessagesResponse is the response for listing thread messages.
type ListMessagesResponse struct {
	Messages   []Message `json:"messages"`
	NextCursor string    `json:"next_cursor,omitempty"`
	HasMore    bool      `json:"has_more"`
}
