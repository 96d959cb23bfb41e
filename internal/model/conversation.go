// Package model defines data structures for the support platform.
package model

import (
	"time"
)

// ConversationStatus is the lifecycle state of a conversation.
type ConversationStatus string

const (
	// StatusUnresolved is the initial state; the agent handles new messages.
	StatusUnresolved ConversationStatus = "unresolved"
	// StatusEscalated means a human operator has been requested; the agent
	// may still assist.
	StatusEscalated ConversationStatus = "escalated"
	// StatusResolved is terminal for automation; no further agent turns.
	StatusResolved ConversationStatus = "resolved"
)

// Valid reports whether s is a known status.
func (s ConversationStatus) Valid() bool {
	switch s {
	case StatusUnresolved, StatusEscalated, StatusResolved:
		return true
	}
	return false
}

// Conversation is one support conversation. OrgID and SessionID are immutable
// after creation; Status changes only through lifecycle transitions.
type Conversation struct {
	ID        string             `json:"id"`
	OrgID     string             `json:"org_id"`
	SessionID string             `json:"session_id"`
	ThreadID  string             `json:"thread_id"`
	Status    ConversationStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`

	// LastMessage is populated on reads for dashboard listings.
	LastMessage *Message `json:"last_message,omitempty"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	NextCursor    string         `json:"next_cursor,omitempty"`
	HasMore       bool           `json:"has_more"`
}
