// Package store defines the persistence interfaces used by the core services
// and an in-memory implementation. The NATS-backed implementation lives in
// internal/nats.
package store

import (
	"context"

	"github.com/orbitdesk-ai/support-platform/internal/model"
)

// ConversationStore persists conversation rows. Updates are revision-guarded
// compare-and-set so status transitions never lose concurrent writes.
type ConversationStore interface {
	// Create inserts a new conversation. Fails with Conflict if the id exists.
	Create(ctx context.Context, conv *model.Conversation) error

	// Get returns the conversation and its current revision.
	Get(ctx context.Context, id string) (*model.Conversation, uint64, error)

	// GetByThread resolves a conversation by its thread id.
	GetByThread(ctx context.Context, threadID string) (*model.Conversation, uint64, error)

	// Update replaces the conversation only if the stored revision still
	// matches expectedRevision; otherwise it fails with Conflict.
	Update(ctx context.Context, conv *model.Conversation, expectedRevision uint64) error

	// List returns conversations for one tenant, newest first. afterCreatedMs
	// and afterID form an exclusive keyset cursor position; status filters
	// when non-nil.
	List(ctx context.Context, orgID string, status *model.ConversationStatus, afterCreatedMs int64, afterID string, limit int) ([]model.Conversation, bool, error)

	// ListBySession returns the session's conversations, newest first.
	ListBySession(ctx context.Context, orgID, sessionID string, limit int) ([]model.Conversation, error)
}

// ThreadStore is the append-only ordered message log. Append assigns a
// monotonic sequence; concurrent appends to the same thread serialize into a
// single total order.
type ThreadStore interface {
	// Append persists the message and returns its sequence.
	Append(ctx context.Context, msg *model.Message) (uint64, error)

	// List returns messages with sequence > afterSeq, ascending, up to limit.
	List(ctx context.Context, orgID, threadID string, afterSeq uint64, limit int) ([]model.Message, bool, error)

	// Last returns the newest message in the thread, or nil for an empty thread.
	Last(ctx context.Context, orgID, threadID string) (*model.Message, error)
}

// SessionStore persists contact sessions.
type SessionStore interface {
	Put(ctx context.Context, session *model.ContactSession) error
	Get(ctx context.Context, id string) (*model.ContactSession, error)
}

// SecretStore persists plugin secrets with upsert semantics per
// (org, service) pair.
type SecretStore interface {
	Put(ctx context.Context, secret *model.PluginSecret) error
	Get(ctx context.Context, orgID string, service model.PluginService) (*model.PluginSecret, error)
	Delete(ctx context.Context, orgID string, service model.PluginService) error
}

// ObjectStore holds binary artifacts behind opaque references.
type ObjectStore interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
	URL(ctx context.Context, ref string) (string, error)
	Delete(ctx context.Context, ref string) error
}
