package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/orbitdesk-ai/support-platform/internal/model"
	"github.com/orbitdesk-ai/support-platform/pkg/errcode"
)

const (
	conversationsBucket = "CONVERSATIONS"
	threadIndexBucket   = "CONV_THREADS"
	sessionsBucket      = "CONTACT_SESSIONS"
	secretsBucket       = "PLUGIN_SECRETS"
)

// ConversationStore persists conversations in a JetStream KV bucket. The
// bucket revision is the compare-and-set token for status transitions.
type ConversationStore struct {
	kv       jetstream.KeyValue
	byThread jetstream.KeyValue
}

// NewConversationStore creates (or binds to) the conversation buckets.
func NewConversationStore(ctx context.Context, client *Client) (*ConversationStore, error) {
	kv, err := ensureBucket(ctx, client, conversationsBucket)
	if err != nil {
		return nil, err
	}
	byThread, err := ensureBucket(ctx, client, threadIndexBucket)
	if err != nil {
		return nil, err
	}
	return &ConversationStore{kv: kv, byThread: byThread}, nil
}

func ensureBucket(ctx context.Context, client *Client, bucket string) (jetstream.KeyValue, error) {
	js := client.JetStream()
	kv, err := js.KeyValue(ctx, bucket)
	if err == nil {
		return kv, nil
	}
	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: bucket})
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return kv, nil
}

// Create inserts a new conversation and its thread index entry.
func (s *ConversationStore) Create(ctx context.Context, conv *model.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	if _, err := s.kv.Create(ctx, conv.ID, data); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return errcode.Newf(errcode.CodeConflict, "conversation %s already exists", conv.ID)
		}
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	if _, err := s.byThread.Put(ctx, conv.ThreadID, []byte(conv.ID)); err != nil {
		return fmt.Errorf("failed to index thread: %w", err)
	}
	return nil
}

// Get returns the conversation and its KV revision.
func (s *ConversationStore) Get(ctx context.Context, id string) (*model.Conversation, uint64, error) {
	entry, err := s.kv.Get(ctx, id)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, 0, errcode.New(errcode.CodeNotFound, "conversation not found")
		}
		return nil, 0, fmt.Errorf("failed to get conversation: %w", err)
	}

	var conv model.Conversation
	if err := json.Unmarshal(entry.Value(), &conv); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal conversation: %w", err)
	}
	return &conv, entry.Revision(), nil
}

// GetByThread resolves a conversation by its thread id.
func (s *ConversationStore) GetByThread(ctx context.Context, threadID string) (*model.Conversation, uint64, error) {
	entry, err := s.byThread.Get(ctx, threadID)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, 0, errcode.New(errcode.CodeNotFound, "conversation not found")
		}
		return nil, 0, fmt.Errorf("failed to resolve thread: %w", err)
	}
	return s.Get(ctx, string(entry.Value()))
}

// Update replaces the conversation only if the KV revision still matches.
func (s *ConversationStore) Update(ctx context.Context, conv *model.Conversation, expectedRevision uint64) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	if _, err := s.kv.Update(ctx, conv.ID, data, expectedRevision); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return errcode.New(errcode.CodeNotFound, "conversation not found")
		}
		return errcode.Wrap(errcode.CodeConflict, "conversation was modified concurrently", err)
	}
	return nil
}

// List returns the tenant's conversations, newest first. The bucket is
// scanned and filtered; tenant counts at this scale stay well inside one
// bucket listing.
func (s *ConversationStore) List(ctx context.Context, orgID string, status *model.ConversationStatus, afterCreatedMs int64, afterID string, limit int) ([]model.Conversation, bool, error) {
	convs, err := s.scan(ctx, func(conv *model.Conversation) bool {
		if conv.OrgID != orgID {
			return false
		}
		if status != nil && conv.Status != *status {
			return false
		}
		return true
	})
	if err != nil {
		return nil, false, err
	}

	start := 0
	if afterID != "" {
		for i, conv := range convs {
			if conv.CreatedAt.UnixMilli() == afterCreatedMs && conv.ID == afterID {
				start = i + 1
				break
			}
			if conv.CreatedAt.UnixMilli() < afterCreatedMs {
				start = i
				break
			}
		}
	}

	end := start + limit
	hasMore := end < len(convs)
	if end > len(convs) {
		end = len(convs)
	}
	if start > len(convs) {
		start = len(convs)
	}
	return convs[start:end], hasMore, nil
}

// ListBySession returns the session's conversations, newest first.
func (s *ConversationStore) ListBySession(ctx context.Context, orgID, sessionID string, limit int) ([]model.Conversation, error) {
	convs, err := s.scan(ctx, func(conv *model.Conversation) bool {
		return conv.OrgID == orgID && conv.SessionID == sessionID
	})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(convs) > limit {
		convs = convs[:limit]
	}
	return convs, nil
}

func (s *ConversationStore) scan(ctx context.Context, keep func(*model.Conversation) bool) ([]model.Conversation, error) {
	lister, err := s.kv.ListKeys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	var convs []model.Conversation
	for key := range lister.Keys() {
		entry, err := s.kv.Get(ctx, key)
		if err != nil {
			continue
		}
		var conv model.Conversation
		if err := json.Unmarshal(entry.Value(), &conv); err != nil {
			continue
		}
		if keep(&conv) {
			convs = append(convs, conv)
		}
	}

	sort.Slice(convs, func(i, j int) bool {
		if !convs[i].CreatedAt.Equal(convs[j].CreatedAt) {
			return convs[i].CreatedAt.After(convs[j].CreatedAt)
		}
		return convs[i].ID > convs[j].ID
	})
	return convs, nil
}

// SessionStore persists contact sessions in a KV bucket. Expiry is enforced
// by readers against the stored ExpiresAt, not by bucket TTL.
type SessionStore struct {
	kv jetstream.KeyValue
}

// NewSessionStore creates (or binds to) the sessions bucket.
func NewSessionStore(ctx context.Context, client *Client) (*SessionStore, error) {
	kv, err := ensureBucket(ctx, client, sessionsBucket)
	if err != nil {
		return nil, err
	}
	return &SessionStore{kv: kv}, nil
}

// Put stores the session.
func (s *SessionStore) Put(ctx context.Context, session *model.ContactSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if _, err := s.kv.Put(ctx, session.ID, data); err != nil {
		return fmt.Errorf("failed to put session: %w", err)
	}
	return nil
}

// Get returns the session by id.
func (s *SessionStore) Get(ctx context.Context, id string) (*model.ContactSession, error) {
	entry, err := s.kv.Get(ctx, id)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, errcode.New(errcode.CodeNotFound, "session not found")
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	var session model.ContactSession
	if err := json.Unmarshal(entry.Value(), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// SecretStore persists plugin secrets in a KV bucket keyed by org/service.
type SecretStore struct {
	kv jetstream.KeyValue
}

// NewSecretStore creates (or binds to) the secrets bucket.
func NewSecretStore(ctx context.Context, client *Client) (*SecretStore, error) {
	kv, err := ensureBucket(ctx, client, secretsBucket)
	if err != nil {
		return nil, err
	}
	return &SecretStore{kv: kv}, nil
}

func secretKey(orgID string, service model.PluginService) string {
	return fmt.Sprintf("%s.%s", orgID, service)
}

// Put upserts the secret for its (org, service) pair.
func (s *SecretStore) Put(ctx context.Context, secret *model.PluginSecret) error {
	data, err := json.Marshal(struct {
		*model.PluginSecret
		Secret string `json:"secret"`
	}{secret, secret.Secret})
	if err != nil {
		return fmt.Errorf("failed to marshal secret: %w", err)
	}
	if _, err := s.kv.Put(ctx, secretKey(secret.OrgID, secret.Service), data); err != nil {
		return fmt.Errorf("failed to put secret: %w", err)
	}
	return nil
}

// Get returns the secret for the (org, service) pair.
func (s *SecretStore) Get(ctx context.Context, orgID string, service model.PluginService) (*model.PluginSecret, error) {
	entry, err := s.kv.Get(ctx, secretKey(orgID, service))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, errcode.New(errcode.CodeNotFound, "plugin not configured")
		}
		return nil, fmt.Errorf("failed to get secret: %w", err)
	}
	var raw struct {
		model.PluginSecret
		Secret string `json:"secret"`
	}
	if err := json.Unmarshal(entry.Value(), &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal secret: %w", err)
	}
	secret := raw.PluginSecret
	secret.Secret = raw.Secret
	return &secret, nil
}

// Delete removes the secret for the (org, service) pair.
func (s *SecretStore) Delete(ctx context.Context, orgID string, service model.PluginService) error {
	if err := s.kv.Delete(ctx, secretKey(orgID, service)); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete secret: %w", err)
	}
	return nil
}
