// Package memory provides in-memory store implementations used by tests and
// single-process development mode.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/orbitdesk-ai/support-platform/internal/model"
	"github.com/orbitdesk-ai/support-platform/pkg/errcode"
)

// ConversationStore is an in-memory revision-guarded conversation store.
type ConversationStore struct {
	mu       sync.RWMutex
	rows     map[string]*model.Conversation
	byThread map[string]string
	revs     map[string]uint64
}

// NewConversationStore creates an empty conversation store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		rows:     make(map[string]*model.Conversation),
		byThread: make(map[string]string),
		revs:     make(map[string]uint64),
	}
}

// Create inserts a new conversation.
func (s *ConversationStore) Create(ctx context.Context, conv *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[conv.ID]; exists {
		return errcode.Newf(errcode.CodeConflict, "conversation %s already exists", conv.ID)
	}

	cp := *conv
	s.rows[conv.ID] = &cp
	s.byThread[conv.ThreadID] = conv.ID
	s.revs[conv.ID] = 1
	return nil
}

// Get returns the conversation and its revision.
func (s *ConversationStore) Get(ctx context.Context, id string) (*model.Conversation, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, exists := s.rows[id]
	if !exists {
		return nil, 0, errcode.New(errcode.CodeNotFound, "conversation not found")
	}
	cp := *conv
	return &cp, s.revs[id], nil
}

// GetByThread resolves a conversation by thread id.
func (s *ConversationStore) GetByThread(ctx context.Context, threadID string) (*model.Conversation, uint64, error) {
	s.mu.RLock()
	id, exists := s.byThread[threadID]
	s.mu.RUnlock()
	if !exists {
		return nil, 0, errcode.New(errcode.CodeNotFound, "conversation not found")
	}
	return s.Get(ctx, id)
}

// Update replaces the conversation if the revision still matches.
func (s *ConversationStore) Update(ctx context.Context, conv *model.Conversation, expectedRevision uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.rows[conv.ID]
	if !exists {
		return errcode.New(errcode.CodeNotFound, "conversation not found")
	}
	if s.revs[conv.ID] != expectedRevision {
		return errcode.New(errcode.CodeConflict, "conversation was modified concurrently")
	}
	if current.OrgID != conv.OrgID {
		return errcode.New(errcode.CodeInvalidArgument, "org id is immutable")
	}

	cp := *conv
	s.rows[conv.ID] = &cp
	s.revs[conv.ID] = expectedRevision + 1
	return nil
}

// List returns the tenant's conversations, newest first.
func (s *ConversationStore) List(ctx context.Context, orgID string, status *model.ConversationStatus, afterCreatedMs int64, afterID string, limit int) ([]model.Conversation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var convs []model.Conversation
	for _, conv := range s.rows {
		if conv.OrgID != orgID {
			continue
		}
		if status != nil && conv.Status != *status {
			continue
		}
		convs = append(convs, *conv)
	}

	sortNewestFirst(convs)

	// Skip to the cursor position (exclusive).
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
	s.mu.RLock()
	defer s.mu.RUnlock()

	var convs []model.Conversation
	for _, conv := range s.rows {
		if conv.OrgID == orgID && conv.SessionID == sessionID {
			convs = append(convs, *conv)
		}
	}
	sortNewestFirst(convs)
	if limit > 0 && len(convs) > limit {
		convs = convs[:limit]
	}
	return convs, nil
}

func sortNewestFirst(convs []model.Conversation) {
	sort.Slice(convs, func(i, j int) bool {
		if !convs[i].CreatedAt.Equal(convs[j].CreatedAt) {
			return convs[i].CreatedAt.After(convs[j].CreatedAt)
		}
		return convs[i].ID > convs[j].ID
	})
}

// ThreadStore is an in-memory append-only message log. A single mutex
// serializes appends so sequences are globally monotonic, matching the
// ordering guarantee of a single JetStream stream.
type ThreadStore struct {
	mu      sync.RWMutex
	nextSeq uint64
	logs    map[string][]model.Message // keyed by orgID/threadID
}

// NewThreadStore creates an empty thread store.
func NewThreadStore() *ThreadStore {
	return &ThreadStore{logs: make(map[string][]model.Message)}
}

func threadKey(orgID, threadID string) string {
	return orgID + "/" + threadID
}

// Append persists the message and returns its sequence.
func (s *ThreadStore) Append(ctx context.Context, msg *model.Message) (uint64, error) {
	if msg.Content == "" {
		return 0, errcode.New(errcode.CodeInvalidArgument, "message content cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSeq++
	cp := *msg
	cp.Sequence = s.nextSeq
	key := threadKey(msg.OrgID, msg.ThreadID)
	s.logs[key] = append(s.logs[key], cp)
	msg.Sequence = cp.Sequence
	return cp.Sequence, nil
}

// List returns messages with sequence > afterSeq, ascending.
func (s *ThreadStore) List(ctx context.Context, orgID, threadID string, afterSeq uint64, limit int) ([]model.Message, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.logs[threadKey(orgID, threadID)]
	var out []model.Message
	hasMore := false
	for _, msg := range log {
		if msg.Sequence <= afterSeq {
			continue
		}
		if limit > 0 && len(out) == limit {
			hasMore = true
			break
		}
		out = append(out, msg)
	}
	return out, hasMore, nil
}

// Last returns the newest message in the thread, or nil when empty.
func (s *ThreadStore) Last(ctx context.Context, orgID, threadID string) (*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.logs[threadKey(orgID, threadID)]
	if len(log) == 0 {
		return nil, nil
	}
	cp := log[len(log)-1]
	return &cp, nil
}

// SessionStore is an in-memory contact session store.
type SessionStore struct {
	mu   sync.RWMutex
	rows map[string]*model.ContactSession
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{rows: make(map[string]*model.ContactSession)}
}

// Put stores the session.
func (s *SessionStore) Put(ctx context.Context, session *model.ContactSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *session
	s.rows[session.ID] = &cp
	return nil
}

// Get returns the session by id.
func (s *SessionStore) Get(ctx context.Context, id string) (*model.ContactSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, exists := s.rows[id]
	if !exists {
		return nil, errcode.New(errcode.CodeNotFound, "session not found")
	}
	cp := *session
	return &cp, nil
}

// SecretStore is an in-memory plugin secret store.
type SecretStore struct {
	mu   sync.RWMutex
	rows map[string]*model.PluginSecret
}

// NewSecretStore creates an empty secret store.
func NewSecretStore() *SecretStore {
	return &SecretStore{rows: make(map[string]*model.PluginSecret)}
}

func secretKey(orgID string, service model.PluginService) string {
	return orgID + "/" + string(service)
}

// Put upserts the secret for its (org, service) pair.
func (s *SecretStore) Put(ctx context.Context, secret *model.PluginSecret) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *secret
	s.rows[secretKey(secret.OrgID, secret.Service)] = &cp
	return nil
}

// Get returns the secret for the (org, service) pair.
func (s *SecretStore) Get(ctx context.Context, orgID string, service model.PluginService) (*model.PluginSecret, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	secret, exists := s.rows[secretKey(orgID, service)]
	if !exists {
		return nil, errcode.New(errcode.CodeNotFound, "plugin not configured")
	}
	cp := *secret
	return &cp, nil
}

// Delete removes the secret for the (org, service) pair.
func (s *SecretStore) Delete(ctx context.Context, orgID string, service model.PluginService) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, secretKey(orgID, service))
	return nil
}

// ObjectStore is an in-memory binary artifact store.
type ObjectStore struct {
	mu   sync.RWMutex
	rows map[string][]byte
}

// NewObjectStore creates an empty object store.
func NewObjectStore() *ObjectStore {
	return &ObjectStore{rows: make(map[string][]byte)}
}

// Put stores the artifact and returns its reference.
func (s *ObjectStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	ref := uuid.Must(uuid.NewV7()).String()
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.rows[ref] = cp
	return ref, nil
}

// URL returns a synthetic URL for the artifact.
func (s *ObjectStore) URL(ctx context.Context, ref string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, exists := s.rows[ref]; !exists {
		return "", errcode.New(errcode.CodeNotFound, "artifact not found")
	}
	return fmt.Sprintf("/artifacts/%s", ref), nil
}

// Delete removes the artifact.
func (s *ObjectStore) Delete(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[ref]; !exists {
		return errcode.New(errcode.CodeNotFound, "artifact not found")
	}
	delete(s.rows, ref)
	return nil
}

// Len reports the number of stored artifacts. Used by tests to verify
// deduplication leaves exactly one artifact behind.
func (s *ObjectStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}
