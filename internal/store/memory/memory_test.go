package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitdesk-ai/support-platform/internal/model"
	"github.com/orbitdesk-ai/support-platform/pkg/errcode"
)

func newConversation(id, orgID string, created time.Time) *model.Conversation {
	return &model.Conversation{
		ID:        id,
		OrgID:     orgID,
		SessionID: "sess-1",
		ThreadID:  "thread-" + id,
		Status:    model.StatusUnresolved,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestConversationStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewConversationStore()

	conv := newConversation("c1", "org-a", time.Now())
	require.NoError(t, s.Create(ctx, conv))

	got, rev, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "org-a", got.OrgID)
	assert.Equal(t, uint64(1), rev)

	byThread, _, err := s.GetByThread(ctx, "thread-c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", byThread.ID)
}

func TestConversationStoreCreateDuplicate(t *testing.T) {
	ctx := context.Background()
	s := NewConversationStore()

	conv := newConversation("c1", "org-a", time.Now())
	require.NoError(t, s.Create(ctx, conv))
	err := s.Create(ctx, conv)
	assert.True(t, errcode.Is(err, errcode.CodeConflict))
}

func TestConversationStoreUpdateCAS(t *testing.T) {
	ctx := context.Background()
	s := NewConversationStore()

	conv := newConversation("c1", "org-a", time.Now())
	require.NoError(t, s.Create(ctx, conv))

	got, rev, err := s.Get(ctx, "c1")
	require.NoError(t, err)

	got.Status = model.StatusEscalated
	require.NoError(t, s.Update(ctx, got, rev))

	// Stale revision loses.
	got.Status = model.StatusResolved
	err = s.Update(ctx, got, rev)
	assert.True(t, errcode.Is(err, errcode.CodeConflict))

	current, rev2, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusEscalated, current.Status)
	assert.Equal(t, rev+1, rev2)
}

func TestConversationStoreOrgImmutable(t *testing.T) {
	ctx := context.Background()
	s := NewConversationStore()

	conv := newConversation("c1", "org-a", time.Now())
	require.NoError(t, s.Create(ctx, conv))

	got, rev, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	got.OrgID = "org-b"
	err = s.Update(ctx, got, rev)
	assert.True(t, errcode.Is(err, errcode.CodeInvalidArgument))
}

func TestConversationStoreListKeyset(t *testing.T) {
	ctx := context.Background()
	s := NewConversationStore()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		conv := newConversation(fmt.Sprintf("c%d", i), "org-a", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.Create(ctx, conv))
	}
	require.NoError(t, s.Create(ctx, newConversation("other", "org-b", base)))

	page1, hasMore, err := s.List(ctx, "org-a", nil, 0, "", 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.True(t, hasMore)
	assert.Equal(t, "c4", page1[0].ID)
	assert.Equal(t, "c3", page1[1].ID)

	last := page1[len(page1)-1]
	page2, _, err := s.List(ctx, "org-a", nil, last.CreatedAt.UnixMilli(), last.ID, 2)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Equal(t, "c2", page2[0].ID)
	assert.Equal(t, "c1", page2[1].ID)
}

func TestConversationStoreListStatusFilter(t *testing.T) {
	ctx := context.Background()
	s := NewConversationStore()

	open := newConversation("c1", "org-a", time.Now())
	require.NoError(t, s.Create(ctx, open))

	escalated := newConversation("c2", "org-a", time.Now())
	escalated.Status = model.StatusEscalated
	require.NoError(t, s.Create(ctx, escalated))

	status := model.StatusEscalated
	got, _, err := s.List(ctx, "org-a", &status, 0, "", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c2", got[0].ID)
}

func TestThreadStoreAppendAssignsMonotonicSequence(t *testing.T) {
	ctx := context.Background()
	s := NewThreadStore()

	var prev uint64
	for i := 0; i < 3; i++ {
		seq, err := s.Append(ctx, &model.Message{
			OrgID:    "org-a",
			ThreadID: "t1",
			Role:     model.RoleUser,
			Content:  fmt.Sprintf("message %d", i),
		})
		require.NoError(t, err)
		assert.Greater(t, seq, prev)
		prev = seq
	}
}

func TestThreadStoreRejectsEmptyContent(t *testing.T) {
	s := NewThreadStore()
	_, err := s.Append(context.Background(), &model.Message{OrgID: "org-a", ThreadID: "t1"})
	assert.True(t, errcode.Is(err, errcode.CodeInvalidArgument))
}

func TestThreadStoreConcurrentAppendsTotalOrder(t *testing.T) {
	ctx := context.Background()
	s := NewThreadStore()

	const writers = 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := s.Append(ctx, &model.Message{
				OrgID:    "org-a",
				ThreadID: "t1",
				Role:     model.RoleUser,
				Content:  fmt.Sprintf("concurrent %d", n),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	messages, hasMore, err := s.List(ctx, "org-a", "t1", 0, 0)
	require.NoError(t, err)
	assert.False(t, hasMore)
	require.Len(t, messages, writers)

	seen := make(map[uint64]bool)
	var prev uint64
	for _, msg := range messages {
		assert.Greater(t, msg.Sequence, prev)
		assert.False(t, seen[msg.Sequence], "duplicate sequence %d", msg.Sequence)
		seen[msg.Sequence] = true
		prev = msg.Sequence
	}
}

func TestThreadStoreListAfterSequence(t *testing.T) {
	ctx := context.Background()
	s := NewThreadStore()

	var seqs []uint64
	for i := 0; i < 4; i++ {
		seq, err := s.Append(ctx, &model.Message{
			OrgID: "org-a", ThreadID: "t1", Role: model.RoleUser,
			Content: fmt.Sprintf("m%d", i),
		})
		require.NoError(t, err)
		seqs = append(seqs, seq)
	}

	messages, _, err := s.List(ctx, "org-a", "t1", seqs[1], 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "m2", messages[0].Content)

	last, err := s.Last(ctx, "org-a", "t1")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "m3", last.Content)
}

func TestThreadStoreTenantKeysIsolate(t *testing.T) {
	ctx := context.Background()
	s := NewThreadStore()

	_, err := s.Append(ctx, &model.Message{OrgID: "org-a", ThreadID: "t1", Role: model.RoleUser, Content: "hello"})
	require.NoError(t, err)

	messages, _, err := s.List(ctx, "org-b", "t1", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestSecretStoreUpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	s := NewSecretStore()

	require.NoError(t, s.Put(ctx, &model.PluginSecret{OrgID: "org-a", Service: model.PluginServiceVapi, Secret: "k1"}))
	require.NoError(t, s.Put(ctx, &model.PluginSecret{OrgID: "org-a", Service: model.PluginServiceVapi, Secret: "k2"}))

	got, err := s.Get(ctx, "org-a", model.PluginServiceVapi)
	require.NoError(t, err)
	assert.Equal(t, "k2", got.Secret)

	_, err = s.Get(ctx, "org-b", model.PluginServiceVapi)
	assert.True(t, errcode.Is(err, errcode.CodeNotFound))

	require.NoError(t, s.Delete(ctx, "org-a", model.PluginServiceVapi))
	_, err = s.Get(ctx, "org-a", model.PluginServiceVapi)
	assert.True(t, errcode.Is(err, errcode.CodeNotFound))
}

func TestObjectStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewObjectStore()

	ref, err := s.Put(ctx, []byte("payload"), "text/plain")
	require.NoError(t, err)

	url, err := s.URL(ctx, ref)
	require.NoError(t, err)
	assert.Contains(t, url, ref)
	assert.Equal(t, 1, s.Len())

	require.NoError(t, s.Delete(ctx, ref))
	assert.Equal(t, 0, s.Len())
	err = s.Delete(ctx, ref)
	assert.True(t, errcode.Is(err, errcode.CodeNotFound))
}
