package nats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/orbitdesk-ai/support-platform/internal/model"
)

func TestTrimPageExactLimitIsNotMore(t *testing.T) {
	page := []model.Message{{Content: "a"}, {Content: "b"}}
	got, hasMore := trimPage(page, 2)
	assert.Len(t, got, 2)
	assert.False(t, hasMore)
}

func TestTrimPageOverfetchSignalsMore(t *testing.T) {
	page := []model.Message{{Content: "a"}, {Content: "b"}, {Content: "c"}}
	got, hasMore := trimPage(page, 2)
	assert.Len(t, got, 2)
	assert.True(t, hasMore)
	assert.Equal(t, "b", got[1].Content)
}

func TestTrimPagePartialPage(t *testing.T) {
	got, hasMore := trimPage([]model.Message{{Content: "a"}}, 2)
	assert.Len(t, got, 1)
	assert.False(t, hasMore)
}

func TestThreadSubjects(t *testing.T) {
	assert.Equal(t, "conv.org-a.thread-1.msg.user",
		messageSubject("org-a", "thread-1", model.RoleUser))
	assert.Equal(t, "conv.org-a.thread-1.msg.>",
		threadFilter("org-a", "thread-1"))
}
