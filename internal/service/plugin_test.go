package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitdesk-ai/support-platform/internal/model"
	"github.com/orbitdesk-ai/support-platform/internal/store/memory"
	"github.com/orbitdesk-ai/support-platform/pkg/errcode"
	"github.com/orbitdesk-ai/support-platform/pkg/logger"
)

func TestPluginUpsertAndStatus(t *testing.T) {
	ctx := context.Background()
	svc := NewPluginService(memory.NewSecretStore(), logger.NewNop())

	status, err := svc.Upsert(ctx, "org-a", model.PluginServiceVapi, model.UpsertPluginRequest{Secret: "sk-123"})
	require.NoError(t, err)
	assert.True(t, status.Configured)
	require.NotNil(t, status.UpdatedAt)

	got, err := svc.Status(ctx, "org-a", model.PluginServiceVapi)
	require.NoError(t, err)
	assert.True(t, got.Configured)
}

func TestPluginStatusUnconfigured(t *testing.T) {
	svc := NewPluginService(memory.NewSecretStore(), logger.NewNop())
	status, err := svc.Status(context.Background(), "org-a", model.PluginServiceVapi)
	require.NoError(t, err)
	assert.False(t, status.Configured)
	assert.Nil(t, status.UpdatedAt)
}

func TestPluginStatusTenantsIsolate(t *testing.T) {
	ctx := context.Background()
	svc := NewPluginService(memory.NewSecretStore(), logger.NewNop())

	_, err := svc.Upsert(ctx, "org-a", model.PluginServiceVapi, model.UpsertPluginRequest{Secret: "sk-123"})
	require.NoError(t, err)

	other, err := svc.Status(ctx, "org-b", model.PluginServiceVapi)
	require.NoError(t, err)
	assert.False(t, other.Configured)
}

func TestPluginDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := NewPluginService(memory.NewSecretStore(), logger.NewNop())

	_, err := svc.Upsert(ctx, "org-a", model.PluginServiceVapi, model.UpsertPluginRequest{Secret: "sk-123"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "org-a", model.PluginServiceVapi))
	require.NoError(t, svc.Delete(ctx, "org-a", model.PluginServiceVapi))

	status, err := svc.Status(ctx, "org-a", model.PluginServiceVapi)
	require.NoError(t, err)
	assert.False(t, status.Configured)
}

func TestPluginRejectsUnknownService(t *testing.T) {
	svc := NewPluginService(memory.NewSecretStore(), logger.NewNop())
	_, err := svc.Upsert(context.Background(), "org-a", model.PluginService("slack"), model.UpsertPluginRequest{Secret: "x"})
	assert.True(t, errcode.Is(err, errcode.CodeInvalidArgument))

	_, err = svc.Upsert(context.Background(), "org-a", model.PluginServiceVapi, model.UpsertPluginRequest{})
	assert.True(t, errcode.Is(err, errcode.CodeInvalidArgument))
}

func TestPluginSecretNeverSerialized(t *testing.T) {
	secret := model.PluginSecret{OrgID: "org-a", Service: model.PluginServiceVapi, Secret: "sk-123"}
	data, err := json.Marshal(secret)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-123")
}
