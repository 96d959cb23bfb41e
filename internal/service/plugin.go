package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/orbitdesk-ai/support-platform/internal/model"
	"github.com/orbitdesk-ai/support-platform/internal/store"
	"github.com/orbitdesk-ai/support-platform/pkg/errcode"
	"github.com/orbitdesk-ai/support-platform/pkg/logger"
)

// PluginService manages per-tenant third-party integration secrets. Secrets
// are write-only through the API: status reports configuration, never the
// value.
type PluginService struct {
	secrets store.SecretStore
	log     *logger.Logger
}

// NewPluginService wires the plugin service.
func NewPluginService(secrets store.SecretStore, log *logger.Logger) *PluginService {
	return &PluginService{secrets: secrets, log: log}
}

// Upsert stores or replaces the tenant's secret for one service.
func (s *PluginService) Upsert(ctx context.Context, orgID string, service model.PluginService, req model.UpsertPluginRequest) (*model.PluginStatus, error) {
	if !service.Valid() {
		return nil, errcode.Newf(errcode.CodeInvalidArgument, "unknown plugin service %q", service)
	}
	if strings.TrimSpace(req.Secret) == "" {
		return nil, errcode.New(errcode.CodeInvalidArgument, "secret is required")
	}

	secret := &model.PluginSecret{
		OrgID:     orgID,
		Service:   service,
		Secret:    req.Secret,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.secrets.Put(ctx, secret); err != nil {
		return nil, err
	}

	s.log.Info("plugin secret updated",
		zap.String("org_id", orgID),
		zap.String("service", string(service)))
	return &model.PluginStatus{
		Service:    service,
		Configured: true,
		UpdatedAt:  &secret.UpdatedAt,
	}, nil
}

// Status reports whether the tenant has the service configured.
func (s *PluginService) Status(ctx context.Context, orgID string, service model.PluginService) (*model.PluginStatus, error) {
	if !service.Valid() {
		return nil, errcode.Newf(errcode.CodeInvalidArgument, "unknown plugin service %q", service)
	}
	secret, err := s.secrets.Get(ctx, orgID, service)
	if err != nil {
		if errcode.Is(err, errcode.CodeNotFound) {
			return &model.PluginStatus{Service: service}, nil
		}
		return nil, err
	}
	return &model.PluginStatus{
		Service:    service,
		Configured: true,
		UpdatedAt:  &secret.UpdatedAt,
	}, nil
}

// Delete removes the tenant's secret for one service. Deleting a secret
// that is not configured is a no-op.
func (s *PluginService) Delete(ctx context.Context, orgID string, service model.PluginService) error {
	if !service.Valid() {
		return errcode.Newf(errcode.CodeInvalidArgument, "unknown plugin service %q", service)
	}
	if err := s.secrets.Delete(ctx, orgID, service); err != nil && !errcode.Is(err, errcode.CodeNotFound) {
		return err
	}
	s.log.Info("plugin secret removed",
		zap.String("org_id", orgID),
		zap.String("service", string(service)))
	return nil
}
