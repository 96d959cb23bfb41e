package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orbitdesk-ai/support-platform/internal/model"
	"github.com/orbitdesk-ai/support-platform/internal/store"
	"github.com/orbitdesk-ai/support-platform/pkg/errcode"
	"github.com/orbitdesk-ai/support-platform/pkg/logger"
)

// SessionService issues and validates contact sessions for the widget.
type SessionService struct {
	sessions store.SessionStore
	ttl      time.Duration
	log      *logger.Logger
}

// NewSessionService wires the session service. ttl bounds how long a widget
// session stays valid.
func NewSessionService(sessions store.SessionStore, ttl time.Duration, log *logger.Logger) *SessionService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionService{sessions: sessions, ttl: ttl, log: log}
}

// Create issues a session for a widget visitor.
func (s *SessionService) Create(ctx context.Context, req model.CreateSessionRequest) (*model.CreateSessionResponse, error) {
	if strings.TrimSpace(req.OrgID) == "" {
		return nil, errcode.New(errcode.CodeInvalidArgument, "org_id is required")
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, errcode.New(errcode.CodeInvalidArgument, "name is required")
	}

	now := time.Now().UTC()
	session := &model.ContactSession{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Name:      req.Name,
		Email:     req.Email,
		OrgID:     req.OrgID,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
		Metadata:  req.Metadata,
	}
	if err := s.sessions.Put(ctx, session); err != nil {
		return nil, err
	}

	s.log.Info("contact session created",
		zap.String("session_id", session.ID),
		zap.String("org_id", session.OrgID))
	return &model.CreateSessionResponse{
		SessionID: session.ID,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// Validate returns the session if it exists and has not expired. Expired
// sessions report Unauthenticated so the widget re-registers.
func (s *SessionService) Validate(ctx context.Context, sessionID string) (*model.ContactSession, error) {
	if sessionID == "" {
		return nil, errcode.New(errcode.CodeUnauthenticated, "session id is required")
	}
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errcode.Is(err, errcode.CodeNotFound) {
			return nil, errcode.New(errcode.CodeUnauthenticated, "unknown session")
		}
		return nil, err
	}
	if session.Expired(time.Now()) {
		return nil, errcode.New(errcode.CodeUnauthenticated, "session expired")
	}
	return session, nil
}
