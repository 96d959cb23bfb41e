package model

import (
	"time"
)

// ContactSession is the anonymous, expiring credential identifying one widget
// visitor. Any session-gated operation must check ExpiresAt against now.
type ContactSession struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Email     string            `json:"email"`
	OrgID     string            `json:"org_id"`
	ExpiresAt time.Time         `json:"expires_at"`
	CreatedAt time.Time         `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Expired reports whether the session is no longer valid at the given time.
func (s *ContactSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// CreateSessionRequest is the widget request to open a contact session.
type CreateSessionRequest struct {
	Name     string            `json:"name"`
	Email    string            `json:"email"`
	OrgID    string            `json:"org_id"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// CreateSessionResponse returns the new session id and expiry.
type CreateSessionResponse struct {
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}
