// Package auth defines the caller identity threaded through core operations.
package auth

import (
	"context"
)

// CallerKind distinguishes the two trust boundaries: authenticated dashboard
// operators and anonymous widget visitors.
type CallerKind string

const (
	// KindDashboard is an operator authenticated by the identity provider;
	// authorization is by tenant claim.
	KindDashboard CallerKind = "dashboard"
	// KindWidget is an anonymous visitor holding a contact session;
	// authorization is by session match.
	KindWidget CallerKind = "widget"
)

// Caller is constructed once at the request boundary and passed explicitly
// into every core operation. Core code never re-resolves identity from
// ambient state.
type Caller struct {
	Kind      CallerKind
	UserID    string
	OrgID     string
	SessionID string
}

// Dashboard builds a dashboard caller from identity-provider claims.
func Dashboard(userID, orgID string) Caller {
	return Caller{Kind: KindDashboard, UserID: userID, OrgID: orgID}
}

// Widget builds a widget caller from a validated contact session.
func Widget(sessionID, orgID string) Caller {
	return Caller{Kind: KindWidget, SessionID: sessionID, OrgID: orgID}
}

type contextKey struct{}

// NewContext stores the caller in ctx. Only the request boundary writes it.
func NewContext(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext retrieves the caller placed by the request boundary.
func FromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(contextKey{}).(Caller)
	return c, ok
}
