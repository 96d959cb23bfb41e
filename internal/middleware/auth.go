// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/orbitdesk-ai/support-platform/internal/auth"
	"github.com/orbitdesk-ai/support-platform/internal/model"
)

// Claims are the dashboard JWT claims. TenantID scopes every dashboard
// operation; there is no cross-tenant access path.
type Claims struct {
	jwt.RegisteredClaims
	TenantID string   `json:"tenant_id"`
	Scopes   []string `json:"scope"`
}

// DashboardAuth authenticates dashboard requests with a bearer JWT and
// places a dashboard Caller on the context.
func DashboardAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				writeAuthError(w, "invalid authorization header format")
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				writeAuthError(w, "invalid token")
				return
			}
			if claims.TenantID == "" {
				writeAuthError(w, "token missing tenant_id")
				return
			}

			caller := auth.Dashboard(claims.Subject, claims.TenantID)
			next.ServeHTTP(w, r.WithContext(auth.NewContext(r.Context(), caller)))
		})
	}
}

// SessionValidator checks a widget session credential.
type SessionValidator interface {
	Validate(ctx context.Context, sessionID string) (*model.ContactSession, error)
}

// SessionAuth authenticates widget requests with the X-Contact-Session
// header and places a widget Caller on the context.
func SessionAuth(validator SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := r.Header.Get("X-Contact-Session")
			if sessionID == "" {
				writeAuthError(w, "missing session header")
				return
			}

			session, err := validator.Validate(r.Context(), sessionID)
			if err != nil {
				writeAuthError(w, "invalid or expired session")
				return
			}

			caller := auth.Widget(session.ID, session.OrgID)
			next.ServeHTTP(w, r.WithContext(auth.NewContext(r.Context(), caller)))
		})
	}
}

func writeAuthError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
