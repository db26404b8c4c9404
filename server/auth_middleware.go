package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/rankauskaite/fittrack/token"
	"github.com/rankauskaite/fittrack/users"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyUsername stores the authenticated username
	ContextKeyUsername ContextKey = "username"
	// ContextKeyRole stores the authenticated user's role
	ContextKeyRole ContextKey = "role"
	// ContextKeyClaims stores the parsed token claims
	ContextKeyClaims ContextKey = "claims"
)

// RequireAuth is middleware that validates a Bearer access token.
// A missing, malformed, badly signed or expired token all produce the same
// 401; callers are not told which sub-case applied.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeMessage(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
				writeMessage(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			claims, err := s.tokens.Verify(parts[1])
			if err != nil {
				writeMessage(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUsername, claims.Username())
			ctx = context.WithValue(ctx, ContextKeyRole, claims.Role)
			ctx = context.WithValue(ctx, ContextKeyClaims, claims)
			next(w, r.WithContext(ctx))
		}
	}
}

// usernameFromContext returns the authenticated username injected by
// RequireAuth, or "" when the request was not authenticated.
func usernameFromContext(ctx context.Context) string {
	username, _ := ctx.Value(ContextKeyUsername).(string)
	return username
}

// RequireRole gates a handler on the authenticated user's role. It must run
// after RequireAuth, which injects the claims it reads.
func (s *Server) RequireRole(allowed ...users.RoleType) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims := claimsFromContext(r.Context())
			if claims == nil {
				writeMessage(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			for _, role := range allowed {
				if claims.Role == role {
					next(w, r)
					return
				}
			}
			writeMessage(w, http.StatusForbidden, "forbidden")
		}
	}
}

func claimsFromContext(ctx context.Context) *token.Claims {
	claims, _ := ctx.Value(ContextKeyClaims).(*token.Claims)
	return claims
}
