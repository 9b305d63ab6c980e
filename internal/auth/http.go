// ABOUTME: HTTP middleware for JWT authentication on API endpoints
// ABOUTME: Extracts JWT from Authorization header and adds identity to context

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/2389/muse-gateway/internal/store"
)

// UserStore defines what the middleware needs to resolve a token subject
// into a known account.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*store.User, error)
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// HTTPAuthMiddleware creates an HTTP middleware that extracts and validates
// JWT tokens. It looks up the user and attaches an Identity to the request
// context via WithIdentity, so handlers share one resolution path with the
// websocket handshake.
func HTTPAuthMiddleware(users UserStore, verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				http.Error(w, `{"error":"`+errMsg+`"}`, http.StatusUnauthorized)
				return
			}

			id, err := ResolveToken(r.Context(), users, verifier, token)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// ResolveToken verifies a bearer token and resolves its subject to a known
// user. Shared by the HTTP middleware and the websocket handshake.
func ResolveToken(ctx context.Context, users UserStore, verifier TokenVerifier, token string) (*Identity, error) {
	userID, err := verifier.Verify(token)
	if err != nil {
		return nil, err
	}
	user, err := users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Identity{UserID: user.ID, Email: user.Email, Name: user.Name}, nil
}
