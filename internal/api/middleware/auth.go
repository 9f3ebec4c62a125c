package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/evently/internal/auth"
	"github.com/hugh/evently/internal/database/models"
)

type contextKey string

const (
	IdentityKey contextKey = "identity"
	TokenKey    contextKey = "session_token"
)

// SessionCookie is the cookie carrying the session token.
const SessionCookie = "token"

func Auth(tokens auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			claims, err := tokens.ValidateToken(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), IdentityKey, claims.Identity())
			ctx = context.WithValue(ctx, TokenKey, token)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// tokenFromRequest checks the Authorization header, then the session cookie,
// then X-Auth-Token.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return r.Header.Get("X-Auth-Token")
}

func GetIdentity(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(auth.Identity)
	return id, ok
}

func GetUserID(ctx context.Context) uuid.UUID {
	if id, ok := GetIdentity(ctx); ok {
		return id.ID
	}
	return uuid.Nil
}

func GetUserEmail(ctx context.Context) string {
	if id, ok := GetIdentity(ctx); ok {
		return id.Email
	}
	return ""
}

// GetToken returns the raw session token the request was authenticated with.
func GetToken(ctx context.Context) string {
	if token, ok := ctx.Value(TokenKey).(string); ok {
		return token
	}
	return ""
}

// RoleLookup loads the current role of a user. Roles are not carried in the
// session token since they change after phone verification.
type RoleLookup func(ctx context.Context, userID uuid.UUID) (models.Role, error)

// RequireRole middleware ensures user has one of the given roles
func RequireRole(lookup RoleLookup, roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := GetUserID(r.Context())
			if userID == uuid.Nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			current, err := lookup(r.Context(), userID)
			if err != nil {
				writeError(w, http.StatusForbidden, "Forbidden")
				return
			}

			for _, role := range roles {
				if current == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeError(w, http.StatusForbidden, "Forbidden")
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
