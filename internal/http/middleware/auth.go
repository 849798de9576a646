package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Shamsejaz/PrivacyGuard-sub000/internal/httputil"
	"github.com/Shamsejaz/PrivacyGuard-sub000/pkg/auth"
	"github.com/Shamsejaz/PrivacyGuard-sub000/pkg/domain"
)

type contextKey string

const (
	// PrincipalKey is the context key for the authenticated principal.
	PrincipalKey contextKey = "principal"
	// SessionKey is the context key for the validated session snapshot.
	SessionKey contextKey = "session"
)

// Auth creates middleware that authenticates requests. The bearer token
// is parsed for its session ID, then the session is validated against
// the registry, which also counts as activity. A token that parses but
// whose session is gone gets the same 401 as a garbage token.
func Auth(tokens *auth.TokenService, manager *auth.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := bearerToken(r)
			if tokenString == "" {
				httputil.Error(w, http.StatusUnauthorized, "missing authorization")
				return
			}

			claims, err := tokens.Parse(tokenString)
			if err != nil {
				httputil.Error(w, http.StatusUnauthorized, "invalid or expired session")
				return
			}

			principal, session, err := manager.Validate(r.Context(), claims.ID)
			if err != nil {
				httputil.Error(w, http.StatusUnauthorized, "invalid or expired session")
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalKey, principal)
			ctx = context.WithValue(ctx, SessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// GetPrincipal extracts the authenticated principal from the context.
func GetPrincipal(ctx context.Context) (domain.Principal, bool) {
	principal, ok := ctx.Value(PrincipalKey).(domain.Principal)
	return principal, ok
}

// GetSession extracts the validated session snapshot from the context.
func GetSession(ctx context.Context) (domain.Session, bool) {
	session, ok := ctx.Value(SessionKey).(domain.Session)
	return session, ok
}
