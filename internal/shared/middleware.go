package shared

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/expenseflow/expenseflow/internal/platform/httpx"
)

// AuthMiddleware resolves bearer tokens into principals and gates routes by
// role. The resolved principal travels in the request context only; nothing
// else about the caller is ambient.
type AuthMiddleware struct {
	Tokens *TokenManager
	Logger *slog.Logger
}

// RequireAuth rejects requests without a valid bearer token.
func (m AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		principal, err := m.Tokens.Resolve(r.Context(), token)
		if err != nil {
			if m.Logger != nil && err != ErrTokenInvalid {
				m.Logger.Error("resolve token", slog.Any("error", err))
			}
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		ctx := ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole allows only principals holding one of the given roles. It must
// run inside RequireAuth.
func (m AuthMiddleware) RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFromContext(r.Context())
			if principal == nil {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			for _, role := range roles {
				if principal.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			httpx.RespondError(w, httpx.ErrForbidden)
		})
	}
}

// BearerToken extracts the token from an Authorization header, if present.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
