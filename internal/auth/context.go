package auth

import (
	"context"
	"net/http"
	"strings"

	"estate/internal/core"
)

type scopeKey struct{}

// WithScope returns a context carrying scope.
func WithScope(ctx context.Context, scope core.Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// ScopeFrom returns the authenticated scope, if any.
func ScopeFrom(ctx context.Context) (core.Scope, bool) {
	scope, ok := ctx.Value(scopeKey{}).(core.Scope)
	return scope, ok
}

// ErrorWriter renders authentication failures.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, status int, err error)

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// Middleware requires a valid bearer token and stores its scope in the
// request context.
func Middleware(manager *JWTManager, onError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := manager.Validate(bearerToken(r))
			if err != nil {
				onError(w, r, http.StatusUnauthorized, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithScope(r.Context(), claims.Scope())))
		})
	}
}

// RequireAdmin rejects non-admin callers with 403. It must run after
// Middleware.
func RequireAdmin(onError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope, ok := ScopeFrom(r.Context())
			if !ok {
				onError(w, r, http.StatusUnauthorized, ErrMissingToken)
				return
			}
			if !scope.IsAdmin() {
				onError(w, r, http.StatusForbidden, core.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
