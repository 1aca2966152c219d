package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"dmcore/internal/domain"
	"dmcore/internal/ratelimit"
	"dmcore/internal/security"
)

type contextKey string

const userContextKey contextKey = "currentUser"

// WithUser returns a new context carrying the caller's user id.
func WithUser(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, userContextKey, uid)
}

// CurrentUser extracts the caller's user id from context, if any.
func CurrentUser(r *http.Request) string {
	uid, _ := r.Context().Value(userContextKey).(string)
	return uid
}

// AuthMiddleware validates the Bearer token and attaches its subject to the
// context.
func AuthMiddleware(tokens *security.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
				writeError(w, r, fmt.Errorf("missing or invalid Authorization header: %w", domain.ErrUnauthorized))
				return
			}
			tokenStr := strings.TrimSpace(authHeader[len("Bearer "):])

			uid, err := tokens.Subject(tokenStr)
			if err != nil {
				writeError(w, r, fmt.Errorf("invalid token: %w", domain.ErrUnauthorized))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), uid)))
		})
	}
}

// RateLimit throttles the wrapped routes per authenticated user. A nil pool
// disables it.
func RateLimit(pool *ratelimit.Pool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if pool == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !pool.Allow(CurrentUser(r)) {
				w.Header().Set("Retry-After", "1")
				writeError(w, r, fmt.Errorf("too many messages: %w", domain.ErrRateLimited))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func badRequest(msg string) error {
	return fmt.Errorf("%s: %w", msg, domain.ErrValidation)
}
