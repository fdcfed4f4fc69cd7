package auth

import (
	"context"
	"net/http"
)

type contextKey string

const userIDKey contextKey = "user_id"

// UserID extracts the authenticated user id from a request context. Empty
// only if the principal middleware did not run.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// WithUserID returns a context carrying the given user id. Exposed for
// handler tests.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// Principal resolves the tenant for each request and stores it on the
// context. Resolution order: session cookie, then the x-user-id header,
// then the configured demo user. m may be nil when login is disabled.
// When enforce is set, requests with no resolvable user stop with a 401.
func Principal(m *Manager, demoUserID string, enforce bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := ""
			if m != nil {
				if s := m.GetSession(r); s != nil {
					userID = s.UserID
				}
			}
			if userID == "" {
				userID = r.Header.Get("x-user-id")
			}
			if userID == "" {
				if enforce {
					w.Header().Set("Content-Type", "application/json")
					http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
					return
				}
				userID = demoUserID
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}
