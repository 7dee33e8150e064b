package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const SessionIDKey contextKey = "session_id"

// SessionID copies the X-Session-ID header into the request context. Values
// that fail ValidID are ignored.
func SessionID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := strings.TrimSpace(r.Header.Get("X-Session-ID"))
		if !ValidID(sessionID) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), SessionIDKey, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSessionID returns the session ID from context.
func GetSessionID(ctx context.Context) string {
	sessionID, _ := ctx.Value(SessionIDKey).(string)
	return sessionID
}
