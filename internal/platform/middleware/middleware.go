package middleware

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/google/uuid"

	"veritag/pkg/requestcontext"
)

// RequestContext stamps every request with a correlation ID, a request-scoped
// timestamp, and the scanning agent header when present. Services read these
// through pkg/requestcontext and never touch net/http.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx = requestcontext.WithRequestID(ctx, requestID)
		ctx = requestcontext.WithTime(ctx, time.Now())

		if agent := r.Header.Get("X-Agent-Id"); agent != "" {
			ctx = requestcontext.WithAgentID(ctx, agent)
		}

		w.Header().Set("X-Request-Id", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdminToken guards mutating batch and shipment routes. The scanner
// verification route stays public; issuing and advancing custody do not.
func RequireAdminToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				// No token configured: local development mode.
				next.ServeHTTP(w, r)
				return
			}
			provided := r.Header.Get("X-Admin-Token")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
