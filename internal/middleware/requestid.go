package middleware

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"vidstats/internal/domain"
)

// HeaderRequestID carries the correlation id in both directions.
const HeaderRequestID = "X-Request-ID"

var validRequestID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// RequestID returns an HTTP middleware that assigns a correlation id to each
// request. A well-formed incoming X-Request-ID is reused; anything else is
// replaced with a new UUID so it cannot forge log lines. The id is echoed on
// the response and stored in the request context for the answer log.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if !validRequestID.MatchString(id) {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(domain.WithRequestID(r.Context(), id)))
	})
}

// RequestIDFromContext extracts the request ID from the context.
// Returns an empty string if no request ID is present.
func RequestIDFromContext(ctx context.Context) string {
	return domain.RequestIDFromContext(ctx)
}
