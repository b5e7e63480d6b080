package server

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware bounds each request with a context deadline. Handlers
// must check context.Done() themselves; cancellation is cooperative.
// Streaming routes are mounted outside this middleware.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
