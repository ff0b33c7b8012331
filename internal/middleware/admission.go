package middleware

import (
	"net/http"

	"audioserve/internal/logging"
	"audioserve/internal/metrics"
	"audioserve/internal/workers"
)

// Admission returns a middleware that sheds load when the worker pool's
// queue is past limit. Rejected requests get 503 immediately, before any
// authentication or routing work is spent on them. limit <= 0 disables
// the check.
func Admission(pool *workers.Pool, limit int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit > 0 {
				if depth := pool.QueueSize(); depth > limit {
					logging.Warn("server overloaded, queue depth %d over limit %d", depth, limit)
					metrics.RequestsRejected.Inc()
					http.Error(w, "Overloaded, try later", http.StatusServiceUnavailable)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
