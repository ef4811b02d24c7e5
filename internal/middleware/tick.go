package middleware

import (
	"net/http"

	"github.com/sproutfam/sprout/internal/scheduler"
)

// Tick drives the opportunistic scheduler from request traffic: every
// authenticated request is a natural entry point at which due transfers and
// closed challenge windows get processed. The registry throttles itself, so
// this is a cheap no-op on most requests.
func Tick(registry *scheduler.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			registry.Tick(r.Context())
			next.ServeHTTP(w, r)
		})
	}
}
