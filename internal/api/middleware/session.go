package middleware

import (
	"net/http"

	"github.com/mpetrov/pinwall/internal/service"
)

// SessionCache installs a per-request memoization cache for session lookups.
// Gateway routing and handlers may both resolve the caller's token; with the
// cache in place the store is hit at most once per request.
func SessionCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := service.WithSessionCache(r.Context())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
