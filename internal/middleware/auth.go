package middleware

import (
	"net/http"
	"strings"

	"audioserve/internal/auth"
)

// openPaths are reachable without credentials: the login endpoint itself
// and the health probes. Everything else, including /version, needs a
// valid token.
var openPaths = map[string]bool{
	"/authenticate": true,
	"/healthz":      true,
	"/livez":        true,
	"/readyz":       true,
}

// Auth returns a middleware that rejects requests lacking valid
// credentials with 401. The client bundle stays open so the login page
// can load; everything under the API surface is gated.
func Auth(a auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if openPaths[r.URL.Path] || isClientAsset(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			if !a.Check(r) {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isClientAsset(path string) bool {
	if path == "/" || path == "/index.html" || path == "/favicon.ico" {
		return true
	}
	return strings.HasPrefix(path, "/static/") || strings.HasSuffix(path, "/bundle.js")
}
