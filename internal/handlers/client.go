package handlers

import (
	"net/http"
	"strings"
)

// Long-lived assets carry a content hash in practice, so a month of
// caching is safe; index.html must always revalidate.
const bundleCacheAge = "max-age=2592000"

// clientHandler serves the web client's static files.
func (h *Handlers) clientHandler() http.Handler {
	fs := http.FileServer(http.Dir(h.cfg.ClientDir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/bundle.js"), strings.HasPrefix(r.URL.Path, "/static/"):
			w.Header().Set("Cache-Control", bundleCacheAge)
		default:
			w.Header().Set("Cache-Control", "no-cache")
		}
		fs.ServeHTTP(w, r)
	})
}
