package handlers

import (
	"net/http"

	"audioserve/internal/auth"
	"audioserve/internal/logging"
)

// Authenticate exchanges the shared secret (form field "secret") for a
// session token, returned as plain text. Only meaningful in shared-secret
// mode; other modes don't have this endpoint.
func (h *Handlers) Authenticate(w http.ResponseWriter, r *http.Request) {
	shared, ok := h.auth.(*auth.SharedSecret)
	if !ok {
		notFound(w)
		return
	}

	if shared.Throttled() {
		http.Error(w, "Too many failed attempts, try later", http.StatusTooManyRequests)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	secret := r.PostFormValue("secret")
	if secret == "" {
		http.Error(w, "Missing secret", http.StatusBadRequest)
		return
	}

	token, _, ok := shared.Login(r.Context(), secret)
	if !ok {
		logging.Warn("failed authentication attempt from %s", r.RemoteAddr)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	if _, err := w.Write([]byte(token)); err != nil {
		logging.Debug("token write failed: %v", err)
	}
}
