package handlers

import (
	"net/http"
	"time"

	"audioserve/internal/startup"
)

type healthStatus struct {
	Status             string `json:"status"`
	Uptime             string `json:"uptime"`
	Indexing           bool   `json:"indexing"`
	ActiveTranscodings int    `json:"activeTranscodings"`
	QueueDepth         int    `json:"queueDepth"`
}

// HealthCheck reports overall server health.
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, healthStatus{
		Status:             "ok",
		Uptime:             time.Since(h.startTime).Round(time.Second).String(),
		Indexing:           h.indexer.IsIndexing(),
		ActiveTranscodings: h.transcoder.Active(),
		QueueDepth:         h.pool.QueueSize(),
	})
}

// LivenessCheck answers as long as the process serves requests.
func (h *Handlers) LivenessCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ReadinessCheck verifies the collection database answers queries.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.CountFolders(r.Context(), 0); err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type versionInfo struct {
	startup.BuildInfo
	AuthMode    string `json:"authMode"`
	Collections int    `json:"collections"`
}

// Version reports build information plus enough about the configuration
// for a client to adapt.
func (h *Handlers) Version(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, versionInfo{
		BuildInfo:   startup.GetBuildInfo(),
		AuthMode:    h.auth.Mode(),
		Collections: len(h.cfg.BaseDirs),
	})
}
