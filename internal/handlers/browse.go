package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"audioserve/internal/collection"
	"audioserve/internal/logging"
	"audioserve/internal/transcode"
)

// Folder lists one folder of a collection: audio files, subfolders and
// the optional cover and description. The listing runs on the worker
// pool so filesystem pressure shows up in the admission queue.
func (h *Handlers) Folder(w http.ResponseWriter, r *http.Request) {
	_, base, err := h.collectionOf(r)
	if err != nil {
		notFound(w)
		return
	}

	rel := mux.Vars(r)["path"]
	if _, err := resolvePath(base, rel); err != nil {
		notFound(w)
		return
	}

	var folder *collection.AudioFolder
	err = h.pool.Run(r.Context(), func() error {
		var listErr error
		folder, listErr = collection.ListFolder(base, rel, h.cfg.AllowSymlinks)
		return listErr
	})
	if err != nil {
		logging.Debug("folder listing of %s failed: %v", rel, err)
		notFound(w)
		return
	}

	h.writeJSON(w, folder)
}

// Search finds folders by name. The q parameter is required; its absence
// means the route does not exist as far as clients are concerned.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	col, _, err := h.collectionOf(r)
	if err != nil {
		notFound(w)
		return
	}

	q := r.URL.Query().Get("q")
	if q == "" {
		notFound(w)
		return
	}

	var result *collection.SearchResult
	err = h.pool.Run(r.Context(), func() error {
		var searchErr error
		result, searchErr = h.store.Search(r.Context(), col, q)
		return searchErr
	})
	if err != nil {
		logging.Error("search for %q failed: %v", q, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, result)
}

// Collections reports the configured collections.
func (h *Handlers) Collections(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, collection.Collections{
		Count: len(h.cfg.BaseDirs),
		Names: h.cfg.CollectionNames,
	})
}

type transcodingsInfo struct {
	MaxTranscodings int               `json:"max_transcodings"`
	Active          int               `json:"active"`
	Low             transcode.Quality `json:"low"`
	Medium          transcode.Quality `json:"medium"`
	High            transcode.Quality `json:"high"`
}

// Transcodings reports the transcoding presets and current load, so
// clients can pick a quality level and show saturation.
func (h *Handlers) Transcodings(w http.ResponseWriter, _ *http.Request) {
	presets := h.transcoder.Presets()
	h.writeJSON(w, transcodingsInfo{
		MaxTranscodings: h.transcoder.Max(),
		Active:          h.transcoder.Active(),
		Low:             presets.Low,
		Medium:          presets.Medium,
		High:            presets.High,
	})
}
