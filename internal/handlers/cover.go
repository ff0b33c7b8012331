package handlers

import (
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/mux"

	"audioserve/internal/collection"
	"audioserve/internal/logging"
)

// Covers and descriptions change rarely, icons effectively never for an
// unchanged file, so both get a day of client-side caching.
const artifactCacheAge = 24 * 60 * 60

// Cover serves a folder's cover image at full size.
func (h *Handlers) Cover(w http.ResponseWriter, r *http.Request) {
	h.serveArtifact(w, r, collection.IsCover)
}

// Description serves a folder's description file.
func (h *Handlers) Description(w http.ResponseWriter, r *http.Request) {
	h.serveArtifact(w, r, collection.IsDescription)
}

func (h *Handlers) serveArtifact(w http.ResponseWriter, r *http.Request, accepts func(string) bool) {
	_, base, err := h.collectionOf(r)
	if err != nil {
		notFound(w)
		return
	}

	full, err := resolvePath(base, mux.Vars(r)["path"])
	if err != nil || !accepts(full) {
		notFound(w)
		return
	}

	h.sendFile(w, r, full, collection.MimeFor(full), artifactCacheAge)
}

// Icon serves the scaled-down cover of a folder as PNG. The path names
// the folder, not the image; the folder's first cover is used.
func (h *Handlers) Icon(w http.ResponseWriter, r *http.Request) {
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

	var icon []byte
	err = h.pool.Run(r.Context(), func() error {
		folder, listErr := collection.ListFolder(base, rel, h.cfg.AllowSymlinks)
		if listErr != nil {
			return listErr
		}
		if folder.Cover == nil {
			return os.ErrNotExist
		}
		coverPath, pathErr := resolvePath(base, folder.Cover.Path)
		if pathErr != nil {
			return pathErr
		}
		var iconErr error
		icon, iconErr = h.icons.Icon(coverPath)
		return iconErr
	})
	if err != nil {
		logging.Debug("icon for %s unavailable: %v", rel, err)
		notFound(w)
		return
	}

	hdr := w.Header()
	hdr.Set("Content-Type", "image/png")
	hdr.Set("Content-Length", strconv.Itoa(len(icon)))
	hdr.Set("Cache-Control", "max-age="+strconv.Itoa(artifactCacheAge))
	if _, err := w.Write(icon); err != nil {
		logging.Debug("icon write failed: %v", err)
	}
}
