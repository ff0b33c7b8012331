package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/mux"

	"audioserve/internal/collection"
	"audioserve/internal/httprange"
	"audioserve/internal/logging"
	"audioserve/internal/streaming"
	"audioserve/internal/transcode"
)

// Audio serves one audio file, either directly (honoring a byte range) or
// transcoded. Transcoding is requested with trans=l|m|h and forced for
// containers the web client cannot play; seek=<seconds> starts transcoded
// playback mid-file. A Range header is ignored while transcoding, because
// encoder output bytes do not map to source bytes.
func (h *Handlers) Audio(w http.ResponseWriter, r *http.Request) {
	_, base, err := h.collectionOf(r)
	if err != nil {
		notFound(w)
		return
	}

	full, err := resolvePath(base, mux.Vars(r)["path"])
	if err != nil {
		notFound(w)
		return
	}

	info, err := os.Stat(full)
	if err != nil || !info.Mode().IsRegular() || !collection.IsAudio(full) {
		notFound(w)
		return
	}

	level, explicit := transcode.FromLetter(r.URL.Query().Get("trans"))

	if explicit || collection.MustTranscode(full) {
		if !explicit {
			// Forced transcode without a requested quality gets the
			// cheapest preset.
			level = transcode.Low
		}
		seek := 0.0
		if s := r.URL.Query().Get("seek"); s != "" {
			seek, err = strconv.ParseFloat(s, 64)
			if err != nil || seek < 0 {
				http.Error(w, "Invalid seek parameter", http.StatusBadRequest)
				return
			}
		}
		h.serveTranscoded(w, r, full, seek, level)
		return
	}

	h.sendFile(w, r, full, collection.MimeFor(full), 0)
}

func (h *Handlers) serveTranscoded(w http.ResponseWriter, r *http.Request, path string, seek float64, level transcode.QualityLevel) {
	slot, err := h.transcoder.TryAcquire()
	if err != nil {
		http.Error(w, "Too many transcodings", http.StatusServiceUnavailable)
		return
	}

	written, err := h.transcoder.Run(r.Context(), slot, path, seek, level, w)
	if err != nil {
		if written == 0 {
			// Nothing was sent, so the status line is still ours to set.
			http.Error(w, "Transcoding failed", http.StatusInternalServerError)
			return
		}
		// Mid-stream failure, headers already committed.
		logging.Error("transcoding of %s failed after %d bytes: %v", path, written, err)
	}
}

// sendFile streams a file with byte-range support. cacheAge > 0 adds a
// Cache-Control header with that max-age in seconds.
func (h *Handlers) sendFile(w http.ResponseWriter, r *http.Request, path, mime string, cacheAge int) {
	f, err := os.Open(path)
	if err != nil {
		notFound(w)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		notFound(w)
		return
	}
	size := uint64(info.Size())

	rng, err := httprange.Parse(r.Header.Get("Range"))
	if err != nil {
		var perr *httprange.ParseError
		if errors.As(err, &perr) {
			http.Error(w, perr.Message, perr.Status)
			return
		}
		http.Error(w, "Invalid bytes range", http.StatusBadRequest)
		return
	}

	hdr := w.Header()
	hdr.Set("Content-Type", mime)
	hdr.Set("Accept-Ranges", "bytes")
	if cacheAge > 0 {
		hdr.Set("Cache-Control", fmt.Sprintf("max-age=%d", cacheAge))
	}

	if rng == nil {
		hdr.Set("Content-Length", strconv.FormatUint(size, 10))
		w.WriteHeader(http.StatusOK)
		if _, err := streaming.Copy(r.Context(), w, f, h.stream); err != nil && !errors.Is(err, streaming.ErrClientGone) {
			logging.Debug("send of %s interrupted: %v", path, err)
		}
		return
	}

	length, ok := rng.Length(size)
	if !ok {
		hdr.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Range not satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return
	}

	if _, err := f.Seek(int64(rng.Start), io.SeekStart); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	end := rng.Start + length - 1
	hdr.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rng.Start, end, size))
	hdr.Set("Content-Length", strconv.FormatUint(length, 10))
	w.WriteHeader(http.StatusPartialContent)

	limited := io.LimitReader(f, int64(length))
	if _, err := streaming.Copy(r.Context(), w, limited, h.stream); err != nil && !errors.Is(err, streaming.ErrClientGone) {
		logging.Debug("ranged send of %s interrupted: %v", path, err)
	}
}
