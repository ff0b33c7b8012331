package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"audioserve/internal/auth"
	"audioserve/internal/collection"
	"audioserve/internal/icons"
	"audioserve/internal/logging"
	"audioserve/internal/startup"
	"audioserve/internal/streaming"
	"audioserve/internal/transcode"
	"audioserve/internal/workers"
)

// errPathEscape is returned for paths trying to climb out of a collection.
var errPathEscape = errors.New("path escapes collection root")

type Handlers struct {
	cfg        *startup.Config
	store      *collection.Store
	indexer    *collection.Indexer
	transcoder *transcode.Transcoder
	icons      *icons.Cache
	pool       *workers.Pool
	auth       auth.Authenticator
	stream     streaming.Config
	startTime  time.Time
}

func New(cfg *startup.Config, store *collection.Store, idx *collection.Indexer,
	trans *transcode.Transcoder, ic *icons.Cache, pool *workers.Pool, a auth.Authenticator) *Handlers {
	return &Handlers{
		cfg:        cfg,
		store:      store,
		indexer:    idx,
		transcoder: trans,
		icons:      ic,
		pool:       pool,
		auth:       a,
		stream:     streaming.DefaultConfig(),
		startTime:  time.Now(),
	}
}

// Router builds the request router. Every content route is registered
// twice: once bare (collection 0) and once under the numeric collection
// prefix. /collections and /transcodings never take a prefix, so a first
// segment of digits always means a collection index.
func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Method not supported", http.StatusMethodNotAllowed)
	})

	r.HandleFunc("/authenticate", h.Authenticate).Methods("POST")
	r.HandleFunc("/collections", h.Collections).Methods("GET")
	r.HandleFunc("/transcodings", h.Transcodings).Methods("GET")

	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.Version).Methods("GET")

	content := func(path string, fn http.HandlerFunc) {
		r.HandleFunc(path, fn).Methods("GET")
		r.HandleFunc("/{col:[0-9]+}"+path, fn).Methods("GET")
	}
	content("/audio/{path:.*}", h.Audio)
	content("/folder", h.Folder)
	content("/folder/{path:.*}", h.Folder)
	content("/search", h.Search)
	content("/cover/{path:.*}", h.Cover)
	content("/desc/{path:.*}", h.Description)
	content("/icon/{path:.*}", h.Icon)

	// Everything else is the web client.
	r.PathPrefix("/").Handler(h.clientHandler()).Methods("GET")

	return r
}

// collectionOf resolves the numeric collection prefix of the request, or
// 0 when there is none. Out-of-range indexes are reported as not found.
func (h *Handlers) collectionOf(r *http.Request) (int, string, error) {
	vars := mux.Vars(r)
	col := 0
	if v, ok := vars["col"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, "", fmt.Errorf("invalid collection index %q", v)
		}
		col = n
	}
	if col < 0 || col >= len(h.cfg.BaseDirs) {
		return 0, "", fmt.Errorf("no collection %d", col)
	}
	return col, h.cfg.BaseDirs[col], nil
}

// resolvePath joins the request's path variable onto the collection base,
// rejecting anything that would escape it.
func resolvePath(base, rel string) (string, error) {
	rel = filepath.Clean("/" + rel)[1:] // strip any ".." climbing
	full := filepath.Join(base, rel)
	if full != base && !strings.HasPrefix(full, base+string(filepath.Separator)) {
		return "", errPathEscape
	}
	return full, nil
}

func (h *Handlers) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode response: %v", err)
	}
}

func notFound(w http.ResponseWriter) {
	http.Error(w, "Not Found", http.StatusNotFound)
}
