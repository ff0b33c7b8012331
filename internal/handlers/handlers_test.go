package handlers

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"audioserve/internal/auth"
	"audioserve/internal/collection"
	"audioserve/internal/icons"
	"audioserve/internal/startup"
	"audioserve/internal/transcode"
	"audioserve/internal/workers"
)

// testServer wires real components against temp directories. ffmpeg is
// never invoked: transcoding tests use a zero-slot transcoder.
type testServer struct {
	h      *Handlers
	router http.Handler
	store  *collection.Store
	cfg    *startup.Config
}

func newTestServer(t *testing.T, collections, maxTranscodings int) *testServer {
	t.Helper()

	cfg := &startup.Config{
		ClientDir:       t.TempDir(),
		AllowSymlinks:   false,
		MaxTranscodings: maxTranscodings,
		Presets:         transcode.DefaultPresets(),
	}
	for i := 0; i < collections; i++ {
		cfg.BaseDirs = append(cfg.BaseDirs, t.TempDir())
		cfg.CollectionNames = append(cfg.CollectionNames, filepath.Base(cfg.BaseDirs[i]))
	}

	store, err := collection.NewStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	pool := workers.NewPool(2, 64)
	t.Cleanup(func() { pool.Shutdown(context.Background()) })

	idx := collection.NewIndexer(store, cfg.BaseDirs, time.Hour, false)
	trans := transcode.New(maxTranscodings, cfg.Presets)
	ic := icons.New(t.TempDir(), 128, false, true)

	h := New(cfg, store, idx, trans, ic, pool, auth.NoAuth{})
	return &testServer{h: h, router: h.Router(), store: store, cfg: cfg}
}

func (ts *testServer) write(t *testing.T, col int, rel string, data []byte) string {
	t.Helper()
	full := filepath.Join(ts.cfg.BaseDirs[col], rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return full
}

func (ts *testServer) get(path string, header map[string]string) *httptest.ResponseRecorder {
	r := httptest.NewRequest("GET", path, nil)
	for k, v := range header {
		r.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, r)
	return rec
}

func audioBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

func TestAudioDirect(t *testing.T) {
	ts := newTestServer(t, 1, 2)
	data := audioBytes(1000)
	ts.write(t, 0, "book/track.mp3", data)

	rec := ts.get("/audio/book/track.mp3", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "audio/mpeg" {
		t.Errorf("Content-Type = %q", got)
	}
	if rec.Header().Get("Accept-Ranges") != "bytes" {
		t.Error("Accept-Ranges missing")
	}
	if rec.Body.Len() != 1000 {
		t.Errorf("body length = %d, want 1000", rec.Body.Len())
	}
}

func TestAudioRanged(t *testing.T) {
	ts := newTestServer(t, 3, 2)
	data := audioBytes(1000)
	ts.write(t, 2, "track.mp3", data)

	rec := ts.get("/2/audio/track.mp3", map[string]string{"Range": "bytes=0-99"})
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 0-99/1000" {
		t.Errorf("Content-Range = %q", got)
	}
	if rec.Body.Len() != 100 {
		t.Errorf("body length = %d, want 100", rec.Body.Len())
	}
	if rec.Body.Bytes()[0] != data[0] || rec.Body.Bytes()[99] != data[99] {
		t.Error("wrong bytes returned")
	}

	// Open-ended range from mid-file.
	rec = ts.get("/2/audio/track.mp3", map[string]string{"Range": "bytes=900-"})
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 900-999/1000" {
		t.Errorf("Content-Range = %q", got)
	}
	if rec.Body.Bytes()[0] != data[900] {
		t.Error("wrong start offset")
	}

	// End clamped to file size.
	rec = ts.get("/2/audio/track.mp3", map[string]string{"Range": "bytes=990-5000"})
	if rec.Code != http.StatusPartialContent || rec.Body.Len() != 10 {
		t.Errorf("clamped range: status %d, %d bytes", rec.Code, rec.Body.Len())
	}
}

func TestAudioRangeErrors(t *testing.T) {
	ts := newTestServer(t, 1, 2)
	ts.write(t, 0, "track.mp3", audioBytes(100))

	tests := []struct {
		header string
		status int
		msg    string
	}{
		{"bytes=0-10,20-30", http.StatusNotImplemented, "Do not support multiple ranges"},
		{"chunks=0-10", http.StatusNotImplemented, "Other than bytes ranges are not supported"},
		{"bytes=", http.StatusBadRequest, "One range is required"},
		{"bytes=junk", http.StatusBadRequest, "Invalid bytes range"},
		{"bytes=50-10", http.StatusBadRequest, "Invalid bytes range"},
		{"bytes=-500", http.StatusBadRequest, "Invalid bytes range"},
	}
	for _, tt := range tests {
		rec := ts.get("/audio/track.mp3", map[string]string{"Range": tt.header})
		if rec.Code != tt.status {
			t.Errorf("Range %q: status = %d, want %d", tt.header, rec.Code, tt.status)
		}
		if !strings.Contains(rec.Body.String(), tt.msg) {
			t.Errorf("Range %q: body = %q, want %q", tt.header, rec.Body.String(), tt.msg)
		}
	}

	// Start past EOF is not satisfiable.
	rec := ts.get("/audio/track.mp3", map[string]string{"Range": "bytes=100-"})
	if rec.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Errorf("status = %d, want 416", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes */100" {
		t.Errorf("Content-Range = %q", got)
	}
}

func TestAudioNotFound(t *testing.T) {
	ts := newTestServer(t, 3, 2)
	ts.write(t, 0, "track.mp3", audioBytes(10))

	// Collection index past the configured range.
	rec := ts.get("/5/audio/track.mp3", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("out-of-range collection: status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Not Found") {
		t.Errorf("body = %q", rec.Body.String())
	}

	// Missing file.
	if rec := ts.get("/audio/nope.mp3", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing file: status = %d", rec.Code)
	}

	// Non-audio file is not served through the audio route.
	ts.write(t, 0, "secret.txt", []byte("secret"))
	if rec := ts.get("/audio/secret.txt", nil); rec.Code != http.StatusNotFound {
		t.Errorf("non-audio file: status = %d", rec.Code)
	}

	// Dot-dot paths never reach the file; the router redirects to the
	// cleaned path, which then misses.
	if rec := ts.get("/audio/../../etc/passwd", nil); rec.Code == http.StatusOK {
		t.Errorf("traversal served: status = %d", rec.Code)
	}
}

func TestResolvePath(t *testing.T) {
	base := string(filepath.Separator) + filepath.Join("srv", "books")

	full, err := resolvePath(base, "author/book")
	if err != nil || full != filepath.Join(base, "author", "book") {
		t.Errorf("resolvePath = %q, %v", full, err)
	}

	full, err = resolvePath(base, "")
	if err != nil || full != base {
		t.Errorf("empty rel: %q, %v", full, err)
	}

	// Climbing is neutralized, never escapes the base.
	full, err = resolvePath(base, "../../etc/passwd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(full, base) {
		t.Errorf("escaped base: %q", full)
	}
}

func TestAudioTranscodeBusy(t *testing.T) {
	// Zero slots means every transcode request is rejected.
	ts := newTestServer(t, 1, 0)
	ts.write(t, 0, "track.mp3", audioBytes(10))
	ts.write(t, 0, "book.m4b", audioBytes(10))

	rec := ts.get("/audio/track.mp3?trans=l&seek=30.5", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Too many transcodings") {
		t.Errorf("body = %q", rec.Body.String())
	}

	// Containers the client cannot play are transcoded even without trans.
	rec = ts.get("/audio/book.m4b", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("forced transcode: status = %d, want 503", rec.Code)
	}

	// Direct play is unaffected by transcoder saturation.
	if rec := ts.get("/audio/track.mp3", nil); rec.Code != http.StatusOK {
		t.Errorf("direct play: status = %d", rec.Code)
	}

	// Bad seek is rejected before a slot is taken.
	rec = ts.get("/audio/track.mp3?trans=l&seek=abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad seek: status = %d, want 400", rec.Code)
	}
}

func TestAudioTranscodeStartFailure(t *testing.T) {
	// An empty PATH makes ffmpeg unstartable, so the transcode fails
	// before any output. The client must see an error status, not an
	// empty 200.
	t.Setenv("PATH", "")

	ts := newTestServer(t, 1, 1)
	ts.write(t, 0, "track.mp3", audioBytes(10))

	rec := ts.get("/audio/track.mp3?trans=l", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Transcoding failed") {
		t.Errorf("body = %q", rec.Body.String())
	}

	// The slot must be free again for the next request.
	if got := ts.h.transcoder.Active(); got != 0 {
		t.Errorf("active transcodings = %d after failure, want 0", got)
	}
}

func TestMethodNotSupported(t *testing.T) {
	ts := newTestServer(t, 1, 2)

	r := httptest.NewRequest("POST", "/collections", nil)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, r)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Method not supported") {
		t.Errorf("body = %q", rec.Body.String())
	}

	r = httptest.NewRequest("DELETE", "/audio/track.mp3", nil)
	rec = httptest.NewRecorder()
	ts.router.ServeHTTP(rec, r)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE audio: status = %d, want 405", rec.Code)
	}
}

func TestFolderListing(t *testing.T) {
	ts := newTestServer(t, 1, 2)
	ts.write(t, 0, "book/01.mp3", audioBytes(10))
	ts.write(t, 0, "book/02.mp3", audioBytes(10))
	ts.write(t, 0, "book/cover.jpg", []byte("img"))
	ts.write(t, 0, "book/part2/03.mp3", audioBytes(10))

	rec := ts.get("/folder/book", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var folder collection.AudioFolder
	if err := json.Unmarshal(rec.Body.Bytes(), &folder); err != nil {
		t.Fatal(err)
	}
	if len(folder.Files) != 2 || len(folder.Subfolders) != 1 {
		t.Errorf("listing = %+v", folder)
	}
	if folder.Cover == nil {
		t.Error("cover missing from listing")
	}

	// Root listing.
	rec = ts.get("/folder", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("root listing status = %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &folder); err != nil {
		t.Fatal(err)
	}
	if len(folder.Subfolders) != 1 || folder.Subfolders[0].Name != "book" {
		t.Errorf("root listing = %+v", folder)
	}

	if rec := ts.get("/folder/missing", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing folder: status = %d", rec.Code)
	}
}

func TestSearch(t *testing.T) {
	ts := newTestServer(t, 1, 2)
	ctx := context.Background()
	if err := ts.store.UpsertFolder(ctx, 0, "verne/mysterious-island", "mysterious-island", time.Now()); err != nil {
		t.Fatal(err)
	}

	// q is required.
	if rec := ts.get("/search", nil); rec.Code != http.StatusNotFound {
		t.Errorf("search without q: status = %d, want 404", rec.Code)
	}

	rec := ts.get("/search?q=mysterious", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var result collection.SearchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if len(result.Subfolders) != 1 || result.Subfolders[0].Path != "verne/mysterious-island" {
		t.Errorf("result = %+v", result)
	}
}

func TestCollections(t *testing.T) {
	ts := newTestServer(t, 3, 2)

	rec := ts.get("/collections", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var cols collection.Collections
	if err := json.Unmarshal(rec.Body.Bytes(), &cols); err != nil {
		t.Fatal(err)
	}
	if cols.Count != 3 || len(cols.Names) != 3 {
		t.Errorf("collections = %+v", cols)
	}
}

func TestTranscodings(t *testing.T) {
	ts := newTestServer(t, 1, 4)

	rec := ts.get("/transcodings", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var info transcodingsInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatal(err)
	}
	if info.MaxTranscodings != 4 || info.Active != 0 {
		t.Errorf("info = %+v", info)
	}
	if info.Low.Bitrate != 32 || info.Medium.Bitrate != 48 || info.High.Bitrate != 64 {
		t.Errorf("presets = %+v", info)
	}
}

func TestCoverAndDescription(t *testing.T) {
	ts := newTestServer(t, 1, 2)
	ts.write(t, 0, "book/cover.jpg", []byte("jpegdata"))
	ts.write(t, 0, "book/about.txt", []byte("a description"))

	rec := ts.get("/cover/book/cover.jpg", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cover status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "image/jpeg" {
		t.Errorf("cover Content-Type = %q", got)
	}
	if !strings.Contains(rec.Header().Get("Cache-Control"), "max-age=86400") {
		t.Errorf("Cache-Control = %q", rec.Header().Get("Cache-Control"))
	}

	rec = ts.get("/desc/book/about.txt", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "a description" {
		t.Errorf("desc: %d %q", rec.Code, rec.Body.String())
	}

	// An audio file is not served through the cover route.
	ts.write(t, 0, "book/track.mp3", audioBytes(10))
	if rec := ts.get("/cover/book/track.mp3", nil); rec.Code != http.StatusNotFound {
		t.Errorf("audio via cover route: status = %d", rec.Code)
	}
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 100, 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestIcon(t *testing.T) {
	ts := newTestServer(t, 1, 2)
	if err := os.MkdirAll(filepath.Join(ts.cfg.BaseDirs[0], "book"), 0o755); err != nil {
		t.Fatal(err)
	}
	writePNG(t, filepath.Join(ts.cfg.BaseDirs[0], "book", "cover.png"), 512, 512)

	rec := ts.get("/icon/book", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("Content-Type = %q", got)
	}
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatalf("response is not a PNG: %v", err)
	}
	b := img.Bounds()
	if b.Dx() > 128 || b.Dy() > 128 {
		t.Errorf("icon not scaled down: %dx%d", b.Dx(), b.Dy())
	}

	// Folder without a cover has no icon.
	if err := os.MkdirAll(filepath.Join(ts.cfg.BaseDirs[0], "bare"), 0o755); err != nil {
		t.Fatal(err)
	}
	if rec := ts.get("/icon/bare", nil); rec.Code != http.StatusNotFound {
		t.Errorf("bare folder icon: status = %d", rec.Code)
	}
}

func TestHealthAndVersion(t *testing.T) {
	ts := newTestServer(t, 1, 2)

	rec := ts.get("/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
	var hs healthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &hs); err != nil {
		t.Fatal(err)
	}
	if hs.Status != "ok" {
		t.Errorf("health = %+v", hs)
	}

	if rec := ts.get("/livez", nil); rec.Code != http.StatusOK {
		t.Errorf("livez status = %d", rec.Code)
	}
	if rec := ts.get("/readyz", nil); rec.Code != http.StatusOK {
		t.Errorf("readyz status = %d", rec.Code)
	}

	rec = ts.get("/version", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("version status = %d", rec.Code)
	}
	var vi versionInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &vi); err != nil {
		t.Fatal(err)
	}
	if vi.AuthMode != "none" || vi.Collections != 1 {
		t.Errorf("version = %+v", vi)
	}
}

func TestAuthenticateEndpoint(t *testing.T) {
	ts := newTestServer(t, 1, 2)

	// Without shared-secret auth the endpoint does not exist.
	r := httptest.NewRequest("POST", "/authenticate", strings.NewReader("secret=x"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, r)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	hash, err := auth.HashSecret("open sesame")
	if err != nil {
		t.Fatal(err)
	}
	ts.h.auth = auth.NewSharedSecret(hash, ts.store)
	router := ts.h.Router()

	r = httptest.NewRequest("POST", "/authenticate", strings.NewReader("secret=open+sesame"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}
	token := rec.Body.String()
	if token == "" {
		t.Fatal("empty token")
	}

	r = httptest.NewRequest("POST", "/authenticate", strings.NewReader("secret=wrong"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, r)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong secret: status = %d", rec.Code)
	}
}
