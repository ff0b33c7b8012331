package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"audioserve/internal/auth"
	"audioserve/internal/workers"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func TestAdmissionUnderLimit(t *testing.T) {
	pool := workers.NewPool(1, 8)
	defer pool.Shutdown(context.Background())

	h := Admission(pool, 4)(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/collections", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestAdmissionOverLimit(t *testing.T) {
	pool := workers.NewPool(1, 8)
	defer pool.Shutdown(context.Background())

	// Block the single worker, then queue more jobs than the limit.
	release := make(chan struct{})
	started := make(chan struct{})
	if err := pool.Submit(func() {
		close(started)
		<-release
	}); err != nil {
		t.Fatal(err)
	}
	<-started
	for i := 0; i < 3; i++ {
		if err := pool.Submit(func() {}); err != nil {
			t.Fatal(err)
		}
	}
	defer close(release)

	called := false
	h := Admission(pool, 2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/collections", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Overloaded, try later") {
		t.Errorf("body = %q", rec.Body.String())
	}
	if called {
		t.Error("downstream handler ran on rejected request")
	}
}

func TestAdmissionDisabled(t *testing.T) {
	pool := workers.NewPool(1, 1)
	defer pool.Shutdown(context.Background())

	h := Admission(pool, 0)(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/collections", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("limit 0 should disable admission, got %d", rec.Code)
	}
}

func TestCORSEcho(t *testing.T) {
	h := CORS(true)(okHandler())

	r := httptest.NewRequest("GET", "/collections", nil)
	r.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Errorf("Allow-Origin = %q, want origin echoed back", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("Allow-Credentials missing")
	}
}

func TestCORSNoOrigin(t *testing.T) {
	h := CORS(true)(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/collections", nil))
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("CORS headers set without an Origin header")
	}
}

func TestCORSDisabled(t *testing.T) {
	h := CORS(false)(okHandler())
	r := httptest.NewRequest("GET", "/collections", nil)
	r.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("CORS headers set while disabled")
	}
}

func TestCORSPreflight(t *testing.T) {
	h := CORS(true)(okHandler())
	r := httptest.NewRequest("OPTIONS", "/0/audio/track.mp3", nil)
	r.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), "Range") {
		t.Error("preflight should allow the Range header")
	}
}

func TestAuthGate(t *testing.T) {
	h := Auth(auth.NewTokenAuth("s3cret"))(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/collections", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated request got %d, want 401", rec.Code)
	}

	r := httptest.NewRequest("GET", "/collections", nil)
	r.Header.Set("Authorization", "Bearer s3cret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK {
		t.Errorf("authenticated request got %d, want 200", rec.Code)
	}

	// Login and health endpoints stay reachable without credentials.
	for _, path := range []string{"/authenticate", "/healthz", "/livez", "/readyz", "/", "/bundle.js"} {
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("open path %s got %d, want 200", path, rec.Code)
		}
	}

	// /version reveals configuration, so it sits behind the gate.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/version", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("/version without credentials got %d, want 401", rec.Code)
	}
}

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		path, want string
	}{
		{"/collections", "/collections"},
		{"/2/audio/author/book/chapter.mp3", "/{col}/audio/{path}"},
		{"/audio/author/book/chapter.mp3", "/audio/{path}"},
		{"/0/folder", "/{col}/folder"},
		{"/search", "/search"},
		{"/", "/"},
	}
	for _, tt := range tests {
		if got := normalizeRoute(tt.path); got != tt.want {
			t.Errorf("normalizeRoute(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestSanitizeLogField(t *testing.T) {
	if got := sanitizeLogField("line1\nline2\r"); got != "line1 line2 " {
		t.Errorf("newlines not replaced: %q", got)
	}
	if got := sanitizeLogField("red\x1b[31mtext\x00"); got != "red[31mtext" {
		t.Errorf("escapes not stripped: %q", got)
	}
}
