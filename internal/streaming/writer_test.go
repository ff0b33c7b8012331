package streaming

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCopyDeliversAllBytes(t *testing.T) {
	data := bytes.Repeat([]byte("abcdefgh"), 1024) // 8KB
	rec := httptest.NewRecorder()

	config := DefaultConfig()
	config.ChunkSize = 1024

	written, err := Copy(context.Background(), rec, bytes.NewReader(data), config)
	if err != nil {
		t.Fatalf("Copy returned error: %v", err)
	}
	if written != int64(len(data)) {
		t.Errorf("Copy wrote %d bytes, want %d", written, len(data))
	}
	if !bytes.Equal(rec.Body.Bytes(), data) {
		t.Error("delivered bytes differ from source")
	}
}

func TestCopyCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	_, err := Copy(ctx, rec, bytes.NewReader([]byte("data")), DefaultConfig())
	if !errors.Is(err, ErrClientGone) {
		t.Errorf("Copy returned %v, want ErrClientGone", err)
	}
}

func TestWriterChunkOrdering(t *testing.T) {
	rec := httptest.NewRecorder()
	config := Config{WriteTimeout: time.Second, ChunkSize: 3}
	sw := NewWriter(context.Background(), rec, config)

	payload := []byte("0123456789")
	n, err := sw.Write(payload)
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if n != len(payload) {
		t.Errorf("Write returned %d, want %d", n, len(payload))
	}
	if got := rec.Body.String(); got != "0123456789" {
		t.Errorf("body = %q, chunks were reordered or dropped", got)
	}
	if sw.BytesWritten() != int64(len(payload)) {
		t.Errorf("BytesWritten = %d, want %d", sw.BytesWritten(), len(payload))
	}
}

func TestWriterNoTimeoutConfigured(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := NewWriter(context.Background(), rec, Config{})

	if _, err := sw.Write([]byte("direct")); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if rec.Body.String() != "direct" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "direct")
	}
}
