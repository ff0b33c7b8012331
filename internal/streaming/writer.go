package streaming

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"audioserve/internal/logging"
)

// Sentinel errors for streaming operations.
var (
	// ErrWriteTimeout indicates a single write exceeded the configured
	// timeout, typically because the client drains data too slowly.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone indicates the client disconnected before the stream
	// completed, detected via request context cancellation.
	ErrClientGone = errors.New("client disconnected")
)

// Config controls timeout-protected streaming.
type Config struct {
	// WriteTimeout bounds a single write to the client.
	WriteTimeout time.Duration
	// ChunkSize splits large writes so cancellation is noticed between
	// chunks. 0 disables chunking.
	ChunkSize int
}

// DefaultConfig returns settings suitable for audio delivery.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 30 * time.Second,
		ChunkSize:    32 * 1024,
	}
}

// Writer wraps an http.ResponseWriter with per-write timeouts, chunking and
// client-disconnect detection.
type Writer struct {
	w       http.ResponseWriter
	ctx     context.Context
	config  Config
	flusher http.Flusher

	mu      sync.Mutex
	written int64
}

// NewWriter wraps w. ctx should be the request context so client
// disconnects cancel the stream.
func NewWriter(ctx context.Context, w http.ResponseWriter, config Config) *Writer {
	sw := &Writer{
		w:      w,
		ctx:    ctx,
		config: config,
	}
	if f, ok := w.(http.Flusher); ok {
		sw.flusher = f
	}
	return sw
}

// Write implements io.Writer.
func (sw *Writer) Write(p []byte) (int, error) {
	select {
	case <-sw.ctx.Done():
		return 0, ErrClientGone
	default:
	}

	if sw.config.ChunkSize > 0 && len(p) > sw.config.ChunkSize {
		return sw.writeChunked(p)
	}
	return sw.writeOne(p)
}

func (sw *Writer) writeChunked(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		select {
		case <-sw.ctx.Done():
			return total, ErrClientGone
		default:
		}

		n := sw.config.ChunkSize
		if len(p) < n {
			n = len(p)
		}

		written, err := sw.writeOne(p[:n])
		total += written
		if err != nil {
			return total, err
		}
		p = p[n:]

		if sw.flusher != nil {
			sw.flusher.Flush()
		}
	}
	return total, nil
}

func (sw *Writer) writeOne(p []byte) (int, error) {
	if sw.config.WriteTimeout <= 0 {
		n, err := sw.w.Write(p)
		sw.account(n)
		return n, err
	}

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)

	go func() {
		n, err := sw.w.Write(p)
		done <- result{n, err}
	}()

	timer := time.NewTimer(sw.config.WriteTimeout)
	defer timer.Stop()

	select {
	case res := <-done:
		sw.account(res.n)
		return res.n, res.err
	case <-timer.C:
		return 0, ErrWriteTimeout
	case <-sw.ctx.Done():
		return 0, ErrClientGone
	}
}

func (sw *Writer) account(n int) {
	sw.mu.Lock()
	sw.written += int64(n)
	sw.mu.Unlock()
}

// BytesWritten returns the number of bytes delivered so far.
func (sw *Writer) BytesWritten() int64 {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.written
}

// Copy streams r to w with timeout protection until EOF, error or client
// disconnect. It returns the bytes delivered and the first error hit;
// ErrClientGone is reported as the error when the request context ends the
// stream.
func Copy(ctx context.Context, w http.ResponseWriter, r io.Reader, config Config) (int64, error) {
	sw := NewWriter(ctx, w, config)
	_, err := io.Copy(sw, r)
	if err != nil {
		logging.Debug("stream ended after %d bytes: %v", sw.BytesWritten(), err)
	}
	return sw.BytesWritten(), err
}
