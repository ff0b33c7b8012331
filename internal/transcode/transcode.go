package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"audioserve/internal/logging"
	"audioserve/internal/metrics"
	"audioserve/internal/streaming"
)

// ErrBusy is returned when all transcoding slots are taken.
var ErrBusy = errors.New("too many transcodings")

// OutputMime is the content type of every transcoded stream.
const OutputMime = "audio/ogg"

// Transcoder arbitrates a bounded number of concurrent ffmpeg transcodes
// and runs them. The active count never exceeds the configured maximum and
// every acquired slot is released exactly once, on all exit paths.
type Transcoder struct {
	max     int64
	active  atomic.Int64
	presets Presets
	stream  streaming.Config
}

// New creates a Transcoder allowing at most maxTranscodings concurrent
// operations.
func New(maxTranscodings int, presets Presets) *Transcoder {
	if maxTranscodings < 1 {
		maxTranscodings = 1
	}
	return &Transcoder{
		max:     int64(maxTranscodings),
		presets: presets,
		stream:  streaming.DefaultConfig(),
	}
}

// Max returns the configured concurrency bound.
func (t *Transcoder) Max() int {
	return int(t.max)
}

// Presets returns the configured quality presets.
func (t *Transcoder) Presets() Presets {
	return t.presets
}

// Active returns the number of transcodes currently holding a slot.
func (t *Transcoder) Active() int {
	return int(t.active.Load())
}

// Slot is one unit of transcoding concurrency. Release returns it and is
// safe to call more than once.
type Slot struct {
	t    *Transcoder
	once sync.Once
}

// Release returns the slot to the transcoder.
func (s *Slot) Release() {
	s.once.Do(func() {
		s.t.active.Add(-1)
		metrics.TranscodingsActive.Dec()
	})
}

// TryAcquire takes a slot if one is free. It never blocks; when the bound
// is reached it returns ErrBusy and the request should fail with 503.
func (t *Transcoder) TryAcquire() (*Slot, error) {
	for {
		n := t.active.Load()
		if n >= t.max {
			metrics.TranscodingsTotal.WithLabelValues("rejected").Inc()
			return nil, ErrBusy
		}
		if t.active.CompareAndSwap(n, n+1) {
			metrics.TranscodingsActive.Inc()
			return &Slot{t: t}, nil
		}
	}
}

// buildArgs assembles the ffmpeg invocation. seek is in seconds; a
// non-positive seek starts from the beginning.
func buildArgs(path string, seek float64, q Quality) []string {
	args := []string{"-nostdin", "-v", "error"}
	if seek > 0 {
		args = append(args, "-ss", strconv.FormatFloat(seek, 'f', -1, 64))
	}
	args = append(args,
		"-i", path,
		"-map", "0:a",
		"-acodec", q.Codec,
		"-b:a", fmt.Sprintf("%dk", q.Bitrate),
		"-compression_level", strconv.Itoa(q.CompressionLevel),
		"-f", "ogg",
		"-",
	)
	return args
}

// Run transcodes the audio file at path and streams the encoded bytes to
// w. The caller must already hold slot; Run releases it on every exit
// path, including client disconnect. seek is the playback start offset in
// seconds. The returned count is the bytes delivered to the client: on a
// failure with zero bytes no response has been committed yet and the
// caller can still send an error status.
func (t *Transcoder) Run(ctx context.Context, slot *Slot, path string, seek float64, level QualityLevel, w http.ResponseWriter) (int64, error) {
	defer slot.Release()

	start := time.Now()
	quality := t.presets.Get(level)

	cmd := exec.CommandContext(ctx, "ffmpeg", buildArgs(path, seek, quality)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		metrics.TranscodingsTotal.WithLabelValues("failed").Inc()
		return 0, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		metrics.TranscodingsTotal.WithLabelValues("failed").Inc()
		return 0, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	logging.Debug("transcoding %s at %s quality (%dk %s), seek=%v",
		path, level, quality.Bitrate, quality.Codec, seek)

	w.Header().Set("Content-Type", OutputMime)
	w.Header().Del("Content-Length")

	written, streamErr := streaming.Copy(ctx, w, stdout, t.stream)
	cmdErr := cmd.Wait()

	switch {
	case errors.Is(streamErr, streaming.ErrClientGone):
		// CommandContext already killed ffmpeg via the canceled context.
		metrics.TranscodingsTotal.WithLabelValues("canceled").Inc()
		logging.Debug("transcode of %s canceled by client after %v", path, time.Since(start))
		return written, nil
	case streamErr != nil:
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		metrics.TranscodingsTotal.WithLabelValues("failed").Inc()
		return written, streamErr
	case cmdErr != nil:
		if ctx.Err() != nil {
			metrics.TranscodingsTotal.WithLabelValues("canceled").Inc()
			return written, ctx.Err()
		}
		metrics.TranscodingsTotal.WithLabelValues("failed").Inc()
		logging.Error("ffmpeg failed for %s: %v, stderr: %s", path, cmdErr, stderr.String())
		return written, fmt.Errorf("transcoding error: %w", cmdErr)
	}

	metrics.TranscodingsTotal.WithLabelValues("completed").Inc()
	metrics.TranscodingDuration.Observe(time.Since(start).Seconds())
	return written, nil
}
