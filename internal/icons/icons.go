package icons

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"audioserve/internal/logging"
	"audioserve/internal/metrics"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Cache produces square PNG thumbnails of cover images and keeps them on
// disk so a cover is scaled at most once per source revision.
type Cache struct {
	dir         string
	size        int
	fastScaling bool
	enabled     bool
	mu          sync.Mutex
}

// New creates the icon cache. dir is the on-disk cache location, size the
// bounding square in pixels. With fastScaling a cheaper resampling filter
// is used. enabled=false turns the cache off entirely; icons are then
// scaled on every request.
func New(dir string, size int, fastScaling, enabled bool) *Cache {
	if size < 1 {
		size = 128
	}
	if enabled {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logging.Warn("icon cache: failed to create %s, disabling cache: %v", dir, err)
			enabled = false
		}
	}
	return &Cache{
		dir:         dir,
		size:        size,
		fastScaling: fastScaling,
		enabled:     enabled,
	}
}

// Size returns the configured bounding size in pixels.
func (c *Cache) Size() int {
	return c.size
}

func (c *Cache) filter() imaging.ResampleFilter {
	if c.fastScaling {
		// Triangle filter, cheap and good enough for small icons.
		return imaging.Linear
	}
	return imaging.Lanczos
}

// ScaleCover decodes the image at path (format auto-detected), resizes it
// to fit within the configured square and returns it encoded as PNG. Any
// decode or encode failure fails the whole operation.
func (c *Cache) ScaleCover(path string) ([]byte, error) {
	start := time.Now()

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode cover %s: %w", path, err)
	}

	thumb := imaging.Fit(img, c.size, c.size, c.filter())

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode icon for %s: %w", path, err)
	}

	metrics.IconScaleDuration.Observe(time.Since(start).Seconds())
	return buf.Bytes(), nil
}

// cacheKey derives the cache file name from the source path plus a
// freshness signal, so a changed cover never serves a stale icon.
func (c *Cache) cacheKey(path string, size int64, modTime time.Time) string {
	sum := md5.Sum(fmt.Appendf(nil, "%s|%d|%d", path, size, modTime.UnixNano()))
	return fmt.Sprintf("%x.png", sum)
}

// Icon returns the PNG thumbnail for the image at path, from cache when
// possible. A cache write failure is logged and otherwise ignored; the
// freshly scaled bytes are still returned.
func (c *Cache) Icon(path string) ([]byte, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cover not accessible: %w", err)
	}

	if !c.enabled {
		return c.ScaleCover(path)
	}

	cachePath := filepath.Join(c.dir, c.cacheKey(path, fi.Size(), fi.ModTime()))

	if data, err := os.ReadFile(cachePath); err == nil {
		metrics.IconCacheHits.Inc()
		logging.Debug("icon cache hit: %s", path)
		return data, nil
	}
	metrics.IconCacheMisses.Inc()

	// One scale per source at a time; a concurrent request for the same
	// cover waits and then hits the cache.
	c.mu.Lock()
	defer c.mu.Unlock()

	if data, err := os.ReadFile(cachePath); err == nil {
		return data, nil
	}

	data, err := c.ScaleCover(path)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(cachePath, data, 0o644); err != nil {
		logging.Warn("icon cache: failed to store %s: %v", cachePath, err)
	}
	return data, nil
}
