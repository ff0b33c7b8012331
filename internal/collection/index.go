package collection

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"audioserve/internal/logging"
)

// Indexer periodically walks the collection base directories and records
// every folder key in the Store so searches run against fresh data.
type Indexer struct {
	store         *Store
	baseDirs      []string
	interval      time.Duration
	allowSymlinks bool

	indexing atomic.Bool
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// NewIndexer creates an indexer over the configured base directories.
func NewIndexer(store *Store, baseDirs []string, interval time.Duration, allowSymlinks bool) *Indexer {
	return &Indexer{
		store:         store,
		baseDirs:      baseDirs,
		interval:      interval,
		allowSymlinks: allowSymlinks,
		done:          make(chan struct{}),
	}
}

// Start runs an initial index pass and then reindexes periodically until
// Stop is called.
func (idx *Indexer) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	idx.cancel = cancel

	go func() {
		defer close(idx.done)

		idx.IndexAll(ctx)

		ticker := time.NewTicker(idx.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				idx.IndexAll(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop terminates background indexing and waits for the current pass to
// finish.
func (idx *Indexer) Stop() {
	idx.stopOnce.Do(func() {
		if idx.cancel != nil {
			idx.cancel()
		}
		<-idx.done
	})
}

// IsIndexing reports whether an index pass is currently running.
func (idx *Indexer) IsIndexing() bool {
	return idx.indexing.Load()
}

// IndexAll walks every collection once. Overlapping passes are skipped.
func (idx *Indexer) IndexAll(ctx context.Context) {
	if !idx.indexing.CompareAndSwap(false, true) {
		logging.Debug("index pass already running, skipping")
		return
	}
	defer idx.indexing.Store(false)

	for col, base := range idx.baseDirs {
		if ctx.Err() != nil {
			return
		}
		if err := idx.indexCollection(ctx, col, base); err != nil {
			logging.Error("indexing collection %d (%s) failed: %v", col, base, err)
		}
	}
}

func (idx *Indexer) indexCollection(ctx context.Context, col int, base string) error {
	start := time.Now()
	var folders int64

	walkErr := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.Warn("cannot access %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if d.Type()&fs.ModeSymlink != 0 {
			if !idx.allowSymlinks {
				return nil
			}
			ti, err := os.Stat(path)
			if err != nil || !ti.IsDir() {
				return nil
			}
		} else if !d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(base, path)
		if err != nil || rel == "." {
			return nil
		}

		folders++
		return idx.store.UpsertFolder(ctx, col, rel, filepath.Base(rel), start)
	})
	if walkErr != nil {
		return walkErr
	}

	removed, err := idx.store.CleanStale(ctx, col, start)
	if err != nil {
		return err
	}

	if _, err := idx.store.CountFolders(ctx, col); err != nil {
		logging.Debug("folder count for collection %d failed: %v", col, err)
	}

	logging.Info("indexed collection %d: %d folders (%d removed) in %v",
		col, folders, removed, time.Since(start))
	return nil
}
