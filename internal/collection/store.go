package collection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"audioserve/internal/logging"
	"audioserve/internal/metrics"

	"github.com/google/uuid"
)

const defaultTimeout = 5 * time.Second

// ErrNotFound is returned by Get when no folder matches the path.
var ErrNotFound = errors.New("folder not found")

// Store is the persistent collection index: folder keys per collection
// with trigram full-text search over folder names, plus the auth session
// table. It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (creating if needed) the collection database at dbPath.
// The parent directory must exist and be writable.
func NewStore(ctx context.Context, dbPath string) (*Store, error) {
	logging.Info("Collection database path: %s", dbPath)

	// WAL mode plus a busy timeout avoids "database is locked" under
	// concurrent request handlers.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to collection database: %w", err)
	}

	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, dbPath: dbPath}
	if err := s.initialize(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize collection schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS folders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		collection INTEGER NOT NULL,
		path TEXT NOT NULL,
		name TEXT NOT NULL,
		last_seen INTEGER NOT NULL,
		UNIQUE(collection, path)
	);

	CREATE INDEX IF NOT EXISTS idx_folders_collection ON folders(collection);

	CREATE VIRTUAL TABLE IF NOT EXISTS folders_fts USING fts5(
		name,
		path,
		content='folders',
		content_rowid='id',
		tokenize='trigram'
	);

	CREATE TRIGGER IF NOT EXISTS folders_ai AFTER INSERT ON folders BEGIN
		INSERT INTO folders_fts(rowid, name, path) VALUES (new.id, new.name, new.path);
	END;
	CREATE TRIGGER IF NOT EXISTS folders_ad AFTER DELETE ON folders BEGIN
		INSERT INTO folders_fts(folders_fts, rowid, name, path) VALUES ('delete', old.id, old.name, old.path);
	END;
	CREATE TRIGGER IF NOT EXISTS folders_au AFTER UPDATE ON folders BEGIN
		INSERT INTO folders_fts(folders_fts, rowid, name, path) VALUES ('delete', old.id, old.name, old.path);
		INSERT INTO folders_fts(rowid, name, path) VALUES (new.id, new.name, new.path);
	END;

	CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);
	`

	initCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := s.db.ExecContext(initCtx, schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) record(op string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.StoreQueriesTotal.WithLabelValues(op, status).Inc()
}

// UpsertFolder records one folder key for a collection. seen marks the
// index run that found it, used later by CleanStale.
func (s *Store) UpsertFolder(ctx context.Context, col int, path, name string, seen time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO folders (collection, path, name, last_seen)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, path) DO UPDATE SET name = excluded.name, last_seen = excluded.last_seen
	`, col, path, name, seen.Unix())
	s.record("upsert_folder", err)
	return err
}

// CleanStale removes folder keys of a collection not seen since the given
// index run, i.e. folders that disappeared from disk.
func (s *Store) CleanStale(ctx context.Context, col int, seen time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM folders WHERE collection = ? AND last_seen < ?`, col, seen.Unix())
	s.record("clean_stale", err)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ListKeys returns all folder paths of a collection, sorted.
func (s *Store) ListKeys(ctx context.Context, col int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path FROM folders WHERE collection = ? ORDER BY path`, col)
	s.record("list_keys", err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		keys = append(keys, p)
	}
	return keys, rows.Err()
}

// prepareTerm quotes a user query for trigram FTS phrase matching.
func prepareTerm(query string) string {
	query = strings.TrimSpace(query)
	query = strings.ReplaceAll(query, `"`, `""`)
	return `"` + query + `"`
}

// Search finds folders of a collection whose name or path matches the
// free-text query. Queries shorter than the trigram minimum fall back to
// a prefix LIKE scan.
func (s *Store) Search(ctx context.Context, col int, query string) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	result := &SearchResult{Subfolders: []FolderRef{}}
	if query == "" {
		return result, nil
	}

	var rows *sql.Rows
	var err error
	if len(query) < 3 {
		// The trigram tokenizer cannot match shorter terms.
		rows, err = s.db.QueryContext(ctx, `
			SELECT name, path FROM folders
			WHERE collection = ? AND name LIKE ? ORDER BY path LIMIT 200
		`, col, query+"%")
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT f.name, f.path
			FROM folders f
			INNER JOIN folders_fts fts ON f.id = fts.rowid
			WHERE folders_fts MATCH ? AND f.collection = ?
			ORDER BY f.path LIMIT 200
		`, prepareTerm(query), col)
	}
	s.record("search", err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ref FolderRef
		if err := rows.Scan(&ref.Name, &ref.Path); err != nil {
			return nil, err
		}
		result.Subfolders = append(result.Subfolders, ref)
	}
	return result, rows.Err()
}

// Get looks up one folder of a collection by its exact path.
func (s *Store) Get(ctx context.Context, col int, path string) (*FolderRef, error) {
	var ref FolderRef
	err := s.db.QueryRowContext(ctx,
		`SELECT name, path FROM folders WHERE collection = ? AND path = ?`,
		col, path).Scan(&ref.Name, &ref.Path)
	s.record("get", err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// CountFolders returns the number of indexed folder keys per collection.
func (s *Store) CountFolders(ctx context.Context, col int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM folders WHERE collection = ?`, col).Scan(&n)
	s.record("count_folders", err)
	if err == nil {
		metrics.StoreFoldersIndexed.WithLabelValues(strconv.Itoa(col)).Set(float64(n))
	}
	return n, err
}

// CreateSession issues a new opaque session token valid for ttl.
func (s *Store) CreateSession(ctx context.Context, ttl time.Duration) (string, time.Time, error) {
	token := uuid.NewString()
	now := time.Now()
	expires := now.Add(ttl)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (token, created_at, expires_at) VALUES (?, ?, ?)`,
		token, now.Unix(), expires.Unix())
	s.record("create_session", err)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expires, nil
}

// ValidateSession reports whether token is a live session.
func (s *Store) ValidateSession(ctx context.Context, token string) (bool, error) {
	var expires int64
	err := s.db.QueryRowContext(ctx,
		`SELECT expires_at FROM sessions WHERE token = ?`, token).Scan(&expires)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	s.record("validate_session", err)
	if err != nil {
		return false, err
	}
	return time.Now().Unix() < expires, nil
}

// CleanExpiredSessions deletes sessions past their expiry.
func (s *Store) CleanExpiredSessions(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`, time.Now().Unix())
	s.record("clean_sessions", err)
	if err != nil {
		logging.Error("failed to clean expired sessions: %v", err)
	}
	return err
}
