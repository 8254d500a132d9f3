// Package cachestore is the durable key-value cache for fetched
// documents, grounded in the Python prototype's cache.py CacheManager
// (SQLite, lazy expiration on read) and in the teacher's cache.go
// atomic-write discipline, adapted from one JSON blob per source to
// one SQL row per canonical_id.
package cachestore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/j4ng5y/flutter-docs-mcp-server/internal/model"
)

// currentSchemaVersion is bumped whenever the row shape changes.
// Migrations below must cover every version in between.
const currentSchemaVersion = 2

// Store is a SQLite-backed cache of canonical_id -> Document. All
// operations are safe for concurrent use from a single process; the
// store does not support being shared across processes.
type Store struct {
	mu    sync.Mutex
	db    *sql.DB
	stats *hitWindow
}

// Stats summarizes cache occupancy for the status tool.
type Stats struct {
	Entries       int
	TotalBytes    int64
	HitRateWindow float64
}

// hitWindow counts hits/misses cumulatively since Open for
// Stats.HitRateWindow; it is not a sliding window.
type hitWindow struct {
	mu     sync.Mutex
	hits   int
	misses int
}

func (h *hitWindow) recordHit() {
	h.mu.Lock()
	h.hits++
	h.mu.Unlock()
}

func (h *hitWindow) recordMiss() {
	h.mu.Lock()
	h.misses++
	h.mu.Unlock()
}

func (h *hitWindow) rate() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	total := h.hits + h.misses
	if total == 0 {
		return 0
	}
	return float64(h.hits) / float64(total)
}

// Open opens (creating if necessary) the SQLite database at path and
// runs any pending schema migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("cachestore: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers across conns
	s := &Store{db: db, stats: &hitWindow{}}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_meta (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("cachestore: create schema_meta: %w", err)
	}
	var stored int
	row := s.db.QueryRow(`SELECT version FROM schema_meta LIMIT 1`)
	if err := row.Scan(&stored); err != nil {
		if err != sql.ErrNoRows {
			return fmt.Errorf("cachestore: read schema version: %w", err)
		}
		stored = 0
	}

	if stored == 0 {
		if _, err := s.db.Exec(`
			CREATE TABLE IF NOT EXISTS documents (
				key TEXT PRIMARY KEY,
				content BLOB NOT NULL,
				tokens INTEGER NOT NULL,
				url TEXT NOT NULL,
				fetched_at INTEGER NOT NULL,
				ttl_ms INTEGER NOT NULL,
				version TEXT NOT NULL DEFAULT ''
			)`); err != nil {
			return fmt.Errorf("cachestore: create documents table: %w", err)
		}
		stored = 1
	}

	if stored == 1 {
		// Additive migration: v1 always had `tokens`; this step exists so a
		// hand-built v1 database (no `tokens` column) upgrades cleanly
		// instead of dropping data, per spec.md §4.D.
		if !s.hasColumn("documents", "tokens") {
			if _, err := s.db.Exec(`ALTER TABLE documents ADD COLUMN tokens INTEGER NOT NULL DEFAULT 0`); err != nil {
				return fmt.Errorf("cachestore: migrate v1->v2 add tokens: %w", err)
			}
		}
		stored = 2
	}

	if _, err := s.db.Exec(`DELETE FROM schema_meta`); err != nil {
		return fmt.Errorf("cachestore: clear schema_meta: %w", err)
	}
	if _, err := s.db.Exec(`INSERT INTO schema_meta (version) VALUES (?)`, currentSchemaVersion); err != nil {
		return fmt.Errorf("cachestore: write schema version: %w", err)
	}
	return nil
}

func (s *Store) hasColumn(table, column string) bool {
	rows, err := s.db.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return false
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk) == nil && name == column {
			return true
		}
	}
	return false
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Get returns the document stored under key, or (Document{}, false) if
// absent or expired. An expired row is deleted before returning.
func (s *Store) Get(ctx context.Context, key string) (model.Document, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT content, tokens, url, fetched_at, ttl_ms, version
		FROM documents WHERE key = ?`, key)

	var d model.Document
	var content []byte
	if err := row.Scan(&content, &d.TokenCount, &d.SourceURL, &d.FetchedAt, &d.TTLMillis, &d.CanonicalID); err != nil {
		if err == sql.ErrNoRows {
			s.stats.recordMiss()
			return model.Document{}, false, nil
		}
		return model.Document{}, false, fmt.Errorf("cachestore: get %s: %w", key, err)
	}
	d.Content = string(content)
	d.CanonicalID = key

	if d.Expired(nowMillis()) {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE key = ?`, key); err != nil {
			return model.Document{}, false, fmt.Errorf("cachestore: evict expired %s: %w", key, err)
		}
		s.stats.recordMiss()
		return model.Document{}, false, nil
	}
	d.Source = "cache"
	s.stats.recordHit()
	return d, true, nil
}

// Put atomically replaces the row for d.CanonicalID.
func (s *Store) Put(ctx context.Context, d model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (key, content, tokens, url, fetched_at, ttl_ms, version)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			content=excluded.content, tokens=excluded.tokens, url=excluded.url,
			fetched_at=excluded.fetched_at, ttl_ms=excluded.ttl_ms, version=excluded.version`,
		d.CanonicalID, []byte(d.Content), d.TokenCount, d.SourceURL, d.FetchedAt, d.TTLMillis, d.CanonicalID)
	if err != nil {
		return fmt.Errorf("cachestore: put %s: %w", d.CanonicalID, err)
	}
	return nil
}

// Purge deletes every row for which match returns true, evaluated in
// Go rather than SQL so callers can express arbitrary predicates.
func (s *Store) Purge(ctx context.Context, match func(key string) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT key FROM documents`)
	if err != nil {
		return 0, fmt.Errorf("cachestore: purge scan: %w", err)
	}
	var victims []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return 0, fmt.Errorf("cachestore: purge scan row: %w", err)
		}
		if match(key) {
			victims = append(victims, key)
		}
	}
	rows.Close()

	for _, key := range victims {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE key = ?`, key); err != nil {
			return 0, fmt.Errorf("cachestore: purge delete %s: %w", key, err)
		}
	}
	return len(victims), nil
}

// Stats reports occupancy and the hit rate since Open for the status tool.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries int
	var totalBytes sql.NullInt64
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(LENGTH(content)), 0) FROM documents`)
	if err := row.Scan(&entries, &totalBytes); err != nil {
		return Stats{}, fmt.Errorf("cachestore: stats: %w", err)
	}
	return Stats{
		Entries:       entries,
		TotalBytes:    totalBytes.Int64,
		HitRateWindow: s.stats.rate(),
	}, nil
}

// EvictExpired deletes all rows past their TTL, mirroring the
// prototype's clear_expired; the store also evicts lazily on Get.
func (s *Store) EvictExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := nowMillis()
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE fetched_at + ttl_ms < ?`, now)
	if err != nil {
		return 0, fmt.Errorf("cachestore: evict expired: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func nowMillis() int64 { return time.Now().UnixMilli() }
