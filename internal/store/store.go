package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for file snapshots, metadata and
// refresh history. The symbol and file caches live in JSON files; this
// database only backs the staleness fast path and run bookkeeping.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS snapshots (
  config_hash     TEXT NOT NULL,
  path            TEXT NOT NULL,
  mod_time        INTEGER NOT NULL,
  size            INTEGER NOT NULL,
  content_hash    TEXT NOT NULL,
  observed_at     INTEGER NOT NULL,
  PRIMARY KEY (config_hash, path)
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS refresh_runs (
  id              TEXT PRIMARY KEY,
  config_hash     TEXT NOT NULL,
  started_at      INTEGER NOT NULL,
  duration_ms     INTEGER NOT NULL,
  added           INTEGER NOT NULL DEFAULT 0,
  updated         INTEGER NOT NULL DEFAULT 0,
  removed         INTEGER NOT NULL DEFAULT 0,
  hits            INTEGER NOT NULL DEFAULT 0,
  misses          INTEGER NOT NULL DEFAULT 0,
  early_hits      INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_refresh_runs_started ON refresh_runs(started_at);
`

// GetMetadata returns the value stored under key, or "" when absent.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %s: %w", key, err)
	}
	return value, nil
}

// SetMetadata stores value under key.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set metadata %s: %w", key, err)
	}
	return nil
}

// Snapshot returns the last observed state of path under a configuration,
// or nil when none was recorded.
func (s *Store) Snapshot(configHash, path string) (*Snapshot, error) {
	var (
		snap              Snapshot
		modTime, observed int64
	)
	err := s.db.QueryRow(
		`SELECT config_hash, path, mod_time, size, content_hash, observed_at
		 FROM snapshots WHERE config_hash = ? AND path = ?`,
		configHash, path,
	).Scan(&snap.ConfigHash, &snap.Path, &modTime, &snap.Size, &snap.ContentHash, &observed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	snap.ModTime = time.Unix(0, modTime)
	snap.ObservedAt = time.Unix(0, observed)
	return &snap, nil
}

// PutSnapshot records the observed state of a file, replacing any earlier one.
func (s *Store) PutSnapshot(snap *Snapshot) error {
	_, err := s.db.Exec(
		`INSERT INTO snapshots (config_hash, path, mod_time, size, content_hash, observed_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(config_hash, path) DO UPDATE SET
		   mod_time = excluded.mod_time,
		   size = excluded.size,
		   content_hash = excluded.content_hash,
		   observed_at = excluded.observed_at`,
		snap.ConfigHash, snap.Path, snap.ModTime.UnixNano(), snap.Size, snap.ContentHash, snap.ObservedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("put snapshot %s: %w", snap.Path, err)
	}
	return nil
}

// DeleteSnapshots removes the snapshots of the given paths. With no paths it
// removes every snapshot for the configuration.
func (s *Store) DeleteSnapshots(configHash string, paths ...string) error {
	query := "DELETE FROM snapshots WHERE config_hash = ?"
	args := []any{configHash}
	if len(paths) > 0 {
		query += " AND path IN (" + placeholderList(len(paths)) + ")"
		args = append(args, stringsToArgs(paths)...)
	}
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("delete snapshots: %w", err)
	}
	return nil
}

// RecordRun appends a refresh run to the history.
func (s *Store) RecordRun(run *RefreshRun) error {
	_, err := s.db.Exec(
		`INSERT INTO refresh_runs (id, config_hash, started_at, duration_ms, added, updated, removed, hits, misses, early_hits)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ConfigHash, run.StartedAt.UnixNano(), run.Duration.Milliseconds(),
		run.Added, run.Updated, run.Removed, run.CacheHits, run.CacheMisses, run.EarlyCacheHits,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Runs returns the most recent refresh runs, newest first. limit <= 0 means
// no limit.
func (s *Store) Runs(limit int) ([]*RefreshRun, error) {
	query := `SELECT id, config_hash, started_at, duration_ms, added, updated, removed, hits, misses, early_hits
		FROM refresh_runs ORDER BY started_at DESC, id`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*RefreshRun
	for rows.Next() {
		var (
			run               RefreshRun
			started, duration int64
		)
		if err := rows.Scan(&run.ID, &run.ConfigHash, &started, &duration,
			&run.Added, &run.Updated, &run.Removed, &run.CacheHits, &run.CacheMisses, &run.EarlyCacheHits); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = time.Unix(0, started)
		run.Duration = time.Duration(duration) * time.Millisecond
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}
