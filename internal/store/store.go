// Package store implements the durable state store on SQLite.
//
// Two primitives back every record family:
//   - a key-value table holding whole JSON documents (goals, memory, process
//     state, guidance), replaced in full on every save
//   - an append-only log table (percepts), read back with Tail
//
// All read-modify-write sequences are serialized by a single store-wide lock,
// so a reader never observes a half-written collection.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"mindloop/internal/config"
	"mindloop/internal/logging"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Well-known keys and logs.
const (
	KeyState    = "state"
	KeyGuidance = "subconscious_guidance"
	KeyGoals    = "goals"
	KeyMemory   = "memory"

	LogPercepts = "percepts"
)

// Store is the SQLite-backed durable state store.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
	driver string
	now    func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the clock used for generated timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens (or creates) the store described by cfg.
func Open(cfg config.StoreConfig, opts ...Option) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "store.Open")
	defer timer.Stop()

	driver := cfg.Driver
	if driver == "" {
		driver = config.DriverSQLite3
	}
	logging.Store("Opening store at %s (driver=%s)", cfg.Path, driver)

	if cfg.Path != config.MemoryDSN {
		dir := filepath.Dir(cfg.Path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			logging.Get(logging.CategoryStore).Error("Failed to create directory %s: %v", dir, err)
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open(driver, cfg.Path)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to open database at %s: %v", cfg.Path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: in-memory databases are per-connection, and SQLite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if cfg.Path != config.MemoryDSN {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
		}
		if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
			logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
		}
	}

	s := &Store{db: db, dbPath: cfg.Path, driver: driver, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initSchema(); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to initialize schema: %v", err)
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Store("Store ready")
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS log_records (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		log TEXT NOT NULL,
		record TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_log_records_log ON log_records(log, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// KEY-VALUE PRIMITIVES
// =============================================================================

// Load decodes the document stored at key into dst. It reports false, leaving
// dst untouched, when the key has never been saved. Fields absent from the
// stored document keep whatever dst already held, so callers pass defaults in.
func (s *Store) Load(key string, dst any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(key, dst)
}

// Save replaces the document at key with v.
func (s *Store) Save(key string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveAll(map[string]any{key: v})
}

func (s *Store) load(key string, dst any) (bool, error) {
	var raw string
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// saveAll writes every key in one transaction.
func (s *Store) saveAll(docs map[string]any) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC()
	for key, v := range docs {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		_, err = tx.Exec(`
			INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, string(data), now)
		if err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
		logging.StoreDebug("Saved %s (%d bytes)", key, len(data))
	}
	return tx.Commit()
}

// =============================================================================
// APPEND-ONLY LOG PRIMITIVES
// =============================================================================

// Append adds one record to the named log.
func (s *Store) Append(log string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", log, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(
		"INSERT INTO log_records (log, record, created_at) VALUES (?, ?, ?)",
		log, string(data), s.now().UTC(),
	); err != nil {
		return fmt.Errorf("append %s: %w", log, err)
	}
	return nil
}

// Tail returns the last n records of the named log, oldest first.
func (s *Store) Tail(log string, n int) ([]json.RawMessage, error) {
	if n <= 0 {
		return []json.RawMessage{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT record FROM (
			SELECT seq, record FROM log_records WHERE log = ? ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC`, log, n)
	if err != nil {
		return nil, fmt.Errorf("tail %s: %w", log, err)
	}
	defer rows.Close()

	out := make([]json.RawMessage, 0, n)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("tail %s: %w", log, err)
		}
		out = append(out, json.RawMessage(raw))
	}
	return out, rows.Err()
}

// Count returns the number of records in the named log.
func (s *Store) Count(log string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM log_records WHERE log = ?", log).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", log, err)
	}
	return n, nil
}
