package resultstore

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLite is the default Index for single-host batch runs, backed by
// modernc.org/sqlite (no cgo).
type SQLite struct {
	mu sync.Mutex
	db *sql.DB
}

// OpenSQLite opens (creating if necessary) a resume index at path.
// An empty path opens an in-memory index, useful for tests or one-shot
// runs that don't need to persist across process restarts.
func OpenSQLite(path string) (*SQLite, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("resultstore: open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS completed (trial INTEGER NOT NULL, idx INTEGER NOT NULL, PRIMARY KEY (trial, idx))`); err != nil {
		db.Close()
		return nil, fmt.Errorf("resultstore: create table: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Rebuild(keys []Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("resultstore: begin rebuild: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM completed`); err != nil {
		tx.Rollback()
		return fmt.Errorf("resultstore: clear table: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO completed (trial, idx) VALUES (?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("resultstore: prepare insert: %w", err)
	}
	for _, k := range keys {
		if _, err := stmt.Exec(k.Trial, k.Idx); err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("resultstore: insert key: %w", err)
		}
	}
	stmt.Close()
	return tx.Commit()
}

func (s *SQLite) Mark(key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT OR IGNORE INTO completed (trial, idx) VALUES (?, ?)`, key.Trial, key.Idx)
	if err != nil {
		return fmt.Errorf("resultstore: mark %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Has(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM completed WHERE trial = ? AND idx = ?`, key.Trial, key.Idx).Scan(&n)
	return err == nil && n > 0
}

func (s *SQLite) Close() error { return s.db.Close() }

var _ Index = (*SQLite)(nil)
