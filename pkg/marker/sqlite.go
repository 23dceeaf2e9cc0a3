package marker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps keys in a single SQLite table. Useful when several hosts
// share one database file or when the marker directory is not writable.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (and creates if needed) the database at path.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open marker database %s: %w", path, err)
	}
	// one writer at a time; sqlite serialises anyway
	db.SetMaxOpenConns(1)
	s := &SQLiteStore{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS markers (
  key TEXT PRIMARY KEY,
  created_at TEXT NOT NULL
);`)
	if err != nil {
		return fmt.Errorf("create markers table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) IsSet(ctx context.Context, key string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM markers WHERE key = ?`, key).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query marker for %s: %w", key, err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO markers (key, created_at) VALUES (?, ?)`,
		key, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert marker for %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM markers WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete marker for %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM markers ORDER BY key ASC`)
	if err != nil {
		return nil, fmt.Errorf("list markers: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
