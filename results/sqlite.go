package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS results (
	session_id   TEXT PRIMARY KEY,
	version      INTEGER NOT NULL,
	generated_at TEXT NOT NULL,
	payload      TEXT NOT NULL
)`

// SQLiteStore keeps records in a single sqlite table. The payload column
// holds the JSON record so the round trip is lossless.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, errors.New("results: sqlite store needs a dsn")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("results sqlite open: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("results sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, r Record) error {
	b, err := encode(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO results (session_id, version, generated_at, payload) VALUES (?, ?, ?, ?)
ON CONFLICT(session_id) DO UPDATE SET
	version = excluded.version,
	generated_at = excluded.generated_at,
	payload = excluded.payload`,
		r.SessionID, FormatVersion, time.Now().UTC().Format(time.RFC3339Nano), string(b))
	if err != nil {
		return fmt.Errorf("results sqlite save: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (Record, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM results WHERE session_id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("results sqlite load: %w", err)
	}
	return decode([]byte(payload))
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
