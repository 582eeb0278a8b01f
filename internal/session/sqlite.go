package session

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    domain      TEXT PRIMARY KEY,
    cookies     BLOB NOT NULL,
    captured_at DATETIME NOT NULL
);
`

// SQLiteStore implements Store on a local SQLite file so sessions
// survive process restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the session database at dbPath and
// initializes the schema.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init session schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get returns the session for domain, or (nil, nil) when none exists.
// Corrupt rows are treated as absent.
func (s *SQLiteStore) Get(ctx context.Context, domain string) (*State, error) {
	var blob []byte
	var capturedAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT cookies, captured_at FROM sessions WHERE domain = ?`, domain,
	).Scan(&blob, &capturedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", domain, err)
	}

	cookies, ok := decodeCookies(blob)
	if !ok {
		slog.Warn("discarding corrupt session", slog.String("domain", domain))
		return nil, nil
	}
	return &State{Domain: domain, Cookies: cookies, CapturedAt: capturedAt}, nil
}

// Put upserts the session for state.Domain. Last writer wins.
func (s *SQLiteStore) Put(ctx context.Context, state *State) error {
	blob, err := encodeCookies(state.Cookies)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", state.Domain, err)
	}
	capturedAt := state.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (domain, cookies, captured_at) VALUES (?, ?, ?)
		 ON CONFLICT(domain) DO UPDATE SET cookies = excluded.cookies, captured_at = excluded.captured_at`,
		state.Domain, blob, capturedAt,
	)
	if err != nil {
		return fmt.Errorf("put session %s: %w", state.Domain, err)
	}
	return nil
}
