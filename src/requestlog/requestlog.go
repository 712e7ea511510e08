// Package requestlog is the append-only record of capture cycles. The core
// writes to it and never reads it back.
package requestlog

import (
	"context"
	"database/sql"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Entry is one finished cycle.
type Entry struct {
	ID        string
	At        time.Time
	ImagePath string
	Rect      image.Rectangle
	OK        bool
	// Payload is the raw model reply on success or the error text on failure.
	Payload  string
	Answer   string
	Duration time.Duration
}

// Sink accepts entries.
type Sink interface {
	Append(ctx context.Context, e Entry) error
}

// NewID returns a fresh cycle id.
func NewID() string { return uuid.NewString() }

const schema = `
CREATE TABLE IF NOT EXISTS requests (
	id          TEXT PRIMARY KEY,
	at          TEXT NOT NULL,
	image_path  TEXT NOT NULL,
	rect        TEXT NOT NULL,
	ok          INTEGER NOT NULL,
	payload     TEXT NOT NULL,
	answer      TEXT NOT NULL,
	duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_requests_at ON requests(at);`

// SQLiteSink stores entries in a SQLite database.
type SQLiteSink struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (or creates) the database at path. ":memory:" is accepted for
// tests.
func Open(ctx context.Context, path string) (*SQLiteSink, error) {
	dsn := path
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open request log: %w", err)
	}
	// One connection keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create request log schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// Append inserts e, assigning an id and timestamp when missing.
func (s *SQLiteSink) Append(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = NewID()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO requests (id, at, image_path, rect, ok, payload, answer, duration_ms) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.At.UTC().Format(time.RFC3339Nano), e.ImagePath, e.Rect.String(), boolToInt(e.OK), e.Payload, e.Answer, e.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to append request log entry: %w", err)
	}
	return nil
}

// Count returns the number of stored entries, split by outcome.
func (s *SQLiteSink) Count(ctx context.Context) (ok, failed int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(ok), 0), COALESCE(SUM(1 - ok), 0) FROM requests`)
	if err := row.Scan(&ok, &failed); err != nil {
		return 0, 0, fmt.Errorf("failed to count request log entries: %w", err)
	}
	return ok, failed, nil
}

func (s *SQLiteSink) Close() error { return s.db.Close() }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Discard drops every entry.
type Discard struct{}

func (Discard) Append(context.Context, Entry) error { return nil }
