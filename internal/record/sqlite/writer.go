// Package sqlite stores records in a local SQLite database, for development
// and single-host deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/memohai/nextplot/internal/record"
)

const driverName = "sqlite"

// Writer inserts rows into a single SQLite table, created on open.
type Writer struct {
	db     *sql.DB
	table  string
	now    func() time.Time
	logger *slog.Logger
}

// Open creates the database file if needed and ensures the table exists.
func Open(log *slog.Logger, path, table string) (*Writer, error) {
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if strings.TrimSpace(table) == "" {
		return nil, errors.New("table is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	w := &Writer{
		db:     db,
		table:  quoteIdent(table),
		now:    time.Now,
		logger: log.With(slog.String("service", "records"), slog.String("driver", driverName)),
	}
	if err := w.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return w, nil
}

func (w *Writer) migrate(ctx context.Context) error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL,
		event_type   TEXT NOT NULL,
		text_content TEXT NOT NULL DEFAULT '',
		raw          TEXT NOT NULL DEFAULT '{}',
		media        TEXT,
		created_at   DATETIME NOT NULL
	);`, w.table)
	_, err := w.db.ExecContext(ctx, schema)
	return err
}

// Insert writes rec with a fresh UUID.
func (w *Writer) Insert(ctx context.Context, rec record.Record) error {
	var mediaJSON sql.NullString
	if rec.Media != nil {
		encoded, err := json.Marshal(rec.Media)
		if err != nil {
			return &record.PersistenceError{Driver: driverName, Err: err}
		}
		mediaJSON = sql.NullString{String: string(encoded), Valid: true}
	}
	raw := string(rec.Raw)
	if raw == "" {
		raw = "{}"
	}
	_, err := w.db.ExecContext(ctx,
		"INSERT INTO "+w.table+" (id, user_id, event_type, text_content, raw, media, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		uuid.NewString(), rec.UserID, rec.EventType, rec.TextContent, raw, mediaJSON, w.now().UTC(),
	)
	if err != nil {
		return &record.PersistenceError{Driver: driverName, Err: err}
	}
	return nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (w *Writer) Ping(ctx context.Context) error {
	return w.db.PingContext(ctx)
}
