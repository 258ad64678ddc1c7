// Package postgres inserts records into a Postgres table through pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memohai/nextplot/internal/record"
)

const driverName = "postgres"

// Writer inserts rows with a single INSERT per record.
type Writer struct {
	pool   *pgxpool.Pool
	query  string
	now    func() time.Time
	logger *slog.Logger
}

// New creates a writer for table. The schema comes from the embedded
// migrations (nextplot migrate up).
func New(log *slog.Logger, pool *pgxpool.Pool, table string) (*Writer, error) {
	if log == nil {
		log = slog.Default()
	}
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if strings.TrimSpace(table) == "" {
		return nil, errors.New("table is required")
	}
	return &Writer{
		pool:   pool,
		query:  insertQuery(table),
		now:    time.Now,
		logger: log.With(slog.String("service", "records"), slog.String("driver", driverName)),
	}, nil
}

func insertQuery(table string) string {
	return fmt.Sprintf(
		"INSERT INTO %s (id, user_id, event_type, text_content, raw, media, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		pgx.Identifier{table}.Sanitize(),
	)
}

// Insert writes rec with a fresh UUID.
func (w *Writer) Insert(ctx context.Context, rec record.Record) error {
	var mediaJSON []byte
	if rec.Media != nil {
		encoded, err := json.Marshal(rec.Media)
		if err != nil {
			return &record.PersistenceError{Driver: driverName, Err: err}
		}
		mediaJSON = encoded
	}
	raw := []byte(rec.Raw)
	if len(raw) == 0 {
		raw = []byte(`{}`)
	}
	id := uuid.New()
	_, err := w.pool.Exec(ctx, w.query,
		id, rec.UserID, rec.EventType, rec.TextContent, raw, mediaJSON, w.now().UTC())
	if err != nil {
		return &record.PersistenceError{Driver: driverName, Err: err}
	}
	w.logger.Debug("record inserted", slog.String("id", id.String()), slog.String("event_type", rec.EventType))
	return nil
}

// Ping checks that the pool can reach the database.
func (w *Writer) Ping(ctx context.Context) error {
	return w.pool.Ping(ctx)
}
