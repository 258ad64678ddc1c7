// Package postgrest inserts records through the Supabase PostgREST API.
package postgrest

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/memohai/nextplot/internal/record"
	sb "github.com/memohai/nextplot/internal/supabase"
)

const driverName = "postgrest"

// Writer posts rows to <project>/rest/v1/<table>.
type Writer struct {
	client *resty.Client
	table  string
	logger *slog.Logger
}

// New creates a PostgREST writer over a client built by supabase.NewClient.
func New(log *slog.Logger, client *resty.Client, table string) (*Writer, error) {
	if log == nil {
		log = slog.Default()
	}
	if client == nil {
		return nil, errors.New("supabase client is required")
	}
	if strings.TrimSpace(table) == "" {
		return nil, errors.New("table is required")
	}
	return &Writer{
		client: client,
		table:  table,
		logger: log.With(slog.String("service", "records"), slog.String("driver", driverName)),
	}, nil
}

type row struct {
	UserID      string `json:"user_id"`
	EventType   string `json:"event_type"`
	TextContent string `json:"text_content"`
	Raw         any    `json:"raw"`
}

// Insert writes rec and asks for the inserted representation back.
func (w *Writer) Insert(ctx context.Context, rec record.Record) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetBody(row{
			UserID:      rec.UserID,
			EventType:   rec.EventType,
			TextContent: rec.TextContent,
			Raw:         rec.Raw,
		}).
		Post("/rest/v1/" + url.PathEscape(w.table))
	if err != nil {
		return &record.PersistenceError{Driver: driverName, Err: err}
	}
	if err := sb.CheckResponse("insert "+w.table, resp); err != nil {
		return &record.PersistenceError{Driver: driverName, Err: err}
	}
	w.logger.Debug("record inserted",
		slog.String("event_type", rec.EventType),
		slog.String("user_id", rec.UserID),
	)
	return nil
}
