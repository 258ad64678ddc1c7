// Package record persists one row per processed webhook event.
package record

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/memohai/nextplot/internal/media"
)

// UnknownUserID is stored when the event source carries no user id.
const UnknownUserID = "unknown"

// Event types stored in the event_type column.
const (
	EventTypeText  = "text"
	EventTypeImage = "image"
	EventTypeFile  = "file"
)

// Record is one append-only row.
type Record struct {
	UserID      string          `json:"user_id"`
	EventType   string          `json:"event_type"`
	TextContent string          `json:"text_content"`
	Raw         json.RawMessage `json:"raw"`
	// Media is stored in its own column by the SQL sinks. It is also embedded
	// in Raw under "media".
	Media *media.Record `json:"-"`
}

// Writer inserts records.
type Writer interface {
	Insert(ctx context.Context, rec Record) error
}

// PersistenceError reports a failed insert.
type PersistenceError struct {
	Driver string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s insert: %v", e.Driver, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
