package record

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/memohai/nextplot/internal/media"
)

// ForText builds the row for a text message.
func ForText(userID, text string, raw json.RawMessage) Record {
	return Record{
		UserID:      userIDOrUnknown(userID),
		EventType:   EventTypeText,
		TextContent: text,
		Raw:         rawOrEmpty(raw),
	}
}

// ForMedia builds the row for a stored attachment. The media reference is
// merged into the raw event under "media".
func ForMedia(userID, eventType string, raw json.RawMessage, m media.Record) (Record, error) {
	merged, err := withMedia(raw, m)
	if err != nil {
		return Record{}, err
	}
	return Record{
		UserID:      userIDOrUnknown(userID),
		EventType:   eventType,
		TextContent: m.FileName,
		Raw:         merged,
		Media:       &m,
	}, nil
}

func withMedia(raw json.RawMessage, m media.Record) (json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
			fields = map[string]json.RawMessage{}
		}
	}
	encoded, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode media: %w", err)
	}
	fields["media"] = encoded
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode raw: %w", err)
	}
	return out, nil
}

func userIDOrUnknown(id string) string {
	if strings.TrimSpace(id) == "" {
		return UnknownUserID
	}
	return id
}

func rawOrEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return raw
}
