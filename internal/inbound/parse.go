package inbound

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MalformedPayloadError reports a webhook body that is not valid JSON.
type MalformedPayloadError struct {
	Err error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed webhook payload: %v", e.Err)
}

func (e *MalformedPayloadError) Unwrap() error { return e.Err }

type wireBatch struct {
	Events json.RawMessage `json:"events"`
}

type wireEvent struct {
	Type       string          `json:"type"`
	ReplyToken string          `json:"replyToken"`
	Timestamp  int64           `json:"timestamp"`
	Source     wireSource      `json:"source"`
	Message    json.RawMessage `json:"message"`
}

type wireSource struct {
	Type    string `json:"type"`
	UserID  string `json:"userId"`
	GroupID string `json:"groupId"`
	RoomID  string `json:"roomId"`
}

type wireMessage struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Text     string `json:"text"`
	FileName string `json:"fileName"`
}

// ParseBatch decodes a webhook body into events, preserving order.
// An empty body, a missing "events" key or a non-array "events" value
// yield no events. A body that is not JSON yields *MalformedPayloadError.
// Entries that are not objects decode to events with an empty type.
func ParseBatch(body []byte) ([]Event, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	if !json.Valid(body) {
		return nil, &MalformedPayloadError{Err: fmt.Errorf("body is not valid JSON")}
	}
	var batch wireBatch
	if err := json.Unmarshal(body, &batch); err != nil {
		// Valid JSON that is not an object, e.g. `[]` or `"x"`.
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(batch.Events, &items); err != nil {
		return nil, nil
	}
	events := make([]Event, 0, len(items))
	for _, item := range items {
		events = append(events, parseEvent(item))
	}
	return events, nil
}

func parseEvent(raw json.RawMessage) Event {
	ev := Event{Raw: raw}
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return ev
	}
	ev.Type = w.Type
	ev.ReplyToken = w.ReplyToken
	ev.Timestamp = w.Timestamp
	ev.SourceType = w.Source.Type
	ev.SourceUserID = w.Source.UserID
	ev.Message = parseMessage(w.Message)
	return ev
}

func parseMessage(raw json.RawMessage) Message {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	var m wireMessage
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return UnknownMessage{}
	}
	switch m.Type {
	case "text":
		return TextMessage{ID: m.ID, Text: m.Text}
	case string(AttachmentImage):
		return AttachmentMessage{ID: m.ID, Kind: AttachmentImage, FileName: m.FileName}
	case string(AttachmentFile):
		return AttachmentMessage{ID: m.ID, Kind: AttachmentFile, FileName: m.FileName}
	default:
		return UnknownMessage{ID: m.ID, Type: m.Type}
	}
}
