// Package inbound models LINE webhook events and classifies them into
// processing actions.
package inbound

import "encoding/json"

// EventTypeMessage is the only event type the relay processes.
const EventTypeMessage = "message"

// Event is one entry of a webhook batch.
type Event struct {
	Type         string
	ReplyToken   string
	SourceType   string
	SourceUserID string
	Timestamp    int64
	// Message is nil for events that carry no message.
	Message Message
	// Raw is the event exactly as received, kept for persistence.
	Raw json.RawMessage
}

// Message is the sum of the message shapes the relay understands.
// Implementations: TextMessage, AttachmentMessage, UnknownMessage.
type Message interface {
	MessageID() string
	isMessage()
}

// TextMessage is a free-text message.
type TextMessage struct {
	ID   string
	Text string
}

// AttachmentKind is the kind of binary attachment.
type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentFile  AttachmentKind = "file"
)

// AttachmentMessage references binary content held by the platform.
type AttachmentMessage struct {
	ID       string
	Kind     AttachmentKind
	FileName string
}

// UnknownMessage is any message type the relay does not process
// (sticker, video, audio, location, ...).
type UnknownMessage struct {
	ID   string
	Type string
}

func (m TextMessage) MessageID() string       { return m.ID }
func (m AttachmentMessage) MessageID() string { return m.ID }
func (m UnknownMessage) MessageID() string    { return m.ID }

func (TextMessage) isMessage()       {}
func (AttachmentMessage) isMessage() {}
func (UnknownMessage) isMessage()    {}
