package inbound

import "strings"

// Action is the outcome of routing one event.
// Implementations: Skip, ProcessText, ProcessMedia.
type Action interface {
	isAction()
}

// Skip drops the event without reply, persistence or error.
type Skip struct {
	Reason string
}

// ProcessText sends the text through the completion check.
type ProcessText struct {
	Text string
}

// ProcessMedia sends the attachment through media ingestion.
type ProcessMedia struct {
	Attachment AttachmentMessage
}

func (Skip) isAction()         {}
func (ProcessText) isAction()  {}
func (ProcessMedia) isAction() {}

// Skip reasons.
const (
	SkipNotAllowed  = "sender_not_allowed"
	SkipNotMessage  = "not_a_message_event"
	SkipNoMessage   = "missing_message"
	SkipUnsupported = "unsupported_message_type"
)

// Allowlist is the set of sender IDs whose events are processed.
// An empty allowlist admits every sender.
type Allowlist map[string]struct{}

// NewAllowlist builds an allowlist from IDs, ignoring blanks.
func NewAllowlist(ids []string) Allowlist {
	set := make(Allowlist, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

// Allows reports whether userID may be processed.
func (a Allowlist) Allows(userID string) bool {
	if len(a) == 0 {
		return true
	}
	_, ok := a[userID]
	return ok
}

// Route classifies an event. It performs no I/O.
func Route(ev Event, allow Allowlist) Action {
	if !allow.Allows(ev.SourceUserID) {
		return Skip{Reason: SkipNotAllowed}
	}
	if ev.Type != EventTypeMessage {
		return Skip{Reason: SkipNotMessage}
	}
	switch msg := ev.Message.(type) {
	case nil:
		return Skip{Reason: SkipNoMessage}
	case TextMessage:
		return ProcessText{Text: msg.Text}
	case AttachmentMessage:
		switch msg.Kind {
		case AttachmentImage, AttachmentFile:
			return ProcessMedia{Attachment: msg}
		}
		return Skip{Reason: SkipUnsupported}
	case UnknownMessage:
		return Skip{Reason: SkipUnsupported}
	default:
		return Skip{Reason: SkipUnsupported}
	}
}
