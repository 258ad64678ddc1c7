package inbound

import "testing"

func TestRoute(t *testing.T) {
	t.Parallel()

	text := TextMessage{ID: "m1", Text: "hello"}
	image := AttachmentMessage{ID: "m2", Kind: AttachmentImage}
	file := AttachmentMessage{ID: "m3", Kind: AttachmentFile, FileName: "a.pdf"}

	cases := []struct {
		name  string
		event Event
		allow Allowlist
		want  Action
	}{
		{
			name:  "text open allowlist",
			event: Event{Type: EventTypeMessage, SourceUserID: "U9", Message: text},
			want:  ProcessText{Text: "hello"},
		},
		{
			name:  "image",
			event: Event{Type: EventTypeMessage, SourceUserID: "U1", Message: image},
			allow: NewAllowlist([]string{"U1"}),
			want:  ProcessMedia{Attachment: image},
		},
		{
			name:  "file",
			event: Event{Type: EventTypeMessage, SourceUserID: "U1", Message: file},
			want:  ProcessMedia{Attachment: file},
		},
		{
			name:  "sender not allowed",
			event: Event{Type: EventTypeMessage, SourceUserID: "U2", Message: text},
			allow: NewAllowlist([]string{"U1"}),
			want:  Skip{Reason: SkipNotAllowed},
		},
		{
			name:  "not allowed wins over event type",
			event: Event{Type: "follow", SourceUserID: "U2"},
			allow: NewAllowlist([]string{"U1"}),
			want:  Skip{Reason: SkipNotAllowed},
		},
		{
			name:  "non message event",
			event: Event{Type: "follow", SourceUserID: "U1"},
			want:  Skip{Reason: SkipNotMessage},
		},
		{
			name:  "message event without message",
			event: Event{Type: EventTypeMessage, SourceUserID: "U1"},
			want:  Skip{Reason: SkipNoMessage},
		},
		{
			name:  "sticker",
			event: Event{Type: EventTypeMessage, SourceUserID: "U1", Message: UnknownMessage{ID: "m4", Type: "sticker"}},
			want:  Skip{Reason: SkipUnsupported},
		},
		{
			name:  "attachment of unknown kind",
			event: Event{Type: EventTypeMessage, SourceUserID: "U1", Message: AttachmentMessage{ID: "m5", Kind: "video"}},
			want:  Skip{Reason: SkipUnsupported},
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Route(tc.event, tc.allow)
			if got != tc.want {
				t.Fatalf("Route() = %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestRoute_AllowlistProperty(t *testing.T) {
	t.Parallel()

	allow := NewAllowlist([]string{"U1"})
	messages := []Message{
		TextMessage{Text: "WC-001 โฉนด 1"},
		AttachmentMessage{ID: "m", Kind: AttachmentImage},
		UnknownMessage{Type: "sticker"},
		nil,
	}
	for _, msg := range messages {
		got := Route(Event{Type: EventTypeMessage, SourceUserID: "U2", Message: msg}, allow)
		if skip, ok := got.(Skip); !ok || skip.Reason != SkipNotAllowed {
			t.Fatalf("U2 with %#v routed to %#v", msg, got)
		}
	}
	if _, ok := Route(Event{Type: EventTypeMessage, SourceUserID: "U1", Message: TextMessage{Text: "x"}}, allow).(ProcessText); !ok {
		t.Fatalf("U1 text was not routed to ProcessText")
	}
}

func TestAllowlist(t *testing.T) {
	t.Parallel()

	var empty Allowlist
	if !empty.Allows("anyone") {
		t.Fatalf("nil allowlist should allow everyone")
	}
	if !NewAllowlist([]string{" ", ""}).Allows("anyone") {
		t.Fatalf("blank-only allowlist should allow everyone")
	}
	a := NewAllowlist([]string{" U1 ", "U2"})
	if !a.Allows("U1") || !a.Allows("U2") || a.Allows("U3") || a.Allows("") {
		t.Fatalf("unexpected membership: %v", a)
	}
}
