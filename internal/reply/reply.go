// Package reply builds the messages the bot sends back to users.
package reply

import (
	"strings"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	"github.com/memohai/nextplot/internal/completion"
)

// Reply texts. The bot speaks Thai to its users.
const (
	TextIncompletePrefix = "ข้อมูลยังไม่ครบ: "
	TextAccepted         = "รับข้อมูลแล้ว จัดกลุ่มเป็นแปลงให้เรียบร้อย"
	TextMediaStored      = "รับสื่อแล้ว อัปโหลดเก็บไว้เรียบร้อย"
	TextMediaFailed      = "รับสื่อแล้ว แต่มีปัญหาในการบันทึก"
)

// fieldLabels are the user-facing names of missing fields.
var fieldLabels = map[completion.FieldTag]string{
	completion.FieldCode:            "CODE",
	completion.FieldLandTitleNumber: "เลขโฉนด",
}

// QuickReplyOption is a suggested follow-up shown under a reply.
type QuickReplyOption struct {
	Label       string
	MessageText string
}

// Reply is a text reply with optional quick-reply suggestions.
type Reply struct {
	Text         string
	QuickReplies []QuickReplyOption
}

// completionSuggestions is the fixed menu offered when fields are missing.
func completionSuggestions() []QuickReplyOption {
	return []QuickReplyOption{
		{Label: "กำหนด CODE", MessageText: "กำหนด CODE WC-001"},
		{Label: "แนบรูปโฉนด", MessageText: "แนบรูปโฉนด"},
		{Label: "บันทึกชั่วคราว", MessageText: "บันทึกชั่วคราว"},
	}
}

// FieldLabel returns the user-facing label of a field.
func FieldLabel(tag completion.FieldTag) string {
	if label, ok := fieldLabels[tag]; ok {
		return label
	}
	return string(tag)
}

// ForCompletion builds the reply to a checked text message.
func ForCompletion(result completion.Result) Reply {
	if result.Accepted() {
		return Reply{Text: TextAccepted}
	}
	labels := make([]string, 0, len(result.Missing))
	for _, tag := range result.Missing {
		labels = append(labels, FieldLabel(tag))
	}
	return Reply{
		Text:         TextIncompletePrefix + strings.Join(labels, ", "),
		QuickReplies: completionSuggestions(),
	}
}

// MediaStored acknowledges a stored attachment.
func MediaStored() Reply { return Reply{Text: TextMediaStored} }

// MediaFailed acknowledges an attachment that could not be stored.
func MediaFailed() Reply { return Reply{Text: TextMediaFailed} }

// ToLINE converts a reply into a LINE text message. The pointer carries the
// "type" discriminator when marshaled on its own.
func ToLINE(r Reply) messaging_api.MessageInterface {
	msg := messaging_api.TextMessage{Text: r.Text}
	if len(r.QuickReplies) > 0 {
		items := make([]messaging_api.QuickReplyItem, 0, len(r.QuickReplies))
		for _, opt := range r.QuickReplies {
			items = append(items, messaging_api.QuickReplyItem{
				Type: "action",
				Action: &messaging_api.MessageAction{
					Label: opt.Label,
					Text:  opt.MessageText,
				},
			})
		}
		msg.QuickReply = &messaging_api.QuickReply{Items: items}
	}
	return &msg
}
