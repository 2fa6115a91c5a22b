// Package bot contains the command router: it inspects inbound events
// and decides which messages go back out.
package bot

import (
	"strings"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"golang.org/x/text/width"
)

// DeliveryHint tells the delivery layer how a response should be sent.
type DeliveryHint int

const (
	// ReplyOnly responses use the event's reply token.
	ReplyOnly DeliveryHint = iota
	// PreferPush responses are pushed to the chat. Used for flows whose
	// processing may outlive the reply token, like audio transcription.
	PreferPush
)

// Kind tags the event variant.
type Kind int

const (
	KindText Kind = iota
	KindAudio
	KindPostback
	KindFollow
)

// Event is a normalized inbound event. GroupID is empty for 1:1 chats.
type Event struct {
	Kind         Kind
	UserID       string
	GroupID      string
	ReplyToken   string
	Text         string // message text, or transcript for audio
	AudioID      string // message ID of the audio content
	PostbackData string
	Hint         DeliveryHint
}

// InGroup reports whether the event came from a group chat.
func (e Event) InGroup() bool {
	return e.GroupID != ""
}

// ChatID returns the identifier for the chat: the group ID in groups,
// the user ID otherwise. Session state is keyed on this.
func (e Event) ChatID() string {
	if e.GroupID != "" {
		return e.GroupID
	}
	return e.UserID
}

// NormalizeText lowercases text and folds full-width characters to
// their half-width forms, so "ＩＤ" matches "id".
func NormalizeText(text string) string {
	return strings.ToLower(width.Fold.String(strings.TrimSpace(text)))
}

// Action is the outcome of routing one event.
type Action struct {
	// Messages is the primary response batch.
	Messages []messaging_api.MessageInterface
	// PushMessages are pushed after the primary batch, for wizard
	// steps that reply first and then push the next menu.
	PushMessages []messaging_api.MessageInterface
	// LeaveGroup, if non-empty, makes the bot leave that group after
	// responding.
	LeaveGroup string
}

// IsEmpty reports whether the action carries nothing to do. Group
// messages that never addressed the bot end up here.
func (a Action) IsEmpty() bool {
	return len(a.Messages) == 0 && len(a.PushMessages) == 0 && a.LeaveGroup == ""
}
