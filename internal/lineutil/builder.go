// Package lineutil provides helpers for building LINE messages and
// actions.
package lineutil

import (
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// Action is an alias for the LINE SDK action interface for convenience.
type Action = messaging_api.ActionInterface

// TruncateRunes cuts text to at most maxRunes runes, appending "..."
// when truncation happens. Counts runes, not bytes, so multi-byte
// characters are never split.
func TruncateRunes(text string, maxRunes int) string {
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}

// NewTextMessage creates a text message, truncating to the LINE API
// limit of 5000 characters. The limit counts characters, not bytes.
func NewTextMessage(text string) *messaging_api.TextMessage {
	return &messaging_api.TextMessage{
		Text: TruncateRunes(text, 5000),
	}
}

// NewImageMessage creates an image message. Both URLs must be HTTPS;
// previewImageURL is the thumbnail shown in the chat.
func NewImageMessage(originalContentURL, previewImageURL string) messaging_api.MessageInterface {
	return &messaging_api.ImageMessage{
		OriginalContentUrl: originalContentURL,
		PreviewImageUrl:    previewImageURL,
	}
}

// NewPostbackAction creates an action that sends postback data to the
// bot when tapped.
func NewPostbackAction(label, data string) Action {
	return &messaging_api.PostbackAction{
		Label: label,
		Data:  data,
	}
}

// NewURIAction creates an action that opens a URL when tapped.
func NewURIAction(label, uri string) Action {
	return &messaging_api.UriAction{
		Label: label,
		Uri:   uri,
	}
}
