// Package session holds per-chat conversational state: the model each
// chat has picked and the state of its translation setup.
package session

// Translation holds a chat's translation settings. Method is "gpt" or
// "google"; Source and Target are language codes like "zh-TW" or "en".
// Zero value means translation was never configured.
type Translation struct {
	Enabled bool
	Method  string
	Source  string
	Target  string
}

// Store is the interface the router uses to read and mutate per-chat
// state. Keys are chat identifiers (user ID for 1:1 chats, group ID
// for group chats).
type Store interface {
	// Model returns the model selected for the chat, or "" if none.
	Model(chatID string) string
	// SetModel records the model selected for the chat.
	SetModel(chatID, model string)

	// Translation returns the chat's translation settings.
	Translation(chatID string) Translation
	// UpdateTranslation atomically applies fn to the chat's translation
	// settings. Fields fn does not touch keep their previous values.
	UpdateTranslation(chatID string, fn func(*Translation))
}
