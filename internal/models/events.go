package models

import "time"

// MessageCreatedEvent is published to the broker after a message batch
// commits. The push dispatcher consumes it.
type MessageCreatedEvent struct {
	ChatID    string    `json:"chat_id"`
	MessageID string    `json:"message_id"`
	SenderID  string    `json:"sender_id"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// Websocket snapshot envelope types. Every emission is a full replacement of
// the subscribed view; clients never patch incrementally.
const (
	SnapshotTypeChatList = "chat_list"
	SnapshotTypeChat     = "chat"
	SnapshotTypeMessages = "messages"
)

// ChatListSnapshot carries a user's chats split into active and hidden views.
type ChatListSnapshot struct {
	Type   string `json:"type"`
	Active []Chat `json:"active"`
	Hidden []Chat `json:"hidden"`
}

// ChatSnapshot carries the current state of a single chat document.
// Chat is nil when the document no longer exists.
type ChatSnapshot struct {
	Type string `json:"type"`
	Chat *Chat  `json:"chat"`
}

// MessagesSnapshot carries the full ordered message list of a chat.
type MessagesSnapshot struct {
	Type     string    `json:"type"`
	ChatID   string    `json:"chat_id"`
	Messages []Message `json:"messages"`
}
