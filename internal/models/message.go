package models

import "time"

// Message kinds.
const (
	MessageKindText    = "text"
	MessageKindImage   = "image"
	MessageKindVideo   = "video"
	MessageKindAudio   = "audio"
	MessageKindFile    = "file"
	MessageKindDeleted = "deleted"
)

// Message represents a single message inside a chat. Content fields are
// immutable after creation; only the acknowledgement maps and the deletion
// flags may change.
type Message struct {
	ID            string    `db:"id" json:"id"`
	ChatID        string    `db:"chat_id" json:"chat_id"`
	SenderID      string    `db:"sender_id" json:"sender_id"`
	Kind          string    `db:"kind" json:"kind"`
	TextCipher    *string   `db:"text_cipher" json:"-"`
	Text          string    `db:"-" json:"text,omitempty"`
	MediaRef      *string   `db:"media_ref" json:"media_ref,omitempty"`
	DeliveredTo   StampMap  `db:"delivered_to" json:"delivered_to"`
	ReadBy        StampMap  `db:"read_by" json:"read_by"`
	DeletedFor    FlagMap   `db:"deleted_for" json:"deleted_for,omitempty"`
	DeletedForAll bool      `db:"deleted_for_all" json:"deleted_for_all"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// RenderedKind returns the kind every reader should render. Once a message is
// deleted for all, the original kind no longer matters.
func (m Message) RenderedKind() string {
	if m.DeletedForAll {
		return MessageKindDeleted
	}
	return m.Kind
}

// HiddenFor reports whether uid suppressed this message for themselves.
func (m Message) HiddenFor(uid string) bool {
	return m.DeletedFor[uid]
}

// DeliveredToUser reports whether uid already acknowledged delivery.
func (m Message) DeliveredToUser(uid string) bool {
	_, ok := m.DeliveredTo[uid]
	return ok
}

// MediaKinds lists the message kinds carrying a media reference.
var MediaKinds = map[string]bool{
	MessageKindImage: true,
	MessageKindVideo: true,
	MessageKindAudio: true,
	MessageKindFile:  true,
}
