package models

import (
	"time"

	"github.com/lib/pq"
)

// Chat kinds.
const (
	ChatKindDirect = "direct"
	ChatKindGroup  = "group"
)

// Chat represents a conversation document shared by its members. Direct chats
// are keyed by the canonical id of their two participants; group chats carry
// an owner and editable metadata.
type Chat struct {
	ID              string         `db:"id" json:"id"`
	Kind            string         `db:"kind" json:"kind"`
	Members         pq.StringArray `db:"members" json:"members"`
	OwnerID         *string        `db:"owner_id" json:"owner_id,omitempty"`
	Name            *string        `db:"name" json:"name,omitempty"`
	PhotoURL        *string        `db:"photo_url" json:"photo_url,omitempty"`
	VisibleFor      pq.StringArray `db:"visible_for" json:"visible_for,omitempty"`
	LastMessage     *string        `db:"last_message" json:"last_message,omitempty"`
	PinnedMessageID *string        `db:"pinned_message_id" json:"pinned_message_id,omitempty"`
	PinnedSnippet   *string        `db:"pinned_snippet" json:"pinned_snippet,omitempty"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// HasMember reports whether uid belongs to the chat.
func (c Chat) HasMember(uid string) bool {
	for _, m := range c.Members {
		if m == uid {
			return true
		}
	}
	return false
}

// VisibleTo reports whether the chat is currently showing in uid's list.
// An absent or empty visible_for set means visible to all members.
func (c Chat) VisibleTo(uid string) bool {
	if len(c.VisibleFor) == 0 {
		return true
	}
	for _, m := range c.VisibleFor {
		if m == uid {
			return true
		}
	}
	return false
}

// GroupMetaUpdate is a partial update of group metadata. Nil fields are left
// untouched.
type GroupMetaUpdate struct {
	Name     *string `json:"name,omitempty"`
	PhotoURL *string `json:"photo_url,omitempty"`
}

// IsEmpty reports whether the update would change nothing.
func (u GroupMetaUpdate) IsEmpty() bool {
	return u.Name == nil && u.PhotoURL == nil
}
