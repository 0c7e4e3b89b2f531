package models

import (
	"time"

	"github.com/lib/pq"
)

// User is the profile document consulted by the push dispatcher and the
// contact surfaces.
type User struct {
	UID         string         `db:"uid" json:"uid"`
	DisplayName string         `db:"display_name" json:"display_name"`
	PhotoURL    *string        `db:"photo_url" json:"photo_url,omitempty"`
	Bio         string         `db:"bio" json:"bio"`
	IsOnline    bool           `db:"is_online" json:"is_online"`
	LastSeen    *time.Time     `db:"last_seen" json:"last_seen,omitempty"`
	FCMTokens   pq.StringArray `db:"fcm_tokens" json:"fcm_tokens,omitempty"`
}
