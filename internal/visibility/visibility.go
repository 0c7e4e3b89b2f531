// Package visibility partitions a user's chats into the active and hidden
// views driven by each chat's visible_for set.
package visibility

import "github.com/zKaminise/Message-App/internal/models"

// Split divides chats into the lists uid currently sees and the ones uid hid
// for themselves. Chats the user is not a member of are dropped entirely.
// Input order is preserved in both outputs.
func Split(chats []models.Chat, uid string) (active []models.Chat, hidden []models.Chat) {
	active = []models.Chat{}
	hidden = []models.Chat{}
	for _, chat := range chats {
		if !chat.HasMember(uid) {
			continue
		}
		if chat.VisibleTo(uid) {
			active = append(active, chat)
		} else {
			hidden = append(hidden, chat)
		}
	}
	return active, hidden
}
