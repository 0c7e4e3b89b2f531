package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/zKaminise/Message-App/internal/db"
	"github.com/zKaminise/Message-App/internal/models"
	"github.com/zKaminise/Message-App/internal/storage"
)

const chatColumns = `id, kind, members, owner_id, name, photo_url, visible_for, last_message, pinned_message_id, pinned_snippet, updated_at`

// ChatRepository abstracts chat persistence.
type ChatRepository interface {
	EnsureDirectChat(ctx context.Context, uid string, friendUID string) (models.Chat, error)
	GetChat(ctx context.Context, chatID string) (models.Chat, error)
	ListChats(ctx context.Context, uid string) ([]models.Chat, error)
	IsMember(ctx context.Context, chatID string, uid string) (bool, error)
	CreateGroup(ctx context.Context, name string, ownerID string, memberIDs []string, photoURL *string) (models.Chat, error)
	RenameGroup(ctx context.Context, chatID string, name string) error
	UpdateGroupMeta(ctx context.Context, chatID string, update models.GroupMetaUpdate) error
	AddMembers(ctx context.Context, chatID string, uids []string) error
	RemoveMember(ctx context.Context, chatID string, uid string) error
	LeaveGroup(ctx context.Context, chatID string, uid string) error
	DeleteGroup(ctx context.Context, chatID string, ownerID string) error
	HideChatForUser(ctx context.Context, chatID string, uid string) error
	UnhideChatForUser(ctx context.Context, chatID string, uid string) error
	PinMessage(ctx context.Context, chatID string, messageID string, snippet string) error
	UnpinMessage(ctx context.Context, chatID string) error
}

// CanonicalDirectID derives the id of the direct chat between two users. It
// is commutative and injective over unordered pairs, so both participants
// always address the same document.
func CanonicalDirectID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, "_")
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db      *sqlx.DB
	markers storage.MarkerManager
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(database *sqlx.DB, markers storage.MarkerManager) *ChatRepo {
	return &ChatRepo{db: database, markers: markers}
}

// EnsureDirectChat creates or returns the direct chat between two users.
// Safe under concurrent invocation by both participants: the canonical id
// plus an upsert guarantees at most one document per unordered pair.
func (r *ChatRepo) EnsureDirectChat(ctx context.Context, uid string, friendUID string) (models.Chat, error) {
	if uid == "" || friendUID == "" {
		return models.Chat{}, ErrEmptyUser
	}
	if uid == friendUID {
		return models.Chat{}, ErrSelfChat
	}

	chatID := CanonicalDirectID(uid, friendUID)
	pair := []string{uid, friendUID}
	sort.Strings(pair)
	members := pq.StringArray(pair)

	var chat models.Chat
	err := runTx(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `INSERT INTO chats (id, kind, members) VALUES ($1, $2, $3)
            ON CONFLICT (id) DO UPDATE SET updated_at = now()
            RETURNING ` + chatColumns
		if err := tx.GetContext(ctx, &chat, query, chatID, models.ChatKindDirect, members); err != nil {
			return err
		}
		return db.NotifyChat(ctx, tx, chatID)
	})
	if err != nil {
		return models.Chat{}, err
	}

	// Best-effort marker grant for the creator; the other side grants its own
	// on first open.
	go r.markers.EnsureMemberMarker(context.Background(), chatID, uid)

	return chat, nil
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID string) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// ListChats returns every chat containing the user, newest activity first.
// Hidden chats are included; the visibility partitioner splits them.
func (r *ChatRepo) ListChats(ctx context.Context, uid string) ([]models.Chat, error) {
	var chats []models.Chat
	err := r.db.SelectContext(ctx, &chats,
		`SELECT `+chatColumns+` FROM chats WHERE $1 = ANY(members) ORDER BY updated_at DESC`, uid)
	return chats, err
}

// IsMember checks whether a user belongs to the chat.
func (r *ChatRepo) IsMember(ctx context.Context, chatID string, uid string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM chats WHERE id=$1 AND $2 = ANY(members))`, chatID, uid)
	return exists, err
}

// CreateGroup creates a group chat. The owner is always a member; duplicate
// member ids are collapsed while preserving selection order.
func (r *ChatRepo) CreateGroup(ctx context.Context, name string, ownerID string, memberIDs []string, photoURL *string) (models.Chat, error) {
	if strings.TrimSpace(name) == "" {
		return models.Chat{}, ErrEmptyGroupName
	}
	if ownerID == "" {
		return models.Chat{}, ErrEmptyUser
	}
	members := dedupeMembers(ownerID, memberIDs)
	if len(members) < 2 {
		return models.Chat{}, ErrEmptyMembers
	}

	chatID := uuid.NewString()
	var chat models.Chat
	err := runTx(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `INSERT INTO chats (id, kind, members, owner_id, name, photo_url) VALUES ($1, $2, $3, $4, $5, $6)
            RETURNING ` + chatColumns
		if err := tx.GetContext(ctx, &chat, query, chatID, models.ChatKindGroup, pq.StringArray(members), ownerID, name, photoURL); err != nil {
			return err
		}
		return db.NotifyChat(ctx, tx, chatID)
	})
	if err != nil {
		return models.Chat{}, err
	}

	go func() {
		for _, uid := range members {
			r.markers.EnsureMemberMarker(context.Background(), chatID, uid)
		}
	}()

	return chat, nil
}

// RenameGroup changes a group's display name.
func (r *ChatRepo) RenameGroup(ctx context.Context, chatID string, name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyGroupName
	}
	return r.UpdateGroupMeta(ctx, chatID, models.GroupMetaUpdate{Name: &name})
}

// UpdateGroupMeta applies a partial metadata update. A fully-nil update is a
// no-op.
func (r *ChatRepo) UpdateGroupMeta(ctx context.Context, chatID string, update models.GroupMetaUpdate) error {
	if update.IsEmpty() {
		return nil
	}
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return ErrEmptyGroupName
	}

	return runTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE chats SET name = COALESCE($2, name), photo_url = COALESCE($3, photo_url)
             WHERE id=$1 AND kind='group'`, chatID, update.Name, update.PhotoURL)
		if err != nil {
			return err
		}
		if count, err := res.RowsAffected(); err != nil {
			return err
		} else if count == 0 {
			return ErrChatNotFound
		}
		return db.NotifyChat(ctx, tx, chatID)
	})
}

// AddMembers adds users to a group and grants their access markers.
func (r *ChatRepo) AddMembers(ctx context.Context, chatID string, uids []string) error {
	if len(uids) == 0 {
		return ErrEmptyMembers
	}

	var added []string
	err := runTx(ctx, r.db, func(tx *sqlx.Tx) error {
		chat, err := lockGroup(ctx, tx, chatID)
		if err != nil {
			return err
		}

		added = added[:0]
		for _, uid := range uids {
			if uid != "" && !chat.HasMember(uid) && !contains(added, uid) {
				added = append(added, uid)
			}
		}
		if len(added) == 0 {
			return nil
		}

		members := append([]string(chat.Members), added...)
		if _, err := tx.ExecContext(ctx,
			`UPDATE chats SET members = $2 WHERE id=$1`, chatID, pq.StringArray(members)); err != nil {
			return err
		}
		return db.NotifyChat(ctx, tx, chatID)
	})
	if err != nil {
		return err
	}

	go func() {
		for _, uid := range added {
			r.markers.EnsureMemberMarker(context.Background(), chatID, uid)
		}
	}()
	return nil
}

// RemoveMember removes a user from a group and revokes their access marker.
// Removing the owner follows the same succession rule as LeaveGroup.
func (r *ChatRepo) RemoveMember(ctx context.Context, chatID string, uid string) error {
	return r.removeFromGroup(ctx, chatID, uid)
}

// LeaveGroup removes the caller from a group. When the owner leaves,
// ownership passes to the first remaining member in member order; when the
// last member leaves, the chat is deleted.
func (r *ChatRepo) LeaveGroup(ctx context.Context, chatID string, uid string) error {
	return r.removeFromGroup(ctx, chatID, uid)
}

func (r *ChatRepo) removeFromGroup(ctx context.Context, chatID string, uid string) error {
	if uid == "" {
		return ErrEmptyUser
	}

	err := runTx(ctx, r.db, func(tx *sqlx.Tx) error {
		chat, err := lockGroup(ctx, tx, chatID)
		if err != nil {
			return err
		}
		if !chat.HasMember(uid) {
			return ErrNotMember
		}

		remaining := remove(chat.Members, uid)
		if len(remaining) == 0 {
			if _, err := tx.ExecContext(ctx, `DELETE FROM chats WHERE id=$1`, chatID); err != nil {
				return err
			}
			return db.NotifyChat(ctx, tx, chatID)
		}

		ownerID := chat.OwnerID
		if ownerID != nil && *ownerID == uid {
			ownerID = &remaining[0]
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE chats SET members = $2, visible_for = $3, owner_id = $4 WHERE id=$1`,
			chatID, pq.StringArray(remaining), emptyToNil(remove(chat.VisibleFor, uid)), ownerID); err != nil {
			return err
		}
		return db.NotifyChat(ctx, tx, chatID)
	})
	if err != nil {
		return err
	}

	go r.markers.RemoveMemberMarker(context.Background(), chatID, uid)
	return nil
}

// DeleteGroup removes a group and its messages entirely. Owner only.
func (r *ChatRepo) DeleteGroup(ctx context.Context, chatID string, ownerID string) error {
	var members []string
	err := runTx(ctx, r.db, func(tx *sqlx.Tx) error {
		chat, err := lockGroup(ctx, tx, chatID)
		if err != nil {
			return err
		}
		if chat.OwnerID == nil || *chat.OwnerID != ownerID {
			return ErrNotOwner
		}
		members = chat.Members

		if _, err := tx.ExecContext(ctx, `DELETE FROM chats WHERE id=$1`, chatID); err != nil {
			return err
		}
		return db.NotifyChat(ctx, tx, chatID)
	})
	if err != nil {
		return err
	}

	go func() {
		for _, uid := range members {
			r.markers.RemoveMemberMarker(context.Background(), chatID, uid)
		}
	}()
	return nil
}

// HideChatForUser removes the chat from uid's active list without touching
// any other member's view.
func (r *ChatRepo) HideChatForUser(ctx context.Context, chatID string, uid string) error {
	return runTx(ctx, r.db, func(tx *sqlx.Tx) error {
		chat, err := lockChat(ctx, tx, chatID)
		if err != nil {
			return err
		}
		if !chat.HasMember(uid) {
			return ErrNotMember
		}

		visible := chat.VisibleFor
		if len(visible) == 0 {
			// Visible to all so far: materialize the set before shrinking it.
			visible = chat.Members
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE chats SET visible_for = $2 WHERE id=$1`, chatID, pq.StringArray(remove(visible, uid))); err != nil {
			return err
		}
		return db.NotifyChat(ctx, tx, chatID)
	})
}

// UnhideChatForUser restores the chat to uid's active list.
func (r *ChatRepo) UnhideChatForUser(ctx context.Context, chatID string, uid string) error {
	return runTx(ctx, r.db, func(tx *sqlx.Tx) error {
		chat, err := lockChat(ctx, tx, chatID)
		if err != nil {
			return err
		}
		if !chat.HasMember(uid) {
			return ErrNotMember
		}
		if chat.VisibleTo(uid) {
			return nil
		}

		visible := append([]string(chat.VisibleFor), uid)
		if _, err := tx.ExecContext(ctx,
			`UPDATE chats SET visible_for = $2 WHERE id=$1`, chatID, emptyToNil(coverAll(visible, chat.Members))); err != nil {
			return err
		}
		return db.NotifyChat(ctx, tx, chatID)
	})
}

// PinMessage denormalizes the pinned message onto the chat document so list
// rows render without re-fetching the message.
func (r *ChatRepo) PinMessage(ctx context.Context, chatID string, messageID string, snippet string) error {
	return runTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE chats SET pinned_message_id = $2, pinned_snippet = $3 WHERE id=$1`, chatID, messageID, snippet)
		if err != nil {
			return err
		}
		if count, err := res.RowsAffected(); err != nil {
			return err
		} else if count == 0 {
			return ErrChatNotFound
		}
		return db.NotifyChat(ctx, tx, chatID)
	})
}

// UnpinMessage clears both pinned fields.
func (r *ChatRepo) UnpinMessage(ctx context.Context, chatID string) error {
	return runTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE chats SET pinned_message_id = NULL, pinned_snippet = NULL WHERE id=$1`, chatID)
		if err != nil {
			return err
		}
		if count, err := res.RowsAffected(); err != nil {
			return err
		} else if count == 0 {
			return ErrChatNotFound
		}
		return db.NotifyChat(ctx, tx, chatID)
	})
}

func lockChat(ctx context.Context, tx *sqlx.Tx, chatID string) (models.Chat, error) {
	var chat models.Chat
	err := tx.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats WHERE id=$1 FOR UPDATE`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

func lockGroup(ctx context.Context, tx *sqlx.Tx, chatID string) (models.Chat, error) {
	chat, err := lockChat(ctx, tx, chatID)
	if err != nil {
		return models.Chat{}, err
	}
	if chat.Kind != models.ChatKindGroup {
		return models.Chat{}, ErrNotGroup
	}
	return chat, nil
}

func dedupeMembers(ownerID string, memberIDs []string) []string {
	members := []string{ownerID}
	for _, uid := range memberIDs {
		if uid != "" && !contains(members, uid) {
			members = append(members, uid)
		}
	}
	return members
}

func contains(list []string, uid string) bool {
	for _, m := range list {
		if m == uid {
			return true
		}
	}
	return false
}

func remove(list []string, uid string) []string {
	out := make([]string, 0, len(list))
	for _, m := range list {
		if m != uid {
			out = append(out, m)
		}
	}
	return out
}

// coverAll collapses a visible set back to "all members" when every member is
// present.
func coverAll(visible []string, members []string) []string {
	for _, m := range members {
		if !contains(visible, m) {
			return visible
		}
	}
	return nil
}

func emptyToNil(list []string) pq.StringArray {
	if len(list) == 0 {
		return nil
	}
	return pq.StringArray(list)
}
