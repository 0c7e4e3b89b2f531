package repositories

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/zKaminise/Message-App/internal/crypto"
	"github.com/zKaminise/Message-App/internal/db"
	"github.com/zKaminise/Message-App/internal/models"
	"github.com/zKaminise/Message-App/internal/rabbitmq"
)

const messageColumns = `id, chat_id, sender_id, kind, text_cipher, media_ref, delivered_to, read_by, deleted_for, deleted_for_all, created_at`

// RoutingKeyMessageCreated is the broker routing key for new messages.
const RoutingKeyMessageCreated = "messages.created"

// MessageRepository abstracts message persistence.
type MessageRepository interface {
	SendText(ctx context.Context, chatID string, senderID string, text string) (models.Message, error)
	SendMedia(ctx context.Context, chatID string, senderID string, kind string, mediaRef string) (models.Message, error)
	ListMessages(ctx context.Context, chatID string) ([]models.Message, error)
	ListMessagesForUser(ctx context.Context, chatID string, uid string) ([]models.Message, error)
	GetMessage(ctx context.Context, chatID string, messageID string) (models.Message, error)
	MarkAsRead(ctx context.Context, chatID string, uid string) error
	MarkDelivered(ctx context.Context, chatID string, messageID string, uid string) error
	HideMessageForUser(ctx context.Context, chatID string, messageID string, uid string) error
	DeleteMessageForAll(ctx context.Context, chatID string, messageID string, senderID string) error
}

// MessageRepo is a sqlx implementation of MessageRepository. Text bodies are
// encrypted before they reach the store and decrypted on the way out.
type MessageRepo struct {
	db        *sqlx.DB
	box       *crypto.Box
	publisher rabbitmq.Publisher
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(database *sqlx.DB, box *crypto.Box, publisher rabbitmq.Publisher) *MessageRepo {
	return &MessageRepo{db: database, box: box, publisher: publisher}
}

// SendText stores a text message. The chat preview carries the same
// ciphertext as the message body, so the plaintext never leaves this package.
func (r *MessageRepo) SendText(ctx context.Context, chatID string, senderID string, text string) (models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return models.Message{}, ErrEmptyMessage
	}

	enc, err := r.box.Encrypt(text)
	if err != nil {
		return models.Message{}, err
	}

	msg, err := r.send(ctx, chatID, senderID, models.MessageKindText, &enc, nil, enc)
	if err != nil {
		return models.Message{}, err
	}
	msg.Text = text
	return msg, nil
}

// SendMedia stores a media message referencing an already uploaded blob.
// The chat preview shows a kind tag instead of content.
func (r *MessageRepo) SendMedia(ctx context.Context, chatID string, senderID string, kind string, mediaRef string) (models.Message, error) {
	if !models.MediaKinds[kind] {
		return models.Message{}, ErrBadMediaKind
	}
	if mediaRef == "" {
		return models.Message{}, ErrEmptyMessage
	}
	return r.send(ctx, chatID, senderID, kind, nil, &mediaRef, "["+kind+"]")
}

// send runs the message batch: one transaction inserting the message and
// refreshing the chat preview, with the change notification riding the same
// commit. Sending also resets visible_for, so a chat hidden by the other
// participant resurfaces.
func (r *MessageRepo) send(ctx context.Context, chatID string, senderID string, kind string, textCipher, mediaRef *string, preview string) (models.Message, error) {
	if senderID == "" {
		return models.Message{}, ErrEmptyUser
	}

	var msg models.Message
	err := runTx(ctx, r.db, func(tx *sqlx.Tx) error {
		chat, err := lockChat(ctx, tx, chatID)
		if err != nil {
			return err
		}
		if !chat.HasMember(senderID) {
			return ErrNotMember
		}

		query := `INSERT INTO messages (id, chat_id, sender_id, kind, text_cipher, media_ref)
            VALUES ($1, $2, $3, $4, $5, $6)
            RETURNING ` + messageColumns
		if err := tx.GetContext(ctx, &msg, query, uuid.NewString(), chatID, senderID, kind, textCipher, mediaRef); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE chats SET last_message = $2, visible_for = NULL, updated_at = now() WHERE id=$1`,
			chatID, preview); err != nil {
			return err
		}
		return db.NotifyChat(ctx, tx, chatID)
	})
	if err != nil {
		return models.Message{}, err
	}

	event := models.MessageCreatedEvent{
		ChatID:    msg.ChatID,
		MessageID: msg.ID,
		SenderID:  msg.SenderID,
		Kind:      msg.Kind,
		CreatedAt: msg.CreatedAt,
	}
	if err := r.publisher.Publish(ctx, RoutingKeyMessageCreated, event); err != nil {
		log.Printf("message event publish failed chat_id=%s message_id=%s: %v", msg.ChatID, msg.ID, err)
	}
	return msg, nil
}

// ListMessages returns every message of a chat in creation order.
func (r *MessageRepo) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	messages := []models.Message{}
	query := `SELECT ` + messageColumns + ` FROM messages WHERE chat_id=$1 ORDER BY created_at, id`
	if err := r.db.SelectContext(ctx, &messages, query, chatID); err != nil {
		return nil, err
	}
	r.decryptAll(messages)
	return messages, nil
}

// ListMessagesForUser returns the chat's messages as uid sees them: rows the
// user hid for themselves are dropped, rows deleted for everyone stay as
// tombstones.
func (r *MessageRepo) ListMessagesForUser(ctx context.Context, chatID string, uid string) ([]models.Message, error) {
	if uid == "" {
		return nil, ErrEmptyUser
	}
	messages := []models.Message{}
	query := `SELECT ` + messageColumns + ` FROM messages
        WHERE chat_id=$1 AND NOT deleted_for ? $2
        ORDER BY created_at, id`
	if err := r.db.SelectContext(ctx, &messages, query, chatID, uid); err != nil {
		return nil, err
	}
	r.decryptAll(messages)
	return messages, nil
}

// GetMessage returns a single message by chat and id.
func (r *MessageRepo) GetMessage(ctx context.Context, chatID string, messageID string) (models.Message, error) {
	var msg models.Message
	query := `SELECT ` + messageColumns + ` FROM messages WHERE chat_id=$1 AND id=$2`
	err := r.db.GetContext(ctx, &msg, query, chatID, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	r.decrypt(&msg)
	return msg, nil
}

// MarkAsRead stamps every unread incoming message of the chat as read by uid,
// filling the delivery stamp along the way where it is still missing. Calling
// it with nothing unread is a no-op and emits no notification.
func (r *MessageRepo) MarkAsRead(ctx context.Context, chatID string, uid string) error {
	if uid == "" {
		return ErrEmptyUser
	}
	return runTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
            UPDATE messages
            SET read_by = read_by || jsonb_build_object($2::text, now()),
                delivered_to = CASE WHEN delivered_to ? $2 THEN delivered_to
                    ELSE delivered_to || jsonb_build_object($2::text, now()) END
            WHERE chat_id=$1 AND sender_id <> $2 AND NOT read_by ? $2`,
			chatID, uid)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}
		return db.NotifyChat(ctx, tx, chatID)
	})
}

// MarkDelivered stamps a single message as delivered to uid. Idempotent;
// senders never stamp their own messages.
func (r *MessageRepo) MarkDelivered(ctx context.Context, chatID string, messageID string, uid string) error {
	if uid == "" {
		return ErrEmptyUser
	}
	return runTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
            UPDATE messages
            SET delivered_to = delivered_to || jsonb_build_object($3::text, now())
            WHERE chat_id=$1 AND id=$2 AND sender_id <> $3 AND NOT delivered_to ? $3`,
			chatID, messageID, uid)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}
		return db.NotifyChat(ctx, tx, chatID)
	})
}

// HideMessageForUser removes a message from uid's view only. Other members
// keep seeing it.
func (r *MessageRepo) HideMessageForUser(ctx context.Context, chatID string, messageID string, uid string) error {
	if uid == "" {
		return ErrEmptyUser
	}
	return runTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
            UPDATE messages
            SET deleted_for = deleted_for || jsonb_build_object($3::text, true)
            WHERE chat_id=$1 AND id=$2`,
			chatID, messageID, uid)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrMessageNotFound
		}
		return db.NotifyChat(ctx, tx, chatID)
	})
}

// DeleteMessageForAll turns a message into a tombstone for everyone. Only the
// sender may do this; the content fields are cleared for good and a pin
// pointing at the message is dropped.
func (r *MessageRepo) DeleteMessageForAll(ctx context.Context, chatID string, messageID string, senderID string) error {
	if senderID == "" {
		return ErrEmptyUser
	}
	return runTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var owner string
		err := tx.GetContext(ctx, &owner,
			`SELECT sender_id FROM messages WHERE chat_id=$1 AND id=$2 FOR UPDATE`,
			chatID, messageID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrMessageNotFound
		}
		if err != nil {
			return err
		}
		if owner != senderID {
			return ErrNotSender
		}

		if _, err := tx.ExecContext(ctx, `
            UPDATE messages
            SET deleted_for_all = TRUE, text_cipher = NULL, media_ref = NULL
            WHERE chat_id=$1 AND id=$2`,
			chatID, messageID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
            UPDATE chats SET pinned_message_id = NULL, pinned_snippet = NULL
            WHERE id=$1 AND pinned_message_id=$2`,
			chatID, messageID); err != nil {
			return err
		}
		return db.NotifyChat(ctx, tx, chatID)
	})
}

func (r *MessageRepo) decrypt(msg *models.Message) {
	if msg.DeletedForAll || msg.Kind != models.MessageKindText || msg.TextCipher == nil {
		return
	}
	msg.Text = r.box.Decrypt(*msg.TextCipher)
}

func (r *MessageRepo) decryptAll(messages []models.Message) {
	for i := range messages {
		r.decrypt(&messages[i])
	}
}
