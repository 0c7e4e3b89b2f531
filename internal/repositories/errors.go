package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var (
	ErrChatNotFound    = errors.New("chat not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrNotMember       = errors.New("user is not a chat member")
	ErrNotOwner        = errors.New("user is not the group owner")
	ErrNotSender       = errors.New("user is not the message sender")
	ErrNotGroup        = errors.New("chat is not a group")
)

// Validation errors are rejected before any write reaches the store.
var (
	ErrSelfChat       = errors.New("cannot create chat with self")
	ErrEmptyUser      = errors.New("user id is empty")
	ErrEmptyGroupName = errors.New("group name is empty")
	ErrEmptyMembers   = errors.New("member selection is empty")
	ErrEmptyMessage   = errors.New("message body is empty")
	ErrBadMediaKind   = errors.New("unsupported media kind")
)

// IsValidation reports whether err is a pre-write validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrSelfChat) ||
		errors.Is(err, ErrEmptyUser) ||
		errors.Is(err, ErrEmptyGroupName) ||
		errors.Is(err, ErrEmptyMembers) ||
		errors.Is(err, ErrEmptyMessage) ||
		errors.Is(err, ErrBadMediaKind)
}

// runTx runs fn inside a transaction, rolling back on error.
func runTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
