package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/zKaminise/Message-App/internal/models"
)

const userColumns = `uid, display_name, photo_url, bio, is_online, last_seen, fcm_tokens`

// userLookupChunk bounds the id set of a single lookup query.
const userLookupChunk = 10

// UserRepository abstracts user profile persistence.
type UserRepository interface {
	GetUser(ctx context.Context, uid string) (models.User, error)
	GetUsersByIDs(ctx context.Context, uids []string) ([]models.User, error)
	UpsertProfile(ctx context.Context, user models.User) error
	AddDeviceToken(ctx context.Context, uid string, token string) error
	RemoveDeviceTokens(ctx context.Context, tokens []string) error
	SetPresence(ctx context.Context, uid string, online bool) error
}

var ErrUserNotFound = errors.New("user not found")

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(database *sqlx.DB) *UserRepo {
	return &UserRepo{db: database}
}

func (r *UserRepo) GetUser(ctx context.Context, uid string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE uid=$1`, uid)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// GetUsersByIDs fetches user profiles in bounded id chunks. Unknown ids are
// skipped silently; order of the result follows the store, not the input.
func (r *UserRepo) GetUsersByIDs(ctx context.Context, uids []string) ([]models.User, error) {
	users := []models.User{}
	for start := 0; start < len(uids); start += userLookupChunk {
		end := start + userLookupChunk
		if end > len(uids) {
			end = len(uids)
		}
		chunk := []models.User{}
		query := `SELECT ` + userColumns + ` FROM users WHERE uid = ANY($1)`
		if err := r.db.SelectContext(ctx, &chunk, query, pq.StringArray(uids[start:end])); err != nil {
			return nil, err
		}
		users = append(users, chunk...)
	}
	return users, nil
}

// UpsertProfile creates or refreshes a user profile. Token and presence
// fields are managed by their own methods and stay untouched here.
func (r *UserRepo) UpsertProfile(ctx context.Context, user models.User) error {
	if user.UID == "" {
		return ErrEmptyUser
	}
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO users (uid, display_name, photo_url, bio)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (uid) DO UPDATE SET
            display_name = EXCLUDED.display_name,
            photo_url = EXCLUDED.photo_url,
            bio = EXCLUDED.bio`,
		user.UID, user.DisplayName, user.PhotoURL, user.Bio)
	return err
}

// AddDeviceToken registers a push token for uid, creating the profile row if
// it does not exist yet. Adding a token twice keeps a single copy.
func (r *UserRepo) AddDeviceToken(ctx context.Context, uid string, token string) error {
	if uid == "" {
		return ErrEmptyUser
	}
	if token == "" {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO users (uid, fcm_tokens) VALUES ($1, ARRAY[$2::text])
        ON CONFLICT (uid) DO UPDATE SET
            fcm_tokens = (SELECT ARRAY(
                SELECT DISTINCT t FROM unnest(users.fcm_tokens || $2::text) AS t))`,
		uid, token)
	return err
}

// RemoveDeviceTokens strips the given tokens from every user holding them.
// Used by the push dispatcher to prune tokens the provider rejected.
func (r *UserRepo) RemoveDeviceTokens(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
        UPDATE users
        SET fcm_tokens = (SELECT ARRAY(
            SELECT t FROM unnest(fcm_tokens) AS t WHERE NOT t = ANY($1)))
        WHERE fcm_tokens && $1`,
		pq.StringArray(tokens))
	return err
}

// SetPresence flips the online flag and stamps last_seen on disconnect.
func (r *UserRepo) SetPresence(ctx context.Context, uid string, online bool) error {
	if uid == "" {
		return ErrEmptyUser
	}
	var err error
	if online {
		_, err = r.db.ExecContext(ctx, `
            INSERT INTO users (uid, is_online) VALUES ($1, TRUE)
            ON CONFLICT (uid) DO UPDATE SET is_online = TRUE`, uid)
	} else {
		_, err = r.db.ExecContext(ctx, `
            UPDATE users SET is_online = FALSE, last_seen = $2 WHERE uid=$1`,
			uid, time.Now().UTC())
	}
	return err
}
