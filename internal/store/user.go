package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/emberhold/apiserver/types"
	"github.com/google/uuid"
)

const userColumns = `id, username, email, password_hash, discord_id, steam_id,
	role, faction, email_verified, verify_token, verify_expires, avatar_url,
	coins, last_login, created_at, updated_at`

// UserRepository handles persistence for users on postgres.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.queryOne(ctx, query, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return r.queryOne(ctx, query, email)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE lower(username) = lower($1)`
	return r.queryOne(ctx, query, username)
}

func (r *UserRepository) GetByDiscordID(ctx context.Context, discordID string) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE discord_id = $1`
	return r.queryOne(ctx, query, discordID)
}

func (r *UserRepository) GetBySteamID(ctx context.Context, steamID string) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE steam_id = $1`
	return r.queryOne(ctx, query, steamID)
}

// FindByEmailOrUsername returns the single existing user colliding with
// either key, preferring the email match when both collide.
func (r *UserRepository) FindByEmailOrUsername(ctx context.Context, email, username string) (types.User, error) {
	const query = `SELECT ` + userColumns + `
		FROM users
		WHERE lower(email) = lower($1) OR lower(username) = lower($2)
		ORDER BY (lower(email) = lower($1)) DESC
		LIMIT 1`
	return r.queryOne(ctx, query, email, username)
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Email = strings.ToLower(user.Email)
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (id, username, email, password_hash, discord_id,
			steam_id, role, faction, email_verified, verify_token,
			verify_expires, avatar_url, coins, last_login, created_at,
			updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.DiscordID,
		user.SteamID,
		user.Role,
		user.Faction,
		user.EmailVerified,
		user.VerifyToken,
		user.VerifyExpires,
		user.AvatarURL,
		user.Coins,
		user.LastLogin,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return types.User{}, mapPQError(err)
	}
	return user, nil
}

// AttachDiscordID links a Discord identity to an existing user. The guard on
// discord_id IS NULL makes the link first-writer-wins; a second writer gets
// ErrNotFound and must re-resolve.
func (r *UserRepository) AttachDiscordID(ctx context.Context, userID, discordID string) error {
	const query = `
		UPDATE users
		SET discord_id = $1, updated_at = $2
		WHERE id = $3 AND discord_id IS NULL`
	result, err := r.db.ExecContext(ctx, query, discordID, time.Now(), userID)
	if err != nil {
		return mapPQError(err)
	}
	return requireAffected(result)
}

func (r *UserRepository) UpdateAvatar(ctx context.Context, userID, avatarURL string) error {
	const query = `UPDATE users SET avatar_url = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, avatarURL, time.Now(), userID)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (r *UserRepository) TouchLogin(ctx context.Context, userID string, at time.Time) error {
	const query = `UPDATE users SET last_login = $1, updated_at = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, at, userID)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// SetVerifyToken stores a fresh verification token and expiry, replacing any
// pending one.
func (r *UserRepository) SetVerifyToken(ctx context.Context, userID, token string, expires time.Time) error {
	const query = `
		UPDATE users
		SET verify_token = $1, verify_expires = $2, updated_at = $3
		WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, token, expires, time.Now(), userID)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// ConsumeVerifyToken marks the owning account verified and clears the token
// in one statement, so a token can only ever be consumed once. ErrNotFound
// covers unknown, already-consumed and expired tokens alike.
func (r *UserRepository) ConsumeVerifyToken(ctx context.Context, token string, now time.Time) (types.User, error) {
	const query = `
		UPDATE users
		SET email_verified = TRUE, verify_token = NULL, verify_expires = NULL,
			updated_at = $2
		WHERE verify_token = $1 AND verify_expires > $2
		RETURNING ` + userColumns
	row := r.db.QueryRowContext(ctx, query, token, now)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) queryOne(ctx context.Context, query string, args ...any) (types.User, error) {
	row := r.db.QueryRowContext(ctx, query, args...)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func scanUser(row *sql.Row) (types.User, error) {
	var user types.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.DiscordID,
		&user.SteamID,
		&user.Role,
		&user.Faction,
		&user.EmailVerified,
		&user.VerifyToken,
		&user.VerifyExpires,
		&user.AvatarURL,
		&user.Coins,
		&user.LastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
