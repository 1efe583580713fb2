package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/emberhold/apiserver/types"
	"github.com/google/uuid"
)

// SessionRepository persists the audit trail of issued sessions.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session types.Session) (types.Session, error) {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}

	const query = `
		INSERT INTO sessions (id, user_id, token, user_agent, ip_address,
			expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		session.ID,
		session.UserID,
		session.Token,
		session.UserAgent,
		session.IPAddress,
		session.ExpiresAt,
		session.CreatedAt,
	)
	if err != nil {
		return types.Session{}, err
	}
	return session, nil
}

// ListByUser returns a user's sessions, newest first.
func (r *SessionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]types.Session, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
		SELECT id, user_id, token, user_agent, ip_address, expires_at, created_at
		FROM sessions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []types.Session
	for rows.Next() {
		var session types.Session
		if err := rows.Scan(
			&session.ID,
			&session.UserID,
			&session.Token,
			&session.UserAgent,
			&session.IPAddress,
			&session.ExpiresAt,
			&session.CreatedAt,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}
