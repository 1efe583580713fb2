package services

import (
	"context"
	"time"

	"github.com/emberhold/apiserver/internal/token"
	"github.com/emberhold/apiserver/types"
)

// SessionRepository defines persistence operations for session audit records.
type SessionRepository interface {
	Create(ctx context.Context, session types.Session) (types.Session, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]types.Session, error)
}

// RequestMeta is the best-effort client context recorded with a session.
type RequestMeta struct {
	UserAgent string
	IPAddress string
}

// IssuedSession is the result of minting a session token.
type IssuedSession struct {
	Token     string
	ExpiresAt time.Time
}

// SessionService mints signed session tokens and writes the audit record.
type SessionService struct {
	signer   *token.Signer
	sessions SessionRepository
}

func NewSessionService(signer *token.Signer, sessions SessionRepository) *SessionService {
	return &SessionService{signer: signer, sessions: sessions}
}

// Issue signs a token for the user and persists the session row. Session
// rows are an audit trail; the verifier trusts the signed token alone.
func (s *SessionService) Issue(ctx context.Context, user types.User, meta RequestMeta) (IssuedSession, error) {
	now := time.Now()
	signed, expiresAt, err := s.signer.Issue(user, now)
	if err != nil {
		return IssuedSession{}, err
	}

	_, err = s.sessions.Create(ctx, types.Session{
		UserID:    user.ID,
		Token:     signed,
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	})
	if err != nil {
		return IssuedSession{}, err
	}

	return IssuedSession{Token: signed, ExpiresAt: expiresAt}, nil
}

// ListByUser returns a user's recent sessions.
func (s *SessionService) ListByUser(ctx context.Context, userID string, limit int) ([]types.Session, error) {
	return s.sessions.ListByUser(ctx, userID, limit)
}
