package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"regexp"
	"time"

	"github.com/emberhold/apiserver/internal/store"
	"github.com/emberhold/apiserver/types"
)

// VerifyTokenTTL is how long an email verification token stays valid.
const VerifyTokenTTL = 24 * time.Hour

// ErrMalformedToken rejects a verification token that is not exactly 64 hex
// characters. The check runs before any storage lookup.
var ErrMalformedToken = errors.New("malformed verification token")

var verifyTokenPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Mailer delivers verification emails. The queue-backed implementation lives
// in internal/mailer.
type Mailer interface {
	SendVerification(ctx context.Context, email, username, verifyURL string) error
}

// VerificationService issues and consumes email verification tokens.
type VerificationService struct {
	repo    UserRepository
	mailer  Mailer
	siteURL string
}

func NewVerificationService(repo UserRepository, mailer Mailer, siteURL string) *VerificationService {
	return &VerificationService{repo: repo, mailer: mailer, siteURL: siteURL}
}

// Issue stores a fresh token on the user and hands the verification link to
// the mailer.
func (s *VerificationService) Issue(ctx context.Context, user types.User) error {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return err
	}
	verifyToken := hex.EncodeToString(raw)

	if err := s.repo.SetVerifyToken(ctx, user.ID, verifyToken, time.Now().Add(VerifyTokenTTL)); err != nil {
		return err
	}
	return s.mailer.SendVerification(ctx, user.Email, user.Username, s.siteURL+"/auth/verify?token="+verifyToken)
}

// Consume redeems a token. Consumption is one-shot: the same update that
// marks the email verified clears the token, so replay finds nothing.
func (s *VerificationService) Consume(ctx context.Context, verifyToken string) (types.User, error) {
	if !verifyTokenPattern.MatchString(verifyToken) {
		return types.User{}, ErrMalformedToken
	}
	return s.repo.ConsumeVerifyToken(ctx, verifyToken, time.Now())
}

// Resend issues a fresh token when an unverified account exists for the
// email. It reports success for unknown and already-verified addresses too;
// the caller's response must not reveal which case occurred.
func (s *VerificationService) Resend(ctx context.Context, email string) error {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if user.EmailVerified {
		return nil
	}
	return s.Issue(ctx, user)
}
