// Package token issues and verifies the signed session credentials. The
// signing configuration is constructed once at startup and never mutated.
package token

import (
	"errors"
	"time"

	"github.com/emberhold/apiserver/types"
	"github.com/golang-jwt/jwt/v5"
)

// SessionTTL is the lifetime embedded in every issued token and enforced at
// verification time.
const SessionTTL = 7 * 24 * time.Hour

const minSecretLen = 32

// devSecret is substituted for a missing or weak secret outside production
// only. Production deployments refuse to start instead.
const devSecret = "emberhold-dev-secret-do-not-use-in-prod"

var (
	// ErrWeakSecret is returned by NewSigner when the configured secret is
	// absent or shorter than 32 bytes in a production deployment.
	ErrWeakSecret = errors.New("signing secret missing or shorter than 32 bytes")

	// ErrExpired is returned by Parse for a well-formed token past its
	// expiry.
	ErrExpired = errors.New("token expired")

	// ErrInvalid is returned by Parse for any other verification failure.
	ErrInvalid = errors.New("token invalid")
)

// Claims is the token payload: everything authorization needs without a
// repository round-trip.
type Claims struct {
	UserID    string     `json:"uid"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Role      types.Role `json:"role"`
	DiscordID string     `json:"discord_id,omitempty"`
	SteamID   string     `json:"steam_id,omitempty"`
	jwt.RegisteredClaims
}

// Signer signs and verifies session tokens with a single immutable secret.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

// NewSigner validates the secret and constructs a Signer. In production a
// missing or short secret is a hard error; otherwise the fixed development
// secret is substituted.
func NewSigner(secret string, production bool) (*Signer, error) {
	if len(secret) < minSecretLen {
		if production {
			return nil, ErrWeakSecret
		}
		secret = devSecret
	}
	return &Signer{secret: []byte(secret), ttl: SessionTTL}, nil
}

// TTL returns the session lifetime the signer embeds in tokens.
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for the given user valid from now for the session TTL.
func (s *Signer) Issue(user types.User, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if user.DiscordID != nil {
		claims.DiscordID = *user.DiscordID
	}
	if user.SteamID != nil {
		claims.SteamID = *user.SteamID
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse verifies a token and returns its claims. The failure reason is
// distinguishable: ErrExpired for a good signature past its expiry,
// ErrInvalid for everything else.
func (s *Signer) Parse(raw string) (Claims, error) {
	claims := Claims{}
	parsed, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, ErrInvalid
	}
	if !parsed.Valid || claims.UserID == "" {
		return Claims{}, ErrInvalid
	}
	return claims, nil
}
