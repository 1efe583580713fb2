package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/emberhold/apiserver/internal/store"
	"github.com/emberhold/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// StartingCoins is the currency grant for every new account.
const StartingCoins = 500

const (
	minUsernameLen = 3
	minPasswordLen = 6
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByDiscordID(ctx context.Context, discordID string) (types.User, error)
	GetBySteamID(ctx context.Context, steamID string) (types.User, error)
	FindByEmailOrUsername(ctx context.Context, email, username string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	AttachDiscordID(ctx context.Context, userID, discordID string) error
	UpdateAvatar(ctx context.Context, userID, avatarURL string) error
	TouchLogin(ctx context.Context, userID string, at time.Time) error
	SetVerifyToken(ctx context.Context, userID, token string, expires time.Time) error
	ConsumeVerifyToken(ctx context.Context, token string, now time.Time) (types.User, error)
}

// UserService encapsulates account use-cases.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

// RegisterInput is the payload for password registration.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Register creates a password account. Password accounts are trusted
// immediately, so the email starts out verified.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (types.User, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(input.Email)

	if len(input.Username) < minUsernameLen {
		return types.User{}, &ValidationError{Field: "username", Message: "must be at least 3 characters"}
	}
	if !emailPattern.MatchString(input.Email) {
		return types.User{}, &ValidationError{Field: "email", Message: "must be a valid email address"}
	}
	if len(input.Password) < minPasswordLen {
		return types.User{}, &ValidationError{Field: "password", Message: "must be at least 6 characters"}
	}

	// One lookup covers both unique keys. When both collide the email
	// conflict wins, which the repository guarantees by match order.
	existing, err := s.repo.FindByEmailOrUsername(ctx, input.Email, input.Username)
	if err == nil {
		field := "username"
		if strings.EqualFold(existing.Email, input.Email) {
			field = "email"
		}
		return types.User{}, &store.ConflictError{Field: field}
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		Username:      input.Username,
		Email:         strings.ToLower(input.Email),
		PasswordHash:  string(hashed),
		Role:          types.RolePlayer,
		EmailVerified: true,
		Coins:         StartingCoins,
	})
	if err != nil {
		return types.User{}, err
	}
	return user, nil
}

// Login verifies a password against the account matching the login name,
// which may be an email address or a username.
func (s *UserService) Login(ctx context.Context, login, password string) (types.User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return types.User{}, ErrInvalidCredentials
	}

	user, err := s.repo.GetByEmail(ctx, login)
	if errors.Is(err, store.ErrNotFound) {
		user, err = s.repo.GetByUsername(ctx, login)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}

	// Provider-bootstrapped accounts have no password to compare.
	if user.PasswordHash == "" {
		return types.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, ErrInvalidCredentials
	}

	if err := s.repo.TouchLogin(ctx, user.ID, time.Now()); err != nil {
		return types.User{}, err
	}
	return user, nil
}

// GetByID loads a user by id.
func (s *UserService) GetByID(ctx context.Context, id string) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}
