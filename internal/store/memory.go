package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/emberhold/apiserver/types"
	"github.com/google/uuid"
)

// MemoryUserRepository is an in-memory user store with the same uniqueness
// semantics as the postgres repository. It backs demo deployments that run
// without a database and the unit tests.
type MemoryUserRepository struct {
	mu    sync.Mutex
	users map[string]types.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: map[string]types.User{}}
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return r.find(func(u types.User) bool {
		return strings.EqualFold(u.Email, email)
	})
}

func (r *MemoryUserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return r.find(func(u types.User) bool {
		return strings.EqualFold(u.Username, username)
	})
}

func (r *MemoryUserRepository) GetByDiscordID(ctx context.Context, discordID string) (types.User, error) {
	return r.find(func(u types.User) bool {
		return u.DiscordID != nil && *u.DiscordID == discordID
	})
}

func (r *MemoryUserRepository) GetBySteamID(ctx context.Context, steamID string) (types.User, error) {
	return r.find(func(u types.User) bool {
		return u.SteamID != nil && *u.SteamID == steamID
	})
}

func (r *MemoryUserRepository) FindByEmailOrUsername(ctx context.Context, email, username string) (types.User, error) {
	if user, err := r.GetByEmail(ctx, email); err == nil {
		return user, nil
	}
	return r.GetByUsername(ctx, username)
}

func (r *MemoryUserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return types.User{}, &ConflictError{Field: "email"}
		}
		if strings.EqualFold(existing.Username, user.Username) {
			return types.User{}, &ConflictError{Field: "username"}
		}
		if user.DiscordID != nil && existing.DiscordID != nil && *existing.DiscordID == *user.DiscordID {
			return types.User{}, &ConflictError{Field: "discord_id"}
		}
		if user.SteamID != nil && existing.SteamID != nil && *existing.SteamID == *user.SteamID {
			return types.User{}, &ConflictError{Field: "steam_id"}
		}
	}

	now := time.Now()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Email = strings.ToLower(user.Email)
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = user
	return user, nil
}

func (r *MemoryUserRepository) AttachDiscordID(ctx context.Context, userID, discordID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok || user.DiscordID != nil {
		return ErrNotFound
	}
	for _, existing := range r.users {
		if existing.DiscordID != nil && *existing.DiscordID == discordID {
			return &ConflictError{Field: "discord_id"}
		}
	}
	user.DiscordID = &discordID
	user.UpdatedAt = time.Now()
	r.users[userID] = user
	return nil
}

func (r *MemoryUserRepository) UpdateAvatar(ctx context.Context, userID, avatarURL string) error {
	return r.update(userID, func(u *types.User) {
		u.AvatarURL = avatarURL
	})
}

func (r *MemoryUserRepository) TouchLogin(ctx context.Context, userID string, at time.Time) error {
	return r.update(userID, func(u *types.User) {
		u.LastLogin = &at
	})
}

func (r *MemoryUserRepository) SetVerifyToken(ctx context.Context, userID, token string, expires time.Time) error {
	return r.update(userID, func(u *types.User) {
		u.VerifyToken = &token
		u.VerifyExpires = &expires
	})
}

func (r *MemoryUserRepository) ConsumeVerifyToken(ctx context.Context, token string, now time.Time) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, user := range r.users {
		if user.VerifyToken == nil || *user.VerifyToken != token {
			continue
		}
		if user.VerifyExpires == nil || !user.VerifyExpires.After(now) {
			return types.User{}, ErrNotFound
		}
		user.EmailVerified = true
		user.VerifyToken = nil
		user.VerifyExpires = nil
		user.UpdatedAt = now
		r.users[id] = user
		return user, nil
	}
	return types.User{}, ErrNotFound
}

// Put replaces a stored user wholesale, bypassing uniqueness checks. Demo
// seeding and tests use it to shape fixtures.
func (r *MemoryUserRepository) Put(user types.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
}

func (r *MemoryUserRepository) find(match func(types.User) bool) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if match(user) {
			return user, nil
		}
	}
	return types.User{}, ErrNotFound
}

func (r *MemoryUserRepository) update(userID string, apply func(*types.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return ErrNotFound
	}
	apply(&user)
	user.UpdatedAt = time.Now()
	r.users[userID] = user
	return nil
}

// MemorySessionRepository keeps issued sessions in memory.
type MemorySessionRepository struct {
	mu       sync.Mutex
	sessions []types.Session
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{}
}

func (r *MemorySessionRepository) Create(ctx context.Context, session types.Session) (types.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	r.sessions = append(r.sessions, session)
	return session, nil
}

func (r *MemorySessionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]types.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 {
		limit = 20
	}
	var result []types.Session
	for i := len(r.sessions) - 1; i >= 0 && len(result) < limit; i-- {
		if r.sessions[i].UserID == userID {
			result = append(result, r.sessions[i])
		}
	}
	return result, nil
}
