package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/emberhold/apiserver/internal/store"
	"github.com/emberhold/apiserver/types"
)

// linkAttempts bounds the find-or-create retry loop. One retry per natural
// key that can race is plenty; correctness comes from the unique indexes.
const linkAttempts = 3

// deriveUsername strips a provider display name down to the allowed
// character set and pads anything too short.
func deriveUsername(displayName string) string {
	var b strings.Builder
	for _, r := range displayName {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		}
	}
	name := b.String()
	if len(name) < minUsernameLen {
		name = "player" + name
	}
	return name
}

// uniqueUsername appends an incrementing numeric suffix to base until no
// existing user claims the name. A concurrent claim between the probe and
// the insert still surfaces as a username conflict, which the caller's
// retry loop absorbs.
func uniqueUsername(ctx context.Context, repo UserRepository, base string) (string, error) {
	candidate := base
	for suffix := 1; ; suffix++ {
		_, err := repo.GetByUsername(ctx, candidate)
		if errors.Is(err, store.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		candidate = fmt.Sprintf("%s%d", base, suffix)
	}
}

// placeholderEmail synthesizes a unique address for provider accounts that
// carry no email, scoped to the provider and the provider id.
func placeholderEmail(provider, providerID string) string {
	return fmt.Sprintf("%s_%s@placeholder.emberhold.gg", provider, providerID)
}

func strPtr(s string) *string {
	return &s
}

// newProviderUser fills in the fields every provider-created account shares.
func newProviderUser(username, email string, verified bool) types.User {
	return types.User{
		Username:      username,
		Email:         strings.ToLower(email),
		Role:          types.RolePlayer,
		EmailVerified: verified,
		Coins:         StartingCoins,
	}
}
