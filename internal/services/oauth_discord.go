package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emberhold/apiserver/internal/oauth"
	"github.com/emberhold/apiserver/internal/store"
	"github.com/emberhold/apiserver/types"
)

// DiscordLinker resolves a Discord OAuth2 callback to exactly one local
// user: an existing link, an email match, or a fresh account.
type DiscordLinker struct {
	repo    UserRepository
	client  *oauth.DiscordClient
	avatars *AvatarService
}

func NewDiscordLinker(repo UserRepository, client *oauth.DiscordClient, avatars *AvatarService) *DiscordLinker {
	return &DiscordLinker{repo: repo, client: client, avatars: avatars}
}

// Link exchanges the authorization code, fetches the profile and resolves it
// to a local user. Failures come back as a LinkError whose code is the only
// detail the browser ever sees.
func (l *DiscordLinker) Link(ctx context.Context, code string) (types.User, error) {
	accessToken, err := l.client.Exchange(ctx, code)
	if err != nil {
		return types.User{}, &LinkError{Code: CodeExchangeFailed, Err: err}
	}

	profile, err := l.client.Profile(ctx, accessToken)
	if err != nil {
		return types.User{}, &LinkError{Code: CodeProfileFailed, Err: err}
	}

	var user types.User
	for attempt := 0; attempt < linkAttempts; attempt++ {
		user, err = l.resolve(ctx, profile)
		if err == nil {
			break
		}
		// Losing a creation race on a unique key means the identity now
		// exists; the next pass finds it by its natural key.
		if _, conflict := store.AsConflict(err); conflict {
			continue
		}
		return types.User{}, &LinkError{Code: CodeLinkFailed, Err: err}
	}
	if err != nil {
		return types.User{}, &LinkError{Code: CodeLinkFailed, Err: err}
	}

	if err := l.repo.TouchLogin(ctx, user.ID, time.Now()); err != nil {
		return types.User{}, &LinkError{Code: CodeLinkFailed, Err: err}
	}
	return user, nil
}

func (l *DiscordLinker) resolve(ctx context.Context, profile oauth.DiscordProfile) (types.User, error) {
	// 1. The provider identity is already linked.
	user, err := l.repo.GetByDiscordID(ctx, profile.ID)
	if err == nil {
		return l.refreshAvatar(ctx, user, profile), nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}

	// 2. An account with the profile's email exists and has no Discord link
	// yet. Attach rather than duplicate. An existing different link is left
	// alone and resolution falls through to account creation.
	if profile.Email != "" {
		user, err = l.repo.GetByEmail(ctx, profile.Email)
		switch {
		case err == nil && user.DiscordID == nil:
			if err := l.repo.AttachDiscordID(ctx, user.ID, profile.ID); err != nil {
				// The guard lost to a concurrent attach; re-resolve.
				if errors.Is(err, store.ErrNotFound) {
					return types.User{}, &store.ConflictError{Field: "discord_id"}
				}
				return types.User{}, err
			}
			user.DiscordID = strPtr(profile.ID)
			return l.refreshAvatar(ctx, user, profile), nil
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return types.User{}, err
		}
	}

	// 3. Create a fresh account.
	return l.create(ctx, profile)
}

func (l *DiscordLinker) create(ctx context.Context, profile oauth.DiscordProfile) (types.User, error) {
	displayName := profile.GlobalName
	if displayName == "" {
		displayName = profile.Username
	}
	username, err := uniqueUsername(ctx, l.repo, deriveUsername(displayName))
	if err != nil {
		return types.User{}, err
	}

	email := profile.Email
	verified := profile.Verified
	if email != "" {
		// The address may belong to an account that already carries a
		// different Discord link; that link is never overwritten, so the
		// new account cannot claim the address either.
		_, err := l.repo.GetByEmail(ctx, email)
		if err == nil {
			email = ""
		} else if !errors.Is(err, store.ErrNotFound) {
			return types.User{}, err
		}
	}
	if email == "" {
		email = placeholderEmail("discord", profile.ID)
		verified = false
	}

	user := newProviderUser(username, email, verified)
	user.DiscordID = strPtr(profile.ID)
	if source := l.client.AvatarURL(profile); source != "" {
		user.AvatarURL = l.avatars.Mirror(ctx, fmt.Sprintf("discord_%s", profile.ID), source)
	}

	created, err := l.repo.Create(ctx, user)
	if err != nil {
		return types.User{}, err
	}
	return created, nil
}

// refreshAvatar updates the stored avatar when the provider hash changed.
func (l *DiscordLinker) refreshAvatar(ctx context.Context, user types.User, profile oauth.DiscordProfile) types.User {
	source := l.client.AvatarURL(profile)
	if source == "" {
		return user
	}
	mirrored := l.avatars.Mirror(ctx, fmt.Sprintf("discord_%s", profile.ID), source)
	if mirrored == user.AvatarURL {
		return user
	}
	if err := l.repo.UpdateAvatar(ctx, user.ID, mirrored); err == nil {
		user.AvatarURL = mirrored
	}
	return user
}
