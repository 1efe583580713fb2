package services

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/emberhold/apiserver/internal/oauth"
	"github.com/emberhold/apiserver/internal/store"
	"github.com/emberhold/apiserver/types"
)

// SteamLinker resolves a Steam OpenID callback to exactly one local user.
// Steam accounts resolve by steam id only; Steam profiles rarely carry an
// email, so there is no email-merge path.
type SteamLinker struct {
	repo    UserRepository
	client  *oauth.SteamClient
	avatars *AvatarService
}

func NewSteamLinker(repo UserRepository, client *oauth.SteamClient, avatars *AvatarService) *SteamLinker {
	return &SteamLinker{repo: repo, client: client, avatars: avatars}
}

// Link verifies the OpenID assertion with the provider before trusting any
// claim, then finds or creates the local account for the asserted steam id.
func (l *SteamLinker) Link(ctx context.Context, params url.Values) (types.User, error) {
	if err := l.client.VerifyAssertion(ctx, params); err != nil {
		return types.User{}, &LinkError{Code: CodeInvalidAssertion, Err: err}
	}

	steamID, err := oauth.ParseSteamID(params.Get("openid.claimed_id"))
	if err != nil {
		return types.User{}, &LinkError{Code: CodeInvalidAssertion, Err: err}
	}

	var user types.User
	for attempt := 0; attempt < linkAttempts; attempt++ {
		user, err = l.resolve(ctx, steamID)
		if err == nil {
			break
		}
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

func (l *SteamLinker) resolve(ctx context.Context, steamID string) (types.User, error) {
	user, err := l.repo.GetBySteamID(ctx, steamID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}
	return l.create(ctx, steamID)
}

func (l *SteamLinker) create(ctx context.Context, steamID string) (types.User, error) {
	// The display profile is best effort; the deterministic placeholder
	// covers an unavailable profile API.
	displayName := "player_" + steamID
	var avatarSource string
	if profile, err := l.client.PlayerSummary(ctx, steamID); err == nil {
		if derived := deriveUsername(profile.PersonaName); profile.PersonaName != "" {
			displayName = derived
		}
		avatarSource = profile.AvatarFull
	}

	username, err := uniqueUsername(ctx, l.repo, displayName)
	if err != nil {
		return types.User{}, err
	}

	user := newProviderUser(username, placeholderEmail("steam", steamID), false)
	user.SteamID = strPtr(steamID)
	if avatarSource != "" {
		user.AvatarURL = l.avatars.Mirror(ctx, "steam_"+steamID, avatarSource)
	}

	created, err := l.repo.Create(ctx, user)
	if err != nil {
		return types.User{}, err
	}
	return created, nil
}
