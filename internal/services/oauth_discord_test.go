package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/emberhold/apiserver/config"
	"github.com/emberhold/apiserver/internal/oauth"
	"github.com/emberhold/apiserver/internal/store"
	"github.com/emberhold/apiserver/types"
)

// fakeDiscord stands in for the provider's token and profile endpoints.
type fakeDiscord struct {
	profile    oauth.DiscordProfile
	failToken  bool
	server     *httptest.Server
	tokenCalls int
}

func newFakeDiscord(t *testing.T) *fakeDiscord {
	t.Helper()
	fake := &fakeDiscord{}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		fake.tokenCalls++
		if fake.failToken {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "access-token"})
	})
	mux.HandleFunc("/users/@me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(fake.profile)
	})
	fake.server = httptest.NewServer(mux)
	t.Cleanup(fake.server.Close)
	return fake
}

func newDiscordFixture(t *testing.T) (*DiscordLinker, *store.MemoryUserRepository, *fakeDiscord) {
	t.Helper()
	fake := newFakeDiscord(t)
	client := oauth.NewDiscordClient(config.DiscordConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
	}, "https://emberhold.gg")
	client.SetBaseURLs(fake.server.URL, fake.server.URL)

	repo := store.NewMemoryUserRepository()
	linker := NewDiscordLinker(repo, client, NewAvatarService(nil, ""))
	return linker, repo, fake
}

func TestDiscordLinkCreatesUser(t *testing.T) {
	linker, _, fake := newDiscordFixture(t)
	fake.profile = oauth.DiscordProfile{
		ID:       "D1",
		Username: "hero",
		Email:    "a@x.com",
		Verified: true,
	}

	user, err := linker.Link(context.Background(), "code")
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if user.DiscordID == nil || *user.DiscordID != "D1" {
		t.Fatalf("discord id = %v, want D1", user.DiscordID)
	}
	if !user.EmailVerified {
		t.Fatal("expected emailVerified from the provider's flag")
	}
	if user.Email != "a@x.com" {
		t.Fatalf("email = %q", user.Email)
	}
	if user.Role != types.RolePlayer {
		t.Fatalf("role = %q, want player", user.Role)
	}
	if user.LastLogin == nil {
		t.Fatal("expected last login to be touched")
	}

	// An identical second callback reuses the same account.
	again, err := linker.Link(context.Background(), "code")
	if err != nil {
		t.Fatalf("second Link: %v", err)
	}
	if again.ID != user.ID {
		t.Fatalf("second callback created user %s, want %s", again.ID, user.ID)
	}
}

func TestDiscordLinkAttachesToEmailMatch(t *testing.T) {
	linker, repo, fake := newDiscordFixture(t)
	ctx := context.Background()

	existing, err := repo.Create(ctx, types.User{
		Username: "hero",
		Email:    "a@x.com",
		Role:     types.RolePlayer,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	fake.profile = oauth.DiscordProfile{ID: "D1", Username: "someone", Email: "A@X.COM", Verified: true}

	user, err := linker.Link(ctx, "code")
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if user.ID != existing.ID {
		t.Fatal("expected the existing account to be linked, not a duplicate")
	}
	if user.DiscordID == nil || *user.DiscordID != "D1" {
		t.Fatalf("discord id = %v, want D1", user.DiscordID)
	}
}

func TestDiscordLinkNeverOverwritesExistingLink(t *testing.T) {
	linker, repo, fake := newDiscordFixture(t)
	ctx := context.Background()

	otherDiscord := "D0"
	existing, err := repo.Create(ctx, types.User{
		Username:  "hero",
		Email:     "a@x.com",
		DiscordID: &otherDiscord,
		Role:      types.RolePlayer,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	fake.profile = oauth.DiscordProfile{ID: "D1", Username: "hero", Email: "a@x.com", Verified: true}

	user, err := linker.Link(ctx, "code")
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if user.ID == existing.ID {
		t.Fatal("existing foreign link must not be overwritten")
	}
	refreshed, err := repo.GetByID(ctx, existing.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if *refreshed.DiscordID != "D0" {
		t.Fatalf("existing link mutated to %q", *refreshed.DiscordID)
	}
	// The new account keeps a distinct username via the suffix loop.
	if user.Username == existing.Username {
		t.Fatal("expected a suffixed username for the new account")
	}
}

func TestDiscordLinkSynthesizesPlaceholderEmail(t *testing.T) {
	linker, _, fake := newDiscordFixture(t)
	fake.profile = oauth.DiscordProfile{ID: "D9", Username: "No Email Guy!"}

	user, err := linker.Link(context.Background(), "code")
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if user.Email != "discord_d9@placeholder.emberhold.gg" {
		t.Fatalf("email = %q", user.Email)
	}
	if user.EmailVerified {
		t.Fatal("synthesized addresses are never verified")
	}
	// Display name stripped to the allowed character set.
	if user.Username != "NoEmailGuy" {
		t.Fatalf("username = %q", user.Username)
	}
}

func TestDiscordLinkUsernameSuffix(t *testing.T) {
	linker, repo, fake := newDiscordFixture(t)
	ctx := context.Background()

	for _, name := range []string{"hero", "hero1"} {
		if _, err := repo.Create(ctx, types.User{
			Username: name,
			Email:    name + "@taken.example",
			Role:     types.RolePlayer,
		}); err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
	}

	fake.profile = oauth.DiscordProfile{ID: "D2", Username: "hero"}

	user, err := linker.Link(ctx, "code")
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if user.Username != "hero2" {
		t.Fatalf("username = %q, want hero2", user.Username)
	}
}

func TestDiscordLinkExchangeFailure(t *testing.T) {
	linker, repo, fake := newDiscordFixture(t)
	fake.failToken = true

	_, err := linker.Link(context.Background(), "code")
	var linkErr *LinkError
	if !errors.As(err, &linkErr) || linkErr.Code != CodeExchangeFailed {
		t.Fatalf("expected exchange_failed, got %v", err)
	}
	if _, err := repo.GetByDiscordID(context.Background(), "D1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatal("no user may be created on a failed exchange")
	}
}
