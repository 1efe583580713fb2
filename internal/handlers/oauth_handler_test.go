package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/emberhold/apiserver/config"
	"github.com/emberhold/apiserver/internal/oauth"
	"github.com/emberhold/apiserver/internal/services"
	"github.com/emberhold/apiserver/internal/store"
	"github.com/emberhold/apiserver/internal/token"
	"github.com/go-chi/chi/v5"
)

const oauthSiteURL = "https://emberhold.gg"

func newOAuthFixture(t *testing.T, steamServer *httptest.Server) (*chi.Mux, *store.MemoryUserRepository) {
	t.Helper()

	signer, err := token.NewSigner(testSecret, true)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	userRepo := store.NewMemoryUserRepository()
	sessionRepo := store.NewMemorySessionRepository()
	sessionService := services.NewSessionService(signer, sessionRepo)
	avatars := services.NewAvatarService(nil, "")

	discordClient := oauth.NewDiscordClient(config.DiscordConfig{}, oauthSiteURL)
	steamClient := oauth.NewSteamClient(config.SteamConfig{APIKey: "test-key"})
	if steamServer != nil {
		steamClient.SetBaseURLs(steamServer.URL+"/openid/login", steamServer.URL)
	}

	handler := NewOAuthHandler(
		services.NewDiscordLinker(userRepo, discordClient, avatars),
		services.NewSteamLinker(userRepo, steamClient, avatars),
		discordClient,
		steamClient,
		sessionService,
		oauthSiteURL,
		false,
	)

	router := chi.NewRouter()
	router.Route("/auth", func(r chi.Router) {
		OAuthRouter(r, handler)
	})
	return router, userRepo
}

func newFakeSteam(t *testing.T, valid bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/openid/login", func(w http.ResponseWriter, r *http.Request) {
		if valid {
			w.Write([]byte("ns:http://specs.openid.net/auth/2.0\nis_valid:true\n"))
			return
		}
		w.Write([]byte("ns:http://specs.openid.net/auth/2.0\nis_valid:false\n"))
	})
	mux.HandleFunc("/ISteamUser/GetPlayerSummaries/v2/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"response":{"players":[{"steamid":"76561198000000001","personaname":"GunnerySgt","avatarfull":""}]}}`))
	})
	return httptest.NewServer(mux)
}

func steamCallbackQuery() url.Values {
	query := url.Values{}
	query.Set("openid.ns", "http://specs.openid.net/auth/2.0")
	query.Set("openid.mode", "id_res")
	query.Set("openid.claimed_id", "https://steamcommunity.com/openid/id/76561198000000001")
	return query
}

func TestSteamCallbackLogsIn(t *testing.T) {
	server := newFakeSteam(t, true)
	defer server.Close()
	router, userRepo := newOAuthFixture(t, server)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/steam/callback?"+steamCallbackQuery().Encode(), nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != oauthSiteURL+"/?login=success" {
		t.Fatalf("location = %q", loc)
	}

	var haveCookie bool
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == SessionCookieName && cookie.Value != "" {
			haveCookie = true
		}
	}
	if !haveCookie {
		t.Fatal("successful callback must set the session cookie")
	}

	user, err := userRepo.GetBySteamID(context.Background(), "76561198000000001")
	if err != nil {
		t.Fatalf("GetBySteamID: %v", err)
	}
	if user.Username != "GunnerySgt" {
		t.Fatalf("username = %q", user.Username)
	}
}

func TestSteamCallbackRejectedAssertion(t *testing.T) {
	server := newFakeSteam(t, false)
	defer server.Close()
	router, _ := newOAuthFixture(t, server)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/steam/callback?"+steamCallbackQuery().Encode(), nil))

	if loc := rec.Header().Get("Location"); loc != oauthSiteURL+"/login?error=invalid_assertion" {
		t.Fatalf("location = %q", loc)
	}
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == SessionCookieName {
			t.Fatal("failed callback must not set a session cookie")
		}
	}
}

func TestDiscordCallbackDenied(t *testing.T) {
	router, _ := newOAuthFixture(t, nil)

	for _, target := range []string{
		"/auth/discord/callback?error=access_denied",
		"/auth/discord/callback",
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if loc := rec.Header().Get("Location"); loc != oauthSiteURL+"/login?error=provider_denied" {
			t.Fatalf("%s: location = %q", target, loc)
		}
	}
}

func TestDiscordLoginUnconfigured(t *testing.T) {
	router, _ := newOAuthFixture(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/discord", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestSteamLoginRedirect(t *testing.T) {
	router, _ := newOAuthFixture(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/steam", nil))
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	loc := rec.Header().Get("Location")
	if !strings.HasPrefix(loc, "https://steamcommunity.com/openid/login?") {
		t.Fatalf("location = %q", loc)
	}
	parsed, err := url.Parse(loc)
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	query := parsed.Query()
	if query.Get("openid.mode") != "checkid_setup" {
		t.Fatalf("openid.mode = %q", query.Get("openid.mode"))
	}
	if query.Get("openid.return_to") != oauthSiteURL+"/auth/steam/callback" {
		t.Fatalf("openid.return_to = %q", query.Get("openid.return_to"))
	}
}
