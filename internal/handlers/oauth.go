package handlers

import (
	"log"
	"net/http"

	"github.com/emberhold/apiserver/internal/oauth"
	"github.com/emberhold/apiserver/internal/services"
	"github.com/emberhold/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// OAuthHandler runs the provider login starts and callbacks. Callbacks never
// surface error detail to the browser; only a fixed set of opaque codes
// travels back as a redirect query parameter.
type OAuthHandler struct {
	discord       *services.DiscordLinker
	steam         *services.SteamLinker
	discordClient *oauth.DiscordClient
	steamClient   *oauth.SteamClient
	sessions      *services.SessionService
	siteURL       string
	production    bool
}

func NewOAuthHandler(
	discord *services.DiscordLinker,
	steam *services.SteamLinker,
	discordClient *oauth.DiscordClient,
	steamClient *oauth.SteamClient,
	sessions *services.SessionService,
	siteURL string,
	production bool,
) *OAuthHandler {
	return &OAuthHandler{
		discord:       discord,
		steam:         steam,
		discordClient: discordClient,
		steamClient:   steamClient,
		sessions:      sessions,
		siteURL:       siteURL,
		production:    production,
	}
}

// OAuthRouter registers the provider routes under /auth.
func OAuthRouter(r chi.Router, handler *OAuthHandler) {
	r.Get("/discord", handler.DiscordLogin)
	r.Get("/discord/callback", handler.DiscordCallback)
	r.Get("/steam", handler.SteamLogin)
	r.Get("/steam/callback", handler.SteamCallback)
}

// DiscordLogin redirects the browser to the provider authorization page.
func (h *OAuthHandler) DiscordLogin(w http.ResponseWriter, r *http.Request) {
	if !h.discordClient.Configured() {
		writeError(w, http.StatusInternalServerError, "discord login is not configured")
		return
	}
	http.Redirect(w, r, h.discordClient.AuthorizeURL(), http.StatusFound)
}

// DiscordCallback resolves the provider callback to a local user and issues
// a session.
func (h *OAuthHandler) DiscordCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Get("error") != "" || query.Get("code") == "" {
		h.redirectError(w, r, services.CodeProviderDenied)
		return
	}

	user, err := h.discord.Link(r.Context(), query.Get("code"))
	if err != nil {
		log.Printf("oauth: discord link failed: %v", err)
		h.redirectError(w, r, services.LinkCode(err))
		return
	}

	h.finishLogin(w, r, user)
}

// SteamLogin redirects the browser to the provider OpenID page.
func (h *OAuthHandler) SteamLogin(w http.ResponseWriter, r *http.Request) {
	returnTo := h.siteURL + "/auth/steam/callback"
	http.Redirect(w, r, h.steamClient.AuthorizeURL(returnTo), http.StatusFound)
}

// SteamCallback verifies the OpenID assertion and resolves it to a local
// user.
func (h *OAuthHandler) SteamCallback(w http.ResponseWriter, r *http.Request) {
	user, err := h.steam.Link(r.Context(), r.URL.Query())
	if err != nil {
		log.Printf("oauth: steam link failed: %v", err)
		h.redirectError(w, r, services.LinkCode(err))
		return
	}

	h.finishLogin(w, r, user)
}

func (h *OAuthHandler) finishLogin(w http.ResponseWriter, r *http.Request, user types.User) {
	userAgent, ip := requestMeta(r)
	issued, err := h.sessions.Issue(r.Context(), user, services.RequestMeta{
		UserAgent: userAgent,
		IPAddress: ip,
	})
	if err != nil {
		log.Printf("oauth: session issue failed for user %s: %v", user.ID, err)
		h.redirectError(w, r, services.CodeLinkFailed)
		return
	}

	setSessionCookie(w, issued.Token, issued.ExpiresAt, h.production)
	http.Redirect(w, r, h.siteURL+"/?login=success", http.StatusFound)
}

func (h *OAuthHandler) redirectError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, h.siteURL+"/login?error="+code, http.StatusFound)
}
