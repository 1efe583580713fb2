// Package oauth contains the HTTP clients for the external identity
// providers. Every call runs with a bounded timeout; a network failure is
// terminal for the request and is never retried here.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/emberhold/apiserver/config"
)

const (
	discordAPIBase = "https://discord.com/api"
	discordCDNBase = "https://cdn.discordapp.com"
)

// DiscordProfile is the subset of the Discord user object the linker needs.
type DiscordProfile struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Email      string `json:"email"`
	Verified   bool   `json:"verified"`
	Avatar     string `json:"avatar"`
}

// DiscordClient exchanges authorization codes and fetches profiles.
type DiscordClient struct {
	httpClient   *http.Client
	clientID     string
	clientSecret string
	redirectURI  string
	apiBase      string
	cdnBase      string
}

// NewDiscordClient constructs a client from config. The redirect URI is
// fixed by the public site URL.
func NewDiscordClient(cfg config.DiscordConfig, siteURL string) *DiscordClient {
	return &DiscordClient{
		httpClient:   &http.Client{Timeout: providerTimeout},
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURI:  siteURL + "/auth/discord/callback",
		apiBase:      discordAPIBase,
		cdnBase:      discordCDNBase,
	}
}

// Configured reports whether provider credentials are present.
func (c *DiscordClient) Configured() bool {
	return c.clientID != "" && c.clientSecret != ""
}

// AuthorizeURL builds the provider authorization URL the login start
// redirects to.
func (c *DiscordClient) AuthorizeURL() string {
	query := url.Values{}
	query.Set("client_id", c.clientID)
	query.Set("redirect_uri", c.redirectURI)
	query.Set("response_type", "code")
	query.Set("scope", "identify email")
	return "https://discord.com/oauth2/authorize?" + query.Encode()
}

// Exchange trades an authorization code for an access token.
func (c *DiscordClient) Exchange(ctx context.Context, code string) (string, error) {
	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.redirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("discord token endpoint returned %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.AccessToken == "" {
		return "", errors.New("discord token response missing access_token")
	}
	return body.AccessToken, nil
}

// Profile fetches the authenticated user's Discord profile.
func (c *DiscordClient) Profile(ctx context.Context, accessToken string) (DiscordProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/users/@me", nil)
	if err != nil {
		return DiscordProfile{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return DiscordProfile{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return DiscordProfile{}, fmt.Errorf("discord profile endpoint returned %d", resp.StatusCode)
	}

	var profile DiscordProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return DiscordProfile{}, err
	}
	if profile.ID == "" {
		return DiscordProfile{}, errors.New("discord profile missing id")
	}
	return profile, nil
}

// AvatarURL returns the CDN URL for a profile's avatar, or empty when the
// profile has none.
func (c *DiscordClient) AvatarURL(profile DiscordProfile) string {
	if profile.Avatar == "" {
		return ""
	}
	return fmt.Sprintf("%s/avatars/%s/%s.png", c.cdnBase, profile.ID, profile.Avatar)
}

// SetBaseURLs points the client at a different provider host. Test hook.
func (c *DiscordClient) SetBaseURLs(apiBase, cdnBase string) {
	c.apiBase = apiBase
	if cdnBase != "" {
		c.cdnBase = cdnBase
	}
}
