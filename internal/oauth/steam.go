package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/emberhold/apiserver/config"
)

const (
	steamOpenIDURL = "https://steamcommunity.com/openid/login"
	steamAPIBase   = "https://api.steampowered.com"

	providerTimeout = 10 * time.Second
)

// ErrAssertionRejected is returned when the provider does not confirm an
// OpenID assertion. No claim from the assertion may be trusted in that case.
var ErrAssertionRejected = errors.New("openid assertion rejected by provider")

// SteamProfile is the subset of a player summary the linker needs.
type SteamProfile struct {
	SteamID     string `json:"steamid"`
	PersonaName string `json:"personaname"`
	AvatarFull  string `json:"avatarfull"`
}

// SteamClient verifies OpenID assertions and fetches player summaries.
type SteamClient struct {
	httpClient *http.Client
	apiKey     string
	openidURL  string
	apiBase    string
}

func NewSteamClient(cfg config.SteamConfig) *SteamClient {
	return &SteamClient{
		httpClient: &http.Client{Timeout: providerTimeout},
		apiKey:     cfg.APIKey,
		openidURL:  steamOpenIDURL,
		apiBase:    steamAPIBase,
	}
}

// AuthorizeURL builds the OpenID 2.0 checkid_setup URL the login start
// redirects to. returnTo must be the callback URL under the public site URL.
func (c *SteamClient) AuthorizeURL(returnTo string) string {
	query := url.Values{}
	query.Set("openid.ns", "http://specs.openid.net/auth/2.0")
	query.Set("openid.mode", "checkid_setup")
	query.Set("openid.return_to", returnTo)
	query.Set("openid.realm", realmOf(returnTo))
	query.Set("openid.identity", "http://specs.openid.net/auth/2.0/identifier_select")
	query.Set("openid.claimed_id", "http://specs.openid.net/auth/2.0/identifier_select")
	return c.openidURL + "?" + query.Encode()
}

// VerifyAssertion replays the callback parameters to the provider's
// check_authentication endpoint and fails unless the provider answers
// is_valid:true.
func (c *SteamClient) VerifyAssertion(ctx context.Context, params url.Values) error {
	form := url.Values{}
	for key, values := range params {
		if len(values) > 0 {
			form.Set(key, values[0])
		}
	}
	form.Set("openid.mode", "check_authentication")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.openidURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "is_valid:true") {
		return ErrAssertionRejected
	}
	return nil
}

// ParseSteamID extracts the numeric Steam id from the trailing path segment
// of the claimed identifier.
func ParseSteamID(claimedID string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(claimedID), "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 || idx == len(trimmed)-1 {
		return "", fmt.Errorf("malformed claimed id %q", claimedID)
	}
	id := trimmed[idx+1:]
	for _, r := range id {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("malformed claimed id %q", claimedID)
		}
	}
	return id, nil
}

// PlayerSummary fetches the display profile for a Steam id. Callers treat a
// failure as best-effort and fall back to a placeholder name.
func (c *SteamClient) PlayerSummary(ctx context.Context, steamID string) (SteamProfile, error) {
	if c.apiKey == "" {
		return SteamProfile{}, errors.New("steam api key not configured")
	}

	query := url.Values{}
	query.Set("key", c.apiKey)
	query.Set("steamids", steamID)
	endpoint := c.apiBase + "/ISteamUser/GetPlayerSummaries/v2/?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return SteamProfile{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return SteamProfile{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return SteamProfile{}, fmt.Errorf("steam api returned %d", resp.StatusCode)
	}

	var body struct {
		Response struct {
			Players []SteamProfile `json:"players"`
		} `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return SteamProfile{}, err
	}
	if len(body.Response.Players) == 0 {
		return SteamProfile{}, errors.New("steam api returned no players")
	}
	return body.Response.Players[0], nil
}

// SetBaseURLs points the client at a different provider host. Test hook.
func (c *SteamClient) SetBaseURLs(openidURL, apiBase string) {
	if openidURL != "" {
		c.openidURL = openidURL
	}
	if apiBase != "" {
		c.apiBase = apiBase
	}
}

func realmOf(returnTo string) string {
	u, err := url.Parse(returnTo)
	if err != nil {
		return returnTo
	}
	return u.Scheme + "://" + u.Host
}
