package oauth

import (
	"strings"
	"testing"

	"github.com/emberhold/apiserver/config"
)

func TestParseSteamID(t *testing.T) {
	cases := []struct {
		claimed string
		want    string
		wantErr bool
	}{
		{"https://steamcommunity.com/openid/id/76561197960435530", "76561197960435530", false},
		{"https://steamcommunity.com/openid/id/76561197960435530/", "76561197960435530", false},
		{"https://steamcommunity.com/openid/id/abc123", "", true},
		{"https://steamcommunity.com/openid/id/", "", true},
		{"", "", true},
		{"76561197960435530", "", true},
	}
	for _, tc := range cases {
		got, err := ParseSteamID(tc.claimed)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseSteamID(%q): expected error, got %q", tc.claimed, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseSteamID(%q): %v", tc.claimed, err)
		}
		if got != tc.want {
			t.Fatalf("ParseSteamID(%q) = %q, want %q", tc.claimed, got, tc.want)
		}
	}
}

func TestDiscordAuthorizeURL(t *testing.T) {
	client := NewDiscordClient(config.DiscordConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
	}, "https://emberhold.gg")

	u := client.AuthorizeURL()
	for _, want := range []string{
		"client_id=client-id",
		"response_type=code",
		"identify+email",
		"emberhold.gg%2Fauth%2Fdiscord%2Fcallback",
	} {
		if !strings.Contains(u, want) {
			t.Fatalf("authorize url %q missing %q", u, want)
		}
	}
}

func TestDiscordAvatarURL(t *testing.T) {
	client := NewDiscordClient(config.DiscordConfig{}, "https://emberhold.gg")

	profile := DiscordProfile{ID: "D1", Avatar: "abcd"}
	if got := client.AvatarURL(profile); got != "https://cdn.discordapp.com/avatars/D1/abcd.png" {
		t.Fatalf("avatar url = %q", got)
	}
	if got := client.AvatarURL(DiscordProfile{ID: "D1"}); got != "" {
		t.Fatalf("expected empty avatar url, got %q", got)
	}
}
