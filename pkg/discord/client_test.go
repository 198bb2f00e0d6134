package discord

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuildCanManage(t *testing.T) {
	cases := []struct {
		perms string
		want  bool
	}{
		{"0", false},
		{"8", true},                    // administrator
		{"32", true},                   // manage guild
		{"40", true},                   // both
		{"16", false},                  // manage channels only
		{"2147483647", true},           // low 31 bits all set
		{"1125899906842624", false},    // bit 50 only, beyond float precision territory
		{"1125899906842632", true},     // bit 50 | administrator
		{"18446744073709551615", true}, // 64 bits set
		{"36893488147419103240", true}, // > 64 bits, administrator set
		{"", false},
		{"not-a-number", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Guild{Permissions: tc.perms}.CanManage(), "perms=%q", tc.perms)
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "at-123",
			"token_type":   "Bearer",
			"scope":        "identify email guilds",
			"expires_in":   604800,
		})
	})
	mux.HandleFunc("/users/@me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-123" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message": "401: Unauthorized"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id": "42", "username": "ferris", "global_name": "Ferris", "avatar": "abc", "email": "f@example.com"}`))
	})
	mux.HandleFunc("/users/@me/guilds", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"id": "1", "name": "Admin Guild", "icon": null, "permissions": "8", "owner": false},
			{"id": "2", "name": "Member Guild", "icon": "ic", "permissions": "1024", "owner": false}
		]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestExchangeAndFetch(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost/auth/discord/callback",
		APIBase:      srv.URL,
	}, srv.Client())

	ctx := context.Background()
	tok, err := c.Exchange(ctx, "the-code")
	require.NoError(t, err)
	assert.Equal(t, "at-123", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Equal(t, "identify email guilds", tok.Scope)

	u, err := c.FetchUser(ctx, tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "42", u.ID)
	assert.Equal(t, "Ferris", u.GlobalName)

	guilds, err := c.FetchGuilds(ctx, tok.AccessToken)
	require.NoError(t, err)
	require.Len(t, guilds, 2)
	assert.True(t, guilds[0].CanManage())
	assert.False(t, guilds[1].CanManage())
}

func TestFetchUserAPIError(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(Config{APIBase: srv.URL}, srv.Client())

	_, err := c.FetchUser(context.Background(), "wrong")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestAuthCodeURL(t *testing.T) {
	c := NewClient(Config{ClientID: "cid", RedirectURL: "http://localhost/cb"}, nil)
	raw := c.AuthCodeURL("state-1")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "discord.com", u.Host)
	assert.Equal(t, "/api/oauth2/authorize", u.Path)
	q := u.Query()
	assert.Equal(t, "cid", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "identify email guilds", q.Get("scope"))
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, "http://localhost/cb", q.Get("redirect_uri"))
}

func TestAvatarURL(t *testing.T) {
	assert.Equal(t, "", AvatarURL("1", ""))
	assert.Equal(t, "https://cdn.discordapp.com/avatars/1/abc.png?size=128", AvatarURL("1", "abc"))
}
