// Package discord talks to the Discord OAuth2 and REST APIs on behalf of a
// logged-in user.
package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// DefaultAPIBase is the Discord REST root.
const DefaultAPIBase = "https://discord.com/api"

// Scopes requested at login.
var Scopes = []string{"identify", "email", "guilds"}

// Permission bits that allow a user to manage a guild's bot settings.
var (
	permAdministrator = big.NewInt(0x8)
	permManageGuild   = big.NewInt(0x20)
)

// Token is the result of an authorization code exchange.
type Token struct {
	AccessToken string
	TokenType   string
	Scope       string
}

// User is the subset of GET /users/@me we keep.
type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Avatar     string `json:"avatar"`
	Email      string `json:"email"`
}

// Guild is an entry of GET /users/@me/guilds. Permissions is a decimal
// string that may exceed 53 bits.
type Guild struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Permissions string `json:"permissions"`
	Owner       bool   `json:"owner"`
}

// CanManage reports whether the permission set includes Administrator or
// Manage Guild.
func (g Guild) CanManage() bool {
	perms, ok := new(big.Int).SetString(strings.TrimSpace(g.Permissions), 10)
	if !ok {
		return false
	}
	return hasBit(perms, permAdministrator) || hasBit(perms, permManageGuild)
}

func hasBit(perms, bit *big.Int) bool {
	return new(big.Int).And(perms, bit).Cmp(bit) == 0
}

// APIError is a non-2xx response from Discord.
type APIError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discord %s failed: %d %s", e.Endpoint, e.Status, e.Body)
}

// Config holds the OAuth application settings.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// APIBase overrides DefaultAPIBase (tests).
	APIBase string
}

// Client is a Discord OAuth + REST client. It is safe for concurrent use.
type Client struct {
	oauth   *oauth2.Config
	http    *http.Client
	apiBase string
}

// NewClient creates a Client that sends every request through httpClient.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	base := strings.TrimRight(cfg.APIBase, "/")
	if base == "" {
		base = DefaultAPIBase
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   base + "/oauth2/authorize",
				TokenURL:  base + "/oauth2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		http:    httpClient,
		apiBase: base,
	}
}

// AuthCodeURL returns the consent page URL for state.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for an access token.
func (c *Client) Exchange(ctx context.Context, code string) (*Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("discord token exchange: %w", err)
	}
	scope, _ := tok.Extra("scope").(string)
	return &Token{
		AccessToken: tok.AccessToken,
		TokenType:   tok.Type(),
		Scope:       scope,
	}, nil
}

// FetchUser returns the identity behind accessToken.
func (c *Client) FetchUser(ctx context.Context, accessToken string) (*User, error) {
	var u User
	if err := c.get(ctx, accessToken, "/users/@me", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// FetchGuilds returns every guild the user is a member of.
func (c *Client) FetchGuilds(ctx context.Context, accessToken string) ([]Guild, error) {
	var guilds []Guild
	if err := c.get(ctx, accessToken, "/users/@me/guilds", &guilds); err != nil {
		return nil, err
	}
	return guilds, nil
}

func (c *Client) get(ctx context.Context, accessToken, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("discord %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{Endpoint: path, Status: resp.StatusCode, Body: string(body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("discord %s: decode: %w", path, err)
	}
	return nil
}

// AvatarURL returns the CDN URL of a user's avatar, or "" when unset.
func AvatarURL(userID, avatar string) string {
	if userID == "" || avatar == "" {
		return ""
	}
	return fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.png?size=128", userID, avatar)
}
