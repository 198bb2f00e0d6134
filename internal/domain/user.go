package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is a customer identified by their Discord account.
type User struct {
	ID             string    `json:"id"`
	DiscordID      string    `json:"discordId"`
	Username       string    `json:"username"`
	GlobalName     string    `json:"globalName"`
	Avatar         string    `json:"avatar"`
	Email          string    `json:"email"`
	AccessToken    string    `json:"-"` // sealed at rest
	TokenType      string    `json:"-"`
	Scope          string    `json:"-"`
	TokenCreatedAt time.Time `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// MeUser is the public profile returned by GET /api/me. ID is the Discord
// account id.
type MeUser struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"globalName"`
	Avatar     string `json:"avatar"`
	AvatarURL  string `json:"avatarUrl,omitempty"`
}

// Guild is a Discord server the user belongs to.
type Guild struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Permissions string `json:"permissions"`
	Owner       bool   `json:"owner"`
}

// SessionClaims is the identity carried by a session token.
type SessionClaims struct {
	UserID    string
	DiscordID string
}

// NewID generates a new UUID for users, orders and slots.
func NewID() string {
	return uuid.New().String()
}
