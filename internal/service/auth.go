package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sileshop/backend/internal/domain"
	"github.com/sileshop/backend/pkg/crypto"
	"github.com/sileshop/backend/pkg/discord"
)

// DefaultSessionTTL is how long a login session lasts.
const DefaultSessionTTL = 7 * 24 * time.Hour

// IdentityProvider is the OAuth login backend.
type IdentityProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*discord.Token, error)
	FetchUser(ctx context.Context, accessToken string) (*discord.User, error)
}

// AuthService handles Discord login and session tokens.
type AuthService struct {
	secret   []byte
	ttl      time.Duration
	users    UserStore
	identity IdentityProvider
	sealer   *crypto.Sealer
	now      Clock
}

// NewAuthService creates a new AuthService. Sessions are HS256 JWTs signed
// with sessionSecret.
func NewAuthService(sessionSecret string, ttl time.Duration, users UserStore, identity IdentityProvider, sealer *crypto.Sealer, now Clock) *AuthService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &AuthService{
		secret:   []byte(sessionSecret),
		ttl:      ttl,
		users:    users,
		identity: identity,
		sealer:   sealer,
		now:      clockOrDefault(now),
	}
}

// SessionTTL is the lifetime of issued sessions.
func (s *AuthService) SessionTTL() time.Duration {
	return s.ttl
}

// NewState returns an unguessable OAuth state value.
func (s *AuthService) NewState() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// LoginURL returns the Discord consent URL for state.
func (s *AuthService) LoginURL(state string) string {
	return s.identity.AuthCodeURL(state)
}

// CompleteLogin exchanges the authorization code, upserts the user with a
// sealed access token and returns the user with a signed session.
func (s *AuthService) CompleteLogin(ctx context.Context, code string) (*domain.User, string, error) {
	if strings.TrimSpace(code) == "" {
		return nil, "", domain.ErrBadRequest(domain.CodeInvalidRequest)
	}

	tok, err := s.identity.Exchange(ctx, code)
	if err != nil {
		log.Error().Err(err).Msg("Discord code exchange failed")
		return nil, "", domain.ErrUnavailable(domain.CodeDiscordUnavailable, err)
	}
	profile, err := s.identity.FetchUser(ctx, tok.AccessToken)
	if err != nil {
		log.Error().Err(err).Msg("Discord profile fetch failed")
		return nil, "", domain.ErrUnavailable(domain.CodeDiscordUnavailable, err)
	}
	if profile.ID == "" {
		return nil, "", domain.ErrUnavailable(domain.CodeDiscordUnavailable, errors.New("discord returned an empty user id"))
	}

	sealed, err := s.sealer.Seal(profile.ID, tok.AccessToken)
	if err != nil {
		return nil, "", domain.ErrInternal(domain.CodeInternal, err)
	}

	now := s.now()
	user, err := s.users.Upsert(ctx, &domain.User{
		ID:             domain.NewID(),
		DiscordID:      profile.ID,
		Username:       profile.Username,
		GlobalName:     profile.GlobalName,
		Avatar:         profile.Avatar,
		Email:          profile.Email,
		AccessToken:    sealed,
		TokenType:      tok.TokenType,
		Scope:          tok.Scope,
		TokenCreatedAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return nil, "", domain.ErrInternal(domain.CodeInternal, err)
	}

	session, err := s.IssueSession(user)
	if err != nil {
		return nil, "", err
	}
	log.Info().Str("user_id", user.ID).Str("discord_id", user.DiscordID).Msg("User logged in")
	return user, session, nil
}

// IssueSession signs a session token for user.
func (s *AuthService) IssueSession(user *domain.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub": user.ID,
		"did": user.DiscordID,
		"iat": now.Unix(),
		"exp": now.Add(s.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", domain.ErrInternal(domain.CodeInternal, fmt.Errorf("failed to sign session: %w", err))
	}
	return signed, nil
}

// VerifySession validates a session token and returns its claims.
func (s *AuthService) VerifySession(tokenStr string) (*domain.SessionClaims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, domain.ErrUnauthorized(domain.CodeAuthRequired)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrUnauthorized(domain.CodeAuthRequired)
	}
	sub := getClaimString(claims, "sub")
	if sub == "" {
		return nil, domain.ErrUnauthorized(domain.CodeAuthRequired)
	}
	return &domain.SessionClaims{UserID: sub, DiscordID: getClaimString(claims, "did")}, nil
}

func getClaimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// CurrentUser returns the public profile of userID, or nil when the user no
// longer exists.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*domain.MeUser, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal(domain.CodeInternal, err)
	}
	if user == nil {
		return nil, nil
	}
	return &domain.MeUser{
		ID:         user.DiscordID,
		Username:   user.Username,
		GlobalName: user.GlobalName,
		Avatar:     user.Avatar,
		AvatarURL:  discord.AvatarURL(user.DiscordID, user.Avatar),
	}, nil
}

// DiscordToken returns the user's unsealed Discord access token.
func (s *AuthService) DiscordToken(ctx context.Context, userID string) (string, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "", domain.ErrInternal(domain.CodeInternal, err)
	}
	if user == nil || user.AccessToken == "" {
		return "", domain.ErrUnauthorized(domain.CodeNoToken)
	}
	token, err := s.sealer.Open(user.DiscordID, user.AccessToken)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Stored Discord token cannot be opened")
		return "", domain.ErrUnauthorized(domain.CodeNoToken)
	}
	return token, nil
}
