package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
	"github.com/sileshop/backend/internal/domain"
	"github.com/sileshop/backend/pkg/discord"
)

const guildCacheSize = 1024

// GuildDirectory lists the guilds a Discord token can see.
type GuildDirectory interface {
	FetchGuilds(ctx context.Context, accessToken string) ([]discord.Guild, error)
}

// TokenSource yields a user's Discord access token.
type TokenSource interface {
	DiscordToken(ctx context.Context, userID string) (string, error)
}

// GuildService answers which guilds a user can manage.
type GuildService struct {
	dir    GuildDirectory
	tokens TokenSource
	cache  *expirable.LRU[string, []domain.Guild]
}

// NewGuildService creates a GuildService. ListManageable results are cached
// per user for ttl; CanAdminister never reads the cache.
func NewGuildService(dir GuildDirectory, tokens TokenSource, ttl time.Duration) *GuildService {
	s := &GuildService{dir: dir, tokens: tokens}
	if ttl > 0 {
		s.cache = expirable.NewLRU[string, []domain.Guild](guildCacheSize, nil, ttl)
	}
	return s
}

// ListManageable returns the guilds where the user has Administrator or
// Manage Guild.
func (s *GuildService) ListManageable(ctx context.Context, userID string) ([]domain.Guild, error) {
	if s.cache != nil {
		if guilds, ok := s.cache.Get(userID); ok {
			return guilds, nil
		}
	}
	guilds, err := s.fetchManageable(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Add(userID, guilds)
	}
	return guilds, nil
}

// CanAdminister checks guildID against a fresh guild list.
func (s *GuildService) CanAdminister(ctx context.Context, userID, guildID string) (bool, error) {
	guilds, err := s.fetchManageable(ctx, userID)
	if err != nil {
		return false, err
	}
	if s.cache != nil {
		s.cache.Add(userID, guilds)
	}
	for _, g := range guilds {
		if g.ID == guildID {
			return true, nil
		}
	}
	return false, nil
}

func (s *GuildService) fetchManageable(ctx context.Context, userID string) ([]domain.Guild, error) {
	token, err := s.tokens.DiscordToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	all, err := s.dir.FetchGuilds(ctx, token)
	if err != nil {
		var apiErr *discord.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			return nil, domain.ErrUnauthorized(domain.CodeNoToken)
		}
		log.Error().Err(err).Str("user_id", userID).Msg("Discord guild list failed")
		return nil, domain.ErrUnavailable(domain.CodeDiscordUnavailable, err)
	}

	out := make([]domain.Guild, 0, len(all))
	for _, g := range all {
		if !g.CanManage() {
			continue
		}
		out = append(out, domain.Guild{
			ID:          g.ID,
			Name:        g.Name,
			Icon:        g.Icon,
			Permissions: g.Permissions,
			Owner:       g.Owner,
		})
	}
	return out, nil
}
