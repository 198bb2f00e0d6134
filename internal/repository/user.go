package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sileshop/backend/internal/domain"
)

// UserRepository handles database operations for users.
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, discord_id, username, global_name, avatar, email,
	access_token, token_type, scope, token_created_at, created_at, updated_at`

// Upsert inserts the user or refreshes the profile and token of the row
// with the same Discord id. The stored user, with its stable id, is returned.
func (r *UserRepository) Upsert(ctx context.Context, u *domain.User) (*domain.User, error) {
	query := `
		INSERT INTO users (id, discord_id, username, global_name, avatar, email,
			access_token, token_type, scope, token_created_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (discord_id) DO UPDATE SET
			username = EXCLUDED.username,
			global_name = EXCLUDED.global_name,
			avatar = EXCLUDED.avatar,
			email = EXCLUDED.email,
			access_token = EXCLUDED.access_token,
			token_type = EXCLUDED.token_type,
			scope = EXCLUDED.scope,
			token_created_at = EXCLUDED.token_created_at,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + userColumns
	row := r.db.QueryRow(ctx, query,
		u.ID, u.DiscordID, u.Username, u.GlobalName, u.Avatar, u.Email,
		u.AccessToken, u.TokenType, u.Scope, nullTime(u.TokenCreatedAt), u.CreatedAt, u.UpdatedAt,
	)
	stored, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return stored, nil
}

// FindByID returns a user by ID, or nil when none exists.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var tokenCreatedAt *time.Time
	err := row.Scan(
		&u.ID, &u.DiscordID, &u.Username, &u.GlobalName, &u.Avatar, &u.Email,
		&u.AccessToken, &u.TokenType, &u.Scope, &tokenCreatedAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if tokenCreatedAt != nil {
		u.TokenCreatedAt = *tokenCreatedAt
	}
	return &u, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
