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

// SlotRepository handles database operations for slots. Expiry is always
// judged against the caller's clock, never the stored status alone.
type SlotRepository struct {
	db *pgxpool.Pool
}

// NewSlotRepository creates a new SlotRepository.
func NewSlotRepository(db *pgxpool.Pool) *SlotRepository {
	return &SlotRepository{db: db}
}

const slotColumns = `id, user_id, order_id, product_id, product_name, months,
	guild_id, starts_at, expires_at, status, created_at, updated_at`

// ListByUser returns the user's slots, newest first.
func (r *SlotRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Slot, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+slotColumns+` FROM slots WHERE user_id = $1 ORDER BY created_at DESC, id COLLATE "C"`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	return collectSlots(rows)
}

// FindForUser returns the slot if it belongs to userID, or nil.
func (r *SlotRepository) FindForUser(ctx context.Context, slotID, userID string) (*domain.Slot, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+slotColumns+` FROM slots WHERE id = $1 AND user_id = $2`, slotID, userID)
	s, err := scanSlot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find slot: %w", err)
	}
	return s, nil
}

// AssignGuild binds an unassigned, active, unexpired slot to guildID.
// It returns the updated slot, or nil when the conditions no longer hold.
func (r *SlotRepository) AssignGuild(ctx context.Context, slotID, userID, guildID string, now time.Time) (*domain.Slot, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE slots SET guild_id = $3, updated_at = $4
		WHERE id = $1 AND user_id = $2
			AND guild_id IS NULL AND status = 'active' AND expires_at > $4
		RETURNING `+slotColumns,
		slotID, userID, guildID, now,
	)
	s, err := scanSlot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to assign slot: %w", err)
	}
	return s, nil
}

// MarkExpired flips one active slot whose term has ended to expired.
func (r *SlotRepository) MarkExpired(ctx context.Context, slotID string, now time.Time) (*domain.Slot, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE slots SET status = 'expired', updated_at = $2
		WHERE id = $1 AND status = 'active' AND expires_at <= $2
		RETURNING `+slotColumns,
		slotID, now,
	)
	s, err := scanSlot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to expire slot: %w", err)
	}
	return s, nil
}

// ExpireStaleForUser flips the user's ended active slots and returns them.
func (r *SlotRepository) ExpireStaleForUser(ctx context.Context, userID string, now time.Time) ([]*domain.Slot, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE slots SET status = 'expired', updated_at = $2
		WHERE user_id = $1 AND status = 'active' AND expires_at <= $2
		RETURNING `+slotColumns,
		userID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to expire slots: %w", err)
	}
	return collectSlots(rows)
}

// ExpireStale flips every ended active slot and returns them.
func (r *SlotRepository) ExpireStale(ctx context.Context, now time.Time) ([]*domain.Slot, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE slots SET status = 'expired', updated_at = $1
		WHERE status = 'active' AND expires_at <= $1
		RETURNING `+slotColumns,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to expire slots: %w", err)
	}
	return collectSlots(rows)
}

// FindActiveForGuild returns the longest-running slot granting productID to
// guildID at now, or nil.
func (r *SlotRepository) FindActiveForGuild(ctx context.Context, guildID, productID string, now time.Time) (*domain.Slot, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+slotColumns+` FROM slots
		WHERE guild_id = $1 AND product_id = $2 AND status = 'active' AND expires_at > $3
		ORDER BY expires_at DESC
		LIMIT 1`,
		guildID, productID, now,
	)
	s, err := scanSlot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to check entitlement: %w", err)
	}
	return s, nil
}

func collectSlots(rows pgx.Rows) ([]*domain.Slot, error) {
	defer rows.Close()
	slots := []*domain.Slot{}
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slots = append(slots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read slots: %w", err)
	}
	return slots, nil
}

func scanSlot(row pgx.Row) (*domain.Slot, error) {
	var s domain.Slot
	err := row.Scan(
		&s.ID, &s.UserID, &s.OrderID, &s.ProductID, &s.ProductName, &s.Months,
		&s.GuildID, &s.StartsAt, &s.ExpiresAt, &s.Status, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
