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

// OrderRepository handles database operations for orders and the slots
// they materialise.
type OrderRepository struct {
	db *pgxpool.Pool
}

// NewOrderRepository creates a new OrderRepository.
func NewOrderRepository(db *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, user_id, session_id, amount_total, currency, items, status, created_at, updated_at`

// Create inserts a pending order.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		o.ID, o.UserID, o.SessionID, o.AmountTotal, o.Currency, o.Items, o.Status, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// UpdateSessionID replaces the placeholder session id with the provider's.
func (r *OrderRepository) UpdateSessionID(ctx context.Context, orderID, sessionID string, now time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE orders SET session_id = $2, updated_at = $3 WHERE id = $1`,
		orderID, sessionID, now,
	)
	if err != nil {
		return fmt.Errorf("failed to update order session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to update order session: order %s not found", orderID)
	}
	return nil
}

// FindByID returns an order by ID, or nil when none exists.
func (r *OrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	row := r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	return o, nil
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// MarkPaid moves a pending order to paid and inserts its slots in one
// transaction. It returns applied=false, with no error, when the order does
// not exist or is no longer pending.
func (r *OrderRepository) MarkPaid(ctx context.Context, p domain.PaymentConfirmation) (*domain.Order, []*domain.Slot, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	row := tx.QueryRow(ctx, `
		UPDATE orders SET
			status = 'paid',
			amount_total = COALESCE($2, amount_total),
			currency = COALESCE($3, currency),
			updated_at = $4
		WHERE id = $1 AND status = 'pending'
		RETURNING `+orderColumns,
		p.OrderID, p.AmountTotal, p.Currency, p.PaidAt,
	)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, false, nil
		}
		return nil, nil, false, fmt.Errorf("failed to mark order paid: %w", err)
	}

	slots := order.SlotsFor(p.PaidAt)
	batch := &pgx.Batch{}
	for _, s := range slots {
		batch.Queue(`
			INSERT INTO slots (id, user_id, order_id, product_id, product_name, months,
				guild_id, starts_at, expires_at, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NULL, $7, $8, $9, $10, $11)`,
			s.ID, s.UserID, s.OrderID, s.ProductID, s.ProductName, s.Months,
			s.StartsAt, s.ExpiresAt, s.Status, s.CreatedAt, s.UpdatedAt,
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return nil, nil, false, fmt.Errorf("failed to create slots: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, false, fmt.Errorf("failed to commit fulfillment: %w", err)
	}
	return order, slots, true, nil
}

// MarkFailed moves a pending order to failed. Paid orders are never touched.
func (r *OrderRepository) MarkFailed(ctx context.Context, orderID string, now time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE orders SET status = 'failed', updated_at = $2 WHERE id = $1 AND status = 'pending'`,
		orderID, now,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark order failed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.SessionID, &o.AmountTotal, &o.Currency, &o.Items, &o.Status, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
