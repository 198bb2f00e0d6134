package service

import (
	"context"
	"time"

	"github.com/sileshop/backend/internal/domain"
)

// UserStore persists customers.
type UserStore interface {
	Upsert(ctx context.Context, u *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

// OrderStore persists orders. MarkPaid and MarkFailed are compare-and-set
// transitions out of pending; applied=false means another caller won.
type OrderStore interface {
	Create(ctx context.Context, o *domain.Order) error
	UpdateSessionID(ctx context.Context, orderID, sessionID string, now time.Time) error
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Order, error)
	MarkPaid(ctx context.Context, p domain.PaymentConfirmation) (*domain.Order, []*domain.Slot, bool, error)
	MarkFailed(ctx context.Context, orderID string, now time.Time) (bool, error)
}

// SlotStore persists slots. Conditional updates return nil when their
// guard no longer holds.
type SlotStore interface {
	ListByUser(ctx context.Context, userID string) ([]*domain.Slot, error)
	FindForUser(ctx context.Context, slotID, userID string) (*domain.Slot, error)
	AssignGuild(ctx context.Context, slotID, userID, guildID string, now time.Time) (*domain.Slot, error)
	MarkExpired(ctx context.Context, slotID string, now time.Time) (*domain.Slot, error)
	ExpireStaleForUser(ctx context.Context, userID string, now time.Time) ([]*domain.Slot, error)
	ExpireStale(ctx context.Context, now time.Time) ([]*domain.Slot, error)
	FindActiveForGuild(ctx context.Context, guildID, productID string, now time.Time) (*domain.Slot, error)
}

// SlotNotifier receives entitlement changes for connected bots.
type SlotNotifier interface {
	Publish(ev domain.SlotEvent)
}

type nopNotifier struct{}

func (nopNotifier) Publish(domain.SlotEvent) {}

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time

func utcNow() time.Time {
	return time.Now().UTC()
}

func clockOrDefault(c Clock) Clock {
	if c == nil {
		return utcNow
	}
	return c
}

// publishExpired notifies about slots that were bound to a guild.
func publishExpired(n SlotNotifier, slots []*domain.Slot) {
	for _, s := range slots {
		if !s.Assigned() {
			continue
		}
		n.Publish(domain.SlotEvent{
			Type:      domain.EventSlotExpired,
			SlotID:    s.ID,
			GuildID:   *s.GuildID,
			ProductID: s.ProductID,
			ExpiresAt: s.ExpiresAt,
		})
	}
}
