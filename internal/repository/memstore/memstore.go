// Package memstore is an in-memory implementation of the storefront stores.
// It is used in development when no database is configured and in tests.
// Every conditional update runs under one mutex, so it gives the same
// atomicity guarantees as the Postgres repositories.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sileshop/backend/internal/domain"
)

// Store holds users, orders and slots.
type Store struct {
	mu sync.Mutex

	users     map[string]*domain.User
	byDiscord map[string]string
	orders    map[string]*domain.Order
	sessions  map[string]string
	slots     map[string]*domain.Slot
	seq       int64
	slotSeq   map[string]int64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:     make(map[string]*domain.User),
		byDiscord: make(map[string]string),
		orders:    make(map[string]*domain.Order),
		sessions:  make(map[string]string),
		slots:     make(map[string]*domain.Slot),
		slotSeq:   make(map[string]int64),
	}
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Users returns the user store view.
func (s *Store) Users() *Users { return &Users{s} }

// Orders returns the order store view.
func (s *Store) Orders() *Orders { return &Orders{s} }

// Slots returns the slot store view.
func (s *Store) Slots() *Slots { return &Slots{s} }

// Users implements the user store.
type Users struct{ s *Store }

// Upsert inserts the user or refreshes the one with the same Discord id.
func (u *Users) Upsert(ctx context.Context, user *domain.User) (*domain.User, error) {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byDiscord[user.DiscordID]; ok {
		existing := s.users[id]
		updated := *user
		updated.ID = existing.ID
		updated.CreatedAt = existing.CreatedAt
		s.users[id] = &updated
		out := updated
		return &out, nil
	}
	stored := *user
	s.users[stored.ID] = &stored
	s.byDiscord[stored.DiscordID] = stored.ID
	out := stored
	return &out, nil
}

// FindByID returns a copy of the user, or nil.
func (u *Users) FindByID(ctx context.Context, id string) (*domain.User, error) {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	out := *user
	return &out, nil
}

// FindByDiscordID returns a copy of the user with the Discord id, or nil.
func (u *Users) FindByDiscordID(ctx context.Context, discordID string) (*domain.User, error) {
	s := u.s
	s.mu.Lock()
	id, ok := s.byDiscord[discordID]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return u.FindByID(ctx, id)
}

// Orders implements the order store.
type Orders struct{ s *Store }

// Create inserts a pending order. Session ids are unique.
func (o *Orders) Create(ctx context.Context, order *domain.Order) error {
	s := o.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.orders[order.ID]; dup {
		return fmt.Errorf("failed to create order: duplicate id %s", order.ID)
	}
	if _, dup := s.sessions[order.SessionID]; dup {
		return fmt.Errorf("failed to create order: duplicate session id %s", order.SessionID)
	}
	stored := copyOrder(order)
	s.orders[stored.ID] = stored
	s.sessions[stored.SessionID] = stored.ID
	return nil
}

// UpdateSessionID replaces the order's session id.
func (o *Orders) UpdateSessionID(ctx context.Context, orderID, sessionID string, now time.Time) error {
	s := o.s
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("failed to update order session: order %s not found", orderID)
	}
	if owner, dup := s.sessions[sessionID]; dup && owner != orderID {
		return fmt.Errorf("failed to update order session: duplicate session id %s", sessionID)
	}
	delete(s.sessions, order.SessionID)
	order.SessionID = sessionID
	order.UpdatedAt = now
	s.sessions[sessionID] = orderID
	return nil
}

// FindByID returns a copy of the order, or nil.
func (o *Orders) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	s := o.s
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	return copyOrder(order), nil
}

// ListByUser returns the user's orders, newest first.
func (o *Orders) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	s := o.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*domain.Order{}
	for _, order := range s.orders {
		if order.UserID == userID {
			out = append(out, copyOrder(order))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// MarkPaid moves a pending order to paid and creates its slots atomically.
func (o *Orders) MarkPaid(ctx context.Context, p domain.PaymentConfirmation) (*domain.Order, []*domain.Slot, bool, error) {
	s := o.s
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[p.OrderID]
	if !ok || order.Status != domain.OrderPending {
		return nil, nil, false, nil
	}
	order.Status = domain.OrderPaid
	if p.AmountTotal != nil {
		order.AmountTotal = *p.AmountTotal
	}
	if p.Currency != nil {
		order.Currency = *p.Currency
	}
	order.UpdatedAt = p.PaidAt

	slots := order.SlotsFor(p.PaidAt)
	out := make([]*domain.Slot, 0, len(slots))
	for _, slot := range slots {
		s.seq++
		s.slotSeq[slot.ID] = s.seq
		s.slots[slot.ID] = copySlot(slot)
		out = append(out, copySlot(slot))
	}
	return copyOrder(order), out, true, nil
}

// MarkFailed moves a pending order to failed.
func (o *Orders) MarkFailed(ctx context.Context, orderID string, now time.Time) (bool, error) {
	s := o.s
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok || order.Status != domain.OrderPending {
		return false, nil
	}
	order.Status = domain.OrderFailed
	order.UpdatedAt = now
	return true, nil
}

// Slots implements the slot store.
type Slots struct{ s *Store }

// ListByUser returns the user's slots, newest first.
func (sl *Slots) ListByUser(ctx context.Context, userID string) ([]*domain.Slot, error) {
	s := sl.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.filterSlots(func(slot *domain.Slot) bool { return slot.UserID == userID })
	// Same order as the SQL store: created_at DESC, then id in byte order.
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// FindForUser returns a copy of the slot if userID owns it, or nil.
func (sl *Slots) FindForUser(ctx context.Context, slotID, userID string) (*domain.Slot, error) {
	s := sl.s
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[slotID]
	if !ok || slot.UserID != userID {
		return nil, nil
	}
	return copySlot(slot), nil
}

// AssignGuild binds an unassigned, active, unexpired slot to guildID.
func (sl *Slots) AssignGuild(ctx context.Context, slotID, userID, guildID string, now time.Time) (*domain.Slot, error) {
	s := sl.s
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[slotID]
	if !ok || slot.UserID != userID || slot.GuildID != nil || !slot.ActiveAt(now) {
		return nil, nil
	}
	g := guildID
	slot.GuildID = &g
	slot.UpdatedAt = now
	return copySlot(slot), nil
}

// MarkExpired flips one ended active slot to expired.
func (sl *Slots) MarkExpired(ctx context.Context, slotID string, now time.Time) (*domain.Slot, error) {
	s := sl.s
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[slotID]
	if !ok || slot.Status != domain.SlotActive || !slot.ExpiredAt(now) {
		return nil, nil
	}
	slot.Status = domain.SlotExpired
	slot.UpdatedAt = now
	return copySlot(slot), nil
}

// ExpireStaleForUser flips the user's ended active slots.
func (sl *Slots) ExpireStaleForUser(ctx context.Context, userID string, now time.Time) ([]*domain.Slot, error) {
	s := sl.s
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expire(now, func(slot *domain.Slot) bool { return slot.UserID == userID }), nil
}

// ExpireStale flips every ended active slot.
func (sl *Slots) ExpireStale(ctx context.Context, now time.Time) ([]*domain.Slot, error) {
	s := sl.s
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expire(now, func(*domain.Slot) bool { return true }), nil
}

// FindActiveForGuild returns the latest-expiring slot granting productID to guildID.
func (sl *Slots) FindActiveForGuild(ctx context.Context, guildID, productID string, now time.Time) (*domain.Slot, error) {
	s := sl.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *domain.Slot
	for _, slot := range s.slots {
		if slot.GuildID == nil || *slot.GuildID != guildID || slot.ProductID != productID || !slot.ActiveAt(now) {
			continue
		}
		if best == nil || slot.ExpiresAt.After(best.ExpiresAt) {
			best = slot
		}
	}
	if best == nil {
		return nil, nil
	}
	return copySlot(best), nil
}

// Insert adds a slot directly. Only tests use it to seed state.
func (sl *Slots) Insert(slot *domain.Slot) {
	s := sl.s
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.slotSeq[slot.ID] = s.seq
	s.slots[slot.ID] = copySlot(slot)
}

func (s *Store) expire(now time.Time, match func(*domain.Slot) bool) []*domain.Slot {
	out := []*domain.Slot{}
	for _, slot := range s.slots {
		if slot.Status != domain.SlotActive || !slot.ExpiredAt(now) || !match(slot) {
			continue
		}
		slot.Status = domain.SlotExpired
		slot.UpdatedAt = now
		out = append(out, copySlot(slot))
	}
	sort.Slice(out, func(i, j int) bool { return s.slotSeq[out[i].ID] < s.slotSeq[out[j].ID] })
	return out
}

func (s *Store) filterSlots(match func(*domain.Slot) bool) []*domain.Slot {
	out := []*domain.Slot{}
	for _, slot := range s.slots {
		if match(slot) {
			out = append(out, copySlot(slot))
		}
	}
	return out
}

func copyOrder(o *domain.Order) *domain.Order {
	out := *o
	out.Items = append([]domain.QuotedLine(nil), o.Items...)
	return &out
}

func copySlot(slot *domain.Slot) *domain.Slot {
	out := *slot
	if slot.GuildID != nil {
		g := *slot.GuildID
		out.GuildID = &g
	}
	return &out
}
