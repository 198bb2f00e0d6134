package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sileshop/backend/internal/catalog"
	"github.com/sileshop/backend/internal/domain"
	"github.com/sileshop/backend/internal/repository/memstore"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, time.January, 31, 9, 30, 0, 0, time.UTC)

// testClock is a settable clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{now: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]domain.Product{
		{ID: "basic", Name: "Basic", MonthlyPriceCents: 500},
		{ID: "pro", Name: "Pro", MonthlyPriceCents: 1000},
		{ID: "odd", Name: "Odd", MonthlyPriceCents: 199},
	}, nil)
	require.NoError(t, err)
	return c
}

// fakeGuilds grants administration of a fixed set of guilds.
type fakeGuilds struct {
	mu      sync.Mutex
	allowed map[string]bool
	err     error
	calls   int
}

func (f *fakeGuilds) CanAdminister(ctx context.Context, userID, guildID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.allowed[guildID], nil
}

// recordingNotifier captures published events.
type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.SlotEvent
}

func (n *recordingNotifier) Publish(ev domain.SlotEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) Events() []domain.SlotEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.SlotEvent(nil), n.events...)
}

// seedSlot inserts an active, unassigned slot for user-1.
func seedSlot(store *memstore.Store, id, productID string, expiresAt time.Time) {
	store.Slots().Insert(&domain.Slot{
		ID:          id,
		UserID:      "user-1",
		OrderID:     "order-1",
		ProductID:   productID,
		ProductName: productID,
		Months:      1,
		StartsAt:    fixedNow.Add(-time.Hour),
		ExpiresAt:   expiresAt,
		Status:      domain.SlotActive,
		CreatedAt:   fixedNow.Add(-time.Hour),
		UpdatedAt:   fixedNow.Add(-time.Hour),
	})
}

func strPtr(s string) *string { return &s }
