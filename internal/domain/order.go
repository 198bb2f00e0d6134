package domain

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Order statuses.
const (
	OrderPending = "pending"
	OrderPaid    = "paid"
	OrderFailed  = "failed"
)

// PendingSessionPrefix marks placeholder session ids. Provider-issued ids
// never start with it.
const PendingSessionPrefix = "pending_"

// Order is a checkout attempt. Items are frozen at checkout time.
type Order struct {
	ID          string       `json:"id"`
	UserID      string       `json:"userId"`
	SessionID   string       `json:"sessionId"`
	AmountTotal int64        `json:"amountTotal"`
	Currency    string       `json:"currency"`
	Items       []QuotedLine `json:"items"`
	Status      string       `json:"status"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// NewPendingSessionID returns a unique placeholder used until the payment
// provider reports the real session id. ULIDs combine a millisecond
// timestamp with 80 random bits.
func NewPendingSessionID() string {
	return PendingSessionPrefix + ulid.Make().String()
}

// IsPendingSessionID reports whether id is a placeholder.
func IsPendingSessionID(id string) bool {
	return strings.HasPrefix(id, PendingSessionPrefix)
}

// UnitCount is the number of slots the order materialises once paid.
func (o *Order) UnitCount() int {
	n := 0
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}

// PaymentConfirmation is a provider-verified payment for an order. Nil
// amount or currency keeps the value recorded at checkout.
type PaymentConfirmation struct {
	OrderID     string
	SessionID   string
	AmountTotal *int64
	Currency    *string
	PaidAt      time.Time
}

// SlotsFor materialises one active, unassigned slot per purchased unit,
// each expiring months calendar months after paidAt.
func (o *Order) SlotsFor(paidAt time.Time) []*Slot {
	paidAt = paidAt.UTC()
	slots := make([]*Slot, 0, o.UnitCount())
	for _, item := range o.Items {
		expiresAt := AddMonths(paidAt, item.Months)
		for i := 0; i < item.Quantity; i++ {
			slots = append(slots, &Slot{
				ID:          NewID(),
				UserID:      o.UserID,
				OrderID:     o.ID,
				ProductID:   item.ProductID,
				ProductName: item.Name,
				Months:      item.Months,
				StartsAt:    paidAt,
				ExpiresAt:   expiresAt,
				Status:      SlotActive,
				CreatedAt:   paidAt,
				UpdatedAt:   paidAt,
			})
		}
	}
	return slots
}
