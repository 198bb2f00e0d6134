package domain

import "time"

// Slot statuses.
const (
	SlotActive  = "active"
	SlotExpired = "expired"
	SlotRevoked = "revoked"
)

// Slot is one purchased, time-bounded entitlement assignable to one guild.
type Slot struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	OrderID     string    `json:"orderId,omitempty"`
	ProductID   string    `json:"productId"`
	ProductName string    `json:"productName"`
	Months      int       `json:"months"`
	GuildID     *string   `json:"guildId"`
	StartsAt    time.Time `json:"startsAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ExpiredAt reports whether the slot's term has ended at now.
func (s *Slot) ExpiredAt(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// ActiveAt reports whether the slot grants an entitlement at now. The
// stored status may lag behind expiry, so the timestamp is always checked.
func (s *Slot) ActiveAt(now time.Time) bool {
	return s.Status == SlotActive && !s.ExpiredAt(now)
}

// Assigned reports whether the slot is bound to a guild.
func (s *Slot) Assigned() bool {
	return s.GuildID != nil && *s.GuildID != ""
}

// ActivateSlotRequest is the body of POST /api/slots/{slotId}/activate.
type ActivateSlotRequest struct {
	GuildID string `json:"guildId" validate:"omitempty,numeric,max=32"`
}

// SlotEvent is pushed to connected bots when an entitlement changes.
type SlotEvent struct {
	Type      string    `json:"type"`
	SlotID    string    `json:"slotId"`
	GuildID   string    `json:"guildId"`
	ProductID string    `json:"productId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Slot event types.
const (
	EventSlotActivated = "slot.activated"
	EventSlotExpired   = "slot.expired"
)

// EntitlementResponse is the bot-facing answer of GET /api/premium/{guildId}.
type EntitlementResponse struct {
	OK     bool  `json:"ok"`
	Active bool  `json:"active"`
	Slot   *Slot `json:"slot"`
}
