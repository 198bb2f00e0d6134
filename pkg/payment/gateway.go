// Package payment defines the payment provider port used by checkout and
// fulfillment, with a Stripe implementation.
package payment

import (
	"context"
	"errors"
)

// Event types the storefront reacts to.
const (
	EventCheckoutCompleted     = "checkout.session.completed"
	EventCheckoutExpired       = "checkout.session.expired"
	EventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	EventAsyncPaymentFailed    = "checkout.session.async_payment_failed"
)

// PaymentStatusUnpaid marks a completed session whose funds have not arrived
// yet. Such sessions are settled later by an async payment event.
const PaymentStatusUnpaid = "unpaid"

// Metadata keys attached to every checkout session and echoed back in events.
const (
	MetadataOrderID = "orderId"
	MetadataUserID  = "userId"
)

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("payment provider not configured")
	// ErrWebhookNotConfigured is returned when no webhook secret is set.
	ErrWebhookNotConfigured = errors.New("payment webhook secret not configured")
	// ErrInvalidSignature is returned when an event fails verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// LineItem is one priced entry on the provider's checkout page.
type LineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int64
}

// CheckoutRequest describes the session to open.
type CheckoutRequest struct {
	OrderID    string
	UserID     string
	Currency   string
	Items      []LineItem
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is the provider's answer: its session id and the page to
// redirect the buyer to.
type CheckoutSession struct {
	ID  string
	URL string
}

// Event is a verified provider event reduced to the fields the storefront
// needs. AmountTotal and Currency are nil when the provider omitted them.
type Event struct {
	ID            string
	Type          string
	SessionID     string
	OrderID       string
	UserID        string
	PaymentStatus string
	AmountTotal   *int64
	Currency      *string
}

// PaymentGateway defines the interface for payment providers.
type PaymentGateway interface {
	// Configured reports whether checkout sessions can be created.
	Configured() bool
	// CreateCheckoutSession opens a hosted checkout for req.
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	// ParseEvent verifies the signature of a webhook delivery and decodes it.
	ParseEvent(payload []byte, signature string) (*Event, error)
}
