package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeConfig holds the Stripe credentials.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

// StripeGateway implements PaymentGateway with Stripe Checkout.
type StripeGateway struct {
	secretKey     string
	webhookSecret string

	createSession func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// NewStripeGateway creates a gateway whose API calls go through httpClient.
// Either credential may be empty; the matching operation then fails with
// ErrNotConfigured or ErrWebhookNotConfigured.
func NewStripeGateway(cfg StripeConfig, httpClient *http.Client) *StripeGateway {
	g := &StripeGateway{
		secretKey:     strings.TrimSpace(cfg.SecretKey),
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
	}
	if g.secretKey != "" {
		sc := client.New(g.secretKey, stripe.NewBackends(httpClient))
		g.createSession = sc.CheckoutSessions.New
	}
	return g
}

// Configured reports whether checkout sessions can be created.
func (g *StripeGateway) Configured() bool {
	return g.createSession != nil
}

// CreateCheckoutSession opens a one-off payment session with inline prices.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if g.createSession == nil {
		return nil, ErrNotConfigured
	}

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Items))
	for _, item := range req.Items {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(req.Currency),
				UnitAmount: stripe.Int64(item.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.OrderID),
		LineItems:         lineItems,
		Metadata: map[string]string{
			MetadataOrderID: req.OrderID,
			MetadataUserID:  req.UserID,
		},
	}
	params.Context = ctx

	session, err := g.createSession(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session: %w", err)
	}
	if session == nil || session.ID == "" || session.URL == "" {
		return nil, fmt.Errorf("stripe checkout session: empty response")
	}
	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

// checkoutSessionObject is the part of a Checkout Session event payload we read.
type checkoutSessionObject struct {
	ID                string            `json:"id"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
	PaymentStatus     string            `json:"payment_status"`
	AmountTotal       *int64            `json:"amount_total"`
	Currency          *string           `json:"currency"`
}

// ParseEvent verifies the Stripe-Signature header and decodes checkout
// session events. Other event types are returned with only ID and Type set.
func (g *StripeGateway) ParseEvent(payload []byte, signature string) (*Event, error) {
	if g.webhookSecret == "" {
		return nil, ErrWebhookNotConfigured
	}
	if strings.TrimSpace(signature) == "" {
		return nil, ErrInvalidSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		log.Debug().Err(err).Msg("Stripe webhook signature rejected")
		return nil, ErrInvalidSignature
	}

	out := &Event{ID: event.ID, Type: string(event.Type)}
	switch out.Type {
	case EventCheckoutCompleted, EventCheckoutExpired, EventAsyncPaymentSucceeded, EventAsyncPaymentFailed:
		if event.Data == nil {
			return nil, fmt.Errorf("stripe event %s: missing data", event.ID)
		}
		var obj checkoutSessionObject
		if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
			return nil, fmt.Errorf("decode checkout.session: %w", err)
		}
		out.SessionID = obj.ID
		out.OrderID = obj.Metadata[MetadataOrderID]
		if out.OrderID == "" {
			out.OrderID = obj.ClientReferenceID
		}
		out.UserID = obj.Metadata[MetadataUserID]
		out.PaymentStatus = obj.PaymentStatus
		out.AmountTotal = obj.AmountTotal
		out.Currency = obj.Currency
	}
	return out, nil
}
