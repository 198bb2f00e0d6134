package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sileshop/backend/internal/domain"
	"github.com/sileshop/backend/internal/metrics"
	"github.com/sileshop/backend/pkg/payment"
)

// CheckoutService turns a cart into a pending order and a provider session.
type CheckoutService struct {
	quotes  *QuoteService
	orders  OrderStore
	payment payment.PaymentGateway
	baseURL string
	now     Clock
}

// NewCheckoutService creates a CheckoutService. Redirect targets are built
// from baseURL.
func NewCheckoutService(quotes *QuoteService, orders OrderStore, gateway payment.PaymentGateway, baseURL string, now Clock) *CheckoutService {
	return &CheckoutService{
		quotes:  quotes,
		orders:  orders,
		payment: gateway,
		baseURL: baseURL,
		now:     clockOrDefault(now),
	}
}

// SuccessURL is where the provider sends the buyer after paying.
func (s *CheckoutService) SuccessURL() string {
	return s.baseURL + "/success.html?session_id={CHECKOUT_SESSION_ID}"
}

// CancelURL is where the provider sends the buyer after abandoning.
func (s *CheckoutService) CancelURL() string {
	return s.baseURL + "/cancel.html"
}

// Initiate prices lines, records a pending order and opens a provider
// session for it. A provider failure leaves the order pending.
func (s *CheckoutService) Initiate(ctx context.Context, userID string, lines []domain.CartLine) (*domain.CheckoutResult, error) {
	if !s.payment.Configured() {
		metrics.RecordCheckout(domain.CodeStripeNotConfigured)
		return nil, domain.ErrInternal(domain.CodeStripeNotConfigured, payment.ErrNotConfigured)
	}
	if len(lines) == 0 {
		metrics.RecordCheckout(domain.CodeEmptyCart)
		return nil, domain.ErrBadRequest(domain.CodeEmptyCart)
	}

	quote, err := s.quotes.Build(ctx, lines)
	if err != nil {
		metrics.RecordCheckout(domain.ErrorCode(err))
		return nil, err
	}
	if len(quote.Lines) == 0 {
		metrics.RecordCheckout(domain.CodeInvalidItems)
		return nil, domain.ErrBadRequest(domain.CodeInvalidItems)
	}

	now := s.now()
	order := &domain.Order{
		ID:          domain.NewID(),
		UserID:      userID,
		SessionID:   domain.NewPendingSessionID(),
		AmountTotal: quote.TotalCents,
		Currency:    quote.Currency,
		Items:       quote.Lines,
		Status:      domain.OrderPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		metrics.RecordCheckout(metrics.ResultError)
		return nil, domain.ErrInternal(domain.CodeInternal, err)
	}

	items := make([]payment.LineItem, 0, len(order.Items))
	for _, line := range order.Items {
		items = append(items, payment.LineItem{
			Name:       lineItemName(line),
			UnitAmount: line.UnitAmountCents,
			Quantity:   int64(line.Quantity),
		})
	}

	session, err := s.payment.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		OrderID:    order.ID,
		UserID:     userID,
		Currency:   order.Currency,
		Items:      items,
		SuccessURL: s.SuccessURL(),
		CancelURL:  s.CancelURL(),
	})
	if err != nil {
		if errors.Is(err, payment.ErrNotConfigured) {
			metrics.RecordCheckout(domain.CodeStripeNotConfigured)
			return nil, domain.ErrInternal(domain.CodeStripeNotConfigured, err)
		}
		log.Error().Err(err).Str("order_id", order.ID).Msg("Checkout session creation failed")
		metrics.RecordCheckout(domain.CodeCheckoutFailed)
		return nil, domain.ErrUnavailable(domain.CodeCheckoutFailed, err)
	}

	if err := s.orders.UpdateSessionID(ctx, order.ID, session.ID, s.now()); err != nil {
		log.Error().Err(err).Str("order_id", order.ID).Str("session_id", session.ID).Msg("Failed to record checkout session")
		metrics.RecordCheckout(domain.CodeCheckoutFailed)
		return nil, domain.ErrInternal(domain.CodeCheckoutFailed, err)
	}

	log.Info().
		Str("order_id", order.ID).
		Str("user_id", userID).
		Int64("amount_total", order.AmountTotal).
		Int("units", order.UnitCount()).
		Msg("Checkout session created")
	metrics.RecordCheckout(metrics.ResultOK)

	return &domain.CheckoutResult{OrderID: order.ID, SessionID: session.ID, URL: session.URL}, nil
}

func lineItemName(line domain.QuotedLine) string {
	unit := "months"
	if line.Months == 1 {
		unit = "month"
	}
	return fmt.Sprintf("%s (%d %s)", line.Name, line.Months, unit)
}
