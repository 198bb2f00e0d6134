package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sileshop/backend/internal/domain"
	"github.com/sileshop/backend/internal/metrics"
	"github.com/sileshop/backend/pkg/payment"
)

// FulfillmentResult describes what one payment event changed.
type FulfillmentResult struct {
	// Applied is false for duplicate, unknown or ignored events.
	Applied bool
	Order   *domain.Order
	Slots   []*domain.Slot
}

// FulfillmentService turns verified payment events into paid orders and slots.
// It is the only code path that creates slots.
type FulfillmentService struct {
	orders OrderStore
	now    Clock
}

// NewFulfillmentService creates a FulfillmentService.
func NewFulfillmentService(orders OrderStore, now Clock) *FulfillmentService {
	return &FulfillmentService{orders: orders, now: clockOrDefault(now)}
}

// HandleEvent dispatches a verified provider event. Unhandled types are
// acknowledged without effect.
func (s *FulfillmentService) HandleEvent(ctx context.Context, ev *payment.Event) (*FulfillmentResult, error) {
	switch ev.Type {
	case payment.EventCheckoutCompleted:
		if ev.PaymentStatus == payment.PaymentStatusUnpaid {
			log.Info().Str("order_id", ev.OrderID).Str("event_id", ev.ID).Msg("Checkout completed, awaiting async payment")
			metrics.RecordFulfillment(ev.Type, metrics.ResultNoop)
			return &FulfillmentResult{}, nil
		}
		return s.HandlePaymentCompleted(ctx, ev)
	case payment.EventAsyncPaymentSucceeded:
		return s.HandlePaymentCompleted(ctx, ev)
	case payment.EventCheckoutExpired, payment.EventAsyncPaymentFailed:
		return s.HandleCheckoutExpired(ctx, ev)
	default:
		log.Debug().Str("type", ev.Type).Str("event_id", ev.ID).Msg("Payment event ignored (unhandled type)")
		metrics.RecordFulfillment(ev.Type, metrics.ResultNoop)
		return &FulfillmentResult{}, nil
	}
}

// HandlePaymentCompleted marks the referenced order paid and creates one slot
// per purchased unit. Redelivered events, already paid orders and unknown
// orders are no-ops.
func (s *FulfillmentService) HandlePaymentCompleted(ctx context.Context, ev *payment.Event) (*FulfillmentResult, error) {
	if ev.OrderID == "" {
		log.Warn().Str("event_id", ev.ID).Str("session_id", ev.SessionID).Msg("Payment event without order reference")
		metrics.RecordFulfillment(ev.Type, metrics.ResultNoop)
		return &FulfillmentResult{}, nil
	}

	order, slots, applied, err := s.orders.MarkPaid(ctx, domain.PaymentConfirmation{
		OrderID:     ev.OrderID,
		SessionID:   ev.SessionID,
		AmountTotal: ev.AmountTotal,
		Currency:    ev.Currency,
		PaidAt:      s.now(),
	})
	if err != nil {
		metrics.RecordFulfillment(ev.Type, metrics.ResultError)
		return nil, fmt.Errorf("fulfill order %s: %w", ev.OrderID, err)
	}
	if !applied {
		log.Info().Str("order_id", ev.OrderID).Str("event_id", ev.ID).Msg("Payment event already processed or order unknown")
		metrics.RecordFulfillment(ev.Type, metrics.ResultNoop)
		return &FulfillmentResult{}, nil
	}

	for _, item := range order.Items {
		metrics.RecordSlotsCreated(item.ProductID, item.Quantity)
	}
	metrics.RecordFulfillment(ev.Type, metrics.ResultOK)
	log.Info().
		Str("order_id", order.ID).
		Str("user_id", order.UserID).
		Int64("amount_total", order.AmountTotal).
		Str("currency", order.Currency).
		Int("slots", len(slots)).
		Msg("Order fulfilled")

	return &FulfillmentResult{Applied: true, Order: order, Slots: slots}, nil
}

// HandleCheckoutExpired moves an abandoned or unpaid pending order to failed.
func (s *FulfillmentService) HandleCheckoutExpired(ctx context.Context, ev *payment.Event) (*FulfillmentResult, error) {
	if ev.OrderID == "" {
		metrics.RecordFulfillment(ev.Type, metrics.ResultNoop)
		return &FulfillmentResult{}, nil
	}
	applied, err := s.orders.MarkFailed(ctx, ev.OrderID, s.now())
	if err != nil {
		metrics.RecordFulfillment(ev.Type, metrics.ResultError)
		return nil, fmt.Errorf("expire order %s: %w", ev.OrderID, err)
	}
	if !applied {
		metrics.RecordFulfillment(ev.Type, metrics.ResultNoop)
		return &FulfillmentResult{}, nil
	}
	log.Info().Str("order_id", ev.OrderID).Str("type", ev.Type).Msg("Order marked failed")
	metrics.RecordFulfillment(ev.Type, metrics.ResultOK)
	return &FulfillmentResult{Applied: true}, nil
}
