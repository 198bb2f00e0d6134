package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/sileshop/backend/internal/domain"
	"github.com/sileshop/backend/internal/logging"
	"github.com/sileshop/backend/internal/service"
	"github.com/sileshop/backend/pkg/payment"
)

// maxWebhookBytes bounds provider event payloads.
const maxWebhookBytes = 1 << 20

// WebhookHandler receives payment provider events.
type WebhookHandler struct {
	gateway     payment.PaymentGateway
	fulfillment *service.FulfillmentService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(gateway payment.PaymentGateway, fulfillment *service.FulfillmentService) *WebhookHandler {
	return &WebhookHandler{gateway: gateway, fulfillment: fulfillment}
}

// Stripe handles POST /api/stripe/webhook. The body must be read raw for
// the signature check. Failures after verification answer 500 so the
// provider redelivers.
func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		Error(w, r, domain.ErrBadRequest(domain.CodeInvalidBody))
		return
	}

	ev, err := h.gateway.ParseEvent(body, r.Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
	case errors.Is(err, payment.ErrWebhookNotConfigured):
		Error(w, r, domain.ErrInternal(domain.CodeWebhookNotConfigured, err))
		return
	case errors.Is(err, payment.ErrInvalidSignature):
		logger.Warn().Msg("Webhook signature verification failed")
		Error(w, r, domain.ErrBadRequest(domain.CodeInvalidSignature))
		return
	default:
		logger.Warn().Err(err).Msg("Webhook payload rejected")
		Error(w, r, domain.ErrBadRequest(domain.CodeInvalidBody))
		return
	}

	if _, err := h.fulfillment.HandleEvent(r.Context(), ev); err != nil {
		logger.Error().Err(err).Str("event_id", ev.ID).Str("type", ev.Type).Msg("Webhook handler failed")
		Error(w, r, domain.ErrInternal(domain.CodeWebhookFailed, err))
		return
	}

	JSON(w, http.StatusOK, envelope{"received": true})
}
