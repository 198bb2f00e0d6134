package handler

import (
	"net/http"

	"github.com/sileshop/backend/internal/domain"
	"github.com/sileshop/backend/internal/service"
)

// CheckoutHandler prices carts and starts provider checkouts.
type CheckoutHandler struct {
	quotes   *service.QuoteService
	checkout *service.CheckoutService
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(quotes *service.QuoteService, checkout *service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{quotes: quotes, checkout: checkout}
}

// Quote handles POST /api/quote.
func (h *CheckoutHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req domain.CartRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}

	quote, err := h.quotes.Build(r.Context(), req.Items)
	if err != nil {
		if _, ok := domain.AsAppError(err); !ok {
			err = domain.ErrInternal(domain.CodeQuoteFailed, err)
		}
		Error(w, r, err)
		return
	}

	JSON(w, http.StatusOK, domain.QuoteResponse{
		OK:         true,
		TotalCents: quote.TotalCents,
		Lines:      quote.Lines,
		Currency:   quote.Currency,
	})
}

// Checkout handles POST /api/stripe/checkout.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req domain.CartRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}

	res, err := h.checkout.Initiate(r.Context(), userID(r), req.Items)
	if err != nil {
		Error(w, r, err)
		return
	}
	OK(w, envelope{"url": res.URL})
}
