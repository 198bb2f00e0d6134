package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sileshop/backend/internal/domain"
	"github.com/sileshop/backend/internal/service"
)

// AccountHandler serves the signed-in user's profile, guilds, slots and orders.
type AccountHandler struct {
	auth   *service.AuthService
	guilds *service.GuildService
	slots  *service.SlotService
	orders *service.OrderHistory
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(auth *service.AuthService, guilds *service.GuildService, slots *service.SlotService, orders *service.OrderHistory) *AccountHandler {
	return &AccountHandler{auth: auth, guilds: guilds, slots: slots, orders: orders}
}

// Me handles GET /api/me. Anonymous callers get a null user.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	id := userID(r)
	if id == "" {
		OK(w, envelope{"user": nil})
		return
	}
	user, err := h.auth.CurrentUser(r.Context(), id)
	if err != nil {
		Error(w, r, err)
		return
	}
	if user == nil {
		OK(w, envelope{"user": nil})
		return
	}
	OK(w, envelope{"user": user})
}

// Guilds handles GET /api/guilds.
func (h *AccountHandler) Guilds(w http.ResponseWriter, r *http.Request) {
	guilds, err := h.guilds.ListManageable(r.Context(), userID(r))
	if err != nil {
		Error(w, r, err)
		return
	}
	if guilds == nil {
		guilds = []domain.Guild{}
	}
	OK(w, envelope{"guilds": guilds})
}

// Slots handles GET /api/slots.
func (h *AccountHandler) Slots(w http.ResponseWriter, r *http.Request) {
	slots, err := h.slots.List(r.Context(), userID(r))
	if err != nil {
		Error(w, r, err)
		return
	}
	if slots == nil {
		slots = []*domain.Slot{}
	}
	OK(w, envelope{"slots": slots})
}

// Orders handles GET /api/orders.
func (h *AccountHandler) Orders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context(), userID(r))
	if err != nil {
		Error(w, r, err)
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	OK(w, envelope{"orders": orders})
}

// Activate handles POST /api/slots/{slotId}/activate.
func (h *AccountHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req domain.ActivateSlotRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}

	slot, err := h.slots.Activate(r.Context(), userID(r), chi.URLParam(r, "slotId"), req.GuildID)
	if err != nil {
		Error(w, r, err)
		return
	}
	OK(w, envelope{"slot": slot})
}
