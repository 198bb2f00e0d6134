package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sileshop/backend/internal/domain"
	"github.com/sileshop/backend/internal/service"
)

// PremiumHandler answers the bot's entitlement lookups.
type PremiumHandler struct {
	slots *service.SlotService
}

// NewPremiumHandler creates a new PremiumHandler.
func NewPremiumHandler(slots *service.SlotService) *PremiumHandler {
	return &PremiumHandler{slots: slots}
}

// Check handles GET /api/premium/{guildId}?productId=.
func (h *PremiumHandler) Check(w http.ResponseWriter, r *http.Request) {
	productID := strings.TrimSpace(r.URL.Query().Get("productId"))
	if productID == "" {
		Error(w, r, domain.ErrBadRequest(domain.CodeMissingProductID))
		return
	}

	slot, active, err := h.slots.CheckEntitlement(r.Context(), chi.URLParam(r, "guildId"), productID)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusOK, domain.EntitlementResponse{OK: true, Active: active, Slot: slot})
}
