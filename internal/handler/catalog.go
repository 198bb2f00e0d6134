package handler

import (
	"net/http"

	"github.com/sileshop/backend/internal/catalog"
)

// CatalogHandler serves the public product and command listings.
type CatalogHandler struct {
	catalog *catalog.Catalog
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(c *catalog.Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: c}
}

// Products handles GET /api/products.
func (h *CatalogHandler) Products(w http.ResponseWriter, r *http.Request) {
	OK(w, envelope{"products": h.catalog.Products()})
}

// Commands handles GET /api/commands?category=&q=.
func (h *CatalogHandler) Commands(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	OK(w, envelope{
		"commands":   h.catalog.Commands(q.Get("category"), q.Get("q")),
		"categories": h.catalog.Categories(),
	})
}
