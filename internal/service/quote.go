package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sileshop/backend/internal/domain"
)

// ProductCatalog resolves product ids.
type ProductCatalog interface {
	Product(id string) (domain.Product, bool)
}

// QuoteService prices carts against the catalog.
type QuoteService struct {
	catalog  ProductCatalog
	currency string
	validate *validator.Validate
}

// NewQuoteService creates a QuoteService quoting in currency.
func NewQuoteService(catalog ProductCatalog, currency string) *QuoteService {
	return &QuoteService{
		catalog:  catalog,
		currency: strings.ToLower(currency),
		validate: validator.New(),
	}
}

// Currency is the single currency all quotes use.
func (s *QuoteService) Currency() string {
	return s.currency
}

// Build prices lines. Lines naming no known product are dropped, months and
// quantity are clamped into range, and the total is the sum of the
// rounded line amounts.
func (s *QuoteService) Build(ctx context.Context, lines []domain.CartLine) (*domain.Quote, error) {
	if err := s.validate.Struct(domain.CartRequest{Items: lines}); err != nil {
		return nil, domain.ErrBadRequest(domain.CodeInvalidRequest)
	}

	quote := &domain.Quote{
		Lines:    make([]domain.QuotedLine, 0, len(lines)),
		Currency: s.currency,
	}
	for _, raw := range lines {
		line := raw.Normalized()
		product, ok := s.catalog.Product(strings.TrimSpace(line.ProductID))
		if !ok {
			continue
		}
		unit := domain.PriceForMonths(product.MonthlyPriceCents, line.Months)
		amount := unit * int64(line.Quantity)
		quote.Lines = append(quote.Lines, domain.QuotedLine{
			ProductID:       product.ID,
			Name:            product.Name,
			Months:          line.Months,
			Quantity:        line.Quantity,
			UnitAmountCents: unit,
			LineAmountCents: amount,
		})
		quote.TotalCents += amount
	}
	return quote, nil
}
