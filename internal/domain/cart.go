package domain

// CartLine is one client-supplied cart entry. Values are untrusted: the
// product is re-resolved against the catalog and months and quantity are
// clamped into range before pricing.
type CartLine struct {
	ProductID string `json:"productId"`
	Months    int    `json:"months"`
	Quantity  int    `json:"quantity"`
}

// Upper bounds applied by Normalized.
const (
	MaxLineMonths   = 120
	MaxLineQuantity = 100
)

// Normalized returns a copy with months clamped to [1, MaxLineMonths] and
// quantity to [1, MaxLineQuantity].
func (l CartLine) Normalized() CartLine {
	l.Months = clamp(l.Months, 1, MaxLineMonths)
	l.Quantity = clamp(l.Quantity, 1, MaxLineQuantity)
	return l
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CartRequest is the body of POST /api/quote and POST /api/stripe/checkout.
type CartRequest struct {
	Items []CartLine `json:"items" validate:"max=50"`
}

// QuotedLine is a cart line priced against the catalog.
type QuotedLine struct {
	ProductID       string `json:"productId"`
	Name            string `json:"name"`
	Months          int    `json:"months"`
	Quantity        int    `json:"quantity"`
	UnitAmountCents int64  `json:"unitAmountCents"`
	LineAmountCents int64  `json:"lineAmountCents"`
}

// Quote is a priced cart. TotalCents is the sum of the already rounded line amounts.
type Quote struct {
	Lines      []QuotedLine `json:"lines"`
	TotalCents int64        `json:"totalCents"`
	Currency   string       `json:"currency"`
}

// QuoteResponse is the API response for POST /api/quote.
type QuoteResponse struct {
	OK         bool         `json:"ok"`
	TotalCents int64        `json:"totalCents"`
	Lines      []QuotedLine `json:"lines"`
	Currency   string       `json:"currency"`
}

// CheckoutResult is returned once the payment provider has issued a session.
type CheckoutResult struct {
	OrderID   string `json:"orderId"`
	SessionID string `json:"-"`
	URL       string `json:"url"`
}
