package payment

import (
	"context"
	"fmt"
	"sync"
)

// MockGateway is an in-memory PaymentGateway for tests. Events are passed
// through ParseEvent unverified via the Events map, keyed by signature.
type MockGateway struct {
	mu       sync.Mutex
	Requests []CheckoutRequest
	// Err, when set, fails CreateCheckoutSession.
	Err error
	// Disabled makes the gateway report itself unconfigured.
	Disabled bool
	Events   map[string]*Event
	n        int
}

func NewMockGateway() *MockGateway {
	return &MockGateway{Events: make(map[string]*Event)}
}

func (g *MockGateway) Configured() bool {
	return !g.Disabled
}

func (g *MockGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Disabled {
		return nil, ErrNotConfigured
	}
	g.Requests = append(g.Requests, req)
	if g.Err != nil {
		return nil, g.Err
	}
	g.n++
	id := fmt.Sprintf("cs_test_%d", g.n)
	return &CheckoutSession{ID: id, URL: "https://checkout.example.com/pay/" + id}, nil
}

func (g *MockGateway) ParseEvent(payload []byte, signature string) (*Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ev, ok := g.Events[signature]
	if !ok {
		return nil, ErrInvalidSignature
	}
	return ev, nil
}

// LastRequest returns the most recent checkout request.
func (g *MockGateway) LastRequest() (CheckoutRequest, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.Requests) == 0 {
		return CheckoutRequest{}, false
	}
	return g.Requests[len(g.Requests)-1], true
}
