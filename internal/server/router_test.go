package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sileshop/backend/internal/catalog"
	"github.com/sileshop/backend/internal/domain"
	"github.com/sileshop/backend/internal/repository/memstore"
	"github.com/sileshop/backend/internal/service"
	"github.com/sileshop/backend/internal/ws"
	"github.com/sileshop/backend/pkg/crypto"
	"github.com/sileshop/backend/pkg/discord"
	"github.com/sileshop/backend/pkg/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const botKey = "bot-secret"

var testNow = time.Date(2026, time.March, 31, 12, 0, 0, 0, time.UTC)

type fakeDiscord struct{}

func (fakeDiscord) AuthCodeURL(state string) string {
	return "https://discord.test/oauth2/authorize?state=" + state
}

func (fakeDiscord) Exchange(ctx context.Context, code string) (*discord.Token, error) {
	return &discord.Token{AccessToken: "at-" + code, TokenType: "Bearer", Scope: "identify email guilds"}, nil
}

func (fakeDiscord) FetchUser(ctx context.Context, accessToken string) (*discord.User, error) {
	return &discord.User{ID: "42", Username: "ferris", GlobalName: "Ferris", Avatar: "abc"}, nil
}

func (fakeDiscord) FetchGuilds(ctx context.Context, accessToken string) ([]discord.Guild, error) {
	return []discord.Guild{
		{ID: "111", Name: "Mine", Permissions: "8"},
		{ID: "222", Name: "Theirs", Permissions: "0"},
	}, nil
}

type harness struct {
	srv     *httptest.Server
	client  *http.Client
	gateway *payment.MockGateway
	hub     *ws.EntitlementHub
	store   *memstore.Store
}

func newHarness(t *testing.T, key string) *harness {
	t.Helper()
	return newHarnessWithOptions(t, Options{BotAPIKey: key})
}

func newHarnessWithOptions(t *testing.T, opts Options) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	clock := func() time.Time { return testNow }
	store := memstore.New()
	sealer, err := crypto.NewSealer(crypto.DeriveKey("session-secret"))
	require.NoError(t, err)
	cat, err := catalog.New([]domain.Product{
		{ID: "basic", Name: "Basic", MonthlyPriceCents: 500},
		{ID: "pro", Name: "Pro", MonthlyPriceCents: 1000},
	}, []domain.Command{{Name: "/play", Description: "Play a song", Category: "Music"}})
	require.NoError(t, err)

	gw := payment.NewMockGateway()
	hub := ws.NewEntitlementHub()
	auth := service.NewAuthService("session-secret", 0, store.Users(), fakeDiscord{}, sealer, clock)
	guilds := service.NewGuildService(fakeDiscord{}, auth, time.Minute)
	quotes := service.NewQuoteService(cat, "usd")

	router := NewRouter(ctx, opts, Services{
		Auth:        auth,
		Guilds:      guilds,
		Slots:       service.NewSlotService(store.Slots(), guilds, hub, clock),
		Orders:      service.NewOrderHistory(store.Orders()),
		Quotes:      quotes,
		Checkout:    service.NewCheckoutService(quotes, store.Orders(), gw, "https://shop.test", clock),
		Fulfillment: service.NewFulfillmentService(store.Orders(), clock),
		Catalog:     cat,
		Gateway:     gw,
		Hub:         hub,
		DB:          store,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &harness{srv: srv, client: client, gateway: gw, hub: hub, store: store}
}

func (h *harness) do(t *testing.T, method, path string, body interface{}, header http.Header) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, h.srv.URL+path, &buf)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := h.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	resp, err := h.client.Get(h.srv.URL + "/auth/discord")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	resp, err = h.client.Get(h.srv.URL + "/auth/discord/callback?code=abc&state=" + state)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/account", resp.Header.Get("Location"))
}

func botHeader(key string) http.Header {
	return http.Header{http.CanonicalHeaderKey("x-api-key"): []string{key}}
}

func TestPublicEndpoints(t *testing.T) {
	h := newHarness(t, botKey)

	status, body := h.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["database"])

	status, body = h.do(t, http.MethodGet, "/api/products", nil, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["ok"])
	assert.Len(t, body["products"], 2)

	status, body = h.do(t, http.MethodGet, "/api/commands?category=Music", nil, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["commands"], 1)

	status, body = h.do(t, http.MethodPost, "/api/quote", map[string]interface{}{
		"items": []map[string]interface{}{
			{"productId": "pro", "months": 3, "quantity": 2},
			{"productId": "unknown", "months": 1, "quantity": 1},
		},
	}, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(5700), body["totalCents"])
	assert.Equal(t, "usd", body["currency"])
	assert.Len(t, body["lines"], 1)

	status, body = h.do(t, http.MethodGet, "/api/me", nil, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Nil(t, body["user"])
}

func TestCallbackRejectsBadState(t *testing.T) {
	h := newHarness(t, botKey)

	resp, err := h.client.Get(h.srv.URL + "/auth/discord/callback?code=abc&state=forged")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = h.client.Get(h.srv.URL + "/auth/discord/callback?state=forged")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	h := newHarness(t, botKey)

	for _, path := range []string{"/api/guilds", "/api/slots", "/api/orders"} {
		status, body := h.do(t, http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, status, path)
		assert.Equal(t, domain.CodeAuthRequired, body["error"], path)
	}
	status, body := h.do(t, http.MethodPost, "/api/stripe/checkout", map[string]interface{}{"items": []interface{}{}}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, false, body["ok"])
}

func TestPurchaseActivateAndCheck(t *testing.T) {
	h := newHarness(t, botKey)
	h.login(t)

	status, body := h.do(t, http.MethodGet, "/api/me", nil, nil)
	require.Equal(t, http.StatusOK, status)
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "42", user["id"])
	assert.Equal(t, "ferris", user["username"])

	status, body = h.do(t, http.MethodGet, "/api/guilds", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["guilds"], 1)

	status, body = h.do(t, http.MethodPost, "/api/stripe/checkout", map[string]interface{}{}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, domain.CodeEmptyCart, body["error"])

	status, body = h.do(t, http.MethodPost, "/api/stripe/checkout", map[string]interface{}{
		"items": []map[string]interface{}{{"productId": "pro", "months": 1, "quantity": 2}},
	}, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "https://checkout.example.com/pay/cs_test_1", body["url"])

	req, ok := h.gateway.LastRequest()
	require.True(t, ok)
	h.gateway.Events["sig-ok"] = &payment.Event{
		ID:        "evt_1",
		Type:      payment.EventCheckoutCompleted,
		SessionID: "cs_test_1",
		OrderID:   req.OrderID,
	}

	// Redelivery must not create more slots.
	for i := 0; i < 2; i++ {
		status, body = h.do(t, http.MethodPost, "/api/stripe/webhook", map[string]string{"id": "evt_1"},
			http.Header{"Stripe-Signature": []string{"sig-ok"}})
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, true, body["received"])
	}

	status, body = h.do(t, http.MethodPost, "/api/stripe/webhook", map[string]string{}, http.Header{"Stripe-Signature": []string{"forged"}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, domain.CodeInvalidSignature, body["error"])

	status, body = h.do(t, http.MethodGet, "/api/orders", nil, nil)
	require.Equal(t, http.StatusOK, status)
	orders := body["orders"].([]interface{})
	require.Len(t, orders, 1)
	assert.Equal(t, domain.OrderPaid, orders[0].(map[string]interface{})["status"])

	status, body = h.do(t, http.MethodGet, "/api/slots", nil, nil)
	require.Equal(t, http.StatusOK, status)
	slots := body["slots"].([]interface{})
	require.Len(t, slots, 2)
	slotID := slots[0].(map[string]interface{})["id"].(string)

	status, body = h.do(t, http.MethodPost, "/api/slots/"+slotID+"/activate", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, domain.CodeMissingGuildID, body["error"])

	status, body = h.do(t, http.MethodPost, "/api/slots/"+slotID+"/activate", map[string]string{"guildId": "222"}, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, domain.CodeNoGuildPermission, body["error"])

	status, body = h.do(t, http.MethodPost, "/api/slots/"+slotID+"/activate", map[string]string{"guildId": "111"}, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "111", body["slot"].(map[string]interface{})["guildId"])

	status, body = h.do(t, http.MethodPost, "/api/slots/"+slotID+"/activate", map[string]string{"guildId": "111"}, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, domain.CodeSlotAlreadyAssigned, body["error"])

	status, body = h.do(t, http.MethodPost, "/api/slots/missing/activate", map[string]string{"guildId": "111"}, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, domain.CodeSlotNotFound, body["error"])

	status, body = h.do(t, http.MethodGet, "/api/premium/111?productId=pro", nil, botHeader(botKey))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["active"])
	assert.Equal(t, slotID, body["slot"].(map[string]interface{})["id"])

	status, body = h.do(t, http.MethodGet, "/api/premium/111?productId=basic", nil, botHeader(botKey))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["active"])
	assert.Nil(t, body["slot"])

	status, _ = h.do(t, http.MethodPost, "/auth/logout", nil, nil)
	assert.Equal(t, http.StatusOK, status)
	status, body = h.do(t, http.MethodGet, "/api/me", nil, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Nil(t, body["user"])
}

func TestCheckoutWithoutProvider(t *testing.T) {
	h := newHarness(t, botKey)
	h.gateway.Disabled = true
	h.login(t)

	status, body := h.do(t, http.MethodPost, "/api/stripe/checkout", map[string]interface{}{
		"items": []map[string]interface{}{{"productId": "pro"}},
	}, nil)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, domain.CodeStripeNotConfigured, body["error"])

	status, body = h.do(t, http.MethodGet, "/api/orders", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["orders"])
}

func TestPremiumKeyChecks(t *testing.T) {
	h := newHarness(t, botKey)

	status, body := h.do(t, http.MethodGet, "/api/premium/111?productId=pro", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, domain.CodeInvalidAPIKey, body["error"])

	status, body = h.do(t, http.MethodGet, "/api/premium/111", nil, botHeader(botKey))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, domain.CodeMissingProductID, body["error"])

	unset := newHarness(t, "")
	status, body = unset.do(t, http.MethodGet, "/api/premium/111?productId=pro", nil, botHeader("anything"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, domain.CodeBotAPIKeyNotSet, body["error"])
}

func TestRateLimitSkipsBotAndWebhookRoutes(t *testing.T) {
	h := newHarnessWithOptions(t, Options{BotAPIKey: botKey, RateLimitRPS: 0.001, RateLimitBurst: 1})

	status, _ := h.do(t, http.MethodGet, "/api/products", nil, nil)
	assert.Equal(t, http.StatusOK, status)
	status, body := h.do(t, http.MethodGet, "/api/products", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, domain.CodeRateLimited, body["error"])

	for i := 0; i < 5; i++ {
		status, _ = h.do(t, http.MethodGet, "/api/premium/111?productId=pro", nil, botHeader(botKey))
		assert.Equal(t, http.StatusOK, status)
		status, _ = h.do(t, http.MethodPost, "/api/stripe/webhook", map[string]string{}, nil)
		assert.NotEqual(t, http.StatusTooManyRequests, status)
	}
}

func TestEntitlementStreamReceivesActivation(t *testing.T) {
	h := newHarness(t, botKey)
	h.login(t)

	h.store.Slots().Insert(&domain.Slot{
		ID:          "slot-1",
		UserID:      userIDOf(t, h),
		ProductID:   "pro",
		ProductName: "Pro",
		Months:      1,
		StartsAt:    testNow.Add(-time.Hour),
		ExpiresAt:   testNow.Add(24 * time.Hour),
		Status:      domain.SlotActive,
		CreatedAt:   testNow.Add(-time.Hour),
		UpdatedAt:   testNow.Add(-time.Hour),
	})

	wsURL := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/api/premium/stream?guildId=111"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, botHeader(botKey))
	require.NoError(t, err)
	defer conn.Close()
	resp.Body.Close()
	require.Eventually(t, func() bool { return h.hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	status, _ := h.do(t, http.MethodPost, "/api/slots/slot-1/activate", map[string]string{"guildId": "111"}, nil)
	require.Equal(t, http.StatusOK, status)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev domain.SlotEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, domain.EventSlotActivated, ev.Type)
	assert.Equal(t, "slot-1", ev.SlotID)
	assert.Equal(t, "111", ev.GuildID)
}

func userIDOf(t *testing.T, h *harness) string {
	t.Helper()
	u, err := h.store.Users().FindByDiscordID(context.Background(), "42")
	require.NoError(t, err)
	require.NotNil(t, u)
	return u.ID
}
