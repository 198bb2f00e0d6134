// Package server assembles the HTTP router.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sileshop/backend/internal/catalog"
	"github.com/sileshop/backend/internal/handler"
	appMiddleware "github.com/sileshop/backend/internal/middleware"
	"github.com/sileshop/backend/internal/service"
	"github.com/sileshop/backend/internal/ws"
	"github.com/sileshop/backend/pkg/payment"
)

// Options are the router-level settings.
type Options struct {
	CORSOrigins  []string
	CookieSecure bool
	BotAPIKey    string
	// Per-IP limit on the browser-facing API; zero disables it.
	RateLimitRPS   float64
	RateLimitBurst int
	// Read the client IP from X-Real-IP / X-Forwarded-For. Only set this
	// behind a reverse proxy that overwrites those headers.
	TrustProxyHeaders bool
}

// Services are the collaborators the handlers are built from.
type Services struct {
	Auth        *service.AuthService
	Guilds      *service.GuildService
	Slots       *service.SlotService
	Orders      *service.OrderHistory
	Quotes      *service.QuoteService
	Checkout    *service.CheckoutService
	Fulfillment *service.FulfillmentService
	Catalog     *catalog.Catalog
	Gateway     payment.PaymentGateway
	Hub         *ws.EntitlementHub
	DB          handler.Pinger
}

// NewRouter builds the storefront router. ctx bounds the rate limiters'
// background cleanup.
func NewRouter(ctx context.Context, opts Options, svc Services) http.Handler {
	authHandler := handler.NewAuthHandler(svc.Auth, opts.CookieSecure)
	accountHandler := handler.NewAccountHandler(svc.Auth, svc.Guilds, svc.Slots, svc.Orders)
	catalogHandler := handler.NewCatalogHandler(svc.Catalog)
	checkoutHandler := handler.NewCheckoutHandler(svc.Quotes, svc.Checkout)
	webhookHandler := handler.NewWebhookHandler(svc.Gateway, svc.Fulfillment)
	premiumHandler := handler.NewPremiumHandler(svc.Slots)
	healthHandler := handler.NewHealthHandler(svc.DB)

	r := chi.NewRouter()

	// Global middleware
	r.Use(appMiddleware.Recovery)
	r.Use(appMiddleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", appMiddleware.BotKeyHeader, appMiddleware.RequestIDHeader},
		ExposedHeaders:   []string{appMiddleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Per-IP limit for browser traffic. The bot API and the Stripe webhook
	// come from a few shared addresses and are not limited.
	limit := func(next http.Handler) http.Handler { return next }
	if opts.RateLimitRPS > 0 {
		limit = appMiddleware.NewRateLimiter(ctx, opts.RateLimitRPS, opts.RateLimitBurst, opts.TrustProxyHeaders).Middleware()
	}

	r.Get("/health", healthHandler.Check)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/api/stripe/webhook", webhookHandler.Stripe)

	// Discord login
	r.Route("/auth", func(r chi.Router) {
		r.Use(appMiddleware.StrictRateLimiter(ctx, opts.TrustProxyHeaders))
		r.Get("/discord", authHandler.Login)
		r.Get("/discord/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
	})

	// Public API
	r.Group(func(r chi.Router) {
		r.Use(limit)
		r.Get("/api/products", catalogHandler.Products)
		r.Get("/api/commands", catalogHandler.Commands)
		r.Post("/api/quote", checkoutHandler.Quote)
		r.With(appMiddleware.OptionalAuth(svc.Auth)).Get("/api/me", accountHandler.Me)
	})

	// Session-protected API
	r.Group(func(r chi.Router) {
		r.Use(limit)
		r.Use(appMiddleware.Auth(svc.Auth))
		r.Get("/api/guilds", accountHandler.Guilds)
		r.Get("/api/slots", accountHandler.Slots)
		r.Post("/api/slots/{slotId}/activate", accountHandler.Activate)
		r.Get("/api/orders", accountHandler.Orders)
		r.Post("/api/stripe/checkout", checkoutHandler.Checkout)
	})

	// Bot API
	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.BotKey(opts.BotAPIKey))
		r.Get("/api/premium/stream", svc.Hub.Handle)
		r.Get("/api/premium/{guildId}", premiumHandler.Check)
	})

	return r
}
