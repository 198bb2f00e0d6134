package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sileshop/backend/internal/catalog"
	"github.com/sileshop/backend/internal/config"
	"github.com/sileshop/backend/internal/server"
	"github.com/sileshop/backend/internal/service"
	"github.com/sileshop/backend/internal/ws"
	"github.com/sileshop/backend/pkg/crypto"
	"github.com/sileshop/backend/pkg/discord"
	"github.com/sileshop/backend/pkg/httpx"
	"github.com/sileshop/backend/pkg/payment"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.ValidateServe(); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServer(ctx, cfg)
	},
}

func runServer(ctx context.Context, cfg *config.Config) error {
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	cat, err := catalog.Load(cfg.ProductsFile, cfg.CommandsFile)
	if err != nil {
		return err
	}

	key := []byte(cfg.EncryptionKey)
	if len(key) == 0 {
		log.Warn().Msg("TOKEN_ENCRYPTION_KEY not set, deriving token key from SESSION_SECRET")
		key = crypto.DeriveKey(cfg.SessionSecret)
	}
	sealer, err := crypto.NewSealer(key)
	if err != nil {
		return fmt.Errorf("token sealer: %w", err)
	}

	outbound := httpx.NewClient(cfg.HTTPClientTimeout)
	discordClient := discord.NewClient(discord.Config{
		ClientID:     cfg.Discord.ClientID,
		ClientSecret: cfg.Discord.ClientSecret,
		RedirectURL:  cfg.Discord.RedirectURI,
	}, outbound)
	gateway := payment.NewStripeGateway(payment.StripeConfig{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
	}, outbound)
	if !gateway.Configured() {
		log.Warn().Msg("STRIPE_SECRET_KEY not set, checkout is disabled")
	}
	if cfg.BotAPIKey == "" {
		log.Warn().Msg("BOT_API_KEY not set, premium lookups will fail")
	}

	hub := ws.NewEntitlementHub()
	auth := service.NewAuthService(cfg.SessionSecret, service.DefaultSessionTTL, st.users, discordClient, sealer, nil)
	guilds := service.NewGuildService(discordClient, auth, cfg.GuildCacheTTL)
	slots := service.NewSlotService(st.slots, guilds, hub, nil)
	quotes := service.NewQuoteService(cat, cfg.Stripe.Currency)

	router := server.NewRouter(ctx, server.Options{
		CORSOrigins:       cfg.CORSOrigins,
		CookieSecure:      cfg.CookieSecure,
		BotAPIKey:         cfg.BotAPIKey,
		RateLimitRPS:      20,
		RateLimitBurst:    40,
		TrustProxyHeaders: cfg.TrustProxy,
	}, server.Services{
		Auth:        auth,
		Guilds:      guilds,
		Slots:       slots,
		Orders:      service.NewOrderHistory(st.orders),
		Quotes:      quotes,
		Checkout:    service.NewCheckoutService(quotes, st.orders, gateway, cfg.BaseURL, nil),
		Fulfillment: service.NewFulfillmentService(st.orders, nil),
		Catalog:     cat,
		Gateway:     gateway,
		Hub:         hub,
		DB:          st.health,
	})

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		// WriteTimeout must be 0 for the long-lived entitlement stream.
		IdleTimeout: 120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Str("base_url", cfg.BaseURL).Msg("Storefront listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return service.NewSweeper(st.slots, hub, cfg.ExpirySweepInterval, nil).Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
