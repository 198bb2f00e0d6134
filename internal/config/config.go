package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port          int      `env:"PORT" envDefault:"5177"`
	BaseURL       string   `env:"BASE_URL" envDefault:"http://localhost:5177"`
	SessionSecret string   `env:"SESSION_SECRET"`
	CookieSecure  bool     `env:"COOKIE_SECURE" envDefault:"false"`
	DatabaseURL   string   `env:"DATABASE_URL"`
	EncryptionKey string   `env:"TOKEN_ENCRYPTION_KEY"`
	CORSOrigins   []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5177,http://localhost:3000,http://localhost:5173"`
	BotAPIKey     string   `env:"BOT_API_KEY"`
	TrustProxy    bool     `env:"TRUST_PROXY" envDefault:"false"`

	ProductsFile string `env:"PRODUCTS_FILE" envDefault:"data/products.json"`
	CommandsFile string `env:"COMMANDS_FILE" envDefault:"data/commands.json"`

	HTTPClientTimeout   time.Duration `env:"HTTP_CLIENT_TIMEOUT" envDefault:"10s"`
	GuildCacheTTL       time.Duration `env:"GUILD_CACHE_TTL" envDefault:"60s"`
	ExpirySweepInterval time.Duration `env:"EXPIRY_SWEEP_INTERVAL" envDefault:"0s"`

	Discord Discord `envPrefix:"DISCORD_"`
	Stripe  Stripe  `envPrefix:"STRIPE_"`
	Log     Log
}

type Discord struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURI  string `env:"REDIRECT_URI"`
}

type Stripe struct {
	SecretKey     string `env:"SECRET_KEY"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
	Currency      string `env:"CURRENCY" envDefault:"usd"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load reads a local .env file when present and then parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse reads configuration from the process environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.Stripe.Currency = strings.ToLower(strings.TrimSpace(cfg.Stripe.Currency))
	origins := cfg.CORSOrigins[:0]
	for _, o := range cfg.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	cfg.CORSOrigins = origins
	if cfg.Discord.RedirectURI == "" {
		cfg.Discord.RedirectURI = cfg.BaseURL + "/auth/discord/callback"
	}

	if cfg.EncryptionKey != "" && len(cfg.EncryptionKey) != 32 {
		return nil, fmt.Errorf("TOKEN_ENCRYPTION_KEY must be exactly 32 bytes, got %d", len(cfg.EncryptionKey))
	}
	return cfg, nil
}

// ValidateServe checks the settings the HTTP server cannot start without.
func (c *Config) ValidateServe() error {
	if c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT %d out of range", c.Port)
	}
	return nil
}

// UseMemoryStore reports whether the in-memory development store is used.
func (c *Config) UseMemoryStore() bool {
	return strings.TrimSpace(c.DatabaseURL) == ""
}
