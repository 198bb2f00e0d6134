package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sileshop/backend/internal/config"
	"github.com/sileshop/backend/internal/handler"
	"github.com/sileshop/backend/internal/repository"
	"github.com/sileshop/backend/internal/repository/memstore"
	"github.com/sileshop/backend/internal/service"
)

// stores bundles the persistence backends chosen by configuration.
type stores struct {
	users  service.UserStore
	orders service.OrderStore
	slots  service.SlotStore
	health handler.Pinger
	close  func()
}

// openStores connects to Postgres and applies the schema, or falls back to
// the in-memory store when no DATABASE_URL is set.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.UseMemoryStore() {
		log.Warn().Msg("DATABASE_URL not set, using in-memory store (data is lost on restart)")
		mem := memstore.New()
		return &stores{
			users:  mem.Users(),
			orders: mem.Orders(),
			slots:  mem.Slots(),
			health: mem,
			close:  func() {},
		}, nil
	}

	db, err := repository.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if err := repository.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	log.Info().Msg("Database connected and migrated")

	return &stores{
		users:  repository.NewUserRepository(db),
		orders: repository.NewOrderRepository(db),
		slots:  repository.NewSlotRepository(db),
		health: repository.NewHealth(db),
		close:  db.Close,
	}, nil
}
