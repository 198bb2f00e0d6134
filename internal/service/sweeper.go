package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sileshop/backend/internal/metrics"
)

// Sweeper periodically flips ended slots to expired. Entitlement checks do
// not depend on it; it keeps stored statuses tidy and notifies bots.
type Sweeper struct {
	slots    SlotStore
	notifier SlotNotifier
	interval time.Duration
	now      Clock
}

// NewSweeper creates a Sweeper. notifier may be nil.
func NewSweeper(slots SlotStore, notifier SlotNotifier, interval time.Duration, now Clock) *Sweeper {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Sweeper{
		slots:    slots,
		notifier: notifier,
		interval: interval,
		now:      clockOrDefault(now),
	}
}

// RunOnce expires every ended active slot and returns how many changed.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	expired, err := s.slots.ExpireStale(ctx, s.now())
	if err != nil {
		return 0, err
	}
	metrics.RecordSlotsExpired(len(expired))
	publishExpired(s.notifier, expired)
	if len(expired) > 0 {
		log.Info().Int("count", len(expired)).Msg("Expired slots swept")
	}
	return len(expired), nil
}

// Run sweeps immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		<-ctx.Done()
		return nil
	}

	s.sweep(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("Expiry sweep failed")
	}
}
