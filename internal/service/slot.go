package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/sileshop/backend/internal/domain"
	"github.com/sileshop/backend/internal/metrics"
)

// GuildAuthorizer decides whether a user administers a guild right now.
type GuildAuthorizer interface {
	CanAdminister(ctx context.Context, userID, guildID string) (bool, error)
}

// SlotService owns slot activation, expiry and the bot entitlement query.
type SlotService struct {
	slots    SlotStore
	guilds   GuildAuthorizer
	notifier SlotNotifier
	now      Clock
	validate *validator.Validate
}

// NewSlotService creates a SlotService. notifier may be nil.
func NewSlotService(slots SlotStore, guilds GuildAuthorizer, notifier SlotNotifier, now Clock) *SlotService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &SlotService{
		slots:    slots,
		guilds:   guilds,
		notifier: notifier,
		now:      clockOrDefault(now),
		validate: validator.New(),
	}
}

// List returns the user's slots, newest first, after flipping ended ones to
// expired.
func (s *SlotService) List(ctx context.Context, userID string) ([]*domain.Slot, error) {
	expired, err := s.slots.ExpireStaleForUser(ctx, userID, s.now())
	if err != nil {
		return nil, domain.ErrInternal(domain.CodeInternal, err)
	}
	metrics.RecordSlotsExpired(len(expired))
	publishExpired(s.notifier, expired)

	slots, err := s.slots.ListByUser(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal(domain.CodeInternal, err)
	}
	return slots, nil
}

// Activate binds one of the user's slots to a guild they administer. The
// guild check runs before any write, and the binding itself is a single
// conditional update.
func (s *SlotService) Activate(ctx context.Context, userID, slotID, guildID string) (*domain.Slot, error) {
	slot, err := s.activate(ctx, userID, slotID, strings.TrimSpace(guildID))
	if err != nil {
		code := domain.ErrorCode(err)
		if code == "" {
			code = metrics.ResultError
		}
		metrics.RecordActivation(code)
		return nil, err
	}
	metrics.RecordActivation(metrics.ResultOK)
	return slot, nil
}

func (s *SlotService) activate(ctx context.Context, userID, slotID, guildID string) (*domain.Slot, error) {
	if guildID == "" {
		return nil, domain.ErrBadRequest(domain.CodeMissingGuildID)
	}
	if err := s.validate.Struct(domain.ActivateSlotRequest{GuildID: guildID}); err != nil {
		return nil, domain.ErrBadRequest(domain.CodeInvalidRequest)
	}

	ok, err := s.guilds.CanAdminister(ctx, userID, guildID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrForbidden(domain.CodeNoGuildPermission)
	}

	now := s.now()
	slot, err := s.slots.FindForUser(ctx, slotID, userID)
	if err != nil {
		return nil, domain.ErrInternal(domain.CodeInternal, err)
	}
	if err := s.checkAssignable(ctx, slot, now); err != nil {
		return nil, err
	}

	updated, err := s.slots.AssignGuild(ctx, slotID, userID, guildID, now)
	if err != nil {
		return nil, domain.ErrInternal(domain.CodeInternal, err)
	}
	if updated == nil {
		// Lost a race with another activation or with expiry; report why.
		current, err := s.slots.FindForUser(ctx, slotID, userID)
		if err != nil {
			return nil, domain.ErrInternal(domain.CodeInternal, err)
		}
		if err := s.checkAssignable(ctx, current, now); err != nil {
			return nil, err
		}
		return nil, domain.ErrConflict(domain.CodeSlotAlreadyAssigned)
	}

	log.Info().
		Str("slot_id", updated.ID).
		Str("user_id", userID).
		Str("guild_id", guildID).
		Str("product_id", updated.ProductID).
		Msg("Slot activated")
	s.notifier.Publish(domain.SlotEvent{
		Type:      domain.EventSlotActivated,
		SlotID:    updated.ID,
		GuildID:   guildID,
		ProductID: updated.ProductID,
		ExpiresAt: updated.ExpiresAt,
	})
	return updated, nil
}

// checkAssignable classifies why slot cannot take a guild, flipping it to
// expired when its term has ended.
func (s *SlotService) checkAssignable(ctx context.Context, slot *domain.Slot, now time.Time) error {
	if slot == nil {
		return domain.ErrNotFound(domain.CodeSlotNotFound)
	}
	if slot.Status != domain.SlotActive {
		return domain.ErrBadRequest(domain.CodeSlotNotActive)
	}
	if slot.ExpiredAt(now) {
		expired, err := s.slots.MarkExpired(ctx, slot.ID, now)
		if err != nil {
			return domain.ErrInternal(domain.CodeInternal, err)
		}
		if expired != nil {
			metrics.RecordSlotsExpired(1)
			publishExpired(s.notifier, []*domain.Slot{expired})
		}
		return domain.ErrBadRequest(domain.CodeSlotExpired)
	}
	if slot.Assigned() {
		return domain.ErrConflict(domain.CodeSlotAlreadyAssigned)
	}
	return nil
}

// CheckEntitlement reports whether guildID holds an unexpired active slot
// for productID at this instant. No match is a normal negative answer.
func (s *SlotService) CheckEntitlement(ctx context.Context, guildID, productID string) (*domain.Slot, bool, error) {
	slot, err := s.slots.FindActiveForGuild(ctx, guildID, productID, s.now())
	if err != nil {
		metrics.RecordEntitlementCheck(metrics.ResultError)
		return nil, false, domain.ErrInternal(domain.CodeInternal, err)
	}
	if slot == nil {
		metrics.RecordEntitlementCheck(metrics.ResultInactive)
		return nil, false, nil
	}
	metrics.RecordEntitlementCheck(metrics.ResultActive)
	return slot, true, nil
}
