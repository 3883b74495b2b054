package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/and161185/lookup-credits/internal/errs"
	"github.com/and161185/lookup-credits/internal/limiter"
	"github.com/and161185/lookup-credits/internal/model"
	"github.com/and161185/lookup-credits/internal/repository"
	"github.com/and161185/lookup-credits/internal/session"
)

// EntitlementService activates and releases super keys.
type EntitlementService interface {
	// Activate redeems code for the session's device.
	Activate(ctx context.Context, s *session.AccountSession, code string) (model.Activation, error)
	// Deactivate releases the active key and resets the balance to the starting grant.
	Deactivate(ctx context.Context, s *session.AccountSession) error
}

type EntitlementServiceImpl struct {
	keys  repository.EntitlementRepository
	clk   clockwork.Clock
	log   *zap.Logger
	guard redeemGuard
}

// NewEntitlementService constructs EntitlementService. lim may be nil.
func NewEntitlementService(
	keys repository.EntitlementRepository, lim limiter.Limiter, ipPepper []byte,
	clk clockwork.Clock, log *zap.Logger,
) *EntitlementServiceImpl {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &EntitlementServiceImpl{
		keys: keys, clk: clk, log: log,
		guard: redeemGuard{lim: lim, pepper: ipPepper, log: log},
	}
}

// Activate checks, in order: sign-in, existence, kill switch, binding.
// A key already bound to this device is resumed without granting credits again.
func (e *EntitlementServiceImpl) Activate(ctx context.Context, s *session.AccountSession, code string) (model.Activation, error) {
	if !s.Authenticated() {
		return model.Activation{}, errs.ErrNotAuthenticated
	}
	code = normalizeCode(code)
	if code == "" {
		return model.Activation{}, errs.ErrInvalidCode
	}
	if err := e.guard.allow(ctx, s); err != nil {
		return model.Activation{}, err
	}

	key, err := e.keys.GetByCode(ctx, code)
	if errors.Is(err, errs.ErrNotFound) {
		return model.Activation{}, e.guard.reject(ctx, s, errs.ErrInvalidCode)
	}
	if err != nil {
		return model.Activation{}, storeFailure(e.log, "load key failed", err)
	}
	if err := e.classify(*key, s.DeviceID()); err != nil {
		return model.Activation{}, err
	}
	if key.IsUsed {
		return e.resume(ctx, s, *key)
	}

	now := e.clk.Now()
	exp := now.AddDate(0, 0, key.ValidityDays)
	acc := s.Account()
	restore := s.Stage(func(a *model.Account) {
		a.Credits += key.CreditsGranted
		a.ActiveEntitlementID = &key.ID
		a.EntitlementExpiresAt = &exp
	})
	updated, err := e.keys.Activate(ctx, model.ActivationParams{
		EntitlementID: key.ID,
		AccountID:     acc.ID,
		DeviceID:      s.DeviceID(),
		UsedAt:        now,
		ExpiresAt:     exp,
		Credits:       key.CreditsGranted,
		Replaces:      acc.ActiveEntitlementID,
	})
	if err != nil {
		restore()
		if errors.Is(err, errs.ErrVersionConflict) {
			return e.afterConflict(ctx, s, key.ID)
		}
		e.log.Error("activate key failed",
			zap.String("account_id", acc.ID.String()),
			zap.String("key_id", key.ID.String()),
			zap.Error(err),
		)
		return model.Activation{}, fmt.Errorf("%w: %w", errs.ErrStoreWriteFailed, err)
	}
	s.Replace(*updated)
	e.guard.success(ctx, s)

	key.IsUsed = true
	dev := s.DeviceID()
	key.BoundDeviceID = &dev
	key.UsedAt = &now
	key.ExpiresAt = &exp
	return model.Activation{Entitlement: *key, ExpiresAt: exp, Days: key.ValidityDays}, nil
}

// classify returns the rule violation for redeeming key from deviceID, if any.
func (e *EntitlementServiceImpl) classify(key model.Entitlement, deviceID string) error {
	if !key.IsActive {
		return errs.ErrBlocked
	}
	if key.IsUsed && !key.BoundTo(deviceID) {
		return errs.ErrAlreadyUsedElsewhere
	}
	return nil
}

// afterConflict re-reads a key whose claim lost a race and reports what happened.
func (e *EntitlementServiceImpl) afterConflict(ctx context.Context, s *session.AccountSession, id uuid.UUID) (model.Activation, error) {
	fresh, err := e.keys.GetByID(ctx, id)
	if errors.Is(err, errs.ErrNotFound) {
		return model.Activation{}, errs.ErrInvalidCode
	}
	if err != nil {
		return model.Activation{}, storeFailure(e.log, "reload key failed", err, zap.String("key_id", id.String()))
	}
	if err := e.classify(*fresh, s.DeviceID()); err != nil {
		return model.Activation{}, err
	}
	if fresh.IsUsed {
		return e.resume(ctx, s, *fresh)
	}
	// Freed again in between; let the caller retry.
	return model.Activation{}, fmt.Errorf("%w: %w", errs.ErrStoreWriteFailed, errs.ErrVersionConflict)
}

// resume points the account at a key this device already holds. A key whose
// window has run out is re-armed for another ValidityDays; no credits are granted.
func (e *EntitlementServiceImpl) resume(ctx context.Context, s *session.AccountSession, key model.Entitlement) (model.Activation, error) {
	now := e.clk.Now()
	acc := s.Account()
	p := model.ActivationParams{
		EntitlementID: key.ID,
		AccountID:     acc.ID,
		DeviceID:      s.DeviceID(),
		UsedAt:        now,
		Replaces:      acc.ActiveEntitlementID,
	}
	rearm := key.ExpiresAt == nil || !key.ExpiresAt.After(now)
	if rearm {
		p.ExpiresAt = now.AddDate(0, 0, key.ValidityDays)
	} else {
		p.ExpiresAt = *key.ExpiresAt
	}
	exp := p.ExpiresAt
	out := model.Activation{Entitlement: key, ExpiresAt: exp, Days: daysLeft(now, exp), Resumed: true}
	out.Entitlement.ExpiresAt = &exp

	if !rearm && acc.ActiveEntitlementID != nil && *acc.ActiveEntitlementID == key.ID &&
		acc.EntitlementExpiresAt != nil && acc.EntitlementExpiresAt.Equal(exp) {
		return out, nil
	}

	restore := s.Stage(func(a *model.Account) {
		a.ActiveEntitlementID = &key.ID
		a.EntitlementExpiresAt = &exp
	})
	var (
		updated *model.Account
		err     error
	)
	if rearm {
		updated, err = e.keys.Rearm(ctx, p)
	} else {
		updated, err = e.keys.Attach(ctx, p)
	}
	if err != nil {
		restore()
		if rearm && errors.Is(err, errs.ErrVersionConflict) {
			return e.afterConflict(ctx, s, key.ID)
		}
		e.log.Error("resume key failed", zap.String("account_id", acc.ID.String()), zap.Error(err))
		return model.Activation{}, fmt.Errorf("%w: %w", errs.ErrStoreWriteFailed, err)
	}
	s.Replace(*updated)
	if rearm {
		e.log.Info("super key re-armed",
			zap.String("account_id", acc.ID.String()),
			zap.String("key_id", key.ID.String()),
			zap.Time("expires_at", exp),
		)
	}
	return out, nil
}

func daysLeft(now, exp time.Time) int {
	return int(math.Ceil(exp.Sub(now).Hours() / 24))
}

// Deactivate is a no-op without an active key.
func (e *EntitlementServiceImpl) Deactivate(ctx context.Context, s *session.AccountSession) error {
	acc := s.Account()
	if acc.ActiveEntitlementID == nil {
		return nil
	}
	keyID := *acc.ActiveEntitlementID

	restore := s.Stage(func(a *model.Account) {
		a.Credits = model.DefaultCredits
		a.ActiveEntitlementID = nil
		a.EntitlementExpiresAt = nil
	})
	updated, err := e.keys.Release(ctx, acc.ID, keyID, model.DefaultCredits)
	if err == nil {
		s.Replace(*updated)
		return nil
	}
	restore()
	if errors.Is(err, errs.ErrVersionConflict) {
		// Already released elsewhere; nothing left to do.
		return nil
	}
	e.log.Error("release key failed",
		zap.String("account_id", acc.ID.String()),
		zap.String("key_id", keyID.String()),
		zap.Error(err),
	)
	return fmt.Errorf("%w: %w", errs.ErrStoreWriteFailed, err)
}
