// Package service contains the credit, entitlement, referral and reward engines.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/and161185/lookup-credits/internal/errs"
	"github.com/and161185/lookup-credits/internal/model"
	"github.com/and161185/lookup-credits/internal/repository"
	"github.com/and161185/lookup-credits/internal/session"
)

// IdentityService decides which account row is current for a device and identity.
type IdentityService interface {
	// Resolve returns a session for the device, linking or creating the account as needed.
	// A nil identity resolves the guest account.
	Resolve(ctx context.Context, deviceID string, id *model.Identity) (*session.AccountSession, error)
}

type IdentityServiceImpl struct {
	accounts    repository.AccountRepository
	log         *zap.Logger
	codeRetries uint64
}

// NewIdentityService constructs IdentityService.
func NewIdentityService(accounts repository.AccountRepository, log *zap.Logger) *IdentityServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &IdentityServiceImpl{accounts: accounts, log: log, codeRetries: 3}
}

// Resolve applies the lookup order: linked account, then claimable guest row, then a new row.
func (s *IdentityServiceImpl) Resolve(ctx context.Context, deviceID string, id *model.Identity) (*session.AccountSession, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("%w: empty device id", errs.ErrInvalidArgument)
	}
	var (
		acc *model.Account
		err error
	)
	if id != nil && id.ID != "" {
		acc, err = s.resolveIdentity(ctx, deviceID, id.ID)
	} else {
		id = nil
		acc, err = s.resolveGuest(ctx, deviceID)
	}
	if err != nil {
		return nil, err
	}
	return session.New(*acc, deviceID, id), nil
}

func (s *IdentityServiceImpl) resolveGuest(ctx context.Context, deviceID string) (*model.Account, error) {
	acc, err := s.accounts.GetGuestByDevice(ctx, deviceID)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return nil, storeFailure(s.log, "load guest account failed", err, zap.String("device_id", deviceID))
	}
	return s.create(ctx, deviceID, nil, func(ctx context.Context) (*model.Account, error) {
		return s.accounts.GetGuestByDevice(ctx, deviceID)
	})
}

func (s *IdentityServiceImpl) resolveIdentity(ctx context.Context, deviceID, externalID string) (*model.Account, error) {
	byIdentity := func(ctx context.Context) (*model.Account, error) {
		return s.accounts.GetByExternalID(ctx, externalID)
	}

	acc, err := byIdentity(ctx)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return nil, storeFailure(s.log, "load account failed", err, zap.String("device_id", deviceID))
	}

	guest, err := s.accounts.GetGuestByDevice(ctx, deviceID)
	switch {
	case err == nil:
		linked, lerr := s.accounts.LinkIdentity(ctx, guest.ID, externalID)
		if lerr == nil {
			s.log.Info("guest account linked",
				zap.String("account_id", linked.ID.String()),
				zap.String("device_id", deviceID),
			)
			return linked, nil
		}
		if !errors.Is(lerr, errs.ErrVersionConflict) && !errors.Is(lerr, errs.ErrAlreadyExists) {
			return nil, storeFailure(s.log, "link identity failed", lerr, zap.String("account_id", guest.ID.String()))
		}
		// Lost a race: either this identity got a row meanwhile, or the guest
		// row was claimed by someone else and a fresh row is needed.
		if acc, err := byIdentity(ctx); err == nil {
			return acc, nil
		}
	case !errors.Is(err, errs.ErrNotFound):
		return nil, storeFailure(s.log, "load guest account failed", err, zap.String("device_id", deviceID))
	}

	ext := externalID
	return s.create(ctx, deviceID, &ext, byIdentity)
}

// create inserts a new account with the starting grant. A unique violation is
// first resolved by re-reading the natural key (a concurrent resolver won);
// otherwise it was a referral code collision and a new code is tried.
func (s *IdentityServiceImpl) create(
	ctx context.Context, deviceID string, externalID *string,
	reread func(context.Context) (*model.Account, error),
) (*model.Account, error) {
	var out *model.Account
	backoff := retry.WithMaxRetries(s.codeRetries, retry.NewConstant(5*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		code, err := newReferralCode()
		if err != nil {
			return err
		}
		acc := &model.Account{
			ID:                 id,
			DeviceID:           deviceID,
			ExternalIdentityID: externalID,
			Credits:            model.DefaultCredits,
			ReferralCode:       code,
		}
		err = s.accounts.Create(ctx, acc)
		if err == nil {
			out = acc
			return nil
		}
		if !errors.Is(err, errs.ErrAlreadyExists) {
			return err
		}
		if existing, rerr := reread(ctx); rerr == nil {
			out = existing
			return nil
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		return nil, storeFailure(s.log, "create account failed", err, zap.String("device_id", deviceID))
	}
	s.log.Debug("account resolved on create", zap.String("account_id", out.ID.String()))
	return out, nil
}
