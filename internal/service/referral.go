package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/lookup-credits/internal/errs"
	"github.com/and161185/lookup-credits/internal/limiter"
	"github.com/and161185/lookup-credits/internal/model"
	"github.com/and161185/lookup-credits/internal/repository"
	"github.com/and161185/lookup-credits/internal/session"
)

const (
	defaultLeaderboard = 10
	maxLeaderboard     = 100
)

// ReferralService applies referral codes and tracks invitations.
type ReferralService interface {
	// Apply redeems code for the session's account and returns the credits each side got.
	Apply(ctx context.Context, s *session.AccountSession, code string) (int64, error)
	// Remember stores an invite code until the user signs in and answers it.
	Remember(ctx context.Context, s *session.AccountSession, code string) error
	// Pending returns the remembered invite, or nil if there is none worth showing.
	Pending(ctx context.Context, s *session.AccountSession) (*model.Invite, error)
	// Decline forgets the remembered invite.
	Decline(ctx context.Context, s *session.AccountSession) error
	// Referrals lists accounts referred by the signed-in user.
	Referrals(ctx context.Context, s *session.AccountSession) ([]model.ReferralLog, error)
	// Leaderboard ranks referrers. limit <= 0 means the default.
	Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
}

type ReferralServiceImpl struct {
	accounts repository.AccountRepository
	audit    repository.AuditRepository
	log      *zap.Logger
	guard    redeemGuard
}

// NewReferralService constructs ReferralService. lim may be nil.
func NewReferralService(
	accounts repository.AccountRepository, audit repository.AuditRepository,
	lim limiter.Limiter, ipPepper []byte, log *zap.Logger,
) *ReferralServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReferralServiceImpl{
		accounts: accounts, audit: audit, log: log,
		guard: redeemGuard{lim: lim, pepper: ipPepper, log: log},
	}
}

// refresh replaces the session snapshot with the stored row.
func (r *ReferralServiceImpl) refresh(ctx context.Context, s *session.AccountSession) (model.Account, error) {
	id := s.Account().ID
	fresh, err := r.accounts.GetByID(ctx, id)
	if err != nil {
		return model.Account{}, storeFailure(r.log, "reload account failed", err, zap.String("account_id", id.String()))
	}
	s.Replace(*fresh)
	return *fresh, nil
}

// Apply checks, in order, first failure wins: sign-in, not yet referred,
// not self, code exists. Eligibility is read from a fresh row.
func (r *ReferralServiceImpl) Apply(ctx context.Context, s *session.AccountSession, code string) (int64, error) {
	if !s.Authenticated() {
		return 0, errs.ErrNotAuthenticated
	}
	acc, err := r.refresh(ctx, s)
	if err != nil {
		return 0, err
	}
	if acc.ReferredBy != nil {
		return 0, errs.ErrAlreadyUsed
	}
	code = normalizeCode(code)
	if code == acc.ReferralCode {
		return 0, errs.ErrSelfReferral
	}
	if code == "" {
		return 0, errs.ErrInvalidCode
	}
	if err := r.guard.allow(ctx, s); err != nil {
		return 0, err
	}
	referrer, err := r.accounts.GetByReferralCode(ctx, code)
	if errors.Is(err, errs.ErrNotFound) {
		return 0, r.guard.reject(ctx, s, errs.ErrInvalidCode)
	}
	if err != nil {
		return 0, storeFailure(r.log, "load referrer failed", err, zap.String("code", code))
	}
	if referrer.ID == acc.ID {
		return 0, errs.ErrSelfReferral
	}

	logID, err := uuid.NewV4()
	if err != nil {
		return 0, err
	}
	grant := model.ReferralGrant{
		RefereeID: acc.ID,
		Referrer:  *referrer,
		Code:      code,
		Amount:    model.ReferralAward,
		Log: model.ReferralLog{
			ID:                 logID,
			ReferrerDeviceID:   referrer.DeviceID,
			ReferredDeviceID:   s.DeviceID(),
			ReferrerExternalID: referrer.ExternalIdentityID,
			ReferredExternalID: acc.ExternalIdentityID,
			CreditsAwarded:     model.ReferralAward,
		},
	}

	restore := s.Stage(func(a *model.Account) {
		a.Credits += grant.Amount
		a.ReferredBy = &grant.Code
		a.PendingReferralCode = nil
	})
	updated, err := r.audit.ApplyReferral(ctx, grant)
	if err != nil {
		restore()
		if errors.Is(err, errs.ErrVersionConflict) {
			// Another request applied a code first.
			_, _ = r.refresh(ctx, s)
			return 0, errs.ErrAlreadyUsed
		}
		if errors.Is(err, errs.ErrNotFound) {
			return 0, errs.ErrInvalidCode
		}
		r.log.Error("apply referral failed",
			zap.String("account_id", acc.ID.String()),
			zap.String("code", code),
			zap.Error(err),
		)
		return 0, fmt.Errorf("%w: %w", errs.ErrStoreWriteFailed, err)
	}
	s.Replace(*updated)
	r.guard.success(ctx, s)
	r.log.Info("referral applied",
		zap.String("referrer_id", referrer.ID.String()),
		zap.String("referee_id", acc.ID.String()),
	)
	return grant.Amount, nil
}

// Remember works for guests too; the code rides along when the guest row is linked.
func (r *ReferralServiceImpl) Remember(ctx context.Context, s *session.AccountSession, code string) error {
	code = normalizeCode(code)
	if code == "" {
		return errs.ErrInvalidCode
	}
	return r.setPending(ctx, s, &code)
}

func (r *ReferralServiceImpl) Decline(ctx context.Context, s *session.AccountSession) error {
	if s.Account().PendingReferralCode == nil {
		return nil
	}
	return r.setPending(ctx, s, nil)
}

func (r *ReferralServiceImpl) setPending(ctx context.Context, s *session.AccountSession, code *string) error {
	acc := s.Account()
	restore := s.Stage(func(a *model.Account) { a.PendingReferralCode = code })
	if err := r.accounts.SetPendingReferral(ctx, acc.ID, code); err != nil {
		restore()
		r.log.Error("pending referral not stored", zap.String("account_id", acc.ID.String()), zap.Error(err))
		return fmt.Errorf("%w: %w", errs.ErrStoreWriteFailed, err)
	}
	return nil
}

// Pending drops a remembered code that can no longer be used (own code,
// already referred, unknown owner) and reports nothing in that case.
func (r *ReferralServiceImpl) Pending(ctx context.Context, s *session.AccountSession) (*model.Invite, error) {
	acc, err := r.refresh(ctx, s)
	if err != nil {
		return nil, err
	}
	if acc.PendingReferralCode == nil {
		return nil, nil
	}
	code := *acc.PendingReferralCode
	if !acc.Authenticated() {
		return &model.Invite{Code: code, LoginRequired: true}, nil
	}
	if code == acc.ReferralCode || acc.ReferredBy != nil {
		return nil, r.Decline(ctx, s)
	}
	referrer, err := r.accounts.GetByReferralCode(ctx, code)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, r.Decline(ctx, s)
	}
	if err != nil {
		return nil, storeFailure(r.log, "load inviter failed", err, zap.String("code", code))
	}
	inv := &model.Invite{Code: code}
	if referrer.ExternalIdentityID != nil {
		inv.InviterID = *referrer.ExternalIdentityID
	}
	return inv, nil
}

func (r *ReferralServiceImpl) Referrals(ctx context.Context, s *session.AccountSession) ([]model.ReferralLog, error) {
	acc := s.Account()
	if !acc.Authenticated() {
		return nil, errs.ErrNotAuthenticated
	}
	logs, err := r.audit.ReferralsBy(ctx, *acc.ExternalIdentityID)
	if err != nil {
		return nil, storeFailure(r.log, "list referrals failed", err, zap.String("account_id", acc.ID.String()))
	}
	return logs, nil
}

func (r *ReferralServiceImpl) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	switch {
	case limit <= 0:
		limit = defaultLeaderboard
	case limit > maxLeaderboard:
		limit = maxLeaderboard
	}
	top, err := r.audit.Leaderboard(ctx, limit)
	if err != nil {
		return nil, storeFailure(r.log, "leaderboard failed", err)
	}
	return top, nil
}
