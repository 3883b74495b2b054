package service

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/lookup-credits/internal/errs"
	"github.com/and161185/lookup-credits/internal/model"
	"github.com/and161185/lookup-credits/internal/repository"
	"github.com/and161185/lookup-credits/internal/session"
)

// RewardService grants credits for attested ad views.
type RewardService interface {
	// WatchAd logs the view and credits model.AdReward.
	WatchAd(ctx context.Context, s *session.AccountSession) error
}

type RewardServiceImpl struct {
	audit  repository.AuditRepository
	ledger LedgerService
	log    *zap.Logger
}

func NewRewardService(audit repository.AuditRepository, ledger LedgerService, log *zap.Logger) *RewardServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &RewardServiceImpl{audit: audit, ledger: ledger, log: log}
}

// WatchAd trusts the caller that playback completed.
func (r *RewardServiceImpl) WatchAd(ctx context.Context, s *session.AccountSession) error {
	acc := s.Account()
	if !acc.Authenticated() {
		return errs.ErrNotAuthenticated
	}
	id, err := uuid.NewV4()
	if err != nil {
		return err
	}
	err = r.audit.RecordAdWatch(ctx, model.AdWatchLog{
		ID:            id,
		DeviceID:      s.DeviceID(),
		ExternalID:    acc.ExternalIdentityID,
		CreditsEarned: model.AdReward,
	})
	if err != nil {
		r.log.Error("ad watch not recorded", zap.String("account_id", acc.ID.String()), zap.Error(err))
		return fmt.Errorf("%w: %w", errs.ErrStoreWriteFailed, err)
	}
	return r.ledger.Credit(ctx, s, model.AdReward)
}
