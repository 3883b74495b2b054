package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/and161185/lookup-credits/internal/errs"
	"github.com/and161185/lookup-credits/internal/model"
	"github.com/and161185/lookup-credits/internal/repository"
	"github.com/and161185/lookup-credits/internal/session"
)

// LedgerService owns the credit balance.
type LedgerService interface {
	// Deduct charges one credit unless an unexpired entitlement is active.
	Deduct(ctx context.Context, s *session.AccountSession) error
	// Credit adds a positive amount.
	Credit(ctx context.Context, s *session.AccountSession, amount int64) error
}

type LedgerServiceImpl struct {
	accounts repository.AccountRepository
	clk      clockwork.Clock
	log      *zap.Logger
}

// NewLedgerService constructs LedgerService. A nil clock means wall time.
func NewLedgerService(accounts repository.AccountRepository, clk clockwork.Clock, log *zap.Logger) *LedgerServiceImpl {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LedgerServiceImpl{accounts: accounts, clk: clk, log: log}
}

// Deduct stages credits-1 on the session and commits it with a conditional
// decrement; the staged value is rolled back if the store refuses.
func (l *LedgerServiceImpl) Deduct(ctx context.Context, s *session.AccountSession) error {
	acc := s.Account()
	if acc.HasActiveEntitlement(l.clk.Now()) {
		return nil
	}
	if acc.Credits <= 0 {
		return errs.ErrInsufficientCredits
	}

	restore := s.Stage(func(a *model.Account) { a.Credits-- })
	updated, err := l.accounts.Debit(ctx, acc.ID, 1)
	if err != nil {
		restore()
		if errors.Is(err, errs.ErrInsufficientCredits) {
			// another device spent the last credit
			if fresh, ferr := l.accounts.GetByID(ctx, acc.ID); ferr == nil {
				s.Replace(*fresh)
			}
			return errs.ErrInsufficientCredits
		}
		l.log.Error("deduct failed", zap.String("account_id", acc.ID.String()), zap.Error(err))
		return fmt.Errorf("%w: %w", errs.ErrStoreWriteFailed, err)
	}
	s.Replace(*updated)
	return nil
}

// Credit stages credits+amount and commits it with an atomic increment.
func (l *LedgerServiceImpl) Credit(ctx context.Context, s *session.AccountSession, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: credit amount must be positive", errs.ErrInvalidArgument)
	}
	acc := s.Account()
	restore := s.Stage(func(a *model.Account) { a.Credits += amount })
	updated, err := l.accounts.Credit(ctx, acc.ID, amount)
	if err != nil {
		restore()
		l.log.Error("credit failed",
			zap.String("account_id", acc.ID.String()),
			zap.Int64("amount", amount),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", errs.ErrStoreWriteFailed, err)
	}
	s.Replace(*updated)
	return nil
}
