package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/and161185/lookup-credits/internal/errs"
	"github.com/and161185/lookup-credits/internal/lookup"
	"github.com/and161185/lookup-credits/internal/session"
)

// Searcher is the external lookup collaborator.
type Searcher interface {
	Search(ctx context.Context, query string) (lookup.Result, error)
}

var _ Searcher = (*lookup.Client)(nil)

// SearchOutcome is a completed lookup.
type SearchOutcome struct {
	Query   string
	Kind    lookup.Kind
	Result  lookup.Result
	Charged bool // a credit was taken for this lookup
}

// LookupService runs a lookup and charges for it.
type LookupService interface {
	Search(ctx context.Context, s *session.AccountSession, raw string) (SearchOutcome, error)
}

type LookupServiceImpl struct {
	searcher     Searcher
	ledger       LedgerService
	clk          clockwork.Clock
	log          *zap.Logger
	requiresAuth bool
}

// NewLookupService constructs LookupService. requiresAuth rejects guest lookups.
func NewLookupService(searcher Searcher, ledger LedgerService, clk clockwork.Clock, log *zap.Logger, requiresAuth bool) *LookupServiceImpl {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LookupServiceImpl{searcher: searcher, ledger: ledger, clk: clk, log: log, requiresAuth: requiresAuth}
}

// Search blocks before calling the searcher when the balance is empty and
// charges only when at least one record came back without an error.
func (l *LookupServiceImpl) Search(ctx context.Context, s *session.AccountSession, raw string) (SearchOutcome, error) {
	if l.requiresAuth && !s.Authenticated() {
		return SearchOutcome{}, errs.ErrNotAuthenticated
	}
	query, kind, err := lookup.Normalize(raw)
	if err != nil {
		return SearchOutcome{}, err
	}
	acc := s.Account()
	entitled := acc.HasActiveEntitlement(l.clk.Now())
	if !entitled && acc.Credits <= 0 {
		return SearchOutcome{}, errs.ErrInsufficientCredits
	}

	res, err := l.searcher.Search(ctx, query)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return SearchOutcome{}, err
		}
		if !errors.Is(err, errs.ErrLookupFailed) {
			err = fmt.Errorf("%w: %w", errs.ErrLookupFailed, err)
		}
		return SearchOutcome{}, err
	}
	if len(res.Records) == 0 || res.Count == 0 {
		return SearchOutcome{}, errs.ErrNoRecords
	}

	out := SearchOutcome{Query: query, Kind: kind, Result: res}
	if entitled {
		return out, nil
	}
	if err := l.ledger.Deduct(ctx, s); err != nil {
		// The lookup already happened; return its records uncharged.
		l.log.Warn("lookup not charged", zap.String("account_id", acc.ID.String()), zap.Error(err))
		return out, nil
	}
	out.Charged = true
	return out, nil
}
