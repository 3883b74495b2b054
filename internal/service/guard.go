package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/and161185/lookup-credits/internal/errs"
	"github.com/and161185/lookup-credits/internal/limiter"
	"github.com/and161185/lookup-credits/internal/session"
)

// redeemGuard throttles code guessing per (device, ip). A nil limiter disables it.
type redeemGuard struct {
	lim    limiter.Limiter
	pepper []byte
	log    *zap.Logger
}

func (g redeemGuard) key(s *session.AccountSession) (string, []byte) {
	return s.DeviceID(), limiter.HashIP(s.RemoteIP(), g.pepper)
}

// allow fails with ErrRateLimited while the pair is blocked.
func (g redeemGuard) allow(ctx context.Context, s *session.AccountSession) error {
	if g.lim == nil {
		return nil
	}
	subject, ipHash := g.key(s)
	ok, _, err := g.lim.Allow(ctx, subject, ipHash)
	if err != nil {
		return storeFailure(g.log, "limiter check failed", err, zap.String("device_id", subject))
	}
	if !ok {
		return errs.ErrRateLimited
	}
	return nil
}

// reject records a wrong code and returns cause, or ErrRateLimited once the
// failure tips the pair into a block.
func (g redeemGuard) reject(ctx context.Context, s *session.AccountSession, cause error) error {
	if g.lim == nil {
		return cause
	}
	subject, ipHash := g.key(s)
	blocked, _, err := g.lim.Failure(ctx, subject, ipHash)
	if err != nil {
		g.log.Warn("limiter failure not recorded", zap.Error(err))
		return cause
	}
	if blocked {
		return errs.ErrRateLimited
	}
	return cause
}

// success resets counters (best-effort).
func (g redeemGuard) success(ctx context.Context, s *session.AccountSession) {
	if g.lim == nil {
		return
	}
	subject, ipHash := g.key(s)
	if err := g.lim.Success(ctx, subject, ipHash); err != nil {
		g.log.Debug("limiter reset failed", zap.Error(err))
	}
}
