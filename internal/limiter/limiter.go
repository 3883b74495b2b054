// Package limiter throttles repeated failed code redemptions.
//
// Referral codes and super keys are short guessable strings; a subject
// (device) that keeps submitting invalid codes from the same address is
// locked out for a while.
package limiter

import (
	"context"
	"time"
)

// Limiter controls redemption attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether a redemption is currently allowed and optional retry-after.
	Allow(ctx context.Context, subject string, ipHash []byte) (bool, time.Duration, error)
	// Success resets counters after a successful redemption.
	Success(ctx context.Context, subject string, ipHash []byte) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, subject string, ipHash []byte) (bool, time.Duration, error)
}

// Pruner removes stale limiter state.
type Pruner interface {
	// Prune deletes rows untouched since before and not blocked anymore.
	Prune(ctx context.Context, before time.Time) (int64, error)
}
