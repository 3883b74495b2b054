// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/lookup-credits/internal/model"
	"github.com/gofrs/uuid/v5"
)

// AccountRepository provides access to credit-owning accounts.
type AccountRepository interface {
	// GetByID loads an account by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error)
	// GetByExternalID loads the account linked to an authenticated identity.
	GetByExternalID(ctx context.Context, externalID string) (*model.Account, error)
	// GetGuestByDevice loads the unlinked account for a device.
	GetGuestByDevice(ctx context.Context, deviceID string) (*model.Account, error)
	// GetByReferralCode loads the owner of a referral code.
	GetByReferralCode(ctx context.Context, code string) (*model.Account, error)
	// Create inserts a new account. Returns errs.ErrAlreadyExists on a unique violation.
	Create(ctx context.Context, a *model.Account) error
	// LinkIdentity claims a guest account for externalID, only if it is still a guest.
	LinkIdentity(ctx context.Context, id uuid.UUID, externalID string) (*model.Account, error)
	// Debit atomically subtracts n credits; errs.ErrInsufficientCredits if the balance is short.
	Debit(ctx context.Context, id uuid.UUID, n int64) (*model.Account, error)
	// Credit atomically adds n credits.
	Credit(ctx context.Context, id uuid.UUID, n int64) (*model.Account, error)
	// SetPendingReferral stores or clears (nil) the remembered invite code.
	SetPendingReferral(ctx context.Context, id uuid.UUID, code *string) error
}

// EntitlementRepository provides access to super keys.
type EntitlementRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Entitlement, error)
	GetByCode(ctx context.Context, code string) (*model.Entitlement, error)
	// Create inserts a new key. Returns errs.ErrAlreadyExists on a code collision.
	Create(ctx context.Context, e *model.Entitlement) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]model.Entitlement, error)

	// Activate binds an unused active key to the account and grants its credits in one transaction.
	// Returns errs.ErrVersionConflict if the key was used or blocked concurrently.
	Activate(ctx context.Context, p model.ActivationParams) (*model.Account, error)
	// Attach points the account at a key its device already holds. p.Credits is not granted.
	Attach(ctx context.Context, p model.ActivationParams) (*model.Account, error)
	// Rearm restarts the validity window of a key bound to p.DeviceID and points the account at it.
	// Returns errs.ErrVersionConflict if the key is no longer bound to that device or was blocked.
	Rearm(ctx context.Context, p model.ActivationParams) (*model.Account, error)
	// Release clears the account's entitlement and resets its balance to resetCredits.
	// The key becomes redeemable again once no account points at it.
	Release(ctx context.Context, accountID, entitlementID uuid.UUID, resetCredits int64) (*model.Account, error)
}

// AuditRepository records referral and ad rewards.
type AuditRepository interface {
	// ApplyReferral writes referred_by once, credits both sides and appends the log in one transaction.
	// Returns errs.ErrVersionConflict if referred_by was already set.
	ApplyReferral(ctx context.Context, g model.ReferralGrant) (*model.Account, error)
	// RecordAdWatch appends an ad watch log row.
	RecordAdWatch(ctx context.Context, l model.AdWatchLog) error
	// ReferralsBy lists referral logs where externalID is the referrer, newest first.
	ReferralsBy(ctx context.Context, externalID string) ([]model.ReferralLog, error)
	// Leaderboard ranks referrers by referral count.
	Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
}
