package postgres

import (
	"context"
	"errors"

	"github.com/and161185/lookup-credits/internal/errs"
	"github.com/and161185/lookup-credits/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

const accountCols = `id, device_id, external_identity_id, credits, referral_code, referred_by,
active_entitlement_id, entitlement_expires_at, pending_referral_code, created_at, updated_at`

// AccountRepo implements AccountRepository using PostgreSQL.
type AccountRepo struct{ db *DB }

// NewAccountRepo constructs an account repository.
func NewAccountRepo(db *DB) *AccountRepo { return &AccountRepo{db: db} }

func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	err := row.Scan(&a.ID, &a.DeviceID, &a.ExternalIdentityID, &a.Credits, &a.ReferralCode, &a.ReferredBy,
		&a.ActiveEntitlementID, &a.EntitlementExpiresAt, &a.PendingReferralCode, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// getOne runs a single-row account query, translating pgx.ErrNoRows to ErrNotFound.
func (r *AccountRepo) getOne(ctx context.Context, q string, args ...any) (*model.Account, error) {
	a, err := scanAccount(r.db.Pool.QueryRow(ctx, q, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return a, err
}

// GetByID selects an account by ID.
func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	return r.getOne(ctx, `SELECT `+accountCols+` FROM accounts WHERE id=$1`, id)
}

// GetByExternalID selects the account linked to an identity.
func (r *AccountRepo) GetByExternalID(ctx context.Context, externalID string) (*model.Account, error) {
	return r.getOne(ctx, `SELECT `+accountCols+` FROM accounts WHERE external_identity_id=$1`, externalID)
}

// GetGuestByDevice selects the unlinked account of a device.
func (r *AccountRepo) GetGuestByDevice(ctx context.Context, deviceID string) (*model.Account, error) {
	return r.getOne(ctx,
		`SELECT `+accountCols+` FROM accounts WHERE device_id=$1 AND external_identity_id IS NULL`, deviceID)
}

// GetByReferralCode selects the owner of a referral code.
func (r *AccountRepo) GetByReferralCode(ctx context.Context, code string) (*model.Account, error) {
	return r.getOne(ctx, `SELECT `+accountCols+` FROM accounts WHERE referral_code=$1`, code)
}

// Create inserts a new account row and fills its timestamps.
func (r *AccountRepo) Create(ctx context.Context, a *model.Account) error {
	const q = `
INSERT INTO accounts (id, device_id, external_identity_id, credits, referral_code, pending_referral_code)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING created_at, updated_at`
	err := r.db.Pool.QueryRow(ctx, q,
		a.ID, a.DeviceID, a.ExternalIdentityID, a.Credits, a.ReferralCode, a.PendingReferralCode,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// LinkIdentity sets external_identity_id only while the row is still a guest.
func (r *AccountRepo) LinkIdentity(ctx context.Context, id uuid.UUID, externalID string) (*model.Account, error) {
	q := `
UPDATE accounts SET external_identity_id=$2, updated_at=now()
WHERE id=$1 AND external_identity_id IS NULL
RETURNING ` + accountCols
	a, err := scanAccount(r.db.Pool.QueryRow(ctx, q, id, externalID))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, errs.ErrVersionConflict
	case isUniqueViolation(err):
		return nil, errs.ErrAlreadyExists
	}
	return a, err
}

// Debit subtracts n credits in a single conditional statement.
func (r *AccountRepo) Debit(ctx context.Context, id uuid.UUID, n int64) (*model.Account, error) {
	q := `
UPDATE accounts SET credits=credits-$2, updated_at=now()
WHERE id=$1 AND credits>=$2
RETURNING ` + accountCols
	a, err := scanAccount(r.db.Pool.QueryRow(ctx, q, id, n))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrInsufficientCredits
	}
	return a, err
}

// Credit adds n credits in a single statement.
func (r *AccountRepo) Credit(ctx context.Context, id uuid.UUID, n int64) (*model.Account, error) {
	q := `
UPDATE accounts SET credits=credits+$2, updated_at=now()
WHERE id=$1
RETURNING ` + accountCols
	return r.getOne(ctx, q, id, n)
}

// SetPendingReferral stores the remembered invite code; nil clears it.
func (r *AccountRepo) SetPendingReferral(ctx context.Context, id uuid.UUID, code *string) error {
	const q = `UPDATE accounts SET pending_referral_code=$2, updated_at=now() WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
