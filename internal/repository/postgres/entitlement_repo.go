package postgres

import (
	"context"
	"errors"

	"github.com/and161185/lookup-credits/internal/errs"
	"github.com/and161185/lookup-credits/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

const entitlementCols = `id, code, credits_granted, validity_days, is_active, is_used,
bound_device_id, used_at, expires_at, created_at`

// EntitlementRepo implements EntitlementRepository using PostgreSQL.
type EntitlementRepo struct{ db *DB }

// NewEntitlementRepo constructs an entitlement repository.
func NewEntitlementRepo(db *DB) *EntitlementRepo { return &EntitlementRepo{db: db} }

func scanEntitlement(row pgx.Row) (*model.Entitlement, error) {
	var e model.Entitlement
	err := row.Scan(&e.ID, &e.Code, &e.CreditsGranted, &e.ValidityDays, &e.IsActive, &e.IsUsed,
		&e.BoundDeviceID, &e.UsedAt, &e.ExpiresAt, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *EntitlementRepo) getOne(ctx context.Context, q string, arg any) (*model.Entitlement, error) {
	e, err := scanEntitlement(r.db.Pool.QueryRow(ctx, q, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return e, err
}

// GetByID selects a key by ID.
func (r *EntitlementRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Entitlement, error) {
	return r.getOne(ctx, `SELECT `+entitlementCols+` FROM entitlements WHERE id=$1`, id)
}

// GetByCode selects a key by its redeemable code.
func (r *EntitlementRepo) GetByCode(ctx context.Context, code string) (*model.Entitlement, error) {
	return r.getOne(ctx, `SELECT `+entitlementCols+` FROM entitlements WHERE code=$1`, code)
}

// Create inserts a fresh, unused key.
func (r *EntitlementRepo) Create(ctx context.Context, e *model.Entitlement) error {
	const q = `
INSERT INTO entitlements (id, code, credits_granted, validity_days, is_active)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at`
	err := r.db.Pool.QueryRow(ctx, q, e.ID, e.Code, e.CreditsGranted, e.ValidityDays, e.IsActive).Scan(&e.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// SetActive flips the admin kill switch.
func (r *EntitlementRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE entitlements SET is_active=$2 WHERE id=$1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete removes a key row.
func (r *EntitlementRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM entitlements WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// List returns all keys, newest first.
func (r *EntitlementRepo) List(ctx context.Context) ([]model.Entitlement, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+entitlementCols+` FROM entitlements ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Entitlement
	for rows.Next() {
		e, err := scanEntitlement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// grantSQL adds credits and points the account at a key.
const grantSQL = `
UPDATE accounts SET credits=credits+$2, active_entitlement_id=$3, entitlement_expires_at=$4, updated_at=now()
WHERE id=$1
RETURNING ` + accountCols

// freeKeySQL makes a key redeemable again once no account points at it.
// Accounts sharing a device can hold the same key; the last one out frees it.
const freeKeySQL = `
UPDATE entitlements SET is_used=false, bound_device_id=NULL, used_at=NULL, expires_at=NULL
WHERE id=$1 AND is_used
  AND NOT EXISTS (SELECT 1 FROM accounts WHERE active_entitlement_id=$1)`

// grant points p.AccountID at p.EntitlementID and frees the key it replaces.
func grant(ctx context.Context, tx pgx.Tx, p model.ActivationParams) (*model.Account, error) {
	acc, err := scanAccount(tx.QueryRow(ctx, grantSQL, p.AccountID, p.Credits, p.EntitlementID, p.ExpiresAt))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.Replaces != nil && *p.Replaces != p.EntitlementID {
		if _, err := tx.Exec(ctx, freeKeySQL, *p.Replaces); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// claim runs the conditional key update q and then grant, in one transaction.
func (r *EntitlementRepo) claim(ctx context.Context, q string, p model.ActivationParams) (acc *model.Account, err error) {
	err = r.db.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, q, p.EntitlementID, p.DeviceID, p.UsedAt, p.ExpiresAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errs.ErrVersionConflict
		}
		acc, err = grant(ctx, tx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// Activate marks the key used by the device and grants its credits to the account.
func (r *EntitlementRepo) Activate(ctx context.Context, p model.ActivationParams) (*model.Account, error) {
	const q = `
UPDATE entitlements SET is_used=true, bound_device_id=$2, used_at=$3, expires_at=$4
WHERE id=$1 AND is_active AND NOT is_used`
	return r.claim(ctx, q, p)
}

// Rearm starts a new validity window on a key the device already holds.
func (r *EntitlementRepo) Rearm(ctx context.Context, p model.ActivationParams) (*model.Account, error) {
	const q = `
UPDATE entitlements SET used_at=$3, expires_at=$4
WHERE id=$1 AND is_active AND is_used AND bound_device_id=$2`
	p.Credits = 0
	return r.claim(ctx, q, p)
}

// Attach points the account at an already bound key.
func (r *EntitlementRepo) Attach(ctx context.Context, p model.ActivationParams) (acc *model.Account, err error) {
	p.Credits = 0
	err = r.db.inTx(ctx, func(tx pgx.Tx) error {
		acc, err = grant(ctx, tx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// Release resets the account. The key is freed only if no other account
// still points at it.
func (r *EntitlementRepo) Release(
	ctx context.Context, accountID, entitlementID uuid.UUID, resetCredits int64,
) (acc *model.Account, err error) {
	reset := `
UPDATE accounts SET credits=$3, active_entitlement_id=NULL, entitlement_expires_at=NULL, updated_at=now()
WHERE id=$1 AND active_entitlement_id=$2
RETURNING ` + accountCols

	err = r.db.inTx(ctx, func(tx pgx.Tx) error {
		acc, err = scanAccount(tx.QueryRow(ctx, reset, accountID, entitlementID, resetCredits))
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.ErrVersionConflict
		}
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, freeKeySQL, entitlementID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}
