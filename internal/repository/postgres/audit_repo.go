package postgres

import (
	"context"
	"errors"

	"github.com/and161185/lookup-credits/internal/errs"
	"github.com/and161185/lookup-credits/internal/model"
	"github.com/jackc/pgx/v5"
)

// AuditRepo implements AuditRepository using PostgreSQL.
type AuditRepo struct{ db *DB }

// NewAuditRepo constructs an audit repository.
func NewAuditRepo(db *DB) *AuditRepo { return &AuditRepo{db: db} }

// ApplyReferral sets referred_by on the referee, credits both sides and appends the log row.
func (r *AuditRepo) ApplyReferral(ctx context.Context, g model.ReferralGrant) (acc *model.Account, err error) {
	referee := `
UPDATE accounts SET referred_by=$2, credits=credits+$3, pending_referral_code=NULL, updated_at=now()
WHERE id=$1 AND referred_by IS NULL
RETURNING ` + accountCols
	const referrer = `UPDATE accounts SET credits=credits+$2, updated_at=now() WHERE id=$1`
	const logRow = `
INSERT INTO referral_logs (id, referrer_device_id, referred_device_id, referrer_external_id, referred_external_id, credits_awarded)
VALUES ($1, $2, $3, $4, $5, $6)`

	err = r.db.inTx(ctx, func(tx pgx.Tx) error {
		acc, err = scanAccount(tx.QueryRow(ctx, referee, g.RefereeID, g.Code, g.Amount))
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.ErrVersionConflict
		}
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, referrer, g.Referrer.ID, g.Amount)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errs.ErrNotFound
		}
		l := g.Log
		_, err = tx.Exec(ctx, logRow, l.ID, l.ReferrerDeviceID, l.ReferredDeviceID,
			l.ReferrerExternalID, l.ReferredExternalID, l.CreditsAwarded)
		return err
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// RecordAdWatch appends an ad watch row.
func (r *AuditRepo) RecordAdWatch(ctx context.Context, l model.AdWatchLog) error {
	const q = `
INSERT INTO ad_watch_logs (id, device_id, external_id, credits_earned)
VALUES ($1, $2, $3, $4)`
	_, err := r.db.Pool.Exec(ctx, q, l.ID, l.DeviceID, l.ExternalID, l.CreditsEarned)
	return err
}

// ReferralsBy lists the referrals made by an identity, newest first.
func (r *AuditRepo) ReferralsBy(ctx context.Context, externalID string) ([]model.ReferralLog, error) {
	const q = `
SELECT id, referrer_device_id, referred_device_id, referrer_external_id, referred_external_id, credits_awarded, created_at
FROM referral_logs
WHERE referrer_external_id=$1
ORDER BY created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, externalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ReferralLog
	for rows.Next() {
		var l model.ReferralLog
		if err = rows.Scan(&l.ID, &l.ReferrerDeviceID, &l.ReferredDeviceID,
			&l.ReferrerExternalID, &l.ReferredExternalID, &l.CreditsAwarded, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Leaderboard returns the top referrers by number of referrals.
func (r *AuditRepo) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	const q = `
SELECT referrer_external_id, COUNT(*) AS referrals
FROM referral_logs
WHERE referrer_external_id IS NOT NULL
GROUP BY referrer_external_id
ORDER BY referrals DESC, referrer_external_id ASC
LIMIT $1`
	rows, err := r.db.Pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.LeaderboardEntry
	for rows.Next() {
		e := model.LeaderboardEntry{Rank: len(out) + 1}
		if err = rows.Scan(&e.ExternalID, &e.ReferralCount); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
