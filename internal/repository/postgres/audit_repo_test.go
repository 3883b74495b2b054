package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/and161185/lookup-credits/internal/errs"
	"github.com/and161185/lookup-credits/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func sampleGrant() model.ReferralGrant {
	referrer := sampleAccount()
	referrer.ExternalIdentityID = strp("user_a")
	referee := uuid.Must(uuid.NewV4())
	return model.ReferralGrant{
		RefereeID: referee,
		Referrer:  referrer,
		Code:      referrer.ReferralCode,
		Amount:    5,
		Log: model.ReferralLog{
			ID:                 uuid.Must(uuid.NewV4()),
			ReferrerDeviceID:   referrer.DeviceID,
			ReferredDeviceID:   "device_b",
			ReferrerExternalID: referrer.ExternalIdentityID,
			ReferredExternalID: strp("user_b"),
			CreditsAwarded:     5,
		},
	}
}

func TestAuditRepo_ApplyReferral_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAuditRepo(db)
	g := sampleGrant()

	after := sampleAccount()
	after.ID = g.RefereeID
	after.Credits = 15
	after.ReferredBy = strp(g.Code)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE accounts SET referred_by=\$2, credits=credits\+\$3, pending_referral_code=NULL, updated_at=now\(\) WHERE id=\$1 AND referred_by IS NULL`).
		WithArgs(g.RefereeID, g.Code, int64(5)).
		WillReturnRows(accountRows(after))
	mock.ExpectExec(`UPDATE accounts SET credits=credits\+\$2, updated_at=now\(\) WHERE id=\$1`).
		WithArgs(g.Referrer.ID, int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO referral_logs`).
		WithArgs(g.Log.ID, g.Log.ReferrerDeviceID, g.Log.ReferredDeviceID,
			g.Log.ReferrerExternalID, g.Log.ReferredExternalID, int64(5)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	got, err := r.ApplyReferral(context.Background(), g)
	require.NoError(t, err)
	require.Equal(t, int64(15), got.Credits)
	require.Equal(t, g.Code, *got.ReferredBy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_ApplyReferral_AlreadyReferred(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAuditRepo(db)
	g := sampleGrant()

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE accounts SET referred_by=\$2`).
		WithArgs(g.RefereeID, g.Code, int64(5)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := r.ApplyReferral(context.Background(), g)
	require.ErrorIs(t, err, errs.ErrVersionConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_ApplyReferral_ReferrerGone(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAuditRepo(db)
	g := sampleGrant()

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE accounts SET referred_by=\$2`).
		WithArgs(g.RefereeID, g.Code, int64(5)).
		WillReturnRows(accountRows(sampleAccount()))
	mock.ExpectExec(`UPDATE accounts SET credits=credits\+\$2`).
		WithArgs(g.Referrer.ID, int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	_, err := r.ApplyReferral(context.Background(), g)
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_RecordAdWatch(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAuditRepo(db)
	l := model.AdWatchLog{ID: uuid.Must(uuid.NewV4()), DeviceID: "device_a", ExternalID: strp("user_a"), CreditsEarned: 1}

	mock.ExpectExec(`INSERT INTO ad_watch_logs \(id, device_id, external_id, credits_earned\)`).
		WithArgs(l.ID, l.DeviceID, l.ExternalID, int64(1)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.RecordAdWatch(context.Background(), l))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_ReferralsBy(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAuditRepo(db)
	ts := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{
		"id", "referrer_device_id", "referred_device_id", "referrer_external_id",
		"referred_external_id", "credits_awarded", "created_at",
	}).AddRow(uuid.Must(uuid.NewV4()), "device_a", "device_b", strp("user_a"), strp("user_b"), int64(5), ts)
	mock.ExpectQuery(`FROM referral_logs WHERE referrer_external_id=\$1 ORDER BY created_at DESC`).
		WithArgs("user_a").
		WillReturnRows(rows)

	got, err := r.ReferralsBy(context.Background(), "user_a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "user_b", *got[0].ReferredExternalID)
	require.Equal(t, ts, got[0].CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_Leaderboard(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAuditRepo(db)

	rows := pgxmock.NewRows([]string{"referrer_external_id", "referrals"}).
		AddRow("user_a", int64(7)).
		AddRow("user_b", int64(3))
	mock.ExpectQuery(`SELECT referrer_external_id, COUNT\(\*\) AS referrals FROM referral_logs`).
		WithArgs(10).
		WillReturnRows(rows)

	got, err := r.Leaderboard(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, []model.LeaderboardEntry{
		{Rank: 1, ExternalID: "user_a", ReferralCount: 7},
		{Rank: 2, ExternalID: "user_b", ReferralCount: 3},
	}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}
