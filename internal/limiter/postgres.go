package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/blake2b"
)

// PG is a PostgreSQL-backed limiter implementation with sliding window and lockout.
type PG struct {
	pool     pgxQuerier
	clk      clockwork.Clock
	window   time.Duration
	maxFails int
	blockFor time.Duration
}

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPG constructs a PostgreSQL-backed limiter. A nil clock means wall time.
func NewPG(q pgxQuerier, clk clockwork.Clock, window time.Duration, maxFails int, blockFor time.Duration) *PG {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &PG{pool: q, clk: clk, window: window, maxFails: maxFails, blockFor: blockFor}
}

// HashIP returns a keyed hash of an IP string so raw addresses are never stored.
func HashIP(ip string, pepper []byte) []byte {
	key := pepper
	if len(key) > blake2b.Size {
		k := blake2b.Sum256(pepper)
		key = k[:]
	}
	h, err := blake2b.New256(key)
	if err != nil {
		// unreachable: key length is bounded above
		sum := blake2b.Sum256([]byte(ip))
		return sum[:]
	}
	h.Write([]byte(ip))
	return h.Sum(nil)
}

// Allow reports whether redemption is currently allowed and a retry-after duration.
func (l *PG) Allow(ctx context.Context, subject string, ipHash []byte) (bool, time.Duration, error) {
	const q = `SELECT blocked_until FROM redeem_limiter WHERE subject=$1 AND ip_hash=$2`
	var blockedUntil time.Time
	err := l.pool.QueryRow(ctx, q, subject, ipHash).Scan(&blockedUntil)
	switch {
	case err == nil:
		now := l.clk.Now()
		if blockedUntil.After(now) {
			return false, blockedUntil.Sub(now), nil
		}
		return true, 0, nil
	case errors.Is(err, pgx.ErrNoRows):
		return true, 0, nil
	default:
		return false, 0, err
	}
}

// Success resets counters for (subject, ip).
func (l *PG) Success(ctx context.Context, subject string, ipHash []byte) error {
	const q = `
INSERT INTO redeem_limiter (subject, ip_hash, fail_count, blocked_until, updated_at)
VALUES ($1,$2,0,'epoch',$3)
ON CONFLICT (subject, ip_hash)
DO UPDATE SET fail_count=0, blocked_until='epoch', updated_at=$3`
	_, err := l.pool.Exec(ctx, q, subject, ipHash, l.clk.Now())
	return err
}

// Failure records a failed attempt; may set a block until a future time.
// Failures older than the window restart the count.
func (l *PG) Failure(ctx context.Context, subject string, ipHash []byte) (bool, time.Duration, error) {
	now := l.clk.Now()

	const q = `
INSERT INTO redeem_limiter (subject, ip_hash, fail_count, blocked_until, updated_at)
VALUES ($1,$2,1,'epoch',$3)
ON CONFLICT (subject, ip_hash) DO UPDATE
SET
  fail_count = CASE WHEN redeem_limiter.updated_at < $4 THEN 1 ELSE redeem_limiter.fail_count + 1 END,
  updated_at = $3
RETURNING fail_count`
	var fails int
	if err := l.pool.QueryRow(ctx, q, subject, ipHash, now, now.Add(-l.window)).Scan(&fails); err != nil {
		return false, 0, err
	}
	if fails >= l.maxFails {
		blockUntil := now.Add(l.blockFor)
		const upd = `UPDATE redeem_limiter SET blocked_until=$3 WHERE subject=$1 AND ip_hash=$2`
		if _, err := l.pool.Exec(ctx, upd, subject, ipHash, blockUntil); err != nil {
			return false, 0, err
		}
		return true, l.blockFor, nil
	}
	return false, 0, nil
}

// Prune deletes rows not touched since before whose block has lapsed.
func (l *PG) Prune(ctx context.Context, before time.Time) (int64, error) {
	const q = `DELETE FROM redeem_limiter WHERE updated_at < $1 AND blocked_until < $2`
	tag, err := l.pool.Exec(ctx, q, before, l.clk.Now())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
