// Package postgres implements the account store on PostgreSQL. Writes that
// must not race (debits, key activation, referral grants) are conditional
// updates and multi-row changes run in one transaction.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxPool is what the repositories need from a pool. *pgxpool.Pool and
// pgxmock.PgxPoolIface both satisfy it.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Close()
}

// DB is shared by the account, entitlement and audit repositories.
type DB struct{ Pool PgxPool }

// New opens a pool for dsn and checks that the server answers.
func New(ctx context.Context, dsn string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &DB{Pool: pool}, nil
}

// Close closes the underlying pool.
func (db *DB) Close() { db.Pool.Close() }

// inTx runs fn in a transaction at the server default level; the race
// checks live in the conditional updates fn issues.
func (db *DB) inTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()
	return fn(tx)
}

const codeUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}
