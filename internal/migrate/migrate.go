// Package migrate applies the embedded goose migrations for the ledger schema.
package migrate

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/and161185/lookup-credits/migrations"
)

// gooseLogger routes goose output through zap.
type gooseLogger struct{ s *zap.SugaredLogger }

func (l gooseLogger) Printf(format string, v ...any) { l.s.Infof(format, v...) }
func (l gooseLogger) Fatalf(format string, v ...any) { l.s.Fatalf(format, v...) }

func open(dsn string, log *zap.Logger) (*sql.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(gooseLogger{s: log.Named("goose").Sugar()})
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, err
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// Up brings the schema to the latest embedded version and returns it.
func Up(ctx context.Context, dsn string, log *zap.Logger) (int64, error) {
	db, err := open(dsn, log)
	if err != nil {
		return 0, err
	}
	defer db.Close()
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return 0, fmt.Errorf("migrate up: %w", err)
	}
	return goose.GetDBVersionContext(ctx, db)
}
