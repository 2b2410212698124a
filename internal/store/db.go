package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

const applicationName = "dealops"

// Open connects to Postgres through the pgx driver. Connections are tagged
// with application_name so batch runs are visible in pg_stat_activity, and
// every statement is bounded by statementTimeout when it is positive.
func Open(ctx context.Context, databaseURL string, statementTimeout time.Duration) (*sql.DB, error) {
	cfg, err := pgx.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if _, ok := cfg.RuntimeParams["application_name"]; !ok {
		cfg.RuntimeParams["application_name"] = applicationName
	}
	if statementTimeout > 0 {
		cfg.RuntimeParams["statement_timeout"] = fmt.Sprintf("%d", statementTimeout.Milliseconds())
	}

	db := stdlib.OpenDB(*cfg)
	db.SetConnMaxIdleTime(time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	// One writer per run; a second connection covers the occasional count.
	db.SetMaxIdleConns(2)
	db.SetMaxOpenConns(2)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}
