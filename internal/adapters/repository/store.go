// Package repository reads feature rows from and writes scoring results to
// PostgreSQL.
package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Pool is the subset of *pgxpool.Pool the repository uses.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// resultColumns is the column order of both result tables.
var resultColumns = []string{ //nolint:gochecknoglobals // fixed column list
	"user_id",
	"scoring_date",
	"churn_probability",
	"expected_uplift_value",
	"recommended_action",
	"traffic_source",
}

const resultTableDDL = `CREATE TABLE IF NOT EXISTS %s (
	user_id BIGINT NOT NULL,
	scoring_date TIMESTAMPTZ NOT NULL,
	churn_probability DOUBLE PRECISION NOT NULL,
	expected_uplift_value DOUBLE PRECISION NOT NULL,
	recommended_action TEXT NOT NULL,
	traffic_source TEXT
)`
