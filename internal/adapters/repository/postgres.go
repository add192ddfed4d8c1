package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/churnscore/internal/domain/model"
	"github.com/okian/churnscore/internal/domain/quality"
	"github.com/okian/churnscore/pkg/logger"
)

// Postgres is the feature store and result sink.
type Postgres struct {
	db           Pool
	queryBuilder sq.StatementBuilderType

	featureTable  string
	resultsSchema string
	scoresTable   string
	targetsTable  string

	logger logger.Logger
}

// New wraps an open pool.
func New(db Pool, opts ...Option) *Postgres {
	p := &Postgres{
		db:            db,
		queryBuilder:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		featureTable:  DefaultFeatureTable,
		resultsSchema: DefaultResultsSchema,
		scoresTable:   DefaultScoresTable,
		targetsTable:  DefaultTargetsTable,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named("repository")
	}
	return p
}

// Connect opens a pgx pool for dsn and verifies it with a ping.
func Connect(ctx context.Context, dsn string, opts ...Option) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to reach database: %w", err)
	}
	return New(pool, opts...), nil
}

// Ping checks the connection.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.db.Close()
}

// FetchAll returns every row of the feature table.
func (p *Postgres) FetchAll(ctx context.Context) ([]model.FeatureRecord, error) {
	table, err := sanitizeTable(p.featureTable)
	if err != nil {
		return nil, err
	}
	query, args, err := p.queryBuilder.Select("*").From(table).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build feature query: %w", err)
	}
	return p.fetch(ctx, query, args...)
}

// FetchByUserID returns the feature row of one user or ErrNotFound.
func (p *Postgres) FetchByUserID(ctx context.Context, userID int64) (model.FeatureRecord, error) {
	table, err := sanitizeTable(p.featureTable)
	if err != nil {
		return model.FeatureRecord{}, err
	}
	query, args, err := p.queryBuilder.Select("*").From(table).Where(sq.Eq{model.ColumnUserID: userID}).ToSql()
	if err != nil {
		return model.FeatureRecord{}, fmt.Errorf("build feature query: %w", err)
	}
	records, err := p.fetch(ctx, query, args...)
	if err != nil {
		return model.FeatureRecord{}, err
	}
	if len(records) == 0 {
		return model.FeatureRecord{}, fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	return records[0], nil
}

func (p *Postgres) fetch(ctx context.Context, query string, args ...any) ([]model.FeatureRecord, error) {
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query features: %w", err)
	}
	raw, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("read features: %w", err)
	}
	records := make([]model.FeatureRecord, 0, len(raw))
	for _, fields := range raw {
		rec, err := toRecord(fields)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// toRecord normalizes driver values so the domain never sees pgx types.
func toRecord(fields map[string]any) (model.FeatureRecord, error) {
	for k, v := range fields {
		fields[k] = normalize(v)
	}
	id, err := userID(fields[model.ColumnUserID])
	if err != nil {
		return model.FeatureRecord{}, err
	}
	return model.FeatureRecord{UserID: id, Fields: fields}, nil
}

func normalize(v any) any {
	switch x := v.(type) {
	case pgtype.Numeric:
		if !x.Valid {
			return nil
		}
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case pgtype.Date:
		if !x.Valid {
			return nil
		}
		return x.Time
	case pgtype.Timestamp:
		if !x.Valid {
			return nil
		}
		return x.Time
	case pgtype.Timestamptz:
		if !x.Valid {
			return nil
		}
		return x.Time
	default:
		return v
	}
}

func userID(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int32:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int:
		return int64(x), nil
	case float64:
		// NUMERIC ids arrive as float64; 2^63 itself is out of range.
		if x != math.Trunc(x) || x < math.MinInt64 || x >= math.MaxInt64 {
			return 0, fmt.Errorf("%w: %v is not an integer", ErrInvalidUserID, x)
		}
		return int64(x), nil
	case nil:
		return 0, fmt.Errorf("%w: feature row without %s", ErrInvalidUserID, model.ColumnUserID)
	default:
		return 0, fmt.Errorf("%w: unsupported %s type %T", ErrInvalidUserID, model.ColumnUserID, v)
	}
}

// FeatureStats computes row count, distinct user ids and non-null counts for
// the requested columns in one scan.
func (p *Postgres) FeatureStats(ctx context.Context, notNullColumns ...string) (quality.TableStats, error) {
	table, err := sanitizeTable(p.featureTable)
	if err != nil {
		return quality.TableStats{}, err
	}
	cols := []string{"COUNT(*)", "COUNT(DISTINCT " + pgx.Identifier{model.ColumnUserID}.Sanitize() + ")"}
	for _, c := range notNullColumns {
		cols = append(cols, "COUNT("+pgx.Identifier{c}.Sanitize()+")")
	}
	query, args, err := p.queryBuilder.Select(cols...).From(table).ToSql()
	if err != nil {
		return quality.TableStats{}, fmt.Errorf("build stats query: %w", err)
	}

	stats := quality.TableStats{NonNull: make(map[string]int64, len(notNullColumns))}
	nonNull := make([]int64, len(notNullColumns))
	dest := []any{&stats.Rows, &stats.DistinctUserIDs}
	for i := range nonNull {
		dest = append(dest, &nonNull[i])
	}
	if err := p.db.QueryRow(ctx, query, args...).Scan(dest...); err != nil {
		return quality.TableStats{}, fmt.Errorf("scan stats: %w", err)
	}
	for i, c := range notNullColumns {
		stats.NonNull[c] = nonNull[i]
	}
	return stats, nil
}

// ReplaceResults replaces the scored table and the retention target table in
// one transaction. Readers see either the previous run or this one.
func (p *Postgres) ReplaceResults(ctx context.Context, scores, targets []model.ScoringResult) error {
	start := time.Now()
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	if err := p.replaceResults(ctx, tx, scores, targets); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			p.logger.Error(ctx, "rollback failed", logger.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	p.logger.Info(ctx, "results replaced",
		logger.String("schema", p.resultsSchema),
		logger.Int("scores", len(scores)),
		logger.Int("targets", len(targets)),
		logger.Duration("duration", time.Since(start)),
	)
	return nil
}

func (p *Postgres) replaceResults(ctx context.Context, tx pgx.Tx, scores, targets []model.ScoringResult) error {
	if _, err := tx.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{p.resultsSchema}.Sanitize()); err != nil {
		return fmt.Errorf("create schema %s: %w", p.resultsSchema, err)
	}
	for _, t := range []struct {
		name string
		rows []model.ScoringResult
	}{
		{p.scoresTable, scores},
		{p.targetsTable, targets},
	} {
		if err := replaceTable(ctx, tx, pgx.Identifier{p.resultsSchema, t.name}, t.rows); err != nil {
			return err
		}
	}
	return nil
}

func replaceTable(ctx context.Context, tx pgx.Tx, table pgx.Identifier, rows []model.ScoringResult) error {
	name := table.Sanitize()
	if _, err := tx.Exec(ctx, fmt.Sprintf(resultTableDDL, name)); err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, "TRUNCATE TABLE "+name); err != nil {
		return fmt.Errorf("truncate %s: %w", name, err)
	}
	n, err := tx.CopyFrom(ctx, table, resultColumns, pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		r := rows[i]
		return []any{
			r.UserID,
			r.ScoringDate,
			r.ChurnProbability,
			r.ExpectedUpliftValue,
			r.RecommendedAction,
			r.TrafficSource.Ptr(),
		}, nil
	}))
	if err != nil {
		return fmt.Errorf("copy into %s: %w", name, err)
	}
	if n != int64(len(rows)) {
		return fmt.Errorf("%w: %s got %d of %d rows", ErrRowMismatch, name, n, len(rows))
	}
	return nil
}

// sanitizeTable quotes a possibly schema-qualified table name.
func sanitizeTable(table string) (string, error) {
	parts := strings.Split(table, ".")
	if len(parts) > 2 {
		return "", fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			return "", fmt.Errorf("%w: %q", ErrInvalidTable, table)
		}
	}
	return pgx.Identifier(parts).Sanitize(), nil
}
