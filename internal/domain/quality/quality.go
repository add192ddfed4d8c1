// Package quality runs data quality checks over the feature table. The gate
// is independent of scoring: it reads aggregate statistics and never alters
// what the pipeline scores.
package quality

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/churnscore/pkg/logger"
	"github.com/okian/churnscore/pkg/metrics"
)

// Check names, also used as metric labels.
const (
	CheckRowCount     = "row_count"
	CheckUniqueUserID = "unique_user_id"
	CheckNotNull      = "not_null"
)

// ErrInvalidThresholds is returned for bounds that can never pass.
var ErrInvalidThresholds = errors.New("invalid quality thresholds")

// TableStats are the aggregates the checks run against.
type TableStats struct {
	Rows            int64
	DistinctUserIDs int64
	NonNull         map[string]int64
}

// Thresholds configure the checks.
type Thresholds struct {
	MinRows        int64
	MaxRows        int64
	NotNullRatio   float64 // fraction of rows that must be non-null, 1 means all
	NotNullColumns []string
}

// DefaultThresholds mirror the expectations the feature table shipped with.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinRows:        1000,
		MaxRows:        1_000_000,
		NotNullRatio:   1,
		NotNullColumns: []string{"recency_days", "frequency_60d"},
	}
}

// Validate rejects inverted or out-of-range bounds.
func (t Thresholds) Validate() error {
	if t.MinRows < 0 || (t.MaxRows > 0 && t.MaxRows < t.MinRows) {
		return fmt.Errorf("%w: rows must satisfy 0 <= min <= max, got [%d, %d]", ErrInvalidThresholds, t.MinRows, t.MaxRows)
	}
	if t.NotNullRatio < 0 || t.NotNullRatio > 1 {
		return fmt.Errorf("%w: not-null ratio %v outside [0, 1]", ErrInvalidThresholds, t.NotNullRatio)
	}
	return nil
}

// Result is the outcome of one check.
type Result struct {
	Check  string
	Column string
	Passed bool
	Detail string
}

// Report collects every check outcome of one run.
type Report struct {
	Results []Result
}

// Passed reports whether every check passed.
func (r Report) Passed() bool {
	for _, res := range r.Results {
		if !res.Passed {
			return false
		}
	}
	return true
}

// Failures returns the failed checks.
func (r Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.Passed {
			out = append(out, res)
		}
	}
	return out
}

func (r Report) String() string {
	var b strings.Builder
	for _, res := range r.Results {
		status := "PASS"
		if !res.Passed {
			status = "FAIL"
		}
		name := res.Check
		if res.Column != "" {
			name += "(" + res.Column + ")"
		}
		fmt.Fprintf(&b, "%s %s: %s\n", status, name, res.Detail)
	}
	return b.String()
}

// Evaluate applies the thresholds to precomputed statistics.
func Evaluate(stats TableStats, t Thresholds) Report {
	var rep Report

	rowsOK := stats.Rows >= t.MinRows && (t.MaxRows <= 0 || stats.Rows <= t.MaxRows)
	rep.Results = append(rep.Results, Result{
		Check:  CheckRowCount,
		Passed: rowsOK,
		Detail: fmt.Sprintf("%d rows, want [%d, %d]", stats.Rows, t.MinRows, t.MaxRows),
	})

	rep.Results = append(rep.Results, Result{
		Check:  CheckUniqueUserID,
		Column: "user_id",
		Passed: stats.DistinctUserIDs == stats.Rows,
		Detail: fmt.Sprintf("%d distinct of %d rows", stats.DistinctUserIDs, stats.Rows),
	})

	for _, col := range t.NotNullColumns {
		nonNull := stats.NonNull[col]
		ratio := 1.0
		if stats.Rows > 0 {
			ratio = float64(nonNull) / float64(stats.Rows)
		}
		rep.Results = append(rep.Results, Result{
			Check:  CheckNotNull,
			Column: col,
			Passed: ratio >= t.NotNullRatio,
			Detail: fmt.Sprintf("%d of %d rows non-null (%.4f), want >= %.4f", nonNull, stats.Rows, ratio, t.NotNullRatio),
		})
	}
	return rep
}

// StatsSource computes TableStats for the given not-null columns.
type StatsSource interface {
	FeatureStats(ctx context.Context, notNullColumns ...string) (TableStats, error)
}

// Run fetches statistics from src, evaluates them and records every outcome.
// The returned error is non-nil only when the checks could not run; a failed
// check is reported through Report.Passed.
func Run(ctx context.Context, src StatsSource, t Thresholds) (Report, error) {
	if err := t.Validate(); err != nil {
		return Report{}, err
	}
	stats, err := src.FeatureStats(ctx, t.NotNullColumns...)
	if err != nil {
		return Report{}, fmt.Errorf("collect feature stats: %w", err)
	}
	rep := Evaluate(stats, t)

	log := logger.Get().Named("quality")
	for _, res := range rep.Results {
		metrics.RecordQualityCheck(res.Check, res.Passed)
		fields := []logger.Field{
			logger.String("check", res.Check),
			logger.String("detail", res.Detail),
		}
		if res.Column != "" {
			fields = append(fields, logger.String("column", res.Column))
		}
		if res.Passed {
			log.Info(ctx, "quality check passed", fields...)
		} else {
			log.Error(ctx, "quality check failed", fields...)
		}
	}
	return rep, nil
}
