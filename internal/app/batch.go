package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/churnscore/internal/domain/model"
	"github.com/okian/churnscore/internal/domain/policy"
	"github.com/okian/churnscore/pkg/logger"
	"github.com/okian/churnscore/pkg/metrics"
)

// BatchReport summarizes a committed batch run.
type BatchReport struct {
	RunID    uuid.UUID
	Scored   int
	Targets  int
	Actions  map[string]int
	Duration time.Duration
}

// RunBatch scores every row of the feature store with the batch policy and
// replaces both result tables. Any failure aborts the run before anything
// is written.
func (s *Service) RunBatch(ctx context.Context) (BatchReport, error) {
	start := s.now()
	report := BatchReport{RunID: uuid.New()}
	log := s.logger.With(
		logger.String("run_id", report.RunID.String()),
		logger.String("policy", string(s.batchPolicy.Name())),
	)

	fail := func(err error) (BatchReport, error) {
		report.Duration = s.now().Sub(start)
		metrics.RecordBatchRun("failed", report.Duration)
		log.Error(ctx, "batch run failed", logger.Error(err), logger.Duration("duration", report.Duration))
		return report, err
	}

	if s.sink == nil {
		return fail(fmt.Errorf("%w: no result sink configured", ErrDataSink))
	}
	cur, err := s.handle.Current()
	if err != nil {
		metrics.RecordScoringError(ModeBatch, errorKind(err))
		return fail(err)
	}

	records, err := s.store.FetchAll(ctx)
	if err != nil {
		return fail(fmt.Errorf("fetch features: %w", err))
	}
	log.Info(ctx, "scoring batch", logger.Int("users", len(records)), logger.Int("workers", s.workers))

	results := make([]model.ScoringResult, len(records))
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(s.workers)
	for i, rec := range records {
		i, rec := i, rec
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := s.score(ModeBatch, cur, s.batchPolicy, rec, start)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return fail(fmt.Errorf("batch aborted: %w", err))
	}

	targets := SelectTargets(results, s.topN)
	if err := s.sink.ReplaceResults(ctx, results, targets); err != nil {
		return fail(fmt.Errorf("%w: %w", ErrDataSink, err))
	}

	report.Scored = len(results)
	report.Targets = len(targets)
	report.Actions = make(map[string]int)
	for _, r := range results {
		report.Actions[r.RecommendedAction]++
		metrics.RecordPrediction(ModeBatch, string(s.batchPolicy.Name()), r.RecommendedAction)
	}
	report.Duration = s.now().Sub(start)
	metrics.RecordBatchRun("success", report.Duration)
	metrics.RecordBatchSuccess(report.Scored, report.Targets, start)

	log.Info(ctx, "batch run committed",
		logger.Int("scored", report.Scored),
		logger.Int("targets", report.Targets),
		logger.Any("actions", report.Actions),
		logger.Duration("duration", report.Duration),
	)
	return report, nil
}

// SelectTargets returns up to n results worth acting on, highest expected
// uplift value first. Ties are broken by ascending user id so repeated runs
// over the same data pick the same users.
func SelectTargets(results []model.ScoringResult, n int) []model.ScoringResult {
	if n <= 0 {
		return nil
	}
	targets := make([]model.ScoringResult, 0, min(n, len(results)))
	for _, r := range results {
		if r.RecommendedAction != string(policy.ActionNoAction) {
			targets = append(targets, r)
		}
	}
	slices.SortFunc(targets, func(a, b model.ScoringResult) int {
		if c := cmp.Compare(b.ExpectedUpliftValue, a.ExpectedUpliftValue); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
	if len(targets) > n {
		targets = targets[:n]
	}
	return targets
}
