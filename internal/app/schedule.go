package service

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"github.com/okian/churnscore/internal/domain/scoring"
	"github.com/okian/churnscore/pkg/logger"
	"github.com/okian/churnscore/pkg/metrics"
)

// ModelLoader fetches the model a batch run should score with.
type ModelLoader func(ctx context.Context) (scoring.Model, error)

// ValidateSchedule reports whether schedule is a cron expression the batch
// scheduler accepts.
func ValidateSchedule(schedule string) error {
	if !gronx.New().IsValid(schedule) {
		return fmt.Errorf("%w: %q", ErrInvalidSchedule, schedule)
	}
	return nil
}

// RunScheduled runs RunBatch at every tick of the cron expression until ctx
// is canceled. Every tick first loads a fresh model through load, so a newly
// promoted version is picked up by the next run. A failed load fails that
// run. Each run is still all-or-nothing; a failed run is logged and the next
// tick is awaited.
func (s *Service) RunScheduled(ctx context.Context, schedule string, load ModelLoader) error {
	if err := ValidateSchedule(schedule); err != nil {
		return err
	}
	if load == nil {
		return fmt.Errorf("%w: no model loader", scoring.ErrInvalidModel)
	}
	log := s.logger.With(logger.String("schedule", schedule))

	for ctx.Err() == nil {
		now := s.now()
		next, err := gronx.NextTickAfter(schedule, now, false)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
		}
		wait := next.Sub(now)
		log.Info(ctx, "next batch run scheduled", logger.String("at", next.Format(time.RFC3339)))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info(ctx, "batch scheduler stopped")
			return nil
		case <-timer.C:
		}

		if err := s.runTick(ctx, load); err != nil {
			log.Warn(ctx, "scheduled batch run failed, waiting for next tick", logger.Error(err))
		}
	}
	return nil
}

func (s *Service) runTick(ctx context.Context, load ModelLoader) error {
	start := s.now()
	m, err := load(ctx)
	if err == nil {
		err = s.LoadModel(ctx, m)
	}
	if err != nil {
		metrics.RecordBatchRun("failed", s.now().Sub(start))
		return fmt.Errorf("reload model: %w", err)
	}
	_, err = s.RunBatch(ctx)
	return err
}
