package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/churnscore/internal/adapters/repository"
	"github.com/okian/churnscore/internal/domain/model"
	"github.com/okian/churnscore/pkg/logger"
	"github.com/okian/churnscore/pkg/metrics"
)

// Predict scores one user with the online policy. The readiness gate is
// checked before the store is queried.
func (s *Service) Predict(ctx context.Context, userID int64) (model.ScoringResult, error) {
	cur, err := s.handle.Current()
	if err != nil {
		metrics.RecordScoringError(ModeOnline, errorKind(err))
		return model.ScoringResult{}, err
	}

	rec, err := s.store.FetchByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			err = fmt.Errorf("%w: %d", ErrUserNotFound, userID)
		} else {
			err = fmt.Errorf("fetch features for user %d: %w", userID, err)
		}
		metrics.RecordScoringError(ModeOnline, errorKind(err))
		return model.ScoringResult{}, err
	}

	result, err := s.score(ModeOnline, cur, s.onlinePolicy, rec, s.now())
	if err != nil {
		s.logger.Error(ctx, "online scoring failed", logger.Int64("user_id", userID), logger.Error(err))
		return model.ScoringResult{}, err
	}
	metrics.RecordPrediction(ModeOnline, string(s.onlinePolicy.Name()), result.RecommendedAction)
	return result, nil
}
