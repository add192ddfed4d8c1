// Package service orchestrates feature alignment, scoring and the action
// policy for the batch and online paths. Both paths share one aligner, one
// scorer and explicitly named policies.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/okian/churnscore/internal/domain/features"
	"github.com/okian/churnscore/internal/domain/model"
	"github.com/okian/churnscore/internal/domain/policy"
	"github.com/okian/churnscore/internal/domain/scoring"
	"github.com/okian/churnscore/pkg/logger"
	"github.com/okian/churnscore/pkg/metrics"
)

// Scoring modes, used as metric labels.
const (
	ModeBatch  = "batch"
	ModeOnline = "online"
)

// DefaultTopN is the size of the retention target list.
const DefaultTopN = 500

// FeatureStore reads feature rows. FetchByUserID returns an error wrapping
// repository.ErrNotFound when the user has no row.
type FeatureStore interface {
	FetchAll(ctx context.Context) ([]model.FeatureRecord, error)
	FetchByUserID(ctx context.Context, userID int64) (model.FeatureRecord, error)
}

// ResultSink replaces the full scored table and the retention target table
// in a single unit of work.
type ResultSink interface {
	ReplaceResults(ctx context.Context, scores, targets []model.ScoringResult) error
}

// Service implements the scoring pipeline and the API dependencies.
type Service struct {
	store  FeatureStore
	sink   ResultSink
	handle *scoring.Handle
	scorer *scoring.Scorer

	batchPolicy  policy.Policy
	onlinePolicy policy.Policy

	topN             int
	workers          int
	strictCategories bool

	now    func() time.Time
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithResultSink sets where batch results are written.
func WithResultSink(sink ResultSink) Option {
	return func(s *Service) {
		s.sink = sink
	}
}

// WithHandle shares an existing model handle.
func WithHandle(h *scoring.Handle) Option {
	return func(s *Service) {
		if h != nil {
			s.handle = h
		}
	}
}

// WithBatchPolicy selects the policy used by RunBatch.
func WithBatchPolicy(p policy.Policy) Option {
	return func(s *Service) {
		if p != nil {
			s.batchPolicy = p
		}
	}
}

// WithOnlinePolicy selects the policy used by Predict.
func WithOnlinePolicy(p policy.Policy) Option {
	return func(s *Service) {
		if p != nil {
			s.onlinePolicy = p
		}
	}
}

// WithTopN sets how many retention targets a batch run keeps.
func WithTopN(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.topN = n
		}
	}
}

// WithBatchWorkers bounds the number of records scored concurrently.
func WithBatchWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithStrictCategories rejects records with categorical values the model
// never saw instead of scoring them as the reference category.
func WithStrictCategories(strict bool) Option {
	return func(s *Service) {
		s.strictCategories = strict
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service reading from store.
func New(store FeatureStore, opts ...Option) *Service {
	s := &Service{
		store:        store,
		handle:       scoring.NewHandle(),
		scorer:       scoring.NewScorer(),
		batchPolicy:  mustPolicy(policy.ExpectedValue),
		onlinePolicy: mustPolicy(policy.RiskTier),
		topN:         DefaultTopN,
		workers:      runtime.NumCPU(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("pipeline")
	}
	return s
}

func mustPolicy(name policy.Name) policy.Policy {
	p, err := policy.New(name, policy.DefaultConstants())
	if err != nil {
		panic(err)
	}
	return p
}

// LoadModel publishes m for scoring. Until it succeeds every scoring call
// fails with scoring.ErrModelNotReady.
func (s *Service) LoadModel(ctx context.Context, m scoring.Model) error {
	err := s.handle.Load(m,
		features.WithStrictCategories(s.strictCategories),
		features.WithUnseenCategoryHook(s.unseenCategory),
	)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	name, version, _ := s.handle.Describe()
	metrics.SetModelLoaded(name, version)
	s.logger.Info(ctx, "model loaded",
		logger.String("model", name),
		logger.String("version", version),
		logger.Int("features", m.Schema().Len()),
		logger.Bool("strict_categories", s.strictCategories),
	)
	return nil
}

// Ready reports whether a model is loaded. It never touches the store.
func (s *Service) Ready() bool {
	return s.handle.Ready()
}

// ModelInfo returns the loaded model's name and version.
func (s *Service) ModelInfo() (name, version string, ok bool) {
	return s.handle.Describe()
}

func (s *Service) unseenCategory(userID int64, field, value string) {
	metrics.RecordUnseenCategory(field)
	s.logger.Debug(context.Background(), "categorical value unseen by model",
		logger.Int64("user_id", userID),
		logger.String("field", field),
		logger.String("value", value),
	)
}

// score aligns, scores and decides one record.
func (s *Service) score(
	mode string,
	cur scoring.Loaded,
	pol policy.Policy,
	rec model.FeatureRecord,
	runDate time.Time,
) (model.ScoringResult, error) {
	start := time.Now()
	vec, err := cur.Aligner.Align(rec, cur.Model.Schema())
	if err != nil {
		metrics.RecordScoringError(mode, errorKind(err))
		return model.ScoringResult{}, fmt.Errorf("align user %d: %w", rec.UserID, err)
	}
	p, err := s.scorer.Score(vec, cur.Model)
	if err != nil {
		metrics.RecordScoringError(mode, errorKind(err))
		return model.ScoringResult{}, fmt.Errorf("score user %d: %w", rec.UserID, err)
	}
	d := pol.Decide(p)
	metrics.RecordScoringLatency(mode, time.Since(start))
	return model.ScoringResult{
		UserID:              rec.UserID,
		ScoringDate:         rec.ScoringDate(runDate),
		ChurnProbability:    p,
		ExpectedUpliftValue: d.ExpectedUpliftValue,
		RecommendedAction:   string(d.Action),
		IsHighRisk:          d.IsHighRisk,
		TrafficSource:       rec.TrafficSource(),
	}, nil
}

// errorKind maps a scoring failure to a low-cardinality metric label.
func errorKind(err error) string {
	switch {
	case errors.Is(err, scoring.ErrModelNotReady):
		return "model_not_ready"
	case errors.Is(err, scoring.ErrSchemaMismatch):
		return "schema_mismatch"
	case errors.Is(err, scoring.ErrInvalidProbability):
		return "invalid_probability"
	case errors.Is(err, features.ErrFeatureMissing):
		return "feature_missing"
	case errors.Is(err, features.ErrInvalidFeatureValue):
		return "invalid_feature_value"
	case errors.Is(err, features.ErrUnseenCategory):
		return "unseen_category"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrDataSink):
		return "data_sink"
	default:
		return "internal"
	}
}
