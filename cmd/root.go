package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/churnscore/internal/adapters/registry"
	"github.com/okian/churnscore/internal/adapters/repository"
	service "github.com/okian/churnscore/internal/app"
	"github.com/okian/churnscore/internal/config"
	"github.com/okian/churnscore/internal/domain/policy"
	"github.com/okian/churnscore/internal/domain/scoring"
	"github.com/okian/churnscore/pkg/logger"
)

// runtimeEnv is what every subcommand shares once the root has loaded
// configuration and logging.
type runtimeEnv struct {
	cfg *config.Config
	log logger.Logger
}

func newRootCmd() *cobra.Command {
	env := &runtimeEnv{}
	root := &cobra.Command{
		Use:           "churnscore",
		Short:         "Churn scoring service",
		Long:          "Scores customer churn risk in nightly batches and on demand, and recommends a retention action per user.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return env.init(cmd.Context())
		},
	}
	root.AddCommand(
		newServeCmd(env),
		newBatchCmd(env),
		newQualityCmd(env),
		newModelCmd(env),
	)
	return root
}

// init loads configuration (defaults -> optional file -> env) and sets up
// logging from it.
func (e *runtimeEnv) init(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	e.cfg = cfg
	e.log = logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		e.log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return nil
}

// openStore connects to the feature store and result sinks.
func (e *runtimeEnv) openStore(ctx context.Context) (*repository.Postgres, error) {
	store, err := repository.Connect(ctx, e.cfg.DatabaseURL,
		repository.WithFeatureTable(e.cfg.FeatureTable),
		repository.WithResultsSchema(e.cfg.ResultsSchema),
		repository.WithScoresTable(e.cfg.ScoresTable),
		repository.WithTargetsTable(e.cfg.TargetsTable),
		repository.WithLogger(e.log.Named("repository")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to feature store: %w", err)
	}
	return store, nil
}

// newService builds the scoring service from configuration. sink may be nil
// for processes that never run a batch.
func (e *runtimeEnv) newService(store service.FeatureStore, sink service.ResultSink) (*service.Service, error) {
	batch, err := policy.New(policy.Name(e.cfg.BatchPolicy), e.cfg.Constants())
	if err != nil {
		return nil, err
	}
	online, err := policy.New(policy.Name(e.cfg.OnlinePolicy), e.cfg.Constants())
	if err != nil {
		return nil, err
	}
	opts := []service.Option{
		service.WithBatchPolicy(batch),
		service.WithOnlinePolicy(online),
		service.WithTopN(e.cfg.TopN),
		service.WithBatchWorkers(e.cfg.BatchWorkers),
		service.WithStrictCategories(e.cfg.StrictCategories),
		service.WithLogger(e.log.Named("service")),
	}
	if sink != nil {
		opts = append(opts, service.WithResultSink(sink))
	}
	return service.New(store, opts...), nil
}

// fetchModel reads the configured artifact from the registry.
func (e *runtimeEnv) fetchModel(ctx context.Context) (scoring.Model, error) {
	var m scoring.Model
	err := e.withRegistry(ctx, func(reg *registry.Registry) error {
		var err error
		m, err = reg.Load(ctx, e.cfg.ModelName, e.cfg.ModelVersion)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load model %s@%s: %w", e.cfg.ModelName, e.cfg.ModelVersion, err)
	}
	return m, nil
}

// loadModel reads the configured artifact from the registry into svc.
func (e *runtimeEnv) loadModel(ctx context.Context, svc *service.Service) error {
	m, err := e.fetchModel(ctx)
	if err != nil {
		return err
	}
	return svc.LoadModel(ctx, m)
}
