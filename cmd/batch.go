package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	service "github.com/okian/churnscore/internal/app"
)

func newBatchCmd(env *runtimeEnv) *cobra.Command {
	var schedule string
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Score every user and replace the result tables",
		Long: `Score every row of the feature table with the batch policy, then replace
the churn scores and retention targets in one transaction. Nothing is written
when any row fails. With --schedule the run repeats on a cron schedule until
the process is signalled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if schedule != "" {
				if err := service.ValidateSchedule(schedule); err != nil {
					return err
				}
			}
			return env.batch(cmd.Context(), schedule)
		},
	}
	cmd.Flags().StringVar(&schedule, "schedule", "", `cron expression, e.g. "0 3 * * *"; empty runs once`)
	return cmd
}

func (e *runtimeEnv) batch(ctx context.Context, schedule string) error {
	store, err := e.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	svc, err := e.newService(store, store)
	if err != nil {
		return err
	}
	if schedule != "" {
		return svc.RunScheduled(ctx, schedule, e.fetchModel)
	}
	if err := e.loadModel(ctx, svc); err != nil {
		return err
	}
	report, err := svc.RunBatch(ctx)
	if err != nil {
		return fmt.Errorf("batch run %s failed: %w", report.RunID, err)
	}
	return nil
}
