package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/okian/churnscore/internal/domain/quality"
)

var errQualityFailed = errors.New("feature quality checks failed")

func newQualityCmd(env *runtimeEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "quality",
		Short: "Check the feature table before scoring",
		Long:  "Check row count bounds, user_id uniqueness and not-null ratios of the feature table. Exits non-zero when any check fails.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return env.quality(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func (e *runtimeEnv) quality(ctx context.Context, out io.Writer) error {
	store, err := e.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	return checkQuality(ctx, store, e.cfg.QualityThresholds(), out)
}

func checkQuality(ctx context.Context, src quality.StatsSource, t quality.Thresholds, out io.Writer) error {
	report, err := quality.Run(ctx, src, t)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, report.String())
	if !report.Passed() {
		return fmt.Errorf("%w: %d of %d", errQualityFailed, len(report.Failures()), len(report.Results))
	}
	return nil
}
