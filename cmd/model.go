package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/churnscore/internal/adapters/registry"
	"github.com/okian/churnscore/pkg/logger"
)

func newModelCmd(env *runtimeEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Manage model artifacts in the registry",
	}

	var promote bool
	publish := &cobra.Command{
		Use:   "publish FILE",
		Short: "Validate and publish a model artifact",
		Long:  "Validate a model artifact JSON file and write it to the registry under <name>/<version>. With --promote the LATEST pointer moves to it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.publishModel(cmd.Context(), args[0], promote)
		},
	}
	publish.Flags().BoolVar(&promote, "promote", false, "point LATEST at the published version")

	show := &cobra.Command{
		Use:   "show [VERSION]",
		Short: "Print the resolved artifact",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version := env.cfg.ModelVersion
			if len(args) == 1 {
				version = args[0]
			}
			return env.showModel(cmd.Context(), version, cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(publish, show)
	return cmd
}

func (e *runtimeEnv) withRegistry(ctx context.Context, fn func(*registry.Registry) error) error {
	reg, err := registry.Open(ctx, e.cfg.RegistryURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := reg.Close(); err != nil {
			e.log.Warn(ctx, "failed to close model registry", logger.Error(err))
		}
	}()
	return fn(reg)
}

func (e *runtimeEnv) publishModel(ctx context.Context, file string, promote bool) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	a, err := decodeArtifact(f)
	if err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}
	return e.withRegistry(ctx, func(reg *registry.Registry) error {
		return reg.Publish(ctx, a, promote)
	})
}

func (e *runtimeEnv) showModel(ctx context.Context, version string, out io.Writer) error {
	return e.withRegistry(ctx, func(reg *registry.Registry) error {
		a, err := reg.LoadArtifact(ctx, e.cfg.ModelName, version)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(a)
	})
}

func decodeArtifact(r io.Reader) (registry.Artifact, error) {
	var a registry.Artifact
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&a); err != nil {
		return registry.Artifact{}, fmt.Errorf("%w: %w", registry.ErrInvalidArtifact, err)
	}
	return a, nil
}
