package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/churnscore/internal/adapters/http/api"
	"github.com/okian/churnscore/internal/adapters/http/swagger"
	"github.com/okian/churnscore/internal/config"
	"github.com/okian/churnscore/pkg/logger"
)

// HTTP server timeout constants.
const (
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func newServeCmd(env *runtimeEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the online scoring API",
		Long:  "Start an HTTP server exposing /predict, /health, /metrics and the API docs. The model is loaded in the background; /health answers 503 until it is ready.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return env.serve(cmd.Context())
		},
	}
}

func (e *runtimeEnv) serve(ctx context.Context) error {
	store, err := e.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	svc, err := e.newService(store, nil)
	if err != nil {
		return err
	}

	go func() {
		if err := e.loadModel(ctx, svc); err != nil {
			e.log.Error(ctx, "model load failed; serving 503 until restart", logger.Error(err))
		}
	}()

	srv := newHTTPServer(ctx, e.cfg, svc)
	errCh := make(chan error, 1)
	go func() {
		e.log.Info(ctx, "starting HTTP server", logger.String("addr", e.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	e.log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		e.log.Error(ctx, "server shutdown failed", logger.Error(err))
		return err
	}
	e.log.Info(ctx, "server stopped")
	return nil
}

// newHTTPServer wires the API and docs routes. Read and write timeouts come
// from request_timeout_ms.
func newHTTPServer(ctx context.Context, cfg *config.Config, deps api.Dependencies) *http.Server {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(deps).Register(ctx, mux)

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       cfg.RequestTimeout(),
		WriteTimeout:      cfg.RequestTimeout(),
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}
