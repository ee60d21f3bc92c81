package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"vcmap/internal/dataset"
	"vcmap/internal/httpapi"
	"vcmap/internal/metrics"
	"vcmap/internal/store"
)

func runServe(cmd *cobra.Command, flags *rootFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	logger := httpapi.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	m := metrics.New()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := store.New(logger, cfg.DataPath, func(path string) (*dataset.Dataset, error) {
		return dataset.Load(path, dataset.Options{Aliases: cfg.Manifest.Aliases, Log: &logger})
	}, m)
	// A bad file is reported by the dashboard and /readyz; keep serving so a
	// fixed file can be picked up by the watcher.
	if err := st.Reload(); err != nil {
		logger.Error().Err(err).Str("path", cfg.DataPath).Msg("initial dataset load failed")
	}

	h := httpapi.NewHandler(logger, st, httpapi.Options{Metrics: m, Manifest: cfg.Manifest})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", cfg.HTTPAddr).Str("data", cfg.DataPath).Msg("vcmap listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Watch {
		w := store.NewWatcher(logger, st, 0)
		g.Go(func() error {
			if err := w.Run(gctx); err != nil {
				// Serving continues without hot reload.
				logger.Warn().Err(err).Msg("dataset watcher stopped")
			}
			return nil
		})
	}

	err = g.Wait()
	if err != nil {
		logger.Error().Err(err).Msg("server error")
	}
	logger.Info().Msg("shutdown complete")
	return err
}
