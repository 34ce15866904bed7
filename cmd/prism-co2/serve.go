package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"time"

	"github.com/renjie/prism-co2/pkg/adapters/httpapi"
	"github.com/renjie/prism-co2/pkg/adapters/storage"
	"github.com/renjie/prism-co2/pkg/metrics"
)

func serveCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to the YAML config file")
	addr := fs.String("addr", "", "Listen address (overrides config)")
	dbPath := fs.String("db", "", "sqlite database (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, closeLog, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer closeLog()
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Storage.SQLitePath = *dbPath
	}
	if cfg.Storage.SQLitePath == "" {
		return errors.New("serve needs storage.sqlite_path")
	}

	repo, err := storage.Open(ctx, cfg.Storage.SQLitePath, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpapi.NewRouter(repo, metrics.New(), logger),
		IdleTimeout:       30 * time.Second,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", srv.Addr).Infof("starting prism-co2 API (v%s)", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("graceful shutdown failed; forcing close")
			_ = srv.Close()
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}
