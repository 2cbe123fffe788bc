package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"atelier/internal/cli"
	"atelier/internal/config"
	apphttp "atelier/internal/http"
	"atelier/internal/log"
	"atelier/internal/scheduler"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentApp)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := cli.SignalContext()
	defer stop()

	rt, err := cli.InitRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Error("Failed to close runtime", log.FieldError, err)
		}
	}()

	jobs := scheduler.New(time.Minute)
	err = jobs.Add("purge-idempotency-keys", "@every 1h", func(ctx context.Context) error {
		n, err := rt.Backend.Store.PurgeIdempotency(ctx, time.Now().Add(-cfg.IdempotencyTTL))
		if err == nil && n > 0 {
			logger.Info("Purged idempotency keys", "count", n)
		}
		return err
	})
	if err != nil {
		return err
	}
	jobs.Start()

	srv := apphttp.NewServer(":"+cfg.Port, rt.Service, apphttp.Options{
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		AllowedOrigins:     cfg.AllowedOrigins,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting atelier server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", "timeout", cfg.ShutdownTimeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := jobs.Stop(shutdownCtx); err != nil {
			logger.Warn("Scheduler did not stop in time", log.FieldError, err)
		}
		requests, limited, suspicious := srv.Metrics()
		logger.Info("Request totals", "requests", requests, "rate_limited", limited, "suspicious", suspicious)
		return nil
	})
	return g.Wait()
}
