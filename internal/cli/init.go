// Package cli holds the start-up steps shared by cmd/atelier and
// cmd/atelier-worker.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"atelier/internal/backend"
	"atelier/internal/config"
	"atelier/internal/log"
	"atelier/internal/services"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from the configured level and
// format and installs it as the slog default.
func SetupLogger(cfg *config.Config, component string, out io.Writer) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: component,
		Format:    cfg.LogFormat,
		Output:    out,
	})
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(component string) (*config.Config, *log.Logger) {
	cfg := config.Load()
	logger := SetupLogger(cfg, component, os.Stdout)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// Runtime is the backend and the ledger service built on it.
type Runtime struct {
	Backend *backend.Result
	Service *services.LedgerService
}

// InitRuntime builds the backend described by cfg and a ledger service on
// top of it. Callers must Close the runtime.
func InitRuntime(ctx context.Context, cfg *config.Config, logger *log.Logger, opts ...services.Option) (*Runtime, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("backend config: %w", err)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}
	svc := services.NewLedgerService(res.Store, append(res.Options(), opts...)...)
	return &Runtime{Backend: res, Service: svc}, nil
}

// Close closes the service (publisher and store), then the cache.
func (rt *Runtime) Close() error {
	svcErr := rt.Service.Close()
	if err := rt.Backend.Close(); err != nil {
		if svcErr != nil {
			return fmt.Errorf("%w; %w", svcErr, err)
		}
		return err
	}
	return svcErr
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
