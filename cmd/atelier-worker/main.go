package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"atelier/internal/cli"
	"atelier/internal/config"
	"atelier/internal/log"
	"atelier/internal/scheduler"
	"atelier/internal/services"
	"atelier/internal/sheets"
	gsheet "atelier/internal/sheets/google"
	mem "atelier/internal/sheets/memory"
	"atelier/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentWorker)
	logger.Info("Starting atelier-worker")

	if err := run(cfg, logger); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := cli.SignalContext()
	defer stop()

	rt, err := cli.InitRuntime(ctx, cfg, logger, services.WithoutSummaryCache())
	if err != nil {
		return err
	}
	defer rt.Close()
	svc, res := rt.Service, rt.Backend

	var exporter sheets.Exporter
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			return err
		}
		exporter = client
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		exporter = mem.New()
		logger.Info("Google Sheets disabled, exporting to memory")
	}

	syncer := worker.NewSyncWorker(svc, exporter, cfg.ExportConcurrency)

	logger.Info("Performing startup sync check...")
	if err := syncer.StartupSyncCheck(ctx); err != nil {
		// Don't exit - the schedule and the event stream retry
		logger.Error("Failed startup sync check", log.FieldError, err)
	}

	jobs := scheduler.New(0)
	if cfg.ExportSchedule != "" {
		if err := jobs.Add("full-export", cfg.ExportSchedule, syncer.FullExport); err != nil {
			return err
		}
	}
	jobs.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := jobs.Stop(stopCtx); err != nil {
			logger.Warn("Scheduler did not stop in time", log.FieldError, err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	if res.Publisher != nil {
		g.Go(func() error {
			err := res.Publisher.Consume(gctx, syncer.HandleEvent)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Warn("AMQP unavailable, relying on scheduled exports only")
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down worker...")
		return nil
	})
	return g.Wait()
}
