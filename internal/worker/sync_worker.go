// Package worker mirrors ledger statements into a spreadsheet, reacting to
// ledger events and running periodic full exports.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"atelier/internal/amqp"
	"atelier/internal/core"
	"atelier/internal/ledger"
	"atelier/internal/sheets"

	"golang.org/x/sync/errgroup"
)

// StatementSource reconciles owners on demand. *services.LedgerService
// implements it.
type StatementSource interface {
	Statement(ctx context.Context, kind core.OwnerKind, id string) (ledger.Statement, error)
	Summaries(ctx context.Context, kind core.OwnerKind) ([]ledger.EntitySummary, error)
}

// OwnerKinds are exported in this order.
var OwnerKinds = []core.OwnerKind{core.OwnerProject, core.OwnerSupplier, core.OwnerTeamMember}

// SyncWorker handles synchronization of statements to the spreadsheet.
type SyncWorker struct {
	source      StatementSource
	sheets      sheets.Exporter
	concurrency int
	lastExport  atomic.Int64
}

func NewSyncWorker(source StatementSource, exporter sheets.Exporter, concurrency int) *SyncWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &SyncWorker{source: source, sheets: exporter, concurrency: concurrency}
}

// HandleEvent refreshes the statement of the owner an event touches, then
// that kind's summary tab. Errors are returned so the message is requeued.
func (w *SyncWorker) HandleEvent(ctx context.Context, e *amqp.LedgerEvent) error {
	kind := core.OwnerKind(e.OwnerKind)
	slog.InfoContext(ctx, "Processing ledger event",
		"id", e.ID,
		"type", e.Type,
		"owner_kind", kind,
		"owner_id", e.OwnerID)

	if e.Type == amqp.EventOwnerDeleted {
		if err := w.sheets.RemoveStatement(ctx, kind, e.OwnerID); err != nil {
			return fmt.Errorf("remove statement: %w", err)
		}
		return w.syncSummaries(ctx, kind)
	}

	if err := w.syncOwner(ctx, kind, e.OwnerID); err != nil {
		return err
	}
	return w.syncSummaries(ctx, kind)
}

// syncOwner writes one statement. An owner that no longer exists has its
// tab removed instead.
func (w *SyncWorker) syncOwner(ctx context.Context, kind core.OwnerKind, id string) error {
	st, err := w.source.Statement(ctx, kind, id)
	if core.KindOf(err) == core.KindNotFound {
		slog.InfoContext(ctx, "Owner gone, removing statement", "owner_kind", kind, "owner_id", id)
		if err := w.sheets.RemoveStatement(ctx, kind, id); err != nil {
			return fmt.Errorf("remove statement: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("build statement: %w", err)
	}

	ref, err := w.sheets.WriteStatement(ctx, st)
	if err != nil {
		return fmt.Errorf("write statement: %w", err)
	}
	slog.InfoContext(ctx, "Successfully synced statement",
		"owner_kind", kind,
		"owner_id", id,
		"sheets_range", ref,
		"outstanding", core.FormatAmount(st.Summary.Totals.Outstanding))
	return nil
}

func (w *SyncWorker) syncSummaries(ctx context.Context, kind core.OwnerKind) error {
	sums, err := w.source.Summaries(ctx, kind)
	if err != nil {
		return fmt.Errorf("summaries %s: %w", kind, err)
	}
	if _, err := w.sheets.WriteSummaries(ctx, kind, sums); err != nil {
		return fmt.Errorf("write summaries %s: %w", kind, err)
	}
	return nil
}

// FullExport rewrites every summary tab and every live owner's statement,
// with at most concurrency statements in flight. It keeps going past
// individual failures and reports them together.
func (w *SyncWorker) FullExport(ctx context.Context) error {
	start := time.Now()
	var (
		synced atomic.Int32
		failed atomic.Int32
		errs   = make(chan error, 16)
		all    []error
		done   = make(chan struct{})
	)
	go func() {
		for err := range errs {
			all = append(all, err)
		}
		close(done)
	}()

	for _, kind := range OwnerKinds {
		sums, err := w.source.Summaries(ctx, kind)
		if err != nil {
			errs <- fmt.Errorf("summaries %s: %w", kind, err)
			continue
		}
		if _, err := w.sheets.WriteSummaries(ctx, kind, sums); err != nil {
			errs <- fmt.Errorf("write summaries %s: %w", kind, err)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(w.concurrency)
		for _, s := range sums {
			g.Go(func() error {
				if err := w.syncOwner(gctx, kind, s.OwnerID); err != nil {
					failed.Add(1)
					slog.ErrorContext(gctx, "Failed to export statement",
						"owner_kind", kind, "owner_id", s.OwnerID, "error", err)
					errs <- fmt.Errorf("%s %s: %w", kind, s.OwnerID, err)
					return nil
				}
				synced.Add(1)
				return nil
			})
		}
		g.Wait()
		if ctx.Err() != nil {
			break
		}
	}
	close(errs)
	<-done

	if ctx.Err() != nil {
		all = append(all, ctx.Err())
	}
	if len(all) == 0 {
		w.lastExport.Store(time.Now().Unix())
	}
	slog.InfoContext(ctx, "Full export completed",
		"synced", synced.Load(),
		"errors", failed.Load(),
		"duration", time.Since(start))
	return errors.Join(all...)
}

// StartupSyncCheck runs a full export when the worker starts, to catch up
// on events missed while it was down.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	slog.InfoContext(ctx, "Running startup export")
	if err := w.FullExport(ctx); err != nil {
		return fmt.Errorf("startup export: %w", err)
	}
	return nil
}

// LastExport returns when the last fully successful export finished.
func (w *SyncWorker) LastExport() time.Time {
	sec := w.lastExport.Load()
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
