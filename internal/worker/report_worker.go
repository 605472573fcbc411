// Package worker produces scheduled per-tenant rollup reports.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"riel/internal/amqp"
	"riel/internal/core"
	"riel/internal/export"
	"riel/internal/ledger"
)

// ReportPublisher announces finished reports. Nil publisher means
// reports are written to disk only.
type ReportPublisher interface {
	PublishReportReady(ctx context.Context, msg *amqp.ReportReadyMessage) error
}

// ReportWorker walks every known tenant, renders the closed period's
// entries to CSV and publishes a report-ready message per tenant.
type ReportWorker struct {
	store     ledger.EntryStore
	publisher ReportPublisher
	exportDir string
	loc       *time.Location
}

func NewReportWorker(store ledger.EntryStore, publisher ReportPublisher, exportDir string, loc *time.Location) *ReportWorker {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportWorker{
		store:     store,
		publisher: publisher,
		exportDir: exportDir,
		loc:       loc,
	}
}

// RunPeriod generates reports for the period containing ref. A failing
// tenant is logged and skipped so one broken partition never blocks the
// rest of the run. Returns how many reports were written.
func (w *ReportWorker) RunPeriod(ctx context.Context, period core.Period, ref time.Time) (int, error) {
	start, end, label, err := core.RangeFor(period, ref, w.loc)
	if err != nil {
		return 0, err
	}

	tenants, err := w.store.Tenants(ctx)
	if err != nil {
		return 0, fmt.Errorf("list tenants: %w", err)
	}

	slog.InfoContext(ctx, "Report run starting",
		"period", string(period), "label", label, "tenants", len(tenants))

	written := 0
	for _, tenantID := range tenants {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		ok, err := w.reportTenant(ctx, tenantID, period, label, start, end)
		if err != nil {
			slog.ErrorContext(ctx, "Tenant report failed",
				"tenant_id", tenantID, "period", string(period), "error", err)
			continue
		}
		if ok {
			written++
		}
	}

	slog.InfoContext(ctx, "Report run complete",
		"period", string(period), "label", label, "written", written)
	return written, nil
}

// reportTenant writes one tenant's report. Tenants with no entries in
// the period are skipped without a file.
func (w *ReportWorker) reportTenant(ctx context.Context, tenantID string, period core.Period, label string, start, end time.Time) (bool, error) {
	entries, err := w.store.ListBetween(ctx, tenantID, start, end, ledger.Filter{})
	if err != nil {
		return false, fmt.Errorf("list entries: %w", err)
	}
	if len(entries) == 0 {
		return false, nil
	}

	path, err := export.WriteReportFile(w.exportDir, tenantID, string(period), label, entries, w.loc)
	if err != nil {
		return false, fmt.Errorf("write report: %w", err)
	}

	total := core.FormatAmount(core.SumEntries(entries))
	slog.InfoContext(ctx, "Tenant report written",
		"tenant_id", tenantID, "period", string(period),
		"rows", len(entries), "total", total, "file", path)

	if w.publisher != nil {
		msg := amqp.NewReportReadyMessage(tenantID, string(period), label, len(entries), total, filepath.Base(path))
		if err := w.publisher.PublishReportReady(ctx, msg); err != nil {
			// The file is already on disk; a lost notification is not
			// worth failing the tenant over.
			slog.ErrorContext(ctx, "Failed to publish report message",
				"tenant_id", tenantID, "error", err)
		}
	}
	return true, nil
}
