// Package worker runs the out-of-process reaction to change events: it
// recomputes the affected owner's dashboard summary and appends a snapshot
// row to the configured report destination.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/aggregate"
	"fintrack/internal/core"
	"fintrack/internal/feed"
	"fintrack/internal/report"
	"fintrack/internal/store"
)

// ExportWorker consumes change events and exports dashboard snapshots.
type ExportWorker struct {
	store  store.Querier
	writer report.SnapshotWriter
	now    func() time.Time
}

func NewExportWorker(q store.Querier, writer report.SnapshotWriter) *ExportWorker {
	return &ExportWorker{store: q, writer: writer, now: time.Now}
}

// HandleChangeEvent processes one change event from the feed. Only expense
// and income changes move the dashboard numbers, so other tables are
// acknowledged without an export. Returning an error nacks the delivery for
// redelivery.
func (w *ExportWorker) HandleChangeEvent(ctx context.Context, ev feed.ChangeEvent) error {
	switch ev.Table {
	case feed.TableExpense, feed.TableIncome:
	default:
		return nil
	}
	if ev.OwnerID == "" {
		slog.WarnContext(ctx, "Change event without owner, skipping", "table", ev.Table)
		return nil
	}

	snap, err := w.currentSnapshot(ctx, ev.OwnerID)
	if err != nil {
		return fmt.Errorf("compute snapshot: %w", err)
	}

	ref, err := w.writer.AppendSnapshot(ctx, snap)
	if err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}

	slog.InfoContext(ctx, "Snapshot exported",
		"owner_id", ev.OwnerID,
		"table", ev.Table,
		"kind", ev.Kind,
		"ref", ref,
		"balance_cents", snap.Balance.Cents)

	return nil
}

// currentSnapshot recomputes the current-month dashboard summary for the
// owner, the same way the live dashboard controller does.
func (w *ExportWorker) currentSnapshot(ctx context.Context, ownerID string) (report.Snapshot, error) {
	now := w.now()
	from := core.NewDate(now.Year(), int(now.Month()), 1)
	to := core.Date{Time: from.AddDate(0, 1, 0)}

	expenses, err := w.store.Expenses(ctx, ownerID, from, to)
	if err != nil {
		return report.Snapshot{}, fmt.Errorf("fetch expenses: %w", err)
	}
	incomes, err := w.store.Incomes(ctx, ownerID, from, to)
	if err != nil {
		return report.Snapshot{}, fmt.Errorf("fetch incomes: %w", err)
	}

	var profile *core.Profile
	p, err := w.store.ProfileByID(ctx, ownerID)
	switch {
	case err == nil:
		profile = &p
	case errors.Is(err, core.ErrNotFound):
	default:
		return report.Snapshot{}, fmt.Errorf("fetch profile: %w", err)
	}

	summary := aggregate.DashboardSummary(expenses, incomes, profile)
	return report.FromDashboard(ownerID, now, summary), nil
}
