// Package report exports derived-view snapshots to external destinations.
// The export worker appends one dashboard snapshot per processed change
// event, giving owners a history of their metrics outside the tracker.
package report

import (
	"context"
	"time"

	"fintrack/internal/core"
)

// Snapshot is one exported dashboard-summary row.
type Snapshot struct {
	OwnerID       string
	CapturedAt    time.Time
	TotalIncome   core.Money
	TotalExpenses core.Money
	Balance       core.Money
	SavingsRate   string
}

// SnapshotWriter is the outbound port for snapshot destinations.
type SnapshotWriter interface {
	AppendSnapshot(ctx context.Context, snap Snapshot) (rowRef string, err error)
}

// FromDashboard builds a snapshot from a computed dashboard view.
func FromDashboard(ownerID string, at time.Time, m core.DashboardMetrics) Snapshot {
	return Snapshot{
		OwnerID:       ownerID,
		CapturedAt:    at,
		TotalIncome:   m.TotalIncome,
		TotalExpenses: m.TotalExpenses,
		Balance:       m.Balance,
		SavingsRate:   m.SavingsRate,
	}
}
