package report

import (
	"context"
	"testing"
	"time"

	"fintrack/internal/core"
)

func TestFromDashboard(t *testing.T) {
	at := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	m := core.DashboardMetrics{
		TotalIncome:   core.Money{Cents: 50000},
		TotalExpenses: core.Money{Cents: 35000},
		Balance:       core.Money{Cents: 15000},
		SavingsRate:   "30.0",
	}

	snap := FromDashboard("u1", at, m)
	if snap.OwnerID != "u1" || !snap.CapturedAt.Equal(at) {
		t.Fatalf("identity mismatch: %+v", snap)
	}
	if snap.Balance.Cents != 15000 || snap.SavingsRate != "30.0" {
		t.Fatalf("metrics mismatch: %+v", snap)
	}
}

func TestMemoryWriterRefs(t *testing.T) {
	w := NewMemoryWriter()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		ref, err := w.AppendSnapshot(ctx, Snapshot{OwnerID: "u1"})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if ref == "" {
			t.Fatal("expected a row ref")
		}
	}
	if got := len(w.Snapshots()); got != 3 {
		t.Fatalf("expected 3 snapshots, got %d", got)
	}
}
