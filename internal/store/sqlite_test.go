package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"fintrack/internal/core"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "fintrack_test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteTransactionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	stored, err := s.AppendTransaction(ctx, newTx("u1", "Food", 1500, core.NewDate(2024, 3, 10), core.Expense))
	if err != nil {
		t.Fatalf("append expense: %v", err)
	}
	if _, err := s.AppendTransaction(ctx, newTx("u1", "Salary", 200000, core.NewDate(2024, 3, 25), core.Income)); err != nil {
		t.Fatalf("append income: %v", err)
	}
	if _, err := s.AppendTransaction(ctx, newTx("u2", "Food", 9999, core.NewDate(2024, 3, 10), core.Expense)); err != nil {
		t.Fatalf("append other owner: %v", err)
	}

	from, to := core.NewDate(2024, 3, 1), core.NewDate(2024, 4, 1)

	expenses, err := s.Expenses(ctx, "u1", from, to)
	if err != nil {
		t.Fatalf("expenses: %v", err)
	}
	if len(expenses) != 1 {
		t.Fatalf("expected one expense, got %+v", expenses)
	}
	got := expenses[0]
	if got.ID != stored.ID || got.Amount.Cents != 1500 || got.Kind != core.Expense || got.Date.Key() != "2024-03-10" {
		t.Fatalf("row mismatch: %+v", got)
	}

	incomes, err := s.Incomes(ctx, "u1", from, to)
	if err != nil {
		t.Fatalf("incomes: %v", err)
	}
	if len(incomes) != 1 || incomes[0].Kind != core.Income {
		t.Fatalf("unexpected incomes: %+v", incomes)
	}

	// Out-of-window query returns nothing.
	empty, err := s.Expenses(ctx, "u1", core.NewDate(2024, 4, 1), core.NewDate(2024, 5, 1))
	if err != nil {
		t.Fatalf("expenses: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty window, got %+v", empty)
	}

	if err := s.DeleteTransaction(ctx, "u2", stored.ID, core.Expense); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("cross-owner delete should fail, got %v", err)
	}
	if err := s.DeleteTransaction(ctx, "u1", stored.ID, core.Expense); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteTransaction(ctx, "u1", stored.ID, core.Expense); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSQLiteBudgetUpsertKeepsID(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	first, err := s.UpsertBudget(ctx, core.Budget{OwnerID: "u1", Category: "Food", Limit: core.Money{Cents: 40000}})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	second, err := s.UpsertBudget(ctx, core.Budget{OwnerID: "u1", Category: "Food", Limit: core.Money{Cents: 60000}})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("upsert changed id: %q vs %q", second.ID, first.ID)
	}

	budgets, err := s.Budgets(ctx, "u1")
	if err != nil {
		t.Fatalf("budgets: %v", err)
	}
	if len(budgets) != 1 || budgets[0].Limit.Cents != 60000 {
		t.Fatalf("unexpected budgets: %+v", budgets)
	}

	if err := s.DeleteBudget(ctx, "u1", "Food"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteBudget(ctx, "u1", "Food"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteProfileUpsert(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	if _, err := s.ProfileByID(ctx, "u1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	created, err := s.UpsertProfile(ctx, core.Profile{ID: "u1", Email: "a@b.c", MonthlyGoal: core.Money{Cents: 50000}})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if created.CreatedAt.IsZero() {
		t.Fatalf("expected created_at, got %+v", created)
	}

	updated, err := s.UpsertProfile(ctx, core.Profile{ID: "u1", Email: "new@b.c", MonthlyGoal: core.Money{Cents: 70000}})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if updated.Email != "new@b.c" || updated.MonthlyGoal.Cents != 70000 {
		t.Fatalf("unexpected profile: %+v", updated)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Fatal("update must preserve created_at")
	}
}
