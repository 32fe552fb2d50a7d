package live

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/feed"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func seedDashboard(t *testing.T, fs *flakyStore, owner string) {
	t.Helper()
	ctx := context.Background()
	rows := []core.Transaction{
		{OwnerID: owner, Amount: core.Money{Cents: 30000}, Category: "Rent", Description: "march rent", Date: core.NewDate(2024, 3, 1), Kind: core.Expense},
		{OwnerID: owner, Amount: core.Money{Cents: 5000}, Category: "Food", Description: "groceries", Date: core.NewDate(2024, 3, 5), Kind: core.Expense},
		{OwnerID: owner, Amount: core.Money{Cents: 50000}, Category: "Salary", Description: "march salary", Date: core.NewDate(2024, 3, 1), Kind: core.Income},
		// outside the current month, must not count
		{OwnerID: owner, Amount: core.Money{Cents: 9999}, Category: "Rent", Description: "feb rent", Date: core.NewDate(2024, 2, 1), Kind: core.Expense},
	}
	for _, tx := range rows {
		if _, err := fs.AppendTransaction(ctx, tx); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestDashboardInitialView(t *testing.T) {
	fs := newFlakyStore()
	seedDashboard(t, fs, "alice")
	fs.UpsertProfile(context.Background(), core.Profile{ID: "alice", MonthlyGoal: core.Money{Cents: 20000}})

	b := feed.NewBroker()
	defer b.Close()

	d := NewDashboard(fs, b)
	d.now = func() time.Time { return testNow }
	if err := d.Activate(context.Background(), "alice"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	defer d.Deactivate()

	view, loading := d.View()
	if loading {
		t.Fatal("loading should be false after the initial pass")
	}
	if view == nil {
		t.Fatal("expected a view after activation")
	}
	if view.TotalIncome.Cents != 50000 || view.TotalExpenses.Cents != 35000 || view.Balance.Cents != 15000 {
		t.Fatalf("totals mismatch: %+v", view)
	}
	if view.SavingsRate != "30.0" {
		t.Fatalf("savings rate: expected %q, got %q", "30.0", view.SavingsRate)
	}
	if view.MonthlyGoal.Cents != 20000 || view.GoalProgress != 75.0 {
		t.Fatalf("goal mismatch: %+v", view)
	}
	if err := d.Err(); err != nil {
		t.Fatalf("unexpected error after clean pass: %v", err)
	}
}

func TestDashboardMissingProfileIsNotAnError(t *testing.T) {
	fs := newFlakyStore()
	seedDashboard(t, fs, "alice")

	b := feed.NewBroker()
	defer b.Close()

	d := NewDashboard(fs, b)
	d.now = func() time.Time { return testNow }
	if err := d.Activate(context.Background(), "alice"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	defer d.Deactivate()

	view, _ := d.View()
	if view == nil {
		t.Fatal("expected a view without a profile row")
	}
	if view.MonthlyGoal.Cents != 0 || view.GoalProgress != 0 {
		t.Fatalf("expected zero goal defaults, got %+v", view)
	}
	if err := d.Err(); err != nil {
		t.Fatalf("missing profile must not surface as an error: %v", err)
	}
}

func TestDashboardRefreshIsIdempotent(t *testing.T) {
	fs := newFlakyStore()
	seedDashboard(t, fs, "alice")

	b := feed.NewBroker()
	defer b.Close()

	d := NewDashboard(fs, b)
	d.now = func() time.Time { return testNow }
	ctx := context.Background()
	if err := d.Activate(ctx, "alice"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	defer d.Deactivate()

	first, _ := d.View()
	if err := d.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	second, _ := d.View()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("refresh without changes altered the view:\n got %+v\nwas %+v", second, first)
	}
}

func TestDashboardKeepsStaleViewOnFailedRefresh(t *testing.T) {
	fs := newFlakyStore()
	seedDashboard(t, fs, "alice")

	b := feed.NewBroker()
	defer b.Close()

	d := NewDashboard(fs, b)
	d.now = func() time.Time { return testNow }
	ctx := context.Background()
	if err := d.Activate(ctx, "alice"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	defer d.Deactivate()

	before, _ := d.View()

	storeDown := errors.New("store down")
	fs.setFail(storeDown)
	if err := d.Refresh(ctx); !errors.Is(err, storeDown) {
		t.Fatalf("expected store error, got %v", err)
	}
	if err := d.Err(); !errors.Is(err, storeDown) {
		t.Fatalf("Err should report the failure, got %v", err)
	}

	after, _ := d.View()
	if !reflect.DeepEqual(before, after) {
		t.Fatal("failed refresh must keep the previous view")
	}

	// A later clean pass clears the error.
	fs.setFail(nil)
	if err := d.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := d.Err(); err != nil {
		t.Fatalf("error should clear after a clean pass, got %v", err)
	}
}

func TestDashboardReactsToChangeEvents(t *testing.T) {
	fs := newFlakyStore()
	seedDashboard(t, fs, "alice")

	b := feed.NewBroker()
	defer b.Close()

	d := NewDashboard(fs, b)
	d.now = func() time.Time { return testNow }
	ctx := context.Background()
	if err := d.Activate(ctx, "alice"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	defer d.Deactivate()

	stored, err := fs.AppendTransaction(ctx, core.Transaction{
		OwnerID: "alice", Amount: core.Money{Cents: 2500}, Category: "Food",
		Description: "lunch", Date: core.NewDate(2024, 3, 16), Kind: core.Expense,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	row, _ := json.Marshal(stored)
	b.Publish(ctx, feed.NewChangeEvent(feed.TableExpense, feed.Insert, "alice", row))

	waitFor(t, func() bool {
		view, _ := d.View()
		return view != nil && view.TotalExpenses.Cents == 37500
	})
}

func TestDashboardIgnoresOtherOwnersEvents(t *testing.T) {
	fs := newFlakyStore()
	seedDashboard(t, fs, "alice")
	seedDashboard(t, fs, "bob")

	b := feed.NewBroker()
	defer b.Close()

	d := NewDashboard(fs, b)
	d.now = func() time.Time { return testNow }
	ctx := context.Background()
	if err := d.Activate(ctx, "alice"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	defer d.Deactivate()

	before, _ := d.View()

	// Bob's change lands in the store but must not touch Alice's view.
	fs.AppendTransaction(ctx, core.Transaction{
		OwnerID: "bob", Amount: core.Money{Cents: 7777}, Category: "Food",
		Description: "bob lunch", Date: core.NewDate(2024, 3, 16), Kind: core.Expense,
	})
	b.Publish(ctx, feed.NewChangeEvent(feed.TableExpense, feed.Insert, "bob", nil))

	time.Sleep(50 * time.Millisecond)
	after, _ := d.View()
	if !reflect.DeepEqual(before, after) {
		t.Fatal("another owner's event changed the view")
	}
	if after.TotalExpenses.Cents != 35000 {
		t.Fatalf("alice's totals must not include bob's rows: %+v", after)
	}
}
