// Package services holds the write path: every mutation persists to the
// record store first, then publishes a change event so the live views (and
// any out-of-process consumer) refresh. Publishing is fail-soft; a write that
// reached the store never fails because the notification did not go out.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"fintrack/internal/core"
	"fintrack/internal/feed"
	"fintrack/internal/store"
)

// Tracker orchestrates record writes across the store and the change feed.
type Tracker struct {
	store     store.Store
	publisher feed.Publisher
}

func NewTracker(s store.Store, publisher feed.Publisher) *Tracker {
	return &Tracker{store: s, publisher: publisher}
}

// AddExpense stores a new expense row and notifies subscribers.
func (t *Tracker) AddExpense(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	tx.Kind = core.Expense
	return t.appendTransaction(ctx, tx, feed.TableExpense)
}

// AddIncome stores a new income row and notifies subscribers.
func (t *Tracker) AddIncome(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	tx.Kind = core.Income
	return t.appendTransaction(ctx, tx, feed.TableIncome)
}

func (t *Tracker) appendTransaction(ctx context.Context, tx core.Transaction, table feed.Table) (core.Transaction, error) {
	stored, err := t.store.AppendTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save %s: %w", tx.Kind, err)
	}

	t.publish(ctx, table, feed.Insert, stored.OwnerID, stored)

	slog.InfoContext(ctx, "Transaction saved",
		"kind", stored.Kind,
		"id", stored.ID,
		"owner_id", stored.OwnerID,
		"amount_cents", stored.Amount.Cents,
		"category", stored.Category)

	return stored, nil
}

// DeleteExpense removes an expense row and notifies subscribers.
func (t *Tracker) DeleteExpense(ctx context.Context, ownerID, id string) error {
	return t.deleteTransaction(ctx, ownerID, id, core.Expense, feed.TableExpense)
}

// DeleteIncome removes an income row and notifies subscribers.
func (t *Tracker) DeleteIncome(ctx context.Context, ownerID, id string) error {
	return t.deleteTransaction(ctx, ownerID, id, core.Income, feed.TableIncome)
}

func (t *Tracker) deleteTransaction(ctx context.Context, ownerID, id string, kind core.TransactionKind, table feed.Table) error {
	if err := t.store.DeleteTransaction(ctx, ownerID, id, kind); err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	t.publish(ctx, table, feed.Delete, ownerID, nil)
	return nil
}

// SetBudget creates or replaces the per-category limit and notifies
// subscribers. The event kind is an update whether or not the row existed;
// consumers refetch either way.
func (t *Tracker) SetBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	stored, err := t.store.UpsertBudget(ctx, b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("save budget: %w", err)
	}
	t.publish(ctx, feed.TableBudget, feed.Update, stored.OwnerID, stored)
	return stored, nil
}

// RemoveBudget deletes the per-category limit and notifies subscribers.
func (t *Tracker) RemoveBudget(ctx context.Context, ownerID, category string) error {
	if err := t.store.DeleteBudget(ctx, ownerID, category); err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	t.publish(ctx, feed.TableBudget, feed.Delete, ownerID, nil)
	return nil
}

// UpdateProfile upserts the owner's profile row and notifies subscribers with
// the full stored row, which lets the profile view skip the refetch.
func (t *Tracker) UpdateProfile(ctx context.Context, p core.Profile) (core.Profile, error) {
	stored, err := t.store.UpsertProfile(ctx, p)
	if err != nil {
		return core.Profile{}, fmt.Errorf("save profile: %w", err)
	}
	t.publish(ctx, feed.TableProfile, feed.Update, stored.ID, stored)
	return stored, nil
}

func (t *Tracker) publish(ctx context.Context, table feed.Table, kind feed.Kind, ownerID string, row any) {
	if t.publisher == nil {
		slog.WarnContext(ctx, "No feed publisher configured, skipping change event",
			"table", table, "kind", kind)
		return
	}

	var payload json.RawMessage
	if row != nil {
		body, err := json.Marshal(row)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to marshal change payload",
				"table", table, "error", err)
		} else {
			payload = body
		}
	}

	ev := feed.NewChangeEvent(table, kind, ownerID, payload)
	if err := t.publisher.Publish(ctx, ev); err != nil {
		// The write already landed; losing the notification only delays the
		// next refresh.
		slog.ErrorContext(ctx, "Failed to publish change event",
			"table", table, "kind", kind, "owner_id", ownerID, "error", err)
	}
}

// Close releases the underlying store.
func (t *Tracker) Close() error {
	if t.store != nil {
		if err := t.store.Close(); err != nil {
			return fmt.Errorf("close store: %w", err)
		}
	}
	return nil
}
