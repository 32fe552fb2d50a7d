// Package store is the record-store boundary: owner-scoped, filtered access
// to expense, income, budget and profile rows. Every query binds the owner id;
// cross-owner reads are impossible through this interface.
package store

import (
	"context"

	"fintrack/internal/core"
)

type (
	// Querier is the read side used by the live view controllers. Date
	// ranges are half-open: [from, to).
	Querier interface {
		Expenses(ctx context.Context, ownerID string, from, to core.Date) ([]core.Transaction, error)
		Incomes(ctx context.Context, ownerID string, from, to core.Date) ([]core.Transaction, error)
		Budgets(ctx context.Context, ownerID string) ([]core.Budget, error)
		ProfileByID(ctx context.Context, ownerID string) (core.Profile, error)
	}

	// Writer is the mutation side used by the tracker service. Implementations
	// assign IDs on append and return the stored row.
	Writer interface {
		AppendTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, ownerID, id string, kind core.TransactionKind) error
		UpsertBudget(ctx context.Context, b core.Budget) (core.Budget, error)
		DeleteBudget(ctx context.Context, ownerID, category string) error
		UpsertProfile(ctx context.Context, p core.Profile) (core.Profile, error)
	}

	Store interface {
		Querier
		Writer
		Close() error
	}
)
