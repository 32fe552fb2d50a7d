package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

// Memory is a map-backed Store for tests and the default local backend.
// Rows are returned in insertion order, matching the append order the
// aggregation layer's first-occurrence rules depend on.
type Memory struct {
	mu           sync.Mutex
	transactions []core.Transaction
	budgets      []core.Budget
	profiles     map[string]core.Profile
}

func NewMemory() *Memory {
	return &Memory{profiles: make(map[string]core.Profile)}
}

func (m *Memory) Expenses(_ context.Context, ownerID string, from, to core.Date) ([]core.Transaction, error) {
	return m.listTransactions(ownerID, core.Expense, from, to), nil
}

func (m *Memory) Incomes(_ context.Context, ownerID string, from, to core.Date) ([]core.Transaction, error) {
	return m.listTransactions(ownerID, core.Income, from, to), nil
}

func (m *Memory) listTransactions(ownerID string, kind core.TransactionKind, from, to core.Date) []core.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []core.Transaction
	for _, tx := range m.transactions {
		if tx.OwnerID != ownerID || tx.Kind != kind {
			continue
		}
		if tx.Date.Time.Before(from.Time) || !tx.Date.Time.Before(to.Time) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

func (m *Memory) Budgets(_ context.Context, ownerID string) ([]core.Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []core.Budget
	for _, b := range m.budgets {
		if b.OwnerID == ownerID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *Memory) ProfileByID(_ context.Context, ownerID string) (core.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[ownerID]
	if !ok {
		return core.Profile{}, fmt.Errorf("profile %s: %w", ownerID, core.ErrNotFound)
	}
	return p, nil
}

func (m *Memory) AppendTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions = append(m.transactions, tx)
	return tx, nil
}

func (m *Memory) DeleteTransaction(_ context.Context, ownerID, id string, kind core.TransactionKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, tx := range m.transactions {
		if tx.ID == id && tx.OwnerID == ownerID && tx.Kind == kind {
			m.transactions = append(m.transactions[:i], m.transactions[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
}

func (m *Memory) UpsertBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.budgets {
		if existing.OwnerID == b.OwnerID && existing.Category == b.Category {
			b.ID = existing.ID
			m.budgets[i] = b
			return b, nil
		}
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	m.budgets = append(m.budgets, b)
	return b, nil
}

func (m *Memory) DeleteBudget(_ context.Context, ownerID, category string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, b := range m.budgets {
		if b.OwnerID == ownerID && b.Category == category {
			m.budgets = append(m.budgets[:i], m.budgets[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("budget %s: %w", category, core.ErrNotFound)
}

func (m *Memory) UpsertProfile(_ context.Context, p core.Profile) (core.Profile, error) {
	if err := p.Validate(); err != nil {
		return core.Profile{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := m.profiles[p.ID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	m.profiles[p.ID] = p
	return p, nil
}

func (m *Memory) Close() error {
	return nil
}
