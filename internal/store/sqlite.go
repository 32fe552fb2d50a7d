package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"fintrack/internal/core"
)

// SQLite is the durable Store. Dates are stored as YYYY-MM-DD text so range
// filters compare lexicographically, and income sources live in the category
// column the way the read side expects them.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(dbPath string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLite) Expenses(ctx context.Context, ownerID string, from, to core.Date) ([]core.Transaction, error) {
	return s.listTransactions(ctx, "expenses", core.Expense, ownerID, from, to)
}

func (s *SQLite) Incomes(ctx context.Context, ownerID string, from, to core.Date) ([]core.Transaction, error) {
	return s.listTransactions(ctx, "income", core.Income, ownerID, from, to)
}

func (s *SQLite) listTransactions(ctx context.Context, table string, kind core.TransactionKind, ownerID string, from, to core.Date) ([]core.Transaction, error) {
	query := fmt.Sprintf(`SELECT id, owner_id, amount_cents, category, description, date
		FROM %s
		WHERE owner_id = ? AND date >= ? AND date < ?
		ORDER BY date, rowid`, table)

	rows, err := s.db.QueryContext(ctx, query, ownerID, from.Key(), to.Key())
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		var tx core.Transaction
		var dateStr string
		if err := rows.Scan(&tx.ID, &tx.OwnerID, &tx.Amount.Cents, &tx.Category, &tx.Description, &dateStr); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", table, err)
		}
		tx.Date, err = core.ParseDate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("parse %s date %q: %w", table, dateStr, err)
		}
		tx.Kind = kind
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", table, err)
	}
	return txs, nil
}

func (s *SQLite) Budgets(ctx context.Context, ownerID string) ([]core.Budget, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, category, limit_cents FROM budgets WHERE owner_id = ? ORDER BY rowid`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	var budgets []core.Budget
	for rows.Next() {
		var b core.Budget
		if err := rows.Scan(&b.ID, &b.OwnerID, &b.Category, &b.Limit.Cents); err != nil {
			return nil, fmt.Errorf("scan budget row: %w", err)
		}
		budgets = append(budgets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budget rows: %w", err)
	}
	return budgets, nil
}

func (s *SQLite) ProfileByID(ctx context.Context, ownerID string) (core.Profile, error) {
	var p core.Profile
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, full_name, phone, address, monthly_goal_cents, created_at, updated_at
		FROM profiles WHERE id = ?`, ownerID).
		Scan(&p.ID, &p.Email, &p.FullName, &p.Phone, &p.Address, &p.MonthlyGoal.Cents, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Profile{}, fmt.Errorf("profile %s: %w", ownerID, core.ErrNotFound)
	}
	if err != nil {
		return core.Profile{}, fmt.Errorf("query profile: %w", err)
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return p, nil
}

func (s *SQLite) AppendTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}

	table := "expenses"
	if tx.Kind == core.Income {
		table = "income"
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, owner_id, amount_cents, category, description, date)
		VALUES (?, ?, ?, ?, ?, ?)`, table)

	if _, err := s.db.ExecContext(ctx, query,
		tx.ID, tx.OwnerID, tx.Amount.Cents, tx.Category, tx.Description, tx.Date.Key()); err != nil {
		return core.Transaction{}, fmt.Errorf("insert %s: %w", tx.Kind, err)
	}
	return tx, nil
}

func (s *SQLite) DeleteTransaction(ctx context.Context, ownerID, id string, kind core.TransactionKind) error {
	table := "expenses"
	if kind == core.Income {
		table = "income"
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ? AND owner_id = ?`, table)

	res, err := s.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
	}
	return nil
}

func (s *SQLite) UpsertBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}

	// Category is unique per owner; replacing the limit keeps the row id.
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO budgets (id, owner_id, category, limit_cents)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(owner_id, category) DO UPDATE SET limit_cents = excluded.limit_cents`,
		b.ID, b.OwnerID, b.Category, b.Limit.Cents); err != nil {
		return core.Budget{}, fmt.Errorf("upsert budget: %w", err)
	}

	var id string
	if err := s.db.QueryRowContext(ctx,
		`SELECT id FROM budgets WHERE owner_id = ? AND category = ?`,
		b.OwnerID, b.Category).Scan(&id); err != nil {
		return core.Budget{}, fmt.Errorf("read back budget id: %w", err)
	}
	b.ID = id
	return b, nil
}

func (s *SQLite) DeleteBudget(ctx context.Context, ownerID, category string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM budgets WHERE owner_id = ? AND category = ?`, ownerID, category)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("budget %s: %w", category, core.ErrNotFound)
	}
	return nil
}

func (s *SQLite) UpsertProfile(ctx context.Context, p core.Profile) (core.Profile, error) {
	if err := p.Validate(); err != nil {
		return core.Profile{}, err
	}

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, email, full_name, phone, address, monthly_goal_cents, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			full_name = excluded.full_name,
			phone = excluded.phone,
			address = excluded.address,
			monthly_goal_cents = excluded.monthly_goal_cents,
			updated_at = excluded.updated_at`,
		p.ID, p.Email, p.FullName, p.Phone, p.Address, p.MonthlyGoal.Cents,
		now.Format(time.RFC3339), now.Format(time.RFC3339)); err != nil {
		return core.Profile{}, fmt.Errorf("upsert profile: %w", err)
	}

	return s.ProfileByID(ctx, p.ID)
}
