package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Expense TransactionKind = "expense"
	Income  TransactionKind = "income"
)

const (
	Weekly  Timeframe = "weekly"
	Monthly Timeframe = "monthly"
	Yearly  Timeframe = "yearly"
)

type (
	TransactionKind string

	// Timeframe is the user-selectable analytics scope. It controls both the
	// query date window and the aggregation granularity.
	Timeframe string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is a single income or expense record owned by one user.
	// Income rows carry their source in Category.
	Transaction struct {
		ID          string          `json:"id"`
		OwnerID     string          `json:"ownerId"`
		Amount      Money           `json:"amount"`
		Category    string          `json:"category"`
		Description string          `json:"description"`
		Date        Date            `json:"date"`
		Kind        TransactionKind `json:"kind"`
	}

	// Budget is a per-category spending limit. The spent amount is never
	// stored; it is always recomputed from current expense rows.
	Budget struct {
		ID       string `json:"id"`
		OwnerID  string `json:"ownerId"`
		Category string `json:"category"`
		Limit    Money  `json:"limit"`
	}

	// Profile is the single per-owner row holding contact details and the
	// monthly savings goal.
	Profile struct {
		ID          string    `json:"id"`
		Email       string    `json:"email"`
		FullName    string    `json:"fullName"`
		Phone       string    `json:"phone"`
		Address     string    `json:"address"`
		MonthlyGoal Money     `json:"monthlyGoal"`
		CreatedAt   time.Time `json:"createdAt"`
		UpdatedAt   time.Time `json:"updatedAt"`
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEmptyOwner       = errors.New("empty owner id")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyDescription = errors.New("empty description")
	ErrNotFound         = errors.New("not found")
)

// NewDate creates a Date at UTC midnight.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), int(u.Month()), u.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(time.DateOnly, s, time.UTC)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Key returns the canonical YYYY-MM-DD form.
func (d Date) Key() string {
	return d.Format(time.DateOnly)
}

// MarshalJSON encodes the date in its canonical YYYY-MM-DD form.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Key() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (k TransactionKind) Validate() error {
	switch k {
	case Expense, Income:
		return nil
	default:
		return errors.New("invalid transaction kind")
	}
}

func (tf Timeframe) Validate() error {
	switch tf {
	case Weekly, Monthly, Yearly:
		return nil
	default:
		return errors.New("invalid timeframe")
	}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Kind.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if err := b.Limit.Validate(); err != nil {
		return err
	}
	return nil
}

func (p Profile) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrEmptyOwner
	}
	if p.MonthlyGoal.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}
