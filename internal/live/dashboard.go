package live

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/aggregate"
	"fintrack/internal/core"
	"fintrack/internal/feed"
	"fintrack/internal/store"
)

// Dashboard maintains the current-month summary view. It watches the expense,
// income and profile tables and recomputes the whole view on any change.
type Dashboard struct {
	controller
	store store.Querier
}

func NewDashboard(q store.Querier, broker *feed.Broker) *Dashboard {
	d := &Dashboard{store: q}
	d.controller = controller{
		name:   "dashboard",
		broker: broker,
		tables: []feed.Table{feed.TableExpense, feed.TableIncome, feed.TableProfile},
		now:    time.Now,
	}
	d.controller.fetch = d.fetchView
	d.controller.onEvent = d.controller.refreshOnEvent
	return d
}

// View returns the current metrics (nil before the first successful pass) and
// the loading flag.
func (d *Dashboard) View() (*core.DashboardMetrics, bool) {
	view, loading := d.snapshot()
	if view == nil {
		return nil, loading
	}
	return view.(*core.DashboardMetrics), loading
}

// fetchView queries the current calendar month, [first of month, first of
// next month), evaluated at call time.
func (d *Dashboard) fetchView(ctx context.Context, ownerID string) (any, error) {
	now := d.now()
	from := core.NewDate(now.Year(), int(now.Month()), 1)
	to := core.Date{Time: from.AddDate(0, 1, 0)}

	expenses, err := d.store.Expenses(ctx, ownerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch expenses: %w", err)
	}
	incomes, err := d.store.Incomes(ctx, ownerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch incomes: %w", err)
	}

	// A missing profile row only means no goal has been set yet.
	var profile *core.Profile
	p, err := d.store.ProfileByID(ctx, ownerID)
	switch {
	case err == nil:
		profile = &p
	case errors.Is(err, core.ErrNotFound):
	default:
		return nil, fmt.Errorf("fetch profile: %w", err)
	}

	view := aggregate.DashboardSummary(expenses, incomes, profile)
	return &view, nil
}
