package live

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/aggregate"
	"fintrack/internal/core"
	"fintrack/internal/feed"
	"fintrack/internal/store"
)

// Analytics maintains the timeframe-scoped analytics view. The timeframe is
// fixed per controller; a consumer switching timeframes activates a new
// controller, mirroring how the view is re-created upstream. Watches the
// expense, income and budget tables.
type Analytics struct {
	controller
	store     store.Querier
	timeframe core.Timeframe
}

func NewAnalytics(q store.Querier, broker *feed.Broker, timeframe core.Timeframe) (*Analytics, error) {
	if err := timeframe.Validate(); err != nil {
		return nil, err
	}
	a := &Analytics{store: q, timeframe: timeframe}
	a.controller = controller{
		name:   "analytics",
		broker: broker,
		tables: []feed.Table{feed.TableExpense, feed.TableIncome, feed.TableBudget},
		now:    time.Now,
	}
	a.controller.fetch = a.fetchView
	a.controller.onEvent = a.controller.refreshOnEvent
	return a, nil
}

// Timeframe returns the scope this controller was built for.
func (a *Analytics) Timeframe() core.Timeframe {
	return a.timeframe
}

// View returns the current analytics data (nil before the first successful
// pass) and the loading flag.
func (a *Analytics) View() (*core.AnalyticsData, bool) {
	view, loading := a.snapshot()
	if view == nil {
		return nil, loading
	}
	return view.(*core.AnalyticsData), loading
}

// window derives the query range from the timeframe at call time: weekly is
// the last 7 days, monthly the current month so far, yearly the current year
// so far. The upper bound is exclusive, so "through today" means tomorrow.
func (a *Analytics) window() (core.Date, core.Date) {
	now := a.now()
	to := core.Date{Time: core.DateOf(now).AddDate(0, 0, 1)}
	switch a.timeframe {
	case core.Weekly:
		return core.DateOf(now.AddDate(0, 0, -7)), to
	case core.Yearly:
		return core.NewDate(now.Year(), 1, 1), to
	default:
		return core.NewDate(now.Year(), int(now.Month()), 1), to
	}
}

// fetchView pulls the three tables concurrently and assembles the view.
func (a *Analytics) fetchView(ctx context.Context, ownerID string) (any, error) {
	from, to := a.window()

	var (
		expenses []core.Transaction
		incomes  []core.Transaction
		budgets  []core.Budget
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		expenses, err = a.store.Expenses(gctx, ownerID, from, to)
		if err != nil {
			return fmt.Errorf("fetch expenses: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		incomes, err = a.store.Incomes(gctx, ownerID, from, to)
		if err != nil {
			return fmt.Errorf("fetch incomes: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		budgets, err = a.store.Budgets(gctx, ownerID)
		if err != nil {
			return fmt.Errorf("fetch budgets: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	view := aggregate.Analytics(expenses, incomes, budgets, a.timeframe)
	return &view, nil
}
