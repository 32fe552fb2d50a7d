// Package aggregate holds the pure transforms that turn raw transaction,
// budget and profile rows into derived views. Nothing here performs I/O or
// suspends; every function is total over well-formed input.
package aggregate

import (
	"fmt"
	"sort"
	"time"

	"fintrack/internal/core"
)

const (
	ByDay   PeriodKind = "day"
	ByWeek  PeriodKind = "week"
	ByMonth PeriodKind = "month"
	ByYear  PeriodKind = "year"
)

// PeriodKind selects the bucket granularity for time-series grouping.
type PeriodKind string

// PeriodKey formats the bucket key for a date at the given granularity.
// Weeks start on Sunday and are keyed by the ISO date of the week start.
func PeriodKey(d core.Date, kind PeriodKind) string {
	switch kind {
	case ByDay:
		return d.Format(time.DateOnly)
	case ByWeek:
		weekStart := d.AddDate(0, 0, -int(d.Weekday()))
		return "Week " + weekStart.Format(time.DateOnly)
	case ByMonth:
		return d.Format("Jan 2006")
	case ByYear:
		return d.Format("2006")
	default:
		return d.Format(time.DateOnly)
	}
}

// sumByPeriod groups transactions by bucket key and sums their amounts.
func sumByPeriod(txs []core.Transaction, kind PeriodKind) map[string]int64 {
	sums := make(map[string]int64, len(txs))
	for _, tx := range txs {
		sums[PeriodKey(tx.Date, kind)] += tx.Amount.Cents
	}
	return sums
}

// BucketByPeriod groups transactions by a date-derived key and emits one point
// per bucket, ascending by key.
func BucketByPeriod(txs []core.Transaction, kind PeriodKind) []core.TrendPoint {
	sums := sumByPeriod(txs, kind)
	keys := make([]string, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	points := make([]core.TrendPoint, 0, len(keys))
	for _, k := range keys {
		points = append(points, core.TrendPoint{Period: k, Amount: core.Money{Cents: sums[k]}})
	}
	return points
}

// seriesKind maps a timeframe to the income-vs-expenses series granularity.
func seriesKind(tf core.Timeframe) PeriodKind {
	switch tf {
	case core.Weekly:
		return ByWeek
	case core.Yearly:
		return ByYear
	default:
		return ByMonth
	}
}

// trendKind maps a timeframe to the spending-trend granularity. It is one step
// finer than seriesKind for the same timeframe, which is intentional product
// behavior: the trend chart resolves detail the series chart smooths over.
func trendKind(tf core.Timeframe) PeriodKind {
	switch tf {
	case core.Weekly:
		return ByDay
	case core.Yearly:
		return ByMonth
	default:
		return ByWeek
	}
}

// MonthlySeries buckets expenses and incomes independently, unions their key
// sets and emits one summary per period in ascending key order.
func MonthlySeries(expenses, incomes []core.Transaction, tf core.Timeframe) []core.PeriodSummary {
	kind := seriesKind(tf)
	expenseSums := sumByPeriod(expenses, kind)
	incomeSums := sumByPeriod(incomes, kind)

	seen := make(map[string]bool, len(expenseSums)+len(incomeSums))
	keys := make([]string, 0, len(expenseSums)+len(incomeSums))
	for k := range expenseSums {
		seen[k] = true
		keys = append(keys, k)
	}
	for k := range incomeSums {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	series := make([]core.PeriodSummary, 0, len(keys))
	for _, k := range keys {
		income := incomeSums[k]
		expense := expenseSums[k]
		series = append(series, core.PeriodSummary{
			Period:   k,
			Income:   core.Money{Cents: income},
			Expenses: core.Money{Cents: expense},
			Savings:  core.Money{Cents: income - expense},
		})
	}
	return series
}

// TrendSeries buckets expenses at the trend granularity for the timeframe and
// emits points in ascending key order.
func TrendSeries(expenses []core.Transaction, tf core.Timeframe) []core.TrendPoint {
	return BucketByPeriod(expenses, trendKind(tf))
}

// CategoryTotals sums expense amounts per category. Output order is the order
// in which each category first appears in the input, not sorted; consumers
// rely on that stability.
func CategoryTotals(expenses []core.Transaction) []core.CategoryAmount {
	index := make(map[string]int, len(expenses))
	totals := make([]core.CategoryAmount, 0)
	for _, tx := range expenses {
		i, ok := index[tx.Category]
		if !ok {
			i = len(totals)
			index[tx.Category] = i
			totals = append(totals, core.CategoryAmount{Name: tx.Category})
		}
		totals[i].Amount.Cents += tx.Amount.Cents
	}
	return totals
}

// CategoryBreakdown extends CategoryTotals with each category's integer share
// of the overall total. Shares are 0 when the total is 0; rounding may make
// them sum to 100 plus or minus (category count - 1).
func CategoryBreakdown(expenses []core.Transaction) []core.CategoryShare {
	totals := CategoryTotals(expenses)
	var grandTotal int64
	for _, t := range totals {
		grandTotal += t.Amount.Cents
	}
	shares := make([]core.CategoryShare, 0, len(totals))
	for _, t := range totals {
		pct := 0
		if grandTotal > 0 {
			pct = int(roundDiv(100*t.Amount.Cents, grandTotal))
		}
		shares = append(shares, core.CategoryShare{Name: t.Name, Amount: t.Amount, Percentage: pct})
	}
	return shares
}

// KeyMetrics computes the analytics headline numbers. All ties resolve to the
// first occurrence in input order.
func KeyMetrics(expenses []core.Transaction, budgets []core.Budget) core.KeyMetrics {
	var totalExpenses int64
	days := make(map[string]bool)
	highest := core.HighestExpense{Category: "None"}
	counts := make(map[string]int, len(expenses))
	mostFrequent := core.FrequentCategory{Category: "None"}

	for _, tx := range expenses {
		totalExpenses += tx.Amount.Cents
		days[tx.Date.Key()] = true
		if tx.Amount.Cents > highest.Amount.Cents {
			highest = core.HighestExpense{Amount: tx.Amount, Category: tx.Category}
		}
		counts[tx.Category]++
		if counts[tx.Category] > mostFrequent.Count {
			mostFrequent = core.FrequentCategory{Category: tx.Category, Count: counts[tx.Category]}
		}
	}

	dayCount := int64(len(days))
	if dayCount < 1 {
		dayCount = 1
	}

	var totalBudget int64
	for _, b := range budgets {
		totalBudget += b.Limit.Cents
	}
	utilization := 0
	if totalBudget > 0 {
		utilization = int(roundDiv(100*totalExpenses, totalBudget))
	}

	return core.KeyMetrics{
		AverageDailySpend: core.Money{Cents: roundDiv(totalExpenses, dayCount)},
		HighestExpense:    highest,
		MostFrequent:      mostFrequent,
		BudgetUtilization: utilization,
	}
}

// DashboardSummary computes the current-month dashboard view. The profile may
// be nil when the owner has no profile row yet; the goal then defaults to zero.
func DashboardSummary(expenses, incomes []core.Transaction, profile *core.Profile) core.DashboardMetrics {
	var totalIncome, totalExpenses int64
	for _, tx := range incomes {
		totalIncome += tx.Amount.Cents
	}
	for _, tx := range expenses {
		totalExpenses += tx.Amount.Cents
	}
	balance := totalIncome - totalExpenses

	savingsRate := "0"
	if totalIncome > 0 {
		savingsRate = fmt.Sprintf("%.1f", float64(balance)/float64(totalIncome)*100)
	}

	var goal int64
	if profile != nil {
		goal = profile.MonthlyGoal.Cents
	}
	goalProgress := 0.0
	if goal > 0 {
		goalProgress = float64(balance) / float64(goal) * 100
		if goalProgress > 100 {
			goalProgress = 100
		}
	}

	return core.DashboardMetrics{
		TotalIncome:       core.Money{Cents: totalIncome},
		TotalExpenses:     core.Money{Cents: totalExpenses},
		Balance:           core.Money{Cents: balance},
		SavingsRate:       savingsRate,
		CategoryBreakdown: CategoryTotals(expenses),
		MonthlyGoal:       core.Money{Cents: goal},
		GoalProgress:      goalProgress,
	}
}

// Analytics assembles the full analytics view from raw rows.
func Analytics(expenses, incomes []core.Transaction, budgets []core.Budget, tf core.Timeframe) core.AnalyticsData {
	return core.AnalyticsData{
		MonthlyData:   MonthlySeries(expenses, incomes, tf),
		SpendingTrend: TrendSeries(expenses, tf),
		CategoryData:  CategoryBreakdown(expenses),
		KeyMetrics:    KeyMetrics(expenses, budgets),
	}
}

// roundDiv divides non-negative a by positive b rounding half up.
func roundDiv(a, b int64) int64 {
	return (2*a + b) / (2 * b)
}
