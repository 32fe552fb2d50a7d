package core

type (
	// CategoryAmount is an amount summed per category name.
	CategoryAmount struct {
		Name   string `json:"name"`
		Amount Money  `json:"amount"`
	}

	// CategoryShare extends a category sum with its integer share of the
	// overall total.
	CategoryShare struct {
		Name       string `json:"name"`
		Amount     Money  `json:"amount"`
		Percentage int    `json:"percentage"`
	}

	// PeriodSummary is one bucket of the income-vs-expenses series.
	PeriodSummary struct {
		Period   string `json:"period"`
		Income   Money  `json:"income"`
		Expenses Money  `json:"expenses"`
		Savings  Money  `json:"savings"`
	}

	// TrendPoint is one bucket of the spending trend series.
	TrendPoint struct {
		Period string `json:"period"`
		Amount Money  `json:"amount"`
	}

	// HighestExpense identifies the single largest expense in a window.
	HighestExpense struct {
		Amount   Money  `json:"amount"`
		Category string `json:"category"`
	}

	// FrequentCategory is the category with the most transactions.
	FrequentCategory struct {
		Category string `json:"category"`
		Count    int    `json:"count"`
	}

	KeyMetrics struct {
		AverageDailySpend Money            `json:"averageDailySpend"`
		HighestExpense    HighestExpense   `json:"highestExpense"`
		MostFrequent      FrequentCategory `json:"mostFrequent"`
		// BudgetUtilization is a percentage; values over 100 mean over budget.
		BudgetUtilization int `json:"budgetUtilization"`
	}

	// DashboardMetrics is the current-month summary view.
	DashboardMetrics struct {
		TotalIncome       Money            `json:"totalIncome"`
		TotalExpenses     Money            `json:"totalExpenses"`
		Balance           Money            `json:"balance"`
		SavingsRate       string           `json:"savingsRate"`
		CategoryBreakdown []CategoryAmount `json:"categoryBreakdown"`
		MonthlyGoal       Money            `json:"monthlyGoal"`
		GoalProgress      float64          `json:"goalProgress"`
	}

	// AnalyticsData is the timeframe-scoped analytics view.
	AnalyticsData struct {
		MonthlyData   []PeriodSummary `json:"monthlyData"`
		SpendingTrend []TrendPoint    `json:"spendingTrend"`
		CategoryData  []CategoryShare `json:"categoryData"`
		KeyMetrics    KeyMetrics      `json:"keyMetrics"`
	}
)
