package core

// Summary aggregates an account's transactions into income and expense
// totals. Uncategorized transactions carry no type and count toward
// neither total.
type Summary struct {
	Income  Money
	Expense Money
}

// Balance is income minus expense.
func (s Summary) Balance() Money {
	return s.Income.Sub(s.Expense)
}

// CategoryAmount is an amount summed per category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// MonthlyFlow is one month's income and expense sums, either of which
// defaults to zero when that month saw no transactions of the type.
type MonthlyFlow struct {
	Month   string // "YYYY-MM"
	Income  Money
	Expense Money
}
