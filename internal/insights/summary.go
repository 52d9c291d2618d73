package insights

import (
	"fmt"

	"github.com/shopspring/decimal"

	"mmms/internal/core"
)

// MonthSummary is the overview of a calendar month.
type MonthSummary struct {
	Month                   string          `json:"month"`
	Income                  core.Money      `json:"totalIncome"`
	Expenses                core.Money      `json:"totalExpenses"`
	Net                     core.Money      `json:"remaining"`
	TransactionCount        int             `json:"transactionCount"`
	Breakdown               []CategoryStats `json:"categoryBreakdown"`
	PreviousExpenses        core.Money      `json:"previousMonthExpenses"`
	ExpenseChangePercentage float64         `json:"comparisonToPreviousMonth"`
}

// MonthlySummary totals income and expenses for year/month in currency and
// compares expenses with the previous calendar month.
func MonthlySummary(txs []core.Transaction, year, month int, currency core.Currency, conv core.Converter) (MonthSummary, error) {
	window := MonthWindow(year, month)
	prevStart := core.Date{Time: window.Start.AddDate(0, -1, 0)}
	prevWindow := MonthWindow(prevStart.Year(), int(prevStart.Month()))

	income, expenses, previous := decimal.Zero, decimal.Zero, decimal.Zero
	count := 0
	for _, tx := range txs {
		inMonth := window.Contains(tx.Date)
		inPrev := prevWindow.Contains(tx.Date)
		if !inMonth && !inPrev {
			continue
		}
		amount, err := conv.Convert(tx.Amount, currency)
		if err != nil {
			return MonthSummary{}, fmt.Errorf("transaction %s: %w", tx.ID, err)
		}
		switch {
		case inMonth && tx.Type == core.Income:
			income = income.Add(amount.Amount)
			count++
		case inMonth:
			expenses = expenses.Add(amount.Amount)
			count++
		case tx.Type == core.Expense:
			previous = previous.Add(amount.Amount)
		}
	}

	breakdown, err := CategoryBreakdown(txs, window, currency, conv)
	if err != nil {
		return MonthSummary{}, err
	}

	money := func(d decimal.Decimal) core.Money { return core.Money{Amount: d, Currency: currency} }
	return MonthSummary{
		Month:                   fmt.Sprintf("%04d-%02d", year, month),
		Income:                  money(income),
		Expenses:                money(expenses),
		Net:                     money(income.Sub(expenses)),
		TransactionCount:        count,
		Breakdown:               breakdown,
		PreviousExpenses:        money(previous),
		ExpenseChangePercentage: ChangePercentage(expenses, previous),
	}, nil
}
