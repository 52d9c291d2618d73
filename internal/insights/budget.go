// Package insights computes read-only view models from domain entities.
//
// Every function is pure: the caller passes the transactions, the reference
// day and the converter, nothing is read from storage or the clock.
package insights

import (
	"fmt"

	"github.com/shopspring/decimal"

	"mmms/internal/core"
)

// BudgetStatus describes where spending stands against a budget limit.
type BudgetStatus string

const (
	StatusActive   BudgetStatus = "active"
	StatusAchieved BudgetStatus = "achieved"
	StatusExceeded BudgetStatus = "exceeded"
)

var hundred = decimal.NewFromInt(100)

// BudgetView is the progress of one budget goal over its current window.
type BudgetView struct {
	Goal              core.BudgetGoal `json:"goal"`
	Spent             core.Money      `json:"spent"`
	Percentage        float64         `json:"percentage"`
	DisplayPercentage float64         `json:"displayPercentage"`
	Remaining         core.Money      `json:"remaining"`
	Status            BudgetStatus    `json:"status"`
	TransactionCount  int             `json:"transactionCount"`
	AlertTriggered    bool            `json:"alertTriggered"`
}

// BudgetProgress derives spending for goal from the expense transactions of
// its category dated inside [goal.StartDate, goal.EndDate]. Amounts are
// converted into the goal's currency.
//
// Status compares spent with the limit exactly: above is exceeded, equal is
// achieved, anything else is active.
func BudgetProgress(goal core.BudgetGoal, txs []core.Transaction, conv core.Converter) (BudgetView, error) {
	currency := goal.Limit.Currency
	spent := core.Zero(currency)
	count := 0
	for _, tx := range txs {
		if tx.Type != core.Expense || tx.Category.ID != goal.Category.ID {
			continue
		}
		if !tx.Date.Within(goal.StartDate, goal.EndDate) {
			continue
		}
		next, err := conv.Add(spent, tx.Amount, currency)
		if err != nil {
			return BudgetView{}, fmt.Errorf("transaction %s: %w", tx.ID, err)
		}
		spent = next
		count++
	}

	limit := goal.Limit.Amount
	var pct decimal.Decimal
	if limit.IsPositive() {
		pct = spent.Amount.Mul(hundred).Div(limit)
	}

	status := StatusActive
	switch spent.Amount.Cmp(limit) {
	case 1:
		status = StatusExceeded
	case 0:
		status = StatusAchieved
	}

	remaining := decimal.Max(limit.Sub(spent.Amount), decimal.Zero)

	return BudgetView{
		Goal:              goal,
		Spent:             spent,
		Percentage:        pct.InexactFloat64(),
		DisplayPercentage: decimal.Min(pct, hundred).InexactFloat64(),
		Remaining:         core.Money{Amount: remaining, Currency: currency},
		Status:            status,
		TransactionCount:  count,
		AlertTriggered:    pct.InexactFloat64() >= goal.Threshold(),
	}, nil
}
