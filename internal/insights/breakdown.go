package insights

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"mmms/internal/core"
)

// Trend compares a category's spending with the previous window.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// Window is an inclusive range of calendar days.
type Window struct {
	Start core.Date `json:"start"`
	End   core.Date `json:"end"`
}

// NewWindow validates and builds a window.
func NewWindow(start, end core.Date) (Window, error) {
	if end.Before(start) {
		return Window{}, core.Invalid("end", "must not be before start")
	}
	return Window{Start: start, End: end}, nil
}

// MonthWindow covers a calendar month.
func MonthWindow(year, month int) Window {
	start := core.NewDate(year, month, 1)
	return Window{Start: start, End: core.Date{Time: start.AddDate(0, 1, -1)}}
}

// Days is the inclusive length of the window.
func (w Window) Days() int { return w.Start.DaysUntil(w.End) + 1 }

// Previous is the window of equal length that ends the day before w starts.
func (w Window) Previous() Window {
	n := w.Days()
	return Window{Start: w.Start.AddDays(-n), End: w.End.AddDays(-n)}
}

// Contains reports whether d falls inside the window.
func (w Window) Contains(d core.Date) bool { return d.Within(w.Start, w.End) }

// CategoryStats is one row of a category breakdown.
type CategoryStats struct {
	Category           core.Category `json:"category"`
	TotalSpent         core.Money    `json:"totalSpent"`
	TransactionCount   int           `json:"transactionCount"`
	AverageTransaction core.Money    `json:"averageTransaction"`
	Percentage         float64       `json:"percentage"`
	PreviousSpent      core.Money    `json:"previousSpent"`
	ChangePercentage   float64       `json:"changePercentage"`
	Trend              Trend         `json:"trend"`
}

type bucket struct {
	category core.Category
	total    decimal.Decimal
	previous decimal.Decimal
	count    int
}

// CategoryBreakdown totals expense transactions per category inside window
// and compares each category with the preceding window of the same length.
// Categories that only had spending in the previous window are included
// with a zero total. Results are ordered by total spent, largest first.
func CategoryBreakdown(txs []core.Transaction, window Window, currency core.Currency, conv core.Converter) ([]CategoryStats, error) {
	prev := window.Previous()
	buckets := map[string]*bucket{}
	order := []string{}
	periodTotal := decimal.Zero

	for _, tx := range txs {
		if tx.Type != core.Expense {
			continue
		}
		current := window.Contains(tx.Date)
		if !current && !prev.Contains(tx.Date) {
			continue
		}
		amount, err := conv.Convert(tx.Amount, currency)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w", tx.ID, err)
		}
		b, ok := buckets[tx.Category.ID]
		if !ok {
			b = &bucket{category: tx.Category}
			buckets[tx.Category.ID] = b
			order = append(order, tx.Category.ID)
		}
		if current {
			b.total = b.total.Add(amount.Amount)
			b.count++
			periodTotal = periodTotal.Add(amount.Amount)
		} else {
			b.previous = b.previous.Add(amount.Amount)
		}
	}

	out := make([]CategoryStats, 0, len(order))
	for _, id := range order {
		b := buckets[id]
		avg := decimal.Zero
		if b.count > 0 {
			avg = b.total.Div(decimal.NewFromInt(int64(b.count)))
		}
		share := decimal.Zero
		if periodTotal.IsPositive() {
			share = b.total.Mul(hundred).Div(periodTotal)
		}
		change := ChangePercentage(b.total, b.previous)
		out = append(out, CategoryStats{
			Category:           b.category,
			TotalSpent:         core.Money{Amount: b.total, Currency: currency},
			TransactionCount:   b.count,
			AverageTransaction: core.Money{Amount: avg, Currency: currency}.Round(),
			Percentage:         share.Round(2).InexactFloat64(),
			PreviousSpent:      core.Money{Amount: b.previous, Currency: currency},
			ChangePercentage:   change,
			Trend:              trendOf(b.total, b.previous),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].TotalSpent.Amount.Cmp(out[j].TotalSpent.Amount); c != 0 {
			return c > 0
		}
		return out[i].Category.ID < out[j].Category.ID
	})
	return out, nil
}

// ChangePercentage is the relative change from previous to current. With no
// previous amount any positive current amount counts as a 100% increase.
func ChangePercentage(current, previous decimal.Decimal) float64 {
	if previous.IsZero() {
		if current.IsPositive() {
			return 100
		}
		return 0
	}
	return current.Sub(previous).Mul(hundred).Div(previous).Round(2).InexactFloat64()
}

func trendOf(current, previous decimal.Decimal) Trend {
	switch current.Cmp(previous) {
	case 1:
		return TrendUp
	case -1:
		return TrendDown
	}
	return TrendStable
}
