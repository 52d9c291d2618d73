package sheets

import (
	"fmt"
	"strconv"
	"strings"

	"mmms/internal/core"
)

// CategoryResolver maps a stored category id to a full category.
type CategoryResolver func(id string) core.Category

// TransactionRow encodes tx in the transactions layout.
func TransactionRow(tx core.Transaction) Row {
	return Row{
		tx.ID,
		tx.Date.String(),
		tx.Description,
		AmountCell(tx.Amount),
		string(tx.Amount.Currency),
		tx.Category.ID,
		string(tx.Type),
		strings.Join(tx.Tags, ","),
		core.EncodeRecurring(tx.Recurring),
	}
}

// ParseTransaction decodes a transactions row.
func ParseTransaction(row Row, resolve CategoryResolver) (core.Transaction, error) {
	id := cell(row, 0)
	if id == "" {
		return core.Transaction{}, fmt.Errorf("transaction row without id")
	}
	date, err := core.ParseDate(cell(row, 1))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, err)
	}
	amount, err := moneyCells(cell(row, 3), cell(row, 4))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, err)
	}
	recurring, err := core.DecodeRecurring(cell(row, 8))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, err)
	}
	typ := core.TransactionType(strings.ToLower(cell(row, 6)))
	if !typ.Valid() {
		typ = core.Expense
	}
	return core.Transaction{
		ID:          id,
		Date:        date,
		Description: cell(row, 2),
		Amount:      amount,
		Category:    resolve(cell(row, 5)),
		Type:        typ,
		Recurring:   recurring,
		Tags:        splitTags(cell(row, 7)),
	}, nil
}

// BudgetGoalRow encodes g with a snapshot of spent in the goal currency.
func BudgetGoalRow(g core.BudgetGoal, spent core.Money) Row {
	threshold := ""
	if g.AlertThreshold != nil {
		threshold = strconv.FormatFloat(*g.AlertThreshold, 'f', -1, 64)
	}
	return Row{
		g.ID,
		g.Category.ID,
		AmountCell(g.Limit),
		AmountCell(spent),
		string(g.Limit.Currency),
		string(g.Period),
		g.CreatedDate.String(),
		g.Name,
		threshold,
	}
}

// ParseBudgetGoal decodes a budget goal row. The Spent column is ignored:
// spent is always derived from transactions.
func ParseBudgetGoal(row Row, resolve CategoryResolver) (core.BudgetGoal, error) {
	id := cell(row, 0)
	if id == "" {
		return core.BudgetGoal{}, fmt.Errorf("budget goal row without id")
	}
	limit, err := moneyCells(cell(row, 2), cell(row, 4))
	if err != nil {
		return core.BudgetGoal{}, fmt.Errorf("budget goal %s: %w", id, err)
	}
	period := core.Period(strings.ToLower(cell(row, 5)))
	if !period.Valid() {
		period = core.PeriodMonthly
	}
	created, _ := optionalDate(cell(row, 6))
	category := resolve(cell(row, 1))
	name := cell(row, 7)
	if name == "" {
		name = category.Name
	}
	g := core.BudgetGoal{
		ID:          id,
		Name:        name,
		Category:    category,
		Limit:       limit,
		Period:      period,
		CreatedDate: created,
	}
	if s := cell(row, 8); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return core.BudgetGoal{}, fmt.Errorf("budget goal %s: invalid alert threshold %q", id, s)
		}
		g.AlertThreshold = &v
	}
	return g, nil
}

// SavingsGoalRow encodes g in the savings goals layout.
func SavingsGoalRow(g core.SavingsGoal) Row {
	deadline := ""
	if g.TargetDate != nil {
		deadline = g.TargetDate.String()
	}
	return Row{
		g.ID,
		g.Name,
		AmountCell(g.TargetAmount),
		AmountCell(g.CurrentAmount),
		string(g.TargetAmount.Currency),
		deadline,
		g.CreatedDate.String(),
		g.Description,
	}
}

// ParseSavingsGoal decodes a savings goal row.
func ParseSavingsGoal(row Row) (core.SavingsGoal, error) {
	id := cell(row, 0)
	if id == "" {
		return core.SavingsGoal{}, fmt.Errorf("savings goal row without id")
	}
	target, err := moneyCells(cell(row, 2), cell(row, 4))
	if err != nil {
		return core.SavingsGoal{}, fmt.Errorf("savings goal %s: %w", id, err)
	}
	current, err := moneyCells(cell(row, 3), cell(row, 4))
	if err != nil {
		return core.SavingsGoal{}, fmt.Errorf("savings goal %s: %w", id, err)
	}
	g := core.SavingsGoal{
		ID:            id,
		Name:          cell(row, 1),
		TargetAmount:  target,
		CurrentAmount: current,
		Description:   cell(row, 7),
	}
	if deadline, ok := optionalDate(cell(row, 5)); ok {
		g.TargetDate = &deadline
	}
	g.CreatedDate, _ = optionalDate(cell(row, 6))
	return g, nil
}

// CategoryRow encodes a custom category.
func CategoryRow(c core.Category) Row {
	limit, currency := "", ""
	if c.BudgetLimit != nil {
		limit = AmountCell(*c.BudgetLimit)
		currency = string(c.BudgetLimit.Currency)
	}
	return Row{c.ID, c.Name, c.Icon, c.Color, c.CreatedDate.String(), limit, currency}
}

// ParseCategory decodes a custom category row.
func ParseCategory(row Row) (core.Category, error) {
	id := cell(row, 0)
	if id == "" {
		return core.Category{}, fmt.Errorf("category row without id")
	}
	c := core.Category{
		ID:       id,
		Name:     cell(row, 1),
		Icon:     cell(row, 2),
		Color:    cell(row, 3),
		IsCustom: true,
	}
	c.CreatedDate, _ = optionalDate(cell(row, 4))
	if s := cell(row, 5); s != "" {
		limit, err := moneyCells(s, cell(row, 6))
		if err != nil {
			return core.Category{}, fmt.Errorf("category %s: %w", id, err)
		}
		c.BudgetLimit = &limit
	}
	return c, nil
}

// BudgetEntryRow encodes one budgeted item.
func BudgetEntryRow(e core.BudgetEntry) Row {
	return Row{
		e.Date,
		e.Month,
		AmountCell(e.TotalIncome),
		string(e.TotalIncome.Currency),
		e.ItemName,
		AmountCell(e.ItemAmount),
		string(e.ItemAmount.Currency),
		e.Category,
		AmountCell(e.Remaining),
		e.TelegramChatID,
	}
}

// ParseBudgetEntry decodes the data row at index.
func ParseBudgetEntry(index int, row Row) (core.BudgetEntry, error) {
	income, err := moneyCells(cell(row, 2), cell(row, 3))
	if err != nil {
		return core.BudgetEntry{}, fmt.Errorf("budget entry %d: %w", index, err)
	}
	item, err := moneyCells(cell(row, 5), cell(row, 6))
	if err != nil {
		return core.BudgetEntry{}, fmt.Errorf("budget entry %d: %w", index, err)
	}
	remaining, err := moneyCells(cell(row, 8), cell(row, 3))
	if err != nil {
		return core.BudgetEntry{}, fmt.Errorf("budget entry %d: %w", index, err)
	}
	return core.BudgetEntry{
		RowIndex:       index,
		Date:           cell(row, 0),
		Month:          cell(row, 1),
		TotalIncome:    income,
		ItemName:       cell(row, 4),
		ItemAmount:     item,
		Category:       cell(row, 7),
		Remaining:      remaining,
		TelegramChatID: cell(row, 9),
	}, nil
}

// AmountCell renders an amount the way every layout stores it.
func AmountCell(m core.Money) string { return m.Amount.String() }

func moneyCells(amount, currency string) (core.Money, error) {
	c := core.USD
	if currency != "" {
		parsed, err := core.ParseCurrency(currency)
		if err != nil {
			return core.Money{}, err
		}
		c = parsed
	}
	if amount == "" {
		return core.Zero(c), nil
	}
	d, err := core.ParseAmount(amount)
	if err != nil {
		return core.Money{}, err
	}
	return core.Money{Amount: d, Currency: c}, nil
}

func optionalDate(s string) (core.Date, bool) {
	if s == "" {
		return core.Date{}, false
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, false
	}
	return d, true
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func cell(row Row, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
