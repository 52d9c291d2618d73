package services

import (
	"context"
	"strconv"
	"strings"

	"mmms/internal/core"
	"mmms/internal/log"
	"mmms/internal/notify"
	"mmms/internal/sheets"
)

// BudgetEntryService stores monthly budget plans, one row per item.
type BudgetEntryService struct {
	*base
}

// BudgetItem is one planned expense of a budget.
type BudgetItem struct {
	Name     string
	Amount   core.Money
	Category string
}

// BudgetPlan is a monthly budget as submitted by the user.
type BudgetPlan struct {
	Date           core.Date
	Month          string
	TotalIncome    core.Money
	Items          []BudgetItem
	TelegramChatID string
}

// SaveResult summarises a stored plan in the income currency.
type SaveResult struct {
	TotalSpending core.Money
	Remaining     core.Money
	EntriesAdded  int
}

// Container describes the spreadsheet holding the budget entries.
type Container struct {
	ID  string
	URL string
}

// EnsureSpreadsheet returns the budget container, creating it if needed.
func (s *BudgetEntryService) EnsureSpreadsheet(ctx context.Context) (Container, error) {
	id, err := s.gw.EnsureContainer(ctx, sheets.KindBudgetEntries)
	if err != nil {
		return Container{}, err
	}
	return Container{ID: id, URL: sheets.ContainerURL(id)}, nil
}

func (p BudgetPlan) validate() error {
	if strings.TrimSpace(p.Month) == "" {
		return core.Invalid("month", "is required")
	}
	if err := p.TotalIncome.Validate(); err != nil {
		return err
	}
	if p.TotalIncome.Amount.IsNegative() {
		return core.Invalid("totalIncome", "must not be negative")
	}
	if len(p.Items) == 0 {
		return core.Invalid("items", "must contain at least one item")
	}
	for _, item := range p.Items {
		if strings.TrimSpace(item.Name) == "" {
			return core.Invalid("items.name", "is required")
		}
		if err := item.Amount.Validate(); err != nil {
			return err
		}
		if item.Amount.Amount.IsNegative() {
			return core.Invalid("items.amount", "must not be negative")
		}
	}
	return nil
}

// Save appends one row per item. Totals are computed in the income currency
// and the remaining amount is repeated on every row.
func (s *BudgetEntryService) Save(ctx context.Context, plan BudgetPlan) (SaveResult, error) {
	if err := plan.validate(); err != nil {
		return SaveResult{}, err
	}
	if plan.Date.IsZero() {
		plan.Date = s.today()
	}
	currency := plan.TotalIncome.Currency

	amounts := make([]core.Money, len(plan.Items))
	for i, item := range plan.Items {
		amounts[i] = item.Amount
	}
	spending, err := s.conv().Sum(currency, amounts...)
	if err != nil {
		return SaveResult{}, err
	}
	remaining, err := s.conv().Subtract(plan.TotalIncome, spending, currency)
	if err != nil {
		return SaveResult{}, err
	}

	if _, err := s.gw.EnsureContainer(ctx, sheets.KindBudgetEntries); err != nil {
		return SaveResult{}, err
	}
	for _, item := range plan.Items {
		entry := core.BudgetEntry{
			Date:           plan.Date.String(),
			Month:          plan.Month,
			TotalIncome:    plan.TotalIncome,
			ItemName:       strings.TrimSpace(item.Name),
			ItemAmount:     item.Amount,
			Category:       item.Category,
			Remaining:      remaining,
			TelegramChatID: plan.TelegramChatID,
		}
		if err := s.gw.Append(ctx, sheets.KindBudgetEntries, sheets.BudgetEntryRow(entry)); err != nil {
			return SaveResult{}, err
		}
	}
	s.logger.InfoContext(ctx, "Budget saved",
		log.FieldUser, s.owner,
		log.FieldMonth, plan.Month,
		log.FieldCount, len(plan.Items))

	if plan.TelegramChatID != "" {
		items := make([]notify.SummaryItem, len(plan.Items))
		for i, item := range plan.Items {
			items[i] = notify.SummaryItem{Name: item.Name, Amount: item.Amount}
		}
		n := notify.BudgetSummary(s.owner, plan.TelegramChatID, plan.Month, plan.TotalIncome, items, remaining, s.deps.Clock())
		if err := s.deps.Notifier.Notify(ctx, n); err != nil {
			s.logger.WarnContext(ctx, "Budget summary not delivered", log.FieldMonth, plan.Month, log.FieldError, err)
		}
	}

	return SaveResult{TotalSpending: spending, Remaining: remaining, EntriesAdded: len(plan.Items)}, nil
}

// List returns every entry; RowIndex addresses the entry for Delete.
func (s *BudgetEntryService) List(ctx context.Context) ([]core.BudgetEntry, error) {
	rows, err := s.gw.List(ctx, sheets.KindBudgetEntries)
	if err != nil {
		return nil, err
	}
	entries := make([]core.BudgetEntry, 0, len(rows))
	for i, row := range rows {
		e, err := sheets.ParseBudgetEntry(i, row)
		if err != nil {
			s.logger.WarnContext(ctx, "Skipping unreadable budget entry row", "row", i, log.FieldError, err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Delete removes the entry at rowIndex.
func (s *BudgetEntryService) Delete(ctx context.Context, rowIndex int) error {
	if rowIndex < 0 {
		return core.Invalid("rowIndex", "must not be negative")
	}
	if err := s.gw.DeleteRow(ctx, sheets.KindBudgetEntries, rowIndex); err != nil {
		return notFound(err, "budget entry", strconv.Itoa(rowIndex))
	}
	return nil
}
