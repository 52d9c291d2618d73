package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"mmms/internal/core"
	"mmms/internal/log"
	"mmms/internal/sheets"
)

// TransactionService records and queries income and expenses.
type TransactionService struct {
	*base
	categories *CategoryRegistry
	budgets    *BudgetGoalService
}

// TransactionFilter narrows List. Zero fields match everything.
type TransactionFilter struct {
	// Month is YYYY-MM.
	Month      string
	Type       core.TransactionType
	CategoryID string
	Start      *core.Date
	End        *core.Date
}

// TransactionInput carries a new transaction.
type TransactionInput struct {
	Date        core.Date
	Description string
	Amount      core.Money
	CategoryID  string
	Type        core.TransactionType
	Recurring   *core.RecurringConfig
	Tags        []string
}

// ParseMonth parses YYYY-MM.
func ParseMonth(s string) (year, month int, err error) {
	if _, err := fmt.Sscanf(s, "%04d-%02d", &year, &month); err != nil || len(s) != 7 || month < 1 || month > 12 {
		return 0, 0, core.Invalid("month", "must be YYYY-MM")
	}
	return year, month, nil
}

func (f TransactionFilter) match(tx core.Transaction) bool {
	if f.Month != "" && !strings.HasPrefix(tx.Date.String(), f.Month) {
		return false
	}
	if f.Type != "" && tx.Type != f.Type {
		return false
	}
	if f.CategoryID != "" && tx.Category.ID != f.CategoryID {
		return false
	}
	if f.Start != nil && tx.Date.Before(*f.Start) {
		return false
	}
	if f.End != nil && tx.Date.After(*f.End) {
		return false
	}
	return true
}

// All returns every stored transaction in row order. Unreadable rows are
// logged and skipped.
func (s *TransactionService) All(ctx context.Context) ([]core.Transaction, error) {
	rows, err := s.gw.List(ctx, sheets.KindTransactions)
	if err != nil {
		return nil, err
	}
	resolve := s.categories.Resolver(ctx)
	txs := make([]core.Transaction, 0, len(rows))
	for i, row := range rows {
		tx, err := sheets.ParseTransaction(row, resolve)
		if err != nil {
			s.logger.WarnContext(ctx, "Skipping unreadable transaction row", "row", i, log.FieldError, err)
			continue
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// List returns the transactions matching f, newest first.
func (s *TransactionService) List(ctx context.Context, f TransactionFilter) ([]core.Transaction, error) {
	if f.Month != "" {
		if _, _, err := ParseMonth(f.Month); err != nil {
			return nil, err
		}
	}
	if f.Type != "" && !f.Type.Valid() {
		return nil, core.Invalid("type", "must be income or expense")
	}
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Transaction, 0, len(all))
	for _, tx := range all {
		if f.match(tx) {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

// Get returns the transaction with id.
func (s *TransactionService) Get(ctx context.Context, id string) (core.Transaction, error) {
	_, tx, err := s.find(ctx, id)
	return tx, err
}

// Create validates and stores a transaction, then refreshes the budget
// goals its category feeds.
func (s *TransactionService) Create(ctx context.Context, in TransactionInput) (core.Transaction, error) {
	tx := core.Transaction{
		ID:          newID("trans"),
		Date:        in.Date,
		Description: strings.TrimSpace(in.Description),
		Amount:      in.Amount,
		Type:        in.Type,
		Recurring:   in.Recurring,
		Tags:        in.Tags,
	}
	if tx.Date.IsZero() {
		tx.Date = s.today()
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	categoryID := in.CategoryID
	if categoryID == "" {
		categoryID = core.OtherCategoryID
	}
	tx.Category = s.categories.GetByID(ctx, categoryID)

	if err := s.gw.Append(ctx, sheets.KindTransactions, sheets.TransactionRow(tx)); err != nil {
		return core.Transaction{}, err
	}
	log.NewStructuredLogger(s.logger).LogTransactionCreated(ctx, s.owner, tx.ID, string(tx.Type),
		tx.Category.ID, sheets.AmountCell(tx.Amount), string(tx.Amount.Currency))

	if tx.Type == core.Expense && s.budgets != nil {
		if err := s.budgets.ExpenseRecorded(ctx, tx); err != nil {
			s.logger.WarnContext(ctx, "Budget goals not refreshed",
				log.FieldEntityID, tx.ID, log.FieldError, err)
		}
	}
	return tx, nil
}

// Delete removes the transaction with id.
func (s *TransactionService) Delete(ctx context.Context, id string) error {
	rowIndex, _, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.gw.DeleteRow(ctx, sheets.KindTransactions, rowIndex); err != nil {
		return notFound(err, "transaction", id)
	}
	s.logger.InfoContext(ctx, "Transaction deleted", log.FieldUser, s.owner, log.FieldEntityID, id)
	return nil
}

func (s *TransactionService) find(ctx context.Context, id string) (int, core.Transaction, error) {
	rows, err := s.gw.List(ctx, sheets.KindTransactions)
	if err != nil {
		return 0, core.Transaction{}, err
	}
	for i, row := range rows {
		if len(row) == 0 || strings.TrimSpace(row[0]) != id {
			continue
		}
		tx, err := sheets.ParseTransaction(row, s.categories.Resolver(ctx))
		if err != nil {
			return 0, core.Transaction{}, core.Persistence("read", string(sheets.KindTransactions), err)
		}
		return i, tx, nil
	}
	return 0, core.Transaction{}, &core.NotFoundError{Kind: "transaction", ID: id}
}
