package sheets

import "fmt"

// Layout describes where a Kind lives and the header row of its sheet.
type Layout struct {
	Kind        Kind
	Spreadsheet string
	Sheet       string
	Headers     []string
}

// 1-based columns written by UpdateCell.
const (
	ColBudgetTarget         = 3
	ColBudgetSpent          = 4
	ColBudgetCurrency       = 5
	ColBudgetPeriod         = 6
	ColBudgetName           = 8
	ColBudgetAlertThreshold = 9

	ColSavingsName        = 2
	ColSavingsTarget      = 3
	ColSavingsCurrent     = 4
	ColSavingsCurrency    = 5
	ColSavingsDeadline    = 6
	ColSavingsDescription = 8

	ColCategoryName           = 2
	ColCategoryIcon           = 3
	ColCategoryColor          = 4
	ColCategoryBudgetLimit    = 6
	ColCategoryBudgetCurrency = 7
)

var layouts = map[Kind]Layout{
	KindTransactions: {
		Kind:        KindTransactions,
		Spreadsheet: "MMMS_Transactions",
		Sheet:       "Transactions",
		Headers:     []string{"ID", "Date", "Description", "Amount", "Currency", "CategoryId", "Type", "Tags", "Recurring"},
	},
	KindBudgetGoals: {
		Kind:        KindBudgetGoals,
		Spreadsheet: "MMMS_Budget_Goals",
		Sheet:       "BudgetGoals",
		Headers:     []string{"ID", "CategoryId", "Target", "Spent", "Currency", "Period", "CreatedDate", "Name", "AlertThreshold"},
	},
	KindSavingsGoals: {
		Kind:        KindSavingsGoals,
		Spreadsheet: "MMMS_Savings_Goals",
		Sheet:       "SavingsGoals",
		Headers:     []string{"ID", "Name", "Target", "Current", "Currency", "Deadline", "CreatedDate", "Description"},
	},
	KindCategories: {
		Kind:        KindCategories,
		Spreadsheet: "MMMS_Categories",
		Sheet:       "Categories",
		Headers:     []string{"ID", "Name", "Icon", "Color", "CreatedDate", "BudgetLimit", "BudgetCurrency"},
	},
	KindBudgetEntries: {
		Kind:        KindBudgetEntries,
		Spreadsheet: "MMMS Budget Tracker",
		Sheet:       "Budget Entries",
		Headers: []string{"Date", "Month", "Total Income", "Currency", "Item Name", "Item Amount",
			"Item Currency", "Category", "Remaining", "Telegram Chat ID"},
	},
}

// Kinds lists every container kind in provisioning order.
func Kinds() []Kind {
	return []Kind{KindTransactions, KindBudgetGoals, KindSavingsGoals, KindCategories, KindBudgetEntries}
}

// LayoutOf returns the layout registered for kind.
func LayoutOf(kind Kind) (Layout, error) {
	l, ok := layouts[kind]
	if !ok {
		return Layout{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	l.Headers = append([]string(nil), l.Headers...)
	return l, nil
}

// Width is the number of columns of the layout.
func (l Layout) Width() int { return len(l.Headers) }

// Pad returns row extended with empty cells to the layout width. Sheets
// omits trailing empty cells when reading.
func (l Layout) Pad(row Row) Row {
	if len(row) >= len(l.Headers) {
		return row
	}
	out := make(Row, len(l.Headers))
	copy(out, row)
	return out
}
