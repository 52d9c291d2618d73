package sheets

import (
	"context"
	"errors"
	"strings"

	"mmms/internal/core"
)

// Kind names one of the per-user containers (a spreadsheet with one sheet).
type Kind string

const (
	KindTransactions  Kind = "transactions"
	KindBudgetGoals   Kind = "budget_goals"
	KindSavingsGoals  Kind = "savings_goals"
	KindCategories    Kind = "categories"
	KindBudgetEntries Kind = "budget_entries"
)

// Row is one data row, cells in column order.
type Row []string

// ErrRowOutOfRange is returned when a row index does not address a data row.
var ErrRowOutOfRange = errors.New("row index out of range")

// ErrUnknownKind is returned for a Kind without a layout.
var ErrUnknownKind = errors.New("unknown container kind")

// Ports for outbound adapters.
type (
	// Gateway is the row-level storage of one user.
	//
	// Row indexes are 0-based over data rows (the header row is never
	// addressed), columns are 1-based. Failures are reported as
	// *core.PersistenceError.
	Gateway interface {
		// EnsureContainer returns the container id for kind, creating it and
		// writing its header row when missing. Safe to call repeatedly.
		EnsureContainer(ctx context.Context, kind Kind) (string, error)
		// List returns every data row of kind in row order.
		List(ctx context.Context, kind Kind) ([]Row, error)
		Append(ctx context.Context, kind Kind, row Row) error
		// UpdateCell overwrites columns [column, column+len(values)-1] of rowIndex.
		UpdateCell(ctx context.Context, kind Kind, rowIndex, column int, values ...string) error
		DeleteRow(ctx context.Context, kind Kind, rowIndex int) error
	}

	// Provider builds a Gateway bound to the credentials of user.
	Provider interface {
		Gateway(ctx context.Context, user core.User) (Gateway, error)
	}
)

// ContainerURL returns the browser link of a Google spreadsheet id. Local
// backends return ids of the form "<backend>:..." which have no link.
func ContainerURL(id string) string {
	if id == "" || strings.Contains(id, ":") {
		return ""
	}
	return "https://docs.google.com/spreadsheets/d/" + id + "/edit"
}
