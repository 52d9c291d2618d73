// Package export renders transactions as spreadsheet downloads.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"mmms/internal/core"
)

// SheetName is the worksheet holding the exported transactions.
const SheetName = "Transactions"

// ContentType is the media type of XLSX workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var headers = []any{"ID", "Date", "Description", "Amount", "Currency", "Category", "Type", "Tags", "Recurring"}

// TransactionsXLSX writes txs to w as a workbook with a bold header row and
// one row per transaction, in the given order.
func TransactionsXLSX(w io.Writer, txs []core.Transaction) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(SheetName, "A1", &headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	last, _ := excelize.ColumnNumberToName(len(headers))
	if err := f.SetCellStyle(SheetName, "A1", last+"1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, tx := range txs {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		recurring := ""
		if tx.Recurring != nil {
			recurring = string(tx.Recurring.Frequency)
		}
		row := []any{
			tx.ID,
			tx.Date.String(),
			tx.Description,
			tx.Amount.Float(),
			string(tx.Amount.Currency),
			tx.Category.Name,
			string(tx.Type),
			strings.Join(tx.Tags, ", "),
			recurring,
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(SheetName, "C", "C", 40); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// FileName returns the download name of a month export.
func FileName(month string) string {
	if month == "" {
		return "transactions.xlsx"
	}
	return "transactions-" + month + ".xlsx"
}
