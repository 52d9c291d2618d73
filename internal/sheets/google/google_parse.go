package google

import (
	"fmt"
	"strings"
)

// columnLetter converts a 1-based column index into its A1 letters
// (1 -> A, 26 -> Z, 27 -> AA).
func columnLetter(col int) string {
	if col < 1 {
		return ""
	}
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}

// quoteSheet quotes a sheet title for use in an A1 range. Single quotes
// inside the title are doubled.
func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// dataRange addresses every data row of a sheet: row 1 holds the headers.
func dataRange(sheet string, width int) string {
	return fmt.Sprintf("%s!A2:%s", quoteSheet(sheet), columnLetter(width))
}

func headerRange(sheet string, width int) string {
	return fmt.Sprintf("%s!A1:%s1", quoteSheet(sheet), columnLetter(width))
}

// cellRange addresses columns [column, column+n-1] of the 0-based data row.
func cellRange(sheet string, rowIndex, column, n int) string {
	row := rowIndex + 2
	return fmt.Sprintf("%s!%s%d:%s%d", quoteSheet(sheet), columnLetter(column), row, columnLetter(column+n-1), row)
}

// escapeQuery escapes a literal for a Drive files.list query.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", `\'`)
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func toCells(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}
