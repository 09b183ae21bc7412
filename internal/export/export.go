// Package export renders expense lists as downloadable files.
package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"expense-tracker/internal/models"
)

// Format is an export file format.
type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

// SheetName is the worksheet that holds exported expenses.
const SheetName = "Expenses"

// ErrUnknownFormat is returned by ParseFormat for unsupported formats.
var ErrUnknownFormat = errors.New("unknown export format")

var header = []string{"id", "date", "category", "description", "amount", "recurrence_flag"}

// ParseFormat accepts "csv" or "xlsx", case-insensitively. An empty string
// selects CSV.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return CSV, nil
	case "xlsx":
		return XLSX, nil
	}
	return "", fmt.Errorf("%w %q: must be csv or xlsx", ErrUnknownFormat, s)
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == XLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Filename returns a dated attachment name such as expenses_20240501.csv.
func (f Format) Filename(now time.Time) string {
	return fmt.Sprintf("expenses_%s.%s", now.Format("20060102"), f)
}

// Render returns the encoded file contents.
func Render(f Format, expenses []models.Expense) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch f {
	case CSV:
		err = WriteCSV(&buf, expenses)
	case XLSX:
		err = WriteXLSX(&buf, expenses)
	default:
		err = fmt.Errorf("%w %q", ErrUnknownFormat, string(f))
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteCSV writes a header row followed by one row per expense.
func WriteCSV(w io.Writer, expenses []models.Expense) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, e := range expenses {
		if err := writer.Write(row(e)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func row(e models.Expense) []string {
	return []string{
		strconv.FormatInt(e.ID, 10),
		e.Date,
		e.Category,
		e.Description,
		strconv.FormatFloat(e.Amount, 'f', -1, 64),
		string(e.RecurrenceFlag),
	}
}

// WriteXLSX writes a workbook with a single populated sheet. Amounts are
// stored as numbers so spreadsheet formulas work on them.
func WriteXLSX(w io.Writer, expenses []models.Expense) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	for i, h := range header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return err
		}
	}

	for idx, e := range expenses {
		r := idx + 2
		values := []any{e.ID, e.Date, e.Category, e.Description, e.Amount, string(e.RecurrenceFlag)}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, r)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return fmt.Errorf("write cell %s: %w", cell, err)
			}
		}
	}

	f.SetColWidth(SheetName, "A", "A", 8)
	f.SetColWidth(SheetName, "B", "B", 34)
	f.SetColWidth(SheetName, "C", "C", 16)
	f.SetColWidth(SheetName, "D", "D", 40)
	f.SetColWidth(SheetName, "E", "E", 12)
	f.SetColWidth(SheetName, "F", "F", 16)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
