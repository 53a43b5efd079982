package report

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/xiansir-zhe/cloud-tool/internal/core"
)

// ErrSpreadsheetUnavailable is returned when no spreadsheet writer is configured.
var ErrSpreadsheetUnavailable = errors.New("spreadsheet export unavailable")

// SpreadsheetWriter renders records as a spreadsheet.
type SpreadsheetWriter interface {
	WriteSpreadsheet(w io.Writer, records []core.Record) error
}

// ExcelWriter writes .xlsx workbooks with a single Results sheet.
type ExcelWriter struct{}

const resultsSheet = "Results"

// WriteSpreadsheet implements SpreadsheetWriter.
func (ExcelWriter) WriteSpreadsheet(w io.Writer, records []core.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	if err := setRow(f, resultsSheet, 1, toRow(RecordsHeader)); err != nil {
		return err
	}
	for i, r := range records {
		ts := ""
		if !r.Timestamp.IsZero() {
			ts = r.Timestamp.Format(time.RFC3339)
		}
		row := []any{r.TargetID, string(r.Status), r.ErrorMessage, r.RequestID, ts}
		if err := setRow(f, resultsSheet, i+2, row); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("writing %s row %d: %w", sheet, row, err)
	}
	return nil
}

func toRow(cols []string) []any {
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = c
	}
	return out
}
