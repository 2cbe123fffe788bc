package export

import (
	"fmt"
	"io"
	"strings"

	"atelier/internal/ledger"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Statement"

// WriteXLSX writes the statement as a single-sheet workbook.
func WriteXLSX(w io.Writer, st ledger.Statement) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	for r, row := range Rows(st) {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, cellValue(v)); err != nil {
				return fmt.Errorf("set %s: %w", cell, err)
			}
		}
		if isHeading(row) {
			first, _ := excelize.CoordinatesToCellName(1, r+1)
			last, _ := excelize.CoordinatesToCellName(len(row), r+1)
			if err := f.SetCellStyle(sheetName, first, last, bold); err != nil {
				return fmt.Errorf("style row %d: %w", r+1, err)
			}
		}
	}

	widths := map[string]float64{"A": 14, "B": 36, "C": 18, "D": 14, "E": 14, "F": 14, "G": 12}
	for col, width := range widths {
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			return fmt.Errorf("set width %s: %w", col, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// cellValue turns amount strings into numbers so the workbook can sum them.
func cellValue(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	_, frac, found := strings.Cut(s, ".")
	if !found || len(frac) != 2 {
		return s
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return s
	}
	f, _ := d.Float64()
	return f
}

func isHeading(row []any) bool {
	if len(row) == 0 {
		return false
	}
	first, ok := row[0].(string)
	if !ok {
		return false
	}
	return first == ChargeHeader[0] && len(row) > 1 && (row[1] == ChargeHeader[1] || row[1] == PaymentHeader[1])
}
