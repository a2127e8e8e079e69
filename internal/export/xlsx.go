package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"cardsync/internal/domain"
)

// SheetName is the worksheet holding exported records.
const SheetName = "Records"

// XLSX renders records as an Excel workbook.
func XLSX(records []domain.Record) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("export.XLSX: renaming sheet: %w", err)
	}

	for i, h := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}
	for i := range records {
		for col, v := range recordToRow(i, &records[i]) {
			if v == "" {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			_ = f.SetCellValue(SheetName, cell, v)
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 6)
	_ = f.SetColWidth(SheetName, "B", "C", 28)
	_ = f.SetColWidth(SheetName, "D", "E", 32)
	_ = f.SetColWidth(SheetName, "F", "G", 20)
	_ = f.SetColWidth(SheetName, "H", "H", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("export.XLSX: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadXLSX reads records from a workbook laid out like XLSX output. The
// header row decides the column order; blank cells are left out of the
// record and a non-empty Error cell yields an error record.
func ReadXLSX(r io.Reader) ([]domain.Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("export.ReadXLSX: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheet := SheetName
	if idx, _ := f.GetSheetIndex(sheet); idx == -1 {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("export.ReadXLSX: reading rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := make(map[int]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}

	records := make([]domain.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		fields := map[string]any{}
		var errMsg string
		for i, cell := range row {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			switch name := header[i]; name {
			case "", "#":
			case "Error":
				errMsg = cell
			default:
				fields[name] = cell
			}
		}
		switch {
		case errMsg != "":
			records = append(records, domain.NewErrorRecord(errMsg, "", ""))
		case len(fields) > 0:
			records = append(records, domain.NewRecord(fields))
		}
	}
	return records, nil
}
