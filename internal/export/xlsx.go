package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/helloviza/approvals/internal/domain/entity"
)

// Sheet names of the spreadsheet export
const (
	SheetRequests = "Requests"
	SheetItems    = "Items"
	SheetHistory  = "History"
)

// WriteXLSX writes a workbook with one summary row per request, one row per
// cart item and one row per history entry
func WriteXLSX(w io.Writer, rows []*entity.ApprovalRequest, viewer Viewer) error {
	f := excelize.NewFile()
	defer f.Close()

	var items, history [][]string
	summary := make([][]string, 0, len(rows))
	for _, req := range rows {
		summary = append(summary, SummaryRow(req, viewer))
		items = append(items, ItemRows(req)...)
		history = append(history, HistoryRows(req, viewer)...)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	sheets := []struct {
		name   string
		header []string
		rows   [][]string
	}{
		{SheetRequests, Columns, summary},
		{SheetItems, ItemColumns, items},
		{SheetHistory, HistoryColumns, history},
	}

	for i, s := range sheets {
		index, err := f.NewSheet(s.name)
		if err != nil {
			return fmt.Errorf("create sheet %s: %w", s.name, err)
		}
		if i == 0 {
			f.SetActiveSheet(index)
		}
		if err := writeSheet(f, s.name, s.header, s.rows, headerStyle); err != nil {
			return fmt.Errorf("write sheet %s: %w", s.name, err)
		}
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]string, headerStyle int) error {
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}

	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(sheet, "A1", lastHeader, headerStyle); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 20); err != nil {
		return err
	}

	for i, row := range rows {
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	// cells are written as strings so codes like "000123" keep their zeros
	vals := make([]interface{}, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return f.SetSheetRow(sheet, cell, &vals)
}
