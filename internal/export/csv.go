package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/helloviza/approvals/internal/domain/entity"
)

// bom makes spreadsheet tools read the file as UTF-8 (₹, →, —)
const bom = "\ufeff"

// WriteCSV writes the summary projection of rows as CSV with a UTF-8 BOM
// and CRLF line endings
func WriteCSV(w io.Writer, rows []*entity.ApprovalRequest, viewer Viewer) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(bom); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}
	if err := writeCSVLine(bw, Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, req := range rows {
		if err := writeCSVLine(bw, SummaryRow(req, viewer)); err != nil {
			return fmt.Errorf("write row %s: %w", req.ID, err)
		}
	}

	return bw.Flush()
}

func writeCSVLine(w *bufio.Writer, fields []string) error {
	for i, f := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(EscapeCSV(f)); err != nil {
			return err
		}
	}
	_, err := w.WriteString("\r\n")
	return err
}

// EscapeCSV quotes s when it contains a comma, quote, CR or LF and doubles
// internal quotes
func EscapeCSV(s string) string {
	if !strings.ContainsAny(s, ",\"\r\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
