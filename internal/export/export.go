// Package export serialises debt export rows as CSV, JSON or an
// Excel-readable SpreadsheetML workbook.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/boddenberg/finplan-bfa-go/internal/domain"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
)

// Format is an export encoding.
type Format string

const (
	CSV           Format = "csv"
	JSON          Format = "json"
	SpreadsheetML Format = "xlsx-xml"
)

// ParseFormat accepts csv, json and xlsx-xml (also "xml" and "excel").
// Blank input is CSV.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return CSV, nil
	case "json":
		return JSON, nil
	case "xlsx-xml", "xml", "excel":
		return SpreadsheetML, nil
	}
	return "", &domain.ErrValidation{Field: "format", Message: fmt.Sprintf("unsupported export format %q", s)}
}

// ContentType is the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case JSON:
		return "application/json"
	case SpreadsheetML:
		return "application/vnd.ms-excel"
	default:
		return "text/csv; charset=utf-8"
	}
}

// FileName is the attachment name for an export taken at t.
func (f Format) FileName(t time.Time) string {
	ext := "csv"
	switch f {
	case JSON:
		ext = "json"
	case SpreadsheetML:
		ext = "xml"
	}
	return fmt.Sprintf("debts-%s.%s", t.Format("2006-01-02"), ext)
}

var header = []string{
	"Name", "Type", "Total Amount", "Remaining Balance", "Interest Rate", "Minimum Payment",
	"Due Date", "Status", "Priority", "Lender", "Payments", "Total Paid", "Receipts",
	"Progress %", "Created At",
}

// cell is one exported value; numeric cells are typed as numbers in the
// workbook.
type cell struct {
	value   string
	numeric bool
}

func text(s string) cell { return cell{value: s} }

func number(d decimal.Decimal) cell { return cell{value: d.StringFixed(2), numeric: true} }

func optional(d decimal.NullDecimal) cell {
	if !d.Valid {
		return text("")
	}
	return number(d.Decimal)
}

func count(n int) cell { return cell{value: strconv.Itoa(n), numeric: true} }

func cells(r domain.ExportRow) []cell {
	created := ""
	if !r.CreatedAt.IsZero() {
		created = r.CreatedAt.UTC().Format(time.RFC3339)
	}
	return []cell{
		text(r.Name),
		text(string(r.Type)),
		number(r.TotalAmount),
		number(r.RemainingBalance),
		optional(r.InterestRate),
		optional(r.MinimumPayment),
		text(r.DueDate.String()),
		text(string(r.Status)),
		text(string(r.Priority)),
		text(r.LenderName),
		count(r.PaymentsCount),
		number(r.TotalPaid),
		count(r.ReceiptsCount),
		number(r.ProgressPct),
		text(created),
	}
}

// Write encodes rows to w in format f.
func Write(w io.Writer, f Format, rows []domain.ExportRow) error {
	switch f {
	case JSON:
		return writeJSON(w, rows)
	case SpreadsheetML:
		return writeSpreadsheetML(w, rows)
	case CSV:
		return writeCSV(w, rows)
	}
	return &domain.ErrValidation{Field: "format", Message: fmt.Sprintf("unsupported export format %q", f)}
}

func writeCSV(w io.Writer, rows []domain.ExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		cs := cells(r)
		record := make([]string, len(cs))
		for i, c := range cs {
			record[i] = c.value
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSON(w io.Writer, rows []domain.ExportRow) error {
	if rows == nil {
		rows = []domain.ExportRow{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

const spreadsheetNS = "urn:schemas-microsoft-com:office:spreadsheet"

// writeSpreadsheetML emits an Excel 2003 XML workbook with one "Debts"
// worksheet.
func writeSpreadsheetML(w io.Writer, rows []domain.ExportRow) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	doc.CreateProcInst("mso-application", `progid="Excel.Sheet"`)

	wb := doc.CreateElement("Workbook")
	wb.CreateAttr("xmlns", spreadsheetNS)
	wb.CreateAttr("xmlns:ss", spreadsheetNS)

	styles := wb.CreateElement("Styles")
	bold := styles.CreateElement("Style")
	bold.CreateAttr("ss:ID", "header")
	bold.CreateElement("Font").CreateAttr("ss:Bold", "1")

	ws := wb.CreateElement("Worksheet")
	ws.CreateAttr("ss:Name", "Debts")
	table := ws.CreateElement("Table")

	head := table.CreateElement("Row")
	for _, h := range header {
		c := head.CreateElement("Cell")
		c.CreateAttr("ss:StyleID", "header")
		data := c.CreateElement("Data")
		data.CreateAttr("ss:Type", "String")
		data.SetText(h)
	}

	for _, r := range rows {
		row := table.CreateElement("Row")
		for _, v := range cells(r) {
			c := row.CreateElement("Cell")
			if v.value == "" {
				continue
			}
			data := c.CreateElement("Data")
			if v.numeric {
				data.CreateAttr("ss:Type", "Number")
			} else {
				data.CreateAttr("ss:Type", "String")
			}
			data.SetText(v.value)
		}
	}

	doc.Indent(2)
	_, err := doc.WriteTo(w)
	return err
}
