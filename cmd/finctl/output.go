package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
)

const (
	outputText = "text"
	outputJSON = "json"
)

// render writes v as indented JSON, or calls text for the human format.
func (a *app) render(w io.Writer, v any, text func(w io.Writer) error) error {
	if a.v.GetString("output") == outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(w)
}

// table is a two-column key/value listing.
type table struct {
	tw *tabwriter.Writer
}

func newTable(w io.Writer) *table {
	return &table{tw: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

func (t *table) row(label string, value any) {
	fmt.Fprintf(t.tw, "%s\t%v\n", label, value)
}

func (t *table) money(label string, d decimal.Decimal) {
	t.row(label, "₹"+d.StringFixed(2))
}

func (t *table) pct(label string, d decimal.Decimal) {
	t.row(label, d.StringFixed(2)+"%")
}

func (t *table) flush() error {
	return t.tw.Flush()
}
