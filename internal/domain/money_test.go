package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "0"},
		{"   ", "0"},
		{"abc", "0"},
		{"-100", "0"},
		{"1500", "1500"},
		{"  1500.75 ", "1500.75"},
		{"₹1,00,000", "100000"},
		{"12,345.60", "12345.6"},
		{"1e200000000", "0"},
		{"1e-200000000", "0"},
		{"1.5e3", "1500"},
		{"0.004", "0"},
		{"10.005", "10.01"},
		{"999999999999.99", "999999999999.99"},
		{"1000000000000", "0"},
		{"123456789012345678901234567890123", "0"},
	}
	for _, tt := range tests {
		got := ParseAmount(tt.in)
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("ParseAmount(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestFormAmount_UnmarshalJSON(t *testing.T) {
	var body struct {
		A FormAmount `json:"a"`
		B FormAmount `json:"b"`
		C FormAmount `json:"c"`
		D FormAmount `json:"d"`
		E FormAmount `json:"e"`
	}
	raw := `{"a": 1200.5, "b": "₹2,500", "c": "", "d": null, "e": "oops"}`
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !body.A.Set || body.A.String() != "1200.5" {
		t.Errorf("a: got %s set=%v", body.A.String(), body.A.Set)
	}
	if !body.B.Set || body.B.String() != "2500" {
		t.Errorf("b: got %s set=%v", body.B.String(), body.B.Set)
	}
	if body.C.Set || body.D.Set {
		t.Error("blank and null must be unset")
	}
	if !body.E.Set || !body.E.IsZero() {
		t.Errorf("invalid number must be zero, got %s", body.E.String())
	}
	if body.D.Optional().Valid {
		t.Error("unset amount must convert to an invalid NullDecimal")
	}
}

func TestDate_JSON(t *testing.T) {
	var v struct {
		Due  Date `json:"due"`
		None Date `json:"none"`
	}
	if err := json.Unmarshal([]byte(`{"due":"2024-03-15","none":null}`), &v); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Due.String() != "2024-03-15" {
		t.Errorf("expected 2024-03-15, got %s", v.Due)
	}
	if !v.None.IsZero() {
		t.Error("null must decode to the zero date")
	}

	out, _ := json.Marshal(v)
	if !strings.Contains(string(out), `"due":"2024-03-15"`) || !strings.Contains(string(out), `"none":null`) {
		t.Errorf("unexpected encoding: %s", out)
	}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2024-03-15T23:30:00+05:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.String() != "2024-03-15" {
		t.Errorf("expected the local calendar date, got %s", got)
	}

	_, err = ParseDate("15/03/2024")
	var validation *ErrValidation
	if !errors.As(err, &validation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestDate_AddDays(t *testing.T) {
	d := NewDate(time.Date(2024, time.February, 27, 18, 0, 0, 0, time.UTC))
	if got := d.AddDays(3).String(); got != "2024-03-01" {
		t.Errorf("expected 2024-03-01, got %s", got)
	}
}

func TestBracketTable_Validate(t *testing.T) {
	good := DefaultTaxRules().Table(AgeUnder60)
	if err := good.Validate(); err != nil {
		t.Fatalf("expected valid table, got %v", err)
	}

	gap := BracketTable{bracket(0, 100, "0"), bracket(200, 0, "0.1")}
	decreasing := BracketTable{bracket(0, 100, "0.2"), bracket(100, 0, "0.1")}
	bounded := BracketTable{bracket(0, 100, "0")}
	offset := BracketTable{bracket(10, 0, "0")}

	for name, table := range map[string]BracketTable{
		"gap": gap, "decreasing": decreasing, "bounded": bounded, "offset": offset, "empty": nil,
	} {
		if err := table.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestReceiptUpload_Validate(t *testing.T) {
	pdf := []byte("%PDF-1.4")

	if err := (ReceiptUpload{MimeType: "application/pdf", Data: pdf}).Validate(); err != nil {
		t.Errorf("expected valid upload, got %v", err)
	}

	var tooLarge *ErrPayloadTooLarge
	big := ReceiptUpload{MimeType: "image/png", Data: make([]byte, MaxReceiptSize+1)}
	if err := big.Validate(); !errors.As(err, &tooLarge) {
		t.Errorf("expected ErrPayloadTooLarge, got %v", err)
	}

	var unsupported *ErrUnsupportedMedia
	gif := ReceiptUpload{MimeType: "image/gif", Data: pdf}
	if err := gif.Validate(); !errors.As(err, &unsupported) {
		t.Errorf("expected ErrUnsupportedMedia, got %v", err)
	}

	var validation *ErrValidation
	if err := (ReceiptUpload{MimeType: "image/png"}).Validate(); !errors.As(err, &validation) {
		t.Errorf("expected ErrValidation for empty file, got %v", err)
	}
}

func TestReceiptUpload_ObjectName(t *testing.T) {
	u := ReceiptUpload{FileName: `C:\scans\march bill (1).pdf`}
	at := time.UnixMilli(1718000000000)

	got := u.ObjectName(at, "abc")

	if got != "1718000000000-abc-march_bill__1_.pdf" {
		t.Errorf("unexpected object name %q", got)
	}
}

func TestUpdateDebtRequest_Patch(t *testing.T) {
	var req UpdateDebtRequest
	if err := json.Unmarshal([]byte(`{"status":"paused","remainingBalance":"1,000"}`), &req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, err := req.Patch()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status == nil || *p.Status != StatusPaused {
		t.Errorf("expected PAUSED, got %v", p.Status)
	}
	if p.RemainingBalance == nil || p.RemainingBalance.String() != "1000" {
		t.Errorf("expected remaining 1000, got %v", p.RemainingBalance)
	}
	if p.TotalAmount != nil {
		t.Error("absent total must stay nil")
	}

	bad := UpdateDebtRequest{Type: ptr("MORTGAGE")}
	if _, err := bad.Patch(); err == nil {
		t.Error("expected error for unknown type")
	}
}

func ptr[T any](v T) *T { return &v }

func TestClampAmount_Paise(t *testing.T) {
	got := ClampAmount(decimal.RequireFromString("49999.996"))
	if got.String() != "50000" || got.Exponent() != -2 {
		t.Errorf("got %s exp=%d, want 50000 at paise precision", got, got.Exponent())
	}
	if !ClampAmount(decimal.NewFromInt(-5)).IsZero() {
		t.Error("negative amounts should clamp to zero")
	}
}
