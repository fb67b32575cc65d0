package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Amounts & calendar dates
// ============================================================

// Hundred is used for percentage conversions.
var Hundred = decimal.NewFromInt(100)

// MaxAmount is the largest amount the ledger stores (NUMERIC(14,2)).
var MaxAmount = decimal.RequireFromString("999999999999.99")

// maxAmountInput bounds the length of a cleaned amount string.
const maxAmountInput = 32

// ParseAmount converts a form value into a non-negative amount.
//
// This is the single lenient boundary for numeric input: empty, non-numeric,
// negative and out-of-range values all become zero instead of failing. A
// leading rupee sign, surrounding whitespace and thousands separators
// ("1,00,000") are ignored.
func ParseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "₹")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxAmountInput {
		return decimal.Zero
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return ClampAmount(d)
}

// ClampAmount brings d into the stored range: paise precision, at most
// MaxAmount, never negative. Anything outside that range is zero.
func ClampAmount(d decimal.Decimal) decimal.Decimal {
	// The exponent is checked before any arithmetic; rescaling 1e200000000
	// allocates the full integer.
	if exp := d.Exponent(); exp > 12 || exp < -12 {
		return decimal.Zero
	}
	if d.Exponent() < -2 {
		d = d.Round(2)
	}
	if d.IsNegative() || d.GreaterThan(MaxAmount) {
		return decimal.Zero
	}
	return d
}

// NonNegative clamps d at zero.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// FormAmount is an amount decoded from a request body. It accepts JSON
// numbers and strings and runs them through ParseAmount, so decoding never
// fails on a bad number. Set is false when the field was absent, null or
// blank.
type FormAmount struct {
	decimal.Decimal
	Set bool
}

// Amount builds a FormAmount that is marked as set.
func Amount(d decimal.Decimal) FormAmount {
	return FormAmount{Decimal: d, Set: true}
}

func (a *FormAmount) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		a.Decimal, a.Set = decimal.Zero, false
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	if strings.TrimSpace(raw) == "" {
		a.Decimal, a.Set = decimal.Zero, false
		return nil
	}
	a.Decimal = ParseAmount(raw)
	a.Set = true
	return nil
}

func (a FormAmount) MarshalJSON() ([]byte, error) {
	if !a.Set {
		return []byte("null"), nil
	}
	return a.Decimal.MarshalJSON()
}

// Optional converts the amount to a nullable decimal.
func (a FormAmount) Optional() decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: a.Decimal, Valid: a.Set}
}

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar date without time of day, normalised to UTC midnight.
// The zero Date means "no date" and encodes as JSON null.
type Date struct {
	time.Time
}

// NewDate returns the calendar date of t in t's own location.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts YYYY-MM-DD or RFC 3339. Blank input yields the zero Date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return NewDate(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, &ErrValidation{Field: "date", Message: "expected YYYY-MM-DD"}
	}
	return NewDate(t), nil
}

// AddDays returns the date n days later.
func (d Date) AddDays(n int) Date {
	return Date{d.Time.AddDate(0, 0, n)}
}

// String renders the date as YYYY-MM-DD, or "" when unset.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(d.Format(DateLayout))), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*d = Date{}
		return nil
	}
	s, err := strconv.Unquote(raw)
	if err != nil {
		return &ErrValidation{Field: "date", Message: "expected a quoted date"}
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
