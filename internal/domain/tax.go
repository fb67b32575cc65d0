package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ============================================================
// Income tax (old regime, FY2024-25)
// ============================================================

// AgeCategory selects the bracket table.
type AgeCategory string

const (
	AgeUnder60 AgeCategory = "under60"
	Age60To80  AgeCategory = "60to80"
	AgeOver80  AgeCategory = "over80"
)

// ParseAgeCategory maps form values onto an AgeCategory. The labels used by
// the web form (individual, senior, superSenior) are accepted as aliases.
// Anything unrecognised falls back to AgeUnder60.
func ParseAgeCategory(s string) AgeCategory {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "60to80", "above60", "senior", "60-80":
		return Age60To80
	case "over80", "above80", "supersenior", "80+":
		return AgeOver80
	default:
		return AgeUnder60
	}
}

// TaxBracket taxes income in [Lower, Upper) at Rate. An invalid Upper means
// the bracket is unbounded.
type TaxBracket struct {
	Lower decimal.Decimal     `json:"lower"`
	Upper decimal.NullDecimal `json:"upper"`
	Rate  decimal.Decimal     `json:"rate"`
}

// Contains reports whether x falls inside the bracket.
func (b TaxBracket) Contains(x decimal.Decimal) bool {
	if x.LessThan(b.Lower) {
		return false
	}
	return !b.Upper.Valid || x.LessThan(b.Upper.Decimal)
}

// BracketTable is an ascending, gap-free partition of [0, ∞).
type BracketTable []TaxBracket

// Validate checks that the table partitions [0, ∞) with increasing bounds
// and non-decreasing rates in [0, 1].
func (t BracketTable) Validate() error {
	if len(t) == 0 {
		return &ErrValidation{Field: "brackets", Message: "table is empty"}
	}
	if !t[0].Lower.IsZero() {
		return &ErrValidation{Field: "brackets", Message: "first bracket must start at 0"}
	}
	for i, b := range t {
		if b.Rate.IsNegative() || b.Rate.GreaterThan(decimal.NewFromInt(1)) {
			return &ErrValidation{Field: "brackets", Message: fmt.Sprintf("bracket %d: rate must be within [0, 1]", i)}
		}
		last := i == len(t)-1
		if !b.Upper.Valid && !last {
			return &ErrValidation{Field: "brackets", Message: fmt.Sprintf("bracket %d: only the last bracket may be unbounded", i)}
		}
		if last && b.Upper.Valid {
			return &ErrValidation{Field: "brackets", Message: "last bracket must be unbounded"}
		}
		if b.Upper.Valid && !b.Upper.Decimal.GreaterThan(b.Lower) {
			return &ErrValidation{Field: "brackets", Message: fmt.Sprintf("bracket %d: upper bound must exceed lower bound", i)}
		}
		if i > 0 {
			prev := t[i-1]
			if !prev.Upper.Decimal.Equal(b.Lower) {
				return &ErrValidation{Field: "brackets", Message: fmt.Sprintf("bracket %d: gap or overlap with previous bracket", i)}
			}
			if b.Rate.LessThan(prev.Rate) {
				return &ErrValidation{Field: "brackets", Message: fmt.Sprintf("bracket %d: rate decreases", i)}
			}
		}
	}
	return nil
}

// TaxRules is the rule set for one fiscal year and regime.
type TaxRules struct {
	FiscalYear          string                       `json:"fiscalYear"`
	Regime              string                       `json:"regime"`
	StandardDeduction   decimal.Decimal              `json:"standardDeduction"`
	DeductionCap        decimal.Decimal              `json:"deductionCap"`
	CessRate            decimal.Decimal              `json:"cessRate"`
	AdvanceTaxThreshold decimal.Decimal              `json:"advanceTaxThreshold"`
	Brackets            map[AgeCategory]BracketTable `json:"brackets"`
}

// Table returns the bracket table for age, falling back to AgeUnder60.
func (r TaxRules) Table(age AgeCategory) BracketTable {
	if t, ok := r.Brackets[age]; ok {
		return t
	}
	return r.Brackets[AgeUnder60]
}

// Validate checks every bracket table of the rule set.
func (r TaxRules) Validate() error {
	for _, age := range []AgeCategory{AgeUnder60, Age60To80, AgeOver80} {
		t, ok := r.Brackets[age]
		if !ok {
			return &ErrValidation{Field: "brackets", Message: fmt.Sprintf("missing table for %s", age)}
		}
		if err := t.Validate(); err != nil {
			return fmt.Errorf("%s: %w", age, err)
		}
	}
	return nil
}

func bracket(lower, upper int64, rate string) TaxBracket {
	b := TaxBracket{Lower: decimal.NewFromInt(lower), Rate: decimal.RequireFromString(rate)}
	if upper > 0 {
		b.Upper = decimal.NewNullDecimal(decimal.NewFromInt(upper))
	}
	return b
}

// DefaultTaxRules returns the FY2024-25 old-regime rules: standard deduction
// of ₹50,000, Section 80C cap of ₹1,50,000 and 4% health & education cess.
func DefaultTaxRules() TaxRules {
	return TaxRules{
		FiscalYear:          "2024-25",
		Regime:              "old",
		StandardDeduction:   decimal.NewFromInt(50000),
		DeductionCap:        decimal.NewFromInt(150000),
		CessRate:            decimal.RequireFromString("0.04"),
		AdvanceTaxThreshold: decimal.NewFromInt(10000),
		Brackets: map[AgeCategory]BracketTable{
			AgeUnder60: {
				bracket(0, 250000, "0"),
				bracket(250000, 500000, "0.05"),
				bracket(500000, 1000000, "0.20"),
				bracket(1000000, 0, "0.30"),
			},
			Age60To80: {
				bracket(0, 300000, "0"),
				bracket(300000, 500000, "0.05"),
				bracket(500000, 1000000, "0.20"),
				bracket(1000000, 0, "0.30"),
			},
			AgeOver80: {
				bracket(0, 500000, "0"),
				bracket(500000, 1000000, "0.20"),
				bracket(1000000, 0, "0.30"),
			},
		},
	}
}

// TaxInput is a snapshot of the estimator form. Negative components are
// treated as zero.
type TaxInput struct {
	AnnualIncome     decimal.Decimal
	InvestmentIncome decimal.Decimal
	OtherIncome      decimal.Decimal
	Deductions       decimal.Decimal
	BusinessExpenses decimal.Decimal
	AgeCategory      AgeCategory
}

// TaxRequest is the POST /v1/tax/estimate body.
type TaxRequest struct {
	AnnualIncome     FormAmount `json:"annualIncome"`
	InvestmentIncome FormAmount `json:"investmentIncome"`
	OtherIncome      FormAmount `json:"otherIncome"`
	Deductions       FormAmount `json:"deductions"`
	BusinessExpenses FormAmount `json:"businessExpenses"`
	AgeCategory      string     `json:"ageCategory"`
}

// Input converts the request into a TaxInput.
func (r *TaxRequest) Input() TaxInput {
	return TaxInput{
		AnnualIncome:     r.AnnualIncome.Decimal,
		InvestmentIncome: r.InvestmentIncome.Decimal,
		OtherIncome:      r.OtherIncome.Decimal,
		Deductions:       r.Deductions.Decimal,
		BusinessExpenses: r.BusinessExpenses.Decimal,
		AgeCategory:      ParseAgeCategory(r.AgeCategory),
	}
}

// TaxResult is the computed estimate. Money fields are rounded to paise;
// EffectiveRate is a ratio in [0, 1].
type TaxResult struct {
	AgeCategory          AgeCategory     `json:"ageCategory"`
	TotalIncome          decimal.Decimal `json:"totalIncome"`
	NetBusinessIncome    decimal.Decimal `json:"netBusinessIncome"`
	StandardDeduction    decimal.Decimal `json:"standardDeduction"`
	TotalDeductions      decimal.Decimal `json:"totalDeductions"`
	TaxableIncome        decimal.Decimal `json:"taxableIncome"`
	IncomeTax            decimal.Decimal `json:"incomeTax"`
	Cess                 decimal.Decimal `json:"cess"`
	TotalTax             decimal.Decimal `json:"totalTax"`
	EffectiveRate        decimal.Decimal `json:"effectiveRate"`
	QuarterlyInstallment decimal.Decimal `json:"quarterlyInstallment"`
	MarginalRate         decimal.Decimal `json:"marginalRate"`
	DeductionHeadroom    decimal.Decimal `json:"deductionHeadroom"`
	PotentialSaving      decimal.Decimal `json:"potentialSaving"`
	AdvanceTaxRequired   bool            `json:"advanceTaxRequired"`
}

// EffectiveRatePct is EffectiveRate expressed as a percentage.
func (r TaxResult) EffectiveRatePct() decimal.Decimal {
	return r.EffectiveRate.Mul(Hundred).Round(2)
}
