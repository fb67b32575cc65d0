// Package calc is the pure calculation core: income tax estimation, budget
// analysis and debt ledger arithmetic. Nothing here performs I/O, reads the
// clock or logs; callers pass in everything a computation needs.
package calc

import (
	"github.com/boddenberg/finplan-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
)

var four = decimal.NewFromInt(4)

// TaxEstimator computes income tax under a fixed rule set.
type TaxEstimator struct {
	rules domain.TaxRules
}

// NewTaxEstimator creates an estimator for rules. The rules are expected to
// have passed TaxRules.Validate.
func NewTaxEstimator(rules domain.TaxRules) *TaxEstimator {
	return &TaxEstimator{rules: rules}
}

// Rules returns the rule set in use.
func (e *TaxEstimator) Rules() domain.TaxRules {
	return e.rules
}

// Estimate is total: negative inputs are clamped to zero and every ratio
// guards its denominator.
func (e *TaxEstimator) Estimate(in domain.TaxInput) domain.TaxResult {
	income := domain.NonNegative(in.AnnualIncome)
	investment := domain.NonNegative(in.InvestmentIncome)
	other := domain.NonNegative(in.OtherIncome)
	deductions := domain.NonNegative(in.Deductions)
	business := domain.NonNegative(in.BusinessExpenses)

	age := in.AgeCategory
	if age == "" {
		age = domain.AgeUnder60
	}
	table := e.rules.Table(age)

	totalIncome := income.Add(investment).Add(other)
	totalDeductions := e.rules.StandardDeduction.Add(deductions)
	taxable := domain.NonNegative(totalIncome.Sub(totalDeductions))

	incomeTax := IncomeTax(taxable, table)
	cess := incomeTax.Mul(e.rules.CessRate)
	totalTax := incomeTax.Add(cess)

	marginal := MarginalRate(taxable, table)
	headroom := domain.NonNegative(e.rules.DeductionCap.Sub(deductions))

	return domain.TaxResult{
		AgeCategory: age,
		TotalIncome: totalIncome.Round(2),
		// Business expenses are reported but do not reduce taxable income.
		NetBusinessIncome:    domain.NonNegative(income.Sub(business)).Round(2),
		StandardDeduction:    e.rules.StandardDeduction,
		TotalDeductions:      totalDeductions.Round(2),
		TaxableIncome:        taxable.Round(2),
		IncomeTax:            incomeTax.Round(2),
		Cess:                 cess.Round(2),
		TotalTax:             totalTax.Round(2),
		EffectiveRate:        ratio(totalTax, totalIncome).Round(6),
		QuarterlyInstallment: totalTax.Div(four).Round(2),
		MarginalRate:         marginal,
		DeductionHeadroom:    headroom.Round(2),
		PotentialSaving:      headroom.Mul(marginal).Round(2),
		AdvanceTaxRequired:   totalTax.GreaterThan(e.rules.AdvanceTaxThreshold),
	}
}

// IncomeTax applies the brackets progressively: each bracket taxes only the
// slice of income that falls inside it.
func IncomeTax(taxable decimal.Decimal, table domain.BracketTable) decimal.Decimal {
	remaining := domain.NonNegative(taxable)
	tax := decimal.Zero

	for _, b := range table {
		if !remaining.IsPositive() {
			break
		}
		portion := remaining
		if b.Upper.Valid {
			width := b.Upper.Decimal.Sub(b.Lower)
			portion = decimal.Min(remaining, width)
		}
		tax = tax.Add(portion.Mul(b.Rate))
		remaining = remaining.Sub(portion)
	}
	return tax
}

// MarginalRate is the rate of the bracket containing taxable, or the top
// bracket's rate when taxable lies beyond every finite bound.
func MarginalRate(taxable decimal.Decimal, table domain.BracketTable) decimal.Decimal {
	if len(table) == 0 {
		return decimal.Zero
	}
	for _, b := range table {
		if b.Contains(taxable) {
			return b.Rate
		}
	}
	return table[len(table)-1].Rate
}

// ratio returns num/den, or zero when den is not positive.
func ratio(num, den decimal.Decimal) decimal.Decimal {
	if !den.IsPositive() {
		return decimal.Zero
	}
	return num.Div(den)
}

// percent returns num/den*100, or zero when den is not positive.
func percent(num, den decimal.Decimal) decimal.Decimal {
	return ratio(num, den).Mul(domain.Hundred)
}
