package calc_test

import (
	"testing"
	"time"

	"github.com/boddenberg/finplan-bfa-go/internal/calc"
	"github.com/boddenberg/finplan-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, d(want).Equal(got), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

func TestEstimate_TenLakhUnder60(t *testing.T) {
	est := calc.NewTaxEstimator(domain.DefaultTaxRules())

	res := est.Estimate(domain.TaxInput{
		AnnualIncome: d("1000000"),
		AgeCategory:  domain.AgeUnder60,
	})

	assertDecimal(t, "1000000", res.TotalIncome)
	assertDecimal(t, "950000", res.TaxableIncome)
	assertDecimal(t, "102500", res.IncomeTax)
	assertDecimal(t, "4100", res.Cess)
	assertDecimal(t, "106600", res.TotalTax)
	assertDecimal(t, "26650", res.QuarterlyInstallment)
	assertDecimal(t, "0.1066", res.EffectiveRate)
	assertDecimal(t, "0.2", res.MarginalRate)
	assertDecimal(t, "150000", res.DeductionHeadroom)
	assertDecimal(t, "30000", res.PotentialSaving)
	assert.True(t, res.AdvanceTaxRequired)
	assertDecimal(t, "10.66", res.EffectiveRatePct())
}

func TestEstimate_ZeroIncome(t *testing.T) {
	est := calc.NewTaxEstimator(domain.DefaultTaxRules())

	res := est.Estimate(domain.TaxInput{})

	assert.True(t, res.TaxableIncome.IsZero())
	assert.True(t, res.TotalTax.IsZero())
	assert.True(t, res.EffectiveRate.IsZero())
	assert.False(t, res.AdvanceTaxRequired)
	assert.Equal(t, domain.AgeUnder60, res.AgeCategory)
}

func TestEstimate_NegativeInputsClampToZero(t *testing.T) {
	est := calc.NewTaxEstimator(domain.DefaultTaxRules())

	res := est.Estimate(domain.TaxInput{
		AnnualIncome:     d("600000"),
		InvestmentIncome: d("-50000"),
		Deductions:       d("-100000"),
	})

	assertDecimal(t, "600000", res.TotalIncome)
	assertDecimal(t, "550000", res.TaxableIncome)
	assertDecimal(t, "50000", res.StandardDeduction)
}

func TestEstimate_DeductionsAndOtherIncome(t *testing.T) {
	est := calc.NewTaxEstimator(domain.DefaultTaxRules())

	res := est.Estimate(domain.TaxInput{
		AnnualIncome:     d("800000"),
		InvestmentIncome: d("100000"),
		OtherIncome:      d("100000"),
		Deductions:       d("150000"),
		BusinessExpenses: d("200000"),
	})

	assertDecimal(t, "1000000", res.TotalIncome)
	assertDecimal(t, "800000", res.TaxableIncome)
	// 12,500 + 20% of 300,000
	assertDecimal(t, "72500", res.IncomeTax)
	assertDecimal(t, "0", res.DeductionHeadroom)
	assertDecimal(t, "0", res.PotentialSaving)
	assertDecimal(t, "600000", res.NetBusinessIncome)
}

func TestEstimate_AgeCategories(t *testing.T) {
	est := calc.NewTaxEstimator(domain.DefaultTaxRules())

	tests := []struct {
		age  domain.AgeCategory
		want string
	}{
		{domain.AgeUnder60, "12500"},
		{domain.Age60To80, "10000"},
		{domain.AgeOver80, "0"},
	}
	for _, tt := range tests {
		t.Run(string(tt.age), func(t *testing.T) {
			res := est.Estimate(domain.TaxInput{AnnualIncome: d("550000"), AgeCategory: tt.age})
			assertDecimal(t, tt.want, res.IncomeTax)
		})
	}
}

func TestIncomeTax_ProgressiveNotFlat(t *testing.T) {
	table := domain.DefaultTaxRules().Table(domain.AgeUnder60)

	// Entirely at the 30% rate would be 450,000.
	tax := calc.IncomeTax(d("1500000"), table)
	assertDecimal(t, "262500", tax)
}

func TestIncomeTax_MonotonicAndSlopeMatchesBracket(t *testing.T) {
	table := domain.DefaultTaxRules().Table(domain.AgeUnder60)
	step := d("10000")

	prev := calc.IncomeTax(decimal.Zero, table)
	require.True(t, prev.IsZero())

	for income := step; income.LessThanOrEqual(d("2000000")); income = income.Add(step) {
		tax := calc.IncomeTax(income, table)
		require.True(t, tax.GreaterThanOrEqual(prev), "tax decreased at %s", income)

		// Over a step fully inside one bracket, the slope equals its rate.
		lower := income.Sub(step)
		if rateAt(table, lower).Equal(rateAt(table, income.Sub(decimal.NewFromInt(1)))) {
			slope := tax.Sub(prev).Div(step)
			require.True(t, slope.Equal(rateAt(table, lower)), "slope %s at %s", slope, income)
		}
		prev = tax
	}
}

func rateAt(table domain.BracketTable, v decimal.Decimal) decimal.Decimal {
	return calc.MarginalRate(v, table)
}

func TestMarginalRate_TopBracketFallback(t *testing.T) {
	table := domain.BracketTable{
		{Lower: decimal.Zero, Upper: decimal.NewNullDecimal(d("100")), Rate: d("0")},
		{Lower: d("100"), Upper: decimal.NewNullDecimal(d("200")), Rate: d("0.1")},
	}

	assertDecimal(t, "0.1", calc.MarginalRate(d("5000"), table))
	assertDecimal(t, "0", calc.MarginalRate(d("50"), table))
	assertDecimal(t, "0", calc.MarginalRate(d("1"), nil))
}

func TestEffectiveRate_WithinUnitInterval(t *testing.T) {
	est := calc.NewTaxEstimator(domain.DefaultTaxRules())

	for _, income := range []string{"0", "1", "250000", "999999.99", "50000000"} {
		res := est.Estimate(domain.TaxInput{AnnualIncome: d(income)})
		assert.True(t, res.EffectiveRate.GreaterThanOrEqual(decimal.Zero), income)
		assert.True(t, res.EffectiveRate.LessThanOrEqual(decimal.NewFromInt(1)), income)
	}
}

func TestDefaultTaxRules_Validate(t *testing.T) {
	require.NoError(t, domain.DefaultTaxRules().Validate())
}

func TestEstimate_OutOfRangeAmountIsZero(t *testing.T) {
	est := calc.NewTaxEstimator(domain.DefaultTaxRules())

	done := make(chan domain.TaxResult, 1)
	go func() {
		done <- est.Estimate(domain.TaxInput{AnnualIncome: domain.ParseAmount("1e200000000")})
	}()

	select {
	case res := <-done:
		assertDecimal(t, "0", res.TotalTax)
	case <-time.After(5 * time.Second):
		t.Fatal("estimate did not finish for an exponent-notation income")
	}
}
