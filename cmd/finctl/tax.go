package main

import (
	"fmt"
	"io"

	"github.com/boddenberg/finplan-bfa-go/internal/domain"
	"github.com/boddenberg/finplan-bfa-go/internal/infra/observability"
	"github.com/boddenberg/finplan-bfa-go/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type taxOutput struct {
	domain.TaxResult
	EffectiveRatePct string `json:"effectiveRatePct"`
}

func (a *app) taxCmd() *cobra.Command {
	var income, age, deductions, business, investment, other string

	cmd := &cobra.Command{
		Use:   "tax",
		Short: "Estimate annual income tax",
		Long: `Estimate income tax under the default slab tables.

Amounts accept Indian digit grouping ("10,00,000") and an optional ₹ sign.
The age category is one of individual, senior or superSenior.`,
		Example: `  finctl tax --income 1200000 --deductions 150000
  finctl tax --income "10,00,000" --age senior -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if income == "" {
				return fmt.Errorf("--income is required")
			}
			planner, err := service.NewPlannerService(domain.DefaultTaxRules(), nil, observability.NewMetrics(), a.logger)
			if err != nil {
				return err
			}

			req := &domain.TaxRequest{
				AnnualIncome:     flagAmount(income),
				InvestmentIncome: flagAmount(investment),
				OtherIncome:      flagAmount(other),
				Deductions:       flagAmount(deductions),
				BusinessExpenses: flagAmount(business),
				AgeCategory:      age,
			}
			res := planner.EstimateTax(cmd.Context(), req)
			a.logger.Debug("tax estimated", zap.String("total_tax", res.TotalTax.String()))

			out := taxOutput{TaxResult: res, EffectiveRatePct: res.EffectiveRatePct().StringFixed(2)}
			return a.render(cmd.OutOrStdout(), out, func(w io.Writer) error {
				t := newTable(w)
				t.row("Age category", res.AgeCategory)
				t.money("Total income", res.TotalIncome)
				t.money("Net business income", res.NetBusinessIncome)
				t.money("Standard deduction", res.StandardDeduction)
				t.money("Total deductions", res.TotalDeductions)
				t.money("Taxable income", res.TaxableIncome)
				t.money("Income tax", res.IncomeTax)
				t.money("Cess", res.Cess)
				t.money("Total tax", res.TotalTax)
				t.pct("Effective rate", res.EffectiveRatePct())
				t.pct("Marginal rate", res.MarginalRate.Mul(domain.Hundred))
				t.money("Quarterly installment", res.QuarterlyInstallment)
				t.money("Deduction headroom", res.DeductionHeadroom)
				t.money("Potential saving", res.PotentialSaving)
				t.row("Advance tax required", res.AdvanceTaxRequired)
				return t.flush()
			})
		},
	}

	cmd.Flags().StringVar(&income, "income", "", "annual income")
	cmd.Flags().StringVar(&age, "age", "individual", "age category (individual, senior, superSenior)")
	cmd.Flags().StringVar(&deductions, "deductions", "", "claimed deductions")
	cmd.Flags().StringVar(&business, "business-expenses", "", "business expenses")
	cmd.Flags().StringVar(&investment, "investment-income", "", "investment income")
	cmd.Flags().StringVar(&other, "other-income", "", "other income")
	return cmd
}

// flagAmount parses a money flag. Unset flags stay unset.
func flagAmount(s string) domain.FormAmount {
	if s == "" {
		return domain.FormAmount{}
	}
	return domain.Amount(domain.ParseAmount(s))
}
