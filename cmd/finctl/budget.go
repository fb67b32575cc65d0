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

func (a *app) budgetCmd() *cobra.Command {
	var planPath, timeframe, autofill string

	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Analyze a budget plan",
		Long: `Analyze a budget plan written in TOML.

A plan lists [[income]] and [[expense]] entries and optional [goals]:

  timeframe = "monthly"

  [[income]]
  key = "salary"
  amount = "85,000"

  [[expense]]
  key = "rent"
  category = "needs"
  amount = 25000

With --autofill the expense lines are filled from the given income
using their suggested percentages instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			planner, err := service.NewPlannerService(domain.DefaultTaxRules(), nil, observability.NewMetrics(), a.logger)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			req := &domain.BudgetRequest{}
			if planPath != "" {
				if req, err = loadPlan(planPath); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("timeframe") {
				req.Timeframe = timeframe
			}

			if autofill != "" {
				lines := planner.AutoFill(ctx, &domain.AutoFillRequest{
					Income: flagAmount(autofill),
					Lines:  req.Expenses,
				})
				return a.render(cmd.OutOrStdout(), lines, func(w io.Writer) error {
					return printLines(w, lines)
				})
			}

			if planPath == "" {
				return fmt.Errorf("--plan or --autofill is required")
			}
			report := planner.AnalyzeBudget(ctx, req)
			a.logger.Debug("budget analyzed",
				zap.String("timeframe", string(report.Result.Timeframe)),
				zap.String("rating", string(report.Result.Health.Rating)),
			)
			return a.render(cmd.OutOrStdout(), report, func(w io.Writer) error {
				return printReport(w, report)
			})
		},
	}

	cmd.Flags().StringVar(&planPath, "plan", "", "budget plan file (TOML)")
	cmd.Flags().StringVar(&timeframe, "timeframe", "monthly", "timeframe of the amounts (monthly, annual)")
	cmd.Flags().StringVar(&autofill, "autofill", "", "suggest expense amounts for this income")
	return cmd
}

func printReport(w io.Writer, report *domain.BudgetReport) error {
	res := report.Result
	t := newTable(w)
	t.row("Timeframe", res.Timeframe)
	t.money("Total income", res.TotalIncome)
	t.money("Total expenses", res.TotalExpenses)
	t.money("Surplus", res.Surplus)
	for _, cat := range []domain.BudgetCategory{domain.CategoryNeeds, domain.CategoryWants, domain.CategorySavings} {
		t.money("  "+string(cat), res.ExpensesByCategory[cat])
	}
	t.pct("Needs", res.NeedsPct)
	t.pct("Wants", res.WantsPct)
	t.pct("Savings rate", res.SavingsRate)
	t.row("Health", fmt.Sprintf("%s: %s", res.Health.Rating, res.Health.Message))
	t.money("Annual income", res.Annual.Income)
	t.money("Annual surplus", res.Annual.Surplus)
	t.money("Emergency fund target", report.Goals.EmergencyFundTarget)
	if m := report.Goals.MonthsToEmergencyFund; m != nil {
		t.row("Months to emergency fund", *m)
	} else {
		t.row("Months to emergency fund", "n/a")
	}
	t.row("Savings goal met", report.Goals.SavingsRateMet)
	t.pct("Savings goal progress", report.Goals.SavingsGoalProgress)
	return t.flush()
}

func printLines(w io.Writer, lines []domain.BudgetLine) error {
	t := newTable(w)
	t.row("KEY\tCATEGORY\tPERCENT", "AMOUNT")
	for _, l := range lines {
		t.row(fmt.Sprintf("%s\t%s\t%s%%", l.Key, l.Category, l.Percentage.String()), "₹"+l.Amount.StringFixed(2))
	}
	return t.flush()
}
