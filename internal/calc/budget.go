package calc

import (
	"github.com/boddenberg/finplan-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
)

var (
	five    = decimal.NewFromInt(5)
	ten     = decimal.NewFromInt(10)
	twelve  = decimal.NewFromInt(12)
	twenty  = decimal.NewFromInt(20)
	thirty  = decimal.NewFromInt(30)
	fifty   = decimal.NewFromInt(50)
	sixty   = decimal.NewFromInt(60)
	seventy = decimal.NewFromInt(70)
)

// AnalyzeBudget aggregates a budget snapshot. Lines whose category is not
// one of needs, wants or savings count toward total expenses only.
func AnalyzeBudget(incomes []domain.IncomeSource, lines []domain.BudgetLine, tf domain.Timeframe) domain.BudgetResult {
	if tf != domain.Annual {
		tf = domain.Monthly
	}

	totalIncome := decimal.Zero
	for _, in := range incomes {
		totalIncome = totalIncome.Add(domain.NonNegative(in.Amount))
	}

	byCategory := map[domain.BudgetCategory]decimal.Decimal{
		domain.CategoryNeeds:   decimal.Zero,
		domain.CategoryWants:   decimal.Zero,
		domain.CategorySavings: decimal.Zero,
	}
	totalExpenses := decimal.Zero
	for _, l := range lines {
		amount := domain.NonNegative(l.Amount)
		totalExpenses = totalExpenses.Add(amount)
		if l.Category.Valid() {
			byCategory[l.Category] = byCategory[l.Category].Add(amount)
		}
	}

	surplus := totalIncome.Sub(totalExpenses)
	needsPct := percent(byCategory[domain.CategoryNeeds], totalIncome)
	wantsPct := percent(byCategory[domain.CategoryWants], totalIncome)
	savingsRate := percent(byCategory[domain.CategorySavings], totalIncome)

	k := tf.PeriodsPerYear()
	return domain.BudgetResult{
		Timeframe:          tf,
		TotalIncome:        totalIncome.Round(2),
		TotalExpenses:      totalExpenses.Round(2),
		Surplus:            surplus.Round(2),
		ExpensesByCategory: byCategory,
		NeedsPct:           needsPct.Round(2),
		WantsPct:           wantsPct.Round(2),
		SavingsRate:        savingsRate.Round(2),
		Health:             ClassifyHealth(needsPct, wantsPct, savingsRate),
		Annual: domain.AnnualFigures{
			Income:   totalIncome.Mul(k).Round(2),
			Expenses: totalExpenses.Mul(k).Round(2),
			Surplus:  surplus.Mul(k).Round(2),
			Savings:  byCategory[domain.CategorySavings].Mul(k).Round(2),
		},
	}
}

// ClassifyHealth matches the rules in priority order; poor is the fallback.
func ClassifyHealth(needsPct, wantsPct, savingsRate decimal.Decimal) domain.BudgetHealth {
	switch {
	case needsPct.LessThanOrEqual(fifty) && wantsPct.LessThanOrEqual(thirty) && savingsRate.GreaterThanOrEqual(twenty):
		return domain.BudgetHealth{Rating: domain.HealthExcellent, Message: "Great job! Your budget follows the 50/30/20 rule."}
	case needsPct.LessThanOrEqual(sixty) && savingsRate.GreaterThanOrEqual(ten):
		return domain.BudgetHealth{Rating: domain.HealthGood, Message: "Good budget balance. Consider increasing savings."}
	case needsPct.LessThanOrEqual(seventy) && savingsRate.GreaterThanOrEqual(five):
		return domain.BudgetHealth{Rating: domain.HealthFair, Message: "Your budget needs some adjustments."}
	default:
		return domain.BudgetHealth{Rating: domain.HealthPoor, Message: "Your budget needs significant improvements."}
	}
}

// AutoFill sets each line to income*percentage/100 rounded to whole rupees.
// With zero income the lines are returned unchanged. The input slice is not
// modified.
func AutoFill(income decimal.Decimal, lines []domain.BudgetLine) []domain.BudgetLine {
	out := make([]domain.BudgetLine, len(lines))
	copy(out, lines)
	if !income.IsPositive() {
		return out
	}
	for i := range out {
		out[i].Amount = income.Mul(domain.NonNegative(out[i].Percentage)).Div(domain.Hundred).Round(0)
	}
	return out
}

// monthly scales a figure from tf down to one month.
func monthly(d decimal.Decimal, tf domain.Timeframe) decimal.Decimal {
	if tf == domain.Annual {
		return d.Div(twelve)
	}
	return d
}

// EvaluateGoals measures a budget against the user's goals. The emergency
// fund target is a number of months of expenses, so annual budgets are
// converted to monthly figures first.
func EvaluateGoals(res domain.BudgetResult, goals domain.BudgetGoals) domain.GoalProgress {
	months := decimal.NewFromInt(int64(goals.EmergencyFundMonths))
	monthlyExpenses := monthly(res.TotalExpenses, res.Timeframe)
	monthlySavings := monthly(res.ExpensesByCategory[domain.CategorySavings], res.Timeframe)
	target := monthlyExpenses.Mul(months)

	var toGoal *int64
	if monthlySavings.IsPositive() {
		n := target.Div(monthlySavings).Ceil().IntPart()
		toGoal = &n
	}

	savings := res.ExpensesByCategory[domain.CategorySavings]
	wanted := res.TotalIncome.Mul(goals.SavingsRate).Div(domain.Hundred)

	progress := domain.Hundred
	if goals.SavingsRate.IsPositive() {
		progress = decimal.Min(domain.Hundred, res.SavingsRate.Div(goals.SavingsRate).Mul(domain.Hundred))
	}

	return domain.GoalProgress{
		EmergencyFundTarget:   target.Round(2),
		MonthsToEmergencyFund: toGoal,
		SavingsRateMet:        res.SavingsRate.GreaterThanOrEqual(goals.SavingsRate),
		SavingsGap:            domain.NonNegative(wanted.Sub(savings)).Round(2),
		SavingsGoalProgress:   progress.Round(2),
	}
}

// AssessFinancialHealth combines a budget with debt analytics. The
// debt-to-income ratio compares monthly minimum payments to monthly income
// and is zero when there is no income.
func AssessFinancialHealth(budget domain.BudgetResult, debts domain.DebtAnalytics, goals domain.BudgetGoals) domain.FinancialHealth {
	income := monthly(budget.TotalIncome, budget.Timeframe)
	dti := percent(debts.MonthlyPayments, income)

	return domain.FinancialHealth{
		Budget:            budget.Health,
		MonthlyIncome:     income.Round(2),
		MonthlyDebtOutgo:  debts.MonthlyPayments.Round(2),
		DebtToIncomeRatio: dti.Round(2),
		WithinDebtLimit:   dti.LessThanOrEqual(goals.DebtToIncomeRatio),
		TotalOutstanding:  debts.TotalOutstanding,
		Goals:             EvaluateGoals(budget, goals),
	}
}
