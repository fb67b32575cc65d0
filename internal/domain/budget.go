package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ============================================================
// Budget planner
// ============================================================

// BudgetCategory is the 50/30/20 bucket of an expense line.
type BudgetCategory string

const (
	CategoryNeeds   BudgetCategory = "needs"
	CategoryWants   BudgetCategory = "wants"
	CategorySavings BudgetCategory = "savings"
)

// Valid reports whether c is one of the three buckets.
func (c BudgetCategory) Valid() bool {
	switch c {
	case CategoryNeeds, CategoryWants, CategorySavings:
		return true
	}
	return false
}

// Timeframe is the period the entered figures refer to.
type Timeframe string

const (
	Monthly Timeframe = "monthly"
	Annual  Timeframe = "annual"
)

// ParseTimeframe defaults to Monthly.
func ParseTimeframe(s string) Timeframe {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "annual", "annually", "yearly":
		return Annual
	default:
		return Monthly
	}
}

// PeriodsPerYear is 12 for monthly figures and 1 for annual ones.
func (t Timeframe) PeriodsPerYear() decimal.Decimal {
	if t == Annual {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(12)
}

// IncomeSource is one named income amount.
type IncomeSource struct {
	Key    string          `json:"key"`
	Label  string          `json:"label,omitempty"`
	Amount decimal.Decimal `json:"amount"`
}

// BudgetLine is one expense line. Percentage is the suggested share of
// income used by auto-fill.
type BudgetLine struct {
	Key        string          `json:"key"`
	Label      string          `json:"label,omitempty"`
	Category   BudgetCategory  `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
}

// HealthRating is the qualitative budget classification.
type HealthRating string

const (
	HealthExcellent HealthRating = "excellent"
	HealthGood      HealthRating = "good"
	HealthFair      HealthRating = "fair"
	HealthPoor      HealthRating = "poor"
)

// BudgetHealth pairs the rating with a short explanation.
type BudgetHealth struct {
	Rating  HealthRating `json:"rating"`
	Message string       `json:"message"`
}

// AnnualFigures are the budget totals scaled to a year.
type AnnualFigures struct {
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Surplus  decimal.Decimal `json:"surplus"`
	Savings  decimal.Decimal `json:"savings"`
}

// BudgetResult is the analysis of a budget snapshot.
type BudgetResult struct {
	Timeframe          Timeframe                          `json:"timeframe"`
	TotalIncome        decimal.Decimal                    `json:"totalIncome"`
	TotalExpenses      decimal.Decimal                    `json:"totalExpenses"`
	Surplus            decimal.Decimal                    `json:"surplus"`
	ExpensesByCategory map[BudgetCategory]decimal.Decimal `json:"expensesByCategory"`
	NeedsPct           decimal.Decimal                    `json:"needsPct"`
	WantsPct           decimal.Decimal                    `json:"wantsPct"`
	SavingsRate        decimal.Decimal                    `json:"savingsRate"`
	Health             BudgetHealth                       `json:"health"`
	Annual             AnnualFigures                      `json:"annual"`
}

// BudgetGoals are the user's targets. SavingsRate and DebtToIncomeRatio are
// percentages.
type BudgetGoals struct {
	EmergencyFundMonths int             `json:"emergencyFundMonths"`
	SavingsRate         decimal.Decimal `json:"savingsRate"`
	DebtToIncomeRatio   decimal.Decimal `json:"debtToIncomeRatio"`
}

// DefaultBudgetGoals returns 6 months of emergency fund, 20% savings and a
// 30% debt-to-income ceiling.
func DefaultBudgetGoals() BudgetGoals {
	return BudgetGoals{
		EmergencyFundMonths: 6,
		SavingsRate:         decimal.NewFromInt(20),
		DebtToIncomeRatio:   decimal.NewFromInt(30),
	}
}

// GoalProgress reports progress against BudgetGoals.
// MonthsToEmergencyFund is nil when monthly savings are zero.
type GoalProgress struct {
	EmergencyFundTarget   decimal.Decimal `json:"emergencyFundTarget"`
	MonthsToEmergencyFund *int64          `json:"monthsToEmergencyFund"`
	SavingsRateMet        bool            `json:"savingsRateMet"`
	SavingsGap            decimal.Decimal `json:"savingsGap"`
	SavingsGoalProgress   decimal.Decimal `json:"savingsGoalProgress"`
}

// FinancialHealth combines a budget with the debt portfolio.
type FinancialHealth struct {
	Budget            BudgetHealth    `json:"budget"`
	MonthlyIncome     decimal.Decimal `json:"monthlyIncome"`
	MonthlyDebtOutgo  decimal.Decimal `json:"monthlyDebtOutgo"`
	DebtToIncomeRatio decimal.Decimal `json:"debtToIncomeRatio"`
	WithinDebtLimit   bool            `json:"withinDebtLimit"`
	TotalOutstanding  decimal.Decimal `json:"totalOutstanding"`
	Goals             GoalProgress    `json:"goals"`
}

// BudgetReport is the POST /v1/budget/analyze response.
type BudgetReport struct {
	Result BudgetResult `json:"result"`
	Goals  GoalProgress `json:"goals"`
}

// ============================================================
// Requests
// ============================================================

// IncomeInput is an income source as submitted by the form.
type IncomeInput struct {
	Key    string     `json:"key"`
	Label  string     `json:"label,omitempty"`
	Amount FormAmount `json:"amount"`
}

// BudgetLineInput is an expense line as submitted by the form.
type BudgetLineInput struct {
	Key        string     `json:"key"`
	Label      string     `json:"label,omitempty"`
	Category   string     `json:"category"`
	Amount     FormAmount `json:"amount"`
	Percentage FormAmount `json:"percentage"`
}

// GoalsInput overrides the default goals field by field.
type GoalsInput struct {
	EmergencyFundMonths *int       `json:"emergencyFundMonths,omitempty"`
	SavingsRate         FormAmount `json:"savingsRate"`
	DebtToIncomeRatio   FormAmount `json:"debtToIncomeRatio"`
}

// BudgetRequest is the body of the budget endpoints.
type BudgetRequest struct {
	Timeframe string            `json:"timeframe"`
	Incomes   []IncomeInput     `json:"incomes"`
	Expenses  []BudgetLineInput `json:"expenses"`
	Goals     *GoalsInput       `json:"goals,omitempty"`
}

// AutoFillRequest asks for expense amounts derived from an income.
type AutoFillRequest struct {
	Income FormAmount        `json:"income"`
	Lines  []BudgetLineInput `json:"lines,omitempty"`
}

// IncomeSources converts the submitted incomes.
func (r *BudgetRequest) IncomeSources() []IncomeSource {
	out := make([]IncomeSource, 0, len(r.Incomes))
	for _, in := range r.Incomes {
		out = append(out, IncomeSource{Key: in.Key, Label: in.Label, Amount: in.Amount.Decimal})
	}
	return out
}

// Lines converts submitted expense lines. Defaults are used when none are
// given.
func (r *BudgetRequest) Lines() []BudgetLine {
	return LinesFromInput(r.Expenses)
}

// GoalSet merges the submitted goals over DefaultBudgetGoals.
func (r *BudgetRequest) GoalSet() BudgetGoals {
	goals := DefaultBudgetGoals()
	if r.Goals == nil {
		return goals
	}
	if r.Goals.EmergencyFundMonths != nil && *r.Goals.EmergencyFundMonths >= 0 {
		goals.EmergencyFundMonths = *r.Goals.EmergencyFundMonths
	}
	if r.Goals.SavingsRate.Set {
		goals.SavingsRate = r.Goals.SavingsRate.Decimal
	}
	if r.Goals.DebtToIncomeRatio.Set {
		goals.DebtToIncomeRatio = r.Goals.DebtToIncomeRatio.Decimal
	}
	return goals
}

// LinesFromInput converts form lines, filling category and percentage from
// the default line with the same key when they are missing.
func LinesFromInput(in []BudgetLineInput) []BudgetLine {
	if len(in) == 0 {
		return DefaultBudgetLines()
	}
	defaults := make(map[string]BudgetLine)
	for _, l := range DefaultBudgetLines() {
		defaults[l.Key] = l
	}

	out := make([]BudgetLine, 0, len(in))
	for _, l := range in {
		line := BudgetLine{
			Key:        l.Key,
			Label:      l.Label,
			Category:   BudgetCategory(strings.ToLower(l.Category)),
			Amount:     l.Amount.Decimal,
			Percentage: l.Percentage.Decimal,
		}
		if def, ok := defaults[l.Key]; ok {
			if !line.Category.Valid() {
				line.Category = def.Category
			}
			if !l.Percentage.Set {
				line.Percentage = def.Percentage
			}
			if line.Label == "" {
				line.Label = def.Label
			}
		}
		out = append(out, line)
	}
	return out
}

// DefaultIncomeSources lists the income sources offered by the planner.
func DefaultIncomeSources() []IncomeSource {
	return []IncomeSource{
		{Key: "salary", Label: "Salary", Amount: decimal.Zero},
		{Key: "freelance", Label: "Freelance", Amount: decimal.Zero},
		{Key: "investment", Label: "Investment income", Amount: decimal.Zero},
		{Key: "rental", Label: "Rental income", Amount: decimal.Zero},
		{Key: "other", Label: "Other", Amount: decimal.Zero},
	}
}

func line(key, label string, cat BudgetCategory, pct int64) BudgetLine {
	return BudgetLine{Key: key, Label: label, Category: cat, Amount: decimal.Zero, Percentage: decimal.NewFromInt(pct)}
}

// DefaultBudgetLines returns the sixteen standard expense lines with their
// suggested percentages of income. The percentages are suggestions and sum
// to more than 100.
func DefaultBudgetLines() []BudgetLine {
	return []BudgetLine{
		line("housing", "Housing", CategoryNeeds, 25),
		line("utilities", "Utilities", CategoryNeeds, 5),
		line("groceries", "Groceries", CategoryNeeds, 10),
		line("transportation", "Transportation", CategoryNeeds, 10),
		line("insurance", "Insurance", CategoryNeeds, 5),
		line("healthcare", "Healthcare", CategoryNeeds, 3),
		line("debtPayments", "Debt payments", CategoryNeeds, 5),
		line("dining", "Dining out", CategoryWants, 8),
		line("entertainment", "Entertainment", CategoryWants, 5),
		line("shopping", "Shopping", CategoryWants, 7),
		line("subscriptions", "Subscriptions", CategoryWants, 3),
		line("hobbies", "Hobbies", CategoryWants, 4),
		line("travel", "Travel", CategoryWants, 5),
		line("emergencyFund", "Emergency fund", CategorySavings, 10),
		line("retirement", "Retirement", CategorySavings, 10),
		line("investments", "Investments", CategorySavings, 5),
	}
}

// BudgetDefaults is the GET /v1/budget/defaults response.
type BudgetDefaults struct {
	Incomes []IncomeSource `json:"incomes"`
	Lines   []BudgetLine   `json:"lines"`
	Goals   BudgetGoals    `json:"goals"`
}
