package main

import (
	"fmt"
	"time"

	"github.com/boddenberg/finplan-bfa-go/internal/calc"
	"github.com/boddenberg/finplan-bfa-go/internal/domain"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
)

// tomlAmount accepts TOML integers, floats and strings such as "1,20,000".
type tomlAmount struct {
	domain.FormAmount
}

func (a *tomlAmount) UnmarshalTOML(v any) error {
	switch x := v.(type) {
	case int64:
		a.FormAmount = domain.Amount(domain.ClampAmount(decimal.NewFromInt(x)))
	case float64:
		a.FormAmount = domain.Amount(domain.ClampAmount(decimal.NewFromFloat(x)))
	case string:
		if x == "" {
			a.FormAmount = domain.FormAmount{}
			return nil
		}
		a.FormAmount = domain.Amount(domain.ParseAmount(x))
	default:
		return fmt.Errorf("amount: unsupported value %v", v)
	}
	return nil
}

// tomlDate accepts TOML local dates and YYYY-MM-DD strings.
type tomlDate struct {
	domain.Date
}

func (d *tomlDate) UnmarshalTOML(v any) error {
	switch x := v.(type) {
	case time.Time:
		d.Date = domain.NewDate(x)
		return nil
	case string:
		parsed, err := domain.ParseDate(x)
		if err != nil {
			return err
		}
		d.Date = parsed
		return nil
	}
	return fmt.Errorf("date: unsupported value %v", v)
}

// ============================================================
// Budget plan
// ============================================================

type planFile struct {
	Timeframe string        `toml:"timeframe"`
	Incomes   []planIncome  `toml:"income"`
	Expenses  []planExpense `toml:"expense"`
	Goals     *planGoals    `toml:"goals"`
}

type planIncome struct {
	Key    string     `toml:"key"`
	Label  string     `toml:"label"`
	Amount tomlAmount `toml:"amount"`
}

type planExpense struct {
	Key        string     `toml:"key"`
	Label      string     `toml:"label"`
	Category   string     `toml:"category"`
	Amount     tomlAmount `toml:"amount"`
	Percentage tomlAmount `toml:"percentage"`
}

type planGoals struct {
	EmergencyFundMonths *int       `toml:"emergency_fund_months"`
	SavingsRate         tomlAmount `toml:"savings_rate"`
	DebtToIncomeRatio   tomlAmount `toml:"debt_to_income_ratio"`
}

func loadPlan(path string) (*domain.BudgetRequest, error) {
	var p planFile
	md, err := toml.DecodeFile(path, &p)
	if err != nil {
		return nil, fmt.Errorf("read plan %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("plan %s: unknown keys %v", path, undecoded)
	}

	req := &domain.BudgetRequest{Timeframe: p.Timeframe}
	for _, in := range p.Incomes {
		req.Incomes = append(req.Incomes, domain.IncomeInput{Key: in.Key, Label: in.Label, Amount: in.Amount.FormAmount})
	}
	for _, ex := range p.Expenses {
		req.Expenses = append(req.Expenses, domain.BudgetLineInput{
			Key:        ex.Key,
			Label:      ex.Label,
			Category:   ex.Category,
			Amount:     ex.Amount.FormAmount,
			Percentage: ex.Percentage.FormAmount,
		})
	}
	if p.Goals != nil {
		req.Goals = &domain.GoalsInput{
			EmergencyFundMonths: p.Goals.EmergencyFundMonths,
			SavingsRate:         p.Goals.SavingsRate.FormAmount,
			DebtToIncomeRatio:   p.Goals.DebtToIncomeRatio.FormAmount,
		}
	}
	return req, nil
}

// ============================================================
// Debt portfolio
// ============================================================

type debtsFile struct {
	Debts []debtEntry `toml:"debt"`
}

type debtEntry struct {
	ID             string         `toml:"id"`
	Name           string         `toml:"name"`
	Type           string         `toml:"type"`
	Total          tomlAmount     `toml:"total"`
	Remaining      tomlAmount     `toml:"remaining"`
	InterestRate   tomlAmount     `toml:"interest_rate"`
	MinimumPayment tomlAmount     `toml:"minimum_payment"`
	DueDate        tomlDate       `toml:"due_date"`
	Status         string         `toml:"status"`
	Priority       string         `toml:"priority"`
	Lender         string         `toml:"lender"`
	Description    string         `toml:"description"`
	Reminder       bool           `toml:"reminder"`
	Payments       []paymentEntry `toml:"payment"`
}

type paymentEntry struct {
	Amount tomlAmount `toml:"amount"`
	Date   tomlDate   `toml:"date"`
	Note   string     `toml:"note"`
}

// loadDebts reads a portfolio. A debt without an explicit remaining balance
// has its payments applied to the total.
func loadDebts(path string, now time.Time) ([]domain.Debt, []domain.Payment, error) {
	var f debtsFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, nil, fmt.Errorf("read debts %s: %w", path, err)
	}

	debts := make([]domain.Debt, 0, len(f.Debts))
	var payments []domain.Payment
	for i, e := range f.Debts {
		d, ps, err := e.build(i, now)
		if err != nil {
			return nil, nil, fmt.Errorf("debt %d (%s): %w", i+1, e.Name, err)
		}
		debts = append(debts, d)
		payments = append(payments, ps...)
	}
	return debts, payments, nil
}

func (e debtEntry) build(index int, now time.Time) (domain.Debt, []domain.Payment, error) {
	typ, err := domain.ParseDebtType(e.Type)
	if err != nil {
		return domain.Debt{}, nil, err
	}
	status, err := domain.ParseDebtStatus(e.Status)
	if err != nil {
		return domain.Debt{}, nil, err
	}
	priority, err := domain.ParsePriority(e.Priority)
	if err != nil {
		return domain.Debt{}, nil, err
	}

	id := e.ID
	if id == "" {
		id = fmt.Sprintf("debt-%d", index+1)
	}

	d, err := calc.OpenDebt(domain.Debt{
		ID:              id,
		Name:            e.Name,
		Type:            typ,
		TotalAmount:     e.Total.Decimal,
		InterestRate:    e.InterestRate.Optional(),
		MinimumPayment:  e.MinimumPayment.Optional(),
		DueDate:         e.DueDate.Date,
		Priority:        priority,
		LenderName:      e.Lender,
		Description:     e.Description,
		ReminderEnabled: e.Reminder,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return domain.Debt{}, nil, err
	}

	payments := make([]domain.Payment, 0, len(e.Payments))
	for j, pe := range e.Payments {
		date := pe.Date.Date
		if date.IsZero() {
			date = domain.NewDate(now)
		}
		p := domain.Payment{
			ID:          fmt.Sprintf("%s-payment-%d", id, j+1),
			DebtID:      id,
			Amount:      pe.Amount.Decimal,
			PaymentDate: date,
			Note:        pe.Note,
			CreatedAt:   now,
		}
		if !e.Remaining.Set {
			if d, err = calc.ApplyPayment(d, p); err != nil {
				return domain.Debt{}, nil, err
			}
		} else if !p.Amount.IsPositive() {
			return domain.Debt{}, nil, &domain.ErrInvalidPayment{Amount: p.Amount.String()}
		}
		payments = append(payments, p)
	}

	patch := domain.DebtPatch{}
	if e.Remaining.Set {
		patch.RemainingBalance = &e.Remaining.Decimal
	}
	if status != domain.StatusActive {
		patch.Status = &status
	}
	if patch.RemainingBalance != nil || patch.Status != nil {
		if d, err = calc.EditDebt(d, patch); err != nil {
			return domain.Debt{}, nil, err
		}
	}
	return d, payments, nil
}
