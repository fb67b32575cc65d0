package calc

import (
	"sort"
	"strings"
	"time"

	"github.com/boddenberg/finplan-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	// ReminderHorizonDays is how far ahead payment reminders look.
	ReminderHorizonDays = 7
	// UpcomingHorizonDays is how far ahead the upcoming-payments list looks.
	UpcomingHorizonDays = 30
	// UpcomingLimit caps the upcoming-payments list.
	UpcomingLimit = 5
)

// OpenDebt prepares a new debt: the remaining balance starts at the total
// amount and a blank status or priority gets its default.
func OpenDebt(d domain.Debt) (domain.Debt, error) {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return d, &domain.ErrValidation{Field: "name", Message: "name is required"}
	}
	if !d.TotalAmount.IsPositive() {
		return d, &domain.ErrValidation{Field: "totalAmount", Message: "total amount must be greater than zero"}
	}
	if err := checkOptional(d.InterestRate, "interestRate"); err != nil {
		return d, err
	}
	if err := checkOptional(d.MinimumPayment, "minimumPayment"); err != nil {
		return d, err
	}
	if d.Type == "" {
		d.Type = domain.DebtOther
	}
	if d.Priority == "" {
		d.Priority = domain.PriorityMedium
	}
	if d.Status == "" || d.Status == domain.StatusPaidOff {
		d.Status = domain.StatusActive
	}
	d.RemainingBalance = d.TotalAmount
	return d, nil
}

func checkOptional(v decimal.NullDecimal, field string) error {
	if v.Valid && v.Decimal.IsNegative() {
		return &domain.ErrValidation{Field: field, Message: "must not be negative"}
	}
	return nil
}

// ApplyPayment reduces the remaining balance by the payment amount, clamped
// at zero, and marks the debt PAID_OFF when nothing remains. Any other
// status is left as it was. A non-positive amount fails with
// ErrInvalidPayment and leaves the debt untouched.
func ApplyPayment(d domain.Debt, p domain.Payment) (domain.Debt, error) {
	if !p.Amount.IsPositive() {
		return d, &domain.ErrInvalidPayment{Amount: p.Amount.String()}
	}
	d.RemainingBalance = domain.NonNegative(d.RemainingBalance.Sub(p.Amount))
	if d.RemainingBalance.IsZero() {
		d.Status = domain.StatusPaidOff
	}
	return d, nil
}

// Overpayment is the part of amount that exceeds the remaining balance.
func Overpayment(d domain.Debt, amount decimal.Decimal) decimal.Decimal {
	return domain.NonNegative(amount.Sub(d.RemainingBalance))
}

// Progress is the repaid share of the debt in percent. A debt with a zero
// total amount reports 0.
func Progress(d domain.Debt) decimal.Decimal {
	paid := d.TotalAmount.Sub(d.RemainingBalance)
	p := percent(paid, d.TotalAmount)
	return decimal.Min(domain.Hundred, domain.NonNegative(p)).Round(2)
}

// EditDebt applies an explicit edit and re-establishes the balance
// invariants: the remaining balance stays within [0, total], a zero balance
// means PAID_OFF, and a debt with money left cannot be PAID_OFF.
func EditDebt(d domain.Debt, p domain.DebtPatch) (domain.Debt, error) {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return d, &domain.ErrValidation{Field: "name", Message: "name is required"}
		}
		d.Name = name
	}
	if p.Type != nil {
		d.Type = *p.Type
	}
	if p.TotalAmount != nil {
		if !p.TotalAmount.IsPositive() {
			return d, &domain.ErrValidation{Field: "totalAmount", Message: "total amount must be greater than zero"}
		}
		d.TotalAmount = *p.TotalAmount
	}
	if p.RemainingBalance != nil {
		d.RemainingBalance = *p.RemainingBalance
	}
	if d.RemainingBalance.IsNegative() || d.RemainingBalance.GreaterThan(d.TotalAmount) {
		return d, &domain.ErrValidation{Field: "remainingBalance", Message: "remaining balance must be between 0 and the total amount"}
	}
	if p.InterestRate != nil {
		if p.InterestRate.IsNegative() {
			return d, &domain.ErrValidation{Field: "interestRate", Message: "must not be negative"}
		}
		d.InterestRate = decimal.NewNullDecimal(*p.InterestRate)
	}
	if p.MinimumPayment != nil {
		if p.MinimumPayment.IsNegative() {
			return d, &domain.ErrValidation{Field: "minimumPayment", Message: "must not be negative"}
		}
		d.MinimumPayment = decimal.NewNullDecimal(*p.MinimumPayment)
	}
	if p.DueDate != nil {
		d.DueDate = *p.DueDate
	}
	if p.Priority != nil {
		d.Priority = *p.Priority
	}
	if p.LenderName != nil {
		d.LenderName = strings.TrimSpace(*p.LenderName)
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.ReminderEnabled != nil {
		d.ReminderEnabled = *p.ReminderEnabled
	}

	switch {
	case d.RemainingBalance.IsZero():
		d.Status = domain.StatusPaidOff
	case p.Status != nil && *p.Status == domain.StatusPaidOff:
		return d, &domain.ErrValidation{Field: "status", Message: "a debt with a remaining balance cannot be marked paid off"}
	case p.Status != nil:
		d.Status = *p.Status
	case d.Status == domain.StatusPaidOff:
		// Balance was raised on a settled debt.
		d.Status = domain.StatusActive
	}
	return d, nil
}

// dueItem flattens d relative to today.
func dueItem(d domain.Debt, today domain.Date) domain.DueItem {
	return domain.DueItem{
		DebtID:           d.ID,
		UserID:           d.UserID,
		Name:             d.Name,
		Type:             d.Type,
		DueDate:          d.DueDate,
		DaysUntilDue:     int(d.DueDate.Sub(today.Time).Hours() / 24),
		RemainingBalance: d.RemainingBalance,
		MinimumPayment:   d.MinimumPayment,
		LenderName:       d.LenderName,
	}
}

// DueWithin lists ACTIVE debts whose due date falls in [today, today+days],
// earliest first. When onlyReminders is set, debts without the reminder flag
// are skipped.
func DueWithin(debts []domain.Debt, now time.Time, days int, onlyReminders bool) []domain.DueItem {
	today := domain.NewDate(now)
	until := today.AddDays(days)

	items := make([]domain.DueItem, 0)
	for _, d := range debts {
		if d.Status != domain.StatusActive || d.DueDate.IsZero() {
			continue
		}
		if onlyReminders && !d.ReminderEnabled {
			continue
		}
		if d.DueDate.Before(today.Time) || d.DueDate.After(until.Time) {
			continue
		}
		items = append(items, dueItem(d, today))
	}
	sortDue(items)
	return items
}

// PastDue lists ACTIVE debts whose due date is before today.
func PastDue(debts []domain.Debt, now time.Time) []domain.DueItem {
	today := domain.NewDate(now)
	items := make([]domain.DueItem, 0)
	for _, d := range debts {
		if d.Status != domain.StatusActive || d.DueDate.IsZero() {
			continue
		}
		if d.DueDate.Before(today.Time) {
			items = append(items, dueItem(d, today))
		}
	}
	sortDue(items)
	return items
}

func sortDue(items []domain.DueItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].DueDate.Before(items[j].DueDate.Time)
	})
}

// Reminders is DueWithin over the 7-day horizon for debts with reminders on.
func Reminders(debts []domain.Debt, now time.Time) []domain.DueItem {
	return DueWithin(debts, now, ReminderHorizonDays, true)
}

// Summarize aggregates a portfolio as of now. Total paid is the sum of the
// recorded payments.
func Summarize(debts []domain.Debt, payments []domain.Payment, now time.Time) domain.DebtAnalytics {
	a := domain.DebtAnalytics{
		AsOf:                domain.NewDate(now),
		TotalDebts:          len(debts),
		TotalDebtAmount:     decimal.Zero,
		TotalOutstanding:    decimal.Zero,
		TotalPaid:           decimal.Zero,
		MonthlyPayments:     decimal.Zero,
		AverageInterestRate: decimal.Zero,
		PaidOffPct:          decimal.Zero,
		DebtByType:          make(map[domain.DebtType]decimal.Decimal),
	}

	rateSum := decimal.Zero
	rated := 0
	for _, d := range debts {
		switch d.Status {
		case domain.StatusActive:
			a.ActiveDebts++
		case domain.StatusPaidOff:
			a.PaidOffDebts++
		case domain.StatusOverdue:
			a.OverdueDebts++
		case domain.StatusPaused:
			a.PausedDebts++
		}

		a.TotalDebtAmount = a.TotalDebtAmount.Add(d.TotalAmount)
		if d.Status != domain.StatusPaidOff {
			a.TotalOutstanding = a.TotalOutstanding.Add(d.RemainingBalance)
		}
		a.DebtByType[d.Type] = a.DebtByType[d.Type].Add(d.RemainingBalance)

		if d.Status == domain.StatusActive {
			if d.MinimumPayment.Valid {
				a.MonthlyPayments = a.MonthlyPayments.Add(d.MinimumPayment.Decimal)
			}
			if d.InterestRate.Valid {
				rateSum = rateSum.Add(d.InterestRate.Decimal)
				rated++
			}
		}
	}
	for _, p := range payments {
		a.TotalPaid = a.TotalPaid.Add(p.Amount)
	}

	if rated > 0 {
		a.AverageInterestRate = rateSum.Div(decimal.NewFromInt(int64(rated))).Round(2)
	}
	a.PaidOffPct = percent(a.TotalPaid, a.TotalOutstanding.Add(a.TotalPaid)).Round(2)

	a.Upcoming = DueWithin(debts, now, UpcomingHorizonDays, false)
	if len(a.Upcoming) > UpcomingLimit {
		a.Upcoming = a.Upcoming[:UpcomingLimit]
	}
	a.Reminders = Reminders(debts, now)
	a.PastDue = PastDue(debts, now)
	return a
}

// BuildExportRows flattens debts with their payment and receipt counts.
// Payments and receipts belonging to other debts are ignored.
func BuildExportRows(debts []domain.Debt, payments []domain.Payment, receipts []domain.Receipt) []domain.ExportRow {
	type tally struct {
		payments int
		paid     decimal.Decimal
		receipts int
	}
	byDebt := make(map[string]*tally, len(debts))
	for _, d := range debts {
		byDebt[d.ID] = &tally{paid: decimal.Zero}
	}
	for _, p := range payments {
		if t, ok := byDebt[p.DebtID]; ok {
			t.payments++
			t.paid = t.paid.Add(p.Amount)
		}
	}
	for _, r := range receipts {
		if t, ok := byDebt[r.DebtID]; ok {
			t.receipts++
		}
	}

	rows := make([]domain.ExportRow, 0, len(debts))
	for _, d := range debts {
		t := byDebt[d.ID]
		rows = append(rows, domain.ExportRow{
			Name:             d.Name,
			Type:             d.Type,
			TotalAmount:      d.TotalAmount,
			RemainingBalance: d.RemainingBalance,
			InterestRate:     d.InterestRate,
			MinimumPayment:   d.MinimumPayment,
			DueDate:          d.DueDate,
			Status:           d.Status,
			Priority:         d.Priority,
			LenderName:       d.LenderName,
			PaymentsCount:    t.payments,
			TotalPaid:        t.paid,
			ReceiptsCount:    t.receipts,
			ProgressPct:      Progress(d),
			CreatedAt:        d.CreatedAt,
		})
	}
	return rows
}
