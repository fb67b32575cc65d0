package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Portfolio analytics & export
// ============================================================

// DueItem is a debt with an upcoming or missed due date.
type DueItem struct {
	DebtID           string              `json:"debtId"`
	UserID           string              `json:"userId,omitempty"`
	Name             string              `json:"name"`
	Type             DebtType            `json:"type"`
	DueDate          Date                `json:"dueDate"`
	DaysUntilDue     int                 `json:"daysUntilDue"`
	RemainingBalance decimal.Decimal     `json:"remainingBalance"`
	MinimumPayment   decimal.NullDecimal `json:"minimumPayment"`
	LenderName       string              `json:"lenderName,omitempty"`
}

// DebtAnalytics aggregates a user's debt portfolio as of AsOf.
type DebtAnalytics struct {
	AsOf                Date                         `json:"asOf"`
	TotalDebts          int                          `json:"totalDebts"`
	ActiveDebts         int                          `json:"activeDebts"`
	PaidOffDebts        int                          `json:"paidOffDebts"`
	OverdueDebts        int                          `json:"overdueDebts"`
	PausedDebts         int                          `json:"pausedDebts"`
	TotalDebtAmount     decimal.Decimal              `json:"totalDebtAmount"`
	TotalOutstanding    decimal.Decimal              `json:"totalOutstanding"`
	TotalPaid           decimal.Decimal              `json:"totalPaid"`
	MonthlyPayments     decimal.Decimal              `json:"monthlyPayments"`
	AverageInterestRate decimal.Decimal              `json:"averageInterestRate"`
	PaidOffPct          decimal.Decimal              `json:"paidOffPct"`
	DebtByType          map[DebtType]decimal.Decimal `json:"debtByType"`
	Upcoming            []DueItem                    `json:"upcoming"`
	Reminders           []DueItem                    `json:"reminders"`
	PastDue             []DueItem                    `json:"pastDue"`
}

// ExportRow is one debt flattened for export.
type ExportRow struct {
	Name             string              `json:"name"`
	Type             DebtType            `json:"type"`
	TotalAmount      decimal.Decimal     `json:"totalAmount"`
	RemainingBalance decimal.Decimal     `json:"remainingBalance"`
	InterestRate     decimal.NullDecimal `json:"interestRate"`
	MinimumPayment   decimal.NullDecimal `json:"minimumPayment"`
	DueDate          Date                `json:"dueDate"`
	Status           DebtStatus          `json:"status"`
	Priority         Priority            `json:"priority"`
	LenderName       string              `json:"lenderName"`
	PaymentsCount    int                 `json:"paymentsCount"`
	TotalPaid        decimal.Decimal     `json:"totalPaid"`
	ReceiptsCount    int                 `json:"receiptsCount"`
	ProgressPct      decimal.Decimal     `json:"progressPct"`
	CreatedAt        time.Time           `json:"createdAt"`
}

// ============================================================
// Reminders
// ============================================================

// Contact is where due-date reminders for a user are sent.
type Contact struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ContactRequest is the PUT /v1/profile/contact body.
type ContactRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// ReminderRun summarises one pass of the reminder job.
type ReminderRun struct {
	StartedAt     time.Time `json:"startedAt"`
	Candidates    int       `json:"candidates"`
	Users         int       `json:"users"`
	Sent          int       `json:"sent"`
	Failed        int       `json:"failed"`
	NoContact     int       `json:"noContact"`
	MarkedOverdue int       `json:"markedOverdue"`
}
