package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Debt tracker
// ============================================================

// DebtType is the kind of borrowing.
type DebtType string

const (
	DebtCreditCard    DebtType = "CREDIT_CARD"
	DebtPersonalLoan  DebtType = "PERSONAL_LOAN"
	DebtHomeLoan      DebtType = "HOME_LOAN"
	DebtCarLoan       DebtType = "CAR_LOAN"
	DebtEducationLoan DebtType = "EDUCATION_LOAN"
	DebtEMI           DebtType = "EMI"
	DebtOther         DebtType = "OTHER"
)

// DebtTypes lists every DebtType in display order.
var DebtTypes = []DebtType{
	DebtCreditCard, DebtPersonalLoan, DebtHomeLoan, DebtCarLoan,
	DebtEducationLoan, DebtEMI, DebtOther,
}

// ParseDebtType accepts any case. Blank input is OTHER.
func ParseDebtType(s string) (DebtType, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return DebtOther, nil
	}
	for _, t := range DebtTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", &ErrValidation{Field: "type", Message: "unknown debt type " + s}
}

// DebtStatus is the lifecycle state of a debt.
type DebtStatus string

const (
	StatusActive  DebtStatus = "ACTIVE"
	StatusPaidOff DebtStatus = "PAID_OFF"
	StatusOverdue DebtStatus = "OVERDUE"
	StatusPaused  DebtStatus = "PAUSED"
)

// ParseDebtStatus accepts any case. Blank input is ACTIVE.
func ParseDebtStatus(s string) (DebtStatus, error) {
	switch DebtStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case "", StatusActive:
		return StatusActive, nil
	case StatusPaidOff:
		return StatusPaidOff, nil
	case StatusOverdue:
		return StatusOverdue, nil
	case StatusPaused:
		return StatusPaused, nil
	}
	return "", &ErrValidation{Field: "status", Message: "unknown status " + s}
}

// Priority orders debts for repayment.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// ParsePriority accepts any case. Blank input is MEDIUM.
func ParsePriority(s string) (Priority, error) {
	switch Priority(strings.ToUpper(strings.TrimSpace(s))) {
	case "", PriorityMedium:
		return PriorityMedium, nil
	case PriorityLow:
		return PriorityLow, nil
	case PriorityHigh:
		return PriorityHigh, nil
	}
	return "", &ErrValidation{Field: "priority", Message: "unknown priority " + s}
}

// Debt is a tracked borrowing. 0 <= RemainingBalance <= TotalAmount always
// holds, and Status is PAID_OFF exactly when RemainingBalance is zero.
// Version increments on every write and guards concurrent updates.
type Debt struct {
	ID               string              `json:"id"`
	UserID           string              `json:"userId"`
	Name             string              `json:"name"`
	Type             DebtType            `json:"type"`
	TotalAmount      decimal.Decimal     `json:"totalAmount"`
	RemainingBalance decimal.Decimal     `json:"remainingBalance"`
	InterestRate     decimal.NullDecimal `json:"interestRate"`
	MinimumPayment   decimal.NullDecimal `json:"minimumPayment"`
	DueDate          Date                `json:"dueDate"`
	Status           DebtStatus          `json:"status"`
	Priority         Priority            `json:"priority"`
	LenderName       string              `json:"lenderName,omitempty"`
	Description      string              `json:"description,omitempty"`
	ReminderEnabled  bool                `json:"reminderEnabled"`
	Version          int64               `json:"version"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

// Payment is a repayment recorded against exactly one debt.
type Payment struct {
	ID          string          `json:"id"`
	DebtID      string          `json:"debtId"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate Date            `json:"paymentDate"`
	Note        string          `json:"note,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// DebtPatch is an explicit edit. Nil fields are left unchanged.
type DebtPatch struct {
	Name             *string
	Type             *DebtType
	TotalAmount      *decimal.Decimal
	RemainingBalance *decimal.Decimal
	InterestRate     *decimal.Decimal
	MinimumPayment   *decimal.Decimal
	DueDate          *Date
	Status           *DebtStatus
	Priority         *Priority
	LenderName       *string
	Description      *string
	ReminderEnabled  *bool
}

// DebtView is a debt together with its children, as returned by the API.
type DebtView struct {
	Debt
	Payments      []Payment       `json:"payments"`
	Receipts      []Receipt       `json:"receipts,omitempty"`
	PaymentsCount int             `json:"paymentsCount"`
	ReceiptsCount int             `json:"receiptsCount"`
	TotalPaid     decimal.Decimal `json:"totalPaid"`
	ProgressPct   decimal.Decimal `json:"progressPct"`
}

// PaymentOutcome is the result of recording a payment. Excess is the part
// of the amount that exceeded the remaining balance.
type PaymentOutcome struct {
	Payment     Payment         `json:"payment"`
	Debt        Debt            `json:"debt"`
	Excess      decimal.Decimal `json:"excess"`
	ProgressPct decimal.Decimal `json:"progressPct"`
}

// ============================================================
// Requests
// ============================================================

// CreateDebtRequest is the POST /v1/debts body.
type CreateDebtRequest struct {
	Name            string     `json:"name"`
	Type            string     `json:"type"`
	TotalAmount     FormAmount `json:"totalAmount"`
	InterestRate    FormAmount `json:"interestRate"`
	MinimumPayment  FormAmount `json:"minimumPayment"`
	DueDate         Date       `json:"dueDate"`
	Status          string     `json:"status"`
	Priority        string     `json:"priority"`
	LenderName      string     `json:"lenderName"`
	Description     string     `json:"description"`
	ReminderEnabled bool       `json:"reminderEnabled"`
}

// UpdateDebtRequest is the PUT /v1/debts/{debtId} body. Absent fields are
// left unchanged.
type UpdateDebtRequest struct {
	Name             *string    `json:"name,omitempty"`
	Type             *string    `json:"type,omitempty"`
	TotalAmount      FormAmount `json:"totalAmount"`
	RemainingBalance FormAmount `json:"remainingBalance"`
	InterestRate     FormAmount `json:"interestRate"`
	MinimumPayment   FormAmount `json:"minimumPayment"`
	DueDate          *Date      `json:"dueDate,omitempty"`
	Status           *string    `json:"status,omitempty"`
	Priority         *string    `json:"priority,omitempty"`
	LenderName       *string    `json:"lenderName,omitempty"`
	Description      *string    `json:"description,omitempty"`
	ReminderEnabled  *bool      `json:"reminderEnabled,omitempty"`
}

// Patch validates enum fields and converts the request into a DebtPatch.
func (r *UpdateDebtRequest) Patch() (DebtPatch, error) {
	p := DebtPatch{
		Name:            r.Name,
		DueDate:         r.DueDate,
		LenderName:      r.LenderName,
		Description:     r.Description,
		ReminderEnabled: r.ReminderEnabled,
	}
	if r.Type != nil {
		t, err := ParseDebtType(*r.Type)
		if err != nil {
			return DebtPatch{}, err
		}
		p.Type = &t
	}
	if r.Status != nil {
		s, err := ParseDebtStatus(*r.Status)
		if err != nil {
			return DebtPatch{}, err
		}
		p.Status = &s
	}
	if r.Priority != nil {
		pr, err := ParsePriority(*r.Priority)
		if err != nil {
			return DebtPatch{}, err
		}
		p.Priority = &pr
	}
	for _, f := range []struct {
		in  FormAmount
		out **decimal.Decimal
	}{
		{r.TotalAmount, &p.TotalAmount},
		{r.RemainingBalance, &p.RemainingBalance},
		{r.InterestRate, &p.InterestRate},
		{r.MinimumPayment, &p.MinimumPayment},
	} {
		if f.in.Set {
			v := f.in.Decimal
			*f.out = &v
		}
	}
	return p, nil
}

// PaymentRequest is the POST /v1/debts/{debtId}/payments body. A missing
// payment date means today.
type PaymentRequest struct {
	Amount      FormAmount `json:"amount"`
	PaymentDate Date       `json:"paymentDate"`
	Note        string     `json:"note"`
}
