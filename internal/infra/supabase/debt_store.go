package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/boddenberg/finplan-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Rows
// ============================================================

type debtRow struct {
	ID               string              `json:"id"`
	UserID           string              `json:"user_id"`
	Name             string              `json:"name"`
	Type             string              `json:"type"`
	TotalAmount      decimal.Decimal     `json:"total_amount"`
	RemainingBalance decimal.Decimal     `json:"remaining_balance"`
	InterestRate     decimal.NullDecimal `json:"interest_rate"`
	MinimumPayment   decimal.NullDecimal `json:"minimum_payment"`
	DueDate          domain.Date         `json:"due_date"`
	Status           string              `json:"status"`
	Priority         string              `json:"priority"`
	LenderName       string              `json:"lender_name"`
	Description      string              `json:"description"`
	ReminderEnabled  bool                `json:"reminder_enabled"`
	Version          int64               `json:"version"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

func toDebtRow(d domain.Debt) debtRow {
	return debtRow{
		ID:               d.ID,
		UserID:           d.UserID,
		Name:             d.Name,
		Type:             string(d.Type),
		TotalAmount:      d.TotalAmount,
		RemainingBalance: d.RemainingBalance,
		InterestRate:     d.InterestRate,
		MinimumPayment:   d.MinimumPayment,
		DueDate:          d.DueDate,
		Status:           string(d.Status),
		Priority:         string(d.Priority),
		LenderName:       d.LenderName,
		Description:      d.Description,
		ReminderEnabled:  d.ReminderEnabled,
		Version:          d.Version,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

func (r debtRow) toDomain() domain.Debt {
	return domain.Debt{
		ID:               r.ID,
		UserID:           r.UserID,
		Name:             r.Name,
		Type:             domain.DebtType(r.Type),
		TotalAmount:      r.TotalAmount,
		RemainingBalance: r.RemainingBalance,
		InterestRate:     r.InterestRate,
		MinimumPayment:   r.MinimumPayment,
		DueDate:          r.DueDate,
		Status:           domain.DebtStatus(r.Status),
		Priority:         domain.Priority(r.Priority),
		LenderName:       r.LenderName,
		Description:      r.Description,
		ReminderEnabled:  r.ReminderEnabled,
		Version:          r.Version,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

type paymentRow struct {
	ID          string          `json:"id"`
	DebtID      string          `json:"debt_id"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate domain.Date     `json:"payment_date"`
	Note        string          `json:"note"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (r paymentRow) toDomain() domain.Payment {
	return domain.Payment{
		ID:          r.ID,
		DebtID:      r.DebtID,
		Amount:      r.Amount,
		PaymentDate: r.PaymentDate,
		Note:        r.Note,
		CreatedAt:   r.CreatedAt,
	}
}

type receiptRow struct {
	ID          string    `json:"id"`
	DebtID      string    `json:"debt_id"`
	FileName    string    `json:"file_name"`
	FileURL     string    `json:"file_url"`
	FileSize    int64     `json:"file_size"`
	MimeType    string    `json:"mime_type"`
	Description string    `json:"description"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

func (r receiptRow) toDomain() domain.Receipt {
	return domain.Receipt{
		ID:          r.ID,
		DebtID:      r.DebtID,
		FileName:    r.FileName,
		FileURL:     r.FileURL,
		FileSize:    r.FileSize,
		MimeType:    r.MimeType,
		Description: r.Description,
		UploadedAt:  r.UploadedAt,
	}
}

type contactRow struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updated_at"`
}

func decodeDebts(body []byte) ([]domain.Debt, error) {
	out := make([]domain.Debt, 0)
	if empty(body) {
		return out, nil
	}
	var rows []debtRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode debts: %w", err)
	}
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func decodePayments(body []byte) ([]domain.Payment, error) {
	out := make([]domain.Payment, 0)
	if empty(body) {
		return out, nil
	}
	var rows []paymentRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode payments: %w", err)
	}
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func decodeReceipts(body []byte) ([]domain.Receipt, error) {
	out := make([]domain.Receipt, 0)
	if empty(body) {
		return out, nil
	}
	var rows []receiptRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode receipts: %w", err)
	}
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// ============================================================
// DebtStore
// ============================================================

func (c *Client) CreateDebt(ctx context.Context, d domain.Debt) (*domain.Debt, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateDebt")
	defer span.End()

	var created *domain.Debt
	err := c.execute(ctx, "debts", func() error {
		body, err := c.doPost(ctx, "debts", toDebtRow(d))
		if err != nil {
			return err
		}
		debts, err := decodeDebts(body)
		if err != nil {
			return err
		}
		if len(debts) == 0 {
			return fmt.Errorf("insert debt returned no row")
		}
		created = &debts[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (c *Client) GetDebt(ctx context.Context, userID, debtID string) (*domain.Debt, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetDebt")
	defer span.End()
	span.SetAttributes(attribute.String("debt.id", debtID))

	var debt *domain.Debt
	err := c.execute(ctx, "debts", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, query("debts", url.Values{
			"id":      {eq(debtID)},
			"user_id": {eq(userID)},
			"limit":   {"1"},
		}))
		if err != nil {
			return err
		}
		debts, err := decodeDebts(body)
		if err != nil {
			return err
		}
		if len(debts) == 0 {
			return &domain.ErrNotFound{Resource: "debt", ID: debtID}
		}
		debt = &debts[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return debt, nil
}

func (c *Client) ListDebts(ctx context.Context, userID string) ([]domain.Debt, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListDebts")
	defer span.End()

	var debts []domain.Debt
	err := c.execute(ctx, "debts", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, query("debts", url.Values{
			"user_id": {eq(userID)},
			"order":   {"created_at.desc"},
		}))
		if err != nil {
			return err
		}
		debts, err = decodeDebts(body)
		return err
	})
	return debts, err
}

// UpdateDebt patches the row only while its version is unchanged.
func (c *Client) UpdateDebt(ctx context.Context, d domain.Debt, expectedVersion int64) (*domain.Debt, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateDebt")
	defer span.End()
	span.SetAttributes(attribute.String("debt.id", d.ID), attribute.Int64("debt.version", expectedVersion))

	row := toDebtRow(d)
	patch := map[string]any{
		"name":              row.Name,
		"type":              row.Type,
		"total_amount":      row.TotalAmount,
		"remaining_balance": row.RemainingBalance,
		"interest_rate":     row.InterestRate,
		"minimum_payment":   row.MinimumPayment,
		"due_date":          row.DueDate,
		"status":            row.Status,
		"priority":          row.Priority,
		"lender_name":       row.LenderName,
		"description":       row.Description,
		"reminder_enabled":  row.ReminderEnabled,
		"version":           row.Version,
		"updated_at":        row.UpdatedAt,
	}

	var updated *domain.Debt
	err := c.execute(ctx, "debts", func() error {
		body, err := c.doPatch(ctx, query("debts", url.Values{
			"id":      {eq(d.ID)},
			"user_id": {eq(d.UserID)},
			"version": {eq(strconv.FormatInt(expectedVersion, 10))},
		}), patch)
		if err != nil {
			return err
		}
		debts, err := decodeDebts(body)
		if err != nil {
			return err
		}
		if len(debts) == 0 {
			return &domain.ErrConflict{Message: "debt was modified concurrently"}
		}
		updated = &debts[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteDebt relies on ON DELETE CASCADE for payments and receipts.
func (c *Client) DeleteDebt(ctx context.Context, userID, debtID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteDebt")
	defer span.End()

	return c.execute(ctx, "debts", func() error {
		return c.doDelete(ctx, query("debts", url.Values{
			"id":      {eq(debtID)},
			"user_id": {eq(userID)},
		}))
	})
}

// recordPaymentResult is the JSON returned by rpc/record_debt_payment. A
// null result means the version check failed.
type recordPaymentResult struct {
	Payment paymentRow `json:"payment"`
	Debt    debtRow    `json:"debt"`
}

// RecordPayment inserts the payment and updates the balance in one
// database transaction via the record_debt_payment function.
func (c *Client) RecordPayment(ctx context.Context, p domain.Payment, d domain.Debt, expectedVersion int64) (*domain.Payment, *domain.Debt, error) {
	ctx, span := tracer.Start(ctx, "Supabase.RecordPayment")
	defer span.End()
	span.SetAttributes(attribute.String("debt.id", d.ID))

	args := map[string]any{
		"p_payment_id":       p.ID,
		"p_debt_id":          d.ID,
		"p_user_id":          d.UserID,
		"p_amount":           p.Amount,
		"p_payment_date":     p.PaymentDate,
		"p_note":             p.Note,
		"p_remaining":        d.RemainingBalance,
		"p_status":           string(d.Status),
		"p_expected_version": expectedVersion,
		"p_updated_at":       d.UpdatedAt,
	}

	var res recordPaymentResult
	err := c.execute(ctx, "rpc/record_debt_payment", func() error {
		body, err := c.doRPC(ctx, "record_debt_payment", args)
		if err != nil {
			return err
		}
		if empty(body) {
			return &domain.ErrConflict{Message: "debt was modified concurrently"}
		}
		if err := json.Unmarshal(body, &res); err != nil {
			return fmt.Errorf("decode payment result: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	payment := res.Payment.toDomain()
	debt := res.Debt.toDomain()
	return &payment, &debt, nil
}

func (c *Client) ListPayments(ctx context.Context, debtID string, limit int) ([]domain.Payment, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListPayments")
	defer span.End()

	filters := url.Values{
		"debt_id": {eq(debtID)},
		"order":   {"payment_date.desc,created_at.desc"},
	}
	if limit > 0 {
		filters.Set("limit", strconv.Itoa(limit))
	}

	var payments []domain.Payment
	err := c.execute(ctx, "debt_payments", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, query("debt_payments", filters))
		if err != nil {
			return err
		}
		payments, err = decodePayments(body)
		return err
	})
	return payments, err
}

func (c *Client) ListPaymentsByUser(ctx context.Context, userID string) ([]domain.Payment, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListPaymentsByUser")
	defer span.End()

	var payments []domain.Payment
	err := c.execute(ctx, "debt_payments", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, query("debt_payments", url.Values{
			"select":        {"*,debts!inner(user_id)"},
			"debts.user_id": {eq(userID)},
			"order":         {"payment_date.desc,created_at.desc"},
		}))
		if err != nil {
			return err
		}
		payments, err = decodePayments(body)
		return err
	})
	return payments, err
}

func (c *Client) ListDueBetween(ctx context.Context, from, to domain.Date) ([]domain.Debt, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListDueBetween")
	defer span.End()

	var debts []domain.Debt
	err := c.execute(ctx, "debts", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, query("debts", url.Values{
			"status":   {eq(string(domain.StatusActive))},
			"due_date": {"gte." + from.String(), "lte." + to.String()},
			"order":    {"due_date.asc"},
		}))
		if err != nil {
			return err
		}
		debts, err = decodeDebts(body)
		return err
	})
	return debts, err
}

func (c *Client) ListPastDue(ctx context.Context, before domain.Date) ([]domain.Debt, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListPastDue")
	defer span.End()

	var debts []domain.Debt
	err := c.execute(ctx, "debts", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, query("debts", url.Values{
			"status":   {eq(string(domain.StatusActive))},
			"due_date": {"lt." + before.String()},
			"order":    {"due_date.asc"},
		}))
		if err != nil {
			return err
		}
		debts, err = decodeDebts(body)
		return err
	})
	return debts, err
}

// ============================================================
// ReceiptStore
// ============================================================

func (c *Client) CreateReceipt(ctx context.Context, r domain.Receipt) (*domain.Receipt, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateReceipt")
	defer span.End()

	row := receiptRow{
		ID:          r.ID,
		DebtID:      r.DebtID,
		FileName:    r.FileName,
		FileURL:     r.FileURL,
		FileSize:    r.FileSize,
		MimeType:    r.MimeType,
		Description: r.Description,
		UploadedAt:  r.UploadedAt,
	}

	var created *domain.Receipt
	err := c.execute(ctx, "debt_receipts", func() error {
		body, err := c.doPost(ctx, "debt_receipts", row)
		if err != nil {
			return err
		}
		receipts, err := decodeReceipts(body)
		if err != nil {
			return err
		}
		if len(receipts) == 0 {
			return fmt.Errorf("insert receipt returned no row")
		}
		created = &receipts[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (c *Client) GetReceipt(ctx context.Context, userID, receiptID string) (*domain.Receipt, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetReceipt")
	defer span.End()

	var receipt *domain.Receipt
	err := c.execute(ctx, "debt_receipts", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, query("debt_receipts", url.Values{
			"select":        {"*,debts!inner(user_id)"},
			"id":            {eq(receiptID)},
			"debts.user_id": {eq(userID)},
			"limit":         {"1"},
		}))
		if err != nil {
			return err
		}
		receipts, err := decodeReceipts(body)
		if err != nil {
			return err
		}
		if len(receipts) == 0 {
			return &domain.ErrNotFound{Resource: "receipt", ID: receiptID}
		}
		receipt = &receipts[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (c *Client) ListReceipts(ctx context.Context, debtID string) ([]domain.Receipt, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListReceipts")
	defer span.End()

	var receipts []domain.Receipt
	err := c.execute(ctx, "debt_receipts", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, query("debt_receipts", url.Values{
			"debt_id": {eq(debtID)},
			"order":   {"uploaded_at.desc"},
		}))
		if err != nil {
			return err
		}
		receipts, err = decodeReceipts(body)
		return err
	})
	return receipts, err
}

func (c *Client) ListReceiptsByUser(ctx context.Context, userID string) ([]domain.Receipt, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListReceiptsByUser")
	defer span.End()

	var receipts []domain.Receipt
	err := c.execute(ctx, "debt_receipts", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, query("debt_receipts", url.Values{
			"select":        {"*,debts!inner(user_id)"},
			"debts.user_id": {eq(userID)},
			"order":         {"uploaded_at.desc"},
		}))
		if err != nil {
			return err
		}
		receipts, err = decodeReceipts(body)
		return err
	})
	return receipts, err
}

func (c *Client) DeleteReceipt(ctx context.Context, receiptID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteReceipt")
	defer span.End()

	return c.execute(ctx, "debt_receipts", func() error {
		return c.doDelete(ctx, query("debt_receipts", url.Values{"id": {eq(receiptID)}}))
	})
}

// ============================================================
// ContactDirectory
// ============================================================

func (c *Client) UpsertContact(ctx context.Context, contact domain.Contact) (*domain.Contact, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpsertContact")
	defer span.End()

	var saved *domain.Contact
	err := c.execute(ctx, "user_contacts", func() error {
		body, err := c.doUpsert(ctx, "user_contacts", "user_id", contactRow(contact))
		if err != nil {
			return err
		}
		var rows []contactRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("decode contact: %w", err)
		}
		if len(rows) == 0 {
			return fmt.Errorf("upsert contact returned no row")
		}
		ct := domain.Contact(rows[0])
		saved = &ct
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (c *Client) GetContact(ctx context.Context, userID string) (*domain.Contact, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetContact")
	defer span.End()

	var contact *domain.Contact
	err := c.execute(ctx, "user_contacts", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, query("user_contacts", url.Values{
			"user_id": {eq(userID)},
			"limit":   {"1"},
		}))
		if err != nil {
			return err
		}
		if empty(body) {
			return &domain.ErrNotFound{Resource: "contact", ID: userID}
		}
		var rows []contactRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("decode contact: %w", err)
		}
		if len(rows) == 0 {
			return &domain.ErrNotFound{Resource: "contact", ID: userID}
		}
		ct := domain.Contact(rows[0])
		contact = &ct
		return nil
	})
	if err != nil {
		return nil, err
	}
	return contact, nil
}
