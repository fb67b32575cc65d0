package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/boddenberg/finplan-bfa-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

const debtColumns = `id, user_id, name, type, total_amount, remaining_balance, interest_rate,
	minimum_payment, due_date, status, priority, lender_name, description,
	reminder_enabled, version, created_at, updated_at`

const paymentColumns = `p.id, p.debt_id, p.amount, p.payment_date, p.note, p.created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDebt(row rowScanner) (*domain.Debt, error) {
	var (
		d                    domain.Debt
		dueDate              dateCol
		createdAt, updatedAt timeCol
	)
	err := row.Scan(&d.ID, &d.UserID, &d.Name, &d.Type, &d.TotalAmount, &d.RemainingBalance,
		&d.InterestRate, &d.MinimumPayment, &dueDate, &d.Status, &d.Priority, &d.LenderName,
		&d.Description, &d.ReminderEnabled, &d.Version, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	d.DueDate = dueDate.Date
	d.CreatedAt = createdAt.Time
	d.UpdatedAt = updatedAt.Time
	return &d, nil
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var (
		p           domain.Payment
		paymentDate dateCol
		createdAt   timeCol
	)
	if err := row.Scan(&p.ID, &p.DebtID, &p.Amount, &paymentDate, &p.Note, &createdAt); err != nil {
		return nil, err
	}
	p.PaymentDate = paymentDate.Date
	p.CreatedAt = createdAt.Time
	return &p, nil
}

func collect[T any](rows *sql.Rows, scan func(rowScanner) (*T, error)) ([]T, error) {
	defer rows.Close()
	out := make([]T, 0)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func (s *Store) queryDebts(ctx context.Context, query string, args ...any) ([]domain.Debt, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query debts: %w", err)
	}
	return collect(rows, scanDebt)
}

func (s *Store) CreateDebt(ctx context.Context, d domain.Debt) (*domain.Debt, error) {
	ctx, span := tracer.Start(ctx, "SQLStore.CreateDebt")
	defer span.End()

	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO debts (`+debtColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		d.ID, d.UserID, d.Name, string(d.Type), d.TotalAmount, d.RemainingBalance,
		d.InterestRate, d.MinimumPayment, dateCol{d.DueDate}, string(d.Status), string(d.Priority),
		d.LenderName, d.Description, d.ReminderEnabled, d.Version,
		timestamp(d.CreatedAt), timestamp(d.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("insert debt: %w", err)
	}
	return s.GetDebt(ctx, d.UserID, d.ID)
}

func (s *Store) GetDebt(ctx context.Context, userID, debtID string) (*domain.Debt, error) {
	ctx, span := tracer.Start(ctx, "SQLStore.GetDebt")
	defer span.End()
	span.SetAttributes(attribute.String("debt.id", debtID))

	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+debtColumns+` FROM debts WHERE id = ? AND user_id = ?`),
		debtID, userID)
	d, err := scanDebt(row)
	if err != nil {
		return nil, notFound(err, "debt", debtID)
	}
	return d, nil
}

func (s *Store) ListDebts(ctx context.Context, userID string) ([]domain.Debt, error) {
	ctx, span := tracer.Start(ctx, "SQLStore.ListDebts")
	defer span.End()

	return s.queryDebts(ctx, `SELECT `+debtColumns+` FROM debts WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
}

func (s *Store) UpdateDebt(ctx context.Context, d domain.Debt, expectedVersion int64) (*domain.Debt, error) {
	ctx, span := tracer.Start(ctx, "SQLStore.UpdateDebt")
	defer span.End()
	span.SetAttributes(attribute.String("debt.id", d.ID), attribute.Int64("debt.expected_version", expectedVersion))

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return s.updateDebtTx(ctx, tx, d, expectedVersion)
	})
	if err != nil {
		return nil, err
	}
	return s.GetDebt(ctx, d.UserID, d.ID)
}

// updateDebtTx writes d when the stored version matches. A missing row and a
// stale version are told apart so callers only retry real conflicts.
func (s *Store) updateDebtTx(ctx context.Context, tx *sql.Tx, d domain.Debt, expectedVersion int64) error {
	res, err := tx.ExecContext(ctx, s.rebind(`UPDATE debts SET
			name = ?, type = ?, total_amount = ?, remaining_balance = ?, interest_rate = ?,
			minimum_payment = ?, due_date = ?, status = ?, priority = ?, lender_name = ?,
			description = ?, reminder_enabled = ?, version = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND version = ?`),
		d.Name, string(d.Type), d.TotalAmount, d.RemainingBalance, d.InterestRate,
		d.MinimumPayment, dateCol{d.DueDate}, string(d.Status), string(d.Priority), d.LenderName,
		d.Description, d.ReminderEnabled, d.Version, timestamp(d.UpdatedAt),
		d.ID, d.UserID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update debt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update debt: %w", err)
	}
	if n == 1 {
		return nil
	}

	var exists int
	err = tx.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM debts WHERE id = ? AND user_id = ?`), d.ID, d.UserID).Scan(&exists)
	if err != nil {
		return notFound(err, "debt", d.ID)
	}
	return &domain.ErrConflict{Message: fmt.Sprintf("debt %s was modified concurrently", d.ID)}
}

func (s *Store) DeleteDebt(ctx context.Context, userID, debtID string) error {
	ctx, span := tracer.Start(ctx, "SQLStore.DeleteDebt")
	defer span.End()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM debts WHERE id = ? AND user_id = ?`), debtID, userID)
		if err != nil {
			return fmt.Errorf("delete debt: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &domain.ErrNotFound{Resource: "debt", ID: debtID}
		}
		for _, table := range []string{"debt_payments", "debt_receipts"} {
			if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM `+table+` WHERE debt_id = ?`), debtID); err != nil {
				return fmt.Errorf("delete %s: %w", table, err)
			}
		}
		return nil
	})
}

func (s *Store) RecordPayment(ctx context.Context, p domain.Payment, d domain.Debt, expectedVersion int64) (*domain.Payment, *domain.Debt, error) {
	ctx, span := tracer.Start(ctx, "SQLStore.RecordPayment")
	defer span.End()
	span.SetAttributes(attribute.String("debt.id", d.ID), attribute.String("payment.amount", p.Amount.String()))

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.updateDebtTx(ctx, tx, d, expectedVersion); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO debt_payments (id, debt_id, amount, payment_date, note, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`),
			p.ID, d.ID, p.Amount, dateCol{p.PaymentDate}, p.Note, timestamp(p.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	saved, err := s.GetDebt(ctx, d.UserID, d.ID)
	if err != nil {
		return nil, nil, err
	}
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+paymentColumns+` FROM debt_payments p WHERE p.id = ?`), p.ID)
	payment, err := scanPayment(row)
	if err != nil {
		return nil, nil, notFound(err, "payment", p.ID)
	}
	return payment, saved, nil
}

func (s *Store) ListPayments(ctx context.Context, debtID string, limit int) ([]domain.Payment, error) {
	ctx, span := tracer.Start(ctx, "SQLStore.ListPayments")
	defer span.End()

	query := `SELECT ` + paymentColumns + ` FROM debt_payments p WHERE p.debt_id = ?
		ORDER BY p.payment_date DESC, p.created_at DESC`
	args := []any{debtID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	return collect(rows, scanPayment)
}

func (s *Store) ListPaymentsByUser(ctx context.Context, userID string) ([]domain.Payment, error) {
	ctx, span := tracer.Start(ctx, "SQLStore.ListPaymentsByUser")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+paymentColumns+`
		FROM debt_payments p JOIN debts d ON d.id = p.debt_id
		WHERE d.user_id = ?
		ORDER BY p.payment_date DESC, p.created_at DESC`), userID)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	return collect(rows, scanPayment)
}

func (s *Store) ListDueBetween(ctx context.Context, from, to domain.Date) ([]domain.Debt, error) {
	ctx, span := tracer.Start(ctx, "SQLStore.ListDueBetween")
	defer span.End()

	return s.queryDebts(ctx, `SELECT `+debtColumns+` FROM debts
		WHERE status = ? AND due_date IS NOT NULL AND due_date >= ? AND due_date <= ?
		ORDER BY due_date, id`,
		string(domain.StatusActive), from.String(), to.String())
}

func (s *Store) ListPastDue(ctx context.Context, before domain.Date) ([]domain.Debt, error) {
	ctx, span := tracer.Start(ctx, "SQLStore.ListPastDue")
	defer span.End()

	return s.queryDebts(ctx, `SELECT `+debtColumns+` FROM debts
		WHERE status = ? AND due_date IS NOT NULL AND due_date < ?
		ORDER BY due_date, id`,
		string(domain.StatusActive), before.String())
}
