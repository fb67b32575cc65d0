package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/boddenberg/finplan-bfa-go/internal/domain"
)

const receiptColumns = `r.id, r.debt_id, r.file_name, r.file_url, r.file_size, r.mime_type, r.description, r.uploaded_at`

func scanReceipt(row rowScanner) (*domain.Receipt, error) {
	var (
		r          domain.Receipt
		uploadedAt timeCol
	)
	if err := row.Scan(&r.ID, &r.DebtID, &r.FileName, &r.FileURL, &r.FileSize, &r.MimeType, &r.Description, &uploadedAt); err != nil {
		return nil, err
	}
	r.UploadedAt = uploadedAt.Time
	return &r, nil
}

func (s *Store) CreateReceipt(ctx context.Context, r domain.Receipt) (*domain.Receipt, error) {
	ctx, span := tracer.Start(ctx, "SQLStore.CreateReceipt")
	defer span.End()

	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO debt_receipts
		(id, debt_id, file_name, file_url, file_size, mime_type, description, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		r.ID, r.DebtID, r.FileName, r.FileURL, r.FileSize, r.MimeType, r.Description, timestamp(r.UploadedAt))
	if err != nil {
		return nil, fmt.Errorf("insert receipt: %w", err)
	}

	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+receiptColumns+` FROM debt_receipts r WHERE r.id = ?`), r.ID)
	saved, err := scanReceipt(row)
	if err != nil {
		return nil, notFound(err, "receipt", r.ID)
	}
	return saved, nil
}

func (s *Store) GetReceipt(ctx context.Context, userID, receiptID string) (*domain.Receipt, error) {
	ctx, span := tracer.Start(ctx, "SQLStore.GetReceipt")
	defer span.End()

	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+receiptColumns+`
		FROM debt_receipts r JOIN debts d ON d.id = r.debt_id
		WHERE r.id = ? AND d.user_id = ?`), receiptID, userID)
	r, err := scanReceipt(row)
	if err != nil {
		return nil, notFound(err, "receipt", receiptID)
	}
	return r, nil
}

func (s *Store) ListReceipts(ctx context.Context, debtID string) ([]domain.Receipt, error) {
	ctx, span := tracer.Start(ctx, "SQLStore.ListReceipts")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+receiptColumns+`
		FROM debt_receipts r WHERE r.debt_id = ? ORDER BY r.uploaded_at DESC`), debtID)
	if err != nil {
		return nil, fmt.Errorf("query receipts: %w", err)
	}
	return collect(rows, scanReceipt)
}

func (s *Store) ListReceiptsByUser(ctx context.Context, userID string) ([]domain.Receipt, error) {
	ctx, span := tracer.Start(ctx, "SQLStore.ListReceiptsByUser")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+receiptColumns+`
		FROM debt_receipts r JOIN debts d ON d.id = r.debt_id
		WHERE d.user_id = ? ORDER BY r.uploaded_at DESC`), userID)
	if err != nil {
		return nil, fmt.Errorf("query receipts: %w", err)
	}
	return collect(rows, scanReceipt)
}

func (s *Store) DeleteReceipt(ctx context.Context, receiptID string) error {
	ctx, span := tracer.Start(ctx, "SQLStore.DeleteReceipt")
	defer span.End()

	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM debt_receipts WHERE id = ?`), receiptID)
	if err != nil {
		return fmt.Errorf("delete receipt: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "receipt", ID: receiptID}
	}
	return nil
}

// ============================================================
// Contacts
// ============================================================

func (s *Store) UpsertContact(ctx context.Context, c domain.Contact) (*domain.Contact, error) {
	ctx, span := tracer.Start(ctx, "SQLStore.UpsertContact")
	defer span.End()

	// ON CONFLICT ... DO UPDATE is understood by both postgres and sqlite.
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO user_contacts (user_id, email, name, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			email = excluded.email, name = excluded.name, updated_at = excluded.updated_at`),
		c.UserID, strings.TrimSpace(c.Email), c.Name, timestamp(c.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("upsert contact: %w", err)
	}
	return s.GetContact(ctx, c.UserID)
}

func (s *Store) GetContact(ctx context.Context, userID string) (*domain.Contact, error) {
	ctx, span := tracer.Start(ctx, "SQLStore.GetContact")
	defer span.End()

	var (
		c         domain.Contact
		updatedAt timeCol
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT user_id, email, name, updated_at FROM user_contacts WHERE user_id = ?`), userID).
		Scan(&c.UserID, &c.Email, &c.Name, &updatedAt)
	if err != nil {
		return nil, notFound(err, "contact", userID)
	}
	c.UpdatedAt = updatedAt.Time
	return &c, nil
}
