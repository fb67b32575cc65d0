// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/finplan-bfa-go/internal/domain"
)

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	DeletePrefix(prefix string)
}

// DebtStore persists debts and their payments. Every read is scoped to the
// owning user; a debt of another user is reported as not found.
type DebtStore interface {
	CreateDebt(ctx context.Context, d domain.Debt) (*domain.Debt, error)
	GetDebt(ctx context.Context, userID, debtID string) (*domain.Debt, error)
	// ListDebts returns the user's debts, newest first.
	ListDebts(ctx context.Context, userID string) ([]domain.Debt, error)
	// UpdateDebt writes d if the stored version still equals
	// expectedVersion, and fails with *domain.ErrConflict otherwise.
	UpdateDebt(ctx context.Context, d domain.Debt, expectedVersion int64) (*domain.Debt, error)
	// DeleteDebt removes the debt with its payments and receipt records.
	DeleteDebt(ctx context.Context, userID, debtID string) error

	// RecordPayment inserts p and writes the new balance and status of d in
	// one atomic step guarded by expectedVersion.
	RecordPayment(ctx context.Context, p domain.Payment, d domain.Debt, expectedVersion int64) (*domain.Payment, *domain.Debt, error)
	// ListPayments returns a debt's payments, newest first. limit <= 0
	// means all of them.
	ListPayments(ctx context.Context, debtID string, limit int) ([]domain.Payment, error)
	ListPaymentsByUser(ctx context.Context, userID string) ([]domain.Payment, error)

	// ListDueBetween returns ACTIVE debts of every user due in [from, to].
	ListDueBetween(ctx context.Context, from, to domain.Date) ([]domain.Debt, error)
	// ListPastDue returns ACTIVE debts of every user due before the date.
	ListPastDue(ctx context.Context, before domain.Date) ([]domain.Debt, error)
}

// ReceiptStore persists receipt metadata.
type ReceiptStore interface {
	CreateReceipt(ctx context.Context, r domain.Receipt) (*domain.Receipt, error)
	// GetReceipt resolves a receipt together with the user owning its debt.
	GetReceipt(ctx context.Context, userID, receiptID string) (*domain.Receipt, error)
	ListReceipts(ctx context.Context, debtID string) ([]domain.Receipt, error)
	ListReceiptsByUser(ctx context.Context, userID string) ([]domain.Receipt, error)
	DeleteReceipt(ctx context.Context, receiptID string) error
}

// ContactDirectory stores where reminders for a user go.
type ContactDirectory interface {
	UpsertContact(ctx context.Context, c domain.Contact) (*domain.Contact, error)
	GetContact(ctx context.Context, userID string) (*domain.Contact, error)
}

// Store is the full persistence surface of one backend.
type Store interface {
	DebtStore
	ReceiptStore
	ContactDirectory
	Ping(ctx context.Context) error
}

// BlobStore keeps receipt files.
type BlobStore interface {
	// Put stores data under name and returns its public URL.
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
	// Delete removes the object behind url.
	Delete(ctx context.Context, url string) error
}

// Notifier delivers due-date reminders.
type Notifier interface {
	NotifyDueSoon(ctx context.Context, to domain.Contact, items []domain.DueItem) error
}
