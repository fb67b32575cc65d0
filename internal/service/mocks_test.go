package service_test

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/boddenberg/finplan-bfa-go/internal/domain"
)

// --- Mocks ---

// memStore is an in-memory port.Store. conflicts makes the next N versioned
// writes fail with ErrConflict.
type memStore struct {
	mu        sync.Mutex
	debts     map[string]domain.Debt
	payments  []domain.Payment
	receipts  []domain.Receipt
	contacts  map[string]domain.Contact
	conflicts int
	writes    int
	listErr   error
	saveErr   error
}

func newMemStore() *memStore {
	return &memStore{
		debts:    make(map[string]domain.Debt),
		contacts: make(map[string]domain.Contact),
	}
}

func (m *memStore) put(d domain.Debt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.Version == 0 {
		d.Version = 1
	}
	m.debts[d.ID] = d
}

func (m *memStore) debt(id string) domain.Debt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.debts[id]
}

func (m *memStore) CreateDebt(_ context.Context, d domain.Debt) (*domain.Debt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	m.debts[d.ID] = d
	return &d, nil
}

func (m *memStore) GetDebt(_ context.Context, userID, debtID string) (*domain.Debt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.debts[debtID]
	if !ok || d.UserID != userID {
		return nil, &domain.ErrNotFound{Resource: "debt", ID: debtID}
	}
	return &d, nil
}

func (m *memStore) ListDebts(_ context.Context, userID string) ([]domain.Debt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.Debt
	for _, d := range m.debts {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) checkVersion(id string, expected int64) error {
	if m.conflicts > 0 {
		m.conflicts--
		return &domain.ErrConflict{Message: "debt was modified concurrently"}
	}
	if cur, ok := m.debts[id]; !ok || cur.Version != expected {
		return &domain.ErrConflict{Message: "debt was modified concurrently"}
	}
	return nil
}

func (m *memStore) UpdateDebt(_ context.Context, d domain.Debt, expected int64) (*domain.Debt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkVersion(d.ID, expected); err != nil {
		return nil, err
	}
	m.writes++
	m.debts[d.ID] = d
	return &d, nil
}

func (m *memStore) DeleteDebt(_ context.Context, userID, debtID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.debts[debtID]
	if !ok || d.UserID != userID {
		return &domain.ErrNotFound{Resource: "debt", ID: debtID}
	}
	delete(m.debts, debtID)
	payments := m.payments[:0]
	for _, p := range m.payments {
		if p.DebtID != debtID {
			payments = append(payments, p)
		}
	}
	m.payments = payments
	receipts := m.receipts[:0]
	for _, r := range m.receipts {
		if r.DebtID != debtID {
			receipts = append(receipts, r)
		}
	}
	m.receipts = receipts
	return nil
}

func (m *memStore) RecordPayment(_ context.Context, p domain.Payment, d domain.Debt, expected int64) (*domain.Payment, *domain.Debt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkVersion(d.ID, expected); err != nil {
		return nil, nil, err
	}
	m.writes++
	m.payments = append(m.payments, p)
	m.debts[d.ID] = d
	return &p, &d, nil
}

func (m *memStore) ListPayments(_ context.Context, debtID string, limit int) ([]domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Payment
	for i := len(m.payments) - 1; i >= 0; i-- {
		if m.payments[i].DebtID == debtID {
			out = append(out, m.payments[i])
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ListPaymentsByUser(_ context.Context, userID string) ([]domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Payment
	for _, p := range m.payments {
		if d, ok := m.debts[p.DebtID]; ok && d.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) ListDueBetween(_ context.Context, from, to domain.Date) ([]domain.Debt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Debt
	for _, d := range m.debts {
		if d.Status == domain.StatusActive && !d.DueDate.IsZero() &&
			!d.DueDate.Before(from.Time) && !d.DueDate.After(to.Time) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ListPastDue(_ context.Context, before domain.Date) ([]domain.Debt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Debt
	for _, d := range m.debts {
		if d.Status == domain.StatusActive && !d.DueDate.IsZero() && d.DueDate.Before(before.Time) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memStore) CreateReceipt(_ context.Context, r domain.Receipt) (*domain.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	m.receipts = append(m.receipts, r)
	return &r, nil
}

func (m *memStore) GetReceipt(_ context.Context, userID, receiptID string) (*domain.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.receipts {
		if r.ID != receiptID {
			continue
		}
		if d, ok := m.debts[r.DebtID]; ok && d.UserID == userID {
			return &r, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "receipt", ID: receiptID}
}

func (m *memStore) ListReceipts(_ context.Context, debtID string) ([]domain.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Receipt
	for _, r := range m.receipts {
		if r.DebtID == debtID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) ListReceiptsByUser(_ context.Context, userID string) ([]domain.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Receipt
	for _, r := range m.receipts {
		if d, ok := m.debts[r.DebtID]; ok && d.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) DeleteReceipt(_ context.Context, receiptID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.receipts {
		if r.ID == receiptID {
			m.receipts = append(m.receipts[:i], m.receipts[i+1:]...)
			return nil
		}
	}
	return &domain.ErrNotFound{Resource: "receipt", ID: receiptID}
}

func (m *memStore) UpsertContact(_ context.Context, c domain.Contact) (*domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts[c.UserID] = c
	return &c, nil
}

func (m *memStore) GetContact(_ context.Context, userID string) (*domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[userID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "contact", ID: userID}
	}
	return &c, nil
}

func (m *memStore) Ping(_ context.Context) error { return nil }

type mockBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	putErr  error
	delErr  error
}

func newMockBlobs() *mockBlobs {
	return &mockBlobs{objects: make(map[string][]byte)}
}

func (b *mockBlobs) Put(_ context.Context, name, _ string, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.putErr != nil {
		return "", b.putErr
	}
	url := "https://blobs.test/" + name
	b.objects[url] = data
	return url, nil
}

func (b *mockBlobs) Delete(_ context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, url)
	if b.delErr != nil {
		return b.delErr
	}
	delete(b.objects, url)
	return nil
}

type sentReminder struct {
	to    domain.Contact
	items []domain.DueItem
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []sentReminder
	fail map[string]bool
}

func (n *mockNotifier) NotifyDueSoon(_ context.Context, to domain.Contact, items []domain.DueItem) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail[to.UserID] {
		return errors.New("smtp: connection refused")
	}
	n.sent = append(n.sent, sentReminder{to: to, items: items})
	return nil
}
