package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/boddenberg/finplan-bfa-go/internal/domain"
	"github.com/boddenberg/finplan-bfa-go/internal/infra/observability"
	"github.com/boddenberg/finplan-bfa-go/internal/service"

	"go.uber.org/zap"
)

func dueDebt(store *memStore, id, user, due string, reminder bool) {
	d := seedDebt(store, id, user, "5000", "5000")
	d.DueDate = date(due)
	d.ReminderEnabled = reminder
	store.put(d)
}

func TestReminderRun_GroupsByUser(t *testing.T) {
	store := newMemStore()
	dueDebt(store, "a1", "alice", "2024-06-12", true)
	dueDebt(store, "a2", "alice", "2024-06-17", true)
	dueDebt(store, "a3", "alice", "2024-06-13", false)
	dueDebt(store, "b1", "bob", "2024-06-11", true)
	dueDebt(store, "c1", "carol", "2024-06-14", true)
	dueDebt(store, "late", "alice", "2024-06-30", true)
	store.contacts["alice"] = domain.Contact{UserID: "alice", Email: "alice@example.com"}
	store.contacts["carol"] = domain.Contact{UserID: "carol", Email: "carol@example.com"}

	notifier := &mockNotifier{fail: map[string]bool{"carol": true}}
	metrics := observability.NewMetrics()
	svc := service.NewReminderService(store, store, notifier, service.ReminderServiceConfig{Now: clock}, metrics, zap.NewNop())

	run, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if run.Candidates != 4 || run.Users != 3 {
		t.Errorf("expected 4 candidates for 3 users, got %d/%d", run.Candidates, run.Users)
	}
	if run.Sent != 1 || run.Failed != 1 || run.NoContact != 1 {
		t.Errorf("unexpected outcome %+v", run)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(notifier.sent))
	}
	items := notifier.sent[0].items
	if len(items) != 2 || items[0].DebtID != "a1" || items[1].DebtID != "a2" {
		t.Errorf("expected a1 then a2, got %+v", items)
	}
	if snap := metrics.Snapshot(); snap.RemindersSent != 1 || snap.RemindersFailed != 1 {
		t.Errorf("unexpected reminder metrics %+v", snap)
	}
	if run.MarkedOverdue != 0 {
		t.Error("overdue marking is off by default")
	}
}

func TestReminderRun_AutoMarkOverdue(t *testing.T) {
	store := newMemStore()
	dueDebt(store, "old", "alice", "2024-06-01", false)
	dueDebt(store, "today", "alice", "2024-06-10", false)

	var changed []string
	svc := service.NewReminderService(store, store, &mockNotifier{}, service.ReminderServiceConfig{
		AutoMarkOverdue: true,
		OnChange:        func(userID string) { changed = append(changed, userID) },
		Now:             clock,
	}, observability.NewMetrics(), zap.NewNop())

	run, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if run.MarkedOverdue != 1 {
		t.Errorf("expected 1 debt marked overdue, got %d", run.MarkedOverdue)
	}
	if got := store.debt("old"); got.Status != domain.StatusOverdue || got.Version != 2 {
		t.Errorf("expected OVERDUE at version 2, got %s/%d", got.Status, got.Version)
	}
	if store.debt("today").Status != domain.StatusActive {
		t.Error("a debt due today is not overdue")
	}
	if len(changed) != 1 || changed[0] != "alice" {
		t.Errorf("expected change hook for alice, got %v", changed)
	}
}

func TestReminderSchedule_InvalidSpec(t *testing.T) {
	store := newMemStore()
	svc := service.NewReminderService(store, store, &mockNotifier{}, service.ReminderServiceConfig{}, observability.NewMetrics(), zap.NewNop())

	if _, err := svc.Schedule("every tuesday"); err == nil {
		t.Fatal("expected error for invalid schedule")
	}

	c, err := svc.Schedule("0 8 * * *")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	<-c.Stop().Done()
}

func TestSetContact(t *testing.T) {
	store := newMemStore()
	svc := service.NewReminderService(store, store, &mockNotifier{}, service.ReminderServiceConfig{Now: clock}, observability.NewMetrics(), zap.NewNop())

	c, err := svc.SetContact(context.Background(), "alice", &domain.ContactRequest{Email: " Alice Doe <alice@example.com> "})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Email != "alice@example.com" || c.Name != "Alice Doe" {
		t.Errorf("unexpected contact %+v", c)
	}

	_, err = svc.SetContact(context.Background(), "alice", &domain.ContactRequest{Email: "not-an-address"})
	var v *domain.ErrValidation
	if !errors.As(err, &v) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	got, err := svc.GetContact(context.Background(), "alice")
	if err != nil || got.Email != "alice@example.com" {
		t.Errorf("expected stored contact, got %+v %v", got, err)
	}
}
