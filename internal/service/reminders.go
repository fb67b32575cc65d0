package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/boddenberg/finplan-bfa-go/internal/calc"
	"github.com/boddenberg/finplan-bfa-go/internal/domain"
	"github.com/boddenberg/finplan-bfa-go/internal/infra/observability"
	"github.com/boddenberg/finplan-bfa-go/internal/port"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var reminderTracer = otel.Tracer("service/reminders")

// reminderRunTimeout bounds one scheduled pass.
const reminderRunTimeout = 5 * time.Minute

// ReminderServiceConfig tunes ReminderService.
type ReminderServiceConfig struct {
	// HorizonDays is how far ahead due dates trigger a reminder.
	HorizonDays int
	// AutoMarkOverdue moves ACTIVE debts past their due date to OVERDUE.
	AutoMarkOverdue bool
	// OnChange is called with the user id after a debt of that user was
	// modified by the job.
	OnChange func(userID string)
	Now      func() time.Time
}

// ReminderService sends due-date reminders and keeps the contact directory.
type ReminderService struct {
	debts    port.DebtStore
	contacts port.ContactDirectory
	notifier port.Notifier
	cfg      ReminderServiceConfig
	now      func() time.Time
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewReminderService creates the reminder service.
func NewReminderService(
	debts port.DebtStore,
	contacts port.ContactDirectory,
	notifier port.Notifier,
	cfg ReminderServiceConfig,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *ReminderService {
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = calc.ReminderHorizonDays
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &ReminderService{
		debts:    debts,
		contacts: contacts,
		notifier: notifier,
		cfg:      cfg,
		now:      now,
		metrics:  metrics,
		logger:   logger,
	}
}

// Run performs one reminder pass over every user. A failure to notify one
// user is counted and does not stop the pass.
func (s *ReminderService) Run(ctx context.Context) (*domain.ReminderRun, error) {
	ctx, span := reminderTracer.Start(ctx, "ReminderService.Run")
	defer span.End()

	now := s.now()
	today := domain.NewDate(now)
	run := &domain.ReminderRun{StartedAt: now.UTC()}

	candidates, err := s.debts.ListDueBetween(ctx, today, today.AddDays(s.cfg.HorizonDays))
	if err != nil {
		return nil, fmt.Errorf("list due debts: %w", err)
	}

	byUser := make(map[string][]domain.Debt)
	var order []string
	for _, d := range candidates {
		if !d.ReminderEnabled {
			continue
		}
		if _, seen := byUser[d.UserID]; !seen {
			order = append(order, d.UserID)
		}
		byUser[d.UserID] = append(byUser[d.UserID], d)
		run.Candidates++
	}
	run.Users = len(order)

	for _, userID := range order {
		items := calc.DueWithin(byUser[userID], now, s.cfg.HorizonDays, true)
		if len(items) == 0 {
			continue
		}

		contact, err := s.contacts.GetContact(ctx, userID)
		if err != nil {
			var nf *domain.ErrNotFound
			if errors.As(err, &nf) {
				run.NoContact++
				continue
			}
			run.Failed++
			s.logger.Error("contact lookup failed", zap.String("user_id", userID), zap.Error(err))
			continue
		}

		if err := s.notifier.NotifyDueSoon(ctx, *contact, items); err != nil {
			run.Failed++
			s.metrics.IncrReminder("failed")
			s.logger.Error("reminder delivery failed", zap.String("user_id", userID), zap.Error(err))
			continue
		}
		run.Sent++
		s.metrics.IncrReminder("sent")
	}

	if s.cfg.AutoMarkOverdue {
		marked, err := s.markOverdue(ctx, today)
		run.MarkedOverdue = marked
		if err != nil {
			s.logger.Error("overdue sweep failed", zap.Error(err))
		}
	}

	span.SetAttributes(
		attribute.Int("reminders.candidates", run.Candidates),
		attribute.Int("reminders.sent", run.Sent),
		attribute.Int("reminders.failed", run.Failed),
	)
	s.logger.Info("reminder run finished",
		zap.Int("candidates", run.Candidates),
		zap.Int("users", run.Users),
		zap.Int("sent", run.Sent),
		zap.Int("failed", run.Failed),
		zap.Int("no_contact", run.NoContact),
		zap.Int("marked_overdue", run.MarkedOverdue),
	)
	return run, nil
}

// markOverdue moves ACTIVE debts due before today to OVERDUE. A debt that
// changed concurrently is skipped until the next run.
func (s *ReminderService) markOverdue(ctx context.Context, today domain.Date) (int, error) {
	pastDue, err := s.debts.ListPastDue(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("list past due debts: %w", err)
	}

	marked := 0
	for _, d := range pastDue {
		if d.Status != domain.StatusActive {
			continue
		}
		expected := d.Version
		d.Status = domain.StatusOverdue
		d.Version = expected + 1
		d.UpdatedAt = s.now().UTC()

		if _, err := s.debts.UpdateDebt(ctx, d, expected); err != nil {
			s.logger.Warn("could not mark debt overdue", zap.String("debt_id", d.ID), zap.Error(err))
			continue
		}
		marked++
		if s.cfg.OnChange != nil {
			s.cfg.OnChange(d.UserID)
		}
	}
	return marked, nil
}

// Schedule starts Run on the cron spec and returns the running scheduler.
// The caller stops it on shutdown.
func (s *ReminderService) Schedule(spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), reminderRunTimeout)
		defer cancel()
		if _, err := s.Run(ctx); err != nil {
			s.logger.Error("scheduled reminder run failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", spec, err)
	}
	c.Start()
	s.logger.Info("reminder job scheduled", zap.String("schedule", spec))
	return c, nil
}

// SetContact stores the reminder address of userID.
func (s *ReminderService) SetContact(ctx context.Context, userID string, req *domain.ContactRequest) (*domain.Contact, error) {
	ctx, span := reminderTracer.Start(ctx, "ReminderService.SetContact")
	defer span.End()

	addr, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		return nil, &domain.ErrValidation{Field: "email", Message: "invalid email address"}
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = addr.Name
	}

	c, err := s.contacts.UpsertContact(ctx, domain.Contact{
		UserID:    userID,
		Email:     addr.Address,
		Name:      name,
		UpdatedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("save contact: %w", err)
	}
	return c, nil
}

// GetContact returns the reminder address of userID.
func (s *ReminderService) GetContact(ctx context.Context, userID string) (*domain.Contact, error) {
	return s.contacts.GetContact(ctx, userID)
}
