// Package notify delivers due-date reminders.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/boddenberg/finplan-bfa-go/internal/domain"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("notify")

// SMTPConfig is the outgoing mail server.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// EmailNotifier sends reminders over SMTP.
type EmailNotifier struct {
	cfg    SMTPConfig
	send   func(e *email.Email) error
	logger *zap.Logger
}

// NewEmailNotifier creates an SMTP notifier. Authentication is skipped when
// no username is configured.
func NewEmailNotifier(cfg SMTPConfig, logger *zap.Logger) *EmailNotifier {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &EmailNotifier{
		cfg:    cfg,
		send:   func(e *email.Email) error { return e.Send(addr, auth) },
		logger: logger,
	}
}

// NotifyDueSoon mails one digest listing every item.
func (n *EmailNotifier) NotifyDueSoon(ctx context.Context, to domain.Contact, items []domain.DueItem) error {
	_, span := tracer.Start(ctx, "EmailNotifier.NotifyDueSoon")
	defer span.End()
	span.SetAttributes(attribute.Int("reminder.items", len(items)))

	if len(items) == 0 {
		return nil
	}

	e := n.compose(to, items)
	if err := n.send(e); err != nil {
		n.logger.Error("failed to send reminder email",
			zap.String("user_id", to.UserID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to send reminder email: %w", err)
	}

	n.logger.Info("reminder email sent",
		zap.String("user_id", to.UserID),
		zap.String("subject", e.Subject),
	)
	return nil
}

func (n *EmailNotifier) compose(to domain.Contact, items []domain.DueItem) *email.Email {
	e := email.NewEmail()
	e.From = n.cfg.From
	e.To = []string{formatAddress(to)}
	if len(items) == 1 {
		e.Subject = fmt.Sprintf("Payment reminder: %s due %s", items[0].Name, items[0].DueDate)
	} else {
		e.Subject = fmt.Sprintf("Payment reminder: %d debts due soon", len(items))
	}
	e.Text = []byte(Body(to, items))
	return e
}

func formatAddress(c domain.Contact) string {
	if c.Name == "" {
		return c.Email
	}
	return fmt.Sprintf("%q <%s>", c.Name, c.Email)
}

// Body renders the plain-text reminder.
func Body(to domain.Contact, items []domain.DueItem) string {
	var b strings.Builder
	name := to.Name
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	b.WriteString("The following payments are coming up:\n\n")
	for _, it := range items {
		fmt.Fprintf(&b, "- %s", it.Name)
		if it.LenderName != "" {
			fmt.Fprintf(&b, " (%s)", it.LenderName)
		}
		fmt.Fprintf(&b, ": due %s, %s\n", it.DueDate, DueIn(it.DaysUntilDue))
		fmt.Fprintf(&b, "  Remaining balance: %s\n", it.RemainingBalance.StringFixed(2))
		if it.MinimumPayment.Valid {
			fmt.Fprintf(&b, "  Minimum payment: %s\n", it.MinimumPayment.Decimal.StringFixed(2))
		}
	}
	b.WriteString("\nYou can turn these reminders off per debt in FinPlan.\n")
	return b.String()
}

// DueIn describes a due date relative to today.
func DueIn(days int) string {
	switch {
	case days == 0:
		return "today"
	case days == 1:
		return "tomorrow"
	case days < 0:
		return fmt.Sprintf("%d days overdue", -days)
	}
	return fmt.Sprintf("in %d days", days)
}

// LogNotifier writes reminders to the log. It stands in when SMTP is not
// configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyDueSoon(_ context.Context, to domain.Contact, items []domain.DueItem) error {
	for _, it := range items {
		n.logger.Info("debt due soon",
			zap.String("user_id", to.UserID),
			zap.String("email", to.Email),
			zap.String("debt_id", it.DebtID),
			zap.String("due_date", it.DueDate.String()),
			zap.Int("days_until_due", it.DaysUntilDue),
			zap.String("remaining_balance", it.RemainingBalance.StringFixed(2)),
		)
	}
	return nil
}
