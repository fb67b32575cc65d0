package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/boddenberg/finplan-bfa-go/internal/calc"
	"github.com/boddenberg/finplan-bfa-go/internal/domain"
	"github.com/boddenberg/finplan-bfa-go/internal/infra/observability"
	"github.com/boddenberg/finplan-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/finplan-bfa-go/internal/port"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var debtTracer = otel.Tracer("service/debts")

// recentPayments is how many payments each debt carries in list views.
const recentPayments = 5

// DebtServiceConfig tunes DebtService.
type DebtServiceConfig struct {
	// Retry governs re-running a write that lost an optimistic version race.
	Retry resilience.Config
	// RejectOverpayment turns a payment above the remaining balance into a
	// validation error instead of clamping the balance at zero.
	RejectOverpayment bool
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// DebtService implements the debt tracker: CRUD, payments, analytics and
// export.
type DebtService struct {
	debts    port.DebtStore
	receipts port.ReceiptStore
	blobs    port.BlobStore
	cache    port.Cache[*domain.DebtAnalytics]
	cfg      DebtServiceConfig
	now      func() time.Time
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewDebtService creates the debt service. blobs may be nil when receipt
// storage is not configured.
func NewDebtService(
	debts port.DebtStore,
	receipts port.ReceiptStore,
	blobs port.BlobStore,
	cache port.Cache[*domain.DebtAnalytics],
	cfg DebtServiceConfig,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *DebtService {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &DebtService{
		debts:    debts,
		receipts: receipts,
		blobs:    blobs,
		cache:    cache,
		cfg:      cfg,
		now:      now,
		metrics:  metrics,
		logger:   logger,
	}
}

// ============================================================
// CRUD
// ============================================================

// CreateDebt opens a debt for userID with remaining balance = total amount.
func (s *DebtService) CreateDebt(ctx context.Context, userID string, req *domain.CreateDebtRequest) (*domain.Debt, error) {
	ctx, span := debtTracer.Start(ctx, "DebtService.CreateDebt")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	typ, err := domain.ParseDebtType(req.Type)
	if err != nil {
		return nil, err
	}
	status, err := domain.ParseDebtStatus(req.Status)
	if err != nil {
		return nil, err
	}
	priority, err := domain.ParsePriority(req.Priority)
	if err != nil {
		return nil, err
	}

	d, err := calc.OpenDebt(domain.Debt{
		UserID:          userID,
		Name:            req.Name,
		Type:            typ,
		TotalAmount:     req.TotalAmount.Decimal,
		InterestRate:    req.InterestRate.Optional(),
		MinimumPayment:  req.MinimumPayment.Optional(),
		DueDate:         req.DueDate,
		Status:          status,
		Priority:        priority,
		LenderName:      req.LenderName,
		Description:     req.Description,
		ReminderEnabled: req.ReminderEnabled,
	})
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	d.ID = uuid.NewString()
	d.Version = 1
	d.CreatedAt = now
	d.UpdatedAt = now

	created, err := s.debts.CreateDebt(ctx, d)
	if err != nil {
		s.logger.Error("failed to create debt", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("create debt: %w", err)
	}

	s.Invalidate(userID)
	s.logger.Info("debt created",
		zap.String("user_id", userID),
		zap.String("debt_id", created.ID),
		zap.String("type", string(created.Type)),
		zap.String("total", created.TotalAmount.String()),
	)
	return created, nil
}

// ListDebts returns the user's debts, newest first, each with its most
// recent payments and its receipt count.
func (s *DebtService) ListDebts(ctx context.Context, userID string) ([]domain.DebtView, error) {
	ctx, span := debtTracer.Start(ctx, "DebtService.ListDebts")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	debts, payments, receipts, err := s.loadPortfolio(ctx, userID)
	if err != nil {
		return nil, err
	}

	paymentsByDebt := make(map[string][]domain.Payment)
	for _, p := range payments {
		paymentsByDebt[p.DebtID] = append(paymentsByDebt[p.DebtID], p)
	}
	receiptsByDebt := make(map[string]int)
	for _, r := range receipts {
		receiptsByDebt[r.DebtID]++
	}

	views := make([]domain.DebtView, 0, len(debts))
	for _, d := range debts {
		ps := paymentsByDebt[d.ID]
		sortPayments(ps)
		v := newView(d, ps)
		if len(v.Payments) > recentPayments {
			v.Payments = v.Payments[:recentPayments]
		}
		v.ReceiptsCount = receiptsByDebt[d.ID]
		views = append(views, v)
	}
	return views, nil
}

// GetDebt returns one debt with all its payments and receipts.
func (s *DebtService) GetDebt(ctx context.Context, userID, debtID string) (*domain.DebtView, error) {
	ctx, span := debtTracer.Start(ctx, "DebtService.GetDebt")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("debt.id", debtID))

	d, err := s.debts.GetDebt(ctx, userID, debtID)
	if err != nil {
		return nil, err
	}

	var (
		payments []domain.Payment
		receipts []domain.Receipt
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.debts.ListPayments(gCtx, debtID, 0)
		if err != nil {
			return fmt.Errorf("list payments: %w", err)
		}
		payments = p
		return nil
	})
	g.Go(func() error {
		r, err := s.receipts.ListReceipts(gCtx, debtID)
		if err != nil {
			return fmt.Errorf("list receipts: %w", err)
		}
		receipts = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	v := newView(*d, payments)
	v.Receipts = receipts
	v.ReceiptsCount = len(receipts)
	return &v, nil
}

// UpdateDebt applies an explicit edit. A concurrent write is retried
// against the fresh record.
func (s *DebtService) UpdateDebt(ctx context.Context, userID, debtID string, req *domain.UpdateDebtRequest) (*domain.Debt, error) {
	ctx, span := debtTracer.Start(ctx, "DebtService.UpdateDebt")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("debt.id", debtID))

	patch, err := req.Patch()
	if err != nil {
		return nil, err
	}

	var saved *domain.Debt
	err = resilience.RetryOn(ctx, s.cfg.Retry, isConflict, func() error {
		current, err := s.debts.GetDebt(ctx, userID, debtID)
		if err != nil {
			return err
		}
		edited, err := calc.EditDebt(*current, patch)
		if err != nil {
			return err
		}
		edited.Version = current.Version + 1
		edited.UpdatedAt = s.now().UTC()

		saved, err = s.debts.UpdateDebt(ctx, edited, current.Version)
		return err
	})
	if err != nil {
		if isConflict(err) {
			s.logger.Warn("debt update lost every version race",
				zap.String("user_id", userID),
				zap.String("debt_id", debtID),
			)
		}
		return nil, err
	}

	s.Invalidate(userID)
	s.logger.Info("debt updated",
		zap.String("user_id", userID),
		zap.String("debt_id", debtID),
		zap.String("status", string(saved.Status)),
	)
	return saved, nil
}

// DeleteDebt removes a debt with its payments and receipts. Receipt files
// are removed afterwards; a failed file delete is logged and ignored.
func (s *DebtService) DeleteDebt(ctx context.Context, userID, debtID string) error {
	ctx, span := debtTracer.Start(ctx, "DebtService.DeleteDebt")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("debt.id", debtID))

	if _, err := s.debts.GetDebt(ctx, userID, debtID); err != nil {
		return err
	}
	receipts, err := s.receipts.ListReceipts(ctx, debtID)
	if err != nil {
		return fmt.Errorf("list receipts: %w", err)
	}

	if err := s.debts.DeleteDebt(ctx, userID, debtID); err != nil {
		return fmt.Errorf("delete debt: %w", err)
	}
	s.Invalidate(userID)

	if s.blobs != nil {
		for _, r := range receipts {
			if err := s.blobs.Delete(ctx, r.FileURL); err != nil {
				s.logger.Warn("failed to delete receipt file",
					zap.String("debt_id", debtID),
					zap.String("receipt_id", r.ID),
					zap.Error(err),
				)
			}
		}
	}

	s.logger.Info("debt deleted",
		zap.String("user_id", userID),
		zap.String("debt_id", debtID),
		zap.Int("receipts", len(receipts)),
	)
	return nil
}

// ============================================================
// Payments
// ============================================================

// AddPayment records a payment and applies it to the debt in one atomic
// store write. The balance never drops below zero; the part of the amount
// above the balance is reported as Excess unless overpayments are rejected.
func (s *DebtService) AddPayment(ctx context.Context, userID, debtID string, req *domain.PaymentRequest) (*domain.PaymentOutcome, error) {
	ctx, span := debtTracer.Start(ctx, "DebtService.AddPayment")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("debt.id", debtID))

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("add_payment", time.Since(start))
	}()

	now := s.now().UTC()
	p := domain.Payment{
		ID:          uuid.NewString(),
		DebtID:      debtID,
		Amount:      req.Amount.Decimal,
		PaymentDate: req.PaymentDate,
		Note:        req.Note,
		CreatedAt:   now,
	}
	if p.PaymentDate.IsZero() {
		p.PaymentDate = domain.NewDate(now)
	}

	var out domain.PaymentOutcome
	err := resilience.RetryOn(ctx, s.cfg.Retry, isConflict, func() error {
		current, err := s.debts.GetDebt(ctx, userID, debtID)
		if err != nil {
			return err
		}

		excess := calc.Overpayment(*current, p.Amount)
		if s.cfg.RejectOverpayment && excess.IsPositive() {
			return &domain.ErrValidation{
				Field:   "amount",
				Message: fmt.Sprintf("payment exceeds the remaining balance of %s", current.RemainingBalance.StringFixed(2)),
			}
		}

		updated, err := calc.ApplyPayment(*current, p)
		if err != nil {
			return err
		}
		updated.Version = current.Version + 1
		updated.UpdatedAt = now

		savedPayment, savedDebt, err := s.debts.RecordPayment(ctx, p, updated, current.Version)
		if err != nil {
			return err
		}
		out = domain.PaymentOutcome{
			Payment:     *savedPayment,
			Debt:        *savedDebt,
			Excess:      excess,
			ProgressPct: calc.Progress(*savedDebt),
		}
		return nil
	})
	if err != nil {
		var invalid *domain.ErrInvalidPayment
		if errors.As(err, &invalid) {
			s.logger.Debug("payment rejected", zap.String("debt_id", debtID), zap.String("amount", invalid.Amount))
		}
		return nil, err
	}

	result := "partial"
	if out.Debt.Status == domain.StatusPaidOff {
		result = "paid_off"
	}
	s.metrics.IncrPayment(result)
	s.Invalidate(userID)

	s.logger.Info("payment recorded",
		zap.String("user_id", userID),
		zap.String("debt_id", debtID),
		zap.String("amount", p.Amount.String()),
		zap.String("remaining", out.Debt.RemainingBalance.String()),
		zap.String("excess", out.Excess.String()),
	)
	return &out, nil
}

// ListPayments returns the payments of a debt owned by userID, newest first.
func (s *DebtService) ListPayments(ctx context.Context, userID, debtID string) ([]domain.Payment, error) {
	ctx, span := debtTracer.Start(ctx, "DebtService.ListPayments")
	defer span.End()

	if _, err := s.debts.GetDebt(ctx, userID, debtID); err != nil {
		return nil, err
	}
	payments, err := s.debts.ListPayments(ctx, debtID, 0)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// ============================================================
// Analytics, reminders & export
// ============================================================

// Analytics summarises the user's portfolio as of today. Results are cached
// per user and day until the next mutation.
func (s *DebtService) Analytics(ctx context.Context, userID string) (*domain.DebtAnalytics, error) {
	ctx, span := debtTracer.Start(ctx, "DebtService.Analytics")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	now := s.now()
	key := analyticsKey(userID, now)
	if cached, ok := s.cache.Get(key); ok {
		s.metrics.IncrCacheHit("analytics")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("analytics")

	debts, payments, _, err := s.loadPortfolio(ctx, userID)
	if err != nil {
		return nil, err
	}

	a := calc.Summarize(debts, payments, now)
	s.cache.Set(key, &a)
	return &a, nil
}

// Reminders lists the user's debts due within the reminder horizon.
func (s *DebtService) Reminders(ctx context.Context, userID string) ([]domain.DueItem, error) {
	a, err := s.Analytics(ctx, userID)
	if err != nil {
		return nil, err
	}
	return a.Reminders, nil
}

// Export flattens the user's debts for export.
func (s *DebtService) Export(ctx context.Context, userID string) ([]domain.ExportRow, error) {
	ctx, span := debtTracer.Start(ctx, "DebtService.Export")
	defer span.End()

	debts, payments, receipts, err := s.loadPortfolio(ctx, userID)
	if err != nil {
		return nil, err
	}
	return calc.BuildExportRows(debts, payments, receipts), nil
}

// Invalidate drops cached analytics of userID.
func (s *DebtService) Invalidate(userID string) {
	s.cache.DeletePrefix("analytics:" + userID + ":")
}

// loadPortfolio fetches debts, payments and receipts of a user concurrently.
func (s *DebtService) loadPortfolio(ctx context.Context, userID string) ([]domain.Debt, []domain.Payment, []domain.Receipt, error) {
	var (
		debts    []domain.Debt
		payments []domain.Payment
		receipts []domain.Receipt
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := s.debts.ListDebts(gCtx, userID)
		if err != nil {
			s.logger.Error("failed to list debts", zap.String("user_id", userID), zap.Error(err))
			return fmt.Errorf("list debts: %w", err)
		}
		debts = d
		return nil
	})
	g.Go(func() error {
		p, err := s.debts.ListPaymentsByUser(gCtx, userID)
		if err != nil {
			s.logger.Error("failed to list payments", zap.String("user_id", userID), zap.Error(err))
			return fmt.Errorf("list payments: %w", err)
		}
		payments = p
		return nil
	})
	g.Go(func() error {
		r, err := s.receipts.ListReceiptsByUser(gCtx, userID)
		if err != nil {
			s.logger.Error("failed to list receipts", zap.String("user_id", userID), zap.Error(err))
			return fmt.Errorf("list receipts: %w", err)
		}
		receipts = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	return debts, payments, receipts, nil
}

func analyticsKey(userID string, now time.Time) string {
	return "analytics:" + userID + ":" + domain.NewDate(now).String()
}

func newView(d domain.Debt, payments []domain.Payment) domain.DebtView {
	if payments == nil {
		payments = []domain.Payment{}
	}
	paid := decimal.Zero
	for _, p := range payments {
		paid = paid.Add(p.Amount)
	}
	return domain.DebtView{
		Debt:          d,
		Payments:      payments,
		PaymentsCount: len(payments),
		TotalPaid:     paid,
		ProgressPct:   calc.Progress(d),
	}
}

func sortPayments(ps []domain.Payment) {
	sort.SliceStable(ps, func(i, j int) bool {
		if !ps[i].PaymentDate.Equal(ps[j].PaymentDate.Time) {
			return ps[i].PaymentDate.After(ps[j].PaymentDate.Time)
		}
		return ps[i].CreatedAt.After(ps[j].CreatedAt)
	})
}

func isConflict(err error) bool {
	var conflict *domain.ErrConflict
	return errors.As(err, &conflict)
}
