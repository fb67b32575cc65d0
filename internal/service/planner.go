package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/finplan-bfa-go/internal/calc"
	"github.com/boddenberg/finplan-bfa-go/internal/domain"
	"github.com/boddenberg/finplan-bfa-go/internal/infra/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var plannerTracer = otel.Tracer("service/planner")

// AnalyticsSource supplies a user's debt analytics.
type AnalyticsSource interface {
	Analytics(ctx context.Context, userID string) (*domain.DebtAnalytics, error)
}

// PlannerService serves the tax estimator and the budget planner. Both are
// stateless; only FinancialHealth reads stored debts.
type PlannerService struct {
	estimator *calc.TaxEstimator
	debts     AnalyticsSource
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewPlannerService validates rules and creates the planner.
func NewPlannerService(rules domain.TaxRules, debts AnalyticsSource, metrics *observability.Metrics, logger *zap.Logger) (*PlannerService, error) {
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("tax rules: %w", err)
	}
	return &PlannerService{
		estimator: calc.NewTaxEstimator(rules),
		debts:     debts,
		metrics:   metrics,
		logger:    logger,
	}, nil
}

// TaxRules returns the bracket tables in use.
func (s *PlannerService) TaxRules() domain.TaxRules {
	return s.estimator.Rules()
}

// EstimateTax computes the income tax for one form snapshot.
func (s *PlannerService) EstimateTax(ctx context.Context, req *domain.TaxRequest) domain.TaxResult {
	_, span := plannerTracer.Start(ctx, "PlannerService.EstimateTax")
	defer span.End()

	start := time.Now()
	res := s.estimator.Estimate(req.Input())
	s.metrics.RecordRequestDuration("estimate_tax", time.Since(start))

	span.SetAttributes(
		attribute.String("tax.age_category", string(res.AgeCategory)),
		attribute.String("tax.total", res.TotalTax.String()),
	)
	s.logger.Debug("tax estimated",
		zap.String("age_category", string(res.AgeCategory)),
		zap.String("taxable_income", res.TaxableIncome.String()),
		zap.String("total_tax", res.TotalTax.String()),
	)
	return res
}

// AnalyzeBudget evaluates a budget snapshot and the user's goals.
func (s *PlannerService) AnalyzeBudget(ctx context.Context, req *domain.BudgetRequest) *domain.BudgetReport {
	_, span := plannerTracer.Start(ctx, "PlannerService.AnalyzeBudget")
	defer span.End()

	tf := domain.ParseTimeframe(req.Timeframe)
	res := calc.AnalyzeBudget(req.IncomeSources(), req.Lines(), tf)
	span.SetAttributes(attribute.String("budget.health", string(res.Health.Rating)))

	return &domain.BudgetReport{
		Result: res,
		Goals:  calc.EvaluateGoals(res, req.GoalSet()),
	}
}

// AutoFill suggests expense amounts from income. With no lines given the
// default lines are used.
func (s *PlannerService) AutoFill(ctx context.Context, req *domain.AutoFillRequest) []domain.BudgetLine {
	_, span := plannerTracer.Start(ctx, "PlannerService.AutoFill")
	defer span.End()

	return calc.AutoFill(req.Income.Decimal, domain.LinesFromInput(req.Lines))
}

// Defaults returns the planner's default incomes, lines and goals.
func (s *PlannerService) Defaults() domain.BudgetDefaults {
	return domain.BudgetDefaults{
		Incomes: domain.DefaultIncomeSources(),
		Lines:   domain.DefaultBudgetLines(),
		Goals:   domain.DefaultBudgetGoals(),
	}
}

// FinancialHealth combines a budget snapshot with the user's stored debts.
func (s *PlannerService) FinancialHealth(ctx context.Context, userID string, req *domain.BudgetRequest) (*domain.FinancialHealth, error) {
	ctx, span := plannerTracer.Start(ctx, "PlannerService.FinancialHealth")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if s.debts == nil {
		return nil, &domain.ErrUnavailable{Feature: "debt analytics"}
	}
	analytics, err := s.debts.Analytics(ctx, userID)
	if err != nil {
		return nil, err
	}

	res := calc.AnalyzeBudget(req.IncomeSources(), req.Lines(), domain.ParseTimeframe(req.Timeframe))
	health := calc.AssessFinancialHealth(res, *analytics, req.GoalSet())
	return &health, nil
}
