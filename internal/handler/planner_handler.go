package handler

import (
	"net/http"

	"github.com/boddenberg/finplan-bfa-go/internal/domain"
	"github.com/boddenberg/finplan-bfa-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ============================================================
// Tax & budget calculators
// ============================================================

type taxEstimateResponse struct {
	domain.TaxResult
	EffectiveRatePct decimal.Decimal `json:"effectiveRatePct"`
}

func taxEstimateHandler(svc *service.PlannerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/tax/estimate")
		defer span.End()

		var req domain.TaxRequest
		if !decodeJSON(w, r, &req, logger) {
			return
		}

		res := svc.EstimateTax(ctx, &req)
		writeJSON(w, http.StatusOK, taxEstimateResponse{TaxResult: res, EffectiveRatePct: res.EffectiveRatePct()})
	}
}

func taxBracketsHandler(svc *service.PlannerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.TaxRules())
	}
}

func budgetAnalyzeHandler(svc *service.PlannerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/budget/analyze")
		defer span.End()

		var req domain.BudgetRequest
		if !decodeJSON(w, r, &req, logger) {
			return
		}
		writeJSON(w, http.StatusOK, svc.AnalyzeBudget(ctx, &req))
	}
}

func budgetAutoFillHandler(svc *service.PlannerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/budget/autofill")
		defer span.End()

		var req domain.AutoFillRequest
		if !decodeJSON(w, r, &req, logger) {
			return
		}
		lines := svc.AutoFill(ctx, &req)
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.BudgetLine]{Data: lines, Total: len(lines)})
	}
}

func budgetDefaultsHandler(svc *service.PlannerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Defaults())
	}
}

func financialHealthHandler(svc *service.PlannerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/financial-health")
		defer span.End()

		var req domain.BudgetRequest
		if !decodeJSON(w, r, &req, logger) {
			return
		}

		health, err := svc.FinancialHealth(ctx, UserIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, health)
	}
}
