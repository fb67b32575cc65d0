package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/boddenberg/finplan-bfa-go/internal/domain"
	"github.com/boddenberg/finplan-bfa-go/internal/export"
	"github.com/boddenberg/finplan-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Debts
// ============================================================

func listDebtsHandler(svc *service.DebtService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/debts")
		defer span.End()

		debts, err := svc.ListDebts(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.DebtView]{Data: debts, Total: len(debts)})
	}
}

func createDebtHandler(svc *service.DebtService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/debts")
		defer span.End()

		var req domain.CreateDebtRequest
		if !decodeJSON(w, r, &req, logger) {
			return
		}

		debt, err := svc.CreateDebt(ctx, UserIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, debt)
	}
}

func getDebtHandler(svc *service.DebtService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/debts/{debtId}")
		defer span.End()

		debtID := chi.URLParam(r, "debtId")
		span.SetAttributes(attribute.String("debt.id", debtID))

		view, err := svc.GetDebt(ctx, UserIDFromContext(ctx), debtID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func updateDebtHandler(svc *service.DebtService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/debts/{debtId}")
		defer span.End()

		debtID := chi.URLParam(r, "debtId")
		span.SetAttributes(attribute.String("debt.id", debtID))

		var req domain.UpdateDebtRequest
		if !decodeJSON(w, r, &req, logger) {
			return
		}

		debt, err := svc.UpdateDebt(ctx, UserIDFromContext(ctx), debtID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, debt)
	}
}

func deleteDebtHandler(svc *service.DebtService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/debts/{debtId}")
		defer span.End()

		debtID := chi.URLParam(r, "debtId")
		if err := svc.DeleteDebt(ctx, UserIDFromContext(ctx), debtID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "debt deleted", ID: debtID})
	}
}

// ============================================================
// Payments
// ============================================================

func listPaymentsHandler(svc *service.DebtService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/debts/{debtId}/payments")
		defer span.End()

		payments, err := svc.ListPayments(ctx, UserIDFromContext(ctx), chi.URLParam(r, "debtId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.Payment]{Data: payments, Total: len(payments)})
	}
}

func addPaymentHandler(svc *service.DebtService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/debts/{debtId}/payments")
		defer span.End()

		debtID := chi.URLParam(r, "debtId")
		span.SetAttributes(attribute.String("debt.id", debtID))

		var req domain.PaymentRequest
		if !decodeJSON(w, r, &req, logger) {
			return
		}

		outcome, err := svc.AddPayment(ctx, UserIDFromContext(ctx), debtID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, outcome)
	}
}

// ============================================================
// Analytics, reminders & export
// ============================================================

func debtAnalyticsHandler(svc *service.DebtService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/debts/analytics")
		defer span.End()

		analytics, err := svc.Analytics(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, analytics)
	}
}

func debtRemindersHandler(svc *service.DebtService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/debts/reminders")
		defer span.End()

		items, err := svc.Reminders(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.DueItem]{Data: items, Total: len(items)})
	}
}

func exportDebtsHandler(svc *service.DebtService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/debts/export")
		defer span.End()

		format, err := export.ParseFormat(r.URL.Query().Get("format"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("export.format", string(format)))

		rows, err := svc.Export(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		// Render fully before writing so a failure can still be a 500.
		var buf bytes.Buffer
		if err := export.Write(&buf, format, rows); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.FileName(time.Now())))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}
}

// ============================================================
// Reminder contact
// ============================================================

func getContactHandler(svc *service.ReminderService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/profile/contact")
		defer span.End()

		contact, err := svc.GetContact(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, contact)
	}
}

func putContactHandler(svc *service.ReminderService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/profile/contact")
		defer span.End()

		var req domain.ContactRequest
		if !decodeJSON(w, r, &req, logger) {
			return
		}

		contact, err := svc.SetContact(ctx, UserIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, contact)
	}
}
