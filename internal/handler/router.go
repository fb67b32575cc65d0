package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/finplan-bfa-go/internal/domain"
	"github.com/boddenberg/finplan-bfa-go/internal/infra/observability"
	"github.com/boddenberg/finplan-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// HealthCheck probes one dependency for GET /healthz.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// Services are the application services the router exposes.
type Services struct {
	Planner   *service.PlannerService
	Debts     *service.DebtService
	Receipts  *service.ReceiptService
	Reminders *service.ReminderService
	Verifier  *service.TokenVerifier
	Checks    []HealthCheck
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc Services, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc.Checks))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics/summary", metricsSummaryHandler(metrics))

		// Calculators are stateless and public.
		if svc.Planner != nil {
			r.Post("/tax/estimate", taxEstimateHandler(svc.Planner, logger))
			r.Get("/tax/brackets", taxBracketsHandler(svc.Planner))
			r.Post("/budget/analyze", budgetAnalyzeHandler(svc.Planner, logger))
			r.Post("/budget/autofill", budgetAutoFillHandler(svc.Planner, logger))
			r.Get("/budget/defaults", budgetDefaultsHandler(svc.Planner))
		}

		// Everything that touches stored data needs a user.
		r.Group(func(r chi.Router) {
			if svc.Verifier == nil || svc.Debts == nil {
				r.Handle("/*", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					writeError(w, http.StatusServiceUnavailable, "debt tracker unavailable: no store configured")
				}))
				return
			}
			r.Use(JWTAuthMiddleware(svc.Verifier, logger))

			if svc.Planner != nil {
				r.Post("/financial-health", financialHealthHandler(svc.Planner, logger))
			}

			r.Route("/debts", func(r chi.Router) {
				r.Get("/", listDebtsHandler(svc.Debts, logger))
				r.Post("/", createDebtHandler(svc.Debts, logger))

				r.Get("/analytics", debtAnalyticsHandler(svc.Debts, logger))
				r.Get("/reminders", debtRemindersHandler(svc.Debts, logger))
				r.Get("/export", exportDebtsHandler(svc.Debts, logger))

				r.Route("/{debtId}", func(r chi.Router) {
					r.Get("/", getDebtHandler(svc.Debts, logger))
					r.Put("/", updateDebtHandler(svc.Debts, logger))
					r.Delete("/", deleteDebtHandler(svc.Debts, logger))

					r.Get("/payments", listPaymentsHandler(svc.Debts, logger))
					r.Post("/payments", addPaymentHandler(svc.Debts, logger))

					if svc.Receipts != nil {
						r.Get("/receipts", listReceiptsHandler(svc.Receipts, logger))
						r.Post("/receipts", uploadReceiptHandler(svc.Receipts, svc.Debts, logger))
						r.Post("/receipts/bulk", bulkUploadReceiptsHandler(svc.Receipts, svc.Debts, logger))
					}
				})
			})

			if svc.Receipts != nil {
				r.Delete("/receipts/{receiptId}", deleteReceiptHandler(svc.Receipts, svc.Debts, logger))
			}
			if svc.Reminders != nil {
				r.Get("/profile/contact", getContactHandler(svc.Reminders, logger))
				r.Put("/profile/contact", putContactHandler(svc.Reminders, logger))
			}
		})
	})

	return r
}

// ============================================================
// Operational
// ============================================================

func healthzHandler(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "finplan-api", Status: "healthy", LastChecked: now},
		}

		for _, c := range checks {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			start := time.Now()
			err := c.Ping(ctx)
			cancel()

			h := domain.ServiceHealth{
				Name:        c.Name,
				Status:      "healthy",
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: now,
			}
			if err != nil {
				h.Status = "degraded"
				h.Error = err.Error()
			}
			services = append(services, h)
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.ServiceStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func metricsSummaryHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}
