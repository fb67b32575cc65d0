package observability

import (
	"time"

	"github.com/boddenberg/finplan-bfa-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration  *prometheus.HistogramVec
	externalErrors   *prometheus.CounterVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	paymentsRecorded *prometheus.CounterVec
	receipts         *prometheus.CounterVec
	reminders        *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finplan_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finplan_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finplan_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finplan_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		paymentsRecorded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finplan_payments_recorded_total",
				Help: "Total debt payments recorded.",
			},
			[]string{"result"},
		),
		receipts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finplan_receipts_uploaded_total",
				Help: "Total receipt uploads by outcome.",
			},
			[]string{"outcome"},
		),
		reminders: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finplan_reminders_total",
				Help: "Total reminder notifications by outcome.",
			},
			[]string{"outcome"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrPayment counts a recorded payment; result is "paid_off" when the
// payment settled the debt and "partial" otherwise.
func (m *Metrics) IncrPayment(result string) {
	m.paymentsRecorded.WithLabelValues(result).Inc()
}

// IncrReceipt counts a receipt upload ("uploaded" or "rejected").
func (m *Metrics) IncrReceipt(outcome string) {
	m.receipts.WithLabelValues(outcome).Inc()
}

// IncrReminder counts a reminder notification ("sent" or "failed").
func (m *Metrics) IncrReminder(outcome string) {
	m.reminders.WithLabelValues(outcome).Inc()
}

// Snapshot returns the counters behind GET /v1/metrics/summary.
func (m *Metrics) Snapshot() *domain.MetricsSnapshot {
	hits := getCounterValue(m.cacheHits, "analytics")
	misses := getCounterValue(m.cacheMisses, "analytics")

	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &domain.MetricsSnapshot{
		PaymentsRecorded: getCounterValue(m.paymentsRecorded, "paid_off") + getCounterValue(m.paymentsRecorded, "partial"),
		ReceiptsUploaded: getCounterValue(m.receipts, "uploaded"),
		ReceiptsRejected: getCounterValue(m.receipts, "rejected"),
		RemindersSent:    getCounterValue(m.reminders, "sent"),
		RemindersFailed:  getCounterValue(m.reminders, "failed"),
		CacheHitRate:     hitRate,
		ExternalErrors:   sumCounter(m.externalErrors),
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

// sumCounter adds up every label combination of cv.
func sumCounter(cv *prometheus.CounterVec) float64 {
	ch := make(chan prometheus.Metric, 16)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	total := float64(0)
	for metric := range ch {
		m := &dto.Metric{}
		if err := metric.Write(m); err != nil {
			continue
		}
		if m.Counter != nil && m.Counter.Value != nil {
			total += *m.Counter.Value
		}
	}
	return total
}
