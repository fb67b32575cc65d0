package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// ServiceStatus is returned by GET /healthz.
type ServiceStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	Error       string `json:"error,omitempty"`
	LastChecked string `json:"lastChecked"`
}

// MetricsSnapshot is returned by GET /v1/metrics/summary.
type MetricsSnapshot struct {
	PaymentsRecorded float64 `json:"paymentsRecorded"`
	ReceiptsUploaded float64 `json:"receiptsUploaded"`
	ReceiptsRejected float64 `json:"receiptsRejected"`
	RemindersSent    float64 `json:"remindersSent"`
	RemindersFailed  float64 `json:"remindersFailed"`
	CacheHitRate     float64 `json:"cacheHitRate"`
	ExternalErrors   float64 `json:"externalErrors"`
}

// ============================================================
// Generic API Response wrappers
// ============================================================

// ListResponse wraps list results.
type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}

// SuccessResponse wraps a successful single-entity response.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
