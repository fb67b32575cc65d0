package observability_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/boddenberg/finplan-bfa-go/internal/infra/observability"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMetrics_Snapshot(t *testing.T) {
	m := observability.NewMetrics()

	m.IncrPayment("partial")
	m.IncrPayment("paid_off")
	m.IncrReceipt("uploaded")
	m.IncrReceipt("rejected")
	m.IncrReceipt("rejected")
	m.IncrReminder("sent")
	m.IncrCacheHit("analytics")
	m.IncrCacheMiss("analytics")
	m.IncrCacheMiss("analytics")
	m.IncrCacheHit("analytics")
	m.IncrExternalError("supabase")
	m.IncrExternalError("smtp")

	s := m.Snapshot()

	if s.PaymentsRecorded != 2 {
		t.Errorf("expected 2 payments, got %v", s.PaymentsRecorded)
	}
	if s.ReceiptsUploaded != 1 || s.ReceiptsRejected != 2 {
		t.Errorf("unexpected receipt counts %v/%v", s.ReceiptsUploaded, s.ReceiptsRejected)
	}
	if s.RemindersSent != 1 || s.RemindersFailed != 0 {
		t.Errorf("unexpected reminder counts %v/%v", s.RemindersSent, s.RemindersFailed)
	}
	if s.CacheHitRate != 0.5 {
		t.Errorf("expected hit rate 0.5, got %v", s.CacheHitRate)
	}
	if s.ExternalErrors != 2 {
		t.Errorf("expected 2 external errors, got %v", s.ExternalErrors)
	}
}

func TestNewMetrics_Twice(t *testing.T) {
	// Private registries must not collide.
	observability.NewMetrics()
	observability.NewMetrics()
}

func TestInitTracer_NoEndpoint(t *testing.T) {
	shutdown, err := observability.InitTracer("", "finplan-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("unexpected shutdown error: %v", err)
	}
}

func TestZapLoggerMiddleware_PassesThrough(t *testing.T) {
	h := observability.ZapLoggerMiddleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("expected 418, got %d", rec.Code)
	}
}

func TestZapLoggerMiddleware_Levels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	serve := func(path string, status int) {
		h := observability.ZapLoggerMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte("ok"))
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	serve("/healthz", http.StatusOK)
	serve("/v1/debts", http.StatusOK)
	serve("/v1/debts/x", http.StatusNotFound)
	serve("/v1/debts", http.StatusInternalServerError)

	entries := logs.All()
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	want := []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, e := range entries {
		if e.Level != want[i] {
			t.Errorf("entry %d: level %s, want %s", i, e.Level, want[i])
		}
	}
	if got := entries[1].ContextMap()["bytes"]; got != int64(2) {
		t.Errorf("bytes = %v, want 2", got)
	}
}

func TestNewLogger_Levels(t *testing.T) {
	if !observability.NewLogger("DEBUG").Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug logger should enable debug")
	}
	if observability.NewLogger("warn").Core().Enabled(zapcore.InfoLevel) {
		t.Error("warn logger should not enable info")
	}
	if !observability.NewLogger("nonsense").Core().Enabled(zapcore.InfoLevel) {
		t.Error("unparseable level should default to info")
	}
}
