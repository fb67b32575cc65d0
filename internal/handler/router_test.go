package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/finplan-bfa-go/internal/domain"
	"github.com/boddenberg/finplan-bfa-go/internal/handler"
	"github.com/boddenberg/finplan-bfa-go/internal/infra/cache"
	"github.com/boddenberg/finplan-bfa-go/internal/infra/notify"
	"github.com/boddenberg/finplan-bfa-go/internal/infra/observability"
	"github.com/boddenberg/finplan-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/finplan-bfa-go/internal/infra/sqlstore"
	"github.com/boddenberg/finplan-bfa-go/internal/service"

	"go.uber.org/zap"
)

// memBlobs is an in-memory port.BlobStore.
type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (b *memBlobs) Put(_ context.Context, name, _ string, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[name] = data
	return "mem://" + name, nil
}

func (b *memBlobs) Delete(_ context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, strings.TrimPrefix(url, "mem://"))
	return nil
}

func (b *memBlobs) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

type testEnv struct {
	router  http.Handler
	token   string
	other   string
	blobs   *memBlobs
	metrics *observability.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	store, err := sqlstore.Open(context.Background(), sqlstore.SQLite, ":memory:", logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	analyticsCache := cache.New[*domain.DebtAnalytics](time.Minute)
	t.Cleanup(analyticsCache.Close)

	blobs := &memBlobs{objects: make(map[string][]byte)}
	debts := service.NewDebtService(store, store, blobs, analyticsCache, service.DebtServiceConfig{
		Retry: resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond},
	}, metrics, logger)
	planner, err := service.NewPlannerService(domain.DefaultTaxRules(), debts, metrics, logger)
	if err != nil {
		t.Fatalf("planner: %v", err)
	}
	receipts := service.NewReceiptService(store, store, blobs, 4, metrics, logger)
	reminders := service.NewReminderService(store, store, notify.NewLogNotifier(logger),
		service.ReminderServiceConfig{}, metrics, logger)
	verifier := service.NewTokenVerifier("test-secret", "")

	token, err := verifier.IssueAccessToken("user-1", "one@example.com", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	other, err := verifier.IssueAccessToken("user-2", "two@example.com", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	router := handler.NewRouter(handler.Services{
		Planner:   planner,
		Debts:     debts,
		Receipts:  receipts,
		Reminders: reminders,
		Verifier:  verifier,
		Checks:    []handler.HealthCheck{{Name: "store", Ping: store.Ping}},
	}, metrics, logger)

	return &testEnv{router: router, token: token, other: other, blobs: blobs, metrics: metrics}
}

// do sends a JSON request. token may be empty.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "healthy" {
		t.Errorf("expected healthy, got %v", body["status"])
	}
	if services, _ := body["services"].([]any); len(services) != 2 {
		t.Errorf("expected api and store entries, got %v", body["services"])
	}
}

func TestHealthz_DegradedDependency(t *testing.T) {
	router := handler.NewRouter(handler.Services{
		Checks: []handler.HealthCheck{{Name: "supabase", Ping: func(context.Context) error {
			return errors.New("connection refused")
		}}},
	}, observability.NewMetrics(), zap.NewNop())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if !strings.Contains(rec.Body.String(), `"status":"degraded"`) {
		t.Errorf("expected degraded status, got %s", rec.Body.String())
	}
}

func TestOperationalEndpoints(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/readyz", "/ping", "/metrics", "/v1/metrics/summary"} {
		rec := env.do(t, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestAuth_Required(t *testing.T) {
	env := newTestEnv(t)

	cases := map[string]string{
		"missing":   "",
		"malformed": "Token abc",
		"invalid":   "Bearer not-a-jwt",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/debts", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestDebtRoutes_UnavailableWithoutStore(t *testing.T) {
	planner, err := service.NewPlannerService(domain.DefaultTaxRules(), nil, observability.NewMetrics(), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	router := handler.NewRouter(handler.Services{Planner: planner}, observability.NewMetrics(), zap.NewNop())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/debts", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/tax/brackets", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("calculators should stay up, got %d", rec.Code)
	}
}
