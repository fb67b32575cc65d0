package handler_test

import (
	"net/http"
	"strings"
	"testing"
)

func createDebt(t *testing.T, env *testEnv, body map[string]any) string {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/v1/debts", env.token, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	id, _ := decodeBody(t, rec)["id"].(string)
	if id == "" {
		t.Fatal("created debt has no id")
	}
	return id
}

func TestDebtLifecycle(t *testing.T) {
	env := newTestEnv(t)

	id := createDebt(t, env, map[string]any{
		"name":        "Car loan",
		"type":        "car_loan",
		"totalAmount": "5,00,000",
		"lenderName":  "HDFC",
	})

	rec := env.do(t, http.MethodGet, "/v1/debts/"+id, env.token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}
	debt := decodeBody(t, rec)
	if debt["remainingBalance"] != "500000" || debt["type"] != "CAR_LOAN" || debt["status"] != "ACTIVE" {
		t.Errorf("unexpected debt %v", debt)
	}

	// Another user cannot see it.
	rec = env.do(t, http.MethodGet, "/v1/debts/"+id, env.other, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("other user: expected 404, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPut, "/v1/debts/"+id, env.token, map[string]any{"name": "Car loan (HDFC)", "priority": "high"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["name"] != "Car loan (HDFC)" || body["priority"] != "HIGH" {
		t.Errorf("unexpected update result %v", body)
	}

	rec = env.do(t, http.MethodGet, "/v1/debts", env.token, nil)
	if total, _ := decodeBody(t, rec)["total"].(float64); total != 1 {
		t.Errorf("expected 1 debt, got %v", total)
	}

	rec = env.do(t, http.MethodDelete, "/v1/debts/"+id, env.token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/v1/debts/"+id, env.token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("after delete: expected 404, got %d", rec.Code)
	}
}

func TestCreateDebt_Validation(t *testing.T) {
	env := newTestEnv(t)

	cases := map[string]map[string]any{
		"no name":      {"totalAmount": 1000},
		"zero amount":  {"name": "Card", "totalAmount": 0},
		"unknown type": {"name": "Card", "type": "mortgage-ish", "totalAmount": 1000},
		"bad date":     {"name": "Card", "totalAmount": 1000, "dueDate": "31/12/2024"},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/v1/debts", env.token, body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestPayments(t *testing.T) {
	env := newTestEnv(t)
	id := createDebt(t, env, map[string]any{"name": "Card", "type": "credit_card", "totalAmount": 10000})

	rec := env.do(t, http.MethodPost, "/v1/debts/"+id+"/payments", env.token, map[string]any{"amount": 0})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("zero payment: expected 400, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/v1/debts/"+id+"/payments", env.token, map[string]any{
		"amount": "4000", "paymentDate": "2024-06-01", "note": "June",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("payment: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	outcome := decodeBody(t, rec)
	debt, _ := outcome["debt"].(map[string]any)
	if debt["remainingBalance"] != "6000" || outcome["progressPct"] != "40" {
		t.Errorf("unexpected outcome %v", outcome)
	}

	// Overpaying clamps at zero and reports the excess.
	rec = env.do(t, http.MethodPost, "/v1/debts/"+id+"/payments", env.token, map[string]any{"amount": 7500})
	if rec.Code != http.StatusCreated {
		t.Fatalf("overpayment: expected 201, got %d", rec.Code)
	}
	outcome = decodeBody(t, rec)
	debt, _ = outcome["debt"].(map[string]any)
	if debt["status"] != "PAID_OFF" || debt["remainingBalance"] != "0" || outcome["excess"] != "1500" {
		t.Errorf("unexpected overpayment outcome %v", outcome)
	}

	rec = env.do(t, http.MethodGet, "/v1/debts/"+id+"/payments", env.token, nil)
	if total, _ := decodeBody(t, rec)["total"].(float64); total != 2 {
		t.Errorf("expected 2 payments, got %v", total)
	}

	rec = env.do(t, http.MethodPost, "/v1/debts/missing/payments", env.token, map[string]any{"amount": 1})
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing debt: expected 404, got %d", rec.Code)
	}
}

func TestAnalyticsAndReminders(t *testing.T) {
	env := newTestEnv(t)
	createDebt(t, env, map[string]any{"name": "Card", "totalAmount": 20000, "minimumPayment": 1000})
	createDebt(t, env, map[string]any{"name": "Loan", "totalAmount": 30000})

	rec := env.do(t, http.MethodGet, "/v1/debts/analytics", env.token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("analytics: expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["totalOutstanding"] != "50000" || body["totalDebts"] != float64(2) {
		t.Errorf("unexpected analytics %v", body)
	}

	rec = env.do(t, http.MethodGet, "/v1/debts/reminders", env.token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reminders: expected 200, got %d", rec.Code)
	}
}

func TestExport(t *testing.T) {
	env := newTestEnv(t)
	createDebt(t, env, map[string]any{"name": "Card", "type": "credit_card", "totalAmount": 20000})

	rec := env.do(t, http.MethodGet, "/v1/debts/export", env.token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("csv: expected 200, got %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv") {
		t.Errorf("unexpected content type %s", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "attachment") {
		t.Errorf("expected attachment, got %q", rec.Header().Get("Content-Disposition"))
	}
	if !strings.HasPrefix(rec.Body.String(), "Name,Type") || !strings.Contains(rec.Body.String(), "Card,CREDIT_CARD") {
		t.Errorf("unexpected csv:\n%s", rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/v1/debts/export?format=xlsx-xml", env.token, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "<Workbook") {
		t.Errorf("xlsx-xml: unexpected response %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/v1/debts/export?format=pdf", env.token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown format: expected 400, got %d", rec.Code)
	}
}

func TestContact(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/profile/contact", env.token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 before set, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPut, "/v1/profile/contact", env.token, map[string]any{"email": "not-an-email"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad email, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPut, "/v1/profile/contact", env.token, map[string]any{"email": "Asha <asha@example.com>"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["email"] != "asha@example.com" || body["name"] != "Asha" {
		t.Errorf("unexpected contact %v", body)
	}
}
