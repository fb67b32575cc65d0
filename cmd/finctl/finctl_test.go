package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/boddenberg/finplan-bfa-go/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func decodeJSON(t *testing.T, s string, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(s), v), "output: %s", s)
}

func TestTax(t *testing.T) {
	out, err := run(t, "tax", "--income", "10,00,000", "-o", "json")
	require.NoError(t, err)

	var res map[string]any
	decodeJSON(t, out, &res)
	assert.Equal(t, "106600", res["totalTax"])
	assert.Equal(t, "under60", res["ageCategory"])
	assert.Contains(t, res, "effectiveRatePct")
}

func TestTax_Text(t *testing.T) {
	out, err := run(t, "tax", "--income", "1000000")
	require.NoError(t, err)
	assert.Contains(t, out, "Total tax")
	assert.Contains(t, out, "₹106600.00")
}

func TestTax_RequiresIncome(t *testing.T) {
	_, err := run(t, "tax")
	assert.ErrorContains(t, err, "--income")
}

func TestRoot_InvalidOutput(t *testing.T) {
	_, err := run(t, "tax", "--income", "1000", "-o", "yaml")
	assert.ErrorContains(t, err, "invalid output format")
}

const plan = `
timeframe = "monthly"

[[income]]
key = "salary"
amount = "1,00,000"

[[expense]]
key = "rent"
category = "needs"
amount = 50000

[[expense]]
key = "dining"
category = "wants"
amount = 30000

[[expense]]
key = "sip"
category = "savings"
amount = 20000.0
`

func TestBudget_Plan(t *testing.T) {
	path := writeFile(t, "plan.toml", plan)

	out, err := run(t, "budget", "--plan", path, "-o", "json")
	require.NoError(t, err)

	var report struct {
		Result struct {
			Timeframe     string `json:"timeframe"`
			TotalIncome   string `json:"totalIncome"`
			TotalExpenses string `json:"totalExpenses"`
		} `json:"result"`
	}
	decodeJSON(t, out, &report)
	assert.Equal(t, "monthly", report.Result.Timeframe)
	assert.Equal(t, "100000", report.Result.TotalIncome)
	assert.Equal(t, "100000", report.Result.TotalExpenses)
}

func TestBudget_TimeframeFlagOverridesPlan(t *testing.T) {
	path := writeFile(t, "plan.toml", plan)

	out, err := run(t, "budget", "--plan", path, "--timeframe", "annual", "-o", "json")
	require.NoError(t, err)

	var report struct {
		Result struct {
			Timeframe string `json:"timeframe"`
		} `json:"result"`
	}
	decodeJSON(t, out, &report)
	assert.Equal(t, "annual", report.Result.Timeframe)
}

func TestBudget_UnknownKey(t *testing.T) {
	path := writeFile(t, "plan.toml", "timeframe = \"monthly\"\nsalary = 5\n")

	_, err := run(t, "budget", "--plan", path)
	assert.ErrorContains(t, err, "unknown keys")
}

func TestBudget_RequiresPlan(t *testing.T) {
	_, err := run(t, "budget")
	assert.Error(t, err)
}

func TestBudget_AutoFill(t *testing.T) {
	out, err := run(t, "budget", "--autofill", "1,00,000", "-o", "json")
	require.NoError(t, err)

	var lines []struct {
		Key    string `json:"key"`
		Amount string `json:"amount"`
	}
	decodeJSON(t, out, &lines)
	require.Len(t, lines, len(domain.DefaultBudgetLines()))
	assert.Equal(t, "housing", lines[0].Key)
	assert.Equal(t, "25000", lines[0].Amount)
}

const portfolio = `
[[debt]]
id = "card"
name = "Card"
type = "credit_card"
total = 10000
minimum_payment = 500
due_date = 2026-10-05
reminder = true

  [[debt.payment]]
  amount = 4000
  date = 2026-09-20

[[debt]]
name = "Old loan"
type = "PERSONAL_LOAN"
total = "1,00,000"
remaining = 0
`

func TestDebtsSummary(t *testing.T) {
	path := writeFile(t, "debts.toml", portfolio)

	out, err := run(t, "debts", "summary", "--file", path, "--now", "2026-10-01", "-o", "json")
	require.NoError(t, err)

	var summary struct {
		TotalDebts       int    `json:"totalDebts"`
		ActiveDebts      int    `json:"activeDebts"`
		PaidOffDebts     int    `json:"paidOffDebts"`
		TotalOutstanding string `json:"totalOutstanding"`
		TotalPaid        string `json:"totalPaid"`
		Upcoming         []struct {
			DebtID       string `json:"debtId"`
			DaysUntilDue int    `json:"daysUntilDue"`
		} `json:"upcoming"`
		Reminders []struct {
			DebtID string `json:"debtId"`
		} `json:"reminders"`
	}
	decodeJSON(t, out, &summary)

	assert.Equal(t, 2, summary.TotalDebts)
	assert.Equal(t, 1, summary.ActiveDebts)
	assert.Equal(t, 1, summary.PaidOffDebts)
	assert.Equal(t, "6000", summary.TotalOutstanding)
	assert.Equal(t, "4000", summary.TotalPaid)
	require.Len(t, summary.Upcoming, 1)
	assert.Equal(t, "card", summary.Upcoming[0].DebtID)
	assert.Equal(t, 4, summary.Upcoming[0].DaysUntilDue)
	require.Len(t, summary.Reminders, 1)
}

func TestDebtsSummary_Text(t *testing.T) {
	path := writeFile(t, "debts.toml", portfolio)

	out, err := run(t, "debts", "summary", "--file", path, "--now", "2026-10-01")
	require.NoError(t, err)
	assert.Contains(t, out, "Outstanding")
	assert.Contains(t, out, "₹6000.00")
	assert.Contains(t, out, "in 4 days")
}

func TestDebtsSummary_InvalidPayment(t *testing.T) {
	path := writeFile(t, "debts.toml", `
[[debt]]
name = "Card"
total = 1000

  [[debt.payment]]
  amount = 0
`)
	_, err := run(t, "debts", "summary", "--file", path)
	var invalid *domain.ErrInvalidPayment
	assert.ErrorAs(t, err, &invalid)
}

func TestDebtsSummary_PaidOffWithBalance(t *testing.T) {
	path := writeFile(t, "debts.toml", `
[[debt]]
name = "Card"
total = 1000
status = "paid_off"
`)
	_, err := run(t, "debts", "summary", "--file", path)
	var verr *domain.ErrValidation
	assert.ErrorAs(t, err, &verr)
}

func TestDebtsExport(t *testing.T) {
	path := writeFile(t, "debts.toml", portfolio)
	dest := filepath.Join(t.TempDir(), "debts.csv")

	_, err := run(t, "debts", "export", "--file", path, "--out", dest)
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "Card")
	assert.Contains(t, lines[2], "Old loan")
}

func TestDebtsExport_Stdout(t *testing.T) {
	path := writeFile(t, "debts.toml", portfolio)

	out, err := run(t, "debts", "export", "--file", path, "--format", "json")
	require.NoError(t, err)

	var rows []map[string]any
	decodeJSON(t, out, &rows)
	assert.Len(t, rows, 2)
}

func TestDebtsExport_UnknownFormat(t *testing.T) {
	path := writeFile(t, "debts.toml", portfolio)

	_, err := run(t, "debts", "export", "--file", path, "--format", "pdf")
	var verr *domain.ErrValidation
	assert.ErrorAs(t, err, &verr)
}
