package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/boddenberg/finplan-bfa-go/internal/calc"
	"github.com/boddenberg/finplan-bfa-go/internal/domain"
	"github.com/boddenberg/finplan-bfa-go/internal/export"
	"github.com/boddenberg/finplan-bfa-go/internal/infra/notify"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) debtsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "debts",
		Short: "Summarize or export a debt portfolio file",
		Long: `Work with a debt portfolio kept in TOML:

  [[debt]]
  name = "Home loan"
  type = "HOME_LOAN"
  total = "25,00,000"
  interest_rate = 8.5
  minimum_payment = 22000
  due_date = 2026-11-05

    [[debt.payment]]
    amount = 22000
    date = 2026-10-05

Payments reduce the remaining balance unless "remaining" is given.`,
	}
	cmd.AddCommand(a.debtsSummaryCmd())
	cmd.AddCommand(a.debtsExportCmd())
	return cmd
}

func (a *app) debtsSummaryCmd() *cobra.Command {
	var file, nowFlag string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show portfolio analytics and upcoming due dates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			now, err := parseNow(nowFlag)
			if err != nil {
				return err
			}
			debts, payments, err := loadDebts(file, now)
			if err != nil {
				return err
			}
			summary := calc.Summarize(debts, payments, now)
			a.logger.Debug("debts summarized", zap.Int("debts", summary.TotalDebts))

			return a.render(cmd.OutOrStdout(), summary, func(w io.Writer) error {
				return printSummary(w, summary)
			})
		},
	}

	cmd.Flags().StringVar(&file, "file", "debts.toml", "debt portfolio file (TOML)")
	cmd.Flags().StringVar(&nowFlag, "now", "", "evaluate as of this date (YYYY-MM-DD, default today)")
	return cmd
}

func (a *app) debtsExportCmd() *cobra.Command {
	var file, format, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the portfolio as CSV, JSON or an Excel workbook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			now := time.Now().UTC()
			debts, payments, err := loadDebts(file, now)
			if err != nil {
				return err
			}
			rows := calc.BuildExportRows(debts, payments, nil)

			if out == "" || out == "-" {
				return export.Write(cmd.OutOrStdout(), f, rows)
			}
			w, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", out, err)
			}
			if err := export.Write(w, f, rows); err != nil {
				_ = w.Close()
				return err
			}
			if err := w.Close(); err != nil {
				return err
			}
			a.logger.Info("debts exported", zap.String("path", out), zap.String("format", string(f)), zap.Int("rows", len(rows)))
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d debts to %s\n", len(rows), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "debts.toml", "debt portfolio file (TOML)")
	cmd.Flags().StringVar(&format, "format", "csv", "export format (csv, json, xlsx-xml)")
	cmd.Flags().StringVar(&out, "out", "", "output path (default stdout)")
	return cmd
}

func parseNow(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	d, err := domain.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--now: %w", err)
	}
	return d.Time, nil
}

func printSummary(w io.Writer, s domain.DebtAnalytics) error {
	t := newTable(w)
	t.row("As of", s.AsOf)
	t.row("Debts", fmt.Sprintf("%d (%d active, %d paid off, %d overdue, %d paused)",
		s.TotalDebts, s.ActiveDebts, s.PaidOffDebts, s.OverdueDebts, s.PausedDebts))
	t.money("Total borrowed", s.TotalDebtAmount)
	t.money("Outstanding", s.TotalOutstanding)
	t.money("Paid", s.TotalPaid)
	t.pct("Paid off", s.PaidOffPct)
	t.money("Monthly payments", s.MonthlyPayments)
	t.pct("Average interest", s.AverageInterestRate)
	if err := t.flush(); err != nil {
		return err
	}

	sections := []struct {
		title string
		items []domain.DueItem
	}{
		{"Upcoming", s.Upcoming},
		{"Reminders", s.Reminders},
		{"Past due", s.PastDue},
	}
	for _, sec := range sections {
		if len(sec.items) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s\n", sec.title)
		t := newTable(w)
		for _, item := range sec.items {
			t.row(fmt.Sprintf("  %s\t%s\t%s", item.Name, item.DueDate, notify.DueIn(item.DaysUntilDue)), "₹"+item.RemainingBalance.StringFixed(2))
		}
		if err := t.flush(); err != nil {
			return err
		}
	}
	return nil
}
