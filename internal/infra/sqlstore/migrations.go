package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SchemaVersion is the latest migration version.
const SchemaVersion = 3

// Migration is one schema step. Up receives the driver name for the few
// column types that differ between postgres and sqlite.
type Migration struct {
	Up          func(tx *sql.Tx, driver string) error
	Description string
	Version     int
}

// moneyType keeps exact decimals: NUMERIC on postgres, TEXT on sqlite
// (sqlite's NUMERIC affinity would round through float64).
func moneyType(driver string) string {
	if driver == Postgres {
		return "NUMERIC(14, 2)"
	}
	return "TEXT"
}

func rateType(driver string) string {
	if driver == Postgres {
		return "NUMERIC(7, 2)"
	}
	return "TEXT"
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, q := range queries {
		if _, err := tx.Exec(q); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", q, err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Debts and payments",
		Up: func(tx *sql.Tx, driver string) error {
			money := moneyType(driver)
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS debts (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					name TEXT NOT NULL,
					type TEXT NOT NULL,
					total_amount ` + money + ` NOT NULL,
					remaining_balance ` + money + ` NOT NULL,
					interest_rate ` + rateType(driver) + `,
					minimum_payment ` + money + `,
					due_date TEXT,
					status TEXT NOT NULL,
					priority TEXT NOT NULL,
					lender_name TEXT NOT NULL DEFAULT '',
					description TEXT NOT NULL DEFAULT '',
					reminder_enabled BOOLEAN NOT NULL DEFAULT FALSE,
					version BIGINT NOT NULL DEFAULT 1,
					created_at TEXT NOT NULL,
					updated_at TEXT NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_debts_user ON debts(user_id, created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_debts_due ON debts(status, due_date)`,

				`CREATE TABLE IF NOT EXISTS debt_payments (
					id TEXT PRIMARY KEY,
					debt_id TEXT NOT NULL REFERENCES debts(id) ON DELETE CASCADE,
					amount ` + money + ` NOT NULL,
					payment_date TEXT NOT NULL,
					note TEXT NOT NULL DEFAULT '',
					created_at TEXT NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_debt_payments_debt ON debt_payments(debt_id, payment_date)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Receipts",
		Up: func(tx *sql.Tx, _ string) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS debt_receipts (
					id TEXT PRIMARY KEY,
					debt_id TEXT NOT NULL REFERENCES debts(id) ON DELETE CASCADE,
					file_name TEXT NOT NULL,
					file_url TEXT NOT NULL,
					file_size BIGINT NOT NULL,
					mime_type TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					uploaded_at TEXT NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_debt_receipts_debt ON debt_receipts(debt_id)`,
			})
		},
	},
	{
		Version:     3,
		Description: "Reminder contacts",
		Up: func(tx *sql.Tx, _ string) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS user_contacts (
					user_id TEXT PRIMARY KEY,
					email TEXT NOT NULL,
					name TEXT NOT NULL DEFAULT '',
					updated_at TEXT NOT NULL
				)`,
			})
		},
	},
}

// Migrate applies every migration newer than the recorded version.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	current, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		if err := m.Up(tx, s.driver); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", m.Version, err)
		}
		if _, err := tx.Exec(s.rebind(`INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)`),
			m.Version, m.Description, timestamp(time.Now())); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}

		s.logger.Info("applied migration",
			zap.Int("version", m.Version),
			zap.String("description", m.Description),
		)
	}

	final, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}
	if final != SchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", SchemaVersion, final)
	}
	return nil
}

func (s *Store) schemaVersion(ctx context.Context) (int, error) {
	var v sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return int(v.Int64), nil
}
