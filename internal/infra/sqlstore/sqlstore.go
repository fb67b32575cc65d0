// Package sqlstore implements the persistence ports on database/sql, backed
// by PostgreSQL (lib/pq) or an embedded SQLite file (modernc.org/sqlite).
package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/boddenberg/finplan-bfa-go/internal/domain"

	_ "github.com/lib/pq"  // postgres driver
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // sqlite driver
)

var tracer = otel.Tracer("sqlstore")

// Driver names accepted by Open.
const (
	Postgres = "postgres"
	SQLite   = "sqlite"
)

// Store is a SQL-backed port.Store.
type Store struct {
	db     *sql.DB
	driver string
	logger *zap.Logger
}

// Open connects to the database and applies pending migrations.
func Open(ctx context.Context, driverName, dsn string, logger *zap.Logger) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	switch driverName {
	case Postgres:
		db, err = sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetConnMaxIdleTime(5 * time.Minute)
	case SQLite:
		db, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// One connection serialises writers and keeps :memory: databases alive.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driverName)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driverName, err)
	}

	s := &Store{db: db, driver: driverName, logger: logger}
	if driverName == SQLite {
		for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("%s: %w", pragma, err)
			}
		}
	}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ============================================================
// Column codecs
// ============================================================

// timestampLayout is fixed-width so TEXT columns sort chronologically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

func timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// timeCol scans TIMESTAMPTZ values and their TEXT rendering.
type timeCol struct {
	time.Time
}

var timeLayouts = []string{
	timestampLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
}

func (c *timeCol) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		c.Time = time.Time{}
		return nil
	case time.Time:
		c.Time = v.UTC()
		return nil
	case []byte:
		return c.parse(string(v))
	case string:
		return c.parse(v)
	}
	return fmt.Errorf("cannot scan %T into timestamp", src)
}

func (c *timeCol) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			c.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

// dateCol stores a domain.Date as YYYY-MM-DD, NULL when unset.
type dateCol struct {
	domain.Date
}

func (c dateCol) Value() (driver.Value, error) {
	if c.IsZero() {
		return nil, nil
	}
	return c.Date.String(), nil
}

func (c *dateCol) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		c.Date = domain.Date{}
		return nil
	case time.Time:
		c.Date = domain.NewDate(v)
		return nil
	case []byte:
		return c.parse(string(v))
	case string:
		return c.parse(v)
	}
	return fmt.Errorf("cannot scan %T into date", src)
}

func (c *dateCol) parse(s string) error {
	if len(s) >= len(domain.DateLayout) {
		s = s[:len(domain.DateLayout)]
	}
	d, err := domain.ParseDate(s)
	if err != nil {
		return err
	}
	c.Date = d
	return nil
}

func notFound(err error, resource, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.ErrNotFound{Resource: resource, ID: id}
	}
	return err
}
