package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "STORE_DRIVER", "REMINDER_SCHEDULE", "REJECT_OVERPAYMENT", "CACHE_TTL"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.StoreDriver != DriverSQLite {
		t.Errorf("expected sqlite driver, got %s", cfg.StoreDriver)
	}
	if cfg.ReminderSchedule != "0 8 * * *" {
		t.Errorf("unexpected schedule %q", cfg.ReminderSchedule)
	}
	if cfg.RejectOverpayment {
		t.Error("overpayment must be accepted by default")
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("unexpected cache ttl %v", cfg.CacheTTL)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("REJECT_OVERPAYMENT", "true")
	t.Setenv("AUTO_MARK_OVERDUE", "not-a-bool")
	t.Setenv("INITIAL_BACKOFF", "250ms")

	cfg := Load()

	if cfg.Port != 9090 {
		t.Errorf("expected 9090, got %d", cfg.Port)
	}
	if cfg.StoreDriver != DriverPostgres {
		t.Errorf("expected postgres, got %s", cfg.StoreDriver)
	}
	if !cfg.RejectOverpayment {
		t.Error("expected overpayment rejection")
	}
	if cfg.AutoMarkOverdue {
		t.Error("invalid bool must fall back to the default")
	}
	if cfg.InitialBackoff != 250*time.Millisecond {
		t.Errorf("unexpected backoff %v", cfg.InitialBackoff)
	}
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nFINPLAN_TEST_A=\"from-file\"\nFINPLAN_TEST_B=file\nbroken-line\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FINPLAN_TEST_B", "from-env")
	t.Setenv("FINPLAN_TEST_A", "")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := os.Getenv("FINPLAN_TEST_A"); got != "from-file" {
		t.Errorf("expected from-file, got %q", got)
	}
	if got := os.Getenv("FINPLAN_TEST_B"); got != "from-env" {
		t.Errorf("expected env to win, got %q", got)
	}
}

func TestParseDotEnvLine(t *testing.T) {
	cases := []struct {
		line, key, value string
		ok               bool
	}{
		{"SMTP_HOST=mail.example.com", "SMTP_HOST", "mail.example.com", true},
		{"export STORE_DRIVER=sqlite", "STORE_DRIVER", "sqlite", true},
		{`SMTP_FROM="Finplan <no-reply@example.com>"`, "SMTP_FROM", "Finplan <no-reply@example.com>", true},
		{"PORT=8080 # local", "PORT", "8080", true},
		{"JWT_SECRET='a # b'", "JWT_SECRET", "a # b", true},
		{"# comment", "", "", false},
		{"broken-line", "", "", false},
		{"BAD KEY=1", "", "", false},
	}
	for _, tc := range cases {
		key, value, ok := parseDotEnvLine(tc.line)
		if ok != tc.ok || key != tc.key || value != tc.value {
			t.Errorf("parseDotEnvLine(%q) = %q, %q, %v", tc.line, key, value, ok)
		}
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("missing file should be ignored, got %v", err)
	}
}

func TestValidate_DevSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("LOG_LEVEL", "info")
	if err := Load().Validate(); err == nil {
		t.Error("expected the development secret to be rejected at info level")
	}

	t.Setenv("LOG_LEVEL", "debug")
	if err := Load().Validate(); err != nil {
		t.Errorf("debug level should allow the development secret, got %v", err)
	}

	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("JWT_SECRET", "s3cret")
	if err := Load().Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
