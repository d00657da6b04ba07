package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/posyandu?sslmode=disable")
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("ADMIN_TELEGRAM_ID", "")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("TIMEZONE", "")
	t.Setenv("CRON_SPEC_SWEEP", "")
	t.Setenv("CRON_SPEC_REMINDERS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.LogLevel != "info" || cfg.Environment != "development" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Location == nil || cfg.Location.String() != "Asia/Jakarta" {
		t.Errorf("expected Asia/Jakarta location, got %v", cfg.Location)
	}
	if cfg.CronSpecSweep != "5 0 * * *" || cfg.CronSpecReminders != "0 7 * * *" {
		t.Errorf("unexpected cron defaults: %q %q", cfg.CronSpecSweep, cfg.CronSpecReminders)
	}
	if cfg.RemindersEnabled() {
		t.Error("reminders must be disabled without a token")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://db/posyandu")
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("ADMIN_TELEGRAM_ID", "424242")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AdminTelegramID != 424242 {
		t.Errorf("expected admin id 424242, got %d", cfg.AdminTelegramID)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected lowercased log level, got %q", cfg.LogLevel)
	}
	if !cfg.RemindersEnabled() {
		t.Error("reminders must be enabled with a token")
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing database url", map[string]string{"DATABASE_URL": ""}},
		{"bad admin id", map[string]string{"DATABASE_URL": "postgres://db", "ADMIN_TELEGRAM_ID": "abc"}},
		{"bad timezone", map[string]string{"DATABASE_URL": "postgres://db", "TIMEZONE": "Mars/Olympus"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("ADMIN_TELEGRAM_ID", "")
			t.Setenv("TIMEZONE", "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
