package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL       string
	TelegramToken     string // empty disables the bot and reminders
	AdminTelegramID   int64  // coordinator allowed to run privileged bot commands
	HTTPAddr          string
	LogLevel          string
	Environment       string
	Timezone          string
	Location          *time.Location
	CronSpecSweep     string // marks elapsed windows as MISSED
	CronSpecReminders string // messages guardians about open windows
}

// RemindersEnabled reports whether a bot token was configured.
func (c *AppConfig) RemindersEnabled() bool {
	return c.TelegramToken != ""
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.TelegramToken = strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN"))

	if adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID"); adminIDStr != "" {
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}

	cfg.HTTPAddr = envOrDefault("HTTP_ADDR", ":8080")
	cfg.LogLevel = strings.ToLower(envOrDefault("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(envOrDefault("ENVIRONMENT", "development"))

	cfg.Timezone = envOrDefault("TIMEZONE", "Asia/Jakarta")
	cfg.Location, err = time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}

	cfg.CronSpecSweep = envOrDefault("CRON_SPEC_SWEEP", "5 0 * * *")           // Default: 00:05 daily
	cfg.CronSpecReminders = envOrDefault("CRON_SPEC_REMINDERS", "0 7 * * *") // Default: 07:00 daily

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
