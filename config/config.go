package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

type Config struct {
	TelegramToken   string // empty = reminders are only logged
	AdminTelegramID int64  // may run /setup before being registered; 0 = nobody
	DatabasePath    string
	Timezone        *time.Location
	CheckSchedule   string // cron spec for the due-reminder tick
	DigestTime      string // "HH:MM"
	RedisAddr       string // empty = in-memory projection cache
	CalDAV          CalDAVConfig
}

type CalDAVConfig struct {
	URL      string
	Username string
	Password string
	Calendar string // calendar collection path
}

func (c CalDAVConfig) Enabled() bool {
	return c.URL != "" && c.Username != "" && c.Password != ""
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/strata.db"
	}

	tzName := os.Getenv("TIMEZONE")
	if tzName == "" {
		tzName = "UTC"
	}
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	checkSchedule := os.Getenv("CHECK_SCHEDULE")
	if checkSchedule == "" {
		checkSchedule = "0 * * * *"
	}
	if _, err := cron.ParseStandard(checkSchedule); err != nil {
		return nil, fmt.Errorf("invalid CHECK_SCHEDULE: %w", err)
	}

	digestTime := os.Getenv("DIGEST_TIME")
	if digestTime == "" {
		digestTime = "08:00"
	}
	if _, err := time.Parse("15:04", digestTime); err != nil {
		return nil, fmt.Errorf("invalid DIGEST_TIME %q: expected HH:MM", digestTime)
	}

	var adminID int64
	if raw := os.Getenv("ADMIN_TELEGRAM_ID"); raw != "" {
		if adminID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID %q: %w", raw, err)
		}
	}

	cfg := &Config{
		TelegramToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		AdminTelegramID: adminID,
		DatabasePath:    dbPath,
		Timezone:        tz,
		CheckSchedule:   checkSchedule,
		DigestTime:      digestTime,
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		CalDAV: CalDAVConfig{
			URL:      os.Getenv("CALDAV_URL"),
			Username: os.Getenv("CALDAV_USERNAME"),
			Password: os.Getenv("CALDAV_PASSWORD"),
			Calendar: os.Getenv("CALDAV_CALENDAR"),
		},
	}

	if cfg.CalDAV.Enabled() && cfg.CalDAV.Calendar == "" {
		return nil, fmt.Errorf("CALDAV_CALENDAR is required when CALDAV_URL is set")
	}

	return cfg, nil
}

// DigestSpec returns the daily cron spec for DigestTime.
func (c *Config) DigestSpec() string {
	t, err := time.Parse("15:04", c.DigestTime)
	if err != nil {
		return "0 8 * * *"
	}
	return fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour())
}
