package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the receptionist service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	AllowAnyOrigin   bool

	SessionInactivityTimeout time.Duration
	SessionJanitorInterval   time.Duration

	DatabaseURL string

	GeminiAPIKey      string
	GeminiModel       string
	ClassifierTimeout time.Duration

	OfficeOpenHour         int
	OfficeCloseHour        int
	DefaultDurationMinutes int
	ReplyCharLimit         int

	// TaxQueryMode is "reject" (always deflect to a human) or "answer"
	// (general answer plus disclaimer when a backend is configured).
	TaxQueryMode string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:                 envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:         envOrDefault("APP_METRICS_NAMESPACE", "centralino"),
		AllowAnyOrigin:           false,
		DatabaseURL:              stringsTrimSpace("DATABASE_URL"),
		GeminiAPIKey:             stringsTrimSpace("GEMINI_API_KEY"),
		GeminiModel:              envOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		TaxQueryMode:             envOrDefault("APP_TAX_QUERY_MODE", "reject"),
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 5 * time.Minute,
		SessionJanitorInterval:   30 * time.Second,
		ClassifierTimeout:        4 * time.Second,
		OfficeOpenHour:           9,
		OfficeCloseHour:          18,
		DefaultDurationMinutes:   60,
		ReplyCharLimit:           290,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionJanitorInterval, err = durationFromEnv("APP_SESSION_JANITOR_INTERVAL", cfg.SessionJanitorInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.ClassifierTimeout, err = durationFromEnv("APP_CLASSIFIER_TIMEOUT", cfg.ClassifierTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	cfg.OfficeOpenHour, err = intFromEnv("OFFICE_OPEN_HOUR", cfg.OfficeOpenHour)
	if err != nil {
		return Config{}, err
	}
	cfg.OfficeCloseHour, err = intFromEnv("OFFICE_CLOSE_HOUR", cfg.OfficeCloseHour)
	if err != nil {
		return Config{}, err
	}
	cfg.DefaultDurationMinutes, err = intFromEnv("APP_DEFAULT_DURATION_MINUTES", cfg.DefaultDurationMinutes)
	if err != nil {
		return Config{}, err
	}
	cfg.ReplyCharLimit, err = intFromEnv("APP_REPLY_CHAR_LIMIT", cfg.ReplyCharLimit)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.OfficeOpenHour < 0 || cfg.OfficeOpenHour > 23 {
		return Config{}, fmt.Errorf("OFFICE_OPEN_HOUR must be in [0,23]")
	}
	if cfg.OfficeCloseHour <= cfg.OfficeOpenHour || cfg.OfficeCloseHour > 24 {
		return Config{}, fmt.Errorf("OFFICE_CLOSE_HOUR must be after OFFICE_OPEN_HOUR and at most 24")
	}
	switch cfg.DefaultDurationMinutes {
	case 30, 60, 90, 120:
	default:
		return Config{}, fmt.Errorf("APP_DEFAULT_DURATION_MINUTES must be one of 30, 60, 90, 120")
	}
	if cfg.ReplyCharLimit < 80 {
		return Config{}, fmt.Errorf("APP_REPLY_CHAR_LIMIT must be at least 80")
	}
	switch cfg.TaxQueryMode {
	case "reject", "answer":
	default:
		return Config{}, fmt.Errorf("APP_TAX_QUERY_MODE must be reject or answer")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return trimSpace(os.Getenv(key))
}

func trimSpace(v string) string {
	for len(v) > 0 && (v[0] == ' ' || v[0] == '\n' || v[0] == '\t' || v[0] == '\r') {
		v = v[1:]
	}
	for len(v) > 0 {
		c := v[len(v)-1]
		if c == ' ' || c == '\n' || c == '\t' || c == '\r' {
			v = v[:len(v)-1]
			continue
		}
		break
	}
	return v
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
