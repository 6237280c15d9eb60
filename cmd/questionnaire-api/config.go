package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/janitor"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/session"
)

// Бэкенды хранения кодов возобновления.
const (
	resumeBackendPostgres = "postgres"
	resumeBackendRedis    = "redis"
)

// config — настройки questionnaire-api из окружения.
type config struct {
	Addr          string
	FormSlug      string
	FormFile      string
	WrapBack      bool
	ResumeBackend string
	ResumeTTL     time.Duration
	PurgeCron     string
	IdleAfter     time.Duration
	EventsEnabled bool
	RabbitURL     string
}

// loadConfig читает окружение. Некорректные значения — ошибка, пустые — default.
func loadConfig() (config, error) {
	cfg := config{
		Addr:          ":8080",
		FormSlug:      session.DefaultFormSlug,
		FormFile:      strings.TrimSpace(os.Getenv("FORM_FILE")),
		ResumeBackend: resumeBackendPostgres,
		ResumeTTL:     session.DefaultResumeTTL,
		PurgeCron:     janitor.DefaultSpec,
		IdleAfter:     janitor.DefaultIdleAfter,
		EventsEnabled: true,
		RabbitURL:     os.Getenv("RABBITMQ_URL"),
	}

	if v := os.Getenv("API_PORT"); v != "" {
		cfg.Addr = ":" + v
	}
	if v := strings.TrimSpace(os.Getenv("FORM_SLUG")); v != "" {
		cfg.FormSlug = v
	}
	if v := strings.TrimSpace(os.Getenv("RESUME_PURGE_CRON")); v != "" {
		cfg.PurgeCron = v
	}

	var err error
	if cfg.WrapBack, err = envBool("BACK_WRAP", false); err != nil {
		return cfg, err
	}
	if cfg.EventsEnabled, err = envBool("EVENTS_ENABLED", true); err != nil {
		return cfg, err
	}

	switch v := strings.ToLower(strings.TrimSpace(os.Getenv("RESUME_BACKEND"))); v {
	case "", resumeBackendPostgres:
	case resumeBackendRedis:
		cfg.ResumeBackend = resumeBackendRedis
	default:
		return cfg, fmt.Errorf("RESUME_BACKEND: unknown backend %q (postgres|redis)", v)
	}

	if cfg.ResumeTTL, err = envHours("RESUME_TTL_HOURS", cfg.ResumeTTL); err != nil {
		return cfg, err
	}
	if cfg.IdleAfter, err = envHours("SESSION_IDLE_HOURS", cfg.IdleAfter); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func envBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func envHours(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def, fmt.Errorf("%s: expected positive number of hours, got %q", key, v)
	}
	return time.Duration(n) * time.Hour, nil
}
