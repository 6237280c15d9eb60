package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/session"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/telemetry"
)

// SubmissionReader — чтение отправленных анкет (repo.SubmissionRepo).
type SubmissionReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Submission, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	sessions    *session.Service
	submissions SubmissionReader
	sanitizer   *bluemonday.Policy
	metrics     *telemetry.Metrics
	logger      *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Sessions *session.Service

	// Submissions — nil отключает GET /api/v1/submissions/{id}.
	Submissions SubmissionReader

	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sessions:    cfg.Sessions,
		submissions: cfg.Submissions,
		sanitizer:   bluemonday.UGCPolicy(),
		metrics:     cfg.Metrics,
		logger:      logger,
	}
}
