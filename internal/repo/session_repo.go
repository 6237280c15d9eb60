package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
)

// SessionRepo — репозиторий сессий анкеты.
type SessionRepo struct {
	pool *pgxpool.Pool
}

// NewSessionRepo создаёт новый SessionRepo.
func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

// Create создаёт запись сессии. Запись с тем же ID — ErrAlreadyExists;
// возобновлённая сессия обновляется через UpdateStatus.
func (r *SessionRepo) Create(ctx context.Context, s *domain.Session) error {
	query := `
		INSERT INTO form_sessions (id, form_slug, form_version, status, resume_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		s.ID,
		s.FormSlug,
		s.FormVersion,
		s.Status,
		nullString(s.ResumeCode),
		s.CreatedAt,
		s.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("session %s: %w", s.ID, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetByID возвращает сессию по ID.
func (r *SessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	query := `
		SELECT id, form_slug, form_version, status, resume_code, created_at, updated_at
		FROM form_sessions
		WHERE id = $1
	`
	var (
		s          domain.Session
		resumeCode *string
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.FormSlug,
		&s.FormVersion,
		&s.Status,
		&resumeCode,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if resumeCode != nil {
		s.ResumeCode = *resumeCode
	}
	return &s, nil
}

// UpdateStatus меняет статус сессии.
func (r *SessionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SessionStatus) error {
	query := `
		UPDATE form_sessions
		SET status = $2, updated_at = $3
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, id, status, time.Now())
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetResumeCode запоминает последний выданный код возобновления.
func (r *SessionRepo) SetResumeCode(ctx context.Context, id uuid.UUID, code string) error {
	query := `
		UPDATE form_sessions
		SET resume_code = $2, updated_at = $3
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, id, nullString(code), time.Now())
	if err != nil {
		return fmt.Errorf("set resume code: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
