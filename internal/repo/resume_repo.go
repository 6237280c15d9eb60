package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
)

// ResumeRepo — снапшоты для возобновления анкеты в PostgreSQL.
type ResumeRepo struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewResumeRepo создаёт новый ResumeRepo.
func NewResumeRepo(pool *pgxpool.Pool) *ResumeRepo {
	return &ResumeRepo{pool: pool, now: time.Now}
}

// Save сохраняет снапшот. Повторное сохранение с тем же кодом его перезаписывает.
func (r *ResumeRepo) Save(ctx context.Context, snap *domain.ResumeSnapshot) error {
	stateJSON, err := json.Marshal(snap.State)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	query := `
		INSERT INTO resume_snapshots (code, session_id, form_slug, state, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (code) DO UPDATE
		SET state = EXCLUDED.state, expires_at = EXCLUDED.expires_at
	`
	_, err = r.pool.Exec(ctx, query,
		snap.Code,
		snap.SessionID,
		snap.FormSlug,
		stateJSON,
		snap.CreatedAt,
		snap.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert resume snapshot: %w", err)
	}
	return nil
}

// Load возвращает снапшот по коду.
// Просроченный снапшот — ErrExpired (физически удаляет его janitor).
func (r *ResumeRepo) Load(ctx context.Context, code string) (*domain.ResumeSnapshot, error) {
	query := `
		SELECT code, session_id, form_slug, state, created_at, expires_at
		FROM resume_snapshots
		WHERE code = $1
	`
	var (
		snap      domain.ResumeSnapshot
		stateJSON []byte
	)
	err := r.pool.QueryRow(ctx, query, code).Scan(
		&snap.Code,
		&snap.SessionID,
		&snap.FormSlug,
		&stateJSON,
		&snap.CreatedAt,
		&snap.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get resume snapshot: %w", err)
	}
	if snap.IsExpired(r.now()) {
		return nil, ErrExpired
	}

	if err := json.Unmarshal(stateJSON, &snap.State); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	if snap.State == nil {
		return nil, fmt.Errorf("resume snapshot %s has no state", code)
	}
	snap.State.Normalize()

	return &snap, nil
}

// Delete удаляет снапшот (код после отправки анкеты). Отсутствующий код — не ошибка.
func (r *ResumeRepo) Delete(ctx context.Context, code string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM resume_snapshots WHERE code = $1`, code); err != nil {
		return fmt.Errorf("delete resume snapshot: %w", err)
	}
	return nil
}

// PurgeExpired удаляет снапшоты, просроченные на момент before.
func (r *ResumeRepo) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM resume_snapshots WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge resume snapshots: %w", err)
	}
	return result.RowsAffected(), nil
}
