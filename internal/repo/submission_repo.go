package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
)

// SubmissionRepo — репозиторий отправленных анкет.
type SubmissionRepo struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepo создаёт новый SubmissionRepo.
func NewSubmissionRepo(pool *pgxpool.Pool) *SubmissionRepo {
	return &SubmissionRepo{pool: pool}
}

// Submit сохраняет отправленную анкету.
// Повторная отправка той же сессии — ErrAlreadyExists.
func (r *SubmissionRepo) Submit(ctx context.Context, sub *domain.Submission) error {
	stateJSON, err := json.Marshal(sub.State)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	blocksJSON, err := json.Marshal(sub.Blocks)
	if err != nil {
		return fmt.Errorf("marshal blocks: %w", err)
	}
	groupsJSON, err := json.Marshal(sub.RepeatingGroups)
	if err != nil {
		return fmt.Errorf("marshal repeating groups: %w", err)
	}

	query := `
		INSERT INTO form_submissions (id, session_id, form_slug, state, blocks, repeating_groups, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.pool.Exec(ctx, query,
		sub.ID,
		sub.SessionID,
		sub.FormSlug,
		stateJSON,
		blocksJSON,
		groupsJSON,
		sub.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("submission for session %s: %w", sub.SessionID, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// GetByID возвращает отправленную анкету по ID.
func (r *SubmissionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	query := `
		SELECT id, session_id, form_slug, state, blocks, repeating_groups, created_at
		FROM form_submissions
		WHERE id = $1
	`
	var (
		sub                                domain.Submission
		stateJSON, blocksJSON, groupsJSON []byte
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&sub.ID,
		&sub.SessionID,
		&sub.FormSlug,
		&stateJSON,
		&blocksJSON,
		&groupsJSON,
		&sub.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}

	if err := json.Unmarshal(stateJSON, &sub.State); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	if err := json.Unmarshal(blocksJSON, &sub.Blocks); err != nil {
		return nil, fmt.Errorf("unmarshal blocks: %w", err)
	}
	if err := json.Unmarshal(groupsJSON, &sub.RepeatingGroups); err != nil {
		return nil, fmt.Errorf("unmarshal repeating groups: %w", err)
	}
	if sub.State != nil {
		sub.State.Normalize()
	}

	return &sub, nil
}
