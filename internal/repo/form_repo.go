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

// FormRepo — репозиторий версий определений анкет.
type FormRepo struct {
	pool *pgxpool.Pool
}

// NewFormRepo создаёт новый FormRepo.
func NewFormRepo(pool *pgxpool.Pool) *FormRepo {
	return &FormRepo{pool: pool}
}

// Publish сохраняет новую версию формы.
// Номер версии автоматически инкрементируется в пределах slug.
func (r *FormRepo) Publish(ctx context.Context, def *domain.FormDefinition) (*domain.FormDefinition, error) {
	blocksJSON, err := json.Marshal(def.Blocks)
	if err != nil {
		return nil, fmt.Errorf("marshal blocks: %w", err)
	}

	// Получаем следующий номер версии
	var nextVersion int
	err = r.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(version), 0) + 1
		FROM form_definitions
		WHERE slug = $1
	`, def.Slug).Scan(&nextVersion)
	if err != nil {
		return nil, fmt.Errorf("get next version: %w", err)
	}

	out := *def
	out.ID = uuid.New()
	out.Version = nextVersion

	err = r.pool.QueryRow(ctx, `
		INSERT INTO form_definitions (id, slug, version, title, blocks, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`, out.ID, out.Slug, out.Version, out.Title, blocksJSON).Scan(&out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert form definition: %w", err)
	}

	return &out, nil
}

// GetLatest возвращает последнюю версию формы.
func (r *FormRepo) GetLatest(ctx context.Context, slug string) (*domain.FormDefinition, error) {
	query := `
		SELECT id, slug, version, title, blocks, created_at
		FROM form_definitions
		WHERE slug = $1
		ORDER BY version DESC
		LIMIT 1
	`
	def, err := scanDefinition(r.pool.QueryRow(ctx, query, slug))
	if err != nil {
		return nil, fmt.Errorf("get latest form %s: %w", slug, err)
	}
	return def, nil
}

// GetVersion возвращает конкретную версию формы.
func (r *FormRepo) GetVersion(ctx context.Context, slug string, version int) (*domain.FormDefinition, error) {
	query := `
		SELECT id, slug, version, title, blocks, created_at
		FROM form_definitions
		WHERE slug = $1 AND version = $2
	`
	def, err := scanDefinition(r.pool.QueryRow(ctx, query, slug, version))
	if err != nil {
		return nil, fmt.Errorf("get form %s v%d: %w", slug, version, err)
	}
	return def, nil
}

func scanDefinition(row pgx.Row) (*domain.FormDefinition, error) {
	var (
		def        domain.FormDefinition
		blocksJSON []byte
	)
	err := row.Scan(
		&def.ID,
		&def.Slug,
		&def.Version,
		&def.Title,
		&blocksJSON,
		&def.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(blocksJSON, &def.Blocks); err != nil {
		return nil, fmt.Errorf("unmarshal blocks: %w", err)
	}
	return &def, nil
}
