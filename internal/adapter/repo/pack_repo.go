package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"photoai/internal/domain"
)

// PackRepositoryPG implements domain.PackRepository backed by PostgreSQL.
// Packs are seed data maintained out of band; this repository is read-only.
type PackRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewPackRepository creates a new pack repository.
func NewPackRepository(pool *pgxpool.Pool) *PackRepositoryPG {
	return &PackRepositoryPG{pool: pool}
}

// List returns all packs.
func (r *PackRepositoryPG) List(ctx context.Context) ([]domain.Pack, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, COALESCE(description, ''), COALESCE(cover_url, ''), created_at FROM packs ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var packs []domain.Pack
	for rows.Next() {
		var pack domain.Pack
		if err := rows.Scan(&pack.ID, &pack.Name, &pack.Description, &pack.CoverURL, &pack.CreatedAt); err != nil {
			return nil, err
		}
		packs = append(packs, pack)
	}
	return packs, rows.Err()
}

// GetByID fetches a pack by its identifier.
func (r *PackRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Pack, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, COALESCE(description, ''), COALESCE(cover_url, ''), created_at FROM packs WHERE id = $1`, id)
	var pack domain.Pack
	if err := row.Scan(&pack.ID, &pack.Name, &pack.Description, &pack.CoverURL, &pack.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &pack, nil
}

// ListPrompts returns the pack's prompt templates in authored order.
func (r *PackRepositoryPG) ListPrompts(ctx context.Context, packID string) ([]domain.PackPrompt, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, pack_id, prompt, seq FROM pack_prompts WHERE pack_id = $1 ORDER BY seq`, packID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prompts []domain.PackPrompt
	for rows.Next() {
		var prompt domain.PackPrompt
		if err := rows.Scan(&prompt.ID, &prompt.PackID, &prompt.Prompt, &prompt.Seq); err != nil {
			return nil, err
		}
		prompts = append(prompts, prompt)
	}
	return prompts, rows.Err()
}
