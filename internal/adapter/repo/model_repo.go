package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"photoai/internal/domain"
)

// ModelRepositoryPG implements domain.ModelRepository backed by PostgreSQL.
type ModelRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewModelRepository creates a new model repository.
func NewModelRepository(pool *pgxpool.Pool) *ModelRepositoryPG {
	return &ModelRepositoryPG{pool: pool}
}

const modelColumns = `id, owner_id, name, type, age, ethnicity, eye_color, bald, zip_url, tracking_id, training_status, COALESCE(tensor_path, ''), COALESCE(preview_url, ''), created_at, updated_at`

// Create inserts a new model record in Pending state.
func (r *ModelRepositoryPG) Create(ctx context.Context, model *domain.TrainedModel) error {
	query := `
INSERT INTO models (id, owner_id, name, type, age, ethnicity, eye_color, bald, zip_url, tracking_id, training_status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
`
	_, err := r.pool.Exec(ctx, query,
		model.ID,
		model.OwnerID,
		model.Name,
		model.Type,
		model.Age,
		model.Ethnicity,
		model.EyeColor,
		model.Bald,
		model.ZipURL,
		model.TrackingID,
		model.TrainingStatus,
	)
	return err
}

// GetByID fetches a model by its identifier.
func (r *ModelRepositoryPG) GetByID(ctx context.Context, id string) (*domain.TrainedModel, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+modelColumns+` FROM models WHERE id = $1`, id)
	return scanModel(row)
}

// GetByTrackingID fetches a model by the executor's tracking identifier.
func (r *ModelRepositoryPG) GetByTrackingID(ctx context.Context, trackingID string) (*domain.TrainedModel, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+modelColumns+` FROM models WHERE tracking_id = $1`, trackingID)
	return scanModel(row)
}

// ListByOwner returns the owner's models, newest first.
func (r *ModelRepositoryPG) ListByOwner(ctx context.Context, ownerID string) ([]domain.TrainedModel, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+modelColumns+` FROM models WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var models []domain.TrainedModel
	for rows.Next() {
		model, err := scanModel(rows)
		if err != nil {
			return nil, err
		}
		models = append(models, *model)
	}
	return models, rows.Err()
}

// MarkGenerated transitions a Pending model to Generated with its artifacts.
// The WHERE clause on training_status makes the transition first-write-wins;
// a duplicate callback matches zero rows and reports applied=false.
func (r *ModelRepositoryPG) MarkGenerated(ctx context.Context, id, tensorPath, previewURL string) (bool, error) {
	query := `
UPDATE models
SET training_status = $2,
    tensor_path = $3,
    preview_url = $4,
    updated_at = NOW()
WHERE id = $1 AND training_status = $5;
`
	tag, err := r.pool.Exec(ctx, query, id, domain.JobGenerated, tensorPath, previewURL, domain.JobPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFailed transitions a Pending model to Failed.
func (r *ModelRepositoryPG) MarkFailed(ctx context.Context, id string) (bool, error) {
	query := `
UPDATE models
SET training_status = $2,
    updated_at = NOW()
WHERE id = $1 AND training_status = $3;
`
	tag, err := r.pool.Exec(ctx, query, id, domain.JobFailed, domain.JobPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanModel(row pgx.Row) (*domain.TrainedModel, error) {
	var model domain.TrainedModel
	if err := row.Scan(
		&model.ID,
		&model.OwnerID,
		&model.Name,
		&model.Type,
		&model.Age,
		&model.Ethnicity,
		&model.EyeColor,
		&model.Bald,
		&model.ZipURL,
		&model.TrackingID,
		&model.TrainingStatus,
		&model.TensorPath,
		&model.PreviewURL,
		&model.CreatedAt,
		&model.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &model, nil
}
