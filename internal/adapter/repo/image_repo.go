package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"photoai/internal/domain"
)

// ImageRepositoryPG implements domain.ImageRepository backed by PostgreSQL.
type ImageRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewImageRepository creates a new image repository.
func NewImageRepository(pool *pgxpool.Pool) *ImageRepositoryPG {
	return &ImageRepositoryPG{pool: pool}
}

const imageColumns = `id, owner_id, model_id, prompt, tracking_id, status, COALESCE(image_url, ''), created_at, updated_at`

const insertImage = `
INSERT INTO images (id, owner_id, model_id, prompt, tracking_id, status)
VALUES ($1, $2, $3, $4, $5, $6);
`

// Create inserts a single pending image job.
func (r *ImageRepositoryPG) Create(ctx context.Context, image *domain.Image) error {
	_, err := r.pool.Exec(ctx, insertImage,
		image.ID,
		image.OwnerID,
		image.ModelID,
		image.Prompt,
		image.TrackingID,
		image.Status,
	)
	return err
}

// CreateBatch inserts all image jobs of a pack fan-out in one transaction, so
// a mid-batch failure persists none of them.
func (r *ImageRepositoryPG) CreateBatch(ctx context.Context, images []*domain.Image) error {
	if len(images) == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, image := range images {
		if _, err := tx.Exec(ctx, insertImage,
			image.ID,
			image.OwnerID,
			image.ModelID,
			image.Prompt,
			image.TrackingID,
			image.Status,
		); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// GetByTrackingID fetches an image job by the executor's tracking identifier.
func (r *ImageRepositoryPG) GetByTrackingID(ctx context.Context, trackingID string) (*domain.Image, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+imageColumns+` FROM images WHERE tracking_id = $1`, trackingID)
	return scanImage(row)
}

// ListByOwner returns the owner's images, optionally filtered by ids, newest
// first with offset paging.
func (r *ImageRepositoryPG) ListByOwner(ctx context.Context, ownerID string, ids []string, offset, limit int) ([]domain.Image, error) {
	query := `SELECT ` + imageColumns + `
FROM images
WHERE owner_id = $1 AND (cardinality($2::text[]) = 0 OR id = ANY($2::text[]))
ORDER BY created_at DESC
OFFSET $3 LIMIT $4;
`
	if ids == nil {
		ids = []string{}
	}
	rows, err := r.pool.Query(ctx, query, ownerID, ids, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []domain.Image
	for rows.Next() {
		image, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, *image)
	}
	return images, rows.Err()
}

// MarkGenerated transitions a Pending image to Generated with its URL.
// Conditional on the current status, so duplicate deliveries match zero rows.
func (r *ImageRepositoryPG) MarkGenerated(ctx context.Context, id, imageURL string) (bool, error) {
	query := `
UPDATE images
SET status = $2,
    image_url = $3,
    updated_at = NOW()
WHERE id = $1 AND status = $4;
`
	tag, err := r.pool.Exec(ctx, query, id, domain.JobGenerated, imageURL, domain.JobPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFailed transitions a Pending image to Failed. No image URL is recorded
// on the failure path.
func (r *ImageRepositoryPG) MarkFailed(ctx context.Context, id string) (bool, error) {
	query := `
UPDATE images
SET status = $2,
    updated_at = NOW()
WHERE id = $1 AND status = $3;
`
	tag, err := r.pool.Exec(ctx, query, id, domain.JobFailed, domain.JobPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanImage(row pgx.Row) (*domain.Image, error) {
	var image domain.Image
	if err := row.Scan(
		&image.ID,
		&image.OwnerID,
		&image.ModelID,
		&image.Prompt,
		&image.TrackingID,
		&image.Status,
		&image.ImageURL,
		&image.CreatedAt,
		&image.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &image, nil
}
