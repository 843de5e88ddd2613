package domain

import "context"

// ModelRepository defines persistence for trained models. The Mark* methods
// are conditional updates that only transition rows out of Pending; they
// report whether the transition was applied so callers can detect duplicate
// callback deliveries.
type ModelRepository interface {
	Create(ctx context.Context, model *TrainedModel) error
	GetByID(ctx context.Context, id string) (*TrainedModel, error)
	GetByTrackingID(ctx context.Context, trackingID string) (*TrainedModel, error)
	ListByOwner(ctx context.Context, ownerID string) ([]TrainedModel, error)
	MarkGenerated(ctx context.Context, id, tensorPath, previewURL string) (bool, error)
	MarkFailed(ctx context.Context, id string) (bool, error)
}

// ImageRepository defines persistence for image-generation jobs.
type ImageRepository interface {
	Create(ctx context.Context, image *Image) error
	CreateBatch(ctx context.Context, images []*Image) error
	GetByTrackingID(ctx context.Context, trackingID string) (*Image, error)
	ListByOwner(ctx context.Context, ownerID string, ids []string, offset, limit int) ([]Image, error)
	MarkGenerated(ctx context.Context, id, imageURL string) (bool, error)
	MarkFailed(ctx context.Context, id string) (bool, error)
}

// PackRepository provides read-only access to prompt packs.
type PackRepository interface {
	List(ctx context.Context) ([]Pack, error)
	GetByID(ctx context.Context, id string) (*Pack, error)
	ListPrompts(ctx context.Context, packID string) ([]PackPrompt, error)
}

// CreditRepository defines atomic balance operations. TryDebit performs a
// check-and-subtract in a single statement and returns false when the balance
// would go negative.
type CreditRepository interface {
	Balance(ctx context.Context, ownerID string) (int64, error)
	TryDebit(ctx context.Context, ownerID string, amount int64) (bool, error)
	Credit(ctx context.Context, ownerID string, amount int64) error
	EnsureAccount(ctx context.Context, ownerID string, initial int64) error
}
