package domain

import "time"

// Image is a single image-generation job. The row is created at submission
// time with an empty ImageURL; the reconciler fills it in when the executor
// reports completion.
type Image struct {
	ID         string
	OwnerID    string
	ModelID    string
	Prompt     string
	TrackingID string
	Status     JobStatus
	ImageURL   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
