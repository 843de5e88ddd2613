// Package storage hands out pre-authorized upload locations for source photo
// archives. The service never touches archive bytes itself; clients upload
// straight to the bucket and submit the resulting URL with the training
// request.
package storage

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	storage_go "github.com/supabase-community/storage-go"
)

// Upload is a pre-authorized upload slot: the URL the client PUTs the
// archive to and the public URL the archive will be readable at.
type Upload struct {
	UploadURL string `json:"upload_url"`
	Key       string `json:"key"`
	FileURL   string `json:"file_url"`
}

// SupabaseStore issues signed upload URLs against a Supabase Storage bucket.
type SupabaseStore struct {
	client *storage_go.Client
	bucket string
}

// NewSupabaseStore builds a store for the given project. Returns nil when
// the project URL is not configured; the upload endpoint then reports the
// feature as unavailable.
func NewSupabaseStore(projectURL, serviceKey, bucket string) *SupabaseStore {
	if strings.TrimSpace(projectURL) == "" {
		return nil
	}
	client := storage_go.NewClient(strings.TrimRight(projectURL, "/")+"/storage/v1", serviceKey, nil)
	return &SupabaseStore{client: client, bucket: bucket}
}

// NewArchiveUpload creates a signed upload slot for a photo archive.
func (s *SupabaseStore) NewArchiveUpload() (*Upload, error) {
	if s == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	key := fmt.Sprintf("uploads/%s.zip", uuid.NewString())
	signed, err := s.client.CreateSignedUploadUrl(s.bucket, key)
	if err != nil {
		return nil, fmt.Errorf("create signed upload url: %w", err)
	}
	public := s.client.GetPublicUrl(s.bucket, key)
	return &Upload{UploadURL: signed.Url, Key: key, FileURL: public.SignedURL}, nil
}
