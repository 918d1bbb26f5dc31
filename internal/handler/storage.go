package handler

import "context"

// PhotoStorage is the slice of blob.Storage the handlers need.
type PhotoStorage interface {
	Configured() bool
	UploadPhoto(ctx context.Context, siteID string, data []byte, contentType string) (string, error)
	DeletePhoto(ctx context.Context, photoURL string) error
}
