package storage

import (
	"context"
	"io"
)

// ProfilePictureUploader defines the interface for uploading profile pictures
// This interface allows for easy mocking in tests
type ProfilePictureUploader interface {
	UploadProfilePicture(ctx context.Context, body io.Reader, size int64, filename, userID string) (*UploadResult, error)
	DeleteFile(ctx context.Context, key string) error
}

// Ensure S3Uploader implements ProfilePictureUploader
var _ ProfilePictureUploader = (*S3Uploader)(nil)
