package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// MaxProfilePictureSize is the largest accepted upload
const MaxProfilePictureSize = 10 << 20

// ErrUnsupportedImage is returned for files that are not jpeg, png, gif or webp
var ErrUnsupportedImage = errors.New("unsupported image type")

// s3API is the subset of the S3 client used here
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Uploader handles profile picture uploads to AWS S3
type S3Uploader struct {
	client  s3API
	bucket  string
	region  string
	baseURL string
}

// UploadResult contains the result of an S3 upload
type UploadResult struct {
	Key    string `json:"key"`
	URL    string `json:"url"`
	Bucket string `json:"bucket"`
	Region string `json:"region"`
	Size   int64  `json:"size"`
}

// NewS3Uploader creates a new S3 uploader. baseURL is the public (CDN)
// prefix for uploaded keys.
func NewS3Uploader(region, bucket, baseURL string) (*S3Uploader, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	}

	return &S3Uploader{
		client:  s3.NewFromConfig(cfg),
		bucket:  bucket,
		region:  region,
		baseURL: baseURL,
	}, nil
}

// UploadProfilePicture stores an image under profile-pics/{userID}/
func (u *S3Uploader) UploadProfilePicture(ctx context.Context, body io.Reader, size int64, filename, userID string) (*UploadResult, error) {
	extension := strings.ToLower(filepath.Ext(filename))
	contentType := getContentTypeForImage(extension)
	if contentType == "application/octet-stream" {
		return nil, ErrUnsupportedImage
	}
	if size > MaxProfilePictureSize {
		return nil, fmt.Errorf("image too large: %d bytes", size)
	}

	key := fmt.Sprintf("profile-pics/%s/%s%s", userID, uuid.New().String(), extension)

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
		CacheControl:  aws.String("max-age=86400"),
		Metadata: map[string]string{
			"user-id":           userID,
			"original-filename": filename,
			"upload-timestamp":  time.Now().UTC().Format(time.RFC3339),
			"file-type":         "profile-picture",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return &UploadResult{
		Key:    key,
		URL:    u.publicURL(key),
		Bucket: u.bucket,
		Region: u.region,
		Size:   size,
	}, nil
}

// KeyFromURL returns the object key of a URL produced by this uploader,
// or "" when the URL points elsewhere.
func (u *S3Uploader) KeyFromURL(url string) string {
	prefix := strings.TrimSuffix(u.baseURL, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return ""
	}
	return strings.TrimPrefix(url, prefix)
}

// DeleteFile deletes a file from S3
func (u *S3Uploader) DeleteFile(ctx context.Context, key string) error {
	_, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

// CheckBucketAccess verifies that we can access the S3 bucket
func (u *S3Uploader) CheckBucketAccess(ctx context.Context) error {
	_, err := u.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(u.bucket),
	})
	if err != nil {
		return fmt.Errorf("cannot access S3 bucket %s: %w", u.bucket, err)
	}
	return nil
}

func (u *S3Uploader) publicURL(key string) string {
	return fmt.Sprintf("%s/%s", strings.TrimSuffix(u.baseURL, "/"), key)
}

// getContentTypeForImage returns the MIME type for supported image extensions
func getContentTypeForImage(extension string) string {
	switch strings.ToLower(extension) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
