// Package blob stores delivery photos in S3-compatible object storage.
package blob

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config holds S3-compatible storage configuration. PublicBaseURL is the
// prefix under which uploaded keys are publicly reachable (bucket website
// or CDN endpoint).
type Config struct {
	Endpoint      string
	Bucket        string
	Region        string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
}

// ErrNotConfigured is returned when storage credentials are missing.
var ErrNotConfigured = errors.New("blob storage not configured")

// Storage uploads and deletes photo objects.
type Storage struct {
	cfg    Config
	client s3Client
}

// New creates a Storage. With incomplete credentials the Storage is inert:
// Configured reports false and operations fail with ErrNotConfigured.
func New(cfg Config) *Storage {
	st := &Storage{cfg: cfg}
	if cfg.Bucket != "" && cfg.AccessKey != "" && cfg.SecretKey != "" {
		st.client = newS3Client(cfg)
	}
	return st
}

func newS3Client(cfg Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Configured returns true when credentials were provided.
func (st *Storage) Configured() bool {
	return st.client != nil
}

var extByMIME = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// UploadPhoto stores photo bytes under a key namespaced by site id with a
// collision-resistant name (millisecond timestamp plus random suffix) and
// returns the object's public URL.
func (st *Storage) UploadPhoto(ctx context.Context, siteID string, data []byte, contentType string) (string, error) {
	if !st.Configured() {
		return "", ErrNotConfigured
	}

	suffix, err := randomSuffix()
	if err != nil {
		return "", err
	}
	ext := extByMIME[contentType]
	key := fmt.Sprintf("site-%s/%d-%s%s", siteID, time.Now().UnixMilli(), suffix, ext)

	_, err = st.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(st.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload photo: %w", err)
	}

	return st.publicURL(key), nil
}

// DeletePhoto removes the object behind a URL previously returned by
// UploadPhoto. URLs outside this storage's public prefix are rejected.
func (st *Storage) DeletePhoto(ctx context.Context, photoURL string) error {
	if !st.Configured() {
		return ErrNotConfigured
	}

	key, ok := st.keyFromURL(photoURL)
	if !ok {
		return fmt.Errorf("photo url %q not under storage prefix", photoURL)
	}

	_, err := st.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(st.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}
	return nil
}

func (st *Storage) publicURL(key string) string {
	base := strings.TrimRight(st.cfg.PublicBaseURL, "/")
	if base == "" {
		base = strings.TrimRight(st.cfg.Endpoint, "/") + "/" + st.cfg.Bucket
	}
	return base + "/" + key
}

func (st *Storage) keyFromURL(photoURL string) (string, bool) {
	prefix := st.publicURL("")
	if !strings.HasPrefix(photoURL, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(photoURL, prefix)
	if key == "" {
		return "", false
	}
	return key, true
}

func randomSuffix() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(b), nil
}
