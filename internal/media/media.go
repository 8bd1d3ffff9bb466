// Package media stores inspection photos in S3-compatible object storage
// and hands out short-lived download links.
package media

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"flamecert/api/internal/util"
)

// PresignExpiry is how long a download link stays valid.
const PresignExpiry = 15 * time.Minute

// Service wraps one bucket of inspection photos.
type Service struct {
	client *minio.Client
	bucket string
}

// Config holds the object storage connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// New connects to the object store and makes sure the bucket exists.
func New(ctx context.Context, cfg Config) (*Service, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to object storage: %w", err)
	}

	s := &Service{client: client, bucket: cfg.Bucket}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Photo describes one stored photo.
type Photo struct {
	Key         string    `json:"key"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// UploadPhoto stores one photo against a gas safety record. The object key
// embeds the owner so listing and access checks stay cheap.
func (s *Service) UploadPhoto(ctx context.Context, userID, recordID, filename, contentType string, r io.Reader, size int64) (Photo, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	ext := strings.ToLower(path.Ext(filename))
	key := fmt.Sprintf("photos/%s/%s/%s%s", userID, recordID, util.NewID(""), ext)

	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return Photo{}, fmt.Errorf("upload photo: %w", err)
	}

	return Photo{
		Key:         key,
		Size:        info.Size,
		ContentType: contentType,
		UploadedAt:  time.Now(),
	}, nil
}

// ListPhotos returns the photos stored for one record.
func (s *Service) ListPhotos(ctx context.Context, userID, recordID string) ([]Photo, error) {
	prefix := fmt.Sprintf("photos/%s/%s/", userID, recordID)
	photos := make([]Photo, 0)
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list photos: %w", obj.Err)
		}
		photos = append(photos, Photo{
			Key:        obj.Key,
			Size:       obj.Size,
			UploadedAt: obj.LastModified,
		})
	}
	return photos, nil
}

// PresignedURL returns a time-limited download link for a stored photo.
// The key must belong to userID.
func (s *Service) PresignedURL(ctx context.Context, userID, key string) (string, error) {
	if !strings.HasPrefix(key, "photos/"+userID+"/") {
		return "", fmt.Errorf("photo %s does not belong to user", key)
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, PresignExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign photo: %w", err)
	}
	return u.String(), nil
}

// DeletePhoto removes a stored photo. The key must belong to userID.
func (s *Service) DeletePhoto(ctx context.Context, userID, key string) error {
	if !strings.HasPrefix(key, "photos/"+userID+"/") {
		return fmt.Errorf("photo %s does not belong to user", key)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}
	return nil
}
