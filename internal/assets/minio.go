package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig holds the connection and layout settings for MinIOStore.
type MinIOConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	Folder        string
	PresignExpiry time.Duration
}

// MinIOStore keeps media as objects in an S3-compatible bucket.
type MinIOStore struct {
	client *minio.Client
	cfg    MinIOConfig
	base   string
}

// NewMinIOStore connects to MinIO and makes sure the bucket exists.
func NewMinIOStore(ctx context.Context, cfg MinIOConfig) (*MinIOStore, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" || strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("minio endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	store := newMinIOStore(client, cfg)
	if err := store.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func newMinIOStore(client *minio.Client, cfg MinIOConfig) *MinIOStore {
	if strings.TrimSpace(cfg.Folder) == "" {
		cfg.Folder = "MultimodalLessons"
	}
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = 24 * time.Hour
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return &MinIOStore{
		client: client,
		cfg:    cfg,
		base:   scheme + "://" + cfg.Endpoint + "/" + cfg.Bucket,
	}
}

func (s *MinIOStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.cfg.Bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.cfg.Bucket, err)
	}
	return nil
}

// WriteImage uploads image bytes for a frame.
func (s *MinIOStore) WriteImage(ctx context.Context, data []byte, lessonID string, frameIndex int) (string, error) {
	if err := validateKey(lessonID, frameIndex); err != nil {
		return "", err
	}
	return s.put(ctx, data, relativePath(s.cfg.Folder, lessonID, imageName(data, frameIndex)))
}

// WriteAudio uploads audio bytes for a frame.
func (s *MinIOStore) WriteAudio(ctx context.Context, data []byte, lessonID string, frameIndex int) (string, error) {
	if err := validateKey(lessonID, frameIndex); err != nil {
		return "", err
	}
	return s.put(ctx, data, relativePath(s.cfg.Folder, lessonID, audioName(frameIndex)))
}

func (s *MinIOStore) put(ctx context.Context, data []byte, object string) (string, error) {
	_, err := s.client.PutObject(ctx, s.cfg.Bucket, object, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType(object),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", object, err)
	}
	return object, nil
}

// Resolve returns the object URL for a relative path. The URL is stable; use
// PresignedURL for a time-limited download link.
func (s *MinIOStore) Resolve(relativePath string) string {
	return s.base + "/" + strings.TrimPrefix(path.Clean("/"+relativePath), "/")
}

// PresignedURL returns a GET URL for the object valid for the configured expiry.
func (s *MinIOStore) PresignedURL(ctx context.Context, relativePath string) (string, error) {
	presigned, err := s.client.PresignedGetObject(ctx, s.cfg.Bucket, relativePath, s.cfg.PresignExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", relativePath, err)
	}
	return presigned.String(), nil
}

// RemoveLesson deletes every object under the lesson prefix.
func (s *MinIOStore) RemoveLesson(ctx context.Context, lessonID string) error {
	if err := validateKey(lessonID, 0); err != nil {
		return err
	}
	prefix := s.cfg.Folder + "/" + lessonID + "/"
	objects := s.client.ListObjects(ctx, s.cfg.Bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true})
	for result := range s.client.RemoveObjects(ctx, s.cfg.Bucket, objects, minio.RemoveObjectsOptions{}) {
		if result.Err != nil {
			return fmt.Errorf("remove %s: %w", result.ObjectName, result.Err)
		}
	}
	return nil
}

// Presigner is implemented by stores that can mint time-limited download URLs.
type Presigner interface {
	PresignedURL(ctx context.Context, relativePath string) (string, error)
}
