package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/tphakala/brandforge-go/internal/conf"
	"github.com/tphakala/brandforge-go/internal/errors"
)

// MinioStore implements Store against a MinIO (or S3-compatible) endpoint.
type MinioStore struct {
	client        *minio.Client
	endpoint      string
	useSSL        bool
	publicBaseURL string
}

// NewMinioStore creates a MinIO-backed store and ensures the configured
// buckets exist.
func NewMinioStore(ctx context.Context, settings *conf.StorageSettings) (*MinioStore, error) {
	client, err := minio.New(settings.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(settings.AccessKey, settings.SecretKey, ""),
		Secure: settings.UseSSL,
	})
	if err != nil {
		return nil, errors.New(err).
			Component("objectstore").
			Category(errors.CategoryObjectStore).
			Context("operation", "create_client").
			Build()
	}

	store := &MinioStore{
		client:        client,
		endpoint:      settings.Endpoint,
		useSSL:        settings.UseSSL,
		publicBaseURL: strings.TrimSuffix(settings.PublicBaseURL, "/"),
	}

	for _, bucket := range []string{settings.ArchiveBucket, settings.ImageBucket} {
		if err := store.ensureBucketExists(ctx, bucket); err != nil {
			return nil, err
		}
	}

	getLogger().Info("Object store initialized",
		"endpoint", settings.Endpoint,
		"archive_bucket", settings.ArchiveBucket,
		"image_bucket", settings.ImageBucket)
	return store, nil
}

// ensureBucketExists creates a bucket if it doesn't exist.
func (s *MinioStore) ensureBucketExists(ctx context.Context, bucketName string) error {
	exists, err := s.client.BucketExists(ctx, bucketName)
	if err != nil {
		return errors.Newf("failed to check if bucket %s exists: %v", bucketName, err).
			Component("objectstore").
			Category(errors.CategoryObjectStore).
			Build()
	}

	if !exists {
		if err := s.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			return errors.Newf("failed to create bucket %s: %v", bucketName, err).
				Component("objectstore").
				Category(errors.CategoryObjectStore).
				Build()
		}
		getLogger().Info("Created bucket", "bucket", bucketName)
	}

	return nil
}

// Upload stores an object in the given bucket.
func (s *MinioStore) Upload(ctx context.Context, bucket, objectName string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, bucket, objectName, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return errors.New(err).
			Component("objectstore").
			Category(errors.CategoryObjectStore).
			Context("operation", "upload").
			Context("bucket", bucket).
			Build()
	}

	getLogger().Debug("Uploaded object",
		"bucket", bucket,
		"object", objectName,
		"size", len(data))
	return nil
}

// Download retrieves an object's full contents.
func (s *MinioStore) Download(ctx context.Context, bucket, objectName string) ([]byte, error) {
	object, err := s.client.GetObject(ctx, bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.New(err).
			Component("objectstore").
			Category(errors.CategoryObjectStore).
			Context("operation", "download").
			Context("bucket", bucket).
			Build()
	}
	defer func() {
		_ = object.Close()
	}()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, errors.New(err).
			Component("objectstore").
			Category(errors.CategoryObjectStore).
			Context("operation", "download_read").
			Context("bucket", bucket).
			Build()
	}
	return data, nil
}

// PublicURL returns the stable public URL for an object. When a public base
// URL (CDN or reverse proxy) is configured it takes precedence over the raw
// endpoint address.
func (s *MinioStore) PublicURL(bucket, objectName string) string {
	if s.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", s.publicBaseURL, bucket, objectName)
	}
	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.endpoint, bucket, objectName)
}
