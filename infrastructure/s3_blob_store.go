package infrastructure

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"cv-shortlist/domain"
)

type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
}

// S3BlobStore keeps PDF files in an S3 compatible bucket under
// job-openings/<job opening id>/<candidate id>.pdf.
type S3BlobStore struct {
	client *minio.Client
	bucket string
}

// NewS3BlobStore connects to the bucket, creating it when missing.
func NewS3BlobStore(ctx context.Context, cfg S3Config) (*S3BlobStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &S3BlobStore{client: client, bucket: cfg.Bucket}, nil
}

func objectKey(ownerKey, blobKey string) string {
	return "job-openings/" + ownerKey + "/" + blobKey + ".pdf"
}

func (s *S3BlobStore) GetBlob(ctx context.Context, ownerKey, blobKey string) ([]byte, error) {
	key := objectKey(ownerKey, blobKey)
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s3Error(err, key)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s3Error(err, key)
	}
	return data, nil
}

func (s *S3BlobStore) PutBlob(ctx context.Context, ownerKey, blobKey string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectKey(ownerKey, blobKey),
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/pdf"},
	)
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

// DeleteBlob succeeds for missing objects, as S3 does.
func (s *S3BlobStore) DeleteBlob(ctx context.Context, ownerKey, blobKey string) error {
	key := objectKey(ownerKey, blobKey)
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return s3Error(err, key)
	}
	return nil
}

func s3Error(err error, key string) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("object %s: %w", key, domain.ErrNotFound)
	}
	return fmt.Errorf("s3 object %s: %w", key, err)
}
