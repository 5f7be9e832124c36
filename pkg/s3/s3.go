package s3

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	defaultRegion = "us-east-1"
	presignExpiry = time.Hour * 24 * 7
)

// ObjectStorageClient uploads exported session files to a bucket.
type ObjectStorageClient interface {
	Connect(ctx context.Context, endpoint, accessKeyID, secretAccessKey string, useSSL bool) error
	UploadFile(ctx context.Context, bucketName, objectName string, content io.Reader, size int64, contentType string) (UploadResult, error)
}

// UploadResult describes a stored object.
type UploadResult struct {
	ObjectName   string
	Size         int64
	PresignedURL string
}

// ObjectStorage holds the object storage client instance
type ObjectStorage struct {
	Conn *minio.Client
}

// NewObjectStorage initialization
func NewObjectStorage() *ObjectStorage {
	return &ObjectStorage{}
}

// Connect establishes the object storage connection using client
func (o *ObjectStorage) Connect(ctx context.Context, endpoint, accessKeyID, secretAccessKey string, useSSL bool) error {
	conn, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to create minio client: %w", err)
	}

	// Check connection by listing buckets
	if _, err := conn.ListBuckets(ctx); err != nil {
		return fmt.Errorf("failed to establish minio connection: %w", err)
	}

	o.Conn = conn
	return nil
}

// UploadFile stores content under objectName, creating the bucket when needed.
// An existing object with the same name is overwritten.
func (o *ObjectStorage) UploadFile(ctx context.Context, bucketName, objectName string, content io.Reader, size int64, contentType string) (UploadResult, error) {
	if o.Conn == nil {
		return UploadResult{}, fmt.Errorf("object storage is not connected")
	}

	err := o.Conn.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: defaultRegion})
	if err != nil {
		exists, errBucketExists := o.Conn.BucketExists(ctx, bucketName)
		if !(errBucketExists == nil && exists) {
			return UploadResult{}, fmt.Errorf("failed to create bucket %s: %w", bucketName, err)
		}
	}

	info, err := o.Conn.PutObject(ctx, bucketName, objectName, content, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to upload %s: %w", objectName, err)
	}

	presignedURL, err := o.Conn.PresignedGetObject(ctx, bucketName, objectName, presignExpiry, nil)
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to presign %s: %w", objectName, err)
	}

	return UploadResult{
		ObjectName:   objectName,
		Size:         info.Size,
		PresignedURL: presignedURL.String(),
	}, nil
}
