package storage

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-classify/config"
	"github.com/nvr-ai/go-classify/images"
)

// Location is the region used when the bucket has to be created.
const Location = "us-east-1"

// Minio stores images in an object storage bucket and hands out presigned URLs.
type Minio struct {
	client *minio.Client
	bucket string
	expiry time.Duration
	logger *zap.Logger
}

// NewMinioClientAndInitBucket connects to the endpoint and creates the bucket if it is missing.
//
// Arguments:
//   - ctx: Bounds the bucket check and creation.
//   - cfg: The connection settings.
//   - logger: The logger.
//
// Returns:
//   - *Minio: The store.
//   - error: An error if the client cannot be created or the bucket cannot be ensured.
func NewMinioClientAndInitBucket(ctx context.Context, cfg config.MinioConfig, logger *zap.Logger) (*Minio, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("minio endpoint and bucket are required")
	}
	logger.Info("Initializing Minio client and bucket...", zap.String("endpoint", cfg.Endpoint))

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		logger.Error("cannot connect to minio", zap.String("endpoint", cfg.Endpoint), zap.Error(err))
		return nil, errors.Wrap(err, "failed to create minio client")
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		logger.Error("failed in checking BucketExists", zap.Error(err))
		return nil, errors.Wrap(err, "failed to check bucket")
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: Location}); err != nil {
			logger.Error("creating Bucket failed", zap.Error(err))
			return nil, errors.Wrap(err, "failed to create bucket")
		}
		logger.Info("Successfully created bucket", zap.String("bucket", cfg.Bucket))
	}

	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &Minio{client: client, bucket: cfg.Bucket, expiry: expiry, logger: logger}, nil
}

// Save uploads the grid and returns a presigned GET URL for it.
func (m *Minio) Save(ctx context.Context, grid *images.PixelGrid) (Object, error) {
	data, err := EncodeJPEG(grid)
	if err != nil {
		return Object{}, err
	}

	name := NewName()
	_, err = m.client.PutObject(ctx, m.bucket, name, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "image/jpeg"})
	if err != nil {
		m.logger.Error("Failed to upload file to MinIO", zap.String("name", name), zap.Error(err))
		return Object{}, errors.Wrap(err, "failed to upload image")
	}

	u, err := m.client.PresignedGetObject(ctx, m.bucket, name, m.expiry, url.Values{})
	if err != nil {
		return Object{}, errors.Wrap(err, "failed to presign image url")
	}
	return Object{Name: name, URL: u.String(), Size: int64(len(data))}, nil
}

// Open streams a stored object.
func (m *Minio) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if !ValidName(name) {
		return nil, ErrNotFound
	}
	object, err := m.client.GetObject(ctx, m.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get image from minio")
	}
	// GetObject is lazy. Stat surfaces a missing key before the caller writes headers.
	if _, err := object.Stat(); err != nil {
		object.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to stat image")
	}
	return object, nil
}
