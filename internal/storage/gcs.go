package storage

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
)

// GCSClientFactory builds the underlying GCS client. Indirection lets tests
// inject a client pointed at a fake endpoint.
type GCSClientFactory interface {
	NewClient(ctx context.Context) (*storage.Client, error)
}

// DefaultGCSClientFactory uses Application Default Credentials.
type DefaultGCSClientFactory struct{}

// NewClient builds a client with ambient credentials.
func (DefaultGCSClientFactory) NewClient(ctx context.Context) (*storage.Client, error) {
	return storage.NewClient(ctx)
}

// GCSProvider implements Provider for Google Cloud Storage.
type GCSProvider struct {
	Client     *storage.Client
	BucketName string

	logger *zap.Logger
}

// NewGCSProvider initializes a GCS client and verifies access to the bucket
// so misconfiguration fails at startup rather than mid-run.
func NewGCSProvider(ctx context.Context, bucketName string, factory GCSClientFactory, logger *zap.Logger) (*GCSProvider, error) {
	if factory == nil {
		factory = DefaultGCSClientFactory{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := factory.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	bkt := client.Bucket(bucketName)
	if _, err := bkt.Attrs(ctx); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("failed to close GCS client after bucket check failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("failed to get GCS bucket %q attributes: %w", bucketName, err)
	}

	return &GCSProvider{Client: client, BucketName: bucketName, logger: logger}, nil
}

// Save uploads data to objectName in the configured bucket.
func (g *GCSProvider) Save(ctx context.Context, objectName string, data []byte) error {
	wc := g.Client.Bucket(g.BucketName).Object(objectName).NewWriter(ctx)

	if _, err := wc.Write(data); err != nil {
		if closeErr := wc.Close(); closeErr != nil {
			g.logger.Warn("failed to close GCS writer after write failure", zap.Error(closeErr))
		}
		return fmt.Errorf("write GCS object %s: %w", objectName, err)
	}
	// Close finalizes the upload and flushes buffered data.
	if err := wc.Close(); err != nil {
		return fmt.Errorf("close GCS writer for object %s: %w", objectName, err)
	}
	return nil
}

// Close releases the underlying client.
func (g *GCSProvider) Close() error {
	return g.Client.Close()
}
