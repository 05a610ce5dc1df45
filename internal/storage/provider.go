// Package storage defines the blob storage provider used to archive raw
// page payloads. The abstraction keeps the pipeline independent of a
// specific backend (Google Cloud Storage or the local filesystem).
package storage

import "context"

// Provider is the common interface for a blob storage provider. It
// satisfies the archiver contract of the page fetcher.
type Provider interface {
	// Save uploads data to a specified object path/key in the blob store.
	Save(ctx context.Context, objectName string, data []byte) error
}

// NoOpProvider is a provider that performs no operations. It is useful for
// tests or dry runs where payloads are fetched but not archived.
type NoOpProvider struct{}

// Save for NoOpProvider does nothing and always returns nil.
func (NoOpProvider) Save(context.Context, string, []byte) error {
	return nil
}
