package store

import "context"

// BlobStore defines the interface for artifact byte storage. Entries are
// append-only: a key is written once by Put and never mutated, so the store
// needs no locking beyond the atomicity of a single Put.
// Version: 1.0
type BlobStore interface {
	// Put stores data under the given key with the supplied content type.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get retrieves the bytes stored under key.
	// Returns ErrBlobNotFound if no such entry exists.
	Get(ctx context.Context, key string) ([]byte, error)
}
