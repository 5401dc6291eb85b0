package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("object not found")

// Object identifies a stored blob.
type Object struct {
	Key string
	URL string
}

// Blob is the object store used for contract documents and generated PDFs.
type Blob interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string, size int64) (Object, error)
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	// Delete is idempotent: a missing object is not an error.
	Delete(ctx context.Context, key string) error
	BulkDelete(ctx context.Context, keys []string) error
}

func isNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
