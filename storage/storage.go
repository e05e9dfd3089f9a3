// Package storage caches corpus snapshots (fetched eCFR XML) so corpus
// refresh can fall back to the last good copy when the source is down.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNotFound indicates no snapshot exists under the requested key.
var ErrNotFound = errors.New("storage: object not found")

// Storage persists corpus snapshots under stable keys.
type Storage interface {
	// Put stores data under key, replacing any existing object.
	Put(ctx context.Context, key string, data io.Reader) error

	// Get retrieves the object stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object under key; missing objects are not an error.
	Delete(ctx context.Context, key string) error
}

// Type selects the storage backend.
type Type string

const (
	TypeLocal Type = "local"
	TypeS3    Type = "s3"
)

// Config holds configuration for storage backends.
type Config struct {
	Type         Type
	LocalPath    string // for local storage
	S3Bucket     string // for S3 storage
	S3Region     string
	AWSAccessKey string
	AWSSecretKey string
}

// New creates a storage instance based on configuration.
func New(cfg Config) (Storage, error) {
	switch cfg.Type {
	case TypeLocal:
		return NewLocalStorage(cfg.LocalPath)
	case TypeS3:
		if cfg.S3Bucket == "" {
			return nil, errors.New("S3 bucket is required for s3 storage")
		}
		return NewS3Storage(cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// sanitizeKey normalizes a snapshot key into a safe relative path.
func sanitizeKey(key string) string {
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.ReplaceAll(key, " ", "_")
	parts := strings.Split(key, "/")
	clean := parts[:0]
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			continue
		}
		clean = append(clean, p)
	}
	return strings.Join(clean, "/")
}
