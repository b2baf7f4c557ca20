// Package objectstore archives compiled workflow definitions in S3-compatible
// storage.
package objectstore

import (
	"context"
	"errors"
)

var ErrObjectNotFound = errors.New("object not found")

// Store is a single bucket of small, immutable objects.
type Store interface {
	Bucket() string
	Exists(ctx context.Context, key string) (bool, error)
	Write(ctx context.Context, key string, obj Object) error
	Read(ctx context.Context, key string) ([]byte, error)
}

// Object is the content and metadata written under one key.
type Object struct {
	Data        []byte
	ContentType string
	// Labels become user metadata on the stored object.
	Labels map[string]string
}
