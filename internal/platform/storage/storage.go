// Package storage keeps uploaded file content outside the database.
package storage

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"io"
	"path"
)

// ErrNotFound is returned when no object exists for a key.
var ErrNotFound = errors.New("storage: object not found")

// Store persists opaque blobs addressed by key.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Location spreads keys over 256 prefixes derived from the key's SHA-1.
func Location(key string) string {
	sum := sha1.Sum([]byte(key))
	return path.Join(hex.EncodeToString(sum[:1]), key)
}
