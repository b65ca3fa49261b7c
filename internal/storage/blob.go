// Package storage keeps question images and other uploaded blobs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-kkm/internal/config"
)

var ErrNotFound = errors.New("blob not found")

type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) (string, error) // returns canonical key
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Open picks the backend named by cfg.BlobDriver.
func Open(cfg config.Config) (BlobStore, error) {
	switch cfg.BlobDriver {
	case "", "fs":
		return NewFSStore(cfg.BlobBasePath)
	case "s3":
		return NewS3Store(cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported blob driver: %s", cfg.BlobDriver)
	}
}

// NewKey returns a fresh key under prefix, keeping the upload's extension.
func NewKey(prefix, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return path.Join(prefix, uuid.NewString()+ext)
}

// cleanKey normalizes a key to a slash path that cannot climb above the root.
func cleanKey(key string) (string, error) {
	k := strings.TrimPrefix(path.Clean("/"+key), "/")
	if k == "" || k == "." {
		return "", errors.New("empty key")
	}
	return k, nil
}
