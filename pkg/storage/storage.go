// Package storage keeps uploaded receipt images on local disk or in S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("stored object not found")
	ErrInvalidPath = errors.New("invalid storage path")
)

// UnassignedBucket holds images whose store was never resolved.
const UnassignedBucket = "unassigned"

// Storage saves images under a bucket key and returns a stable path that
// Get, Delete and Exists accept later.
type Storage interface {
	Save(ctx context.Context, buf []byte, bucketKey, originalName string) (string, error)
	Get(ctx context.Context, p string) ([]byte, error)
	Delete(ctx context.Context, p string) error
	Exists(ctx context.Context, p string) (bool, error)
}

// BucketFor returns the bucket key for a store, or UnassignedBucket.
func BucketFor(storeID *uint) string {
	if storeID == nil || *storeID == 0 {
		return UnassignedBucket
	}
	return fmt.Sprintf("store-%d", *storeID)
}

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true}

// objectKey builds <bucket>/<yyyy>/<mm>/<uuid><ext>.
func objectKey(bucketKey, originalName string, now time.Time) (string, error) {
	bucketKey = strings.Trim(bucketKey, "/")
	if bucketKey == "" || strings.Contains(bucketKey, "..") || strings.ContainsAny(bucketKey, `\`) {
		return "", ErrInvalidPath
	}
	ext := strings.ToLower(filepath.Ext(originalName))
	if !imageExts[ext] {
		ext = ".jpg"
	}
	return path.Join(bucketKey, now.Format("2006"), now.Format("01"), uuid.NewString()+ext), nil
}

// cleanKey rejects absolute paths and parent references.
func cleanKey(p string) (string, error) {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, `\`) {
		return "", ErrInvalidPath
	}
	c := path.Clean(p)
	if c == "." || c == ".." || strings.HasPrefix(c, "../") {
		return "", ErrInvalidPath
	}
	return c, nil
}
