// Package storage provides object storage for report artifacts and remote
// log inputs. Implementations cover S3 and the local filesystem.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/accesstrail/accesstrail/internal/config"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrUploadFailed   = errors.New("upload failed")
	ErrDownloadFailed = errors.New("download failed")
	ErrDeleteFailed   = errors.New("delete failed")
)

// ObjectStorage abstracts artifact storage.
type ObjectStorage interface {
	// Upload uploads a local file to objectPath.
	Upload(ctx context.Context, localPath, objectPath string) error

	// Download downloads objectPath to a local file.
	Download(ctx context.Context, objectPath, localPath string) error

	// Exists checks whether an object exists.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, objectPath string) error

	// ListObjects returns all object paths under the given prefix.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}

// New builds the configured ObjectStorage implementation.
func New(ctx context.Context, cfg config.StorageConfig) (ObjectStorage, error) {
	switch cfg.Type {
	case "local":
		return NewLocalStorage(cfg.Path)
	case "s3":
		return NewS3Storage(ctx, cfg.S3.Bucket, S3Options{
			Region:   cfg.S3.Region,
			Endpoint: cfg.S3.Endpoint,
		})
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// IsS3URI reports whether the path names an S3 object.
func IsS3URI(path string) bool {
	return strings.HasPrefix(path, "s3://")
}

// SplitS3URI splits s3://bucket/key into bucket and key.
func SplitS3URI(uri string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(uri, "s3://")
	if rest == uri {
		return "", "", fmt.Errorf("not an s3 URI: %s", uri)
	}
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed s3 URI: %s", uri)
	}
	return parts[0], parts[1], nil
}
