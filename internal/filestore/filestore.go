// Package filestore keeps raw uploads under generated names.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/datachat/datachat/internal/config"
)

// ErrNotFound is returned when a key has no stored object.
var ErrNotFound = errors.New("stored file not found")

// Object identifies a stored upload.
type Object struct {
	Key  string // name within the store
	Path string // local path, or the URI for remote backends
	URI  string
}

// Store saves and reads raw uploads.
type Store interface {
	// Save stores data under a new UUID name keeping the extension of
	// originalName.
	Save(ctx context.Context, originalName string, data []byte) (*Object, error)
	Read(ctx context.Context, key string) ([]byte, error)
	// LocalPath returns the filesystem path of key when the backend keeps
	// files on local disk.
	LocalPath(key string) (string, bool)
}

// New creates the store selected by the storage config.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "", config.StorageLocal:
		return NewLocal(cfg.Directory)
	case config.StorageS3:
		return NewS3(ctx, cfg.Bucket, cfg.Prefix, cfg.Profile, cfg.Region)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// NewKey returns a UUID file name with the lower-cased extension of name.
func NewKey(name string) string {
	return uuid.NewString() + strings.ToLower(filepath.Ext(name))
}
