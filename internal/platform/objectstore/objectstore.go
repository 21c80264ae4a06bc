package objectstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/spf13/afero"

	"github.com/phrazzld/taskexport/internal/config"
	"github.com/phrazzld/taskexport/internal/task"
)

// Supported values of config.StorageConfig.Backend.
const (
	BackendGCS   = "gcs"
	BackendLocal = "local"
)

// csvContentType is attached to every uploaded artifact.
const csvContentType = "text/csv; charset=utf-8"

// Common errors
var (
	ErrUnsupportedBackend = errors.New("unsupported storage backend")
	ErrEmptyKey           = errors.New("object key cannot be empty")
)

// New builds the publisher selected by cfg.Backend. fsys is the filesystem
// holding the local sinks that will be uploaded.
func New(ctx context.Context, cfg config.StorageConfig, fsys afero.Fs, logger *slog.Logger) (task.Publisher, error) {
	switch cfg.Backend {
	case BackendGCS:
		return NewGCSPublisher(ctx, cfg, fsys, logger)
	case BackendLocal:
		return NewLocalPublisher(cfg.LocalRoot, cfg.Bucket, fsys, afero.NewOsFs()), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, cfg.Backend)
	}
}

// normalizeKey cleans key into the canonical slash-separated form used by
// both backends.
func normalizeKey(key string) (string, error) {
	key = strings.TrimLeft(path.Clean("/"+strings.ReplaceAll(key, `\`, "/")), "/")
	if key == "" || key == "." {
		return "", ErrEmptyKey
	}
	return key, nil
}
