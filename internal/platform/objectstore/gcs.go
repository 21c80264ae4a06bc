package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"cloud.google.com/go/storage"
	"github.com/spf13/afero"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/phrazzld/taskexport/internal/config"
)

// GCSPublisher uploads artifacts to a Google Cloud Storage bucket.
type GCSPublisher struct {
	client *storage.Client
	bucket string
	fs     afero.Fs
	logger *slog.Logger
}

// NewGCSPublisher creates a GCS client for cfg. When cfg.Endpoint is set the
// client talks to that endpoint without authentication, which is how the
// storage emulator is reached.
func NewGCSPublisher(ctx context.Context, cfg config.StorageConfig, fsys afero.Fs, logger *slog.Logger) (*GCSPublisher, error) {
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return NewGCSPublisherWithClient(client, cfg.Bucket, fsys, logger), nil
}

// NewGCSPublisherWithClient wraps an existing client.
func NewGCSPublisherWithClient(client *storage.Client, bucket string, fsys afero.Fs, logger *slog.Logger) *GCSPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &GCSPublisher{client: client, bucket: bucket, fs: fsys, logger: logger}
}

// BucketName implements task.Publisher.
func (p *GCSPublisher) BucketName() string {
	return p.bucket
}

// Close releases the client.
func (p *GCSPublisher) Close() error {
	return p.client.Close()
}

// Upload implements task.Publisher. The object only becomes visible once the
// writer closes successfully, so a failed upload never leaves a partial object.
func (p *GCSPublisher) Upload(ctx context.Context, localPath, objectKey string) (string, error) {
	key, err := normalizeKey(objectKey)
	if err != nil {
		return "", err
	}

	in, err := p.fs.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open local sink: %w", err)
	}
	defer func() { _ = in.Close() }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := p.client.Bucket(p.bucket).Object(key).NewWriter(ctx)
	w.ContentType = csvContentType

	if _, err := io.Copy(w, in); err != nil {
		// Cancelling before Close aborts the upload.
		cancel()
		_ = w.Close()
		return "", mapGCSError(err)
	}
	if err := w.Close(); err != nil {
		return "", mapGCSError(err)
	}

	attrs := w.Attrs()
	p.logger.Debug("artifact uploaded",
		"bucket", p.bucket,
		"object", attrs.Name,
		"size", attrs.Size)

	return attrs.Name, nil
}

// mapGCSError labels storage failures with phrases the retry classifier
// understands.
func mapGCSError(err error) error {
	if errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("bucket does not exist: %w", err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if label := httpStatusLabel(apiErr.Code); label != "" {
			return fmt.Errorf("%s: %w", label, err)
		}
	}
	return fmt.Errorf("upload failed: %w", err)
}

func httpStatusLabel(code int) string {
	switch {
	case code == http.StatusUnauthorized:
		return "unauthorized"
	case code == http.StatusForbidden:
		return "permission denied"
	case code == http.StatusNotFound:
		return "bucket does not exist"
	case code == http.StatusTooManyRequests:
		return "rate limit exceeded"
	case code == http.StatusRequestTimeout:
		return "timeout"
	case code >= http.StatusInternalServerError:
		return "service unavailable"
	}
	return ""
}
