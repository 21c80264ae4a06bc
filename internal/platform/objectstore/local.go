package objectstore

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"

	"github.com/spf13/afero"
)

// LocalPublisher stores artifacts under <root>/<bucket>/<key> on a filesystem.
type LocalPublisher struct {
	root   string
	bucket string
	src    afero.Fs
	dst    afero.Fs
}

// NewLocalPublisher creates a LocalPublisher that reads sinks from src and
// writes artifacts to dst.
func NewLocalPublisher(root, bucket string, src, dst afero.Fs) *LocalPublisher {
	return &LocalPublisher{root: root, bucket: bucket, src: src, dst: dst}
}

// BucketName implements task.Publisher.
func (p *LocalPublisher) BucketName() string {
	return p.bucket
}

// Path returns where key is stored.
func (p *LocalPublisher) Path(key string) string {
	return filepath.Join(p.root, p.bucket, filepath.FromSlash(key))
}

// Upload implements task.Publisher. The artifact is written to a temporary
// name and renamed into place, so readers never see a partial object.
func (p *LocalPublisher) Upload(ctx context.Context, localPath, objectKey string) (string, error) {
	key, err := normalizeKey(objectKey)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	in, err := p.src.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open local sink: %w", err)
	}
	defer func() { _ = in.Close() }()

	dest := p.Path(key)
	if err := p.dst.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return "", fmt.Errorf("failed to create object directory: %w", err)
	}

	tmp := dest + ".partial"
	out, err := p.dst.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("failed to create object: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = p.dst.Remove(tmp)
		return "", fmt.Errorf("failed to write object: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = p.dst.Remove(tmp)
		return "", fmt.Errorf("failed to write object: %w", err)
	}
	if err := p.dst.Rename(tmp, dest); err != nil {
		_ = p.dst.Remove(tmp)
		return "", fmt.Errorf("failed to commit object: %w", err)
	}

	return path.Clean(key), nil
}
