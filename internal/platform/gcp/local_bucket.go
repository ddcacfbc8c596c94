package gcp

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pandoapps/videoSoryBoard/internal/platform/dbctx"
)

// localBucket implements BucketService on a directory, for development and tests.
type localBucket struct {
	root          string
	publicBaseURL string
}

func newLocalBucket(root, publicBaseURL string) (*localBucket, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve MEDIA_LOCAL_DIR: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create MEDIA_LOCAL_DIR: %w", err)
	}
	return &localBucket{root: abs, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

// NewLocalBucketService is used by tests and by local development setups.
func NewLocalBucketService(root, publicBaseURL string) (BucketService, error) {
	return newLocalBucket(root, publicBaseURL)
}

func (b *localBucket) path(key string) (string, error) {
	clean := filepath.Clean("/" + strings.TrimLeft(key, "/"))
	if clean == "/" {
		return "", fmt.Errorf("empty object key")
	}
	return filepath.Join(b.root, filepath.FromSlash(clean)), nil
}

func (b *localBucket) UploadFile(_ dbctx.Context, key string, file io.Reader) error {
	p, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.Create(p)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, file); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	return f.Close()
}

func (b *localBucket) DeleteFile(_ dbctx.Context, key string) error {
	p, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (b *localBucket) DownloadFile(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := b.path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

func (b *localBucket) GetObjectAttrs(_ context.Context, key string) (*ObjectAttrs, error) {
	p, err := b.path(key)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	return &ObjectAttrs{Size: st.Size(), ContentType: ContentTypeForKey(key), Updated: st.ModTime()}, nil
}

func (b *localBucket) DeletePrefix(_ context.Context, prefix string) error {
	p, err := b.path(prefix)
	if err != nil {
		return err
	}
	return os.RemoveAll(p)
}

func (b *localBucket) GetPublicURL(key string) string {
	return b.publicBaseURL + "/" + strings.TrimLeft(strings.TrimSpace(key), "/")
}
