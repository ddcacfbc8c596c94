package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pandoapps/videoSoryBoard/internal/platform/dbctx"
	"github.com/pandoapps/videoSoryBoard/internal/platform/gcp"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
)

// StoredMedia is the object key and public URL of one persisted file.
type StoredMedia struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// MediaStore persists generated media under "{dir}/{uuid}.{ext}" keys.
type MediaStore interface {
	Download(ctx context.Context, remoteURL, dir, ext string) (StoredMedia, error)
	Store(ctx context.Context, content []byte, dir, ext string) (StoredMedia, error)
	StoreReader(ctx context.Context, r io.Reader, dir, ext string) (StoredMedia, error)
	StoreFromPath(ctx context.Context, localPath, dir, ext string) (StoredMedia, error)
	// DownloadToFile fetches a URL into a local file. URLs served by this store are
	// read straight from the bucket.
	DownloadToFile(ctx context.Context, remoteURL, dst string) error
	Delete(ctx context.Context, key string) error
	// DeleteDir removes every object under dir.
	DeleteDir(ctx context.Context, dir string) error
	URL(key string) string
}

type mediaStore struct {
	log    *logger.Logger
	bucket gcp.BucketService
	hc     *http.Client
}

func NewMediaStore(baseLog *logger.Logger, bucket gcp.BucketService, hc *http.Client) MediaStore {
	if hc == nil {
		hc = &http.Client{Timeout: 120 * time.Second}
	}
	return &mediaStore{
		log:    baseLog.With("service", "MediaStore"),
		bucket: bucket,
		hc:     hc,
	}
}

var (
	imageExts = map[string]bool{"jpg": true, "jpeg": true, "png": true, "webp": true, "gif": true}
	videoExts = map[string]bool{"mp4": true, "webm": true, "mov": true}
)

// GuessExtension picks the file extension from a URL path, defaulting to jpg.
func GuessExtension(remoteURL string) string {
	p := remoteURL
	if u, err := url.Parse(remoteURL); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	if imageExts[ext] || videoExts[ext] {
		return ext
	}
	return "jpg"
}

func newKey(dir, ext string) string {
	dir = strings.Trim(dir, "/")
	return fmt.Sprintf("%s/%s.%s", dir, uuid.New().String(), strings.TrimPrefix(ext, "."))
}

func (m *mediaStore) fetch(ctx context.Context, remoteURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return nil, fmt.Errorf("Failed to download media from: %s", remoteURL)
	}
	resp, err := m.hc.Do(req)
	if err != nil {
		m.log.Warn("media download failed", "url", remoteURL, "error", err)
		return nil, fmt.Errorf("Failed to download media from: %s", remoteURL)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		m.log.Warn("media download failed", "url", remoteURL, "status", resp.StatusCode)
		return nil, fmt.Errorf("Failed to download media from: %s", remoteURL)
	}
	return resp.Body, nil
}

func (m *mediaStore) Download(ctx context.Context, remoteURL, dir, ext string) (StoredMedia, error) {
	if ext == "" {
		ext = GuessExtension(remoteURL)
	}
	body, err := m.fetch(ctx, remoteURL)
	if err != nil {
		return StoredMedia{}, err
	}
	defer body.Close()
	return m.StoreReader(ctx, body, dir, ext)
}

// ownKey maps a public URL of this store back to its object key.
func (m *mediaStore) ownKey(remoteURL string) (string, bool) {
	base := m.bucket.GetPublicURL("")
	if base == "" || !strings.HasPrefix(remoteURL, base) {
		return "", false
	}
	key := strings.TrimPrefix(remoteURL, base)
	if key == "" || strings.ContainsAny(key, "?#") {
		return "", false
	}
	return key, true
}

func (m *mediaStore) open(ctx context.Context, remoteURL string) (io.ReadCloser, error) {
	key, ok := m.ownKey(remoteURL)
	if !ok {
		return m.fetch(ctx, remoteURL)
	}
	attrs, err := m.bucket.GetObjectAttrs(ctx, key)
	if err != nil {
		m.log.Warn("stored media missing", "key", key, "error", err)
		return nil, fmt.Errorf("Failed to download media from: %s", remoteURL)
	}
	if attrs.Size == 0 {
		return nil, fmt.Errorf("Downloaded file is empty: %s", remoteURL)
	}
	rc, err := m.bucket.DownloadFile(ctx, key)
	if err != nil {
		m.log.Warn("stored media read failed", "key", key, "error", err)
		return nil, fmt.Errorf("Failed to download media from: %s", remoteURL)
	}
	return rc, nil
}

func (m *mediaStore) DownloadToFile(ctx context.Context, remoteURL, dst string) error {
	body, err := m.open(ctx, remoteURL)
	if err != nil {
		return err
	}
	defer body.Close()
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	n, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("Failed to download media from: %s", remoteURL)
	}
	if n == 0 {
		return fmt.Errorf("Downloaded file is empty: %s", remoteURL)
	}
	return nil
}

func (m *mediaStore) Store(ctx context.Context, content []byte, dir, ext string) (StoredMedia, error) {
	return m.StoreReader(ctx, bytes.NewReader(content), dir, ext)
}

func (m *mediaStore) StoreReader(ctx context.Context, r io.Reader, dir, ext string) (StoredMedia, error) {
	key := newKey(dir, ext)
	if err := m.bucket.UploadFile(dbctx.Context{Ctx: ctx}, key, r); err != nil {
		return StoredMedia{}, fmt.Errorf("store %s: %w", key, err)
	}
	return StoredMedia{Path: key, URL: m.bucket.GetPublicURL(key)}, nil
}

func (m *mediaStore) StoreFromPath(ctx context.Context, localPath, dir, ext string) (StoredMedia, error) {
	if ext == "" {
		ext = strings.TrimPrefix(filepath.Ext(localPath), ".")
		if ext == "" {
			ext = "bin"
		}
	}
	f, err := os.Open(localPath)
	if err != nil {
		return StoredMedia{}, err
	}
	defer f.Close()
	return m.StoreReader(ctx, f, dir, ext)
}

func (m *mediaStore) Delete(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return nil
	}
	return m.bucket.DeleteFile(dbctx.Context{Ctx: ctx}, key)
}

func (m *mediaStore) DeleteDir(ctx context.Context, dir string) error {
	dir = strings.Trim(strings.TrimSpace(dir), "/")
	if dir == "" {
		return nil
	}
	return m.bucket.DeletePrefix(ctx, dir+"/")
}

func (m *mediaStore) URL(key string) string {
	return m.bucket.GetPublicURL(key)
}
