package gcp

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/pandoapps/videoSoryBoard/internal/platform/dbctx"
)

func TestResolveObjectStoragePublicBaseURLGCSDefault(t *testing.T) {
	t.Setenv("OBJECT_STORAGE_PUBLIC_BASE_URL", "")

	baseURL, source, err := resolveObjectStoragePublicBaseURL(ObjectStorageConfig{Mode: ObjectStorageModeGCS})
	if err != nil {
		t.Fatalf("resolveObjectStoragePublicBaseURL: %v", err)
	}
	if baseURL != "" || source != "gcs_default" {
		t.Fatalf("unexpected base=%q source=%q", baseURL, source)
	}
}

func TestResolveObjectStoragePublicBaseURLEmulatorFallback(t *testing.T) {
	t.Setenv("OBJECT_STORAGE_PUBLIC_BASE_URL", "")

	baseURL, source, err := resolveObjectStoragePublicBaseURL(ObjectStorageConfig{
		Mode:         ObjectStorageModeGCSEmulator,
		EmulatorHost: "http://fake-gcs:4443/",
	})
	if err != nil {
		t.Fatalf("resolveObjectStoragePublicBaseURL: %v", err)
	}
	if baseURL != "http://fake-gcs:4443" {
		t.Fatalf("baseURL: want=%q got=%q", "http://fake-gcs:4443", baseURL)
	}
	if source != "storage_emulator_host" {
		t.Fatalf("source: want=%q got=%q", "storage_emulator_host", source)
	}
}

func TestResolveObjectStoragePublicBaseURLLocalDefault(t *testing.T) {
	t.Setenv("OBJECT_STORAGE_PUBLIC_BASE_URL", "")
	t.Setenv("PORT", "9090")

	baseURL, _, err := resolveObjectStoragePublicBaseURL(ObjectStorageConfig{Mode: ObjectStorageModeLocal, LocalDir: "/tmp/x"})
	if err != nil {
		t.Fatalf("resolveObjectStoragePublicBaseURL: %v", err)
	}
	if baseURL != "http://localhost:9090/media" {
		t.Fatalf("baseURL: got=%q", baseURL)
	}
}

func TestResolveObjectStoragePublicBaseURLInvalidEnv(t *testing.T) {
	t.Setenv("OBJECT_STORAGE_PUBLIC_BASE_URL", "localhost:4443")

	_, _, err := resolveObjectStoragePublicBaseURL(ObjectStorageConfig{Mode: ObjectStorageModeGCS})
	if err == nil {
		t.Fatalf("resolveObjectStoragePublicBaseURL: expected error, got nil")
	}
}

func TestGetPublicURLVariants(t *testing.T) {
	cases := []struct {
		name string
		bs   *bucketService
		key  string
		want string
	}{
		{
			name: "gcs default",
			bs:   &bucketService{bucketName: "media"},
			key:  "stories/1/videos/a.mp4",
			want: "https://storage.googleapis.com/media/stories/1/videos/a.mp4",
		},
		{
			name: "cdn",
			bs:   &bucketService{bucketName: "media", cdnDomain: "cdn.example.com"},
			key:  "/stories/1/frames/b.png",
			want: "https://cdn.example.com/stories/1/frames/b.png",
		},
		{
			name: "public base",
			bs:   &bucketService{bucketName: "media", publicBaseURL: "http://localhost:4443"},
			key:  "characters/c.jpg",
			want: "http://localhost:4443/media/characters/c.jpg",
		},
		{
			name: "emulator media endpoint",
			bs:   &bucketService{bucketName: "media", storageMode: ObjectStorageModeGCSEmulator, emulatorHost: "http://fake-gcs:4443"},
			key:  "stories/1/videos/a.mp4",
			want: "http://fake-gcs:4443/storage/v1/b/media/o/stories%2F1%2Fvideos%2Fa.mp4?alt=media",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.bs.GetPublicURL(tc.key); got != tc.want {
				t.Fatalf("GetPublicURL: want=%q got=%q", tc.want, got)
			}
		})
	}
}

func TestContentTypeForKey(t *testing.T) {
	cases := map[string]string{
		"a/b.PNG":       "image/png",
		"a/b.jpeg":      "image/jpeg",
		"a/b.mp4?sig=1": "video/mp4",
		"a/b.mov":       "video/quicktime",
		"a/b.bin":       "",
	}
	for key, want := range cases {
		if got := ContentTypeForKey(key); got != want {
			t.Fatalf("ContentTypeForKey(%q): want=%q got=%q", key, want, got)
		}
	}
}

func TestLocalBucketLifecycle(t *testing.T) {
	bs, err := NewLocalBucketService(t.TempDir(), "http://localhost:8080/media/")
	if err != nil {
		t.Fatalf("NewLocalBucketService: %v", err)
	}
	ctx := context.Background()
	key := "stories/s1/videos/final.mp4"
	if err := bs.UploadFile(dbctx.Context{Ctx: ctx}, key, bytes.NewReader([]byte("mp4data"))); err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	attrs, err := bs.GetObjectAttrs(ctx, key)
	if err != nil {
		t.Fatalf("GetObjectAttrs: %v", err)
	}
	if attrs.Size != 7 || attrs.ContentType != "video/mp4" {
		t.Fatalf("unexpected attrs %+v", attrs)
	}
	rc, err := bs.DownloadFile(ctx, key)
	if err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "mp4data" {
		t.Fatalf("body mismatch %q", body)
	}
	if got := bs.GetPublicURL(key); got != "http://localhost:8080/media/"+key {
		t.Fatalf("GetPublicURL: got=%q", got)
	}
	if err := bs.DeleteFile(dbctx.Context{Ctx: ctx}, key); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if err := bs.DeleteFile(dbctx.Context{Ctx: ctx}, key); err != nil {
		t.Fatalf("second DeleteFile should be a no-op: %v", err)
	}
	if _, err := bs.GetObjectAttrs(ctx, key); err == nil {
		t.Fatalf("expected missing object")
	}
}

func TestLocalBucketRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	bs, err := NewLocalBucketService(root, "http://x")
	if err != nil {
		t.Fatalf("NewLocalBucketService: %v", err)
	}
	if err := bs.UploadFile(dbctx.Context{}, "../../escape.txt", strings.NewReader("x")); err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if _, err := bs.GetObjectAttrs(context.Background(), "escape.txt"); err != nil {
		t.Fatalf("traversal key should be confined to root: %v", err)
	}
}
