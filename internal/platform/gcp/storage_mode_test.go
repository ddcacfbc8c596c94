package gcp

import (
	"errors"
	"testing"
)

func TestResolveObjectStorageConfigFromEnv(t *testing.T) {
	cases := []struct {
		name         string
		mode         string
		emulatorHost string
		localDir     string
		want         ObjectStorageMode
		fallback     bool
		wantCode     ObjectStorageConfigErrorCode
	}{
		{name: "default gcs", want: ObjectStorageModeGCS},
		{name: "explicit gcs ignores emulator", mode: "gcs", emulatorHost: "http://fake-gcs:4443", want: ObjectStorageModeGCS},
		{name: "explicit emulator", mode: "GCS_EMULATOR", emulatorHost: "http://fake-gcs:4443", want: ObjectStorageModeGCSEmulator},
		{name: "emulator fallback", emulatorHost: "http://fake-gcs:4443", want: ObjectStorageModeGCSEmulator, fallback: true},
		{name: "local", mode: "local", localDir: "/tmp/media", want: ObjectStorageModeLocal},
		{name: "local without dir", mode: "local", wantCode: ObjectStorageConfigErrorMissingLocalDir},
		{name: "invalid mode", mode: "s3", wantCode: ObjectStorageConfigErrorInvalidMode},
		{name: "emulator missing host", mode: "gcs_emulator", wantCode: ObjectStorageConfigErrorMissingEmulatorHost},
		{name: "emulator bad host", mode: "gcs_emulator", emulatorHost: "fake-gcs:4443", wantCode: ObjectStorageConfigErrorInvalidEmulatorHost},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("OBJECT_STORAGE_MODE", tc.mode)
			t.Setenv("STORAGE_EMULATOR_HOST", tc.emulatorHost)
			t.Setenv("MEDIA_LOCAL_DIR", tc.localDir)

			cfg, err := ResolveObjectStorageConfigFromEnv()
			if tc.wantCode != "" {
				var cfgErr *ObjectStorageConfigError
				if !errors.As(err, &cfgErr) {
					t.Fatalf("expected ObjectStorageConfigError, got %v", err)
				}
				if cfgErr.Code != tc.wantCode {
					t.Fatalf("code: want=%q got=%q", tc.wantCode, cfgErr.Code)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveObjectStorageConfigFromEnv: %v", err)
			}
			if cfg.Mode != tc.want {
				t.Fatalf("mode: want=%q got=%q", tc.want, cfg.Mode)
			}
			if cfg.CompatibilityFallback != tc.fallback {
				t.Fatalf("fallback: want=%v got=%v", tc.fallback, cfg.CompatibilityFallback)
			}
		})
	}
}
