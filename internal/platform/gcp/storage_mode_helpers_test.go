package gcp

import "testing"

func TestObjectStorageModeHelpers(t *testing.T) {
	for _, m := range []ObjectStorageMode{ObjectStorageModeGCS, ObjectStorageModeGCSEmulator, ObjectStorageModeLocal} {
		if !IsSupportedObjectStorageMode(m) {
			t.Fatalf("%s should be supported", m)
		}
	}
	if IsSupportedObjectStorageMode(ObjectStorageMode("invalid")) {
		t.Fatalf("invalid mode should not be supported")
	}

	cfg := ObjectStorageConfig{Mode: ObjectStorageModeGCS}
	if cfg.IsEmulatorMode() || cfg.ModeSource() != "explicit_or_default" {
		t.Fatalf("unexpected gcs helpers: emulator=%v source=%q", cfg.IsEmulatorMode(), cfg.ModeSource())
	}
	cfg = ObjectStorageConfig{Mode: ObjectStorageModeGCSEmulator, CompatibilityFallback: true}
	if !cfg.IsEmulatorMode() || cfg.ModeSource() != "compatibility_fallback" {
		t.Fatalf("unexpected emulator helpers: emulator=%v source=%q", cfg.IsEmulatorMode(), cfg.ModeSource())
	}
}
