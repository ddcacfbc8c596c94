package logger

import (
	"strings"
	"testing"
)

func TestSanitizeKVsRedactsSecrets(t *testing.T) {
	out := sanitizeKVs([]interface{}{
		"api_key", "sk-live-123",
		"kling_secret", "ak:sk",
		"story_id", "abc",
	})
	if len(out) != 6 {
		t.Fatalf("len: want=6 got=%d", len(out))
	}
	if out[1] != "[REDACTED]" || out[3] != "[REDACTED]" {
		t.Fatalf("expected secrets redacted, got=%v", out)
	}
	if out[5] != "abc" {
		t.Fatalf("story_id should pass through, got=%v", out[5])
	}
}

func TestSanitizeKVsHashesUserIDs(t *testing.T) {
	out := sanitizeKVs([]interface{}{"owner_user_id", "0b7a4c1e-0000-4000-8000-000000000001"})
	got, _ := out[1].(string)
	if !strings.HasPrefix(got, "hash:") || len(got) != len("hash:")+12 {
		t.Fatalf("unexpected hash value %q", got)
	}
}

func TestSanitizeNestedMaps(t *testing.T) {
	out := sanitizeKVs([]interface{}{"payload", map[string]interface{}{
		"authorization": "Bearer x",
		"prompt":        "a cat",
	}})
	m, ok := out[1].(map[string]interface{})
	if !ok {
		t.Fatalf("expected map, got %T", out[1])
	}
	if m["authorization"] != "[REDACTED]" || m["prompt"] != "a cat" {
		t.Fatalf("unexpected nested sanitize result: %v", m)
	}
}

func TestLooksLikeJWT(t *testing.T) {
	if !looksLikeJWT("eyJhbGciOiJIUzI1NiJ9.eyJpc3MiOiJha19hYmMifQ.sig") {
		t.Fatalf("expected jwt-shaped string to match")
	}
	if looksLikeJWT("stories/1/videos/a.mp4") {
		t.Fatalf("path should not match")
	}
}
