package secretbox

import (
	"errors"
	"testing"
)

func TestSealOpenRoundTrip(t *testing.T) {
	box, err := New("dev-passphrase")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sealed, err := box.Seal("ak_123:sk_456")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if sealed == "ak_123:sk_456" {
		t.Fatalf("sealed value must not equal plaintext")
	}
	plain, err := box.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if plain != "ak_123:sk_456" {
		t.Fatalf("plain mismatch: %q", plain)
	}
}

func TestOpenWithWrongKeyFails(t *testing.T) {
	a, _ := New("key-a")
	b, _ := New("key-b")
	sealed, _ := a.Seal("secret")
	if _, err := b.Open(sealed); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("expected ErrDecrypt, got %v", err)
	}
	if _, err := a.Open("short"); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("expected ErrDecrypt for garbage, got %v", err)
	}
}

func TestNewRejectsEmpty(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatalf("expected error for empty key")
	}
}
