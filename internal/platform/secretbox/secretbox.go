package secretbox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

var ErrDecrypt = errors.New("secretbox: decryption failed")

// Box seals short secrets (provider API keys) with a 32-byte key.
type Box struct {
	key [32]byte
}

// New derives the box key from an arbitrary passphrase; a 32-byte base64 key is used as-is.
func New(passphrase string) (*Box, error) {
	passphrase = strings.TrimSpace(passphrase)
	if passphrase == "" {
		return nil, errors.New("secretbox: empty key")
	}
	b := &Box{}
	if raw, err := base64.StdEncoding.DecodeString(passphrase); err == nil && len(raw) == 32 {
		copy(b.key[:], raw)
		return b, nil
	}
	b.key = sha256.Sum256([]byte(passphrase))
	return b, nil
}

// Seal returns base64(nonce || ciphertext).
func (b *Box) Seal(plain string) (string, error) {
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("secretbox nonce: %w", err)
	}
	out := secretbox.Seal(nonce[:], []byte(plain), &nonce, &b.key)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (b *Box) Open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(sealed))
	if err != nil || len(raw) < 24+secretbox.Overhead {
		return "", ErrDecrypt
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	plain, ok := secretbox.Open(nil, raw[24:], &nonce, &b.key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plain), nil
}
