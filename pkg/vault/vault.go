// Package vault encrypts and decrypts per-tenant third-party credentials
// with AES-256-GCM, using the wire format "enc:<iv_b64>:<tag_b64>:<ciphertext_b64>".
// If no key is configured, it falls back to storing "plain:<value>" and logs
// a one-time warning — the engine must stay usable in development without a
// key, but every call site can tell a plaintext credential from an
// encrypted one by its prefix.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/loomctl/loom/pkg/apperr"
)

const (
	encPrefix   = "enc:"
	plainPrefix = "plain:"
)

type Vault struct {
	gcm cipher.AEAD // nil if no key configured

	warnOnce sync.Once
}

// New builds a Vault from a hex-encoded 32-byte key. An empty key is
// accepted and puts the Vault into plaintext-fallback mode.
func New(keyHex string) (*Vault, error) {
	if keyHex == "" {
		return &Vault{}, nil
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("vault: invalid key hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("vault: key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}
	return &Vault{gcm: gcm}, nil
}

// Encrypt returns the wire-format string to persist for plaintext.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if v.gcm == nil {
		v.warnOnce.Do(func() {
			slog.Warn("vault: no encryption key configured, storing credentials as plaintext")
		})
		return plainPrefix + plaintext, nil
	}

	nonce := make([]byte, v.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("vault: generate nonce: %w", err)
	}

	sealed := v.gcm.Seal(nil, nonce, []byte(plaintext), nil)
	tagStart := len(sealed) - v.gcm.Overhead()
	ciphertext, tag := sealed[:tagStart], sealed[tagStart:]

	return fmt.Sprintf("%s%s:%s:%s", encPrefix,
		base64.StdEncoding.EncodeToString(nonce),
		base64.StdEncoding.EncodeToString(tag),
		base64.StdEncoding.EncodeToString(ciphertext)), nil
}

// Decrypt recovers the plaintext from either wire format.
func (v *Vault) Decrypt(wire string) (string, error) {
	switch {
	case strings.HasPrefix(wire, plainPrefix):
		return strings.TrimPrefix(wire, plainPrefix), nil
	case strings.HasPrefix(wire, encPrefix):
		return v.decryptEnc(wire)
	default:
		return "", apperr.Internalf("vault: unrecognized credential wire format")
	}
}

func (v *Vault) decryptEnc(wire string) (string, error) {
	if v.gcm == nil {
		return "", apperr.Misconfiguredf("vault: encrypted credential present but no key configured")
	}
	parts := strings.SplitN(strings.TrimPrefix(wire, encPrefix), ":", 3)
	if len(parts) != 3 {
		return "", apperr.Internalf("vault: malformed ciphertext")
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", apperr.Internalf("vault: malformed nonce")
	}
	tag, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", apperr.Internalf("vault: malformed tag")
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return "", apperr.Internalf("vault: malformed ciphertext")
	}
	plaintext, err := v.gcm.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, err, "vault: decryption failed")
	}
	return string(plaintext), nil
}
