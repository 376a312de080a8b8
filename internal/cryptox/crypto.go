// Package cryptox implements the at-rest protection for stored secrets:
// AES-256-GCM with a self-contained ciphertext format. Each ciphertext
// embeds its random nonce and the GCM auth tag, so a stored value plus the
// process key is everything needed to decrypt it.
//
// Ciphertext format: "v1:" + base64(nonce || sealed), using raw standard
// base64. The prefix doubles as the detection heuristic for the one-time
// migration of legacy plaintext records.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"sentinelkey/internal/common"
)

const ciphertextPrefix = "v1:"

// fallbackKey is the fixed development key used when no key material is
// configured. Ciphertext produced with it is NOT protected; callers must
// check Insecure() and warn loudly.
const fallbackKey = "2rSEVNeyAYlGi8cHIsGnEpdAMHX19X2Hvgf1Nk5NMnM="

// Cipher performs authenticated encryption of secret values with a
// process-wide key.
type Cipher struct {
	aead     cipher.AEAD
	insecure bool
}

// New builds a Cipher from a base64-encoded AES key (16, 24, or 32 bytes
// after decoding). An empty key is an error; use Load for the fallback path.
func New(encodedKey string) (*Cipher, error) {
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: encryption key is not valid base64", common.ErrInvalidInput)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Cipher{aead: aead}, nil
}

// Load builds a Cipher from operator-supplied key material. If encodedKey is
// empty it falls back to the fixed development key and marks the cipher
// insecure so the caller can surface an unmistakable warning.
func Load(encodedKey string) (*Cipher, error) {
	if encodedKey == "" {
		c, err := New(fallbackKey)
		if err != nil {
			return nil, err
		}
		c.insecure = true
		return c, nil
	}
	return New(encodedKey)
}

// Insecure reports whether the cipher is running on the development
// fallback key instead of real key material.
func (c *Cipher) Insecure() bool {
	return c.insecure
}

// EncryptString encrypts a non-empty plaintext and returns the
// self-contained ciphertext string.
func (c *Cipher) EncryptString(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("%w: empty plaintext", common.ErrInvalidInput)
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)

	return ciphertextPrefix + base64.RawStdEncoding.EncodeToString(sealed), nil
}

// DecryptString reverses EncryptString. Tampered, truncated, or malformed
// input, or a wrong key, yields an error matching common.ErrDecrypt; it
// never panics.
func (c *Cipher) DecryptString(ciphertext string) (string, error) {
	encoded, ok := strings.CutPrefix(ciphertext, ciphertextPrefix)
	if !ok {
		return "", fmt.Errorf("%w: missing ciphertext prefix", common.ErrDecrypt)
	}

	raw, err := base64.RawStdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: malformed encoding", common.ErrDecrypt)
	}

	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize+c.aead.Overhead() {
		return "", fmt.Errorf("%w: truncated ciphertext", common.ErrDecrypt)
	}

	plaintext, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrDecrypt, err)
	}

	return string(plaintext), nil
}

// IsCiphertext reports whether a stored value matches the ciphertext format.
// Used by the plaintext migration to tell legacy records apart; it only
// inspects the encoding, not the key.
func IsCiphertext(value string) bool {
	encoded, ok := strings.CutPrefix(value, ciphertextPrefix)
	if !ok {
		return false
	}
	raw, err := base64.RawStdEncoding.DecodeString(encoded)
	if err != nil {
		return false
	}
	// minimal size: 12-byte GCM nonce plus 16-byte tag
	return len(raw) >= 28
}
