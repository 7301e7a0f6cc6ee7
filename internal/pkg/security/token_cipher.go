package security

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// EncryptedPrefix marks values produced by TokenCipher.Encrypt.
const EncryptedPrefix = "enc:v1:"

var ErrMalformedCiphertext = errors.New("malformed ciphertext")

// TokenCipher seals OAuth tokens at rest with XChaCha20-Poly1305.
// A cipher built without a key passes values through unchanged, which keeps
// local development usable; values written that way carry no prefix.
type TokenCipher struct {
	key []byte
}

// NewTokenCipher builds a cipher from a hex-encoded 32-byte key. An empty key
// yields a pass-through cipher.
func NewTokenCipher(keyHex string) (*TokenCipher, error) {
	keyHex = strings.TrimSpace(keyHex)
	if keyHex == "" {
		return &TokenCipher{}, nil
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode hex key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("invalid key length: must be %d bytes", chacha20poly1305.KeySize)
	}
	return &TokenCipher{key: key}, nil
}

// Enabled reports whether the cipher encrypts.
func (c *TokenCipher) Enabled() bool {
	return c != nil && len(c.key) > 0
}

func (c *TokenCipher) Encrypt(plain string) (string, error) {
	if !c.Enabled() || plain == "" {
		return plain, nil
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plain), nil)
	return EncryptedPrefix + base64.RawStdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Values without the prefix are returned as stored.
func (c *TokenCipher) Decrypt(stored string) (string, error) {
	if !strings.HasPrefix(stored, EncryptedPrefix) {
		return stored, nil
	}
	if !c.Enabled() {
		return "", errors.New("encrypted token found but TOKEN_ENCRYPTION_KEY is not set")
	}
	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(stored, EncryptedPrefix))
	if err != nil {
		return "", ErrMalformedCiphertext
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", ErrMalformedCiphertext
	}
	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt token: %w", err)
	}
	return string(plain), nil
}
