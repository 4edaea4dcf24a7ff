package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const encryptedSecretPrefix = "enc:v1:"

var errSecretCipherMissing = errors.New("secret encryption key is not configured")

// SecretCipher encrypts TOTP secrets at rest with AES-GCM. A nil cipher is
// valid and stores secrets as-is; Open passes unprefixed values through so
// records written before a key was configured keep working.
type SecretCipher struct {
	key []byte
}

// NewSecretCipher parses the configured key. An empty value yields a nil
// cipher (encryption off).
func NewSecretCipher(raw string) (*SecretCipher, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}

	key, err := parseSecretCipherKey(trimmed)
	if err != nil {
		return nil, err
	}
	return &SecretCipher{key: key}, nil
}

func parseSecretCipherKey(raw string) ([]byte, error) {
	if len(raw) == 64 {
		if decoded, err := hex.DecodeString(raw); err == nil && len(decoded) == 32 {
			return decoded, nil
		}
	}
	if decoded, err := base64.RawStdEncoding.DecodeString(raw); err == nil && len(decoded) == 32 {
		return decoded, nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil && len(decoded) == 32 {
		return decoded, nil
	}
	if len(raw) == 32 {
		return []byte(raw), nil
	}
	return nil, fmt.Errorf("secret encryption key must be 32-byte raw, 64-char hex, or base64")
}

// Seal encrypts a secret for storage. A nil cipher returns the value
// unchanged.
func (c *SecretCipher) Seal(value string) (string, error) {
	if c == nil {
		return value, nil
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nil, nonce, []byte(value), nil)
	payload := append(nonce, ciphertext...)
	return encryptedSecretPrefix + base64.RawStdEncoding.EncodeToString(payload), nil
}

// Open decrypts a stored secret. Values without the version prefix are
// returned as-is; prefixed values require the cipher to be configured.
func (c *SecretCipher) Open(value string) (string, error) {
	if !strings.HasPrefix(value, encryptedSecretPrefix) {
		return value, nil
	}
	if c == nil {
		return "", errSecretCipherMissing
	}

	raw := strings.TrimPrefix(value, encryptedSecretPrefix)
	payload, err := base64.RawStdEncoding.DecodeString(raw)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(payload) < gcm.NonceSize() {
		return "", errors.New("invalid encrypted secret payload")
	}

	nonce := payload[:gcm.NonceSize()]
	ciphertext := payload[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
