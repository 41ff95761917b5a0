// Package cryptoutil seals values written to durable client storage.
package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Sealer encrypts and decrypts values held at rest.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

const (
	// Versioned prefix to allow future key/algorithm rotations without wiping storage.
	sealedPrefixV1 = "v1:"
	plainPrefix    = "plain:"
)

// ErrUnknownFormat is returned when a stored value carries no recognised prefix.
var ErrUnknownFormat = errors.New("unknown sealed value format")

// AESGCMSealer implements Sealer using AES-256-GCM.
type AESGCMSealer struct {
	aead cipher.AEAD
}

// NewAESGCMSealer constructs a new AESGCMSealer. Key must be 32 bytes (AES-256).
func NewAESGCMSealer(key []byte) (*AESGCMSealer, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("aes-gcm key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESGCMSealer{aead: aead}, nil
}

// KeyFromString derives a 32-byte key from configuration.
// Accepted forms: standard base64 of 32 bytes, hex of 32 bytes, or any passphrase (hashed with SHA-256).
func KeyFromString(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("encryption key is required")
	}
	if decoded, err := base64.StdEncoding.DecodeString(s); err == nil && len(decoded) == 32 {
		return decoded, nil
	}
	if decoded, err := hex.DecodeString(s); err == nil && len(decoded) == 32 {
		return decoded, nil
	}
	sum := sha256.Sum256([]byte(s))
	return sum[:], nil
}

// Seal encrypts plaintext with a random nonce and returns a versioned base64 string.
func (s *AESGCMSealer) Seal(plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	// Stored as nonce||ciphertext.
	buf := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefixV1 + base64.StdEncoding.EncodeToString(buf), nil
}

// Open decrypts a value created by Seal. Values written by PlainSealer are
// accepted so enabling encryption does not strand an existing credential.
func (s *AESGCMSealer) Open(sealed string) (string, error) {
	if strings.HasPrefix(sealed, plainPrefix) {
		return PlainSealer{}.Open(sealed)
	}
	if !strings.HasPrefix(sealed, sealedPrefixV1) {
		return "", ErrUnknownFormat
	}
	data, err := base64.StdEncoding.DecodeString(sealed[len(sealedPrefixV1):])
	if err != nil {
		return "", fmt.Errorf("decode sealed value: %w", err)
	}
	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}
	pt, err := s.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

// PlainSealer stores values unencrypted with a prefix marker.
type PlainSealer struct{}

func (PlainSealer) Seal(plaintext string) (string, error) {
	return plainPrefix + plaintext, nil
}

func (PlainSealer) Open(sealed string) (string, error) {
	if !strings.HasPrefix(sealed, plainPrefix) {
		return "", ErrUnknownFormat
	}
	return sealed[len(plainPrefix):], nil
}
