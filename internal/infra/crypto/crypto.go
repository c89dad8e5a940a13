// Package crypto seals persisted issue documents with AES-256-GCM.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/runoshun/issue-crew/internal/domain"
)

// KeyLen is the AES-256 key length in bytes. Keys are configured as hex, so
// the configured string is twice as long.
const KeyLen = 32

var (
	ErrTruncated  = errors.New("sealed document is truncated")
	ErrOpenFailed = errors.New("sealed document failed authentication: wrong key or tampered data")
)

// Sealer encrypts and authenticates documents. Output layout is nonce || ciphertext || tag.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer parses a 64-character hex key.
func NewSealer(hexKey string) (*Sealer, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil || len(key) != KeyLen {
		return nil, domain.ErrInvalidEncryptionKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm mode: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts plain under a random nonce, so equal inputs never produce equal output.
func (s *Sealer) Seal(plain []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plain)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plain, nil), nil
}

// Open authenticates and decrypts a document produced by Seal.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(sealed) < n+s.aead.Overhead() {
		return nil, ErrTruncated
	}
	plain, err := s.aead.Open(nil, sealed[:n], sealed[n:], nil)
	if err != nil {
		return nil, ErrOpenFailed
	}
	return plain, nil
}
