// Package adaptive provides authenticated encryption with automatic
// algorithm selection.
package adaptive

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
)

// AESGCM implements AES-256-GCM authenticated encryption.
type AESGCM struct {
	baseCipher
}

// NewAESGCM creates a new AES-GCM cipher. Key must be 32 bytes.
func NewAESGCM(key []byte) (*AESGCM, error) {
	if len(key) != KeySize {
		return nil, errors.New("invalid key size for AES-GCM: must be 32 bytes")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESGCM{baseCipher{aead}}, nil
}

// Type returns the cipher type.
func (c *AESGCM) Type() CipherType { return CipherAESGCM }

// Encrypt seals plaintext with additional data.
func (c *AESGCM) Encrypt(plaintext, additionalData []byte) ([]byte, error) {
	return c.encrypt(plaintext, additionalData)
}

// Decrypt opens ciphertext with additional data.
func (c *AESGCM) Decrypt(ciphertext, additionalData []byte) ([]byte, error) {
	return c.decrypt(ciphertext, additionalData)
}
