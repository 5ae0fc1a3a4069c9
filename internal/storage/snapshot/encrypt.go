package snapshot

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"

	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/pkg/crypto/adaptive"
)

// Encryption errors.
var (
	ErrKeyTooShort       = errors.New("snapshot: encryption key too short (minimum 16 bytes)")
	ErrPassphraseTooWeak = errors.New("snapshot: passphrase too weak (minimum 8 characters)")
)

const (
	// MinKeyLength is the minimum key length for encryption.
	MinKeyLength = 16

	// MinPassphraseLength is the minimum passphrase length.
	MinPassphraseLength = 8

	// SaltLength is the fixed salt length used in key derivation.
	SaltLength = 16

	// Argon2id parameters for key derivation from a passphrase.
	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2KeyLen  = 32
)

// EncryptionConfig configures snapshot and WAL encryption.
type EncryptionConfig struct {
	// Key is the raw encryption key (32 bytes). Either Key or
	// Passphrase must be provided.
	Key []byte

	// Passphrase is used to derive the encryption key. If provided,
	// Key is ignored.
	Passphrase []byte

	// Salt is required to derive the same key for decryption.
	// If nil, a new random salt is generated (encryption path) and
	// returned to the caller for persistence.
	Salt []byte

	// Algorithm specifies the encryption algorithm.
	// Supported: "aes-gcm" (default), "chacha20-poly1305".
	Algorithm string
}

// ValidateConfig validates the encryption configuration.
func ValidateConfig(cfg EncryptionConfig) error {
	if len(cfg.Passphrase) > 0 {
		if len(cfg.Passphrase) < MinPassphraseLength {
			return ErrPassphraseTooWeak
		}
		return nil
	}

	if len(cfg.Key) > 0 && len(cfg.Key) < MinKeyLength {
		return ErrKeyTooShort
	}

	return nil
}

// NewCipherFromConfig creates a cipher from the encryption configuration.
// For passphrase-based derivation it returns the salt that was used;
// the caller must persist it to decrypt later.
func NewCipherFromConfig(cfg EncryptionConfig) (adaptive.Cipher, []byte, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, nil, err
	}

	var key, salt []byte
	switch {
	case len(cfg.Passphrase) > 0:
		var err error
		salt, key, err = DeriveKeyFromPassphrase(cfg.Passphrase, cfg.Salt)
		if err != nil {
			return nil, nil, err
		}
	case len(cfg.Key) > 0:
		key = cfg.Key
	default:
		// No encryption configured.
		return nil, nil, nil
	}

	algo := cfg.Algorithm
	if algo == "" {
		algo = "aes-gcm"
	}

	switch algo {
	case "aes-gcm":
		c, err := adaptive.NewAESGCM(key)
		return c, salt, err
	case "chacha20-poly1305":
		c, err := adaptive.NewChaCha20(key)
		return c, salt, err
	default:
		return nil, nil, fmt.Errorf("snapshot: unsupported algorithm: %s", algo)
	}
}

// DeriveKeyFromPassphrase derives a 32-byte key from a passphrase
// using Argon2id. If salt is nil, a new random salt is generated.
// Returns the salt alongside the key so decryption can reproduce it.
func DeriveKeyFromPassphrase(passphrase, salt []byte) ([]byte, []byte, error) {
	if salt == nil {
		salt = make([]byte, SaltLength)
		if _, err := rand.Read(salt); err != nil {
			return nil, nil, fmt.Errorf("snapshot: derive key: %w", err)
		}
	}

	key := argon2.IDKey(
		passphrase,
		salt,
		argon2Time,
		argon2Memory,
		argon2Threads,
		argon2KeyLen,
	)
	return salt, key, nil
}

// GenerateKey generates a random encryption key of the specified length.
func GenerateKey(length int) ([]byte, error) {
	if length < MinKeyLength {
		return nil, ErrKeyTooShort
	}

	key := make([]byte, length)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("snapshot: generate key: %w", err)
	}
	return key, nil
}

// ZeroKey zeros a key in memory.
func ZeroKey(key []byte) {
	for i := range key {
		key[i] = 0
	}
}
