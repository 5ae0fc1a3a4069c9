// Package domain defines the core domain models for the Glyph Engine.
package domain

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// Credential constants. Mutations (never first-time creations) must
// carry a credential whose hash matches the one registered for the
// token's source.
const (
	// CredentialPrefix is the prefix for plaintext credentials
	// (sensitive, uses underscore; redacted by the logger).
	CredentialPrefix = "gak_"

	// CredentialHashPrefix is the prefix for credential hashes.
	CredentialHashPrefix = "gkh_"

	// CredentialBytesLength is the number of random bytes generated.
	CredentialBytesLength = 32

	// CredentialBodyLength is the Base64 RawURL encoded length.
	CredentialBodyLength = 43

	// CredentialLength is the total plaintext length (prefix + body).
	CredentialLength = 4 + CredentialBodyLength

	// CredentialHashLength is the total hash length (prefix + hex SHA-256).
	CredentialHashLength = 4 + 64
)

// GenerateCredential generates a cryptographically secure mutation
// credential. Returns the plaintext (gak_...) and its hash (gkh_...).
//
// The plaintext is shown to the operator exactly once; only the hash is
// ever stored or logged.
func GenerateCredential() (plaintext, hash string, err error) {
	bytes := make([]byte, CredentialBytesLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", ErrInternal.WithCause(err)
	}

	plaintext = CredentialPrefix + base64.RawURLEncoding.EncodeToString(bytes)
	return plaintext, HashCredential(plaintext), nil
}

// HashCredential computes the SHA-256 hash of a credential.
// Returns the hash in format gkh_{hex_sha256}.
func HashCredential(plaintext string) string {
	h := sha256.Sum256([]byte(plaintext))
	return CredentialHashPrefix + hex.EncodeToString(h[:])
}

// ValidCredentialFormat checks if a string has valid credential format.
func ValidCredentialFormat(cred string) bool {
	if len(cred) != CredentialLength {
		return false
	}
	if !strings.HasPrefix(cred, CredentialPrefix) {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(cred[len(CredentialPrefix):])
	return err == nil
}

// ValidCredentialHashFormat checks if a string has valid hash format.
func ValidCredentialHashFormat(hash string) bool {
	if len(hash) != CredentialHashLength {
		return false
	}
	if !strings.HasPrefix(hash, CredentialHashPrefix) {
		return false
	}
	_, err := hex.DecodeString(hash[len(CredentialHashPrefix):])
	return err == nil
}

// MatchCredential compares a plaintext credential against a stored hash
// in constant time.
func MatchCredential(plaintext, storedHash string) bool {
	if !ValidCredentialFormat(plaintext) || !ValidCredentialHashFormat(storedHash) {
		return false
	}
	computed := HashCredential(plaintext)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}

// MaskCredential masks a credential for safe logging.
// Example: gak_ABC...xyz
func MaskCredential(cred string) string {
	if len(cred) < 10 || !strings.HasPrefix(cred, CredentialPrefix) {
		return "***REDACTED***"
	}
	body := cred[len(CredentialPrefix):]
	if len(body) > 6 {
		return CredentialPrefix + body[:3] + "..." + body[len(body)-3:]
	}
	return CredentialPrefix + "***"
}
