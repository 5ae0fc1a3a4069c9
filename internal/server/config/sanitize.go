package config

import "strings"

// Sanitize returns a copy of the config with sensitive fields masked,
// for logging the effective configuration without exposing secrets.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg

	if sanitized.Storage.EncryptionKey != "" {
		sanitized.Storage.EncryptionKey = maskSecret(sanitized.Storage.EncryptionKey)
	}
	if sanitized.Storage.Passphrase != "" {
		sanitized.Storage.Passphrase = "****"
	}

	return &sanitized
}

// maskSecret masks a secret value for safe logging.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
