package snapshot

import (
	"bytes"
	"errors"
	"testing"
)

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     EncryptionConfig
		wantErr error
	}{
		{
			name:    "empty config is valid",
			cfg:     EncryptionConfig{},
			wantErr: nil,
		},
		{
			name:    "valid key",
			cfg:     EncryptionConfig{Key: make([]byte, 32)},
			wantErr: nil,
		},
		{
			name:    "key too short",
			cfg:     EncryptionConfig{Key: make([]byte, 8)},
			wantErr: ErrKeyTooShort,
		},
		{
			name:    "valid passphrase",
			cfg:     EncryptionConfig{Passphrase: []byte("hunter2-extended")},
			wantErr: nil,
		},
		{
			name:    "passphrase too weak",
			cfg:     EncryptionConfig{Passphrase: []byte("short")},
			wantErr: ErrPassphraseTooWeak,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateConfig = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewCipherFromConfig_NoEncryption(t *testing.T) {
	c, salt, err := NewCipherFromConfig(EncryptionConfig{})
	if err != nil {
		t.Fatalf("NewCipherFromConfig: %v", err)
	}
	if c != nil || salt != nil {
		t.Fatalf("expected nil cipher for empty config")
	}
}

func TestNewCipherFromConfig_RawKey(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}

	c, salt, err := NewCipherFromConfig(EncryptionConfig{Key: key})
	if err != nil {
		t.Fatalf("NewCipherFromConfig: %v", err)
	}
	if c == nil {
		t.Fatal("cipher is nil")
	}
	if salt != nil {
		t.Fatalf("salt = %v, want nil for raw key", salt)
	}

	plain := []byte("snapshot payload")
	sealed, err := c.Encrypt(plain, nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	opened, err := c.Decrypt(sealed, nil)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(opened, plain) {
		t.Fatalf("round trip mismatch")
	}
}

func TestNewCipherFromConfig_Passphrase(t *testing.T) {
	cfg := EncryptionConfig{Passphrase: []byte("correct horse battery staple")}

	c1, salt, err := NewCipherFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewCipherFromConfig: %v", err)
	}
	if c1 == nil || len(salt) != SaltLength {
		t.Fatalf("cipher = %v, salt len = %d", c1, len(salt))
	}

	sealed, err := c1.Encrypt([]byte("payload"), nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	// Re-deriving with the persisted salt must decrypt.
	cfg.Salt = salt
	c2, salt2, err := NewCipherFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewCipherFromConfig with salt: %v", err)
	}
	if !bytes.Equal(salt, salt2) {
		t.Fatalf("salt changed on re-derivation")
	}
	opened, err := c2.Decrypt(sealed, nil)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(opened) != "payload" {
		t.Fatalf("decrypted = %q", opened)
	}
}

func TestNewCipherFromConfig_UnsupportedAlgorithm(t *testing.T) {
	_, _, err := NewCipherFromConfig(EncryptionConfig{
		Key:       make([]byte, 32),
		Algorithm: "rot13",
	})
	if err == nil {
		t.Fatal("expected error for unsupported algorithm")
	}
}

func TestDeriveKeyFromPassphrase_Deterministic(t *testing.T) {
	pass := []byte("correct horse battery staple")

	salt, key1, err := DeriveKeyFromPassphrase(pass, nil)
	if err != nil {
		t.Fatalf("DeriveKeyFromPassphrase: %v", err)
	}
	if len(salt) != SaltLength || len(key1) != 32 {
		t.Fatalf("salt len = %d, key len = %d", len(salt), len(key1))
	}

	_, key2, err := DeriveKeyFromPassphrase(pass, salt)
	if err != nil {
		t.Fatalf("DeriveKeyFromPassphrase with salt: %v", err)
	}
	if !bytes.Equal(key1, key2) {
		t.Fatalf("same passphrase and salt produced different keys")
	}
}

func TestGenerateKeyAndZero(t *testing.T) {
	if _, err := GenerateKey(8); !errors.Is(err, ErrKeyTooShort) {
		t.Fatalf("GenerateKey(8) = %v, want ErrKeyTooShort", err)
	}

	key, err := GenerateKey(32)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if len(key) != 32 {
		t.Fatalf("key len = %d, want 32", len(key))
	}

	ZeroKey(key)
	for i, b := range key {
		if b != 0 {
			t.Fatalf("key[%d] = %d after ZeroKey", i, b)
		}
	}
}
