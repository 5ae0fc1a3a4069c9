package config

import (
	"encoding/hex"
	"errors"
	"os"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifyLedger(&cfg.Ledger); err != nil {
		return err
	}
	return verifyToken(&cfg.Token)
}

func verifyServer(cfg *ServerSection) error {
	if cfg.Addr == "" {
		return errors.New("server.addr is required")
	}
	if cfg.RateLimit < 0 {
		return errors.New("server.rate_limit must not be negative")
	}
	if cfg.RateLimit > 0 && cfg.RateBurst < 1 {
		return errors.New("server.rate_burst must be at least 1 when rate limiting is enabled")
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	if cfg.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return errors.New("cannot create data directory: " + err.Error())
	}
	if cfg.SnapshotKeep < 1 {
		return errors.New("storage.snapshot_keep must be at least 1")
	}
	switch cfg.WALSyncMode {
	case "", "sync", "batch":
	default:
		return errors.New("storage.wal_sync_mode must be sync or batch")
	}
	if cfg.EncryptionKey != "" && cfg.Passphrase != "" {
		return errors.New("storage.encryption_key and storage.passphrase are mutually exclusive")
	}
	if cfg.EncryptionKey != "" {
		key, err := hex.DecodeString(cfg.EncryptionKey)
		if err != nil || len(key) != 32 {
			return errors.New("storage.encryption_key must be 64 hex characters (32 bytes)")
		}
	}
	return nil
}

func verifyLedger(cfg *LedgerSection) error {
	if cfg.Dir == "" {
		return errors.New("ledger.dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return errors.New("cannot create ledger directory: " + err.Error())
	}
	return nil
}

func verifyToken(cfg *TokenSection) error {
	if cfg.DefaultTTL < 0 || cfg.PersistentTTL < 0 {
		return errors.New("token TTLs must not be negative")
	}
	if cfg.MaxActive < 0 {
		return errors.New("token.max_active must not be negative")
	}
	if cfg.MaxDepth < 0 {
		return errors.New("token.max_depth must not be negative")
	}
	return nil
}
