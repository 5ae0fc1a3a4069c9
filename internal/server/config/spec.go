package config

import "time"

// ServerConfig is the root configuration for glyphd.
type ServerConfig struct {
	Server  ServerSection  `koanf:"server"`
	Storage StorageSection `koanf:"storage"`
	Ledger  LedgerSection  `koanf:"ledger"`
	Token   TokenSection   `koanf:"token"`
	Log     LogSection     `koanf:"log"`
}

// ServerSection configures the HTTP endpoint.
type ServerSection struct {
	Addr string `koanf:"addr"`

	// ReadTimeout and WriteTimeout bound request handling.
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// RateLimit is the sustained request rate per second; RateBurst is
	// the burst allowance. Zero disables rate limiting.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`
}

// StorageSection configures the token store.
type StorageSection struct {
	DataDir string `koanf:"data_dir"`

	// WALSyncMode is "sync" or "batch".
	WALSyncMode     string        `koanf:"wal_sync_mode"`
	WALSyncInterval time.Duration `koanf:"wal_sync_interval"`

	SnapshotKeep     int           `koanf:"snapshot_keep"`
	SnapshotInterval time.Duration `koanf:"snapshot_interval"`

	// EncryptionKey is a hex-encoded 32-byte key for at-rest sealing of
	// WAL payloads and snapshots. Mutually exclusive with Passphrase.
	EncryptionKey string `koanf:"encryption_key"`

	// Passphrase derives the sealing key via Argon2id when set.
	Passphrase string `koanf:"passphrase"`
}

// LedgerSection configures the beacon ledger.
type LedgerSection struct {
	Dir        string        `koanf:"dir"`
	SyncWrites bool          `koanf:"sync_writes"`
	GCInterval time.Duration `koanf:"gc_interval"`
}

// TokenSection configures token lifecycle policy.
type TokenSection struct {
	// DefaultTTL applies when a create request carries no TTL.
	DefaultTTL time.Duration `koanf:"default_ttl"`

	// PersistentTTL is the long TTL used by remember operations.
	PersistentTTL time.Duration `koanf:"persistent_ttl"`

	// MaxActive caps concurrently active tokens.
	MaxActive int `koanf:"max_active"`

	// MaxDepth caps mutation ancestry depth.
	MaxDepth int `koanf:"max_depth"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
