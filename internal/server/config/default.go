package config

import "time"

// Default configuration values.
const (
	DefaultHTTPAddr = "127.0.0.1:7430"

	DefaultDataDir   = "/var/lib/glyphd/data"
	DefaultLedgerDir = "/var/lib/glyphd/ledger"

	DefaultWALSyncMode     = "batch"
	DefaultWALSyncInterval = 100 * time.Millisecond

	DefaultSnapshotKeep     = 5
	DefaultSnapshotInterval = time.Hour

	DefaultLedgerGCInterval = 10 * time.Minute

	DefaultTokenTTL      = 30 * time.Minute
	DefaultPersistentTTL = 7 * 24 * time.Hour
	DefaultMaxActive     = 256
	DefaultMaxDepth      = 8

	DefaultRateLimit = 50.0
	DefaultRateBurst = 100

	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 15 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Addr:            DefaultHTTPAddr,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
			RateLimit:       DefaultRateLimit,
			RateBurst:       DefaultRateBurst,
		},
		Storage: StorageSection{
			DataDir:          DefaultDataDir,
			WALSyncMode:      DefaultWALSyncMode,
			WALSyncInterval:  DefaultWALSyncInterval,
			SnapshotKeep:     DefaultSnapshotKeep,
			SnapshotInterval: DefaultSnapshotInterval,
		},
		Ledger: LedgerSection{
			Dir:        DefaultLedgerDir,
			SyncWrites: true,
			GCInterval: DefaultLedgerGCInterval,
		},
		Token: TokenSection{
			DefaultTTL:    DefaultTokenTTL,
			PersistentTTL: DefaultPersistentTTL,
			MaxActive:     DefaultMaxActive,
			MaxDepth:      DefaultMaxDepth,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
