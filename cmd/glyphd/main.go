// Package main provides the entry point for glyphd, the provenance
// token service daemon.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/audit"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/core/domain"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/core/service"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/infra/buildinfo"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/infra/confloader"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/infra/shutdown"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/ledger"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/server/config"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/server/httpserver"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/storage"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/storage/snapshot"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/telemetry/logger"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/telemetry/metric"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/pkg/crypto/adaptive"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("glyphd %s\n", buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	slog.SetDefault(log)

	log.Info("starting glyphd",
		"version", buildinfo.Version,
		"commit", buildinfo.Commit,
		"config", *configFile)

	metrics := metric.NewRegistry()

	storageEngine, err := initStorage(cfg, metrics, log)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	ctx := context.Background()
	if err := storageEngine.Recover(ctx); err != nil {
		storageEngine.Close()
		return fmt.Errorf("storage recovery: %w", err)
	}

	beaconLedger, err := ledger.Open(ledger.Config{
		Dir:        cfg.Ledger.Dir,
		SyncWrites: cfg.Ledger.SyncWrites,
		GCInterval: cfg.Ledger.GCInterval,
		Metrics:    metrics,
		Logger:     log,
	})
	if err != nil {
		storageEngine.Close()
		return fmt.Errorf("open ledger: %w", err)
	}

	auditCfg := audit.DefaultConfig(filepath.Join(cfg.Storage.DataDir, "audit"))
	auditCfg.Metrics = metrics
	auditCfg.Logger = log
	auditLog, err := audit.Open(auditCfg)
	if err != nil {
		beaconLedger.Close()
		storageEngine.Close()
		return fmt.Errorf("open audit log: %w", err)
	}

	engine, registrar, err := initServices(cfg, storageEngine, auditLog, beaconLedger, log)
	if err != nil {
		auditLog.Close()
		beaconLedger.Close()
		storageEngine.Close()
		return fmt.Errorf("init services: %w", err)
	}

	if err := engine.Bootstrap(ctx); err != nil {
		auditLog.Close()
		beaconLedger.Close()
		storageEngine.Close()
		return fmt.Errorf("bootstrap: %w", err)
	}

	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Engine:    engine,
		Registrar: registrar,
		Ledger:    beaconLedger,
		Metrics:   metrics,
		Logger:    log,
		RateLimit: cfg.Server.RateLimit,
		RateBurst: cfg.Server.RateBurst,
	})
	httpServer := httpserver.New(cfg.Server.Addr, router,
		cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)

	shutdownHandler := shutdown.NewHandler(cfg.Server.ShutdownTimeout)
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return httpServer.Shutdown(ctx)
	})
	shutdownHandler.OnShutdown(func(context.Context) error {
		log.Info("closing audit log")
		return auditLog.Close()
	})
	shutdownHandler.OnShutdown(func(context.Context) error {
		log.Info("closing ledger")
		return beaconLedger.Close()
	})
	shutdownHandler.OnShutdown(func(context.Context) error {
		log.Info("closing storage engine")
		return storageEngine.Close()
	})

	// Reload the log level when the config file changes on disk.
	if *configFile != "" {
		watcher, werr := startConfigWatcher(*configFile, log)
		if werr != nil {
			log.Warn("config watcher disabled", "error", werr)
		} else {
			shutdownHandler.OnShutdown(func(context.Context) error {
				return watcher.Stop()
			})
		}
	}

	go func() {
		log.Info("HTTP server listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from defaults, file, and environment.
func loadConfig(configFile string) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	loader := confloader.NewLoader(opts...)
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initStorage builds the token store engine, including the optional
// at-rest cipher.
func initStorage(cfg *config.ServerConfig, metrics *metric.Registry, log *slog.Logger) (*storage.Engine, error) {
	cipher, err := initCipher(&cfg.Storage)
	if err != nil {
		return nil, err
	}

	storageCfg := storage.DefaultConfig(cfg.Storage.DataDir)
	storageCfg.Cipher = cipher
	storageCfg.Metrics = metrics
	storageCfg.Logger = log

	if cfg.Storage.WALSyncMode == "sync" {
		storageCfg.WAL.SyncMode = "sync"
	}
	if cfg.Storage.WALSyncInterval > 0 {
		storageCfg.WAL.SyncInterval = cfg.Storage.WALSyncInterval
	}
	if cfg.Storage.SnapshotKeep > 0 {
		storageCfg.Snapshot.RetentionCount = cfg.Storage.SnapshotKeep
	}
	if cfg.Storage.SnapshotInterval > 0 {
		storageCfg.SnapshotInterval = cfg.Storage.SnapshotInterval
	}

	return storage.New(storageCfg)
}

// initCipher builds the at-rest cipher from the storage section. A
// passphrase derives the key via Argon2id; the salt persists next to
// the data so later starts derive the same key.
func initCipher(cfg *config.StorageSection) (adaptive.Cipher, error) {
	switch {
	case cfg.EncryptionKey != "":
		key, err := hex.DecodeString(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("decode encryption key: %w", err)
		}
		return adaptive.New(key)

	case cfg.Passphrase != "":
		saltPath := filepath.Join(cfg.DataDir, "cipher.salt")
		salt, err := os.ReadFile(saltPath)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read cipher salt: %w", err)
		}

		cipher, usedSalt, err := snapshot.NewCipherFromConfig(snapshot.EncryptionConfig{
			Passphrase: []byte(cfg.Passphrase),
			Salt:       salt,
		})
		if err != nil {
			return nil, err
		}
		if len(salt) == 0 {
			if err := os.WriteFile(saltPath, usedSalt, 0o600); err != nil {
				return nil, fmt.Errorf("persist cipher salt: %w", err)
			}
		}
		return cipher, nil

	default:
		return nil, nil
	}
}

// initServices wires the validator, transition engine, and registrar.
func initServices(cfg *config.ServerConfig, store *storage.Engine, auditLog *audit.Log, beaconLedger *ledger.Ledger, log *slog.Logger) (*service.Engine, *service.Registrar, error) {
	validator, err := service.NewValidator(service.ValidatorConfig{
		MaxActiveTokens:  cfg.Token.MaxActive,
		MaxAncestryDepth: cfg.Token.MaxDepth,
	})
	if err != nil {
		return nil, nil, err
	}

	credentials, err := loadCredentials(cfg.Storage.DataDir, log)
	if err != nil {
		return nil, nil, err
	}

	engine, err := service.NewEngine(service.EngineConfig{
		Validator:   validator,
		Store:       store,
		Audit:       auditLog,
		Ledger:      beaconLedger,
		Logger:      log,
		Credentials: credentials,
	})
	if err != nil {
		return nil, nil, err
	}

	registrar, err := service.NewRegistrar(beaconLedger, auditLog, log)
	if err != nil {
		return nil, nil, err
	}

	return engine, registrar, nil
}

// loadCredentials loads the mutation credential hashes, generating
// them on first start. Plaintext credentials are printed to stdout
// exactly once; only the hashes touch disk.
func loadCredentials(dataDir string, log *slog.Logger) (map[domain.Source]string, error) {
	path := filepath.Join(dataDir, "credentials.json")

	data, err := os.ReadFile(path)
	if err == nil {
		var stored map[domain.Source]string
		if err := json.Unmarshal(data, &stored); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return stored, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	credentials := make(map[domain.Source]string, 2)
	for _, source := range []domain.Source{domain.SourceUser, domain.SourceSystem} {
		plaintext, hash, err := domain.GenerateCredential()
		if err != nil {
			return nil, err
		}
		credentials[source] = hash
		fmt.Printf("mutation credential for source %q (shown once): %s\n", source, plaintext)
		log.Info("generated mutation credential",
			"source", source, "credential", domain.MaskCredential(plaintext))
	}

	data, err = json.MarshalIndent(credentials, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return nil, fmt.Errorf("persist credentials: %w", err)
	}
	return credentials, nil
}

// startConfigWatcher re-applies the log level when the config file is
// rewritten. Other settings require a restart.
func startConfigWatcher(path string, log *slog.Logger) (*confloader.Watcher, error) {
	watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := watcher.Watch(path); err != nil {
		watcher.Stop()
		return nil, err
	}

	watcher.OnChange(func(changed string) {
		cfg := config.Default()
		loader := confloader.NewLoader(confloader.WithConfigFile(changed))
		if err := loader.Load(cfg); err != nil {
			log.Warn("config reload failed", "error", err)
			return
		}
		logger.SetLevel(cfg.Log.Level)
		log.Info("log level reloaded", "level", cfg.Log.Level)
	})
	watcher.StartAsync()
	return watcher, nil
}
