// Package storage provides the durable token storage engine.
//
// The engine combines the in-memory store, the write-ahead log, and
// periodic snapshots. Every write lands in the WAL before it becomes
// visible in memory, so recovery replays the snapshot plus the WAL
// tail and loses at most the unflushed batch.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/core/domain"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/storage/memory"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/storage/snapshot"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/storage/wal"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/telemetry/metric"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/pkg/crypto/adaptive"
)

// Default configuration values.
const (
	DefaultSnapshotInterval = time.Hour
	DefaultWALDir           = "wal"
	DefaultSnapshotDir      = "snapshots"
)

// Config configures the storage engine.
type Config struct {
	// DataDir is the base directory for all storage files.
	DataDir string

	// WAL configuration
	WAL wal.Config

	// Snapshot configuration
	Snapshot snapshot.Config

	// SnapshotInterval is the interval between automatic snapshots.
	SnapshotInterval time.Duration

	// Cipher is the optional at-rest encryption cipher.
	Cipher adaptive.Cipher

	// Metrics is the optional application metrics registry.
	Metrics *metric.Registry

	// Logger is the structured logger.
	Logger *slog.Logger
}

// DefaultConfig returns the default storage configuration.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:          dataDir,
		WAL:              wal.DefaultConfig(dataDir + "/" + DefaultWALDir),
		Snapshot:         snapshot.DefaultConfig(dataDir + "/" + DefaultSnapshotDir),
		SnapshotInterval: DefaultSnapshotInterval,
		Logger:           slog.Default(),
	}
}

// Engine is the storage engine that combines memory, WAL, and snapshots.
// It implements the token repository used by the transition engine.
type Engine struct {
	cfg Config

	store    *memory.Store
	wal      *wal.Writer
	snapshot *snapshot.Manager

	lastWALOffset uint64

	metrics *metric.Registry
	logger  *slog.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a new storage engine.
//
// This initializes all components but does NOT perform recovery.
// Call Recover() after New() to load existing data.
func New(cfg Config) (*Engine, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("storage: data_dir is required")
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SnapshotInterval == 0 {
		cfg.SnapshotInterval = DefaultSnapshotInterval
	}

	// Apply common config to subcomponents
	cfg.WAL.Cipher = cfg.Cipher
	cfg.Snapshot.Cipher = cfg.Cipher

	store := memory.New()

	walWriter, err := wal.NewWriter(cfg.WAL)
	if err != nil {
		return nil, fmt.Errorf("storage: create wal writer: %w", err)
	}

	snapMgr, err := snapshot.NewManager(cfg.Snapshot)
	if err != nil {
		walWriter.Close()
		return nil, fmt.Errorf("storage: create snapshot manager: %w", err)
	}

	engine := &Engine{
		cfg:      cfg,
		store:    store,
		wal:      walWriter,
		snapshot: snapMgr,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	go engine.backgroundLoop()

	return engine, nil
}

// Recover recovers data from snapshots and WAL.
//
// Recovery process:
//  1. Load latest snapshot (if one exists)
//  2. Replay WAL entries after the snapshot's WAL offset
//  3. Rebuild the class index
func (e *Engine) Recover(ctx context.Context) error {
	startTime := time.Now()
	e.logger.Info("storage recovery started")

	tokens, snapInfo, err := e.snapshot.Load()
	if err != nil {
		if errors.Is(err, snapshot.ErrNoSnapshots) {
			e.logger.Info("no snapshot found, starting with empty store")
		} else {
			return fmt.Errorf("load snapshot: %w", err)
		}
	}

	walOffset := uint64(0)
	if snapInfo != nil {
		e.logger.Info("snapshot loaded",
			"path", snapInfo.Path,
			"token_count", snapInfo.TokenCount,
			"wal_last_offset", snapInfo.WALLastOffset,
			"elapsed", time.Since(startTime))

		if err := e.store.LoadFromSnapshot(tokens); err != nil {
			return fmt.Errorf("restore snapshot: %w", err)
		}

		walOffset = snapInfo.WALLastOffset
		e.lastWALOffset = walOffset
	}

	replayStart := time.Now()
	applied, err := e.replayWAL(ctx, walOffset)
	if err != nil {
		return fmt.Errorf("replay wal: %w", err)
	}

	if applied > 0 {
		e.logger.Info("wal replayed",
			"entries_applied", applied,
			"from_offset", walOffset,
			"elapsed", time.Since(replayStart))
	}

	// Tokens that expired while the process was down never reach the
	// live set; their audit expiry entry is written on first access.
	purged := e.store.CleanupExpired()
	if len(purged) > 0 {
		e.logger.Info("purged expired tokens after recovery", "count", len(purged))
	}

	e.logger.Info("recovery completed",
		"elapsed", time.Since(startTime),
		"token_count", e.countLocked())

	e.observeGauges()
	return nil
}

// replayWAL replays WAL entries from the given composite offset.
func (e *Engine) replayWAL(ctx context.Context, fromOffset uint64) (int, error) {
	reader, err := wal.NewReader(e.cfg.WAL.Dir, e.cfg.WAL.Cipher)
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	if fromOffset > 0 {
		if err := reader.Seek(fromOffset); err != nil {
			// Segments below the snapshot may already be compacted away.
			e.logger.Warn("wal seek failed, replaying from start", "offset", fromOffset, "error", err)
		}
	}

	now := time.Now().UnixMilli()
	applied := 0
	skipped := 0

	for {
		entry, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return applied, err
		}

		// Skip CREATE operations whose token already expired.
		if entry.OpType == wal.OpTypeCreate && entry.Token != nil && entry.Token.ExpiresAt < now {
			skipped++
			continue
		}

		if err := e.applyEntry(ctx, entry); err != nil {
			e.logger.Warn("apply wal entry failed",
				"type", entry.OpType,
				"token_id", entry.TokenID,
				"error", err)
			continue
		}

		applied++
	}

	e.lastWALOffset = e.wal.CurrentOffset()

	if skipped > 0 {
		e.logger.Info("skipped expired tokens during replay", "count", skipped)
	}

	return applied, nil
}

// applyEntry applies a WAL entry to the memory store.
func (e *Engine) applyEntry(ctx context.Context, entry *wal.Entry) error {
	switch entry.OpType {
	case wal.OpTypeCreate:
		if entry.Token == nil {
			return fmt.Errorf("missing token data for CREATE")
		}
		// Ignore conflict errors during recovery
		if err := e.store.Create(ctx, entry.Token); err != nil {
			if !errors.Is(err, domain.ErrTokenConflict) {
				return err
			}
		}
		return nil

	case wal.OpTypeUpdate:
		if entry.Token == nil {
			return fmt.Errorf("missing token data for UPDATE")
		}
		// The entry carries the post-mutation version.
		expectedVersion := entry.Token.Version - 1
		if err := e.store.Update(ctx, entry.Token, expectedVersion); err != nil {
			// Ignore not found and version conflict during recovery
			if !errors.Is(err, domain.ErrTokenNotFound) &&
				!errors.Is(err, domain.ErrTokenVersionConflict) {
				return err
			}
		}
		return nil

	case wal.OpTypeDelete:
		if err := e.store.Delete(ctx, entry.TokenID); err != nil {
			// Ignore not found during recovery
			if !errors.Is(err, domain.ErrTokenNotFound) {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("unknown entry type: %d", entry.OpType)
	}
}

// Create creates a new token.
//
// The operation is durable: written to WAL before memory.
func (e *Engine) Create(ctx context.Context, token *domain.Token) error {
	entry := wal.NewCreateEntry(token)
	if err := e.wal.Append(entry); err != nil {
		return domain.ErrStorage.WithCause(err)
	}

	if err := e.store.Create(ctx, token); err != nil {
		return err
	}

	e.lastWALOffset = e.wal.CurrentOffset()
	e.observeGauges()
	return nil
}

// Get retrieves a token by ID. Expired tokens are returned as stored;
// the transition engine owns expiry semantics.
func (e *Engine) Get(ctx context.Context, id string) (*domain.Token, error) {
	return e.store.Get(ctx, id)
}

// Update updates an existing token with optimistic locking.
//
// The operation is durable: written to WAL before memory.
func (e *Engine) Update(ctx context.Context, token *domain.Token, expectedVersion uint64) error {
	entry := wal.NewUpdateEntry(token)
	if err := e.wal.Append(entry); err != nil {
		return domain.ErrStorage.WithCause(err)
	}

	if err := e.store.Update(ctx, token, expectedVersion); err != nil {
		return err
	}

	e.lastWALOffset = e.wal.CurrentOffset()
	return nil
}

// Delete deletes a token.
//
// The operation is durable: written to WAL before memory.
func (e *Engine) Delete(ctx context.Context, id string) error {
	entry := wal.NewDeleteEntry(id)
	if err := e.wal.Append(entry); err != nil {
		return domain.ErrStorage.WithCause(err)
	}

	if err := e.store.Delete(ctx, id); err != nil {
		return err
	}

	e.lastWALOffset = e.wal.CurrentOffset()
	e.observeGauges()
	return nil
}

// List retrieves all stored tokens sorted by creation time.
func (e *Engine) List(ctx context.Context) ([]*domain.Token, error) {
	return e.store.List(ctx)
}

// Count returns the total number of stored tokens.
func (e *Engine) Count(ctx context.Context) (int, error) {
	return e.store.Count(ctx)
}

// ListByClass returns all tokens of one class.
func (e *Engine) ListByClass(ctx context.Context, class domain.TokenClass) ([]*domain.Token, error) {
	return e.store.ListByClass(ctx, class)
}

// CountsByClass returns per-class token counts.
func (e *Engine) CountsByClass() map[domain.TokenClass]int {
	return e.store.CountsByClass()
}

// Scan iterates over all tokens in storage.
func (e *Engine) Scan(fn func(*domain.Token) bool) {
	e.store.Scan(fn)
}

// TriggerSnapshot creates a snapshot manually.
//
// This is called by the CLI, admin surface, or background loop.
func (e *Engine) TriggerSnapshot(ctx context.Context) (*snapshot.Info, error) {
	e.logger.Info("triggering snapshot")

	// Flush so the snapshot's WAL offset covers everything in memory.
	if err := e.wal.Flush(); err != nil {
		return nil, domain.ErrStorage.WithCause(err)
	}
	e.lastWALOffset = e.wal.CurrentOffset()

	tokens := e.store.All()

	info, err := e.snapshot.Create(tokens, e.lastWALOffset)
	if err != nil {
		return nil, fmt.Errorf("create snapshot: %w", err)
	}

	e.logger.Info("snapshot created",
		"id", info.ID,
		"token_count", info.TokenCount,
		"wal_last_offset", info.WALLastOffset,
		"size_bytes", info.Size)

	if e.metrics != nil {
		e.metrics.SnapshotSize.Set(float64(info.Size))
	}

	if err := e.snapshot.Prune(); err != nil {
		e.logger.Warn("snapshot cleanup failed", "error", err)
	}

	// Best-effort WAL compaction after snapshot.
	compactor := wal.NewCompactor(e.cfg.WAL.Dir)
	if err := compactor.Compact(info.WALLastOffset); err != nil {
		e.logger.Warn("wal compaction failed", "error", err)
	}
	e.observeWALSize(compactor)

	return info, nil
}

// backgroundLoop runs periodic snapshot creation.
func (e *Engine) backgroundLoop() {
	defer close(e.doneCh)

	ticker := time.NewTicker(e.cfg.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if _, err := e.TriggerSnapshot(ctx); err != nil {
				e.logger.Error("auto snapshot failed", "error", err)
			}
			cancel()

		case <-e.stopCh:
			return
		}
	}
}

// Close gracefully shuts down the storage engine.
func (e *Engine) Close() error {
	e.logger.Info("shutting down storage engine")

	close(e.stopCh)
	<-e.doneCh

	// Close WAL writer (this flushes pending writes).
	if err := e.wal.Close(); err != nil {
		e.logger.Error("close wal failed", "error", err)
		return err
	}

	e.logger.Info("storage engine shutdown complete")
	return nil
}

func (e *Engine) countLocked() int {
	n, _ := e.store.Count(context.Background())
	return n
}

func (e *Engine) observeGauges() {
	if e.metrics == nil {
		return
	}
	e.metrics.TokensActive.Set(float64(e.countLocked()))
}

func (e *Engine) observeWALSize(c *wal.Compactor) {
	if e.metrics == nil {
		return
	}
	if size, err := c.TotalSize(); err == nil {
		e.metrics.WALSize.Set(float64(size))
	}
}
