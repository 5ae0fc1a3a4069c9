// Package audit persists the append-only, hash-chained audit trail.
//
// Entries are stored as one JSON object per line in a single log file.
// Each entry's hash covers its predecessor's hash, so any removal,
// reordering, or edit of a stored entry breaks verification of every
// entry after it. The log is never truncated or rewritten in place.
package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/core/domain"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/telemetry/metric"
)

// FileName is the audit log file name inside the data directory.
const FileName = "audit.log"

// maxLineSize bounds a single serialized entry.
const maxLineSize = 1 << 20 // 1MB

// Config configures the audit log.
type Config struct {
	// Dir is the directory holding the log file.
	Dir string

	// SyncOnRecord forces an fsync after every appended entry.
	// Disable only in tests.
	SyncOnRecord bool

	Metrics *metric.Registry
	Logger  *slog.Logger
}

// DefaultConfig returns the default audit log configuration.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:          dir,
		SyncOnRecord: true,
	}
}

// Log is the durable audit trail. It satisfies the trail interface the
// transition engine and registrar record through.
//
// All methods are safe for concurrent use. Writes are serialized so the
// hash chain observes a single total order.
type Log struct {
	cfg  Config
	path string
	log  *slog.Logger

	mu       sync.Mutex
	file     *os.File
	lastHash string
	count    uint64
}

// Open opens (or creates) the audit log in cfg.Dir and replays the
// existing file to recover the chain head. A broken chain on disk is a
// tamper signal and fails the open.
func Open(cfg Config) (*Log, error) {
	if cfg.Dir == "" {
		return nil, domain.ErrMissingArgument.WithDetails("audit log directory is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, domain.ErrStorage.WithCause(err)
	}

	l := &Log{
		cfg:      cfg,
		path:     filepath.Join(cfg.Dir, FileName),
		log:      cfg.Logger,
		lastHash: domain.GenesisAccumulator(),
	}

	// 1. Replay the existing file to recover the chain head and verify
	//    linkage while we are already streaming it.
	if err := l.replay(); err != nil {
		return nil, err
	}

	// 2. Open for appending.
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, domain.ErrStorage.WithCause(err)
	}
	l.file = f

	if cfg.Metrics != nil {
		cfg.Metrics.AuditEntries.Add(float64(l.count))
	}
	l.log.Info("audit log opened", "path", l.path, "entries", l.count)
	return l, nil
}

// replay streams the stored entries, verifying each seal and link.
func (l *Log) replay() error {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return domain.ErrStorage.WithCause(err)
	}
	defer f.Close()

	prev := domain.GenesisAccumulator()
	var count uint64

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry domain.AuditEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return domain.ErrStorage.WithDetails(
				fmt.Sprintf("audit log entry %d is not valid JSON", count)).WithCause(err)
		}
		if entry.PrevHash != prev {
			return domain.ErrStorage.WithDetails(
				fmt.Sprintf("audit chain broken at entry %d (%s)", count, entry.EventID))
		}
		if !entry.VerifyHash() {
			return domain.ErrStorage.WithDetails(
				fmt.Sprintf("audit entry %d (%s) fails its seal", count, entry.EventID))
		}
		prev = entry.Hash
		count++
	}
	if err := scanner.Err(); err != nil {
		return domain.ErrStorage.WithCause(err)
	}

	l.lastHash = prev
	l.count = count
	return nil
}

// Record seals the entry against the chain head and appends it. A
// failure here means the entry is not durable and the caller must treat
// its operation as failed.
func (l *Log) Record(_ context.Context, entry *domain.AuditEntry) error {
	if entry == nil {
		return domain.ErrMissingArgument.WithDetails("audit entry is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return domain.ErrStorage.WithDetails("audit log is closed")
	}

	entry.Seal(l.lastHash)

	data, err := json.Marshal(entry)
	if err != nil {
		return domain.ErrInternal.WithCause(err)
	}
	data = append(data, '\n')

	if _, err := l.file.Write(data); err != nil {
		return domain.ErrStorage.WithDetails("audit append failed").WithCause(err)
	}
	if l.cfg.SyncOnRecord {
		if err := l.file.Sync(); err != nil {
			return domain.ErrStorage.WithDetails("audit sync failed").WithCause(err)
		}
	}

	l.lastHash = entry.Hash
	l.count++
	if l.cfg.Metrics != nil {
		l.cfg.Metrics.AuditEntries.Inc()
	}
	return nil
}

// Query streams stored entries matching the filter, oldest first.
func (l *Log) Query(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEntry, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, domain.ErrStorage.WithCause(err)
	}
	defer f.Close()

	var out []*domain.AuditEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry domain.AuditEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, domain.ErrStorage.WithCause(err)
		}
		if !filter.Match(&entry) {
			continue
		}
		out = append(out, &entry)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, domain.ErrStorage.WithCause(err)
	}
	return out, nil
}

// VerifyChain re-reads the whole log and checks every seal and link.
func (l *Log) VerifyChain(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	check := &Log{path: l.path, lastHash: domain.GenesisAccumulator()}
	if err := check.replay(); err != nil {
		return err
	}
	if check.lastHash != l.lastHash || check.count != l.count {
		return domain.ErrStorage.WithDetails("audit log diverged from the in-memory chain head")
	}
	return nil
}

// Count returns the number of recorded entries.
func (l *Log) Count() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// LastHash returns the current chain head.
func (l *Log) LastHash() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastHash
}

// Close flushes and closes the log file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		l.file.Close()
		l.file = nil
		return domain.ErrStorage.WithCause(err)
	}
	err := l.file.Close()
	l.file = nil
	if err != nil {
		return domain.ErrStorage.WithCause(err)
	}
	return nil
}
