// Package ledger provides the append-only lineage anchor ledger.
//
// Beacons are stored in Badger under three key spaces: positional
// entries in insertion order, an ID index, and metadata (ledger size,
// accumulator value, per-scope sequence counters). Every append folds
// the beacon digest into the hash-chain accumulator inside the same
// transaction, so the persisted accumulator always matches the
// persisted entries.
//
// An integrity failure poisons the ledger: once VerifyIntegrity has
// seen a mismatch, all writes are refused until the process restarts
// with a repaired store.
package ledger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/core/domain"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/telemetry/metric"
)

// Key spaces.
const (
	keyEntryPrefix = "b/" // b/<position:8> -> beacon JSON
	keyIDPrefix    = "i/" // i/<beacon_id>  -> position:8
	keySize        = "m/size"
	keyAccumulator = "m/acc"
	keyScopePrefix = "m/seq/" // m/seq/<scope> -> last issued sequence:8
)

// DefaultGCInterval is how often the value log garbage collector runs.
const DefaultGCInterval = 10 * time.Minute

// Config configures the ledger.
type Config struct {
	// Dir is the Badger data directory. Ignored when InMemory is set.
	Dir string

	// InMemory runs Badger without disk persistence. Test use only.
	InMemory bool

	// SyncWrites forces fsync on every commit.
	SyncWrites bool

	// GCInterval is the value log GC period. Zero means default.
	GCInterval time.Duration

	// Metrics is the optional application metrics registry.
	Metrics *metric.Registry

	// Logger is the structured logger.
	Logger *slog.Logger
}

// Ledger is the Badger-backed lineage ledger. It implements the
// ledger repository used by the registrar.
type Ledger struct {
	db      *badger.DB
	metrics *metric.Registry
	logger  *slog.Logger

	// writeMu serializes all writes behind one global writer.
	writeMu sync.Mutex

	// halted is set when an integrity check fails. Writes are refused
	// while set.
	halted atomic.Bool

	gcInterval time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}
}

// Open opens the ledger.
func Open(cfg Config) (*Ledger, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, fmt.Errorf("ledger: dir is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.GCInterval == 0 {
		cfg.GCInterval = DefaultGCInterval
	}

	opts := badger.DefaultOptions(cfg.Dir)
	opts.InMemory = cfg.InMemory
	if cfg.InMemory {
		opts.Dir = ""
		opts.ValueDir = ""
	}
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = &badgerLogger{logger: cfg.Logger}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("ledger: open db: %w", err)
	}

	l := &Ledger{
		db:         db,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		gcInterval: cfg.GCInterval,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}

	if err := l.init(); err != nil {
		db.Close()
		return nil, err
	}

	go l.gcLoop()

	return l, nil
}

// init seeds the metadata keys on first open.
func (l *Ledger) init() error {
	return l.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(keyAccumulator)); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := txn.Set([]byte(keyAccumulator), []byte(domain.GenesisAccumulator())); err != nil {
			return err
		}
		return txn.Set([]byte(keySize), encodeUint64(0))
	})
}

// Append adds a beacon at the end of the ledger and returns its
// permanent position.
func (l *Ledger) Append(_ context.Context, beacon *domain.Beacon) (uint64, error) {
	if l.halted.Load() {
		return 0, domain.ErrLedgerHalted
	}
	if err := beacon.Validate(); err != nil {
		return 0, err
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	var position uint64
	err := l.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(idKey(beacon.BeaconID)); err == nil {
			return domain.ErrDuplicateBeacon.WithDetails(beacon.BeaconID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return domain.ErrStorage.WithCause(err)
		}

		size, err := readUint64(txn, keySize)
		if err != nil {
			return err
		}
		acc, err := readString(txn, keyAccumulator)
		if err != nil {
			return err
		}

		position = size

		// The slot at the end must be empty; anything else means the
		// size metadata and the entries diverged.
		if _, err := txn.Get(entryKey(position)); err == nil {
			return domain.ErrOutOfOrder.WithDetails(fmt.Sprintf("position %d already occupied", position))
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return domain.ErrStorage.WithCause(err)
		}

		data, err := json.Marshal(beacon)
		if err != nil {
			return domain.ErrInternal.WithCause(err)
		}
		if err := txn.Set(entryKey(position), data); err != nil {
			return domain.ErrStorage.WithCause(err)
		}
		if err := txn.Set(idKey(beacon.BeaconID), encodeUint64(position)); err != nil {
			return domain.ErrStorage.WithCause(err)
		}

		next := domain.ChainStep(acc, beacon.Digest())
		if err := txn.Set([]byte(keyAccumulator), []byte(next)); err != nil {
			return domain.ErrStorage.WithCause(err)
		}
		return txn.Set([]byte(keySize), encodeUint64(size+1))
	})
	if err != nil {
		return 0, err
	}

	if l.metrics != nil {
		l.metrics.BeaconsRegistered.Inc()
		l.metrics.LedgerSize.Set(float64(position + 1))
	}

	return position, nil
}

// Get retrieves a beacon and its position by ID.
func (l *Ledger) Get(_ context.Context, beaconID string) (*domain.Beacon, uint64, error) {
	var (
		beacon   *domain.Beacon
		position uint64
	)

	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(idKey(beaconID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return domain.ErrBeaconNotFound.WithDetails(beaconID)
			}
			return domain.ErrStorage.WithCause(err)
		}
		posBytes, err := item.ValueCopy(nil)
		if err != nil {
			return domain.ErrStorage.WithCause(err)
		}
		position = binary.BigEndian.Uint64(posBytes)

		entry, err := txn.Get(entryKey(position))
		if err != nil {
			return domain.ErrStorage.WithCause(err)
		}
		return entry.Value(func(val []byte) error {
			beacon = &domain.Beacon{}
			if err := json.Unmarshal(val, beacon); err != nil {
				return domain.ErrInternal.WithCause(err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, 0, err
	}

	return beacon, position, nil
}

// Deprecate marks a beacon deprecated. The flag is excluded from the
// beacon digest, so the accumulator is unchanged. Repeating the call
// is rejected.
func (l *Ledger) Deprecate(_ context.Context, beaconID string) error {
	if l.halted.Load() {
		return domain.ErrLedgerHalted
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	return l.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(idKey(beaconID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return domain.ErrBeaconNotFound.WithDetails(beaconID)
			}
			return domain.ErrStorage.WithCause(err)
		}
		posBytes, err := item.ValueCopy(nil)
		if err != nil {
			return domain.ErrStorage.WithCause(err)
		}
		position := binary.BigEndian.Uint64(posBytes)

		entry, err := txn.Get(entryKey(position))
		if err != nil {
			return domain.ErrStorage.WithCause(err)
		}

		var beacon domain.Beacon
		if err := entry.Value(func(val []byte) error {
			return json.Unmarshal(val, &beacon)
		}); err != nil {
			return domain.ErrInternal.WithCause(err)
		}

		if beacon.Deprecated {
			return domain.ErrAlreadyDeprecated.WithDetails(beaconID)
		}
		beacon.Deprecated = true

		data, err := json.Marshal(&beacon)
		if err != nil {
			return domain.ErrInternal.WithCause(err)
		}
		return txn.Set(entryKey(position), data)
	})
}

// Accumulator returns the current accumulator value and ledger size.
func (l *Ledger) Accumulator(_ context.Context) (string, uint64, error) {
	var (
		value string
		size  uint64
	)
	err := l.db.View(func(txn *badger.Txn) error {
		var err error
		if value, err = readString(txn, keyAccumulator); err != nil {
			return err
		}
		size, err = readUint64(txn, keySize)
		return err
	})
	if err != nil {
		return "", 0, err
	}
	return value, size, nil
}

// Scan returns all beacons in insertion order.
func (l *Ledger) Scan(_ context.Context) ([]*domain.Beacon, error) {
	var beacons []*domain.Beacon

	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyEntryPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var beacon domain.Beacon
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &beacon)
			}); err != nil {
				return domain.ErrInternal.WithCause(err)
			}
			beacons = append(beacons, &beacon)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return beacons, nil
}

// NextSequence reserves the next ID sequence number for a scope.
func (l *Ledger) NextSequence(_ context.Context, scope string) (int, error) {
	if l.halted.Load() {
		return 0, domain.ErrLedgerHalted
	}
	if !domain.ValidScope(scope) {
		return 0, domain.ErrInvalidArgument.WithDetails("unknown scope " + scope)
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	var next uint64
	err := l.db.Update(func(txn *badger.Txn) error {
		key := []byte(keyScopePrefix + scope)

		last := uint64(0)
		item, err := txn.Get(key)
		if err == nil {
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return domain.ErrStorage.WithCause(err)
			}
			last = binary.BigEndian.Uint64(raw)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return domain.ErrStorage.WithCause(err)
		}

		next = last + 1
		return txn.Set(key, encodeUint64(next))
	})
	if err != nil {
		return 0, err
	}

	return int(next), nil
}

// VerifyIntegrity recomputes the accumulator over the full beacon list
// and compares it to the persisted value. A mismatch halts all writes.
func (l *Ledger) VerifyIntegrity(ctx context.Context) error {
	beacons, err := l.Scan(ctx)
	if err != nil {
		return err
	}
	stored, size, err := l.Accumulator(ctx)
	if err != nil {
		return err
	}

	if uint64(len(beacons)) != size {
		l.halt()
		return domain.ErrAccumulatorMismatch.WithDetails(
			fmt.Sprintf("ledger size %d does not match %d stored entries", size, len(beacons)))
	}

	acc := domain.GenesisAccumulator()
	for _, beacon := range beacons {
		acc = domain.ChainStep(acc, beacon.Digest())
	}

	if acc != stored {
		l.halt()
		return domain.ErrAccumulatorMismatch.WithDetails(
			fmt.Sprintf("recomputed %s, stored %s", acc, stored))
	}

	return nil
}

// Halted reports whether writes are currently refused.
func (l *Ledger) Halted() bool {
	return l.halted.Load()
}

func (l *Ledger) halt() {
	if l.halted.CompareAndSwap(false, true) {
		l.logger.Error("ledger integrity check failed, halting writes")
		if l.metrics != nil {
			l.metrics.LedgerHalted.Set(1)
		}
	}
}

// Close gracefully shuts down the ledger.
func (l *Ledger) Close() error {
	close(l.stopCh)
	<-l.doneCh

	if err := l.db.Close(); err != nil {
		return fmt.Errorf("ledger: close db: %w", err)
	}
	return nil
}

// gcLoop runs periodic value log garbage collection.
func (l *Ledger) gcLoop() {
	defer close(l.doneCh)

	ticker := time.NewTicker(l.gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for {
				if err := l.db.RunValueLogGC(0.5); err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						l.logger.Warn("value log gc failed", "error", err)
					}
					break
				}
			}

		case <-l.stopCh:
			return
		}
	}
}

func entryKey(position uint64) []byte {
	key := make([]byte, len(keyEntryPrefix)+8)
	copy(key, keyEntryPrefix)
	binary.BigEndian.PutUint64(key[len(keyEntryPrefix):], position)
	return key
}

func idKey(beaconID string) []byte {
	return []byte(keyIDPrefix + beaconID)
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func readUint64(txn *badger.Txn, key string) (uint64, error) {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return 0, domain.ErrStorage.WithCause(err)
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return 0, domain.ErrStorage.WithCause(err)
	}
	return binary.BigEndian.Uint64(raw), nil
}

func readString(txn *badger.Txn, key string) (string, error) {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return "", domain.ErrStorage.WithCause(err)
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return "", domain.ErrStorage.WithCause(err)
	}
	return string(raw), nil
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
