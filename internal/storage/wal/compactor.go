package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// DefaultRetainSegments is the minimum number of recent segments kept
// on disk regardless of snapshot coverage.
const DefaultRetainSegments = 3

// CompactorOption configures a Compactor.
type CompactorOption func(*Compactor)

// WithRetainCount sets how many recent segments are always kept.
func WithRetainCount(n int) CompactorOption {
	return func(c *Compactor) {
		if n > 0 {
			c.retain = n
		}
	}
}

// Compactor removes WAL segments that a snapshot has made redundant.
type Compactor struct {
	dir    string
	retain int
}

// NewCompactor creates a compactor for the given WAL directory.
func NewCompactor(dir string, opts ...CompactorOption) *Compactor {
	c := &Compactor{dir: dir, retain: DefaultRetainSegments}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Compactor) listSegments() ([]segmentRef, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("wal: read dir: %w", err)
	}

	var segments []segmentRef
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, ok := parseSegmentFilename(e.Name())
		if !ok {
			continue
		}
		segments = append(segments, segmentRef{id: id, path: filepath.Join(c.dir, e.Name())})
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].id < segments[j].id })
	return segments, nil
}

// Compact deletes segments fully covered by a snapshot taken at the
// given composite offset. The segment containing the offset and the
// most recent retain segments are always kept.
func (c *Compactor) Compact(snapshotOffset uint64) error {
	segments, err := c.listSegments()
	if err != nil {
		return err
	}
	if len(segments) <= c.retain {
		return nil
	}

	snapshotSegment := snapshotOffset >> 32
	// Never touch the newest retain segments.
	deletable := segments[:len(segments)-c.retain]

	for _, s := range deletable {
		if s.id >= snapshotSegment {
			break
		}
		if err := os.Remove(s.path); err != nil {
			return fmt.Errorf("wal: remove segment %d: %w", s.id, err)
		}
	}
	return nil
}

// NeedsCompaction reports whether more than threshold segments exist
// below the snapshot offset.
func (c *Compactor) NeedsCompaction(snapshotOffset uint64, threshold int) (bool, error) {
	segments, err := c.listSegments()
	if err != nil {
		return false, err
	}

	snapshotSegment := snapshotOffset >> 32
	covered := 0
	for _, s := range segments {
		if s.id < snapshotSegment {
			covered++
		}
	}
	return covered > threshold, nil
}

// TotalSize returns the combined size of all segment files in bytes.
func (c *Compactor) TotalSize() (int64, error) {
	segments, err := c.listSegments()
	if err != nil {
		return 0, err
	}

	var total int64
	for _, s := range segments {
		stat, err := os.Stat(s.path)
		if err != nil {
			return 0, fmt.Errorf("wal: stat segment: %w", err)
		}
		total += stat.Size()
	}
	return total, nil
}

// FileCount returns the number of segment files.
func (c *Compactor) FileCount() (int, error) {
	segments, err := c.listSegments()
	if err != nil {
		return 0, err
	}
	return len(segments), nil
}

// CleanAll removes every segment file. Used when a recovery decides
// the log is unusable and a fresh one must be started.
func (c *Compactor) CleanAll() error {
	segments, err := c.listSegments()
	if err != nil {
		return err
	}
	for _, s := range segments {
		if err := os.Remove(s.path); err != nil {
			return fmt.Errorf("wal: remove segment %d: %w", s.id, err)
		}
	}
	return nil
}
