package wal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/pkg/crypto/adaptive"
)

type segmentRef struct {
	id   uint64
	path string
}

// Reader reads entries sequentially across WAL segments in segment
// order. A corrupted frame abandons the rest of its segment and the
// reader continues with the next one.
type Reader struct {
	cipher   adaptive.Cipher
	segments []segmentRef

	segIdx  int
	file    *os.File
	offset  int64
	dataLen int64
}

// NewReader opens a reader over all segments in dir.
func NewReader(dir string, cipher adaptive.Cipher) (*Reader, error) {
	entries, err := os.ReadDir(dir)
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
		segments = append(segments, segmentRef{id: id, path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].id < segments[j].id })

	return &Reader{
		cipher:   cipher,
		segments: segments,
		segIdx:   -1,
	}, nil
}

// CurrentOffset returns the composite offset of the next frame to be
// read: (segmentID<<32 | offsetWithinSegment).
func (r *Reader) CurrentOffset() uint64 {
	if r.segIdx < 0 || r.segIdx >= len(r.segments) {
		return 0
	}
	return (r.segments[r.segIdx].id << 32) | uint64(uint32(r.offset))
}

// Seek positions the reader at a composite offset previously obtained
// from Writer.CurrentOffset or Reader.CurrentOffset.
func (r *Reader) Seek(offset uint64) error {
	segmentID := offset >> 32
	inner := int64(uint32(offset))

	idx := -1
	for i, s := range r.segments {
		if s.id == segmentID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("wal: segment %d not found", segmentID)
	}

	if err := r.openSegment(idx); err != nil {
		return err
	}
	if inner < MagicBytesSize {
		inner = MagicBytesSize
	}
	if inner > r.dataLen {
		return fmt.Errorf("wal: offset %d beyond segment data length %d", inner, r.dataLen)
	}
	r.offset = inner
	return nil
}

// Read returns the next entry. It returns io.EOF when all segments
// are exhausted.
func (r *Reader) Read() (*Entry, error) {
	for {
		if r.segIdx < 0 || r.offset >= r.dataLen {
			if err := r.nextSegment(); err != nil {
				return nil, err
			}
			continue
		}

		entry, err := r.readFrame()
		if err == nil {
			return entry, nil
		}
		if errors.Is(err, io.EOF) {
			// Open segment may end mid-frame after a crash.
			r.offset = r.dataLen
			continue
		}
		if errors.Is(err, ErrCorruptedEntry) || errors.Is(err, ErrChecksumMismatch) || errors.Is(err, ErrInvalidEntryType) {
			// Abandon the rest of this segment.
			r.offset = r.dataLen
			continue
		}
		return nil, err
	}
}

// ReadAll reads every remaining entry.
func (r *Reader) ReadAll() ([]*Entry, error) {
	var entries []*Entry
	for {
		entry, err := r.Read()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return entries, err
		}
		entries = append(entries, entry)
	}
}

func (r *Reader) readFrame() (*Entry, error) {
	var header [4]byte
	if r.dataLen-r.offset < 4 {
		return nil, io.EOF
	}
	if _, err := io.ReadFull(io.NewSectionReader(r.file, r.offset, 4), header[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(header[:])
	if length < 5 {
		return nil, ErrCorruptedEntry
	}
	if r.offset+4+int64(length) > r.dataLen {
		return nil, io.EOF
	}

	frame := make([]byte, length)
	if _, err := io.ReadFull(io.NewSectionReader(r.file, r.offset+4, int64(length)), frame); err != nil {
		return nil, err
	}

	entry, err := decodeEntryFrame(frame, r.cipher)
	if err != nil {
		return nil, err
	}

	r.offset += 4 + int64(length)
	return entry, nil
}

func (r *Reader) nextSegment() error {
	if err := r.openSegment(r.segIdx + 1); err != nil {
		return err
	}
	r.offset = MagicBytesSize
	return nil
}

func (r *Reader) openSegment(idx int) error {
	if idx >= len(r.segments) {
		return io.EOF
	}

	if r.file != nil {
		r.file.Close()
		r.file = nil
	}

	file, err := os.Open(r.segments[idx].path)
	if err != nil {
		return fmt.Errorf("wal: open segment: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("wal: stat segment: %w", err)
	}

	closed, dataLen, err := verifyChecksumTrailer(file, stat.Size())
	if err != nil {
		file.Close()
		if errors.Is(err, errInvalidMagic) {
			// Unreadable segment, skip it entirely.
			r.segIdx = idx
			r.file = nil
			r.offset = 0
			r.dataLen = 0
			return nil
		}
		return err
	}
	_ = closed

	r.segIdx = idx
	r.file = file
	r.dataLen = dataLen
	r.offset = MagicBytesSize
	return nil
}

// VerifyTrailerChecksum checks that the named segment file carries a
// valid checksum trailer.
func VerifyTrailerChecksum(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("wal: open: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("wal: stat: %w", err)
	}

	closed, _, err := verifyChecksumTrailer(f, stat.Size())
	if err != nil {
		return err
	}
	if !closed {
		return errChecksumInvalid
	}
	return nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}
	return nil
}
