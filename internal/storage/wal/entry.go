package wal

import (
	"errors"
	"time"

	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/core/domain"
)

// headerSize is the size of the entry header: length (4) + crc (4).
const headerSize = 8

// Errors for WAL operations.
var (
	ErrCorruptedEntry   = errors.New("wal: corrupted entry")
	ErrChecksumMismatch = errors.New("wal: checksum mismatch")
	ErrInvalidEntryType = errors.New("wal: invalid entry type")
)

// OpType represents the type of operation in the WAL.
type OpType uint8

const (
	OpTypeUnspecified OpType = iota
	OpTypeCreate
	OpTypeUpdate
	OpTypeDelete
)

// Entry represents one durable operation written to the WAL.
type Entry struct {
	OpType    OpType
	Timestamp int64 // Unix milliseconds
	TokenID   string
	Version   uint64
	Token     *domain.Token
}

// NewCreateEntry creates a CREATE WAL entry.
func NewCreateEntry(token *domain.Token) *Entry {
	return &Entry{
		OpType:    OpTypeCreate,
		Timestamp: time.Now().UnixMilli(),
		TokenID:   token.ID,
		Version:   token.Version,
		Token:     token,
	}
}

// NewUpdateEntry creates an UPDATE WAL entry.
func NewUpdateEntry(token *domain.Token) *Entry {
	return &Entry{
		OpType:    OpTypeUpdate,
		Timestamp: time.Now().UnixMilli(),
		TokenID:   token.ID,
		Version:   token.Version,
		Token:     token,
	}
}

// NewDeleteEntry creates a DELETE WAL entry.
func NewDeleteEntry(tokenID string) *Entry {
	return &Entry{
		OpType:    OpTypeDelete,
		Timestamp: time.Now().UnixMilli(),
		TokenID:   tokenID,
	}
}
