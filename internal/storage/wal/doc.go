// Package wal provides write-ahead logging for the token store.
//
// Every token operation is written to disk before it is applied to
// memory, so a crash loses at most the unflushed batch and never
// leaves a half-applied transition visible after recovery.
//
// Format:
//
//	wal-<segment-id>.log
//	[magic:8 "GLYFWAL\x01"]
//	[Entry]*
//	[checksum:32 SHA-256 of all bytes above] (present once finalized)
//
// Entry wire format:
//
//	[Length:4][CRC32:4][Type:1][Payload:Length-5]
//
// Length counts CRC32+Type+Payload (big-endian uint32); CRC32 covers
// Type+Payload (IEEE); Payload is JSON, optionally carrying the token
// as an AEAD-sealed blob instead of plaintext.
package wal
