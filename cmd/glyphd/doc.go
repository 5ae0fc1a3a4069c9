// Package main provides the entry point for glyphd.
//
// The daemon is the core glyph-engine service that provides:
//
//   - HTTP API for token lifecycle and beacon registration
//   - Durable token storage (memory + WAL + snapshots)
//   - Badger-backed lineage ledger with a hash-chain accumulator
//   - Append-only hash-chained audit trail
//   - Prometheus metrics
//
// Usage:
//
//	glyphd [flags]
//	glyphd --config /path/to/config.yaml
//
// The daemon loads configuration, recovers persisted state, seeds the
// genesis anchors on first start, and serves until interrupted.
package main
