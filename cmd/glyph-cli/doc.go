// Package main provides the entry point for glyph-cli.
//
// The CLI tool provides command-line access to a glyph data directory:
//
//   - Token management (create, remember, list, get, forget)
//   - Beacon registration, verification, and inclusion proofs
//   - Audit trail queries and chain verification
//   - State export
//
// Usage:
//
//	glyph-cli [command] [flags]
//	glyph-cli token list --output json
//	glyph-cli beacon verify BG-AMOS-0001 --hash sha256:...
//
// The CLI opens the data directory directly and must not run against a
// directory a live glyphd is serving.
package main
