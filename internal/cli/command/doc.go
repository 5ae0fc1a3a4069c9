// Package command provides CLI command definitions for glyph-cli.
//
// Commands operate directly on a local data directory: the CLI opens
// the same storage engine, ledger and audit log the server uses. The
// data directory is single-writer; glyph-cli must not run against a
// directory a live glyphd is serving.
package command
