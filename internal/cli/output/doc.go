// Package output provides output formatting for glyph-cli.
//
// Three formats are supported: an aligned text table for humans,
// indented JSON for scripts, and YAML for configuration-shaped dumps.
package output
