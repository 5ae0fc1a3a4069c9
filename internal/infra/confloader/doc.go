// Package confloader loads configuration from files, environment
// variables, and maps using koanf.
//
// Priority (highest to lowest):
//
//  1. Command-line flags (loaded via LoadMap)
//  2. Environment variables (GLYPH_ prefix)
//  3. Configuration file (YAML)
//  4. Default values
//
// A companion fsnotify watcher triggers reload callbacks when the
// configuration file changes on disk.
package confloader
