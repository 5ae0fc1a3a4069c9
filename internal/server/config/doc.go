// Package config defines the glyphd server configuration.
//
// The package splits configuration concerns across files:
//
//   - spec.go: ServerConfig struct definition
//   - default.go: Default configuration values
//   - verify.go: Business validation (paths, ranges)
//   - sanitize.go: Log sanitization (hide sensitive values)
//
// Configuration is loaded via internal/infra/confloader and supports
// files, environment variables, and flags.
package config
