// Package service provides the domain services of the Glyph Engine.
//
// Validator holds the pure governance checks applied to every token
// request before any store mutation. Engine orchestrates the token
// lifecycle against the durable store and writes the audit trail.
// Registrar fronts the append-only lineage ledger.
//
// Services accept interfaces for their storage dependencies and carry
// no IO of their own beyond those dependencies.
package service
