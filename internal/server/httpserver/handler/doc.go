// Package handler provides the HTTP request handlers for the glyph
// engine API.
//
// Handlers translate JSON requests into service calls and service
// results back into the standard response envelope. All state changes
// go through the engine and registrar; handlers hold no state of their
// own.
package handler
