// Package domain defines the core domain models for the Glyph Engine.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured
// error code. Codes are stable API: callers dispatch on them.
type DomainError struct {
	Code    string // Error code (e.g., "GE-LEDG-4090")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison by code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, Details: details, Cause: e.Cause}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, Details: e.Details, Cause: cause}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Validation Errors (VAL)
//
// Always recoverable by the caller correcting input; never auto-corrected
// by the engine, and never retried automatically.
// ============================================================================

var (
	// ErrTokenValidation indicates structural token validation failed.
	ErrTokenValidation = NewDomainError("GE-VAL-4000", "token validation failed")

	// ErrMissingTTL indicates the token carries no TTL or a non-positive one.
	ErrMissingTTL = NewDomainError("GE-VAL-4001", "token ttl missing or non-positive")

	// ErrRecursiveReference indicates the mutation ancestry chain exceeds
	// the amplification limit or references itself.
	ErrRecursiveReference = NewDomainError("GE-VAL-4002", "recursive or over-amplified ancestry chain")

	// ErrIdentityClaim indicates the explanation matched a forbidden
	// identity-assertion pattern.
	ErrIdentityClaim = NewDomainError("GE-VAL-4003", "explanation contains an identity claim")

	// ErrAccretionLimit indicates the active token limit was reached.
	ErrAccretionLimit = NewDomainError("GE-VAL-4004", "active token limit reached")

	// ErrUnauthorized indicates a mutation without a valid credential
	// matching the token's source.
	ErrUnauthorized = NewDomainError("GE-VAL-4010", "mutation requires a valid credential")
)

// ============================================================================
// Token Errors (TOKN)
// ============================================================================

var (
	// ErrTokenNotFound indicates the requested token was not found.
	ErrTokenNotFound = NewDomainError("GE-TOKN-4040", "token not found")

	// ErrTokenExpired indicates the token's TTL has elapsed.
	ErrTokenExpired = NewDomainError("GE-TOKN-4041", "token expired")

	// ErrTokenTerminal indicates the token is in a terminal state and
	// admits no further transitions.
	ErrTokenTerminal = NewDomainError("GE-TOKN-4010", "token is in a terminal state")

	// ErrTokenConflict indicates the token ID already exists.
	ErrTokenConflict = NewDomainError("GE-TOKN-4090", "token id conflict")

	// ErrTokenVersionConflict indicates an optimistic lock conflict.
	ErrTokenVersionConflict = NewDomainError("GE-TOKN-4091", "token version conflict, please retry")
)

// ============================================================================
// Ledger Errors (LEDG)
//
// Integrity failures (AccumulatorMismatch) are fatal: the ledger halts
// further writes until manually resolved.
// ============================================================================

var (
	// ErrBeaconNotFound indicates the requested beacon was not found.
	ErrBeaconNotFound = NewDomainError("GE-LEDG-4040", "beacon not found")

	// ErrBeaconImmutable indicates an attempt to modify an immutable
	// beacon field. The only permitted change is deprecation.
	ErrBeaconImmutable = NewDomainError("GE-LEDG-4030", "beacon fields are immutable")

	// ErrBeaconValidation indicates beacon field validation failed.
	ErrBeaconValidation = NewDomainError("GE-LEDG-4001", "beacon validation failed")

	// ErrDuplicateBeacon indicates the beacon ID already exists in the ledger.
	ErrDuplicateBeacon = NewDomainError("GE-LEDG-4090", "duplicate beacon id")

	// ErrOutOfOrder indicates an append at a position other than the end.
	ErrOutOfOrder = NewDomainError("GE-LEDG-4091", "ledger appends must be at the end")

	// ErrAlreadyDeprecated indicates the beacon is already deprecated.
	ErrAlreadyDeprecated = NewDomainError("GE-LEDG-4092", "beacon already deprecated")

	// ErrAccumulatorMismatch indicates the persisted accumulator diverges
	// from the value recomputed over the ordered beacon list.
	ErrAccumulatorMismatch = NewDomainError("GE-LEDG-5000", "ledger accumulator mismatch")

	// ErrLedgerHalted indicates writes are refused after an integrity failure.
	ErrLedgerHalted = NewDomainError("GE-LEDG-5030", "ledger writes halted pending manual resolution")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrInternal indicates an internal error.
	ErrInternal = NewDomainError("GE-SYS-5000", "internal error")

	// ErrStorage indicates a storage layer durability failure. Fatal;
	// never silently retried.
	ErrStorage = NewDomainError("GE-SYS-5001", "storage error")

	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = NewDomainError("GE-SYS-4000", "bad request")

	// ErrRateLimited indicates too many requests.
	ErrRateLimited = NewDomainError("GE-SYS-4290", "too many requests")
)

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("GE-ARG-1001", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("GE-ARG-1002", "missing required argument")
)
