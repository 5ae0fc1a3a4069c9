package handler

import (
	"time"

	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/core/domain"
)

// Response is the standard API response envelope. All JSON responses
// use this format; /metrics is the one exception and speaks Prometheus
// text format.
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// CreateTokenRequest is the request body for POST /v1/tokens.
type CreateTokenRequest struct {
	Class       string   `json:"class"`
	Vector      *Vector  `json:"vector,omitempty"`
	Intensity   *float64 `json:"intensity,omitempty"`
	Source      string   `json:"source"`
	Owner       string   `json:"owner,omitempty"`
	Explanation string   `json:"explanation"`
	TTLMillis   int64    `json:"ttl_ms"`

	// Persistent selects the long default TTL when ttl_ms is absent.
	Persistent bool `json:"persistent,omitempty"`
}

// Vector is the request body representation of a state position.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// MutateTokenRequest is the request body for POST /v1/tokens/{id}/mutate.
type MutateTokenRequest struct {
	Verb        string   `json:"verb"`
	Factor      float64  `json:"factor,omitempty"`
	ExtensionMs int64    `json:"extension_ms,omitempty"`
	Class       string   `json:"class,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
	Intensity   *float64 `json:"intensity,omitempty"`
	Credential  string   `json:"credential"`
	Source      string   `json:"source"`
}

// ForgetTokenRequest is the request body for DELETE /v1/tokens/{id}.
type ForgetTokenRequest struct {
	Reason string `json:"reason,omitempty"`
	Source string `json:"source"`
}

// ListTokensResponse is the response body for GET /v1/tokens.
type ListTokensResponse struct {
	Items []*domain.Token `json:"items"`
	Total int             `json:"total"`
}

// RegisterBeaconRequest is the request body for POST /v1/beacons.
type RegisterBeaconRequest struct {
	Scope          string `json:"scope"`
	ArtifactName   string `json:"artifact_name"`
	CanonicalOwner string `json:"canonical_owner"`
	ExternalID     string `json:"external_id,omitempty"`
	FirstSeen      string `json:"first_seen"`
	Hash           string `json:"hash"`
}

// RegisterBeaconResponse is the response body for POST /v1/beacons.
type RegisterBeaconResponse struct {
	Beacon   *domain.Beacon `json:"beacon"`
	Position uint64         `json:"position"`
}

// BeaconResponse is the response body for GET /v1/beacons/{id}.
type BeaconResponse struct {
	Beacon   *domain.Beacon `json:"beacon"`
	Position uint64         `json:"position"`
}

// AccumulatorResponse is the response body for GET /v1/ledger/accumulator.
type AccumulatorResponse struct {
	Accumulator string `json:"accumulator"`
	Size        uint64 `json:"size"`
}

// AuditReportResponse is the response body for GET /v1/audit.
type AuditReportResponse struct {
	Entries []*domain.AuditEntry `json:"entries"`
	Total   int                  `json:"total"`
}
