// Package domain defines the core domain models for the Glyph Engine.
package domain

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// AuditEventIDPrefix is the prefix for audit event IDs.
const AuditEventIDPrefix = "ae-"

// Operation is the operation recorded by an audit entry.
type Operation string

const (
	OpCreate    Operation = "create"
	OpMutate    Operation = "mutate"
	OpExpire    Operation = "expire"
	OpForget    Operation = "forget"
	OpRegister  Operation = "register"
	OpDeprecate Operation = "deprecate"
	OpVerify    Operation = "verify"
	OpReject    Operation = "reject"
)

// Outcome records whether the operation was applied.
type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeRejected Outcome = "rejected"
)

// AuditEntry is one immutable record of the append-only audit trail.
//
// Entries are hash-chained: Hash covers every field including PrevHash,
// so removing or reordering any entry breaks verification of every
// later one. Rejections are recorded with the same discipline as
// accepted operations; the audit trail is the sole history of
// attempted violations.
type AuditEntry struct {
	// EventID is the unique event identifier. Format: ae-{ulid_lowercase}.
	EventID string `json:"event_id"`

	// Timestamp is the recording time (Unix milliseconds).
	Timestamp int64 `json:"timestamp"`

	// Operation is the attempted operation.
	Operation Operation `json:"operation"`

	// TargetID is the token or beacon the operation addressed, if any.
	TargetID string `json:"target_id,omitempty"`

	// Outcome is accepted or rejected.
	Outcome Outcome `json:"outcome"`

	// Reason carries the rejection reason; empty on accepted entries.
	Reason string `json:"reason,omitempty"`

	// Source is the request origin (user or system).
	Source Source `json:"source,omitempty"`

	// PrevHash is the Hash of the preceding entry, or the genesis
	// accumulator for the first entry.
	PrevHash string `json:"prev_hash"`

	// Hash seals the entry. Computed over the canonical serialization
	// of every other field.
	Hash string `json:"hash"`
}

// AuditFilter selects audit entries for a query. Zero values match
// everything.
type AuditFilter struct {
	Operation Operation
	Outcome   Outcome
	TargetID  string
	Since     int64 // Unix ms, inclusive
	Until     int64 // Unix ms, exclusive
	Limit     int   // 0 means unlimited
}

// Match reports whether the entry passes the filter.
func (f AuditFilter) Match(e *AuditEntry) bool {
	if f.Operation != "" && e.Operation != f.Operation {
		return false
	}
	if f.Outcome != "" && e.Outcome != f.Outcome {
		return false
	}
	if f.TargetID != "" && e.TargetID != f.TargetID {
		return false
	}
	if f.Since != 0 && e.Timestamp < f.Since {
		return false
	}
	if f.Until != 0 && e.Timestamp >= f.Until {
		return false
	}
	return true
}

// NewAuditEntry creates an unsealed audit entry stamped with the
// current time. The caller seals it with the chain's previous hash.
func NewAuditEntry(op Operation, targetID string, outcome Outcome, reason string, source Source) (*AuditEntry, error) {
	id, err := GenerateEventID()
	if err != nil {
		return nil, err
	}
	return &AuditEntry{
		EventID:   id,
		Timestamp: time.Now().UnixMilli(),
		Operation: op,
		TargetID:  targetID,
		Outcome:   outcome,
		Reason:    reason,
		Source:    source,
	}, nil
}

// GenerateEventID generates a new audit event ID using ULID.
func GenerateEventID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", ErrInternal.WithCause(err)
	}
	return AuditEventIDPrefix + strings.ToLower(id.String()), nil
}

// auditDigestView is the canonical serialization sealed by Hash.
type auditDigestView struct {
	EventID   string    `json:"event_id"`
	Timestamp int64     `json:"timestamp"`
	Operation Operation `json:"operation"`
	TargetID  string    `json:"target_id,omitempty"`
	Outcome   Outcome   `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
	Source    Source    `json:"source,omitempty"`
	PrevHash  string    `json:"prev_hash"`
}

// ComputeHash returns the algorithm-tagged hash over all fields except
// Hash itself. PrevHash must already be set.
func (e *AuditEntry) ComputeHash() string {
	canonical, err := CanonicalJSON(auditDigestView{
		EventID:   e.EventID,
		Timestamp: e.Timestamp,
		Operation: e.Operation,
		TargetID:  e.TargetID,
		Outcome:   e.Outcome,
		Reason:    e.Reason,
		Source:    e.Source,
		PrevHash:  e.PrevHash,
	})
	if err != nil {
		// CanonicalJSON over a flat struct cannot fail.
		panic(err)
	}
	return SumSHA256(canonical)
}

// Seal links the entry to the chain and computes its hash.
func (e *AuditEntry) Seal(prevHash string) {
	e.PrevHash = prevHash
	e.Hash = e.ComputeHash()
}

// VerifyHash reports whether the sealed hash matches the fields.
func (e *AuditEntry) VerifyHash() bool {
	return e.Hash != "" && e.Hash == e.ComputeHash()
}
