// Package domain defines the core domain models for the Glyph Engine.
//
// Domain models are pure value objects and entities without any
// IO dependencies or framework coupling.
package domain

import (
	"crypto/rand"
	"math"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Token constraints.
const (
	MaxExplanationLength = 200
	MaxOwnerLength       = 128
	MaxAncestryDepth     = 8

	// TokenIDPrefix is the prefix for state token IDs.
	TokenIDPrefix = "gt-"

	// TokenIDLength is the total token ID length: gt- (3) + ULID (26).
	TokenIDLength = 29
)

// TokenClass classifies a state token.
//
// Note: ClassAnchor is a token class describing static context. It is
// unrelated to the immutable ledger beacons, which live in a separate
// store with a disjoint operation set.
type TokenClass string

const (
	ClassAnchor   TokenClass = "anchor"   // static identity/context
	ClassMutation TokenClass = "mutation" // state transition operator
	ClassWarning  TokenClass = "warning"  // flow control and alerts
	ClassAudit    TokenClass = "audit"    // reflective marker
	ClassConsent  TokenClass = "consent"  // approval gate
)

// ValidClass reports whether c is a registered token class.
func ValidClass(c TokenClass) bool {
	switch c {
	case ClassAnchor, ClassMutation, ClassWarning, ClassAudit, ClassConsent:
		return true
	}
	return false
}

// Source identifies the origin of a token or request.
type Source string

const (
	SourceUser   Source = "user"
	SourceSystem Source = "system"
)

// ValidSource reports whether s is a known source.
func ValidSource(s Source) bool {
	return s == SourceUser || s == SourceSystem
}

// TokenState is the lifecycle state of a token.
type TokenState string

const (
	StateCreated   TokenState = "created"
	StateActive    TokenState = "active"
	StateMutated   TokenState = "mutated"
	StateExpired   TokenState = "expired"
	StateForgotten TokenState = "forgotten"
)

// Terminal reports whether the state admits no further transitions.
func (s TokenState) Terminal() bool {
	return s == StateExpired || s == StateForgotten
}

// Vector is the mechanistic 3D position of a token. The axes are
// deterministic (urgency, load, stability), not semantic embeddings.
// Each component is bounded to [-1, 1].
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Bounded reports whether every component lies in [-1, 1].
func (v Vector) Bounded() bool {
	return v.X >= -1 && v.X <= 1 && v.Y >= -1 && v.Y <= 1 && v.Z >= -1 && v.Z <= 1
}

// Magnitude returns the Euclidean length of the vector.
func (v Vector) Magnitude() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Token represents a mutable, TTL-bounded state token.
//
// A token is logically dead once wall-clock time passes ExpiresAt, even
// if not yet physically purged; liveness is always computed lazily at
// read time from the stored timestamps.
type Token struct {
	// ID is the unique identifier. Format: gt-{ulid_lowercase}.
	ID string `json:"id"`

	// Class is the token classification.
	Class TokenClass `json:"class"`

	// Vector is the mechanistic state position.
	Vector Vector `json:"vector"`

	// Intensity is the token strength in [0, 1].
	Intensity float64 `json:"intensity"`

	// Source records who created the token (user or system).
	Source Source `json:"source"`

	// Owner is an optional owner label.
	Owner string `json:"owner,omitempty"`

	// TTL is the time-to-live in milliseconds. Mandatory, > 0.
	TTL int64 `json:"ttl"`

	// Explanation is the one-sentence human-readable explanation.
	// Subject to the identity-claim pattern filter at validation.
	Explanation string `json:"explanation"`

	// CreatedAt is the logical creation timestamp (Unix milliseconds).
	// Mutations keep it; they stamp MutatedAt instead.
	CreatedAt int64 `json:"created_at"`

	// MutatedAt is the timestamp of the latest mutation (Unix
	// milliseconds), zero if never mutated.
	MutatedAt int64 `json:"mutated_at,omitempty"`

	// ExpiresAt is the absolute expiry timestamp (Unix milliseconds).
	ExpiresAt int64 `json:"expires_at"`

	// ParentID links a mutated snapshot back to its origin token.
	ParentID string `json:"parent_id,omitempty"`

	// Depth is the ancestry depth of the mutation chain, zero for an
	// original creation. Bounded by the amplification limit.
	Depth int `json:"depth"`

	// State is the lifecycle state.
	State TokenState `json:"state"`

	// Version is the optimistic lock version number.
	Version uint64 `json:"version"`
}

// NewToken creates a token in StateCreated with a generated ID.
// TTL must be positive; it is enforced later by the validator so that
// the rejection is observable, not silently corrected here.
func NewToken(class TokenClass, source Source, explanation string, ttl time.Duration) (*Token, error) {
	id, err := GenerateTokenID()
	if err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	return &Token{
		ID:          id,
		Class:       class,
		Intensity:   0.5,
		Source:      source,
		TTL:         ttl.Milliseconds(),
		Explanation: explanation,
		CreatedAt:   now,
		ExpiresAt:   now + ttl.Milliseconds(),
		State:       StateCreated,
		Version:     1,
	}, nil
}

// GenerateTokenID generates a new token ID using ULID.
// Format: gt-{ulid_lowercase}, 29 characters total.
func GenerateTokenID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", ErrInternal.WithCause(err)
	}
	return TokenIDPrefix + strings.ToLower(id.String()), nil
}

// IsValidTokenID checks if a string is a valid token ID format.
func IsValidTokenID(id string) bool {
	id = strings.ToLower(id)
	if !strings.HasPrefix(id, TokenIDPrefix) {
		return false
	}
	if len(id) != TokenIDLength {
		return false
	}
	_, err := ulid.Parse(strings.ToUpper(id[len(TokenIDPrefix):]))
	return err == nil
}

// IsExpired reports whether wall-clock time has passed ExpiresAt.
func (t *Token) IsExpired() bool {
	return time.Now().UnixMilli() > t.ExpiresAt
}

// TTLDuration returns the remaining time-to-live.
// Returns 0 if the token is expired.
func (t *Token) TTLDuration() time.Duration {
	remaining := t.ExpiresAt - time.Now().UnixMilli()
	if remaining < 0 {
		return 0
	}
	return time.Duration(remaining) * time.Millisecond
}

// Refresh extends the expiry by the given duration.
func (t *Token) Refresh(extension time.Duration) {
	t.TTL += extension.Milliseconds()
	t.ExpiresAt += extension.Milliseconds()
}

// Attenuate reduces intensity by the given factor in (0, 1].
func (t *Token) Attenuate(factor float64) {
	t.Intensity *= factor
	if t.Intensity < 0 {
		t.Intensity = 0
	}
}

// IncrVersion increments the version number for optimistic locking.
func (t *Token) IncrVersion() {
	t.Version++
}

// Clone creates a deep copy of the token.
func (t *Token) Clone() *Token {
	clone := *t
	return &clone
}

// CanTransition reports whether the lifecycle permits moving from the
// token's current state to the target state.
//
//	Created -> Active
//	Active  -> Mutated | Expired | Forgotten
//	Mutated -> Active  | Expired | Forgotten
func (t *Token) CanTransition(target TokenState) bool {
	switch t.State {
	case StateCreated:
		return target == StateActive
	case StateActive:
		return target == StateMutated || target == StateExpired || target == StateForgotten
	case StateMutated:
		return target == StateActive || target == StateExpired || target == StateForgotten
	default:
		return false
	}
}

// Validate validates structural constraints of the token fields.
// Governance checks (TTL presence, ancestry, identity claims,
// authorization) belong to the validator, not here.
func (t *Token) Validate() error {
	var violations []string

	if !IsValidTokenID(t.ID) {
		violations = append(violations, "id has invalid format")
	}
	if !ValidClass(t.Class) {
		violations = append(violations, "class is not registered")
	}
	if !ValidSource(t.Source) {
		violations = append(violations, "source must be user or system")
	}
	if !t.Vector.Bounded() {
		violations = append(violations, "vector components must lie in [-1, 1]")
	}
	if t.Intensity < 0 || t.Intensity > 1 {
		violations = append(violations, "intensity must lie in [0, 1]")
	}
	if t.Explanation == "" {
		violations = append(violations, "explanation is required")
	}
	if len(t.Explanation) > MaxExplanationLength {
		violations = append(violations, "explanation exceeds 200 characters")
	}
	if len(t.Owner) > MaxOwnerLength {
		violations = append(violations, "owner exceeds 128 characters")
	}
	if t.Depth < 0 {
		violations = append(violations, "depth cannot be negative")
	}

	if len(violations) > 0 {
		return ErrTokenValidation.WithDetails(strings.Join(violations, "; "))
	}
	return nil
}

// CreatedAtTime returns CreatedAt as time.Time.
func (t *Token) CreatedAtTime() time.Time {
	return time.UnixMilli(t.CreatedAt)
}

// ExpiresAtTime returns ExpiresAt as time.Time.
func (t *Token) ExpiresAtTime() time.Time {
	return time.UnixMilli(t.ExpiresAt)
}
