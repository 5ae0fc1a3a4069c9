// Package domain defines the core domain models for the Glyph Engine.
package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Beacon ID format: BG-{SCOPE}-{SEQUENCE}, e.g. BG-AMOS-0001.
const (
	BeaconIDPrefix    = "BG-"
	BeaconSequenceLen = 4
)

var beaconIDPattern = regexp.MustCompile(`^BG-[A-Z]{2,8}-\d{4,}$`)

// Registered beacon scopes. The registry is extensible only additively;
// removing or renaming a scope would orphan issued IDs.
var beaconScopes = map[string]string{
	"AMOS":  "autonomous model artifacts",
	"LING":  "language kernel specifications",
	"MDNA":  "reflection protocol documents",
	"VAULT": "sovereign storage artifacts",
	"SPEC":  "external specifications",
	"EXT":   "uncategorized external artifacts",
}

// ValidScope reports whether scope is registered.
func ValidScope(scope string) bool {
	_, ok := beaconScopes[scope]
	return ok
}

// Scopes returns the registered scope codes.
func Scopes() []string {
	out := make([]string, 0, len(beaconScopes))
	for s := range beaconScopes {
		out = append(out, s)
	}
	return out
}

// FormatBeaconID builds a beacon ID from scope and sequence number.
func FormatBeaconID(scope string, sequence int) string {
	return fmt.Sprintf("%s%s-%0*d", BeaconIDPrefix, scope, BeaconSequenceLen, sequence)
}

// IsValidBeaconID checks the BG-{SCOPE}-{SEQUENCE} format and that the
// scope is registered.
func IsValidBeaconID(id string) bool {
	if !beaconIDPattern.MatchString(id) {
		return false
	}
	parts := strings.SplitN(id, "-", 3)
	return ValidScope(parts[1])
}

// Beacon is an immutable lineage anchor citing an external artifact.
//
// Once appended to the ledger every field except Deprecated is
// bit-for-bit immutable, and the insertion position is part of the
// permanent record. Deprecated changes monotonically false -> true.
type Beacon struct {
	// BeaconID is the globally unique identifier, assigned once.
	BeaconID string `json:"beacon_id"`

	// Scope is the registered scope code (e.g. "AMOS").
	Scope string `json:"scope"`

	// ArtifactName names the cited artifact.
	ArtifactName string `json:"artifact_name"`

	// CanonicalOwner is the artifact's canonical owner.
	CanonicalOwner string `json:"canonical_owner"`

	// ExternalID is an optional external identifier (e.g. a DOI).
	ExternalID string `json:"external_id,omitempty"`

	// FirstSeen is the date the artifact was first observed (RFC 3339 date).
	FirstSeen string `json:"first_seen"`

	// Hash is the algorithm-tagged content hash of the artifact.
	Hash string `json:"hash"`

	// Deprecated marks the anchor as superseded. The only mutable field.
	Deprecated bool `json:"deprecated"`
}

// beaconDigestView is the canonical serialization hashed into the
// ledger chain. Deprecated is deliberately excluded: deprecation is an
// append-logged event and must not disturb prior accumulator values.
type beaconDigestView struct {
	BeaconID       string `json:"beacon_id"`
	Scope          string `json:"scope"`
	ArtifactName   string `json:"artifact_name"`
	CanonicalOwner string `json:"canonical_owner"`
	ExternalID     string `json:"external_id,omitempty"`
	FirstSeen      string `json:"first_seen"`
	Hash           string `json:"hash"`
}

// Digest returns the algorithm-tagged hash of the beacon's immutable
// fields, the leaf value fed into the ledger accumulator.
func (b *Beacon) Digest() string {
	canonical, err := CanonicalJSON(beaconDigestView{
		BeaconID:       b.BeaconID,
		Scope:          b.Scope,
		ArtifactName:   b.ArtifactName,
		CanonicalOwner: b.CanonicalOwner,
		ExternalID:     b.ExternalID,
		FirstSeen:      b.FirstSeen,
		Hash:           b.Hash,
	})
	if err != nil {
		// CanonicalJSON over a flat struct of strings cannot fail.
		panic(err)
	}
	return SumSHA256(canonical)
}

// Validate validates the beacon fields against format constraints.
func (b *Beacon) Validate() error {
	var violations []string

	if !IsValidBeaconID(b.BeaconID) {
		violations = append(violations, "beacon_id must match BG-{SCOPE}-{SEQUENCE}")
	}
	if !ValidScope(b.Scope) {
		violations = append(violations, "scope is not registered")
	}
	if b.BeaconID != "" && b.Scope != "" && !strings.HasPrefix(b.BeaconID, BeaconIDPrefix+b.Scope+"-") {
		violations = append(violations, "beacon_id scope segment must match scope")
	}
	if b.ArtifactName == "" {
		violations = append(violations, "artifact_name is required")
	}
	if b.CanonicalOwner == "" {
		violations = append(violations, "canonical_owner is required")
	}
	if b.FirstSeen == "" {
		violations = append(violations, "first_seen is required")
	} else if _, err := time.Parse("2006-01-02", b.FirstSeen); err != nil {
		violations = append(violations, "first_seen must be a YYYY-MM-DD date")
	}
	if !ValidTaggedHash(b.Hash) {
		violations = append(violations, "hash must be algorithm-tagged (sha256:...)")
	}

	if len(violations) > 0 {
		return ErrBeaconValidation.WithDetails(strings.Join(violations, "; "))
	}
	return nil
}

// Clone creates a copy of the beacon.
func (b *Beacon) Clone() *Beacon {
	clone := *b
	return &clone
}
