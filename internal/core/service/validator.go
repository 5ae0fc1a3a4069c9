package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/core/domain"
)

// Default governance limits.
const (
	// DefaultMaxActiveTokens is the accretion limit: the maximum number
	// of live tokens held at once.
	DefaultMaxActiveTokens = 256

	// DefaultMaxAncestryDepth is the amplification limit: the maximum
	// depth of a token's mutation ancestry chain.
	DefaultMaxAncestryDepth = domain.MaxAncestryDepth
)

// defaultIdentityPatterns are the built-in forbidden explanation
// patterns: first-person identity assertions and personality claims.
// Matching is case-insensitive over the raw explanation text.
var defaultIdentityPatterns = []string{
	`\bi\s+am\s+(conscious|sentient|alive|self[- ]?aware|real|a\s+person)\b`,
	`\bmy\s+(identity|personality|consciousness|soul|self)\b`,
	`\bi\s+(exist|feel|remember\s+who\s+i\s+am)\b`,
	`\bidentity\b`,
}

// ValidatorConfig configures the governance checks.
type ValidatorConfig struct {
	// MaxActiveTokens is the accretion limit. Zero selects the default.
	MaxActiveTokens int

	// MaxAncestryDepth is the amplification limit. Zero selects the default.
	MaxAncestryDepth int

	// ExtraIdentityPatterns are appended to the built-in forbidden
	// patterns. Each must be a valid regular expression.
	ExtraIdentityPatterns []string
}

// Validator runs the pure governance checks on token requests.
//
// All checks are side-effect free: a rejection leaves every store
// untouched, and the caller owns writing the rejection to the audit
// trail. Rejections are never auto-corrected or retried.
type Validator struct {
	maxActive int
	maxDepth  int
	patterns  []*regexp.Regexp
	checksum  string
}

// NewValidator creates a Validator from the given configuration.
func NewValidator(cfg ValidatorConfig) (*Validator, error) {
	maxActive := cfg.MaxActiveTokens
	if maxActive == 0 {
		maxActive = DefaultMaxActiveTokens
	}
	maxDepth := cfg.MaxAncestryDepth
	if maxDepth == 0 {
		maxDepth = DefaultMaxAncestryDepth
	}

	raw := append([]string{}, defaultIdentityPatterns...)
	raw = append(raw, cfg.ExtraIdentityPatterns...)

	patterns := make([]*regexp.Regexp, 0, len(raw))
	for _, p := range raw {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return nil, domain.ErrInvalidArgument.WithDetails(
				fmt.Sprintf("identity pattern %q: %v", p, err))
		}
		patterns = append(patterns, re)
	}

	v := &Validator{
		maxActive: maxActive,
		maxDepth:  maxDepth,
		patterns:  patterns,
	}
	v.checksum = v.computeChecksum()
	return v, nil
}

// MaxActiveTokens returns the configured accretion limit.
func (v *Validator) MaxActiveTokens() int { return v.maxActive }

// MaxAncestryDepth returns the configured amplification limit.
func (v *Validator) MaxAncestryDepth() int { return v.maxDepth }

// computeChecksum hashes the validator configuration. The checksum
// pins the active rule set so a drifted or tampered validator is
// detectable at runtime.
func (v *Validator) computeChecksum() string {
	sources := make([]string, 0, len(v.patterns))
	for _, re := range v.patterns {
		sources = append(sources, re.String())
	}
	sort.Strings(sources)

	data := fmt.Sprintf("%d:%d:%s", v.maxActive, v.maxDepth, strings.Join(sources, "|"))
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:8])
}

// Checksum returns the rule-set checksum computed at construction.
func (v *Validator) Checksum() string { return v.checksum }

// VerifyIntegrity recomputes the rule-set checksum and compares it to
// the value pinned at construction.
func (v *Validator) VerifyIntegrity() bool {
	return v.computeChecksum() == v.checksum
}

// ValidateCreate runs the governance checks for a first-time token
// creation. activeCount is the current number of live tokens.
//
// Check order is fixed: structural fields, TTL, identity claims,
// accretion limit. The first failure wins.
func (v *Validator) ValidateCreate(token *domain.Token, activeCount int) error {
	if token == nil {
		return domain.ErrMissingArgument.WithDetails("token is required")
	}

	if err := token.Validate(); err != nil {
		return err
	}

	if err := v.checkTTL(token); err != nil {
		return err
	}
	if err := v.CheckExplanation(token.Explanation); err != nil {
		return err
	}
	if activeCount >= v.maxActive {
		return domain.ErrAccretionLimit.WithDetails(
			fmt.Sprintf("%d live tokens (max %d)", activeCount, v.maxActive))
	}
	return nil
}

// ValidateMutation runs the governance checks for a mutation of an
// existing token. ancestry is the chain of ancestor token IDs from the
// token's parent back to the original creation; credential is the
// caller's plaintext credential and storedHash the hash registered for
// the token's source.
func (v *Validator) ValidateMutation(token *domain.Token, ancestry []string, credential, storedHash string) error {
	if token == nil {
		return domain.ErrMissingArgument.WithDetails("token is required")
	}

	if err := v.checkTTL(token); err != nil {
		return err
	}
	if err := v.checkAncestry(token, ancestry); err != nil {
		return err
	}
	if err := v.CheckExplanation(token.Explanation); err != nil {
		return err
	}
	if !domain.MatchCredential(credential, storedHash) {
		return domain.ErrUnauthorized.WithDetails(
			"mutation of a " + string(token.Source) + " token requires its registered credential")
	}
	return nil
}

// CheckExplanation scans an explanation against the forbidden
// identity-claim patterns.
func (v *Validator) CheckExplanation(explanation string) error {
	for _, re := range v.patterns {
		if re.MatchString(explanation) {
			return domain.ErrIdentityClaim.WithDetails(
				"explanation matches forbidden pattern " + re.String())
		}
	}
	return nil
}

func (v *Validator) checkTTL(token *domain.Token) error {
	if token.TTL <= 0 {
		return domain.ErrMissingTTL
	}
	return nil
}

// checkAncestry enforces the amplification limit: bounded depth and no
// self-reference anywhere in the chain.
func (v *Validator) checkAncestry(token *domain.Token, ancestry []string) error {
	if token.Depth >= v.maxDepth || len(ancestry) >= v.maxDepth {
		return domain.ErrRecursiveReference.WithDetails(
			fmt.Sprintf("ancestry depth %d reaches the limit %d", max(token.Depth, len(ancestry)), v.maxDepth))
	}
	for _, id := range ancestry {
		if id == token.ID {
			return domain.ErrRecursiveReference.WithDetails(
				"token " + token.ID + " references itself through its ancestry chain")
		}
	}
	return nil
}
