// Package domain defines the core domain models for the Glyph Engine.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// HashAlgSHA256 is the only algorithm tag currently registered.
// The tag set is extensible only additively.
const HashAlgSHA256 = "sha256"

// GenesisSeed is the fixed seed for an empty ledger accumulator.
const GenesisSeed = "glyph-ledger-genesis"

// TagHash formats a raw digest as an algorithm-tagged hash string,
// e.g. "sha256:9f86d0...".
func TagHash(alg string, sum []byte) string {
	return alg + ":" + hex.EncodeToString(sum)
}

// SumSHA256 returns the algorithm-tagged SHA-256 hash of data.
func SumSHA256(data []byte) string {
	h := sha256.Sum256(data)
	return TagHash(HashAlgSHA256, h[:])
}

// ParseTaggedHash splits an algorithm-tagged hash into its algorithm
// and body. The algorithm must be registered; the body is kept opaque
// because artifact hashes may carry vendor-specific content IDs rather
// than plain hex (e.g. "sha256:scd31_0xf7a9e3b2").
func ParseTaggedHash(tagged string) (alg, body string, err error) {
	i := strings.IndexByte(tagged, ':')
	if i <= 0 || i == len(tagged)-1 {
		return "", "", ErrInvalidArgument.WithDetails("hash must be algorithm-tagged, e.g. sha256:<hex>")
	}
	alg = tagged[:i]
	body = tagged[i+1:]
	if alg != HashAlgSHA256 {
		return "", "", ErrInvalidArgument.WithDetails("unknown hash algorithm tag: " + alg)
	}
	return alg, body, nil
}

// ValidTaggedHash reports whether tagged carries a registered algorithm
// tag and a non-empty body.
func ValidTaggedHash(tagged string) bool {
	_, _, err := ParseTaggedHash(tagged)
	return err == nil
}

// CanonicalJSON serializes v for hashing. All hashed structures use
// struct types (never maps), so encoding/json field order is
// deterministic and the digest is reproducible.
func CanonicalJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, ErrInternal.WithCause(err)
	}
	return b, nil
}

// GenesisAccumulator returns the accumulator value of an empty ledger.
func GenesisAccumulator() string {
	return SumSHA256([]byte(GenesisSeed))
}

// ChainStep computes one accumulator step:
//
//	acc_n = H(acc_{n-1} || H(beacon_n))
//
// Both inputs are algorithm-tagged hash strings; the concatenation is
// over their string bytes, making the chain reproducible from the
// ordered beacon list alone.
func ChainStep(prevAccumulator, leafDigest string) string {
	return SumSHA256([]byte(prevAccumulator + leafDigest))
}
