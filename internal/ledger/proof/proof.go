// Package proof builds and checks inclusion proofs against the ledger
// accumulator.
//
// A proof pins one beacon to a claimed accumulator value without
// shipping the whole ledger: it carries the beacon's leaf digest, its
// position, the accumulator over everything before it, and the leaf
// digests of everything after it. Verification replays the chain from
// the prefix and must land exactly on the claimed value. Verify is
// pure; it never touches storage, so holders can check proofs offline.
package proof

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/core/domain"
)

// Source is the slice of the ledger a prover needs.
type Source interface {
	// Scan returns all beacons in insertion order.
	Scan(ctx context.Context) ([]*domain.Beacon, error)

	// Accumulator returns the current accumulator value and ledger size.
	Accumulator(ctx context.Context) (string, uint64, error)
}

// InclusionProof proves that one beacon is folded into an accumulator
// value at a fixed position.
type InclusionProof struct {
	BeaconID string `json:"beacon_id"`

	// LeafDigest is the beacon's digest as fed into the chain.
	LeafDigest string `json:"leaf_digest"`

	// Position is the beacon's permanent ledger position.
	Position uint64 `json:"position"`

	// PrefixAccumulator is the accumulator over all entries before
	// Position.
	PrefixAccumulator string `json:"prefix_accumulator"`

	// SuffixDigests are the leaf digests of all entries after
	// Position, in order.
	SuffixDigests []string `json:"suffix_digests"`

	// Accumulator is the claimed accumulator the proof resolves to.
	Accumulator string `json:"accumulator"`
}

// Prove builds an inclusion proof for the named beacon against the
// ledger's current accumulator.
func Prove(ctx context.Context, src Source, beaconID string) (*InclusionProof, error) {
	beacons, err := src.Scan(ctx)
	if err != nil {
		return nil, err
	}

	position := -1
	for i, b := range beacons {
		if b.BeaconID == beaconID {
			position = i
			break
		}
	}
	if position < 0 {
		return nil, domain.ErrBeaconNotFound.WithDetails(beaconID)
	}

	prefix := domain.GenesisAccumulator()
	for _, b := range beacons[:position] {
		prefix = domain.ChainStep(prefix, b.Digest())
	}

	leaf := beacons[position].Digest()

	suffix := make([]string, 0, len(beacons)-position-1)
	for _, b := range beacons[position+1:] {
		suffix = append(suffix, b.Digest())
	}

	accumulator, size, err := src.Accumulator(ctx)
	if err != nil {
		return nil, err
	}
	if size != uint64(len(beacons)) {
		return nil, domain.ErrAccumulatorMismatch.WithDetails(
			fmt.Sprintf("ledger size %d does not match %d scanned entries", size, len(beacons)))
	}

	p := &InclusionProof{
		BeaconID:          beaconID,
		LeafDigest:        leaf,
		Position:          uint64(position),
		PrefixAccumulator: prefix,
		SuffixDigests:     suffix,
		Accumulator:       accumulator,
	}

	// A proof that does not resolve against the live accumulator means
	// the ledger changed under us or is corrupt; never hand it out.
	if !Verify(p, accumulator) {
		return nil, domain.ErrAccumulatorMismatch.WithDetails("proof does not resolve to the current accumulator")
	}

	return p, nil
}

// Verify replays the proof and reports whether it resolves to the
// claimed accumulator. It needs no storage access.
func Verify(p *InclusionProof, claimedAccumulator string) bool {
	if p == nil || p.LeafDigest == "" || p.PrefixAccumulator == "" {
		return false
	}

	acc := domain.ChainStep(p.PrefixAccumulator, p.LeafDigest)
	for _, digest := range p.SuffixDigests {
		acc = domain.ChainStep(acc, digest)
	}
	return acc == claimedAccumulator
}

// Commitment is a non-revealing commitment to a beacon's presence: a
// salted hash of its leaf digest. The holder can later prove what was
// committed by revealing the nonce.
type Commitment struct {
	BeaconID string `json:"beacon_id"`
	Nonce    string `json:"nonce"`
	Value    string `json:"value"`
}

// Commit produces a commitment for the named beacon.
func Commit(ctx context.Context, src Source, beaconID string) (*Commitment, error) {
	beacons, err := src.Scan(ctx)
	if err != nil {
		return nil, err
	}

	var leaf string
	for _, b := range beacons {
		if b.BeaconID == beaconID {
			leaf = b.Digest()
			break
		}
	}
	if leaf == "" {
		return nil, domain.ErrBeaconNotFound.WithDetails(beaconID)
	}

	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return nil, domain.ErrInternal.WithCause(err)
	}
	nonceHex := hex.EncodeToString(nonce)

	return &Commitment{
		BeaconID: beaconID,
		Nonce:    nonceHex,
		Value:    commitmentValue(leaf, nonceHex),
	}, nil
}

// OpenCommitment checks that a commitment opens to the given leaf
// digest with the given nonce.
func OpenCommitment(c *Commitment, leafDigest string) bool {
	if c == nil {
		return false
	}
	return commitmentValue(leafDigest, c.Nonce) == c.Value
}

func commitmentValue(leafDigest, nonce string) string {
	return domain.SumSHA256([]byte(nonce + "|" + leafDigest))
}
