package proof

import (
	"context"
	"testing"

	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/core/domain"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/ledger"
)

func testBeacon(scope string, seq int) *domain.Beacon {
	return &domain.Beacon{
		BeaconID:       domain.FormatBeaconID(scope, seq),
		Scope:          scope,
		ArtifactName:   "artifact-" + domain.FormatBeaconID(scope, seq),
		CanonicalOwner: "MirrorDNA-Reflection-Protocol",
		FirstSeen:      "2025-03-01",
		Hash:           "sha256:scd31_0xf7a9e3b2",
	}
}

func openTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := ledger.Open(ledger.Config{InMemory: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func seedLedger(t *testing.T, l *ledger.Ledger, n int) []*domain.Beacon {
	t.Helper()
	ctx := context.Background()
	beacons := make([]*domain.Beacon, 0, n)
	for i := 1; i <= n; i++ {
		b := testBeacon("AMOS", i)
		if _, err := l.Append(ctx, b); err != nil {
			t.Fatalf("Append(%s) error = %v", b.BeaconID, err)
		}
		beacons = append(beacons, b)
	}
	return beacons
}

func TestProve_AndVerify(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)
	beacons := seedLedger(t, l, 4)

	acc, _, err := l.Accumulator(ctx)
	if err != nil {
		t.Fatalf("Accumulator() error = %v", err)
	}

	for i, b := range beacons {
		p, err := Prove(ctx, l, b.BeaconID)
		if err != nil {
			t.Fatalf("Prove(%s) error = %v", b.BeaconID, err)
		}
		if p.Position != uint64(i) {
			t.Errorf("Prove(%s) position = %d, want %d", b.BeaconID, p.Position, i)
		}
		if p.LeafDigest != b.Digest() {
			t.Errorf("Prove(%s) leaf digest mismatch", b.BeaconID)
		}
		if len(p.SuffixDigests) != len(beacons)-i-1 {
			t.Errorf("Prove(%s) suffix length = %d, want %d", b.BeaconID, len(p.SuffixDigests), len(beacons)-i-1)
		}
		if !Verify(p, acc) {
			t.Errorf("Verify(%s) = false, want true", b.BeaconID)
		}
	}
}

func TestProve_FirstPositionUsesGenesisPrefix(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)
	seedLedger(t, l, 2)

	p, err := Prove(ctx, l, domain.FormatBeaconID("AMOS", 1))
	if err != nil {
		t.Fatalf("Prove() error = %v", err)
	}
	if p.PrefixAccumulator != domain.GenesisAccumulator() {
		t.Errorf("prefix accumulator = %q, want genesis", p.PrefixAccumulator)
	}
}

func TestProve_NotFound(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)
	seedLedger(t, l, 1)

	_, err := Prove(ctx, l, "BG-AMOS-9999")
	if !domain.IsDomainError(err, "GE-LEDG-4040") {
		t.Fatalf("Prove() error = %v, want GE-LEDG-4040", err)
	}
}

func TestVerify_RejectsTamperedLeaf(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)
	seedLedger(t, l, 3)

	acc, _, err := l.Accumulator(ctx)
	if err != nil {
		t.Fatalf("Accumulator() error = %v", err)
	}

	p, err := Prove(ctx, l, domain.FormatBeaconID("AMOS", 2))
	if err != nil {
		t.Fatalf("Prove() error = %v", err)
	}

	forged := testBeacon("AMOS", 2)
	forged.ArtifactName = "forged-artifact"
	p.LeafDigest = forged.Digest()

	if Verify(p, acc) {
		t.Error("Verify() = true for a tampered leaf digest")
	}
}

func TestVerify_RejectsWrongAccumulator(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)
	seedLedger(t, l, 2)

	p, err := Prove(ctx, l, domain.FormatBeaconID("AMOS", 1))
	if err != nil {
		t.Fatalf("Prove() error = %v", err)
	}
	if Verify(p, domain.SumSHA256([]byte("not-the-accumulator"))) {
		t.Error("Verify() = true against a foreign accumulator")
	}
	if Verify(nil, p.Accumulator) {
		t.Error("Verify(nil) = true")
	}
}

func TestVerify_SurvivesDeprecation(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)
	seedLedger(t, l, 3)

	acc, _, err := l.Accumulator(ctx)
	if err != nil {
		t.Fatalf("Accumulator() error = %v", err)
	}
	p, err := Prove(ctx, l, domain.FormatBeaconID("AMOS", 2))
	if err != nil {
		t.Fatalf("Prove() error = %v", err)
	}

	if err := l.Deprecate(ctx, domain.FormatBeaconID("AMOS", 2)); err != nil {
		t.Fatalf("Deprecate() error = %v", err)
	}

	// Deprecation is excluded from the digest, so the old proof must
	// still resolve against the unchanged accumulator.
	if !Verify(p, acc) {
		t.Error("Verify() = false after deprecating the proven beacon")
	}
	after, err := Prove(ctx, l, domain.FormatBeaconID("AMOS", 2))
	if err != nil {
		t.Fatalf("Prove() after deprecation error = %v", err)
	}
	if after.Accumulator != acc {
		t.Error("accumulator changed after deprecation")
	}
}

func TestCommit_AndOpen(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)
	beacons := seedLedger(t, l, 2)

	c, err := Commit(ctx, l, beacons[0].BeaconID)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if c.Value == beacons[0].Digest() {
		t.Error("commitment value must not equal the raw leaf digest")
	}
	if !OpenCommitment(c, beacons[0].Digest()) {
		t.Error("OpenCommitment() = false for the committed beacon")
	}
	if OpenCommitment(c, beacons[1].Digest()) {
		t.Error("OpenCommitment() = true for a different beacon")
	}
	if OpenCommitment(nil, beacons[0].Digest()) {
		t.Error("OpenCommitment(nil) = true")
	}
}

func TestCommit_NotFound(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	_, err := Commit(ctx, l, "BG-AMOS-0001")
	if !domain.IsDomainError(err, "GE-LEDG-4040") {
		t.Fatalf("Commit() error = %v, want GE-LEDG-4040", err)
	}
}
