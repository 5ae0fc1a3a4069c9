package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/dgraph-io/badger/v3"

	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/core/domain"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(Config{InMemory: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func testBeacon(scope string, seq int) *domain.Beacon {
	return &domain.Beacon{
		BeaconID:       domain.FormatBeaconID(scope, seq),
		Scope:          scope,
		ArtifactName:   fmt.Sprintf("artifact-%s-%d", scope, seq),
		CanonicalOwner: "MirrorDNA-Reflection-Protocol",
		FirstSeen:      "2025-03-01",
		Hash:           "sha256:scd31_0xf7a9e3b2",
	}
}

func TestLedger_AppendAndGet(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	b1 := testBeacon("AMOS", 1)
	pos, err := l.Append(ctx, b1)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if pos != 0 {
		t.Fatalf("position = %d, want 0", pos)
	}

	b2 := testBeacon("AMOS", 2)
	pos, err = l.Append(ctx, b2)
	if err != nil {
		t.Fatalf("Append 2: %v", err)
	}
	if pos != 1 {
		t.Fatalf("position = %d, want 1", pos)
	}

	got, gotPos, err := l.Get(ctx, b1.BeaconID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gotPos != 0 || got.BeaconID != b1.BeaconID || got.ArtifactName != b1.ArtifactName {
		t.Fatalf("Get = %+v at %d", got, gotPos)
	}
}

func TestLedger_Get_NotFound(t *testing.T) {
	l := openTestLedger(t)
	_, _, err := l.Get(context.Background(), "BG-AMOS-9999")
	if !domain.IsDomainError(err, "GE-LEDG-4040") {
		t.Fatalf("Get error = %v, want GE-LEDG-4040", err)
	}
}

func TestLedger_Append_Duplicate(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	b := testBeacon("LING", 1)
	if _, err := l.Append(ctx, b); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := l.Append(ctx, b.Clone()); !domain.IsDomainError(err, "GE-LEDG-4090") {
		t.Fatalf("Append duplicate = %v, want GE-LEDG-4090", err)
	}
}

func TestLedger_Append_Invalid(t *testing.T) {
	l := openTestLedger(t)

	b := testBeacon("AMOS", 1)
	b.FirstSeen = "yesterday"
	if _, err := l.Append(context.Background(), b); !domain.IsDomainError(err, "GE-LEDG-4001") {
		t.Fatalf("Append invalid = %v, want GE-LEDG-4001", err)
	}
}

func TestLedger_Accumulator(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	acc, size, err := l.Accumulator(ctx)
	if err != nil {
		t.Fatalf("Accumulator: %v", err)
	}
	if acc != domain.GenesisAccumulator() || size != 0 {
		t.Fatalf("empty ledger accumulator = %s size %d", acc, size)
	}

	b1 := testBeacon("AMOS", 1)
	b2 := testBeacon("MDNA", 1)
	if _, err := l.Append(ctx, b1); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := l.Append(ctx, b2); err != nil {
		t.Fatalf("Append 2: %v", err)
	}

	want := domain.ChainStep(domain.ChainStep(domain.GenesisAccumulator(), b1.Digest()), b2.Digest())
	acc, size, err = l.Accumulator(ctx)
	if err != nil {
		t.Fatalf("Accumulator: %v", err)
	}
	if size != 2 {
		t.Fatalf("size = %d, want 2", size)
	}
	if acc != want {
		t.Fatalf("accumulator = %s, want %s", acc, want)
	}
}

func TestLedger_Deprecate(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	b := testBeacon("VAULT", 1)
	if _, err := l.Append(ctx, b); err != nil {
		t.Fatalf("Append: %v", err)
	}

	accBefore, sizeBefore, _ := l.Accumulator(ctx)

	if err := l.Deprecate(ctx, b.BeaconID); err != nil {
		t.Fatalf("Deprecate: %v", err)
	}

	got, _, err := l.Get(ctx, b.BeaconID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Deprecated {
		t.Fatalf("beacon not marked deprecated")
	}

	// Deprecation must not disturb the accumulator or size.
	accAfter, sizeAfter, _ := l.Accumulator(ctx)
	if accAfter != accBefore || sizeAfter != sizeBefore {
		t.Fatalf("accumulator changed by deprecation")
	}

	// Repeating the call is rejected, not absorbed.
	if err := l.Deprecate(ctx, b.BeaconID); !domain.IsDomainError(err, "GE-LEDG-4092") {
		t.Fatalf("second Deprecate = %v, want GE-LEDG-4092", err)
	}

	if err := l.Deprecate(ctx, "BG-VAULT-9999"); !domain.IsDomainError(err, "GE-LEDG-4040") {
		t.Fatalf("Deprecate missing = %v, want GE-LEDG-4040", err)
	}
}

func TestLedger_Scan_InsertionOrder(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	var want []string
	for i := 1; i <= 5; i++ {
		b := testBeacon("SPEC", i)
		if _, err := l.Append(ctx, b); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
		want = append(want, b.BeaconID)
	}

	beacons, err := l.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(beacons) != len(want) {
		t.Fatalf("Scan = %d beacons, want %d", len(beacons), len(want))
	}
	for i, b := range beacons {
		if b.BeaconID != want[i] {
			t.Fatalf("Scan[%d] = %s, want %s", i, b.BeaconID, want[i])
		}
	}
}

func TestLedger_NextSequence(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		got, err := l.NextSequence(ctx, "AMOS")
		if err != nil {
			t.Fatalf("NextSequence: %v", err)
		}
		if got != want {
			t.Fatalf("NextSequence = %d, want %d", got, want)
		}
	}

	// Scopes have independent counters.
	got, err := l.NextSequence(ctx, "LING")
	if err != nil {
		t.Fatalf("NextSequence LING: %v", err)
	}
	if got != 1 {
		t.Fatalf("NextSequence LING = %d, want 1", got)
	}

	if _, err := l.NextSequence(ctx, "NOPE"); !domain.IsDomainError(err, "GE-ARG-1001") {
		t.Fatalf("NextSequence bad scope = %v, want GE-ARG-1001", err)
	}
}

func TestLedger_VerifyIntegrity(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if _, err := l.Append(ctx, testBeacon("AMOS", i)); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	if err := l.VerifyIntegrity(ctx); err != nil {
		t.Fatalf("VerifyIntegrity: %v", err)
	}
	if l.Halted() {
		t.Fatalf("ledger halted after clean verification")
	}
}

func TestLedger_VerifyIntegrity_HaltsOnTamper(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	b := testBeacon("AMOS", 1)
	if _, err := l.Append(ctx, b); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// Overwrite the stored entry behind the ledger's back.
	tampered := b.Clone()
	tampered.ArtifactName = "tampered-artifact"
	raw, err := json.Marshal(tampered)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(0), raw)
	}); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	if err := l.VerifyIntegrity(ctx); !domain.IsDomainError(err, "GE-LEDG-5000") {
		t.Fatalf("VerifyIntegrity = %v, want GE-LEDG-5000", err)
	}
	if !l.Halted() {
		t.Fatalf("ledger not halted after mismatch")
	}

	// All writes are refused while halted.
	if _, err := l.Append(ctx, testBeacon("AMOS", 2)); !domain.IsDomainError(err, "GE-LEDG-5030") {
		t.Fatalf("Append while halted = %v, want GE-LEDG-5030", err)
	}
	if err := l.Deprecate(ctx, b.BeaconID); !domain.IsDomainError(err, "GE-LEDG-5030") {
		t.Fatalf("Deprecate while halted = %v, want GE-LEDG-5030", err)
	}
	if _, err := l.NextSequence(ctx, "AMOS"); !domain.IsDomainError(err, "GE-LEDG-5030") {
		t.Fatalf("NextSequence while halted = %v, want GE-LEDG-5030", err)
	}
}
