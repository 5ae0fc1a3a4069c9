package storage

import (
	"context"
	"testing"
	"time"

	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/core/domain"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/storage/wal"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/telemetry/metric"
)

func testConfig(dir string) Config {
	cfg := DefaultConfig(dir)
	cfg.WAL.SyncMode = wal.SyncModeSync
	cfg.WAL.BatchCount = 1
	cfg.WAL.BatchBytes = 1
	cfg.SnapshotInterval = time.Hour
	return cfg
}

func newEngine(t *testing.T, dir string) *Engine {
	t.Helper()
	e, err := New(testConfig(dir))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func newStorageToken(t *testing.T, explanation string, ttl time.Duration) *domain.Token {
	t.Helper()
	tok, err := domain.NewToken(domain.ClassAnchor, domain.SourceUser, explanation, ttl)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	return tok
}

func TestEngine_CreateGetDelete(t *testing.T) {
	e := newEngine(t, t.TempDir())
	defer e.Close()
	ctx := context.Background()

	tok := newStorageToken(t, "durable context marker", time.Hour)
	if err := e.Create(ctx, tok); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := e.Get(ctx, tok.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != tok.ID {
		t.Fatalf("Get = %+v", got)
	}

	if err := e.Delete(ctx, tok.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := e.Get(ctx, tok.ID); !domain.IsDomainError(err, "GE-TOKN-4040") {
		t.Fatalf("Get after delete = %v, want GE-TOKN-4040", err)
	}
}

func TestEngine_RecoverFromWAL(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	e := newEngine(t, dir)
	t1 := newStorageToken(t, "survives restart", time.Hour)
	t2 := newStorageToken(t, "deleted before restart", time.Hour)

	if err := e.Create(ctx, t1); err != nil {
		t.Fatalf("Create t1: %v", err)
	}
	if err := e.Create(ctx, t2); err != nil {
		t.Fatalf("Create t2: %v", err)
	}
	if err := e.Delete(ctx, t2.ID); err != nil {
		t.Fatalf("Delete t2: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	e2 := newEngine(t, dir)
	defer e2.Close()
	if err := e2.Recover(ctx); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	if _, err := e2.Get(ctx, t1.ID); err != nil {
		t.Fatalf("Get t1 after recover: %v", err)
	}
	if _, err := e2.Get(ctx, t2.ID); !domain.IsDomainError(err, "GE-TOKN-4040") {
		t.Fatalf("t2 should stay deleted, got %v", err)
	}
	if count, _ := e2.Count(ctx); count != 1 {
		t.Fatalf("Count after recover = %d, want 1", count)
	}
}

func TestEngine_RecoverAppliesUpdates(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	e := newEngine(t, dir)
	tok := newStorageToken(t, "update before restart", time.Hour)
	if err := e.Create(ctx, tok); err != nil {
		t.Fatalf("Create: %v", err)
	}

	next := tok.Clone()
	next.Intensity = 0.25
	next.IncrVersion()
	if err := e.Update(ctx, next, tok.Version); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	e2 := newEngine(t, dir)
	defer e2.Close()
	if err := e2.Recover(ctx); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	got, err := e2.Get(ctx, tok.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Intensity != 0.25 || got.Version != tok.Version+1 {
		t.Fatalf("recovered token = %+v", got)
	}
}

func TestEngine_RecoverSkipsExpiredCreates(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	e := newEngine(t, dir)
	live := newStorageToken(t, "still live", time.Hour)
	dead := newStorageToken(t, "expires immediately", time.Millisecond)

	if err := e.Create(ctx, live); err != nil {
		t.Fatalf("Create live: %v", err)
	}
	if err := e.Create(ctx, dead); err != nil {
		t.Fatalf("Create dead: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	e2 := newEngine(t, dir)
	defer e2.Close()
	if err := e2.Recover(ctx); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	if count, _ := e2.Count(ctx); count != 1 {
		t.Fatalf("Count = %d, want 1", count)
	}
	if _, err := e2.Get(ctx, dead.ID); !domain.IsDomainError(err, "GE-TOKN-4040") {
		t.Fatalf("expired token should not be restored, got %v", err)
	}
}

func TestEngine_SnapshotAndRecover(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	e := newEngine(t, dir)
	t1 := newStorageToken(t, "in snapshot", time.Hour)
	if err := e.Create(ctx, t1); err != nil {
		t.Fatalf("Create t1: %v", err)
	}

	info, err := e.TriggerSnapshot(ctx)
	if err != nil {
		t.Fatalf("TriggerSnapshot: %v", err)
	}
	if info.TokenCount != 1 {
		t.Fatalf("snapshot TokenCount = %d, want 1", info.TokenCount)
	}

	// Written after the snapshot; must come back via WAL replay.
	t2 := newStorageToken(t, "in wal tail", time.Hour)
	if err := e.Create(ctx, t2); err != nil {
		t.Fatalf("Create t2: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	e2 := newEngine(t, dir)
	defer e2.Close()
	if err := e2.Recover(ctx); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	for _, id := range []string{t1.ID, t2.ID} {
		if _, err := e2.Get(ctx, id); err != nil {
			t.Fatalf("Get %s after recover: %v", id, err)
		}
	}
	if count, _ := e2.Count(ctx); count != 2 {
		t.Fatalf("Count = %d, want 2", count)
	}
}

func TestEngine_VersionConflict(t *testing.T) {
	e := newEngine(t, t.TempDir())
	defer e.Close()
	ctx := context.Background()

	tok := newStorageToken(t, "conflict target", time.Hour)
	if err := e.Create(ctx, tok); err != nil {
		t.Fatalf("Create: %v", err)
	}

	next := tok.Clone()
	next.IncrVersion()
	err := e.Update(ctx, next, tok.Version+3)
	if !domain.IsDomainError(err, "GE-TOKN-4091") {
		t.Fatalf("Update error = %v, want GE-TOKN-4091", err)
	}
}

func TestEngine_MetricsGauges(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Metrics = metric.NewRegistry()

	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()
	ctx := context.Background()

	if err := e.Create(ctx, newStorageToken(t, "metric target", time.Hour)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	families, err := cfg.Metrics.Gatherer().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "glyph_tokens_active" {
			if f.GetMetric()[0].GetGauge().GetValue() != 1 {
				t.Fatalf("glyph_tokens_active = %v, want 1", f.GetMetric()[0].GetGauge().GetValue())
			}
			found = true
		}
	}
	if !found {
		t.Fatalf("glyph_tokens_active not gathered")
	}
}
